package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"orionos/pkg/domain"
)

func seedProfile(t *testing.T, s Store, id string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.CreateProfile(ctx, domain.Profile{ID: id, ExternalID: "ext-" + id, Name: id}))
	require.NoError(t, s.CreateDrive(ctx, domain.Drive{ID: "drive-" + id, ProfileID: id, StorageLimit: 100}))
}

func TestMemoryStoreInTxRollsBack(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.InTx(ctx, func(tx Store) error {
		if err := tx.CreateProfile(ctx, domain.Profile{ID: "p1", ExternalID: "u1"}); err != nil {
			return err
		}
		if err := tx.CreateDesktop(ctx, domain.Desktop{ID: "d1", ProfileID: "p1"}); err != nil {
			return err
		}
		_, ok, err := tx.GetProfileByExternalID(ctx, "u1")
		require.NoError(t, err)
		require.True(t, ok, "writes are visible inside the transaction")
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, ok, err := s.GetProfileByExternalID(ctx, "u1")
	require.NoError(t, err)
	require.False(t, ok)
	_, ok, err = s.GetDesktopByProfile(ctx, "p1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMemoryStoreInTxCommits(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.InTx(ctx, func(tx Store) error {
		return tx.CreateProfile(ctx, domain.Profile{ID: "p1", ExternalID: "u1"})
	}))
	_, ok, err := s.GetProfile(ctx, "p1")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestMemoryStoreUniqueConstraints(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	seedProfile(t, s, "p1")

	err := s.CreateProfile(ctx, domain.Profile{ID: "p2", ExternalID: "ext-p1"})
	require.ErrorIs(t, err, ErrDuplicate)

	require.NoError(t, s.CreateApp(ctx, domain.App{ID: "a1", Name: "flow"}))
	require.ErrorIs(t, s.CreateApp(ctx, domain.App{ID: "a2", Name: "flow"}), ErrDuplicate)

	app, err := s.EnsureApp(ctx, domain.App{ID: "a3", Name: "flow"})
	require.NoError(t, err)
	require.Equal(t, "a1", app.ID)

	require.NoError(t, s.CreateConstellation(ctx, domain.Constellation{ID: "c1", ProfileID: "p1", Name: "Dev"}))
	require.ErrorIs(t, s.CreateConstellation(ctx, domain.Constellation{ID: "c2", ProfileID: "p1", Name: "Dev"}), ErrDuplicate)

	seedProfile(t, s, "p2")
	require.NoError(t, s.CreateConstellation(ctx, domain.Constellation{ID: "c3", ProfileID: "p2", Name: "Dev"}))
}

func TestMemoryStoreDriveQuota(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	seedProfile(t, s, "p1")

	drive, err := s.AddDriveUsage(ctx, "p1", 60)
	require.NoError(t, err)
	require.EqualValues(t, 60, drive.TotalStorage)

	_, err = s.AddDriveUsage(ctx, "p1", 41)
	require.ErrorIs(t, err, ErrQuotaExceeded)

	drive, ok, err := s.GetDriveByProfile(ctx, "p1")
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 60, drive.TotalStorage)

	drive, err = s.AddDriveUsage(ctx, "p1", 40)
	require.NoError(t, err)
	require.EqualValues(t, 100, drive.TotalStorage)

	_, err = s.AddDriveUsage(ctx, "p1", -1)
	require.Error(t, err)
	_, err = s.AddDriveUsage(ctx, "nobody", 1)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreCopiesRecords(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	seedProfile(t, s, "p1")
	require.NoError(t, s.CreateApp(ctx, domain.App{ID: "a1", Name: "flow"}))
	require.NoError(t, s.CreateInstalledApp(ctx, domain.InstalledApp{ID: "i1", ProfileID: "p1", AppID: "a1"}))
	require.NoError(t, s.CreateConstellation(ctx, domain.Constellation{ID: "c1", ProfileID: "p1", Name: "Dev"}))

	content := map[string]any{"path": "/docs", "tabs": []any{"a"}}
	require.NoError(t, s.CreateAppState(ctx, domain.AppState{
		ID: "w1", ProfileID: "p1", AppID: "a1", InstalledAppID: "i1", ConstellationID: "c1",
		Size: domain.Size{Width: 10, Height: 10}, ContentState: content,
	}))
	content["path"] = "/elsewhere"

	st, ok, err := s.GetAppState(ctx, "w1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "/docs", st.ContentState["path"])

	st.ContentState["tabs"].([]any)[0] = "b"
	again, _, _ := s.GetAppState(ctx, "w1")
	require.Equal(t, "a", again.ContentState["tabs"].([]any)[0])
}

func TestMemoryStoreGeometryRoundTrip(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	seedProfile(t, s, "p1")
	require.NoError(t, s.CreateApp(ctx, domain.App{ID: "a1", Name: "flow"}))
	require.NoError(t, s.CreateInstalledApp(ctx, domain.InstalledApp{ID: "i1", ProfileID: "p1", AppID: "a1"}))
	require.NoError(t, s.CreateConstellation(ctx, domain.Constellation{ID: "c1", ProfileID: "p1", Name: "Dev"}))
	require.NoError(t, s.CreateAppState(ctx, domain.AppState{ID: "w1", ProfileID: "p1", AppID: "a1", InstalledAppID: "i1", ConstellationID: "c1"}))

	st, _, _ := s.GetAppState(ctx, "w1")
	st.Position = domain.Position{X: 0.1 + 0.2, Y: -80}
	st.Size = domain.Size{Width: 640.125, Height: 1e-9}
	require.NoError(t, s.UpdateAppState(ctx, st))

	got, _, _ := s.GetAppState(ctx, "w1")
	require.Equal(t, st.Position, got.Position)
	require.Equal(t, st.Size, got.Size)
}

func TestMemoryStoreDeletesCascade(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	seedProfile(t, s, "p1")
	require.NoError(t, s.CreateApp(ctx, domain.App{ID: "a1", Name: "flow"}))
	require.NoError(t, s.CreateInstalledApp(ctx, domain.InstalledApp{ID: "i1", ProfileID: "p1", AppID: "a1"}))
	require.NoError(t, s.CreateConstellation(ctx, domain.Constellation{ID: "c1", ProfileID: "p1", Name: "One"}))
	require.NoError(t, s.CreateConstellation(ctx, domain.Constellation{ID: "c2", ProfileID: "p1", Name: "Two"}))
	require.NoError(t, s.CreateAppState(ctx, domain.AppState{ID: "w1", InstalledAppID: "i1", ConstellationID: "c1"}))
	require.NoError(t, s.CreateAppState(ctx, domain.AppState{ID: "w2", InstalledAppID: "i1", ConstellationID: "c2"}))

	require.NoError(t, s.DeleteConstellation(ctx, "c1"))
	_, ok, _ := s.GetAppState(ctx, "w1")
	require.False(t, ok)

	require.NoError(t, s.DeleteInstalledApp(ctx, "i1"))
	_, ok, _ = s.GetAppState(ctx, "w2")
	require.False(t, ok)
	require.ErrorIs(t, s.DeleteInstalledApp(ctx, "i1"), ErrNotFound)
}

func TestMemoryStoreListOrder(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	seedProfile(t, s, "p1")
	now := time.Now().UTC()
	for _, id := range []string{"z", "a", "m"} {
		require.NoError(t, s.CreateConstellation(ctx, domain.Constellation{ID: id, ProfileID: "p1", Name: id, CreatedAt: now}))
	}
	list, err := s.ListConstellations(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, list, 3)
	require.Equal(t, []string{"z", "a", "m"}, []string{list[0].ID, list[1].ID, list[2].ID})
}

func TestMemoryStoreStreamsGroupFlows(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	seedProfile(t, s, "p1")

	require.NoError(t, s.CreateStream(ctx, domain.Stream{ID: "s1", ProfileID: "p1", Name: "System"}))
	require.NoError(t, s.CreateStream(ctx, domain.Stream{ID: "s2", ProfileID: "p1", Name: "Drafts"}))
	require.ErrorIs(t, s.CreateStream(ctx, domain.Stream{ID: "s3", ProfileID: "p1", Name: "System"}), ErrDuplicate)
	require.NoError(t, s.CreateStream(ctx, domain.Stream{ID: "s4", ProfileID: "p2", Name: "System"}))

	got, ok, err := s.GetStreamByName(ctx, "p1", "System")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "s1", got.ID)

	streams, err := s.ListStreams(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, streams, 2)
	require.Equal(t, "s1", streams[0].ID)
	require.Equal(t, "s2", streams[1].ID)

	require.NoError(t, s.CreateFlow(ctx, domain.Flow{ID: "f1", ProfileID: "p1", StreamID: "s1", Name: "Zenith"}))
	require.NoError(t, s.UpdateFlow(ctx, domain.Flow{ID: "f1", Name: "Zenith 2"}))
	flow, ok, err := s.GetFlow(ctx, "f1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "s1", flow.StreamID, "updates keep the stream")
}
