package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"orionos/pkg/domain"
)

// Runs against a real Postgres only when ORIONOS_TEST_DATABASE_URL is set.
func newTestGormStore(t *testing.T) *GormStore {
	t.Helper()
	dsn := os.Getenv("ORIONOS_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("ORIONOS_TEST_DATABASE_URL not set")
	}
	s, err := NewGormStore(dsn)
	require.NoError(t, err)
	return s
}

func TestGormStoreWindowRoundTrip(t *testing.T) {
	s := newTestGormStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	profileID := uuid.NewString()
	appID := uuid.NewString()
	installID := uuid.NewString()
	constellationID := uuid.NewString()
	stateID := uuid.NewString()

	require.NoError(t, s.InTx(ctx, func(tx Store) error {
		if err := tx.CreateProfile(ctx, domain.Profile{ID: profileID, ExternalID: uuid.NewString(), Name: "Ada", CreatedAt: now}); err != nil {
			return err
		}
		if err := tx.CreateApp(ctx, domain.App{ID: appID, Name: "test-" + appID, DisplayName: "Test", CreatedAt: now}); err != nil {
			return err
		}
		if err := tx.CreateInstalledApp(ctx, domain.InstalledApp{ID: installID, ProfileID: profileID, AppID: appID, CreatedAt: now}); err != nil {
			return err
		}
		if err := tx.CreateConstellation(ctx, domain.Constellation{ID: constellationID, ProfileID: profileID, Name: "Dev", CreatedAt: now}); err != nil {
			return err
		}
		return tx.CreateAppState(ctx, domain.AppState{
			ID: stateID, ProfileID: profileID, AppID: appID, InstalledAppID: installID, ConstellationID: constellationID,
			Position: domain.Position{X: 0.1 + 0.2, Y: 80}, Size: domain.Size{Width: 640.5, Height: 480},
			Restore:      &domain.Geometry{Size: domain.Size{Width: 1, Height: 2}},
			ContentState: map[string]any{"path": "/"},
			CreatedAt:    now,
		})
	}))

	got, ok, err := s.GetAppState(ctx, stateID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, domain.Position{X: 0.1 + 0.2, Y: 80}, got.Position)
	require.Equal(t, domain.Size{Width: 640.5, Height: 480}, got.Size)
	require.NotNil(t, got.Restore)
	require.Equal(t, "/", got.ContentState["path"])

	err = s.CreateConstellation(ctx, domain.Constellation{ID: uuid.NewString(), ProfileID: profileID, Name: "Dev", CreatedAt: now})
	require.ErrorIs(t, err, ErrDuplicate)

	require.NoError(t, s.DeleteInstalledApp(ctx, installID))
	_, ok, err = s.GetAppState(ctx, stateID)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestGormStoreDriveQuota(t *testing.T) {
	s := newTestGormStore(t)
	ctx := context.Background()
	profileID := uuid.NewString()
	require.NoError(t, s.CreateProfile(ctx, domain.Profile{ID: profileID, ExternalID: uuid.NewString(), Name: "Ada", CreatedAt: time.Now().UTC()}))
	require.NoError(t, s.CreateDrive(ctx, domain.Drive{ID: uuid.NewString(), ProfileID: profileID, StorageLimit: 10}))

	drive, err := s.AddDriveUsage(ctx, profileID, 10)
	require.NoError(t, err)
	require.EqualValues(t, 10, drive.TotalStorage)

	drive, err = s.AddDriveUsage(ctx, profileID, 1)
	require.ErrorIs(t, err, ErrQuotaExceeded)
	require.EqualValues(t, 10, drive.TotalStorage)
}

func TestGormStoreStreams(t *testing.T) {
	s := newTestGormStore(t)
	ctx := context.Background()
	now := time.Now().UTC()
	profileID := uuid.NewString()
	streamID := uuid.NewString()
	flowID := uuid.NewString()
	require.NoError(t, s.CreateProfile(ctx, domain.Profile{ID: profileID, ExternalID: uuid.NewString(), Name: "Ada", CreatedAt: now}))
	require.NoError(t, s.CreateStream(ctx, domain.Stream{ID: streamID, ProfileID: profileID, Name: "System", CreatedAt: now}))
	err := s.CreateStream(ctx, domain.Stream{ID: uuid.NewString(), ProfileID: profileID, Name: "System", CreatedAt: now})
	require.ErrorIs(t, err, ErrDuplicate)

	require.NoError(t, s.CreateFlow(ctx, domain.Flow{ID: flowID, ProfileID: profileID, StreamID: streamID, Name: "Zenith", CreatedAt: now}))
	flow, ok, err := s.GetFlow(ctx, flowID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, streamID, flow.StreamID)

	got, ok, err := s.GetStreamByName(ctx, profileID, "System")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, streamID, got.ID)
}
