package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"orionos/pkg/apps"
	"orionos/pkg/domain"
	"orionos/pkg/window"
)

func ptr[T any](v T) *T { return &v }

func installFor(t *testing.T, env domain.Environment, appID string) domain.InstalledApp {
	t.Helper()
	for _, ia := range env.InstalledApps {
		if ia.AppID == appID {
			return ia
		}
	}
	t.Fatalf("app %s not installed", appID)
	return domain.InstalledApp{}
}

func TestOpenWindowReusesSingleInstance(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	env := h.provision(t, "u1")
	existing := stateFor(t, h, env, apps.StellarAppName)
	ia := installFor(t, env, existing.AppID)

	first, err := h.app.OpenWindow(ctx, env.Profile.ID, env.Constellation.ID, ia.ID)
	require.NoError(t, err)
	second, err := h.app.OpenWindow(ctx, env.Profile.ID, env.Constellation.ID, ia.ID)
	require.NoError(t, err)

	require.Equal(t, existing.ID, first.ID)
	require.Equal(t, first.ID, second.ID)
	require.True(t, second.IsOpen)

	states, err := h.store.ListAppStates(ctx, env.Constellation.ID)
	require.NoError(t, err)
	require.Len(t, states, len(env.InstalledApps))
	require.Contains(t, h.events.types(), domain.EventWindowUpdated)
}

func TestOpenWindowCascadesMultiInstance(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	env := h.provision(t, "u1")

	_, err := h.app.RegisterApp(ctx, domain.App{
		Name:          "terminal",
		DefaultWindow: domain.WindowConfig{Width: 640, Height: 400},
		Features:      []domain.Capability{domain.CapMultiInstance},
	})
	require.NoError(t, err)
	ia, err := h.app.InstallApp(ctx, env.Profile.ID, "terminal")
	require.NoError(t, err)

	first, err := h.app.OpenWindow(ctx, env.Profile.ID, env.Constellation.ID, ia.ID)
	require.NoError(t, err)
	second, err := h.app.OpenWindow(ctx, env.Profile.ID, env.Constellation.ID, ia.ID)
	require.NoError(t, err)
	third, err := h.app.OpenWindow(ctx, env.Profile.ID, env.Constellation.ID, ia.ID)
	require.NoError(t, err)

	require.NotEqual(t, first.ID, second.ID)
	require.NotEqual(t, second.ID, third.ID)
	require.Equal(t, domain.Position{}, first.Position)
	require.Equal(t, domain.Position{X: window.CascadeStep, Y: window.CascadeStep}, second.Position)
	require.Equal(t, domain.Position{X: 2 * window.CascadeStep, Y: 2 * window.CascadeStep}, third.Position)
	require.Equal(t, domain.Size{Width: 640, Height: 400}, third.Size)

	// a closed instance is reopened before a new one is created
	_, err = h.app.CloseWindow(ctx, env.Profile.ID, second.ID)
	require.NoError(t, err)
	reopened, err := h.app.OpenWindow(ctx, env.Profile.ID, env.Constellation.ID, ia.ID)
	require.NoError(t, err)
	require.Equal(t, second.ID, reopened.ID)
}

func TestOpenWindowRejectsForeignInstall(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	mine := h.provision(t, "u1")
	theirs := h.provision(t, "u2")

	_, err := h.app.OpenWindow(ctx, mine.Profile.ID, mine.Constellation.ID, theirs.InstalledApps[0].ID)
	require.ErrorIs(t, err, ErrForbidden)
	_, err = h.app.OpenWindow(ctx, mine.Profile.ID, mine.Constellation.ID, "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateGeometryRoundTrip(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	env := h.provision(t, "u1")
	s := stateFor(t, h, env, apps.FlowAppName)

	_, err := h.app.UpdateGeometry(ctx, env.Profile.ID, s.ID, domain.Position{X: 120, Y: 80}, domain.Size{Width: 640, Height: 480})
	require.NoError(t, err)
	loaded, ok, err := h.store.GetAppState(ctx, s.ID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, domain.Position{X: 120, Y: 80}, loaded.Position)
	require.Equal(t, domain.Size{Width: 640, Height: 480}, loaded.Size)

	_, err = h.app.UpdateGeometry(ctx, env.Profile.ID, s.ID, domain.Position{X: 10.25, Y: -3.5}, domain.Size{Width: 300.125, Height: 200})
	require.NoError(t, err)
	loaded, _, err = h.store.GetAppState(ctx, s.ID)
	require.NoError(t, err)
	require.Equal(t, domain.Position{X: 10.25, Y: -3.5}, loaded.Position)
	require.Equal(t, domain.Size{Width: 300.125, Height: 200}, loaded.Size)

	_, err = h.app.UpdateGeometry(ctx, env.Profile.ID, s.ID, domain.Position{}, domain.Size{Width: 0, Height: 10})
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestSetWindowFlagsRejectsMinimizedAndMaximized(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	env := h.provision(t, "u1")
	s := stateFor(t, h, env, apps.FlowAppName)
	opened, err := h.app.OpenWindow(ctx, env.Profile.ID, env.Constellation.ID, s.InstalledAppID)
	require.NoError(t, err)

	_, err = h.app.SetWindowFlags(ctx, env.Profile.ID, s.ID, window.Flags{IsMinimized: ptr(true), IsMaximized: ptr(true)})
	require.ErrorIs(t, err, ErrInvalidInput)

	loaded, _, err := h.store.GetAppState(ctx, s.ID)
	require.NoError(t, err)
	require.Equal(t, opened.IsOpen, loaded.IsOpen)
	require.False(t, loaded.IsMinimized)
	require.False(t, loaded.IsMaximized)

	_, err = h.app.SetWindowFlags(ctx, env.Profile.ID, s.ID, window.Flags{})
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestMaximizeKeepsRestoreGeometry(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	env := h.provision(t, "u1")
	s := stateFor(t, h, env, apps.FlowAppName)
	_, err := h.app.OpenWindow(ctx, env.Profile.ID, env.Constellation.ID, s.InstalledAppID)
	require.NoError(t, err)
	_, err = h.app.UpdateGeometry(ctx, env.Profile.ID, s.ID, domain.Position{X: 40, Y: 50}, domain.Size{Width: 500, Height: 400})
	require.NoError(t, err)

	maxed, err := h.app.SetWindowFlags(ctx, env.Profile.ID, s.ID, window.Flags{IsMaximized: ptr(true)})
	require.NoError(t, err)
	require.True(t, maxed.IsMaximized)

	_, err = h.app.UpdateGeometry(ctx, env.Profile.ID, s.ID, domain.Position{X: 0, Y: 0}, domain.Size{Width: 1920, Height: 1080})
	require.ErrorIs(t, err, ErrWindowMaximized)
	err = h.app.StageDrag(ctx, env.Profile.ID, s.ID, domain.Position{X: 1, Y: 1}, domain.Size{Width: 10, Height: 10})
	require.ErrorIs(t, err, ErrWindowMaximized)

	restored, err := h.app.SetWindowFlags(ctx, env.Profile.ID, s.ID, window.Flags{IsMaximized: ptr(false)})
	require.NoError(t, err)
	require.Equal(t, domain.Position{X: 40, Y: 50}, restored.Position)
	require.Equal(t, domain.Size{Width: 500, Height: 400}, restored.Size)
	require.Nil(t, restored.Restore)
}

func TestCloseWindowKeepsGeometry(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	env := h.provision(t, "u1")
	s := stateFor(t, h, env, apps.StellarAppName)
	_, err := h.app.OpenWindow(ctx, env.Profile.ID, env.Constellation.ID, s.InstalledAppID)
	require.NoError(t, err)
	_, err = h.app.UpdateGeometry(ctx, env.Profile.ID, s.ID, domain.Position{X: 7, Y: 9}, domain.Size{Width: 320, Height: 240})
	require.NoError(t, err)

	closed, err := h.app.CloseWindow(ctx, env.Profile.ID, s.ID)
	require.NoError(t, err)
	require.False(t, closed.IsOpen)

	reopened, err := h.app.OpenWindow(ctx, env.Profile.ID, env.Constellation.ID, s.InstalledAppID)
	require.NoError(t, err)
	require.Equal(t, s.ID, reopened.ID)
	require.Equal(t, domain.Position{X: 7, Y: 9}, reopened.Position)
}

func TestWindowOwnership(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	mine := h.provision(t, "u1")
	theirs := h.provision(t, "u2")
	foreign := theirs.Constellation.AppStates[0]

	_, err := h.app.UpdateGeometry(ctx, mine.Profile.ID, foreign.ID, domain.Position{}, domain.Size{Width: 1, Height: 1})
	require.ErrorIs(t, err, ErrForbidden)
	_, err = h.app.CloseWindow(ctx, mine.Profile.ID, "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateContentState(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	env := h.provision(t, "u1")
	s := stateFor(t, h, env, apps.FlowAppName)

	updated, err := h.app.UpdateContentState(ctx, env.Profile.ID, s.ID, map[string]any{"tab": "tokens", "zoom": 1.5})
	require.NoError(t, err)
	require.Equal(t, "tokens", updated.ContentState["tab"])

	loaded, _, err := h.store.GetAppState(ctx, s.ID)
	require.NoError(t, err)
	require.Equal(t, 1.5, loaded.ContentState["zoom"])
}

func TestLaunchResolvesHandlers(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	env := h.provision(t, "u1")
	s := stateFor(t, h, env, apps.FlowAppName)

	launch, err := h.app.Launch(ctx, env.Profile.ID, s.ID)
	require.NoError(t, err)
	require.False(t, launch.Placeholder)
	require.Equal(t, "/apps/flow", launch.Entry)

	_, err = h.app.RegisterApp(ctx, domain.App{Name: "mystery", DefaultWindow: domain.WindowConfig{Width: 10, Height: 10}})
	require.NoError(t, err)
	ia, err := h.app.InstallApp(ctx, env.Profile.ID, "mystery")
	require.NoError(t, err)
	opened, err := h.app.OpenWindow(ctx, env.Profile.ID, env.Constellation.ID, ia.ID)
	require.NoError(t, err)

	launch, err = h.app.Launch(ctx, env.Profile.ID, opened.ID)
	require.NoError(t, err)
	require.True(t, launch.Placeholder)
	require.Equal(t, "App not found", launch.Message)
}

func TestDragIsStagedUntilCommit(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	env := h.provision(t, "u1")
	s := stateFor(t, h, env, apps.FlowAppName)
	_, err := h.app.OpenWindow(ctx, env.Profile.ID, env.Constellation.ID, s.InstalledAppID)
	require.NoError(t, err)

	require.NoError(t, h.app.StageDrag(ctx, env.Profile.ID, s.ID, domain.Position{X: 33, Y: 44}, domain.Size{Width: 700, Height: 500}))
	loaded, _, err := h.store.GetAppState(ctx, s.ID)
	require.NoError(t, err)
	require.Equal(t, domain.Position{}, loaded.Position)

	committed, err := h.app.CommitDrag(ctx, env.Profile.ID, s.ID)
	require.NoError(t, err)
	require.Equal(t, domain.Position{X: 33, Y: 44}, committed.Position)

	_, err = h.app.CommitDrag(ctx, env.Profile.ID, s.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestFocusIsNotPersisted(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	env := h.provision(t, "u1")
	s := stateFor(t, h, env, apps.FlowAppName)

	err := h.app.FocusWindow(ctx, env.Profile.ID, s.ID)
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = h.app.OpenWindow(ctx, env.Profile.ID, env.Constellation.ID, s.InstalledAppID)
	require.NoError(t, err)
	before, _, err := h.store.GetAppState(ctx, s.ID)
	require.NoError(t, err)

	require.NoError(t, h.app.FocusWindow(ctx, env.Profile.ID, s.ID))
	focused, ok, err := h.app.FocusedWindow(ctx, env.Profile.ID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, s.ID, focused)

	after, _, err := h.store.GetAppState(ctx, s.ID)
	require.NoError(t, err)
	require.Equal(t, before.UpdatedAt, after.UpdatedAt)
	require.Contains(t, h.events.types(), domain.EventWindowFocused)
}
