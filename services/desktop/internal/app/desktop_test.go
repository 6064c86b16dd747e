package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"orionos/pkg/apps"
	"orionos/pkg/domain"
)

func TestUpdateDesktopSettings(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	env := h.provision(t, "u1")

	edge := domain.DockLeft
	wallpaper := "/wallpapers/aurora.jpg"
	d, err := h.app.UpdateDesktopSettings(ctx, env.Profile.ID, DesktopPatch{
		Wallpaper:       &wallpaper,
		DockPosition:    &edge,
		MenuBarAutoHide: ptr(true),
	})
	require.NoError(t, err)
	require.Equal(t, domain.DockLeft, d.DockPosition)
	require.Equal(t, wallpaper, d.Wallpaper)
	require.True(t, d.MenuBarAutoHide)
	require.True(t, d.DockAutoHide)

	bad := domain.DockEdge("middle")
	_, err = h.app.UpdateDesktopSettings(ctx, env.Profile.ID, DesktopPatch{DockPosition: &bad})
	require.ErrorIs(t, err, ErrInvalidInput)

	loaded, err := h.app.GetDesktop(ctx, env.Profile.ID)
	require.NoError(t, err)
	require.Equal(t, domain.DockLeft, loaded.DockPosition)
}

func TestSnapshot(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	env := h.provision(t, "u1")

	snap, err := h.app.Snapshot(ctx, env.Profile.ID)
	require.NoError(t, err)
	require.Equal(t, env.Profile.ID, snap.Profile.ID)
	require.Equal(t, env.Desktop.ID, snap.Desktop.ID)
	require.Equal(t, env.Drive.ID, snap.Drive.ID)
	require.Equal(t, env.Constellation.ID, snap.Constellation.ID)
	require.Len(t, snap.Constellation.AppStates, len(apps.CoreApps()))
	require.NotNil(t, snap.Flow)
	require.Equal(t, env.Flow.ID, snap.Flow.ID)
	require.NotNil(t, snap.FlowConfig)

	_, err = h.app.Snapshot(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestInstallAndUninstallApp(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	env := h.provision(t, "u1")

	_, err := h.app.InstallApp(ctx, env.Profile.ID, apps.FlowAppName)
	require.ErrorIs(t, err, ErrConflict)
	_, err = h.app.InstallApp(ctx, env.Profile.ID, "nope")
	require.ErrorIs(t, err, ErrNotFound)

	app, err := h.app.RegisterApp(ctx, domain.App{Name: "notes", DefaultWindow: domain.WindowConfig{Width: 400, Height: 300}})
	require.NoError(t, err)
	ia, err := h.app.InstallApp(ctx, env.Profile.ID, "notes")
	require.NoError(t, err)

	ws, err := h.app.GetWorkspace(ctx, env.Profile.ID, env.Constellation.ID)
	require.NoError(t, err)
	items := ws.DockConfig.Items
	require.Equal(t, domain.DockItem{AppID: app.ID, Position: len(items) - 1}, items[len(items)-1])
	require.Len(t, ws.AppStates, len(apps.CoreApps())+1)

	require.NoError(t, h.app.UninstallApp(ctx, env.Profile.ID, ia.ID))
	ws, err = h.app.GetWorkspace(ctx, env.Profile.ID, env.Constellation.ID)
	require.NoError(t, err)
	require.Len(t, ws.AppStates, len(apps.CoreApps()))
	for i, item := range ws.DockConfig.Items {
		require.NotEqual(t, app.ID, item.AppID)
		require.Equal(t, i, item.Position)
	}
	installs, err := h.app.ListInstalledApps(ctx, env.Profile.ID)
	require.NoError(t, err)
	require.Len(t, installs, len(apps.CoreApps()))

	other := h.provision(t, "u2")
	err = h.app.UninstallApp(ctx, other.Profile.ID, env.InstalledApps[0].ID)
	require.ErrorIs(t, err, ErrForbidden)
}

func TestRegisterAppValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	seeded, err := h.app.SeedApps(ctx)
	require.NoError(t, err)
	require.Len(t, seeded, len(apps.CoreApps()))
	again, err := h.app.SeedApps(ctx)
	require.NoError(t, err)
	require.Equal(t, seeded[0].ID, again[0].ID)

	_, err = h.app.RegisterApp(ctx, domain.App{Name: apps.FlowAppName, DefaultWindow: domain.WindowConfig{Width: 1, Height: 1}})
	require.ErrorIs(t, err, ErrConflict)
	_, err = h.app.RegisterApp(ctx, domain.App{Name: "x", DefaultWindow: domain.WindowConfig{Width: 1, Height: 1}, Features: []domain.Capability{"teleport"}})
	require.ErrorIs(t, err, ErrInvalidInput)

	catalog, err := h.app.ListApps(ctx)
	require.NoError(t, err)
	require.Len(t, catalog, len(apps.CoreApps()))
}
