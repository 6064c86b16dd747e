package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"orionos/internal/util"
	"orionos/pkg/apps"
	"orionos/pkg/domain"
	"orionos/pkg/store"
)

// SeedApps makes sure the core apps exist in the global catalog.
func (a *App) SeedApps(ctx context.Context) ([]domain.App, error) {
	now := a.now()
	out := make([]domain.App, 0, 2)
	for _, descriptor := range apps.CoreApps() {
		descriptor.ID = util.NewID()
		descriptor.CreatedAt, descriptor.UpdatedAt = now, now
		app, err := a.store.EnsureApp(ctx, descriptor)
		if err != nil {
			return nil, storeErr("seed app "+descriptor.Name, err)
		}
		out = append(out, app)
	}
	util.LoggerFromContext(ctx).Info("app catalog seeded", "apps", len(out))
	return out, nil
}

// RegisterApp adds a descriptor to the global catalog. Names are unique.
func (a *App) RegisterApp(ctx context.Context, descriptor domain.App) (domain.App, error) {
	app, err := apps.ValidateDescriptor(descriptor)
	if err != nil {
		if errors.Is(err, apps.ErrInvalidDescriptor) {
			return domain.App{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		return domain.App{}, err
	}
	now := a.now()
	app.ID = util.NewID()
	app.CreatedAt, app.UpdatedAt = now, now
	if err := a.store.CreateApp(ctx, app); err != nil {
		return domain.App{}, storeErr("register app "+app.Name, err)
	}
	return app, nil
}

// ListApps returns the global catalog.
func (a *App) ListApps(ctx context.Context) ([]domain.App, error) {
	items, err := a.store.ListApps(ctx)
	if err != nil {
		return nil, storeErr("list apps", err)
	}
	return items, nil
}

// ListInstalledApps returns the profile's installs.
func (a *App) ListInstalledApps(ctx context.Context, profileID string) ([]domain.InstalledApp, error) {
	items, err := a.store.ListInstalledApps(ctx, profileID)
	if err != nil {
		return nil, storeErr("list installed apps", err)
	}
	return items, nil
}

// InstallApp binds a catalog app to the profile, docks it in the active
// workspace and gives it a closed window there.
func (a *App) InstallApp(ctx context.Context, profileID, appName string) (domain.InstalledApp, error) {
	appName = strings.TrimSpace(appName)
	if appName == "" {
		return domain.InstalledApp{}, invalid("app name required")
	}
	var ia domain.InstalledApp
	err := a.store.InTx(ctx, func(tx store.Store) error {
		profile, err := loadProfile(ctx, tx, profileID)
		if err != nil {
			return err
		}
		app, ok, err := tx.GetAppByName(ctx, appName)
		if err != nil {
			return storeErr("load app", err)
		}
		if !ok {
			return fmt.Errorf("app %q: %w", appName, ErrNotFound)
		}
		now := a.now()
		ia = newInstall(profileID, app.ID, now)
		if err := tx.CreateInstalledApp(ctx, ia); err != nil {
			return storeErr("install "+appName, err)
		}
		active, ok, err := tx.GetConstellation(ctx, profile.ActiveConstellationID)
		if err != nil {
			return storeErr("load active constellation", err)
		}
		if !ok {
			return nil
		}
		active.DockConfig.Items = append(active.DockConfig.Items, domain.DockItem{
			AppID:    app.ID,
			Position: len(active.DockConfig.Items),
		})
		if err := tx.UpdateConstellation(ctx, active); err != nil {
			return storeErr("update dock", err)
		}
		_, err = createClosedState(ctx, tx, profileID, active.ID, app, ia, domain.Position{}, now)
		return storeErr("create window", err)
	})
	if err != nil {
		return domain.InstalledApp{}, err
	}
	a.publish(ctx, profileID, domain.Event{Type: domain.EventConstellationChanged})
	return ia, nil
}

// UninstallApp removes the install, every window it owns and its dock
// entries across all of the profile's workspaces, atomically.
func (a *App) UninstallApp(ctx context.Context, profileID, installedAppID string) error {
	err := a.store.InTx(ctx, func(tx store.Store) error {
		ia, err := ownedInstall(ctx, tx, profileID, installedAppID)
		if err != nil {
			return err
		}
		if err := tx.DeleteAppStatesByInstalledApp(ctx, ia.ID); err != nil {
			return storeErr("delete windows", err)
		}
		constellations, err := tx.ListConstellations(ctx, profileID)
		if err != nil {
			return storeErr("list constellations", err)
		}
		for _, c := range constellations {
			items, removed := undock(c.DockConfig.Items, ia.AppID)
			if !removed {
				continue
			}
			c.DockConfig.Items = items
			if err := tx.UpdateConstellation(ctx, c); err != nil {
				return storeErr("update dock", err)
			}
		}
		return storeErr("delete installed app", tx.DeleteInstalledApp(ctx, ia.ID))
	})
	if err != nil {
		return err
	}
	a.publish(ctx, profileID, domain.Event{Type: domain.EventConstellationChanged})
	return nil
}

func undock(items []domain.DockItem, appID string) ([]domain.DockItem, bool) {
	out := make([]domain.DockItem, 0, len(items))
	removed := false
	for _, item := range items {
		if item.AppID == appID {
			removed = true
			continue
		}
		item.Position = len(out)
		out = append(out, item)
	}
	return out, removed
}
