package app

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"orionos/pkg/apps"
	"orionos/pkg/domain"
	"orionos/pkg/store"
)

// snapshotFanOut bounds concurrent reads when the store is not transactional.
const snapshotFanOut = 4

// Snapshot returns everything the shell needs to render the active workspace.
func (a *App) Snapshot(ctx context.Context, profileID string) (domain.Snapshot, error) {
	return buildSnapshot(ctx, a.store, profileID, snapshotFanOut)
}

// buildSnapshot loads the pieces of a snapshot with at most limit reads in
// flight. Transactional views must pass 1: one connection, one query.
func buildSnapshot(ctx context.Context, st store.Store, profileID string, limit int) (domain.Snapshot, error) {
	profile, err := loadProfile(ctx, st, profileID)
	if err != nil {
		return domain.Snapshot{}, err
	}
	if profile.ActiveConstellationID == "" {
		return domain.Snapshot{}, ErrProfileNotInitialized
	}

	var (
		snap    = domain.Snapshot{Profile: profile}
		desktop domain.Desktop
		drive   domain.Drive
		active  domain.Constellation
		flowCfg *domain.FlowOverride
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	g.Go(func() error {
		d, ok, err := st.GetDesktopByProfile(gctx, profileID)
		if err != nil {
			return storeErr("load desktop", err)
		}
		if !ok {
			return fmt.Errorf("desktop for %s: %w", profileID, ErrNotFound)
		}
		desktop = d
		return nil
	})
	g.Go(func() error {
		d, ok, err := st.GetDriveByProfile(gctx, profileID)
		if err != nil {
			return storeErr("load drive", err)
		}
		if !ok {
			return fmt.Errorf("drive for %s: %w", profileID, ErrNotFound)
		}
		drive = d
		return nil
	})
	g.Go(func() error {
		c, ok, err := st.GetConstellation(gctx, profile.ActiveConstellationID)
		if err != nil {
			return storeErr("load constellation", err)
		}
		if !ok {
			return fmt.Errorf("constellation %s: %w", profile.ActiveConstellationID, ErrNotFound)
		}
		c, err = withWindows(gctx, st, c)
		if err != nil {
			return err
		}
		active = c
		return nil
	})
	g.Go(func() error {
		cfg, err := flowAppOverride(gctx, st, profileID)
		if err != nil {
			return err
		}
		flowCfg = cfg
		return nil
	})
	if err := g.Wait(); err != nil {
		return domain.Snapshot{}, err
	}

	snap.Desktop = desktop
	snap.Drive = drive
	snap.Constellation = active
	snap.FlowConfig = flowCfg
	if active.ActiveFlowID != "" {
		f, ok, err := st.GetFlow(ctx, active.ActiveFlowID)
		if err != nil {
			return domain.Snapshot{}, storeErr("load flow", err)
		}
		if ok {
			snap.Flow = &f
		}
	}
	return snap, nil
}

// flowAppOverride returns the per-install override of the flow app, which
// the shell layers over the active flow.
func flowAppOverride(ctx context.Context, st store.Store, profileID string) (*domain.FlowOverride, error) {
	app, ok, err := st.GetAppByName(ctx, apps.FlowAppName)
	if err != nil {
		return nil, storeErr("load flow app", err)
	}
	if !ok {
		return nil, nil
	}
	installs, err := st.ListInstalledApps(ctx, profileID)
	if err != nil {
		return nil, storeErr("list installed apps", err)
	}
	for _, ia := range installs {
		if ia.AppID == app.ID {
			cfg := ia.FlowConfig
			return &cfg, nil
		}
	}
	return nil, nil
}
