package app

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"orionos/internal/util"
	"orionos/pkg/domain"
	"orionos/pkg/store"
)

// WorkspacePatch carries optional workspace field updates.
type WorkspacePatch struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

// DockPatch carries optional dock updates; nil fields are left unchanged.
type DockPatch struct {
	Items  *[]domain.DockItem    `json:"items"`
	Config *domain.DockSettings `json:"config"`
}

// CreateWorkspace adds a constellation for the profile. It inherits the
// active workspace's flow and dock and gets a closed window per installed app.
func (a *App) CreateWorkspace(ctx context.Context, profileID, name, description string) (domain.Constellation, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Constellation{}, invalid("workspace name required")
	}
	var created domain.Constellation
	err := a.store.InTx(ctx, func(tx store.Store) error {
		profile, err := loadProfile(ctx, tx, profileID)
		if err != nil {
			return err
		}
		now := a.now()
		created = domain.Constellation{
			ID:          util.NewID(),
			ProfileID:   profileID,
			Name:        name,
			Description: strings.TrimSpace(description),
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		installs, err := tx.ListInstalledApps(ctx, profileID)
		if err != nil {
			return storeErr("list installed apps", err)
		}
		catalog := make([]domain.App, 0, len(installs))
		for _, ia := range installs {
			app, ok, err := tx.GetApp(ctx, ia.AppID)
			if err != nil {
				return storeErr("load app", err)
			}
			if !ok {
				return fmt.Errorf("app %s: %w", ia.AppID, ErrNotFound)
			}
			catalog = append(catalog, app)
		}
		created.DockConfig = defaultDock(catalog)
		if active, ok, err := tx.GetConstellation(ctx, profile.ActiveConstellationID); err != nil {
			return storeErr("load active constellation", err)
		} else if ok {
			created.ActiveFlowID = active.ActiveFlowID
			created.DockConfig = cloneDock(active.DockConfig)
		}
		if err := tx.CreateConstellation(ctx, created); err != nil {
			return storeErr("create constellation", err)
		}
		for i, ia := range installs {
			if _, err := createClosedState(ctx, tx, profileID, created.ID, catalog[i], ia, domain.Position{}, now); err != nil {
				return storeErr("create window", err)
			}
		}
		return nil
	})
	if err != nil {
		return domain.Constellation{}, err
	}
	a.publish(ctx, profileID, domain.Event{Type: domain.EventConstellationChanged, ConstellationID: created.ID})
	return created, nil
}

// ListWorkspaces returns the profile's constellations in creation order.
func (a *App) ListWorkspaces(ctx context.Context, profileID string) ([]domain.Constellation, error) {
	items, err := a.store.ListConstellations(ctx, profileID)
	if err != nil {
		return nil, storeErr("list constellations", err)
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	return items, nil
}

// GetWorkspace returns one constellation with its windows.
func (a *App) GetWorkspace(ctx context.Context, profileID, id string) (domain.Constellation, error) {
	c, err := ownedConstellation(ctx, a.store, profileID, id)
	if err != nil {
		return domain.Constellation{}, err
	}
	return withWindows(ctx, a.store, c)
}

// UpdateWorkspace renames or re-describes a constellation.
func (a *App) UpdateWorkspace(ctx context.Context, profileID, id string, patch WorkspacePatch) (domain.Constellation, error) {
	c, err := ownedConstellation(ctx, a.store, profileID, id)
	if err != nil {
		return domain.Constellation{}, err
	}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return domain.Constellation{}, invalid("workspace name required")
		}
		c.Name = name
	}
	if patch.Description != nil {
		c.Description = strings.TrimSpace(*patch.Description)
	}
	if err := a.store.UpdateConstellation(ctx, c); err != nil {
		return domain.Constellation{}, storeErr("update constellation", err)
	}
	a.publish(ctx, profileID, domain.Event{Type: domain.EventConstellationChanged, ConstellationID: c.ID})
	return c, nil
}

// DeleteWorkspace removes a constellation and its windows. The active
// workspace cannot be deleted.
func (a *App) DeleteWorkspace(ctx context.Context, profileID, id string) error {
	err := a.store.InTx(ctx, func(tx store.Store) error {
		profile, err := loadProfile(ctx, tx, profileID)
		if err != nil {
			return err
		}
		if _, err := ownedConstellation(ctx, tx, profileID, id); err != nil {
			return err
		}
		if profile.ActiveConstellationID == id {
			return fmt.Errorf("%w: cannot delete the active workspace", ErrConflict)
		}
		return storeErr("delete constellation", tx.DeleteConstellation(ctx, id))
	})
	if err != nil {
		return err
	}
	a.publish(ctx, profileID, domain.Event{Type: domain.EventConstellationChanged, ConstellationID: id})
	return nil
}

// SwitchActive makes the constellation active and returns the refreshed
// snapshot read in the same transaction. On failure the active pointer is
// left unchanged.
func (a *App) SwitchActive(ctx context.Context, profileID, constellationID string) (domain.Snapshot, error) {
	var snap domain.Snapshot
	err := a.store.InTx(ctx, func(tx store.Store) error {
		if _, err := ownedConstellation(ctx, tx, profileID, constellationID); err != nil {
			return err
		}
		if err := tx.SetActiveConstellation(ctx, profileID, constellationID); err != nil {
			return storeErr("activate constellation", err)
		}
		var err error
		snap, err = buildSnapshot(ctx, tx, profileID, 1)
		return err
	})
	if err != nil {
		return domain.Snapshot{}, err
	}
	a.publish(ctx, profileID, domain.Event{Type: domain.EventConstellationSwitch, ConstellationID: constellationID})
	return snap, nil
}

// SetWorkspaceFlow points a constellation at one of the profile's flows.
func (a *App) SetWorkspaceFlow(ctx context.Context, profileID, constellationID, flowID string) (domain.Constellation, error) {
	c, err := ownedConstellation(ctx, a.store, profileID, constellationID)
	if err != nil {
		return domain.Constellation{}, err
	}
	if _, err := ownedFlow(ctx, a.store, profileID, flowID); err != nil {
		return domain.Constellation{}, err
	}
	c.ActiveFlowID = flowID
	if err := a.store.UpdateConstellation(ctx, c); err != nil {
		return domain.Constellation{}, storeErr("update constellation", err)
	}
	a.publish(ctx, profileID, domain.Event{Type: domain.EventConstellationChanged, ConstellationID: c.ID})
	return c, nil
}

// UpdateDock replaces dock items and/or settings. Every item must reference
// an app the profile has installed; positions are renumbered densely in
// the requested order.
func (a *App) UpdateDock(ctx context.Context, profileID, constellationID string, patch DockPatch) (domain.Constellation, error) {
	c, err := ownedConstellation(ctx, a.store, profileID, constellationID)
	if err != nil {
		return domain.Constellation{}, err
	}
	if patch.Items != nil {
		installs, err := a.store.ListInstalledApps(ctx, profileID)
		if err != nil {
			return domain.Constellation{}, storeErr("list installed apps", err)
		}
		installed := make(map[string]bool, len(installs))
		for _, ia := range installs {
			installed[ia.AppID] = true
		}
		items := append([]domain.DockItem{}, (*patch.Items)...)
		seen := make(map[string]bool, len(items))
		for _, item := range items {
			if !installed[item.AppID] {
				return domain.Constellation{}, invalid("app %q is not installed", item.AppID)
			}
			if seen[item.AppID] {
				return domain.Constellation{}, invalid("app %q is docked twice", item.AppID)
			}
			seen[item.AppID] = true
		}
		sort.SliceStable(items, func(i, j int) bool { return items[i].Position < items[j].Position })
		for i := range items {
			items[i].Position = i
		}
		c.DockConfig.Items = items
	}
	if patch.Config != nil {
		cfg := *patch.Config
		if !cfg.Position.Valid() {
			return domain.Constellation{}, invalid("dock position %q", cfg.Position)
		}
		if cfg.Size <= 0 {
			return domain.Constellation{}, invalid("dock size must be positive")
		}
		c.DockConfig.Config = cfg
	}
	if err := a.store.UpdateConstellation(ctx, c); err != nil {
		return domain.Constellation{}, storeErr("update constellation", err)
	}
	a.publish(ctx, profileID, domain.Event{Type: domain.EventConstellationChanged, ConstellationID: c.ID})
	return c, nil
}

func withWindows(ctx context.Context, st store.Store, c domain.Constellation) (domain.Constellation, error) {
	states, err := st.ListAppStates(ctx, c.ID)
	if err != nil {
		return domain.Constellation{}, storeErr("list windows", err)
	}
	if err := attachApps(ctx, st, states); err != nil {
		return domain.Constellation{}, err
	}
	c.AppStates = states
	return c, nil
}

func cloneDock(d domain.DockConfig) domain.DockConfig {
	d.Items = append([]domain.DockItem{}, d.Items...)
	return d
}
