package app

import (
	"context"
	"fmt"
	"strings"

	"orionos/pkg/domain"
)

// DesktopPatch carries optional shell setting updates.
type DesktopPatch struct {
	Wallpaper       *string          `json:"wallpaper"`
	DockPosition    *domain.DockEdge `json:"dockPosition"`
	DockAutoHide    *bool            `json:"dockAutoHide"`
	MenuBarAutoHide *bool            `json:"menuBarAutoHide"`
}

// GetDesktop returns the profile's desktop singleton.
func (a *App) GetDesktop(ctx context.Context, profileID string) (domain.Desktop, error) {
	d, ok, err := a.store.GetDesktopByProfile(ctx, profileID)
	if err != nil {
		return domain.Desktop{}, storeErr("load desktop", err)
	}
	if !ok {
		return domain.Desktop{}, fmt.Errorf("desktop for %s: %w", profileID, ErrNotFound)
	}
	return d, nil
}

// UpdateDesktopSettings applies the patch to the desktop singleton.
func (a *App) UpdateDesktopSettings(ctx context.Context, profileID string, patch DesktopPatch) (domain.Desktop, error) {
	d, err := a.GetDesktop(ctx, profileID)
	if err != nil {
		return domain.Desktop{}, err
	}
	if patch.Wallpaper != nil {
		wallpaper := strings.TrimSpace(*patch.Wallpaper)
		if wallpaper == "" {
			return domain.Desktop{}, invalid("wallpaper must not be empty")
		}
		d.Wallpaper = wallpaper
	}
	if patch.DockPosition != nil {
		if !patch.DockPosition.Valid() {
			return domain.Desktop{}, invalid("dock position %q", *patch.DockPosition)
		}
		d.DockPosition = *patch.DockPosition
	}
	if patch.DockAutoHide != nil {
		d.DockAutoHide = *patch.DockAutoHide
	}
	if patch.MenuBarAutoHide != nil {
		d.MenuBarAutoHide = *patch.MenuBarAutoHide
	}
	if err := a.store.UpdateDesktop(ctx, d); err != nil {
		return domain.Desktop{}, storeErr("update desktop", err)
	}
	updated := d
	a.publish(ctx, profileID, domain.Event{Type: domain.EventDesktopUpdated, Desktop: &updated})
	return d, nil
}
