package app

import (
	"context"
	"fmt"

	"orionos/pkg/domain"
	"orionos/pkg/window"
)

// FocusWindow records the focused window in the session store. Focus is
// never written to the durable store.
func (a *App) FocusWindow(ctx context.Context, profileID, appStateID string) error {
	s, err := ownedState(ctx, a.store, profileID, appStateID)
	if err != nil {
		return err
	}
	if !s.IsOpen {
		return invalid("window %s is not open", appStateID)
	}
	if err := a.sessions.SetFocus(ctx, profileID, appStateID); err != nil {
		return fmt.Errorf("set focus: %w", err)
	}
	a.publish(ctx, profileID, domain.Event{Type: domain.EventWindowFocused, ConstellationID: s.ConstellationID, AppState: &s})
	return nil
}

// FocusedWindow returns the focused window id, if any.
func (a *App) FocusedWindow(ctx context.Context, profileID string) (string, bool, error) {
	return a.sessions.Focus(ctx, profileID)
}

// StageDrag records in-gesture geometry without touching the durable store.
func (a *App) StageDrag(ctx context.Context, profileID, appStateID string, pos domain.Position, size domain.Size) error {
	s, err := ownedState(ctx, a.store, profileID, appStateID)
	if err != nil {
		return err
	}
	if err := window.ValidateGeometry(pos, size); err != nil {
		return windowErr(err)
	}
	if s.IsMaximized {
		return ErrWindowMaximized
	}
	return a.sessions.StageGeometry(ctx, profileID, appStateID, domain.Geometry{Position: pos, Size: size})
}

// CommitDrag writes the staged geometry through UpdateGeometry and clears it.
func (a *App) CommitDrag(ctx context.Context, profileID, appStateID string) (domain.AppState, error) {
	g, ok, err := a.sessions.StagedGeometry(ctx, profileID, appStateID)
	if err != nil {
		return domain.AppState{}, fmt.Errorf("load staged geometry: %w", err)
	}
	if !ok {
		return domain.AppState{}, fmt.Errorf("staged geometry for %s: %w", appStateID, ErrNotFound)
	}
	s, err := a.UpdateGeometry(ctx, profileID, appStateID, g.Position, g.Size)
	if err != nil {
		return s, err
	}
	if err := a.sessions.ClearStaged(ctx, profileID, appStateID); err != nil {
		return s, fmt.Errorf("clear staged geometry: %w", err)
	}
	return s, nil
}
