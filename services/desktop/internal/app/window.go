package app

import (
	"context"
	"errors"
	"fmt"

	"orionos/pkg/apps"
	"orionos/pkg/domain"
	"orionos/pkg/store"
	"orionos/pkg/window"
)

// OpenWindow opens the app's window in the constellation. Single-instance
// apps reuse their existing window. Multi-instance apps reuse a closed
// window when one exists and otherwise get a new one cascaded off the
// open windows of the same app.
func (a *App) OpenWindow(ctx context.Context, profileID, constellationID, installedAppID string) (domain.AppState, error) {
	var opened domain.AppState
	err := a.store.InTx(ctx, func(tx store.Store) error {
		if _, err := ownedConstellation(ctx, tx, profileID, constellationID); err != nil {
			return err
		}
		ia, err := ownedInstall(ctx, tx, profileID, installedAppID)
		if err != nil {
			return err
		}
		app, ok, err := tx.GetApp(ctx, ia.AppID)
		if err != nil {
			return storeErr("load app", err)
		}
		if !ok {
			return fmt.Errorf("app %s: %w", ia.AppID, ErrNotFound)
		}
		all, err := tx.ListAppStates(ctx, constellationID)
		if err != nil {
			return storeErr("list windows", err)
		}
		var existing []domain.AppState
		for _, s := range all {
			if s.InstalledAppID == ia.ID {
				existing = append(existing, s)
			}
		}

		target, reuse := pickWindow(existing, app.Supports(domain.CapMultiInstance))
		if reuse {
			opened = window.Open(target)
			return storeErr("open window", tx.UpdateAppState(ctx, opened))
		}
		var occupied []domain.Position
		base := domain.Position{}
		for i, s := range existing {
			if i == 0 {
				base = s.Position
			}
			if s.IsOpen {
				occupied = append(occupied, s.Position)
			}
		}
		created, err := createClosedState(ctx, tx, profileID, constellationID, app, ia, window.CascadePosition(base, occupied), a.now())
		if err != nil {
			return storeErr("create window", err)
		}
		opened = window.Open(created)
		return storeErr("open window", tx.UpdateAppState(ctx, opened))
	})
	if err != nil {
		return domain.AppState{}, err
	}
	a.publishWindow(ctx, profileID, opened)
	return opened, nil
}

// pickWindow chooses the existing window to reopen, if any.
func pickWindow(existing []domain.AppState, multi bool) (domain.AppState, bool) {
	if len(existing) == 0 {
		return domain.AppState{}, false
	}
	if !multi {
		for _, s := range existing {
			if s.IsOpen {
				return s, true
			}
		}
		return existing[0], true
	}
	for _, s := range existing {
		if !s.IsOpen {
			return s, true
		}
	}
	return domain.AppState{}, false
}

// UpdateGeometry persists a window's position and size. Maximized windows
// keep their restore geometry and reject the write.
func (a *App) UpdateGeometry(ctx context.Context, profileID, appStateID string, pos domain.Position, size domain.Size) (domain.AppState, error) {
	return a.mutateWindow(ctx, profileID, appStateID, func(s domain.AppState) (domain.AppState, error) {
		return window.SetGeometry(s, pos, size)
	})
}

// SetWindowFlags applies open/minimized/maximized changes through the
// window state machine. A rejected transition leaves the record untouched.
func (a *App) SetWindowFlags(ctx context.Context, profileID, appStateID string, flags window.Flags) (domain.AppState, error) {
	if flags.Empty() {
		return domain.AppState{}, invalid("no window flags given")
	}
	return a.mutateWindow(ctx, profileID, appStateID, func(s domain.AppState) (domain.AppState, error) {
		return window.ApplyFlags(s, flags)
	})
}

// CloseWindow marks the window closed and keeps its geometry for the next open.
func (a *App) CloseWindow(ctx context.Context, profileID, appStateID string) (domain.AppState, error) {
	s, err := a.mutateWindow(ctx, profileID, appStateID, func(s domain.AppState) (domain.AppState, error) {
		return window.Close(s), nil
	})
	if err != nil {
		return s, err
	}
	if err := a.sessions.ClearStaged(ctx, profileID, appStateID); err != nil {
		return s, fmt.Errorf("clear staged geometry: %w", err)
	}
	return s, nil
}

// UpdateContentState replaces the app-defined content blob of a window.
func (a *App) UpdateContentState(ctx context.Context, profileID, appStateID string, content map[string]any) (domain.AppState, error) {
	if content == nil {
		content = map[string]any{}
	}
	return a.mutateWindow(ctx, profileID, appStateID, func(s domain.AppState) (domain.AppState, error) {
		s.ContentState = content
		return s, nil
	})
}

// Launch resolves how the shell should render the window's app. Unknown
// apps resolve to a placeholder rather than an error.
func (a *App) Launch(ctx context.Context, profileID, appStateID string) (apps.Launch, error) {
	s, err := ownedState(ctx, a.store, profileID, appStateID)
	if err != nil {
		return apps.Launch{}, err
	}
	app, ok, err := a.store.GetApp(ctx, s.AppID)
	if err != nil {
		return apps.Launch{}, storeErr("load app", err)
	}
	if !ok {
		app = domain.App{ID: s.AppID}
	}
	return a.registry.Resolve(app, s), nil
}

func (a *App) mutateWindow(ctx context.Context, profileID, appStateID string, fn func(domain.AppState) (domain.AppState, error)) (domain.AppState, error) {
	current, err := ownedState(ctx, a.store, profileID, appStateID)
	if err != nil {
		return domain.AppState{}, err
	}
	next, err := fn(current)
	if err != nil {
		return current, windowErr(err)
	}
	if err := a.store.UpdateAppState(ctx, next); err != nil {
		return current, storeErr("update window", err)
	}
	a.publishWindow(ctx, profileID, next)
	return next, nil
}

func (a *App) publishWindow(ctx context.Context, profileID string, s domain.AppState) {
	snapshot := s
	a.publish(ctx, profileID, domain.Event{
		Type:            domain.EventWindowUpdated,
		ConstellationID: s.ConstellationID,
		AppState:        &snapshot,
	})
}

func windowErr(err error) error {
	switch {
	case errors.Is(err, window.ErrMaximized):
		return fmt.Errorf("%w: %v", ErrWindowMaximized, err)
	case errors.Is(err, window.ErrInvalidGeometry), errors.Is(err, window.ErrInvalidTransition):
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return err
}
