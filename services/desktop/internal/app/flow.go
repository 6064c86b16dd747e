package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"orionos/internal/util"
	"orionos/pkg/domain"
	"orionos/pkg/theme"
)

// FlowInput describes a new flow. Nil token sets are cloned from the
// profile's active flow; an empty StreamID files it under the System stream.
type FlowInput struct {
	StreamID    string         `json:"streamId"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Tokens      []domain.Token `json:"tokens"`
	Fonts       []domain.Font  `json:"fonts"`
	Assets      []domain.Asset `json:"assets"`
}

// FlowPatch carries optional flow updates; nil fields are left unchanged.
type FlowPatch struct {
	Name        *string        `json:"name"`
	Description *string        `json:"description"`
	Tokens      []domain.Token `json:"tokens"`
	Fonts       []domain.Font  `json:"fonts"`
	Assets      []domain.Asset `json:"assets"`
}

// ListFlows returns the profile's flows.
func (a *App) ListFlows(ctx context.Context, profileID string) ([]domain.Flow, error) {
	items, err := a.store.ListFlows(ctx, profileID)
	if err != nil {
		return nil, storeErr("list flows", err)
	}
	return items, nil
}

// CreateFlow adds a user flow. User flows are never system flows.
func (a *App) CreateFlow(ctx context.Context, profileID string, in FlowInput) (domain.Flow, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return domain.Flow{}, invalid("flow name required")
	}
	stream, err := a.flowStream(ctx, profileID, strings.TrimSpace(in.StreamID))
	if err != nil {
		return domain.Flow{}, err
	}
	base, err := a.baseFlow(ctx, profileID)
	if err != nil {
		return domain.Flow{}, err
	}
	now := a.now()
	flow := domain.Flow{
		ID:          util.NewID(),
		ProfileID:   profileID,
		StreamID:    stream.ID,
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		Tokens:      orDefault(in.Tokens, base.Tokens),
		Fonts:       orDefault(in.Fonts, base.Fonts),
		Assets:      orDefault(in.Assets, base.Assets),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := theme.Validate(flow.Tokens, flow.Fonts, flow.Assets); err != nil {
		return domain.Flow{}, flowErr(err)
	}
	if err := a.store.CreateFlow(ctx, flow); err != nil {
		return domain.Flow{}, storeErr("create flow", err)
	}
	return flow, nil
}

// UpdateFlow edits a user flow. System flows are read-only.
func (a *App) UpdateFlow(ctx context.Context, profileID, flowID string, patch FlowPatch) (domain.Flow, error) {
	flow, err := ownedFlow(ctx, a.store, profileID, flowID)
	if err != nil {
		return domain.Flow{}, err
	}
	if flow.IsSystem {
		return domain.Flow{}, fmt.Errorf("flow %s is a system flow: %w", flowID, ErrForbidden)
	}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return domain.Flow{}, invalid("flow name required")
		}
		flow.Name = name
	}
	if patch.Description != nil {
		flow.Description = strings.TrimSpace(*patch.Description)
	}
	flow.Tokens = orDefault(patch.Tokens, flow.Tokens)
	flow.Fonts = orDefault(patch.Fonts, flow.Fonts)
	flow.Assets = orDefault(patch.Assets, flow.Assets)
	if err := theme.Validate(flow.Tokens, flow.Fonts, flow.Assets); err != nil {
		return domain.Flow{}, flowErr(err)
	}
	if err := a.store.UpdateFlow(ctx, flow); err != nil {
		return domain.Flow{}, storeErr("update flow", err)
	}
	return flow, nil
}

// ListStreams returns the profile's flow streams.
func (a *App) ListStreams(ctx context.Context, profileID string) ([]domain.Stream, error) {
	items, err := a.store.ListStreams(ctx, profileID)
	if err != nil {
		return nil, storeErr("list streams", err)
	}
	return items, nil
}

// CreateStream adds a named group for flows. Names are unique per profile.
func (a *App) CreateStream(ctx context.Context, profileID, name, description string) (domain.Stream, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Stream{}, invalid("stream name required")
	}
	if _, err := loadProfile(ctx, a.store, profileID); err != nil {
		return domain.Stream{}, err
	}
	now := a.now()
	stream := domain.Stream{
		ID:          util.NewID(),
		ProfileID:   profileID,
		Name:        name,
		Description: strings.TrimSpace(description),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := a.store.CreateStream(ctx, stream); err != nil {
		return domain.Stream{}, storeErr("create stream", err)
	}
	return stream, nil
}

// flowStream resolves the stream a new flow is filed under.
func (a *App) flowStream(ctx context.Context, profileID, streamID string) (domain.Stream, error) {
	if streamID == "" {
		// Profiles provisioned before streams existed have none; their
		// flows stay unfiled.
		stream, _, err := a.store.GetStreamByName(ctx, profileID, SystemStreamName)
		if err != nil {
			return domain.Stream{}, storeErr("load stream", err)
		}
		return stream, nil
	}
	stream, ok, err := a.store.GetStream(ctx, streamID)
	if err != nil {
		return domain.Stream{}, storeErr("load stream", err)
	}
	if !ok {
		return domain.Stream{}, fmt.Errorf("stream %s: %w", streamID, ErrNotFound)
	}
	if stream.ProfileID != profileID {
		return domain.Stream{}, fmt.Errorf("stream %s: %w", streamID, ErrForbidden)
	}
	return stream, nil
}

// baseFlow is the active workspace's flow, or the profile's system flow.
func (a *App) baseFlow(ctx context.Context, profileID string) (domain.Flow, error) {
	profile, err := loadProfile(ctx, a.store, profileID)
	if err != nil {
		return domain.Flow{}, err
	}
	if c, ok, err := a.store.GetConstellation(ctx, profile.ActiveConstellationID); err != nil {
		return domain.Flow{}, storeErr("load constellation", err)
	} else if ok && c.ActiveFlowID != "" {
		if f, ok, err := a.store.GetFlow(ctx, c.ActiveFlowID); err != nil {
			return domain.Flow{}, storeErr("load flow", err)
		} else if ok {
			return f, nil
		}
	}
	flows, err := a.store.ListFlows(ctx, profileID)
	if err != nil {
		return domain.Flow{}, storeErr("list flows", err)
	}
	for _, f := range flows {
		if f.IsSystem {
			return f, nil
		}
	}
	tokens, fonts, assets := theme.Zenith()
	return domain.Flow{Tokens: tokens, Fonts: fonts, Assets: assets}, nil
}

func orDefault[T any](value, fallback []T) []T {
	if value != nil {
		return value
	}
	return append([]T{}, fallback...)
}

func flowErr(err error) error {
	if errors.Is(err, theme.ErrInvalidToken) {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return err
}
