package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"orionos/internal/util"
	"orionos/pkg/apps"
	"orionos/pkg/domain"
	"orionos/pkg/store"
	"orionos/pkg/theme"
)

const (
	DefaultWallpaper         = "/wallpapers/default-black.jpg"
	DefaultConstellationName = "Default Workspace"
	defaultConstellationDesc = "Primary workspace environment"
	SystemStreamName         = "System"
	systemStreamDesc         = "System-wide flows and configurations"
	defaultDockSize          = 68
)

// Provision creates the full environment for a new identity in one
// transaction. An identity that is already provisioned gets its existing
// environment back with no writes.
func (a *App) Provision(ctx context.Context, identity domain.Identity, custom domain.Customization) (domain.Environment, error) {
	identity.ExternalID = strings.TrimSpace(identity.ExternalID)
	if identity.ExternalID == "" {
		return domain.Environment{}, ErrUnauthenticated
	}
	logger := util.LoggerFromContext(ctx)

	env, ok, err := loadEnvironment(ctx, a.store, identity.ExternalID)
	if err != nil {
		return domain.Environment{}, err
	}
	if ok {
		logger.Debug("profile already provisioned", "profile_id", env.Profile.ID)
		return env, nil
	}

	err = a.store.InTx(ctx, func(tx store.Store) error {
		var txErr error
		env, txErr = a.provisionTx(ctx, tx, identity, custom)
		return txErr
	})
	if err != nil {
		// A concurrent request for the same identity may have won the race.
		if errors.Is(err, store.ErrDuplicate) {
			if existing, found, loadErr := loadEnvironment(ctx, a.store, identity.ExternalID); loadErr == nil && found {
				return existing, nil
			}
		}
		return domain.Environment{}, storeErr("provision", err)
	}

	installedIDs := make([]string, 0, len(env.InstalledApps))
	for _, ia := range env.InstalledApps {
		installedIDs = append(installedIDs, ia.ID)
	}
	logger.Info("provisioning complete",
		"profile_id", env.Profile.ID,
		"desktop_id", env.Desktop.ID,
		"drive_id", env.Drive.ID,
		"stream_id", env.Stream.ID,
		"constellation_id", env.Constellation.ID,
		"flow_id", env.Flow.ID,
		"installed_app_ids", installedIDs,
		"total_storage", strconv.FormatInt(env.Drive.TotalStorage, 10),
		"storage_limit", strconv.FormatInt(env.Drive.StorageLimit, 10),
	)
	return env, nil
}

func (a *App) provisionTx(ctx context.Context, tx store.Store, identity domain.Identity, custom domain.Customization) (domain.Environment, error) {
	now := a.now()
	env := domain.Environment{}

	profile, found, err := tx.GetProfileByExternalID(ctx, identity.ExternalID)
	if err != nil {
		return env, err
	}
	if !found {
		profile = domain.Profile{
			ID:         util.NewID(),
			ExternalID: identity.ExternalID,
			Name:       displayName(identity, custom),
			ImageURL:   firstNonEmpty(custom.ImageURL, identity.ImageURL),
			Email:      primaryEmail(identity),
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := tx.CreateProfile(ctx, profile); err != nil {
			return env, fmt.Errorf("create profile: %w", err)
		}
	}

	desktop, found, err := tx.GetDesktopByProfile(ctx, profile.ID)
	if err != nil {
		return env, err
	}
	if !found {
		desktop = domain.Desktop{
			ID:              util.NewID(),
			ProfileID:       profile.ID,
			Wallpaper:       firstNonEmpty(custom.Wallpaper, DefaultWallpaper),
			DockPosition:    domain.DockBottom,
			DockAutoHide:    true,
			MenuBarAutoHide: false,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := tx.CreateDesktop(ctx, desktop); err != nil {
			return env, fmt.Errorf("create desktop: %w", err)
		}
	}

	drive, found, err := tx.GetDriveByProfile(ctx, profile.ID)
	if err != nil {
		return env, err
	}
	if !found {
		drive = domain.Drive{
			ID:           util.NewID(),
			ProfileID:    profile.ID,
			StorageLimit: a.storageLimit,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := tx.CreateDrive(ctx, drive); err != nil {
			return env, fmt.Errorf("create drive: %w", err)
		}
	}

	stream, err := ensureSystemStream(ctx, tx, profile.ID, now)
	if err != nil {
		return env, err
	}

	flow, err := ensureSystemFlow(ctx, tx, profile.ID, stream.ID, now)
	if err != nil {
		return env, err
	}

	core := make([]domain.App, 0, 2)
	for _, descriptor := range apps.CoreApps() {
		descriptor.ID = util.NewID()
		descriptor.CreatedAt, descriptor.UpdatedAt = now, now
		app, err := tx.EnsureApp(ctx, descriptor)
		if err != nil {
			return env, fmt.Errorf("ensure app %s: %w", descriptor.Name, err)
		}
		core = append(core, app)
	}

	installs, err := ensureInstalls(ctx, tx, profile.ID, core, now)
	if err != nil {
		return env, err
	}

	// A request that passed the pre-check before another one committed must
	// not add a second workspace.
	if profile.ActiveConstellationID != "" {
		active, ok, err := tx.GetConstellation(ctx, profile.ActiveConstellationID)
		if err != nil {
			return env, err
		}
		if ok {
			return environmentFrom(ctx, tx, profile, desktop, drive, stream, flow, active)
		}
	}

	constellation := domain.Constellation{
		ID:           util.NewID(),
		ProfileID:    profile.ID,
		Name:         firstNonEmpty(strings.TrimSpace(custom.ConstellationName), DefaultConstellationName),
		Description:  defaultConstellationDesc,
		ActiveFlowID: flow.ID,
		DockConfig:   defaultDock(core),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := tx.CreateConstellation(ctx, constellation); err != nil {
		return env, fmt.Errorf("create constellation: %w", err)
	}
	for i, app := range core {
		if _, err := createClosedState(ctx, tx, profile.ID, constellation.ID, app, installs[i], domain.Position{}, now); err != nil {
			return env, err
		}
	}
	if err := tx.SetActiveConstellation(ctx, profile.ID, constellation.ID); err != nil {
		return env, fmt.Errorf("activate constellation: %w", err)
	}
	profile.ActiveConstellationID = constellation.ID
	return environmentFrom(ctx, tx, profile, desktop, drive, stream, flow, constellation)
}

func environmentFrom(ctx context.Context, st store.Store, profile domain.Profile, desktop domain.Desktop, drive domain.Drive, stream domain.Stream, flow domain.Flow, constellation domain.Constellation) (domain.Environment, error) {
	states, err := st.ListAppStates(ctx, constellation.ID)
	if err != nil {
		return domain.Environment{}, err
	}
	constellation.AppStates = states
	installs, err := st.ListInstalledApps(ctx, profile.ID)
	if err != nil {
		return domain.Environment{}, err
	}
	return domain.Environment{
		Profile:       profile,
		Desktop:       desktop,
		Drive:         drive,
		Stream:        stream,
		Constellation: constellation,
		Flow:          flow,
		InstalledApps: installs,
	}, nil
}

// loadEnvironment returns the provisioned environment for an identity. It
// reports false unless the profile, its singletons and its active
// constellation all exist.
func loadEnvironment(ctx context.Context, st store.Store, externalID string) (domain.Environment, bool, error) {
	env := domain.Environment{}
	profile, ok, err := st.GetProfileByExternalID(ctx, externalID)
	if err != nil || !ok {
		return env, false, storeErr("load profile", err)
	}
	if profile.ActiveConstellationID == "" {
		return env, false, nil
	}
	desktop, ok, err := st.GetDesktopByProfile(ctx, profile.ID)
	if err != nil || !ok {
		return env, false, storeErr("load desktop", err)
	}
	drive, ok, err := st.GetDriveByProfile(ctx, profile.ID)
	if err != nil || !ok {
		return env, false, storeErr("load drive", err)
	}
	constellation, ok, err := st.GetConstellation(ctx, profile.ActiveConstellationID)
	if err != nil || !ok {
		return env, false, storeErr("load constellation", err)
	}
	states, err := st.ListAppStates(ctx, constellation.ID)
	if err != nil {
		return env, false, storeErr("load windows", err)
	}
	constellation.AppStates = states
	var flow domain.Flow
	if constellation.ActiveFlowID != "" {
		flow, _, err = st.GetFlow(ctx, constellation.ActiveFlowID)
		if err != nil {
			return env, false, storeErr("load flow", err)
		}
	}
	installs, err := st.ListInstalledApps(ctx, profile.ID)
	if err != nil {
		return env, false, storeErr("load installed apps", err)
	}
	stream, _, err := st.GetStreamByName(ctx, profile.ID, SystemStreamName)
	if err != nil {
		return env, false, storeErr("load stream", err)
	}
	return domain.Environment{
		Profile:       profile,
		Desktop:       desktop,
		Drive:         drive,
		Stream:        stream,
		Constellation: constellation,
		Flow:          flow,
		InstalledApps: installs,
	}, true, nil
}

func ensureSystemStream(ctx context.Context, tx store.Store, profileID string, now time.Time) (domain.Stream, error) {
	stream, ok, err := tx.GetStreamByName(ctx, profileID, SystemStreamName)
	if err != nil || ok {
		return stream, err
	}
	stream = domain.Stream{
		ID:          util.NewID(),
		ProfileID:   profileID,
		Name:        SystemStreamName,
		Description: systemStreamDesc,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := tx.CreateStream(ctx, stream); err != nil {
		return domain.Stream{}, fmt.Errorf("create stream: %w", err)
	}
	return stream, nil
}

func ensureSystemFlow(ctx context.Context, tx store.Store, profileID, streamID string, now time.Time) (domain.Flow, error) {
	flows, err := tx.ListFlows(ctx, profileID)
	if err != nil {
		return domain.Flow{}, err
	}
	for _, f := range flows {
		if f.IsSystem && f.Name == theme.ZenithName {
			return f, nil
		}
	}
	tokens, fonts, assets := theme.Zenith()
	flow := domain.Flow{
		ID:          util.NewID(),
		ProfileID:   profileID,
		StreamID:    streamID,
		Name:        theme.ZenithName,
		Description: theme.ZenithDescription,
		IsSystem:    true,
		Tokens:      tokens,
		Fonts:       fonts,
		Assets:      assets,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := tx.CreateFlow(ctx, flow); err != nil {
		return domain.Flow{}, fmt.Errorf("create flow: %w", err)
	}
	return flow, nil
}

// ensureInstalls returns one install per app, creating the missing ones.
func ensureInstalls(ctx context.Context, tx store.Store, profileID string, catalog []domain.App, now time.Time) ([]domain.InstalledApp, error) {
	existing, err := tx.ListInstalledApps(ctx, profileID)
	if err != nil {
		return nil, err
	}
	byApp := make(map[string]domain.InstalledApp, len(existing))
	for _, ia := range existing {
		byApp[ia.AppID] = ia
	}
	out := make([]domain.InstalledApp, 0, len(catalog))
	for _, app := range catalog {
		if ia, ok := byApp[app.ID]; ok {
			out = append(out, ia)
			continue
		}
		ia := newInstall(profileID, app.ID, now)
		if err := tx.CreateInstalledApp(ctx, ia); err != nil {
			return nil, fmt.Errorf("install %s: %w", app.Name, err)
		}
		out = append(out, ia)
	}
	return out, nil
}

func newInstall(profileID, appID string, now time.Time) domain.InstalledApp {
	return domain.InstalledApp{
		ID:        util.NewID(),
		ProfileID: profileID,
		AppID:     appID,
		Settings:  map[string]any{},
		FlowConfig: domain.FlowOverride{
			StyleTokens: map[string]any{},
			Overrides:   map[string]any{},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func createClosedState(ctx context.Context, tx store.Store, profileID, constellationID string, app domain.App, ia domain.InstalledApp, pos domain.Position, now time.Time) (domain.AppState, error) {
	s := domain.AppState{
		ID:              util.NewID(),
		ProfileID:       profileID,
		AppID:           app.ID,
		InstalledAppID:  ia.ID,
		ConstellationID: constellationID,
		Position:        pos,
		Size:            domain.Size{Width: app.DefaultWindow.Width, Height: app.DefaultWindow.Height},
		ContentState:    map[string]any{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := tx.CreateAppState(ctx, s); err != nil {
		return domain.AppState{}, fmt.Errorf("create window for %s: %w", app.Name, err)
	}
	return s, nil
}

func defaultDock(catalog []domain.App) domain.DockConfig {
	items := make([]domain.DockItem, 0, len(catalog))
	for i, app := range catalog {
		items = append(items, domain.DockItem{AppID: app.ID, Position: i})
	}
	return domain.DockConfig{
		Items: items,
		Config: domain.DockSettings{
			Position:      domain.DockBottom,
			AutoHide:      true,
			Magnification: true,
			Size:          defaultDockSize,
		},
	}
}

func displayName(identity domain.Identity, custom domain.Customization) string {
	if name := strings.TrimSpace(custom.Name); name != "" {
		return name
	}
	return strings.TrimSpace(strings.TrimSpace(identity.FirstName) + " " + strings.TrimSpace(identity.LastName))
}

func primaryEmail(identity domain.Identity) string {
	for _, addr := range identity.EmailAddresses {
		if addr = strings.TrimSpace(addr); addr != "" {
			return addr
		}
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
