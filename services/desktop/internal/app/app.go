package app

import (
	"context"
	"fmt"
	"time"

	"orionos/internal/util"
	"orionos/pkg/apps"
	"orionos/pkg/domain"
	"orionos/pkg/storage"
	"orionos/pkg/store"
)

const (
	defaultStorageLimit = int64(10737418240)
	defaultSessionTTL   = 30 * time.Minute
)

// Publisher fans realtime events out to a profile's connected clients.
type Publisher interface {
	Publish(profileID string, ev domain.Event)
}

// Config holds runtime configuration for the core application.
type Config struct {
	DatabaseURL       string
	Store             store.Store
	Sessions          store.WindowSessionStore
	Objects           storage.ObjectStore
	Registry          *apps.Registry
	Publisher         Publisher
	StorageLimitBytes int64
}

// App is the desktop service core: provisioning, workspaces, windows and the app catalog.
type App struct {
	store        store.Store
	sessions     store.WindowSessionStore
	objects      storage.ObjectStore
	registry     *apps.Registry
	publisher    Publisher
	storageLimit int64
	now          func() time.Time
}

// New constructs the application. A nil Store opens the Postgres store at DatabaseURL.
func New(cfg Config) (*App, error) {
	dataStore := cfg.Store
	if dataStore == nil {
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("database URL required")
		}
		var err error
		dataStore, err = store.NewGormStore(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
	}
	sessions := cfg.Sessions
	if sessions == nil {
		sessions = store.NewMemoryWindowSessionStore(defaultSessionTTL)
	}
	registry := cfg.Registry
	if registry == nil {
		registry = apps.DefaultRegistry()
	}
	publisher := cfg.Publisher
	if publisher == nil {
		publisher = nopPublisher{}
	}
	limit := cfg.StorageLimitBytes
	if limit <= 0 {
		limit = defaultStorageLimit
	}
	return &App{
		store:        dataStore,
		sessions:     sessions,
		objects:      cfg.Objects,
		registry:     registry,
		publisher:    publisher,
		storageLimit: limit,
		now:          func() time.Time { return time.Now().UTC() },
	}, nil
}

// ResolveProfile maps an authenticated identity to its provisioned profile.
func (a *App) ResolveProfile(ctx context.Context, identity domain.Identity) (domain.Profile, error) {
	if identity.ExternalID == "" {
		return domain.Profile{}, ErrUnauthenticated
	}
	profile, ok, err := a.store.GetProfileByExternalID(ctx, identity.ExternalID)
	if err != nil {
		return domain.Profile{}, storeErr("load profile", err)
	}
	if !ok {
		return domain.Profile{}, ErrProfileNotInitialized
	}
	return profile, nil
}

func (a *App) publish(ctx context.Context, profileID string, ev domain.Event) {
	if ev.At.IsZero() {
		ev.At = a.now()
	}
	a.publisher.Publish(profileID, ev)
	util.LoggerFromContext(ctx).Debug("event published", "profile_id", profileID, "type", ev.Type)
}

type nopPublisher struct{}

func (nopPublisher) Publish(string, domain.Event) {}

// loadProfile returns the profile or ErrNotFound.
func loadProfile(ctx context.Context, st store.Store, profileID string) (domain.Profile, error) {
	profile, ok, err := st.GetProfile(ctx, profileID)
	if err != nil {
		return domain.Profile{}, storeErr("load profile", err)
	}
	if !ok {
		return domain.Profile{}, fmt.Errorf("profile %s: %w", profileID, ErrNotFound)
	}
	return profile, nil
}

// ownedConstellation loads a constellation and checks it belongs to profileID.
func ownedConstellation(ctx context.Context, st store.Store, profileID, id string) (domain.Constellation, error) {
	c, ok, err := st.GetConstellation(ctx, id)
	if err != nil {
		return domain.Constellation{}, storeErr("load constellation", err)
	}
	if !ok {
		return domain.Constellation{}, fmt.Errorf("constellation %s: %w", id, ErrNotFound)
	}
	if c.ProfileID != profileID {
		return domain.Constellation{}, fmt.Errorf("constellation %s: %w", id, ErrForbidden)
	}
	return c, nil
}

func ownedInstall(ctx context.Context, st store.Store, profileID, id string) (domain.InstalledApp, error) {
	ia, ok, err := st.GetInstalledApp(ctx, id)
	if err != nil {
		return domain.InstalledApp{}, storeErr("load installed app", err)
	}
	if !ok {
		return domain.InstalledApp{}, fmt.Errorf("installed app %s: %w", id, ErrNotFound)
	}
	if ia.ProfileID != profileID {
		return domain.InstalledApp{}, fmt.Errorf("installed app %s: %w", id, ErrForbidden)
	}
	return ia, nil
}

func ownedFlow(ctx context.Context, st store.Store, profileID, id string) (domain.Flow, error) {
	f, ok, err := st.GetFlow(ctx, id)
	if err != nil {
		return domain.Flow{}, storeErr("load flow", err)
	}
	if !ok {
		return domain.Flow{}, fmt.Errorf("flow %s: %w", id, ErrNotFound)
	}
	if f.ProfileID != profileID {
		return domain.Flow{}, fmt.Errorf("flow %s: %w", id, ErrForbidden)
	}
	return f, nil
}

// ownedState checks ownership through the window's constellation so a
// state row can never be coerced onto another profile.
func ownedState(ctx context.Context, st store.Store, profileID, id string) (domain.AppState, error) {
	s, ok, err := st.GetAppState(ctx, id)
	if err != nil {
		return domain.AppState{}, storeErr("load window", err)
	}
	if !ok {
		return domain.AppState{}, fmt.Errorf("window %s: %w", id, ErrNotFound)
	}
	if s.ProfileID != profileID {
		return domain.AppState{}, fmt.Errorf("window %s: %w", id, ErrForbidden)
	}
	if _, err := ownedConstellation(ctx, st, profileID, s.ConstellationID); err != nil {
		return domain.AppState{}, err
	}
	return s, nil
}

// attachApps fills App and InstalledApp on each state.
func attachApps(ctx context.Context, st store.Store, states []domain.AppState) error {
	appCache := map[string]*domain.App{}
	installCache := map[string]*domain.InstalledApp{}
	for i := range states {
		s := &states[i]
		if cached, ok := appCache[s.AppID]; ok {
			s.App = cached
		} else {
			app, found, err := st.GetApp(ctx, s.AppID)
			if err != nil {
				return storeErr("load app", err)
			}
			if found {
				s.App = &app
			}
			appCache[s.AppID] = s.App
		}
		if cached, ok := installCache[s.InstalledAppID]; ok {
			s.InstalledApp = cached
		} else {
			ia, found, err := st.GetInstalledApp(ctx, s.InstalledAppID)
			if err != nil {
				return storeErr("load installed app", err)
			}
			if found {
				s.InstalledApp = &ia
			}
			installCache[s.InstalledAppID] = s.InstalledApp
		}
	}
	return nil
}
