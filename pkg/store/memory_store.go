package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"orionos/pkg/domain"
)

// MemoryStore is an in-process Store used by tests and local runs.
// Records are copied on the way in and out, so callers never share maps
// or slices with stored data.
type MemoryStore struct {
	mu   *sync.RWMutex
	data *memData
	inTx bool
}

type memData struct {
	seq            int64
	order          map[string]int64
	profiles       map[string]domain.Profile
	desktops       map[string]domain.Desktop
	drives         map[string]domain.Drive
	streams        map[string]domain.Stream
	flows          map[string]domain.Flow
	apps           map[string]domain.App
	installs       map[string]domain.InstalledApp
	constellations map[string]domain.Constellation
	states         map[string]domain.AppState
}

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		mu: &sync.RWMutex{},
		data: &memData{
			order:          make(map[string]int64),
			profiles:       make(map[string]domain.Profile),
			desktops:       make(map[string]domain.Desktop),
			drives:         make(map[string]domain.Drive),
			streams:        make(map[string]domain.Stream),
			flows:          make(map[string]domain.Flow),
			apps:           make(map[string]domain.App),
			installs:       make(map[string]domain.InstalledApp),
			constellations: make(map[string]domain.Constellation),
			states:         make(map[string]domain.AppState),
		},
	}
}

func (d *memData) clone() *memData {
	return &memData{
		seq:            d.seq,
		order:          cloneMap(d.order),
		profiles:       cloneMap(d.profiles),
		desktops:       cloneMap(d.desktops),
		drives:         cloneMap(d.drives),
		streams:        cloneMap(d.streams),
		flows:          cloneMap(d.flows),
		apps:           cloneMap(d.apps),
		installs:       cloneMap(d.installs),
		constellations: cloneMap(d.constellations),
		states:         cloneMap(d.states),
	}
}

func cloneMap[V any](m map[string]V) map[string]V {
	out := make(map[string]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// InTx runs fn against a private copy of the data and publishes the copy only
// when fn succeeds. Writers are serialized for the duration of fn.
func (s *MemoryStore) InTx(ctx context.Context, fn func(Store) error) error {
	if s.inTx {
		return fn(s)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	draft := &MemoryStore{data: s.data.clone(), inTx: true}
	if err := fn(draft); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.data = draft.data
	return nil
}

func (s *MemoryStore) rlock() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.RLock()
	return s.mu.RUnlock
}

func (s *MemoryStore) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *MemoryStore) track(id string) {
	s.data.seq++
	s.data.order[id] = s.data.seq
}

func (s *MemoryStore) CreateProfile(_ context.Context, p domain.Profile) error {
	defer s.lock()()
	if _, ok := s.data.profiles[p.ID]; ok {
		return fmt.Errorf("%w: profile %s", ErrDuplicate, p.ID)
	}
	for _, existing := range s.data.profiles {
		if existing.ExternalID == p.ExternalID {
			return fmt.Errorf("%w: profile for %s", ErrDuplicate, p.ExternalID)
		}
	}
	s.data.profiles[p.ID] = p
	s.track(p.ID)
	return nil
}

func (s *MemoryStore) GetProfile(_ context.Context, id string) (domain.Profile, bool, error) {
	defer s.rlock()()
	p, ok := s.data.profiles[id]
	return p, ok, nil
}

func (s *MemoryStore) GetProfileByExternalID(_ context.Context, externalID string) (domain.Profile, bool, error) {
	defer s.rlock()()
	for _, p := range s.data.profiles {
		if p.ExternalID == externalID {
			return p, true, nil
		}
	}
	return domain.Profile{}, false, nil
}

func (s *MemoryStore) UpdateProfile(_ context.Context, p domain.Profile) error {
	defer s.lock()()
	existing, ok := s.data.profiles[p.ID]
	if !ok {
		return ErrNotFound
	}
	existing.Name = p.Name
	existing.ImageURL = p.ImageURL
	existing.Email = p.Email
	existing.UpdatedAt = time.Now().UTC()
	s.data.profiles[p.ID] = existing
	return nil
}

func (s *MemoryStore) SetActiveConstellation(_ context.Context, profileID, constellationID string) error {
	defer s.lock()()
	existing, ok := s.data.profiles[profileID]
	if !ok {
		return ErrNotFound
	}
	if constellationID != "" {
		if _, ok := s.data.constellations[constellationID]; !ok {
			return fmt.Errorf("active constellation %s: %w", constellationID, ErrNotFound)
		}
	}
	existing.ActiveConstellationID = constellationID
	existing.UpdatedAt = time.Now().UTC()
	s.data.profiles[profileID] = existing
	return nil
}

func (s *MemoryStore) CreateDesktop(_ context.Context, d domain.Desktop) error {
	defer s.lock()()
	for _, existing := range s.data.desktops {
		if existing.ProfileID == d.ProfileID {
			return fmt.Errorf("%w: desktop for profile %s", ErrDuplicate, d.ProfileID)
		}
	}
	s.data.desktops[d.ID] = d
	s.track(d.ID)
	return nil
}

func (s *MemoryStore) GetDesktopByProfile(_ context.Context, profileID string) (domain.Desktop, bool, error) {
	defer s.rlock()()
	for _, d := range s.data.desktops {
		if d.ProfileID == profileID {
			return d, true, nil
		}
	}
	return domain.Desktop{}, false, nil
}

func (s *MemoryStore) UpdateDesktop(_ context.Context, d domain.Desktop) error {
	defer s.lock()()
	existing, ok := s.data.desktops[d.ID]
	if !ok {
		return ErrNotFound
	}
	existing.Wallpaper = d.Wallpaper
	existing.DockPosition = d.DockPosition
	existing.DockAutoHide = d.DockAutoHide
	existing.MenuBarAutoHide = d.MenuBarAutoHide
	existing.UpdatedAt = time.Now().UTC()
	s.data.desktops[d.ID] = existing
	return nil
}

func (s *MemoryStore) CreateDrive(_ context.Context, d domain.Drive) error {
	defer s.lock()()
	for _, existing := range s.data.drives {
		if existing.ProfileID == d.ProfileID {
			return fmt.Errorf("%w: drive for profile %s", ErrDuplicate, d.ProfileID)
		}
	}
	if d.TotalStorage < 0 || d.TotalStorage > d.StorageLimit {
		return ErrQuotaExceeded
	}
	s.data.drives[d.ID] = d
	s.track(d.ID)
	return nil
}

func (s *MemoryStore) GetDriveByProfile(_ context.Context, profileID string) (domain.Drive, bool, error) {
	defer s.rlock()()
	for _, d := range s.data.drives {
		if d.ProfileID == profileID {
			return d, true, nil
		}
	}
	return domain.Drive{}, false, nil
}

func (s *MemoryStore) AddDriveUsage(_ context.Context, profileID string, delta int64) (domain.Drive, error) {
	if delta < 0 {
		return domain.Drive{}, fmt.Errorf("drive usage delta must not be negative")
	}
	defer s.lock()()
	for id, d := range s.data.drives {
		if d.ProfileID != profileID {
			continue
		}
		if d.TotalStorage+delta > d.StorageLimit {
			return d, ErrQuotaExceeded
		}
		d.TotalStorage += delta
		d.UpdatedAt = time.Now().UTC()
		s.data.drives[id] = d
		return d, nil
	}
	return domain.Drive{}, ErrNotFound
}

func (s *MemoryStore) CreateStream(_ context.Context, st domain.Stream) error {
	defer s.lock()()
	for _, existing := range s.data.streams {
		if existing.ID == st.ID || (existing.ProfileID == st.ProfileID && existing.Name == st.Name) {
			return fmt.Errorf("%w: stream %q", ErrDuplicate, st.Name)
		}
	}
	s.data.streams[st.ID] = st
	s.track(st.ID)
	return nil
}

func (s *MemoryStore) GetStream(_ context.Context, id string) (domain.Stream, bool, error) {
	defer s.rlock()()
	st, ok := s.data.streams[id]
	return st, ok, nil
}

func (s *MemoryStore) GetStreamByName(_ context.Context, profileID, name string) (domain.Stream, bool, error) {
	defer s.rlock()()
	for _, st := range s.data.streams {
		if st.ProfileID == profileID && st.Name == name {
			return st, true, nil
		}
	}
	return domain.Stream{}, false, nil
}

func (s *MemoryStore) ListStreams(_ context.Context, profileID string) ([]domain.Stream, error) {
	defer s.rlock()()
	res := []domain.Stream{}
	for _, st := range s.data.streams {
		if st.ProfileID == profileID {
			res = append(res, st)
		}
	}
	sortByOrder(s.data, res, func(v domain.Stream) string { return v.ID })
	return res, nil
}

func (s *MemoryStore) CreateFlow(_ context.Context, f domain.Flow) error {
	defer s.lock()()
	for _, existing := range s.data.flows {
		if existing.ProfileID == f.ProfileID && existing.Name == f.Name {
			return fmt.Errorf("%w: flow %q", ErrDuplicate, f.Name)
		}
	}
	s.data.flows[f.ID] = cloneFlow(f)
	s.track(f.ID)
	return nil
}

func (s *MemoryStore) GetFlow(_ context.Context, id string) (domain.Flow, bool, error) {
	defer s.rlock()()
	f, ok := s.data.flows[id]
	if !ok {
		return domain.Flow{}, false, nil
	}
	return cloneFlow(f), true, nil
}

func (s *MemoryStore) ListFlows(_ context.Context, profileID string) ([]domain.Flow, error) {
	defer s.rlock()()
	res := []domain.Flow{}
	for _, f := range s.data.flows {
		if f.ProfileID == profileID {
			res = append(res, cloneFlow(f))
		}
	}
	sortByOrder(s.data, res, func(v domain.Flow) string { return v.ID })
	return res, nil
}

func (s *MemoryStore) UpdateFlow(_ context.Context, f domain.Flow) error {
	defer s.lock()()
	existing, ok := s.data.flows[f.ID]
	if !ok {
		return ErrNotFound
	}
	for id, other := range s.data.flows {
		if id != f.ID && other.ProfileID == existing.ProfileID && other.Name == f.Name {
			return fmt.Errorf("%w: flow %q", ErrDuplicate, f.Name)
		}
	}
	existing.Name = f.Name
	existing.Description = f.Description
	existing.Tokens = f.Tokens
	existing.Fonts = f.Fonts
	existing.Assets = f.Assets
	existing.UpdatedAt = time.Now().UTC()
	s.data.flows[f.ID] = cloneFlow(existing)
	return nil
}

func (s *MemoryStore) CreateApp(_ context.Context, a domain.App) error {
	defer s.lock()()
	return s.createAppLocked(a)
}

func (s *MemoryStore) createAppLocked(a domain.App) error {
	for _, existing := range s.data.apps {
		if existing.Name == a.Name {
			return fmt.Errorf("%w: app %q", ErrDuplicate, a.Name)
		}
	}
	s.data.apps[a.ID] = cloneApp(a)
	s.track(a.ID)
	return nil
}

func (s *MemoryStore) EnsureApp(_ context.Context, a domain.App) (domain.App, error) {
	defer s.lock()()
	for _, existing := range s.data.apps {
		if existing.Name == a.Name {
			return cloneApp(existing), nil
		}
	}
	if err := s.createAppLocked(a); err != nil {
		return domain.App{}, err
	}
	return cloneApp(a), nil
}

func (s *MemoryStore) GetApp(_ context.Context, id string) (domain.App, bool, error) {
	defer s.rlock()()
	a, ok := s.data.apps[id]
	if !ok {
		return domain.App{}, false, nil
	}
	return cloneApp(a), true, nil
}

func (s *MemoryStore) GetAppByName(_ context.Context, name string) (domain.App, bool, error) {
	defer s.rlock()()
	for _, a := range s.data.apps {
		if a.Name == name {
			return cloneApp(a), true, nil
		}
	}
	return domain.App{}, false, nil
}

func (s *MemoryStore) ListApps(_ context.Context) ([]domain.App, error) {
	defer s.rlock()()
	res := make([]domain.App, 0, len(s.data.apps))
	for _, a := range s.data.apps {
		res = append(res, cloneApp(a))
	}
	sortByOrder(s.data, res, func(v domain.App) string { return v.ID })
	return res, nil
}

func (s *MemoryStore) CreateInstalledApp(_ context.Context, ia domain.InstalledApp) error {
	defer s.lock()()
	for _, existing := range s.data.installs {
		if existing.ProfileID == ia.ProfileID && existing.AppID == ia.AppID {
			return fmt.Errorf("%w: app %s already installed", ErrDuplicate, ia.AppID)
		}
	}
	if _, ok := s.data.apps[ia.AppID]; !ok {
		return fmt.Errorf("install app %s: %w", ia.AppID, ErrNotFound)
	}
	s.data.installs[ia.ID] = cloneInstall(ia)
	s.track(ia.ID)
	return nil
}

func (s *MemoryStore) GetInstalledApp(_ context.Context, id string) (domain.InstalledApp, bool, error) {
	defer s.rlock()()
	ia, ok := s.data.installs[id]
	if !ok {
		return domain.InstalledApp{}, false, nil
	}
	return cloneInstall(ia), true, nil
}

func (s *MemoryStore) ListInstalledApps(_ context.Context, profileID string) ([]domain.InstalledApp, error) {
	defer s.rlock()()
	res := []domain.InstalledApp{}
	for _, ia := range s.data.installs {
		if ia.ProfileID == profileID {
			res = append(res, cloneInstall(ia))
		}
	}
	sortByOrder(s.data, res, func(v domain.InstalledApp) string { return v.ID })
	return res, nil
}

func (s *MemoryStore) DeleteInstalledApp(_ context.Context, id string) error {
	defer s.lock()()
	if _, ok := s.data.installs[id]; !ok {
		return ErrNotFound
	}
	delete(s.data.installs, id)
	delete(s.data.order, id)
	for sid, st := range s.data.states {
		if st.InstalledAppID == id {
			delete(s.data.states, sid)
			delete(s.data.order, sid)
		}
	}
	return nil
}

func (s *MemoryStore) CreateConstellation(_ context.Context, c domain.Constellation) error {
	defer s.lock()()
	for _, existing := range s.data.constellations {
		if existing.ProfileID == c.ProfileID && existing.Name == c.Name {
			return fmt.Errorf("%w: constellation %q", ErrDuplicate, c.Name)
		}
	}
	c.AppStates = nil
	s.data.constellations[c.ID] = cloneConstellation(c)
	s.track(c.ID)
	return nil
}

func (s *MemoryStore) GetConstellation(_ context.Context, id string) (domain.Constellation, bool, error) {
	defer s.rlock()()
	c, ok := s.data.constellations[id]
	if !ok {
		return domain.Constellation{}, false, nil
	}
	return cloneConstellation(c), true, nil
}

func (s *MemoryStore) ListConstellations(_ context.Context, profileID string) ([]domain.Constellation, error) {
	defer s.rlock()()
	res := []domain.Constellation{}
	for _, c := range s.data.constellations {
		if c.ProfileID == profileID {
			res = append(res, cloneConstellation(c))
		}
	}
	sortByOrder(s.data, res, func(v domain.Constellation) string { return v.ID })
	return res, nil
}

func (s *MemoryStore) UpdateConstellation(_ context.Context, c domain.Constellation) error {
	defer s.lock()()
	existing, ok := s.data.constellations[c.ID]
	if !ok {
		return ErrNotFound
	}
	for id, other := range s.data.constellations {
		if id != c.ID && other.ProfileID == existing.ProfileID && other.Name == c.Name {
			return fmt.Errorf("%w: constellation %q", ErrDuplicate, c.Name)
		}
	}
	existing.Name = c.Name
	existing.Description = c.Description
	existing.ActiveFlowID = c.ActiveFlowID
	existing.DockConfig = c.DockConfig
	existing.UpdatedAt = time.Now().UTC()
	s.data.constellations[c.ID] = cloneConstellation(existing)
	return nil
}

func (s *MemoryStore) DeleteConstellation(_ context.Context, id string) error {
	defer s.lock()()
	if _, ok := s.data.constellations[id]; !ok {
		return ErrNotFound
	}
	delete(s.data.constellations, id)
	delete(s.data.order, id)
	for sid, st := range s.data.states {
		if st.ConstellationID == id {
			delete(s.data.states, sid)
			delete(s.data.order, sid)
		}
	}
	for pid, p := range s.data.profiles {
		if p.ActiveConstellationID == id {
			p.ActiveConstellationID = ""
			s.data.profiles[pid] = p
		}
	}
	return nil
}

func (s *MemoryStore) CreateAppState(_ context.Context, st domain.AppState) error {
	defer s.lock()()
	if _, ok := s.data.states[st.ID]; ok {
		return fmt.Errorf("%w: app state %s", ErrDuplicate, st.ID)
	}
	if _, ok := s.data.constellations[st.ConstellationID]; !ok {
		return fmt.Errorf("app state constellation %s: %w", st.ConstellationID, ErrNotFound)
	}
	if _, ok := s.data.installs[st.InstalledAppID]; !ok {
		return fmt.Errorf("app state install %s: %w", st.InstalledAppID, ErrNotFound)
	}
	s.data.states[st.ID] = cloneState(st)
	s.track(st.ID)
	return nil
}

func (s *MemoryStore) GetAppState(_ context.Context, id string) (domain.AppState, bool, error) {
	defer s.rlock()()
	st, ok := s.data.states[id]
	if !ok {
		return domain.AppState{}, false, nil
	}
	return cloneState(st), true, nil
}

func (s *MemoryStore) ListAppStates(_ context.Context, constellationID string) ([]domain.AppState, error) {
	defer s.rlock()()
	res := []domain.AppState{}
	for _, st := range s.data.states {
		if st.ConstellationID == constellationID {
			res = append(res, cloneState(st))
		}
	}
	sortByOrder(s.data, res, func(v domain.AppState) string { return v.ID })
	return res, nil
}

func (s *MemoryStore) UpdateAppState(_ context.Context, st domain.AppState) error {
	defer s.lock()()
	existing, ok := s.data.states[st.ID]
	if !ok {
		return ErrNotFound
	}
	if st.IsMinimized && st.IsMaximized {
		return fmt.Errorf("app state %s: minimized and maximized", st.ID)
	}
	existing.Position = st.Position
	existing.Size = st.Size
	existing.Restore = st.Restore
	existing.IsOpen = st.IsOpen
	existing.IsMinimized = st.IsMinimized
	existing.IsMaximized = st.IsMaximized
	existing.ContentState = st.ContentState
	existing.UpdatedAt = time.Now().UTC()
	s.data.states[st.ID] = cloneState(existing)
	return nil
}

func (s *MemoryStore) DeleteAppStatesByInstalledApp(_ context.Context, installedAppID string) error {
	defer s.lock()()
	for id, st := range s.data.states {
		if st.InstalledAppID == installedAppID {
			delete(s.data.states, id)
			delete(s.data.order, id)
		}
	}
	return nil
}

// sortByOrder sorts a result slice by insertion order.
func sortByOrder[T any](d *memData, items []T, id func(T) string) {
	sort.SliceStable(items, func(i, j int) bool {
		return d.order[id(items[i])] < d.order[id(items[j])]
	})
}

func cloneFlow(f domain.Flow) domain.Flow {
	f.Tokens = append([]domain.Token{}, f.Tokens...)
	fonts := make([]domain.Font, len(f.Fonts))
	for i, font := range f.Fonts {
		font.Variants = append([]string{}, font.Variants...)
		fonts[i] = font
	}
	f.Fonts = fonts
	f.Assets = append([]domain.Asset{}, f.Assets...)
	return f
}

func cloneApp(a domain.App) domain.App {
	a.Features = append([]domain.Capability{}, a.Features...)
	return a
}

func cloneInstall(ia domain.InstalledApp) domain.InstalledApp {
	ia.Settings = cloneJSON(ia.Settings)
	ia.FlowConfig = domain.FlowOverride{
		StyleTokens: cloneJSON(ia.FlowConfig.StyleTokens),
		Overrides:   cloneJSON(ia.FlowConfig.Overrides),
	}
	return ia
}

func cloneConstellation(c domain.Constellation) domain.Constellation {
	c.DockConfig.Items = append([]domain.DockItem{}, c.DockConfig.Items...)
	c.AppStates = nil
	return c
}

func cloneState(st domain.AppState) domain.AppState {
	if st.Restore != nil {
		r := *st.Restore
		st.Restore = &r
	}
	st.ContentState = cloneJSON(st.ContentState)
	st.App = nil
	st.InstalledApp = nil
	return st
}

func cloneJSON(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneJSON(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}
