package apps

import (
	"fmt"
	"sort"
	"sync"

	"orionos/pkg/domain"
)

// Launch tells the shell how to mount a window's content.
type Launch struct {
	App          string              `json:"app"`
	Entry        string              `json:"entry,omitempty"`
	Capabilities []domain.Capability `json:"capabilities"`
	Placeholder  bool                `json:"placeholder"`
	Message      string              `json:"message,omitempty"`
}

// Handler renders one app by name.
type Handler interface {
	Name() string
	Launch(app domain.App, state domain.AppState) Launch
}

// Registry maps app names to handlers. Unknown names resolve to a
// placeholder instead of failing.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register adds a handler; registering a name twice is an error.
func (r *Registry) Register(h Handler) error {
	if h == nil || h.Name() == "" {
		return fmt.Errorf("register handler: name is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.handlers[h.Name()]; ok {
		return fmt.Errorf("register handler %q: already registered", h.Name())
	}
	r.handlers[h.Name()] = h
	return nil
}

// Resolve returns the launch descriptor for a window.
func (r *Registry) Resolve(app domain.App, state domain.AppState) Launch {
	r.mu.RLock()
	h, ok := r.handlers[app.Name]
	r.mu.RUnlock()
	if !ok {
		return Launch{
			App:          app.Name,
			Capabilities: []domain.Capability{},
			Placeholder:  true,
			Message:      "App not found",
		}
	}
	return h.Launch(app, state)
}

// Names returns the registered handler names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type staticHandler struct {
	name  string
	entry string
}

// Static returns a handler that mounts a fixed client entry point.
func Static(name, entry string) Handler {
	return staticHandler{name: name, entry: entry}
}

func (h staticHandler) Name() string { return h.name }

func (h staticHandler) Launch(app domain.App, _ domain.AppState) Launch {
	caps := make([]domain.Capability, len(app.Features))
	copy(caps, app.Features)
	return Launch{App: h.name, Entry: h.entry, Capabilities: caps}
}

// DefaultRegistry registers handlers for the core apps.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	_ = r.Register(Static(FlowAppName, "/apps/flow"))
	_ = r.Register(Static(StellarAppName, "/apps/stellar"))
	return r
}
