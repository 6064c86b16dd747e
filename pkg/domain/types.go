package domain

import "time"

type DockEdge string

const (
	DockTop    DockEdge = "top"
	DockBottom DockEdge = "bottom"
	DockLeft   DockEdge = "left"
	DockRight  DockEdge = "right"
)

// Valid reports whether the edge is one of the four screen edges.
func (e DockEdge) Valid() bool {
	switch e {
	case DockTop, DockBottom, DockLeft, DockRight:
		return true
	}
	return false
}

type TokenCategory string

const (
	TokenColor   TokenCategory = "COLOR"
	TokenShadow  TokenCategory = "SHADOW"
	TokenBorder  TokenCategory = "BORDER"
	TokenBlur    TokenCategory = "BLUR"
	TokenSpacing TokenCategory = "SPACING"
)

type FontCategory string

const (
	FontPrimary   FontCategory = "PRIMARY"
	FontSecondary FontCategory = "SECONDARY"
)

type AssetCategory string

const (
	AssetWallpaper AssetCategory = "WALLPAPER"
	AssetIcon      AssetCategory = "ICON"
)

// Capability is a feature an App declares to the shell.
type Capability string

const (
	CapMultiInstance Capability = "multiInstance"
	CapRealtime      Capability = "realtime"
	CapCanvas        Capability = "canvas"
	CapFlowSystem    Capability = "flowSystem"
	CapFileSystem    Capability = "fileSystem"
)

type Identity struct {
	ExternalID     string   `json:"externalId"`
	FirstName      string   `json:"firstName"`
	LastName       string   `json:"lastName"`
	ImageURL       string   `json:"imageUrl"`
	EmailAddresses []string `json:"emailAddresses"`
}

// Customization carries the optional overrides chosen in the setup screen.
type Customization struct {
	Name              string `json:"name"`
	ImageURL          string `json:"imageUrl"`
	ConstellationName string `json:"constellationName"`
	Wallpaper         string `json:"wallpaper"`
}

type Profile struct {
	ID                    string    `json:"id"`
	ExternalID            string    `json:"userId"`
	Name                  string    `json:"name"`
	ImageURL              string    `json:"imageUrl"`
	Email                 string    `json:"email"`
	ActiveConstellationID string    `json:"activeConstellation,omitempty"`
	CreatedAt             time.Time `json:"createdAt"`
	UpdatedAt             time.Time `json:"updatedAt"`
}

type Desktop struct {
	ID              string    `json:"id"`
	ProfileID       string    `json:"profileId"`
	Wallpaper       string    `json:"wallpaper"`
	DockPosition    DockEdge  `json:"dockPosition"`
	DockAutoHide    bool      `json:"dockAutoHide"`
	MenuBarAutoHide bool      `json:"menuBarAutoHide"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Drive counters are encoded as JSON strings so that clients limited to
// 53-bit integers read them exactly.
type Drive struct {
	ID           string    `json:"id"`
	ProfileID    string    `json:"profileId"`
	TotalStorage int64     `json:"totalStorage,string"`
	StorageLimit int64     `json:"storageLimit,string"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type Token struct {
	Name        string        `json:"name"`
	Value       string        `json:"value"`
	Category    TokenCategory `json:"category"`
	Description string        `json:"description,omitempty"`
}

type Font struct {
	Name     string       `json:"name"`
	URL      string       `json:"url"`
	Category FontCategory `json:"category"`
	Variants []string     `json:"variants"`
}

type Asset struct {
	Name     string        `json:"name"`
	URL      string        `json:"url"`
	Category AssetCategory `json:"category"`
}

// Stream groups a profile's flows. Every profile owns a "System" stream
// that holds the built-in flow.
type Stream struct {
	ID          string    `json:"id"`
	ProfileID   string    `json:"profileId"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type Flow struct {
	ID          string    `json:"id"`
	ProfileID   string    `json:"profileId"`
	StreamID    string    `json:"streamId,omitempty"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	IsSystem    bool      `json:"isSystem"`
	Tokens      []Token   `json:"tokens"`
	Fonts       []Font    `json:"fonts"`
	Assets      []Asset   `json:"assets"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// WindowConfig is the geometry an App asks for when a window is first created.
type WindowConfig struct {
	Width     float64 `json:"width"`
	Height    float64 `json:"height"`
	Placement string  `json:"placement,omitempty"`
}

type App struct {
	ID            string       `json:"id"`
	Name          string       `json:"name"`
	DisplayName   string       `json:"displayName"`
	Description   string       `json:"description"`
	IconURL       string       `json:"iconUrl"`
	IsSystem      bool         `json:"isSystem"`
	DefaultWindow WindowConfig `json:"defaultWindowConfig"`
	Features      []Capability `json:"supportedFeatures"`
	CreatedAt     time.Time    `json:"createdAt"`
	UpdatedAt     time.Time    `json:"updatedAt"`
}

// Supports reports whether the app declares the capability.
func (a App) Supports(c Capability) bool {
	for _, f := range a.Features {
		if f == c {
			return true
		}
	}
	return false
}

// FlowOverride is a per-install adjustment layered over the active flow.
type FlowOverride struct {
	StyleTokens map[string]any `json:"styleTokens"`
	Overrides   map[string]any `json:"overrides"`
}

type InstalledApp struct {
	ID         string         `json:"id"`
	ProfileID  string         `json:"profileId"`
	AppID      string         `json:"appId"`
	Settings   map[string]any `json:"settings"`
	FlowConfig FlowOverride   `json:"flowConfig"`
	CreatedAt  time.Time      `json:"createdAt"`
	UpdatedAt  time.Time      `json:"updatedAt"`
}

type DockItem struct {
	AppID    string `json:"appId"`
	Position int    `json:"position"`
}

type DockSettings struct {
	Position      DockEdge `json:"position"`
	AutoHide      bool     `json:"autoHide"`
	Magnification bool     `json:"magnification"`
	Size          int      `json:"size"`
}

type DockConfig struct {
	Items  []DockItem   `json:"items"`
	Config DockSettings `json:"config"`
}

// Constellation is a named workspace. AppStates is only populated by reads
// that explicitly load windows.
type Constellation struct {
	ID           string     `json:"id"`
	ProfileID    string     `json:"profileId"`
	Name         string     `json:"name"`
	Description  string     `json:"description"`
	ActiveFlowID string     `json:"activeFlowId,omitempty"`
	DockConfig   DockConfig `json:"dockConfig"`
	AppStates    []AppState `json:"appStates,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type Geometry struct {
	Position Position `json:"position"`
	Size     Size     `json:"size"`
}

// AppState is one window of an installed app inside a constellation.
// Restore holds the geometry to reinstate when a maximized window is restored.
type AppState struct {
	ID              string         `json:"id"`
	ProfileID       string         `json:"profileId"`
	AppID           string         `json:"appId"`
	InstalledAppID  string         `json:"installedAppId"`
	ConstellationID string         `json:"constellationId"`
	Position        Position       `json:"position"`
	Size            Size           `json:"size"`
	Restore         *Geometry      `json:"restoreGeometry,omitempty"`
	IsOpen          bool           `json:"isOpen"`
	IsMinimized     bool           `json:"isMinimized"`
	IsMaximized     bool           `json:"isMaximized"`
	ContentState    map[string]any `json:"contentState"`
	App             *App           `json:"app,omitempty"`
	InstalledApp    *InstalledApp  `json:"installedApp,omitempty"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
}

// Environment is everything provisioning creates for a profile.
type Environment struct {
	Profile       Profile        `json:"profile"`
	Desktop       Desktop        `json:"desktop"`
	Drive         Drive          `json:"drive"`
	Stream        Stream         `json:"stream"`
	Constellation Constellation  `json:"constellation"`
	Flow          Flow           `json:"flow"`
	InstalledApps []InstalledApp `json:"installedApps"`
}

// Snapshot is what the shell needs to render the active workspace.
type Snapshot struct {
	Profile       Profile       `json:"profile"`
	Desktop       Desktop       `json:"desktop"`
	Drive         Drive         `json:"drive"`
	Constellation Constellation `json:"constellation"`
	Flow          *Flow         `json:"flow,omitempty"`
	FlowConfig    *FlowOverride `json:"flowConfig,omitempty"`
}

type EventType string

const (
	EventWindowUpdated        EventType = "window.updated"
	EventWindowFocused        EventType = "window.focused"
	EventConstellationChanged EventType = "constellation.changed"
	EventConstellationSwitch  EventType = "constellation.switched"
	EventDesktopUpdated       EventType = "desktop.updated"
)

// Event is pushed to a profile's realtime subscribers after a mutation.
type Event struct {
	Type            EventType `json:"type"`
	ConstellationID string    `json:"constellationId,omitempty"`
	AppState        *AppState `json:"appState,omitempty"`
	Desktop         *Desktop  `json:"desktop,omitempty"`
	At              time.Time `json:"at"`
}
