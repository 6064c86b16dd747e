package store

import (
	"time"

	"gorm.io/datatypes"
	"orionos/pkg/domain"
)

// GORM models used for persistence.
type ProfileModel struct {
	ID                    string    `gorm:"primaryKey"`
	ExternalID            string    `gorm:"uniqueIndex;not null"`
	Name                  string    `gorm:"not null"`
	ImageURL              string
	Email                 string
	ActiveConstellationID *string   `gorm:"index"`
	CreatedAt             time.Time `gorm:"not null"`
	UpdatedAt             time.Time
}

type DesktopModel struct {
	ID              string `gorm:"primaryKey"`
	ProfileID       string `gorm:"uniqueIndex;not null"`
	Wallpaper       string `gorm:"not null"`
	DockPosition    string `gorm:"not null;default:bottom"`
	DockAutoHide    bool   `gorm:"not null"`
	MenuBarAutoHide bool   `gorm:"not null"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type DriveModel struct {
	ID           string `gorm:"primaryKey"`
	ProfileID    string `gorm:"uniqueIndex;not null"`
	TotalStorage int64  `gorm:"not null;default:0;check:chk_drive_usage,total_storage >= 0 AND total_storage <= storage_limit"`
	StorageLimit int64  `gorm:"not null"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type StreamModel struct {
	ID          string `gorm:"primaryKey"`
	ProfileID   string `gorm:"not null;uniqueIndex:idx_stream_profile_name,priority:1"`
	Name        string `gorm:"not null;uniqueIndex:idx_stream_profile_name,priority:2"`
	Description string
	CreatedAt   time.Time `gorm:"not null;index"`
	UpdatedAt   time.Time
}

type FlowModel struct {
	ID          string                            `gorm:"primaryKey"`
	ProfileID   string                            `gorm:"not null;uniqueIndex:idx_flow_profile_name,priority:1"`
	StreamID    *string                           `gorm:"index"`
	Name        string                            `gorm:"not null;uniqueIndex:idx_flow_profile_name,priority:2"`
	Description string
	IsSystem    bool                              `gorm:"not null"`
	Tokens      datatypes.JSONSlice[domain.Token] `gorm:"type:jsonb"`
	Fonts       datatypes.JSONSlice[domain.Font]  `gorm:"type:jsonb"`
	Assets      datatypes.JSONSlice[domain.Asset] `gorm:"type:jsonb"`
	CreatedAt   time.Time                         `gorm:"not null;index"`
	UpdatedAt   time.Time
}

type AppModel struct {
	ID            string                                  `gorm:"primaryKey"`
	Name          string                                  `gorm:"uniqueIndex;not null"`
	DisplayName   string                                  `gorm:"not null"`
	Description   string
	IconURL       string
	IsSystem      bool                                    `gorm:"not null"`
	DefaultWindow datatypes.JSONType[domain.WindowConfig] `gorm:"type:jsonb"`
	Features      datatypes.JSONSlice[domain.Capability]  `gorm:"type:jsonb"`
	CreatedAt     time.Time                               `gorm:"not null;index"`
	UpdatedAt     time.Time
}

type InstalledAppModel struct {
	ID         string                                  `gorm:"primaryKey"`
	ProfileID  string                                  `gorm:"not null;uniqueIndex:idx_install_profile_app,priority:1"`
	AppID      string                                  `gorm:"not null;uniqueIndex:idx_install_profile_app,priority:2;index"`
	Settings   datatypes.JSONMap                       `gorm:"type:jsonb"`
	FlowConfig datatypes.JSONType[domain.FlowOverride] `gorm:"type:jsonb"`
	CreatedAt  time.Time                               `gorm:"not null;index"`
	UpdatedAt  time.Time
}

type ConstellationModel struct {
	ID           string                                `gorm:"primaryKey"`
	ProfileID    string                                `gorm:"not null;uniqueIndex:idx_constellation_profile_name,priority:1"`
	Name         string                                `gorm:"not null;uniqueIndex:idx_constellation_profile_name,priority:2"`
	Description  string
	ActiveFlowID *string
	DockConfig   datatypes.JSONType[domain.DockConfig] `gorm:"type:jsonb"`
	CreatedAt    time.Time                             `gorm:"not null;index"`
	UpdatedAt    time.Time
}

// AppStateModel stores geometry as double precision columns so integer and
// fractional coordinates reload bit-for-bit.
type AppStateModel struct {
	ID              string            `gorm:"primaryKey"`
	ProfileID       string            `gorm:"not null;index"`
	AppID           string            `gorm:"not null;index"`
	InstalledAppID  string            `gorm:"not null;index"`
	ConstellationID string            `gorm:"not null;index"`
	PosX            float64           `gorm:"type:double precision;not null"`
	PosY            float64           `gorm:"type:double precision;not null"`
	Width           float64           `gorm:"type:double precision;not null"`
	Height          float64           `gorm:"type:double precision;not null"`
	RestoreX        *float64          `gorm:"type:double precision"`
	RestoreY        *float64          `gorm:"type:double precision"`
	RestoreWidth    *float64          `gorm:"type:double precision"`
	RestoreHeight   *float64          `gorm:"type:double precision"`
	IsOpen          bool              `gorm:"not null"`
	IsMinimized     bool              `gorm:"not null"`
	IsMaximized     bool              `gorm:"not null;check:chk_window_flags,NOT (is_minimized AND is_maximized)"`
	ContentState    datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt       time.Time         `gorm:"not null;index"`
	UpdatedAt       time.Time
}
