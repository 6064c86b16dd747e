package store

import (
	"context"
	"errors"

	"orionos/pkg/domain"
)

var (
	// ErrDuplicate reports a unique constraint violation.
	ErrDuplicate = errors.New("duplicate record")
	// ErrNotFound is returned by updates and deletes of missing rows.
	ErrNotFound = errors.New("record not found")
	// ErrQuotaExceeded reports a drive write past its storage limit.
	ErrQuotaExceeded = errors.New("storage quota exceeded")
)

// Store defines persistence operations for OrionOS workspaces.
// Lookups return (value, found, error); a missing row is not an error.
type Store interface {
	// InTx runs fn against a transactional view of the store. Every write
	// made through the view commits together or not at all.
	InTx(ctx context.Context, fn func(Store) error) error

	// profiles
	CreateProfile(ctx context.Context, p domain.Profile) error
	GetProfile(ctx context.Context, id string) (domain.Profile, bool, error)
	GetProfileByExternalID(ctx context.Context, externalID string) (domain.Profile, bool, error)
	UpdateProfile(ctx context.Context, p domain.Profile) error
	SetActiveConstellation(ctx context.Context, profileID, constellationID string) error

	// desktop + drive singletons
	CreateDesktop(ctx context.Context, d domain.Desktop) error
	GetDesktopByProfile(ctx context.Context, profileID string) (domain.Desktop, bool, error)
	UpdateDesktop(ctx context.Context, d domain.Desktop) error
	CreateDrive(ctx context.Context, d domain.Drive) error
	GetDriveByProfile(ctx context.Context, profileID string) (domain.Drive, bool, error)
	// AddDriveUsage grows totalStorage by delta, failing with
	// ErrQuotaExceeded if the result would pass storageLimit.
	AddDriveUsage(ctx context.Context, profileID string, delta int64) (domain.Drive, error)

	// streams
	CreateStream(ctx context.Context, st domain.Stream) error
	GetStream(ctx context.Context, id string) (domain.Stream, bool, error)
	GetStreamByName(ctx context.Context, profileID, name string) (domain.Stream, bool, error)
	ListStreams(ctx context.Context, profileID string) ([]domain.Stream, error)

	// flows
	CreateFlow(ctx context.Context, f domain.Flow) error
	GetFlow(ctx context.Context, id string) (domain.Flow, bool, error)
	ListFlows(ctx context.Context, profileID string) ([]domain.Flow, error)
	UpdateFlow(ctx context.Context, f domain.Flow) error

	// global app catalog
	CreateApp(ctx context.Context, a domain.App) error
	// EnsureApp inserts the app unless one with the same name exists and
	// returns the stored row either way.
	EnsureApp(ctx context.Context, a domain.App) (domain.App, error)
	GetApp(ctx context.Context, id string) (domain.App, bool, error)
	GetAppByName(ctx context.Context, name string) (domain.App, bool, error)
	ListApps(ctx context.Context) ([]domain.App, error)

	// installs
	CreateInstalledApp(ctx context.Context, ia domain.InstalledApp) error
	GetInstalledApp(ctx context.Context, id string) (domain.InstalledApp, bool, error)
	ListInstalledApps(ctx context.Context, profileID string) ([]domain.InstalledApp, error)
	DeleteInstalledApp(ctx context.Context, id string) error

	// constellations
	CreateConstellation(ctx context.Context, c domain.Constellation) error
	GetConstellation(ctx context.Context, id string) (domain.Constellation, bool, error)
	ListConstellations(ctx context.Context, profileID string) ([]domain.Constellation, error)
	UpdateConstellation(ctx context.Context, c domain.Constellation) error
	// DeleteConstellation removes the workspace and its windows.
	DeleteConstellation(ctx context.Context, id string) error

	// windows
	CreateAppState(ctx context.Context, s domain.AppState) error
	GetAppState(ctx context.Context, id string) (domain.AppState, bool, error)
	ListAppStates(ctx context.Context, constellationID string) ([]domain.AppState, error)
	UpdateAppState(ctx context.Context, s domain.AppState) error
	DeleteAppStatesByInstalledApp(ctx context.Context, installedAppID string) error
}
