package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
	"orionos/pkg/domain"
)

const migrateLockID int64 = 61827401

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog, TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := withMigrationLock(db, migrate); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func migrate(tx *gorm.DB) error {
	if err := tx.AutoMigrate(
		&ProfileModel{},
		&DesktopModel{},
		&DriveModel{},
		&StreamModel{},
		&FlowModel{},
		&AppModel{},
		&InstalledAppModel{},
		&ConstellationModel{},
		&AppStateModel{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	if err := tx.Exec(`
		DO $$
		BEGIN
			IF NOT EXISTS (
				SELECT 1 FROM information_schema.table_constraints
				WHERE table_schema = 'public'
				AND table_name = 'desktop_models'
				AND constraint_name = 'desktop_models_profile_id_fkey'
			) THEN
				ALTER TABLE desktop_models
				ADD CONSTRAINT desktop_models_profile_id_fkey
				FOREIGN KEY (profile_id) REFERENCES profile_models(id) ON DELETE CASCADE;
			END IF;
			IF NOT EXISTS (
				SELECT 1 FROM information_schema.table_constraints
				WHERE table_schema = 'public'
				AND table_name = 'drive_models'
				AND constraint_name = 'drive_models_profile_id_fkey'
			) THEN
				ALTER TABLE drive_models
				ADD CONSTRAINT drive_models_profile_id_fkey
				FOREIGN KEY (profile_id) REFERENCES profile_models(id) ON DELETE CASCADE;
			END IF;
			IF NOT EXISTS (
				SELECT 1 FROM information_schema.table_constraints
				WHERE table_schema = 'public'
				AND table_name = 'flow_models'
				AND constraint_name = 'flow_models_profile_id_fkey'
			) THEN
				ALTER TABLE flow_models
				ADD CONSTRAINT flow_models_profile_id_fkey
				FOREIGN KEY (profile_id) REFERENCES profile_models(id) ON DELETE CASCADE;
			END IF;
			IF NOT EXISTS (
				SELECT 1 FROM information_schema.table_constraints
				WHERE table_schema = 'public'
				AND table_name = 'installed_app_models'
				AND constraint_name = 'installed_app_models_profile_id_fkey'
			) THEN
				ALTER TABLE installed_app_models
				ADD CONSTRAINT installed_app_models_profile_id_fkey
				FOREIGN KEY (profile_id) REFERENCES profile_models(id) ON DELETE CASCADE;
			END IF;
			IF NOT EXISTS (
				SELECT 1 FROM information_schema.table_constraints
				WHERE table_schema = 'public'
				AND table_name = 'installed_app_models'
				AND constraint_name = 'installed_app_models_app_id_fkey'
			) THEN
				ALTER TABLE installed_app_models
				ADD CONSTRAINT installed_app_models_app_id_fkey
				FOREIGN KEY (app_id) REFERENCES app_models(id) ON DELETE CASCADE;
			END IF;
			IF NOT EXISTS (
				SELECT 1 FROM information_schema.table_constraints
				WHERE table_schema = 'public'
				AND table_name = 'constellation_models'
				AND constraint_name = 'constellation_models_profile_id_fkey'
			) THEN
				ALTER TABLE constellation_models
				ADD CONSTRAINT constellation_models_profile_id_fkey
				FOREIGN KEY (profile_id) REFERENCES profile_models(id) ON DELETE CASCADE;
			END IF;
			IF NOT EXISTS (
				SELECT 1 FROM information_schema.table_constraints
				WHERE table_schema = 'public'
				AND table_name = 'constellation_models'
				AND constraint_name = 'constellation_models_active_flow_id_fkey'
			) THEN
				ALTER TABLE constellation_models
				ADD CONSTRAINT constellation_models_active_flow_id_fkey
				FOREIGN KEY (active_flow_id) REFERENCES flow_models(id) ON DELETE SET NULL;
			END IF;
			IF NOT EXISTS (
				SELECT 1 FROM information_schema.table_constraints
				WHERE table_schema = 'public'
				AND table_name = 'app_state_models'
				AND constraint_name = 'app_state_models_constellation_id_fkey'
			) THEN
				ALTER TABLE app_state_models
				ADD CONSTRAINT app_state_models_constellation_id_fkey
				FOREIGN KEY (constellation_id) REFERENCES constellation_models(id) ON DELETE CASCADE;
			END IF;
			IF NOT EXISTS (
				SELECT 1 FROM information_schema.table_constraints
				WHERE table_schema = 'public'
				AND table_name = 'app_state_models'
				AND constraint_name = 'app_state_models_installed_app_id_fkey'
			) THEN
				ALTER TABLE app_state_models
				ADD CONSTRAINT app_state_models_installed_app_id_fkey
				FOREIGN KEY (installed_app_id) REFERENCES installed_app_models(id) ON DELETE CASCADE;
			END IF;
			IF NOT EXISTS (
				SELECT 1 FROM information_schema.table_constraints
				WHERE table_schema = 'public'
				AND table_name = 'profile_models'
				AND constraint_name = 'profile_models_active_constellation_id_fkey'
			) THEN
				ALTER TABLE profile_models
				ADD CONSTRAINT profile_models_active_constellation_id_fkey
				FOREIGN KEY (active_constellation_id) REFERENCES constellation_models(id) ON DELETE SET NULL;
			END IF;
		END $$;
	`).Error; err != nil {
		return fmt.Errorf("ensure workspace foreign keys: %w", err)
	}
	return nil
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(ctx, conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

// InTx runs fn inside a database transaction.
func (s *GormStore) InTx(ctx context.Context, fn func(Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}

func (s *GormStore) conn(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}
	return err
}

func first[M any](db *gorm.DB, conds ...any) (M, bool, error) {
	var model M
	if err := db.First(&model, conds...).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model, false, nil
		}
		return model, false, err
	}
	return model, true, nil
}

func updated(res *gorm.DB) error {
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateProfile inserts a new profile.
func (s *GormStore) CreateProfile(ctx context.Context, p domain.Profile) error {
	model := profileToModel(p)
	return translate(s.conn(ctx).Create(&model).Error)
}

// GetProfile returns a profile by ID.
func (s *GormStore) GetProfile(ctx context.Context, id string) (domain.Profile, bool, error) {
	model, ok, err := first[ProfileModel](s.conn(ctx), "id = ?", id)
	if !ok || err != nil {
		return domain.Profile{}, ok, err
	}
	return profileFromModel(model), true, nil
}

// GetProfileByExternalID looks up a profile by identity provider subject.
func (s *GormStore) GetProfileByExternalID(ctx context.Context, externalID string) (domain.Profile, bool, error) {
	model, ok, err := first[ProfileModel](s.conn(ctx), "external_id = ?", externalID)
	if !ok || err != nil {
		return domain.Profile{}, ok, err
	}
	return profileFromModel(model), true, nil
}

// UpdateProfile writes display fields. The active constellation is only
// changed through SetActiveConstellation.
func (s *GormStore) UpdateProfile(ctx context.Context, p domain.Profile) error {
	return updated(s.conn(ctx).Model(&ProfileModel{}).
		Where("id = ?", p.ID).
		Updates(map[string]any{
			"name":       p.Name,
			"image_url":  p.ImageURL,
			"email":      p.Email,
			"updated_at": time.Now().UTC(),
		}))
}

// SetActiveConstellation points the profile at one of its constellations.
func (s *GormStore) SetActiveConstellation(ctx context.Context, profileID, constellationID string) error {
	return updated(s.conn(ctx).Model(&ProfileModel{}).
		Where("id = ?", profileID).
		Updates(map[string]any{
			"active_constellation_id": nullable(constellationID),
			"updated_at":              time.Now().UTC(),
		}))
}

// CreateDesktop inserts the profile's desktop singleton.
func (s *GormStore) CreateDesktop(ctx context.Context, d domain.Desktop) error {
	model := desktopToModel(d)
	return translate(s.conn(ctx).Create(&model).Error)
}

// GetDesktopByProfile returns the desktop of a profile.
func (s *GormStore) GetDesktopByProfile(ctx context.Context, profileID string) (domain.Desktop, bool, error) {
	model, ok, err := first[DesktopModel](s.conn(ctx), "profile_id = ?", profileID)
	if !ok || err != nil {
		return domain.Desktop{}, ok, err
	}
	return desktopFromModel(model), true, nil
}

// UpdateDesktop writes shell preferences.
func (s *GormStore) UpdateDesktop(ctx context.Context, d domain.Desktop) error {
	return updated(s.conn(ctx).Model(&DesktopModel{}).
		Where("id = ?", d.ID).
		Updates(map[string]any{
			"wallpaper":          d.Wallpaper,
			"dock_position":      string(d.DockPosition),
			"dock_auto_hide":     d.DockAutoHide,
			"menu_bar_auto_hide": d.MenuBarAutoHide,
			"updated_at":         time.Now().UTC(),
		}))
}

// CreateDrive inserts the profile's drive singleton.
func (s *GormStore) CreateDrive(ctx context.Context, d domain.Drive) error {
	model := driveToModel(d)
	return translate(s.conn(ctx).Create(&model).Error)
}

// GetDriveByProfile returns the drive of a profile.
func (s *GormStore) GetDriveByProfile(ctx context.Context, profileID string) (domain.Drive, bool, error) {
	model, ok, err := first[DriveModel](s.conn(ctx), "profile_id = ?", profileID)
	if !ok || err != nil {
		return domain.Drive{}, ok, err
	}
	return driveFromModel(model), true, nil
}

// AddDriveUsage increments usage with a guarded UPDATE so concurrent uploads
// cannot push the counter past the limit.
func (s *GormStore) AddDriveUsage(ctx context.Context, profileID string, delta int64) (domain.Drive, error) {
	if delta < 0 {
		return domain.Drive{}, fmt.Errorf("drive usage delta must not be negative")
	}
	res := s.conn(ctx).Model(&DriveModel{}).
		Where("profile_id = ? AND total_storage + ? <= storage_limit", profileID, delta).
		Updates(map[string]any{
			"total_storage": gorm.Expr("total_storage + ?", delta),
			"updated_at":    time.Now().UTC(),
		})
	if res.Error != nil {
		return domain.Drive{}, translate(res.Error)
	}
	drive, ok, err := s.GetDriveByProfile(ctx, profileID)
	if err != nil {
		return domain.Drive{}, err
	}
	if !ok {
		return domain.Drive{}, ErrNotFound
	}
	if res.RowsAffected == 0 {
		return drive, ErrQuotaExceeded
	}
	return drive, nil
}

// CreateStream inserts a stream; names are unique per profile.
func (s *GormStore) CreateStream(ctx context.Context, st domain.Stream) error {
	model := streamToModel(st)
	return translate(s.conn(ctx).Create(&model).Error)
}

// GetStream returns a stream by ID.
func (s *GormStore) GetStream(ctx context.Context, id string) (domain.Stream, bool, error) {
	model, ok, err := first[StreamModel](s.conn(ctx), "id = ?", id)
	if !ok || err != nil {
		return domain.Stream{}, ok, err
	}
	return streamFromModel(model), true, nil
}

// GetStreamByName returns the profile's stream with the given name.
func (s *GormStore) GetStreamByName(ctx context.Context, profileID, name string) (domain.Stream, bool, error) {
	model, ok, err := first[StreamModel](s.conn(ctx), "profile_id = ? AND name = ?", profileID, name)
	if !ok || err != nil {
		return domain.Stream{}, ok, err
	}
	return streamFromModel(model), true, nil
}

// ListStreams returns a profile's streams ordered by creation.
func (s *GormStore) ListStreams(ctx context.Context, profileID string) ([]domain.Stream, error) {
	var models []StreamModel
	if err := s.conn(ctx).Where("profile_id = ?", profileID).Order("created_at ASC").Order("id ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Stream, 0, len(models))
	for _, m := range models {
		res = append(res, streamFromModel(m))
	}
	return res, nil
}

// CreateFlow inserts a flow.
func (s *GormStore) CreateFlow(ctx context.Context, f domain.Flow) error {
	model := flowToModel(f)
	return translate(s.conn(ctx).Create(&model).Error)
}

// GetFlow returns a flow by ID.
func (s *GormStore) GetFlow(ctx context.Context, id string) (domain.Flow, bool, error) {
	model, ok, err := first[FlowModel](s.conn(ctx), "id = ?", id)
	if !ok || err != nil {
		return domain.Flow{}, ok, err
	}
	return flowFromModel(model), true, nil
}

// ListFlows returns a profile's flows ordered by creation.
func (s *GormStore) ListFlows(ctx context.Context, profileID string) ([]domain.Flow, error) {
	var models []FlowModel
	if err := s.conn(ctx).Where("profile_id = ?", profileID).Order("created_at ASC").Order("id ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Flow, 0, len(models))
	for _, m := range models {
		res = append(res, flowFromModel(m))
	}
	return res, nil
}

// UpdateFlow replaces a flow's descriptive fields and tokens.
func (s *GormStore) UpdateFlow(ctx context.Context, f domain.Flow) error {
	model := flowToModel(f)
	return updated(s.conn(ctx).Model(&FlowModel{}).
		Where("id = ?", f.ID).
		Updates(map[string]any{
			"name":        model.Name,
			"description": model.Description,
			"tokens":      model.Tokens,
			"fonts":       model.Fonts,
			"assets":      model.Assets,
			"updated_at":  time.Now().UTC(),
		}))
}

// CreateApp registers an app; a taken name fails with ErrDuplicate.
func (s *GormStore) CreateApp(ctx context.Context, a domain.App) error {
	model := appToModel(a)
	return translate(s.conn(ctx).Create(&model).Error)
}

// EnsureApp inserts the app with ON CONFLICT DO NOTHING so it is safe inside
// a larger transaction, then reads back the winning row.
func (s *GormStore) EnsureApp(ctx context.Context, a domain.App) (domain.App, error) {
	model := appToModel(a)
	if err := s.conn(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoNothing: true,
	}).Create(&model).Error; err != nil {
		return domain.App{}, translate(err)
	}
	app, ok, err := s.GetAppByName(ctx, a.Name)
	if err != nil {
		return domain.App{}, err
	}
	if !ok {
		return domain.App{}, fmt.Errorf("ensure app %q: %w", a.Name, ErrNotFound)
	}
	return app, nil
}

// GetApp returns an app by ID.
func (s *GormStore) GetApp(ctx context.Context, id string) (domain.App, bool, error) {
	model, ok, err := first[AppModel](s.conn(ctx), "id = ?", id)
	if !ok || err != nil {
		return domain.App{}, ok, err
	}
	return appFromModel(model), true, nil
}

// GetAppByName returns an app by its unique name.
func (s *GormStore) GetAppByName(ctx context.Context, name string) (domain.App, bool, error) {
	model, ok, err := first[AppModel](s.conn(ctx), "name = ?", name)
	if !ok || err != nil {
		return domain.App{}, ok, err
	}
	return appFromModel(model), true, nil
}

// ListApps returns the catalog ordered by registration.
func (s *GormStore) ListApps(ctx context.Context) ([]domain.App, error) {
	var models []AppModel
	if err := s.conn(ctx).Order("created_at ASC").Order("name ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.App, 0, len(models))
	for _, m := range models {
		res = append(res, appFromModel(m))
	}
	return res, nil
}

// CreateInstalledApp binds an app to a profile.
func (s *GormStore) CreateInstalledApp(ctx context.Context, ia domain.InstalledApp) error {
	model := installedAppToModel(ia)
	return translate(s.conn(ctx).Create(&model).Error)
}

// GetInstalledApp returns an install by ID.
func (s *GormStore) GetInstalledApp(ctx context.Context, id string) (domain.InstalledApp, bool, error) {
	model, ok, err := first[InstalledAppModel](s.conn(ctx), "id = ?", id)
	if !ok || err != nil {
		return domain.InstalledApp{}, ok, err
	}
	return installedAppFromModel(model), true, nil
}

// ListInstalledApps returns a profile's installs in install order.
func (s *GormStore) ListInstalledApps(ctx context.Context, profileID string) ([]domain.InstalledApp, error) {
	var models []InstalledAppModel
	if err := s.conn(ctx).Where("profile_id = ?", profileID).Order("created_at ASC").Order("id ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.InstalledApp, 0, len(models))
	for _, m := range models {
		res = append(res, installedAppFromModel(m))
	}
	return res, nil
}

// DeleteInstalledApp removes an install (app states handled by FK cascade).
func (s *GormStore) DeleteInstalledApp(ctx context.Context, id string) error {
	return updated(s.conn(ctx).Delete(&InstalledAppModel{}, "id = ?", id))
}

// CreateConstellation inserts a workspace.
func (s *GormStore) CreateConstellation(ctx context.Context, c domain.Constellation) error {
	model := constellationToModel(c)
	return translate(s.conn(ctx).Create(&model).Error)
}

// GetConstellation returns a workspace by ID without its windows.
func (s *GormStore) GetConstellation(ctx context.Context, id string) (domain.Constellation, bool, error) {
	model, ok, err := first[ConstellationModel](s.conn(ctx), "id = ?", id)
	if !ok || err != nil {
		return domain.Constellation{}, ok, err
	}
	return constellationFromModel(model), true, nil
}

// ListConstellations returns a profile's workspaces ordered by creation time.
func (s *GormStore) ListConstellations(ctx context.Context, profileID string) ([]domain.Constellation, error) {
	var models []ConstellationModel
	if err := s.conn(ctx).Where("profile_id = ?", profileID).Order("created_at ASC").Order("id ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Constellation, 0, len(models))
	for _, m := range models {
		res = append(res, constellationFromModel(m))
	}
	return res, nil
}

// UpdateConstellation writes name, description, flow and dock.
func (s *GormStore) UpdateConstellation(ctx context.Context, c domain.Constellation) error {
	model := constellationToModel(c)
	return updated(s.conn(ctx).Model(&ConstellationModel{}).
		Where("id = ?", c.ID).
		Updates(map[string]any{
			"name":           model.Name,
			"description":    model.Description,
			"active_flow_id": model.ActiveFlowID,
			"dock_config":    model.DockConfig,
			"updated_at":     time.Now().UTC(),
		}))
}

// DeleteConstellation removes a workspace and its windows.
func (s *GormStore) DeleteConstellation(ctx context.Context, id string) error {
	return s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&AppStateModel{}, "constellation_id = ?", id).Error; err != nil {
			return err
		}
		return updated(tx.Delete(&ConstellationModel{}, "id = ?", id))
	})
}

// CreateAppState inserts a window record.
func (s *GormStore) CreateAppState(ctx context.Context, st domain.AppState) error {
	model := appStateToModel(st)
	return translate(s.conn(ctx).Create(&model).Error)
}

// GetAppState returns a window by ID.
func (s *GormStore) GetAppState(ctx context.Context, id string) (domain.AppState, bool, error) {
	model, ok, err := first[AppStateModel](s.conn(ctx), "id = ?", id)
	if !ok || err != nil {
		return domain.AppState{}, ok, err
	}
	return appStateFromModel(model), true, nil
}

// ListAppStates returns the windows of a workspace in creation order.
func (s *GormStore) ListAppStates(ctx context.Context, constellationID string) ([]domain.AppState, error) {
	var models []AppStateModel
	if err := s.conn(ctx).Where("constellation_id = ?", constellationID).Order("created_at ASC").Order("id ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.AppState, 0, len(models))
	for _, m := range models {
		res = append(res, appStateFromModel(m))
	}
	return res, nil
}

// UpdateAppState writes geometry, flags and content state. Last write wins.
func (s *GormStore) UpdateAppState(ctx context.Context, st domain.AppState) error {
	model := appStateToModel(st)
	return updated(s.conn(ctx).Model(&AppStateModel{}).
		Where("id = ?", st.ID).
		Updates(map[string]any{
			"pos_x":          model.PosX,
			"pos_y":          model.PosY,
			"width":          model.Width,
			"height":         model.Height,
			"restore_x":      model.RestoreX,
			"restore_y":      model.RestoreY,
			"restore_width":  model.RestoreWidth,
			"restore_height": model.RestoreHeight,
			"is_open":        model.IsOpen,
			"is_minimized":   model.IsMinimized,
			"is_maximized":   model.IsMaximized,
			"content_state":  model.ContentState,
			"updated_at":     time.Now().UTC(),
		}))
}

// DeleteAppStatesByInstalledApp removes every window of an install.
func (s *GormStore) DeleteAppStatesByInstalledApp(ctx context.Context, installedAppID string) error {
	return s.conn(ctx).Delete(&AppStateModel{}, "installed_app_id = ?", installedAppID).Error
}

func nullable(id string) *string {
	if id == "" {
		return nil
	}
	return &id
}

func deref(id *string) string {
	if id == nil {
		return ""
	}
	return *id
}

func profileToModel(p domain.Profile) ProfileModel {
	return ProfileModel{
		ID:                    p.ID,
		ExternalID:            p.ExternalID,
		Name:                  p.Name,
		ImageURL:              p.ImageURL,
		Email:                 p.Email,
		ActiveConstellationID: nullable(p.ActiveConstellationID),
		CreatedAt:             p.CreatedAt,
		UpdatedAt:             p.UpdatedAt,
	}
}

func profileFromModel(m ProfileModel) domain.Profile {
	return domain.Profile{
		ID:                    m.ID,
		ExternalID:            m.ExternalID,
		Name:                  m.Name,
		ImageURL:              m.ImageURL,
		Email:                 m.Email,
		ActiveConstellationID: deref(m.ActiveConstellationID),
		CreatedAt:             m.CreatedAt,
		UpdatedAt:             m.UpdatedAt,
	}
}

func desktopToModel(d domain.Desktop) DesktopModel {
	return DesktopModel{
		ID:              d.ID,
		ProfileID:       d.ProfileID,
		Wallpaper:       d.Wallpaper,
		DockPosition:    string(d.DockPosition),
		DockAutoHide:    d.DockAutoHide,
		MenuBarAutoHide: d.MenuBarAutoHide,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
}

func desktopFromModel(m DesktopModel) domain.Desktop {
	return domain.Desktop{
		ID:              m.ID,
		ProfileID:       m.ProfileID,
		Wallpaper:       m.Wallpaper,
		DockPosition:    domain.DockEdge(m.DockPosition),
		DockAutoHide:    m.DockAutoHide,
		MenuBarAutoHide: m.MenuBarAutoHide,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}

func driveToModel(d domain.Drive) DriveModel {
	return DriveModel{
		ID:           d.ID,
		ProfileID:    d.ProfileID,
		TotalStorage: d.TotalStorage,
		StorageLimit: d.StorageLimit,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

func driveFromModel(m DriveModel) domain.Drive {
	return domain.Drive{
		ID:           m.ID,
		ProfileID:    m.ProfileID,
		TotalStorage: m.TotalStorage,
		StorageLimit: m.StorageLimit,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func streamToModel(st domain.Stream) StreamModel {
	return StreamModel{
		ID:          st.ID,
		ProfileID:   st.ProfileID,
		Name:        st.Name,
		Description: st.Description,
		CreatedAt:   st.CreatedAt,
		UpdatedAt:   st.UpdatedAt,
	}
}

func streamFromModel(m StreamModel) domain.Stream {
	return domain.Stream{
		ID:          m.ID,
		ProfileID:   m.ProfileID,
		Name:        m.Name,
		Description: m.Description,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func flowToModel(f domain.Flow) FlowModel {
	return FlowModel{
		ID:          f.ID,
		ProfileID:   f.ProfileID,
		StreamID:    nullable(f.StreamID),
		Name:        f.Name,
		Description: f.Description,
		IsSystem:    f.IsSystem,
		Tokens:      datatypes.NewJSONSlice(nonNil(f.Tokens)),
		Fonts:       datatypes.NewJSONSlice(nonNil(f.Fonts)),
		Assets:      datatypes.NewJSONSlice(nonNil(f.Assets)),
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
}

func flowFromModel(m FlowModel) domain.Flow {
	return domain.Flow{
		ID:          m.ID,
		ProfileID:   m.ProfileID,
		StreamID:    deref(m.StreamID),
		Name:        m.Name,
		Description: m.Description,
		IsSystem:    m.IsSystem,
		Tokens:      nonNil([]domain.Token(m.Tokens)),
		Fonts:       nonNil([]domain.Font(m.Fonts)),
		Assets:      nonNil([]domain.Asset(m.Assets)),
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func appToModel(a domain.App) AppModel {
	return AppModel{
		ID:            a.ID,
		Name:          a.Name,
		DisplayName:   a.DisplayName,
		Description:   a.Description,
		IconURL:       a.IconURL,
		IsSystem:      a.IsSystem,
		DefaultWindow: datatypes.NewJSONType(a.DefaultWindow),
		Features:      datatypes.NewJSONSlice(nonNil(a.Features)),
		CreatedAt:     a.CreatedAt,
		UpdatedAt:     a.UpdatedAt,
	}
}

func appFromModel(m AppModel) domain.App {
	return domain.App{
		ID:            m.ID,
		Name:          m.Name,
		DisplayName:   m.DisplayName,
		Description:   m.Description,
		IconURL:       m.IconURL,
		IsSystem:      m.IsSystem,
		DefaultWindow: m.DefaultWindow.Data(),
		Features:      nonNil([]domain.Capability(m.Features)),
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

func installedAppToModel(ia domain.InstalledApp) InstalledAppModel {
	return InstalledAppModel{
		ID:         ia.ID,
		ProfileID:  ia.ProfileID,
		AppID:      ia.AppID,
		Settings:   datatypes.JSONMap(nonNilMap(ia.Settings)),
		FlowConfig: datatypes.NewJSONType(normalizeOverride(ia.FlowConfig)),
		CreatedAt:  ia.CreatedAt,
		UpdatedAt:  ia.UpdatedAt,
	}
}

func installedAppFromModel(m InstalledAppModel) domain.InstalledApp {
	return domain.InstalledApp{
		ID:         m.ID,
		ProfileID:  m.ProfileID,
		AppID:      m.AppID,
		Settings:   nonNilMap(map[string]any(m.Settings)),
		FlowConfig: normalizeOverride(m.FlowConfig.Data()),
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}

func constellationToModel(c domain.Constellation) ConstellationModel {
	dock := c.DockConfig
	dock.Items = nonNil(dock.Items)
	return ConstellationModel{
		ID:           c.ID,
		ProfileID:    c.ProfileID,
		Name:         c.Name,
		Description:  c.Description,
		ActiveFlowID: nullable(c.ActiveFlowID),
		DockConfig:   datatypes.NewJSONType(dock),
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
}

func constellationFromModel(m ConstellationModel) domain.Constellation {
	dock := m.DockConfig.Data()
	dock.Items = nonNil(dock.Items)
	return domain.Constellation{
		ID:           m.ID,
		ProfileID:    m.ProfileID,
		Name:         m.Name,
		Description:  m.Description,
		ActiveFlowID: deref(m.ActiveFlowID),
		DockConfig:   dock,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func appStateToModel(st domain.AppState) AppStateModel {
	model := AppStateModel{
		ID:              st.ID,
		ProfileID:       st.ProfileID,
		AppID:           st.AppID,
		InstalledAppID:  st.InstalledAppID,
		ConstellationID: st.ConstellationID,
		PosX:            st.Position.X,
		PosY:            st.Position.Y,
		Width:           st.Size.Width,
		Height:          st.Size.Height,
		IsOpen:          st.IsOpen,
		IsMinimized:     st.IsMinimized,
		IsMaximized:     st.IsMaximized,
		ContentState:    datatypes.JSONMap(nonNilMap(st.ContentState)),
		CreatedAt:       st.CreatedAt,
		UpdatedAt:       st.UpdatedAt,
	}
	if st.Restore != nil {
		r := *st.Restore
		model.RestoreX = &r.Position.X
		model.RestoreY = &r.Position.Y
		model.RestoreWidth = &r.Size.Width
		model.RestoreHeight = &r.Size.Height
	}
	return model
}

func appStateFromModel(m AppStateModel) domain.AppState {
	st := domain.AppState{
		ID:              m.ID,
		ProfileID:       m.ProfileID,
		AppID:           m.AppID,
		InstalledAppID:  m.InstalledAppID,
		ConstellationID: m.ConstellationID,
		Position:        domain.Position{X: m.PosX, Y: m.PosY},
		Size:            domain.Size{Width: m.Width, Height: m.Height},
		IsOpen:          m.IsOpen,
		IsMinimized:     m.IsMinimized,
		IsMaximized:     m.IsMaximized,
		ContentState:    nonNilMap(map[string]any(m.ContentState)),
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
	if m.RestoreX != nil && m.RestoreY != nil && m.RestoreWidth != nil && m.RestoreHeight != nil {
		st.Restore = &domain.Geometry{
			Position: domain.Position{X: *m.RestoreX, Y: *m.RestoreY},
			Size:     domain.Size{Width: *m.RestoreWidth, Height: *m.RestoreHeight},
		}
	}
	return st
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

func nonNilMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

func normalizeOverride(o domain.FlowOverride) domain.FlowOverride {
	o.StyleTokens = nonNilMap(o.StyleTokens)
	o.Overrides = nonNilMap(o.Overrides)
	return o
}
