package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"zing/internal/models"
	"zing/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SchemaVersion is one step of the schema. Each step owns a set of models
// that AutoMigrate brings up to date.
type SchemaVersion struct {
	Version int
	Name    string
	Models  []interface{}
}

func (v SchemaVersion) String() string {
	return fmt.Sprintf("%06d_%s", v.Version, v.Name)
}

// MigrationLog represents a record of an applied schema version.
type MigrationLog struct {
	Version   int       `gorm:"primaryKey;autoIncrement:false"`
	Name      string    `gorm:"size:255"`
	AppliedAt time.Time `gorm:"autoCreateTime"`
}

// TableName returns the database table name for MigrationLog.
func (MigrationLog) TableName() string {
	return "migration_logs"
}

// SchemaVersions returns the ordered schema steps.
func SchemaVersions() []SchemaVersion {
	return []SchemaVersion{
		{Version: 1, Name: "social_graph", Models: []interface{}{&models.User{}, &models.Follow{}}},
		{Version: 2, Name: "content", Models: []interface{}{
			&models.Post{}, &models.PostHashtag{}, &models.PostMention{}, &models.Like{}, &models.Repost{},
		}},
		{Version: 3, Name: "notifications", Models: []interface{}{&models.Notification{}}},
	}
}

// PersistentModels returns the authoritative set of schema-managed GORM models.
func PersistentModels() []interface{} {
	var out []interface{}
	for _, v := range SchemaVersions() {
		out = append(out, v.Models...)
	}
	return out
}

// SchemaStatus reports which schema versions have been recorded.
type SchemaStatus struct {
	AppliedVersions []int
	Pending         []SchemaVersion
}

// Migrate auto-migrates every schema version and records it in
// migration_logs. Re-running is safe.
func Migrate(ctx context.Context, db *gorm.DB) error {
	db = db.WithContext(ctx)
	if err := db.AutoMigrate(&MigrationLog{}); err != nil {
		return fmt.Errorf("failed to ensure migration logs table: %w", err)
	}

	for _, v := range SchemaVersions() {
		if err := db.AutoMigrate(v.Models...); err != nil {
			return fmt.Errorf("auto-migrate %s: %w", v, err)
		}
		entry := MigrationLog{Version: v.Version, Name: v.Name}
		if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&entry).Error; err != nil {
			return fmt.Errorf("failed to record migration %d: %w", v.Version, err)
		}
		observability.Logger.DebugContext(ctx, "Schema version applied", slog.Int("version", v.Version), slog.String("name", v.Name))
	}

	if err := backfillFold(db, &models.Post{}, "content", "content_fold"); err != nil {
		return fmt.Errorf("backfill post search column: %w", err)
	}
	if err := backfillFold(db, &models.User{}, "display_name", "display_name_fold"); err != nil {
		return fmt.Errorf("backfill user search column: %w", err)
	}
	return nil
}

// backfillFold fills the folded search column of rows written before it
// existed.
func backfillFold(db *gorm.DB, model interface{}, column, foldColumn string) error {
	type row struct {
		ID    string
		Value string
	}
	pending := fmt.Sprintf("%s = '' AND %s <> ''", foldColumn, column)
	for {
		var rows []row
		err := db.Model(model).
			Select("id, " + column + " AS value").
			Where(pending).
			Limit(500).
			Scan(&rows).Error
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		for _, r := range rows {
			err := db.Model(model).Where("id = ?", r.ID).UpdateColumn(foldColumn, models.FoldCase(r.Value)).Error
			if err != nil {
				return err
			}
		}
	}
}

// GetSchemaStatus lists recorded and pending schema versions.
func GetSchemaStatus(ctx context.Context, db *gorm.DB) (*SchemaStatus, error) {
	status := &SchemaStatus{}
	db = db.WithContext(ctx)

	if db.Migrator().HasTable(&MigrationLog{}) {
		if err := db.Model(&MigrationLog{}).Order("version ASC").Pluck("version", &status.AppliedVersions).Error; err != nil {
			return nil, fmt.Errorf("failed to get applied migrations: %w", err)
		}
	}

	applied := make(map[int]bool, len(status.AppliedVersions))
	for _, v := range status.AppliedVersions {
		applied[v] = true
	}
	for _, v := range SchemaVersions() {
		if !applied[v.Version] {
			status.Pending = append(status.Pending, v)
		}
	}
	return status, nil
}

// RollbackVersion drops the tables owned by a schema version and removes its log entry.
func RollbackVersion(ctx context.Context, db *gorm.DB, version int) error {
	var target *SchemaVersion
	for _, v := range SchemaVersions() {
		if v.Version == version {
			v := v
			target = &v
			break
		}
	}
	if target == nil {
		return fmt.Errorf("migration version %d not found", version)
	}

	db = db.WithContext(ctx)
	var count int64
	if err := db.Model(&MigrationLog{}).Where("version = ?", version).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to read migration log: %w", err)
	}
	if count == 0 {
		return fmt.Errorf("migration %d has not been applied", version)
	}

	observability.Logger.InfoContext(ctx, "Rolling back schema version", slog.Int("version", version), slog.String("name", target.Name))
	if err := db.Migrator().DropTable(target.Models...); err != nil {
		return fmt.Errorf("failed to drop tables for migration %d (%s): %w", version, target.Name, err)
	}
	return db.Where("version = ?", version).Delete(&MigrationLog{}).Error
}
