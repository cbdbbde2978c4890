package migrations

import (
	"context"
	"fmt"

	"github.com/mwantia/snaptag/pkg/db/schema"
	"github.com/mwantia/snaptag/pkg/log"
	"gorm.io/gorm"
)

const historyTable = "schema_versions"

// schemaVersion tracks every version a database has been upgraded to
type schemaVersion struct {
	ID          uint   `gorm:"primaryKey"`
	Version     int    `gorm:"uniqueIndex;not null"`
	Description string `gorm:"type:text"`
	AppliedAt   int64  `gorm:"autoCreateTime"`
}

func (schemaVersion) TableName() string {
	return historyTable
}

// Migrator materializes a schema declaration into SQLite tables and indexes
type Migrator struct {
	db  *gorm.DB
	log log.LoggerService
}

// NewMigrator creates a new migrator instance
func NewMigrator(db *gorm.DB, logger log.LoggerService) *Migrator {
	return &Migrator{
		db:  db,
		log: logger,
	}
}

// VersionStatus represents one applied upgrade
type VersionStatus struct {
	Version     int
	Description string
	AppliedAt   int64
}

// Upgrade runs the upgrade step when s.Version is higher than the stored
// version and reports whether it ran. Equal or lower versions are a no-op.
func (m *Migrator) Upgrade(ctx context.Context, s schema.Schema) (bool, error) {
	if err := s.Validate(); err != nil {
		return false, err
	}
	if _, ok := s.Collection(historyTable); ok {
		return false, fmt.Errorf("collection name '%s' is reserved", historyTable)
	}

	if err := m.db.WithContext(ctx).AutoMigrate(&schemaVersion{}); err != nil {
		return false, fmt.Errorf("failed to create version history table: %w", err)
	}

	upgraded := false
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := currentVersion(tx)
		if err != nil {
			return err
		}

		if s.Version <= current {
			m.log.Debug("Schema '%s' already at version %d (requested %d)", s.Name, current, s.Version)
			return nil
		}

		m.log.Info("Upgrading schema '%s' from version %d to %d", s.Name, current, s.Version)

		for _, c := range s.Collections {
			if err := createCollection(tx, c); err != nil {
				return fmt.Errorf("failed to create collection '%s': %w", c.Name, err)
			}
			for _, idx := range c.Indexes {
				if err := createIndex(tx, c, idx); err != nil {
					return fmt.Errorf("failed to create index '%s' on '%s': %w", idx.Name, c.Name, err)
				}
			}
		}

		upgraded = true
		return tx.Create(&schemaVersion{
			Version:     s.Version,
			Description: fmt.Sprintf("upgrade '%s' from version %d", s.Name, current),
		}).Error
	})
	if err != nil {
		return false, fmt.Errorf("upgrade to version %d failed: %w", s.Version, err)
	}

	return upgraded, nil
}

// Version returns the highest applied version, or 0 for a fresh database
func (m *Migrator) Version(ctx context.Context) (int, error) {
	return currentVersion(m.db.WithContext(ctx))
}

// Status returns the upgrade history in version order
func (m *Migrator) Status(ctx context.Context) ([]VersionStatus, error) {
	var applied []schemaVersion
	if err := m.db.WithContext(ctx).Order("version ASC").Find(&applied).Error; err != nil {
		return nil, fmt.Errorf("failed to query version history: %w", err)
	}

	statuses := make([]VersionStatus, 0, len(applied))
	for _, a := range applied {
		statuses = append(statuses, VersionStatus{
			Version:     a.Version,
			Description: a.Description,
			AppliedAt:   a.AppliedAt,
		})
	}

	return statuses, nil
}

func currentVersion(tx *gorm.DB) (int, error) {
	if !tx.Migrator().HasTable(&schemaVersion{}) {
		return 0, nil
	}

	var current int
	if err := tx.Model(&schemaVersion{}).Select("COALESCE(MAX(version), 0)").Scan(&current).Error; err != nil {
		return 0, fmt.Errorf("failed to query version history: %w", err)
	}
	return current, nil
}

func createCollection(tx *gorm.DB, c schema.Collection) error {
	key := `"key" INTEGER PRIMARY KEY`
	if c.AutoIncrement {
		// AUTOINCREMENT keeps keys monotonic and never reuses deleted ones
		key += " AUTOINCREMENT"
	}

	return tx.Exec(fmt.Sprintf(`CREATE TABLE IF NOT EXISTS "%s" (%s, "data" TEXT NOT NULL)`, c.Name, key)).Error
}

func createIndex(tx *gorm.DB, c schema.Collection, idx schema.Index) error {
	unique := ""
	if idx.Unique {
		unique = "UNIQUE "
	}

	return tx.Exec(fmt.Sprintf(`CREATE %sINDEX IF NOT EXISTS "%s" ON "%s" (%s)`,
		unique, c.IndexTable(idx), c.Name, idx.Expression())).Error
}
