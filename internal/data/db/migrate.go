package db

import (
	"fmt"

	"gorm.io/gorm"

	types "github.com/yungbote/entitlement-engine/internal/domain"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(types.Models()...)
}

// EnsureEntitlementIndexes creates the constraints AutoMigrate cannot express.
// Both statements are valid on postgres and sqlite.
func EnsureEntitlementIndexes(db *gorm.DB) error {
	if err := db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_quiz_attempt_user_lesson_active
		ON quiz_attempt(user_id, lesson_id)
		WHERE completed_at IS NULL;
	`).Error; err != nil {
		return fmt.Errorf("create idx_quiz_attempt_user_lesson_active: %w", err)
	}
	if err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_profile_role ON profile(role);`).Error; err != nil {
		return fmt.Errorf("create idx_profile_role: %w", err)
	}
	return nil
}

// Migrate runs AutoMigrateAll followed by the raw index DDL.
func Migrate(db *gorm.DB) error {
	if err := AutoMigrateAll(db); err != nil {
		return err
	}
	return EnsureEntitlementIndexes(db)
}

func (s *PostgresService) AutoMigrateAll() error {
	s.log.Info("Auto migrating postgres tables...")
	if err := AutoMigrateAll(s.db); err != nil {
		s.log.Error("Auto migration failed", "error", err)
		return err
	}
	if err := EnsureEntitlementIndexes(s.db); err != nil {
		s.log.Error("Entitlement index migration failed", "error", err)
		return err
	}
	return nil
}
