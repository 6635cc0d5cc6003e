package db

import (
  "context"
  "fmt"
  "gorm.io/gorm"
  "github.com/yungbote/relaydesk-backend/internal/logger"
  "github.com/yungbote/relaydesk-backend/internal/repos"
  "github.com/yungbote/relaydesk-backend/internal/types"
)

// Migrate brings the schema up to date. Every step checks current
// state before changing anything, so re-running against an already
// migrated store is a no-op.
func Migrate(db *gorm.DB, log *logger.Logger) error {
  migrateLog := log.With("service", "Migrate")

  if err := db.AutoMigrate(
    &types.Topic{},
    &types.MessageLink{},
    &types.BlockedUser{},
    &types.VerifiedUser{},
    &types.Setting{},
    &types.RelayEvent{},
  ); err != nil {
    migrateLog.Error("Auto migration failed for base tables", "error", err)
    return fmt.Errorf("migrate base tables: %w", err)
  }

  migrator := db.Migrator()

  if !migrator.HasTable(&types.VerificationAttempt{}) {
    if err := db.AutoMigrate(&types.VerificationAttempt{}); err != nil {
      return fmt.Errorf("create verification_attempts: %w", err)
    }
    migrateLog.Info("Created verification_attempts table")
  }

  if !migrator.HasTable(&types.AppealRequest{}) {
    if err := db.AutoMigrate(&types.AppealRequest{}); err != nil {
      return fmt.Errorf("create appeal_requests: %w", err)
    }
    migrateLog.Info("Created appeal_requests table")
  }

  if !migrator.HasColumn(&types.BlockedUser{}, "block_reason") {
    if err := migrator.AddColumn(&types.BlockedUser{}, "block_reason"); err != nil {
      return fmt.Errorf("add blocked_users.block_reason: %w", err)
    }
    migrateLog.Info("Added block_reason column to blocked_users table")
  }

  settingRepo := repos.NewSettingRepo(db, log)
  ctx := context.Background()
  defaults := map[string]string{
    types.SettingChallengeKind: "math",
    types.SettingAppealMode:    types.AppealModeManual,
  }
  for key, value := range defaults {
    if err := settingRepo.EnsureDefault(ctx, nil, key, value); err != nil {
      return fmt.Errorf("seed setting %s: %w", key, err)
    }
  }

  return nil
}
