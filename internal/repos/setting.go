package repos

import (
  "context"
  "errors"
  "gorm.io/gorm"
  "gorm.io/gorm/clause"
  "github.com/yungbote/relaydesk-backend/internal/logger"
  "github.com/yungbote/relaydesk-backend/internal/types"
)

type SettingRepo interface {
  // Get returns ("", nil) when the key is absent.
  Get(ctx context.Context, tx *gorm.DB, key string) (string, error)
  Set(ctx context.Context, tx *gorm.DB, key, value string) error
  // EnsureDefault seeds the row only when missing, so migrations can
  // re-run without clobbering operator changes.
  EnsureDefault(ctx context.Context, tx *gorm.DB, key, value string) error
}

type settingRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewSettingRepo(db *gorm.DB, baseLog *logger.Logger) SettingRepo {
  return &settingRepo{db: db, log: baseLog.With("repo", "SettingRepo")}
}

func (sr *settingRepo) Get(ctx context.Context, tx *gorm.DB, key string) (string, error) {
  transaction := tx
  if transaction == nil {
    transaction = sr.db
  }

  var setting types.Setting
  err := transaction.WithContext(ctx).Where("key = ?", key).First(&setting).Error
  if errors.Is(err, gorm.ErrRecordNotFound) {
    return "", nil
  }
  if err != nil {
    return "", err
  }
  return setting.Value, nil
}

func (sr *settingRepo) Set(ctx context.Context, tx *gorm.DB, key, value string) error {
  transaction := tx
  if transaction == nil {
    transaction = sr.db
  }
  return transaction.WithContext(ctx).
    Clauses(clause.OnConflict{
      Columns:   []clause.Column{{Name: "key"}},
      DoUpdates: clause.AssignmentColumns([]string{"value"}),
    }).
    Create(&types.Setting{Key: key, Value: value}).Error
}

func (sr *settingRepo) EnsureDefault(ctx context.Context, tx *gorm.DB, key, value string) error {
  transaction := tx
  if transaction == nil {
    transaction = sr.db
  }
  return transaction.WithContext(ctx).
    Clauses(clause.OnConflict{DoNothing: true}).
    Create(&types.Setting{Key: key, Value: value}).Error
}
