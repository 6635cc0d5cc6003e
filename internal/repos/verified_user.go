package repos

import (
  "context"
  "gorm.io/gorm"
  "gorm.io/gorm/clause"
  "github.com/yungbote/relaydesk-backend/internal/logger"
  "github.com/yungbote/relaydesk-backend/internal/types"
)

type VerifiedUserRepo interface {
  Exists(ctx context.Context, tx *gorm.DB, userID int64) (bool, error)
  Upsert(ctx context.Context, tx *gorm.DB, userID int64) error
  Delete(ctx context.Context, tx *gorm.DB, userID int64) error
}

type verifiedUserRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewVerifiedUserRepo(db *gorm.DB, baseLog *logger.Logger) VerifiedUserRepo {
  return &verifiedUserRepo{db: db, log: baseLog.With("repo", "VerifiedUserRepo")}
}

func (vr *verifiedUserRepo) Exists(ctx context.Context, tx *gorm.DB, userID int64) (bool, error) {
  transaction := tx
  if transaction == nil {
    transaction = vr.db
  }

  var count int64
  if err := transaction.WithContext(ctx).
    Model(&types.VerifiedUser{}).
    Where("user_id = ?", userID).
    Count(&count).Error; err != nil {
    return false, err
  }
  return count > 0, nil
}

func (vr *verifiedUserRepo) Upsert(ctx context.Context, tx *gorm.DB, userID int64) error {
  transaction := tx
  if transaction == nil {
    transaction = vr.db
  }
  return transaction.WithContext(ctx).
    Clauses(clause.OnConflict{DoNothing: true}).
    Create(&types.VerifiedUser{UserID: userID}).Error
}

func (vr *verifiedUserRepo) Delete(ctx context.Context, tx *gorm.DB, userID int64) error {
  transaction := tx
  if transaction == nil {
    transaction = vr.db
  }
  return transaction.WithContext(ctx).Where("user_id = ?", userID).Delete(&types.VerifiedUser{}).Error
}
