package repos

import (
  "context"
  "errors"
  "time"
  "gorm.io/gorm"
  "gorm.io/gorm/clause"
  "github.com/yungbote/relaydesk-backend/internal/logger"
  "github.com/yungbote/relaydesk-backend/internal/types"
)

type BlockedUserRepo interface {
  Get(ctx context.Context, tx *gorm.DB, userID int64) (*types.BlockedUser, error)
  // Upsert inserts or replaces the block row. The block reason is
  // whatever the caller set; an existing row's reason is overwritten
  // only by this explicit path, never incidentally.
  Upsert(ctx context.Context, tx *gorm.DB, blocked *types.BlockedUser) error
  UpdateProfile(ctx context.Context, tx *gorm.DB, userID int64, username, firstName, lastName string) error
  Delete(ctx context.Context, tx *gorm.DB, userID int64) error
  List(ctx context.Context, tx *gorm.DB) ([]*types.BlockedUser, error)
}

type blockedUserRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewBlockedUserRepo(db *gorm.DB, baseLog *logger.Logger) BlockedUserRepo {
  return &blockedUserRepo{db: db, log: baseLog.With("repo", "BlockedUserRepo")}
}

func (br *blockedUserRepo) Get(ctx context.Context, tx *gorm.DB, userID int64) (*types.BlockedUser, error) {
  transaction := tx
  if transaction == nil {
    transaction = br.db
  }

  var blocked types.BlockedUser
  err := transaction.WithContext(ctx).Where("user_id = ?", userID).First(&blocked).Error
  if errors.Is(err, gorm.ErrRecordNotFound) {
    return nil, nil
  }
  if err != nil {
    return nil, err
  }
  return &blocked, nil
}

func (br *blockedUserRepo) Upsert(ctx context.Context, tx *gorm.DB, blocked *types.BlockedUser) error {
  transaction := tx
  if transaction == nil {
    transaction = br.db
  }
  if blocked.BlockedAt.IsZero() {
    blocked.BlockedAt = time.Now().UTC()
  }
  return transaction.WithContext(ctx).
    Clauses(clause.OnConflict{
      Columns:   []clause.Column{{Name: "user_id"}},
      UpdateAll: true,
    }).
    Create(blocked).Error
}

func (br *blockedUserRepo) UpdateProfile(ctx context.Context, tx *gorm.DB, userID int64, username, firstName, lastName string) error {
  transaction := tx
  if transaction == nil {
    transaction = br.db
  }
  return transaction.WithContext(ctx).
    Model(&types.BlockedUser{}).
    Where("user_id = ?", userID).
    Updates(map[string]interface{}{
      "username":   username,
      "first_name": firstName,
      "last_name":  lastName,
    }).Error
}

func (br *blockedUserRepo) Delete(ctx context.Context, tx *gorm.DB, userID int64) error {
  transaction := tx
  if transaction == nil {
    transaction = br.db
  }
  return transaction.WithContext(ctx).Where("user_id = ?", userID).Delete(&types.BlockedUser{}).Error
}

func (br *blockedUserRepo) List(ctx context.Context, tx *gorm.DB) ([]*types.BlockedUser, error) {
  transaction := tx
  if transaction == nil {
    transaction = br.db
  }

  var results []*types.BlockedUser
  if err := transaction.WithContext(ctx).Order("blocked_at DESC").Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}
