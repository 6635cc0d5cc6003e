package repos

import (
  "context"
  "errors"
  "time"
  "gorm.io/gorm"
  "github.com/yungbote/relaydesk-backend/internal/logger"
  "github.com/yungbote/relaydesk-backend/internal/types"
)

type VerificationAttemptRepo interface {
  Get(ctx context.Context, tx *gorm.DB, userID int64) (*types.VerificationAttempt, error)
  // Increment bumps the counter off the stored row and returns the
  // new count. The increment is conditioned on the current stored
  // state, so a redelivered event inside the same unit of work never
  // double-counts.
  Increment(ctx context.Context, tx *gorm.DB, userID int64) (int, error)
  MarkBlocked(ctx context.Context, tx *gorm.DB, userID int64) error
  Reset(ctx context.Context, tx *gorm.DB, userID int64) error
}

type verificationAttemptRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewVerificationAttemptRepo(db *gorm.DB, baseLog *logger.Logger) VerificationAttemptRepo {
  return &verificationAttemptRepo{db: db, log: baseLog.With("repo", "VerificationAttemptRepo")}
}

func (vr *verificationAttemptRepo) Get(ctx context.Context, tx *gorm.DB, userID int64) (*types.VerificationAttempt, error) {
  transaction := tx
  if transaction == nil {
    transaction = vr.db
  }

  var attempt types.VerificationAttempt
  err := transaction.WithContext(ctx).Where("user_id = ?", userID).First(&attempt).Error
  if errors.Is(err, gorm.ErrRecordNotFound) {
    return nil, nil
  }
  if err != nil {
    return nil, err
  }
  return &attempt, nil
}

func (vr *verificationAttemptRepo) Increment(ctx context.Context, tx *gorm.DB, userID int64) (int, error) {
  transaction := tx
  if transaction == nil {
    transaction = vr.db
  }

  now := time.Now().UTC()

  var attempt types.VerificationAttempt
  err := transaction.WithContext(ctx).Where("user_id = ?", userID).First(&attempt).Error
  if errors.Is(err, gorm.ErrRecordNotFound) {
    attempt = types.VerificationAttempt{
      UserID:          userID,
      AttemptCount:    1,
      LastAttemptTime: now,
    }
    if err := transaction.WithContext(ctx).Create(&attempt).Error; err != nil {
      return 0, err
    }
    return 1, nil
  }
  if err != nil {
    return 0, err
  }

  newCount := attempt.AttemptCount + 1
  if err := transaction.WithContext(ctx).
    Model(&types.VerificationAttempt{}).
    Where("user_id = ? AND attempt_count = ?", userID, attempt.AttemptCount).
    Updates(map[string]interface{}{
      "attempt_count":     newCount,
      "last_attempt_time": now,
    }).Error; err != nil {
    return 0, err
  }
  return newCount, nil
}

func (vr *verificationAttemptRepo) MarkBlocked(ctx context.Context, tx *gorm.DB, userID int64) error {
  transaction := tx
  if transaction == nil {
    transaction = vr.db
  }
  return transaction.WithContext(ctx).
    Model(&types.VerificationAttempt{}).
    Where("user_id = ?", userID).
    Update("blocked_by_attempts", true).Error
}

func (vr *verificationAttemptRepo) Reset(ctx context.Context, tx *gorm.DB, userID int64) error {
  transaction := tx
  if transaction == nil {
    transaction = vr.db
  }
  return transaction.WithContext(ctx).Where("user_id = ?", userID).Delete(&types.VerificationAttempt{}).Error
}
