package repos

import (
  "context"
  "errors"
  "time"
  "gorm.io/gorm"
  "github.com/yungbote/relaydesk-backend/internal/logger"
  "github.com/yungbote/relaydesk-backend/internal/types"
)

// ErrAppealNotPending is returned by Resolve when no pending appeal
// exists for the user, covering both "never appealed" and "already
// resolved".
var ErrAppealNotPending = errors.New("appeal is not pending")

type AppealRequestRepo interface {
  GetByUserID(ctx context.Context, tx *gorm.DB, userID int64) (*types.AppealRequest, error)
  Create(ctx context.Context, tx *gorm.DB, appeal *types.AppealRequest) error
  // Resolve flips a pending appeal to the given status. The update is
  // guarded on status='pending' so a lost race or a replayed action
  // surfaces as ErrAppealNotPending instead of a second mutation.
  Resolve(ctx context.Context, tx *gorm.DB, userID int64, status string, adminID *int64) error
  ListByStatus(ctx context.Context, tx *gorm.DB, status string) ([]*types.AppealRequest, error)
  List(ctx context.Context, tx *gorm.DB) ([]*types.AppealRequest, error)
}

type appealRequestRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewAppealRequestRepo(db *gorm.DB, baseLog *logger.Logger) AppealRequestRepo {
  return &appealRequestRepo{db: db, log: baseLog.With("repo", "AppealRequestRepo")}
}

func (ar *appealRequestRepo) GetByUserID(ctx context.Context, tx *gorm.DB, userID int64) (*types.AppealRequest, error) {
  transaction := tx
  if transaction == nil {
    transaction = ar.db
  }

  var appeal types.AppealRequest
  err := transaction.WithContext(ctx).Where("user_id = ?", userID).First(&appeal).Error
  if errors.Is(err, gorm.ErrRecordNotFound) {
    return nil, nil
  }
  if err != nil {
    return nil, err
  }
  return &appeal, nil
}

func (ar *appealRequestRepo) Create(ctx context.Context, tx *gorm.DB, appeal *types.AppealRequest) error {
  transaction := tx
  if transaction == nil {
    transaction = ar.db
  }
  if appeal.AppealTime.IsZero() {
    appeal.AppealTime = time.Now().UTC()
  }
  if appeal.Status == "" {
    appeal.Status = types.AppealStatusPending
  }
  return transaction.WithContext(ctx).Create(appeal).Error
}

func (ar *appealRequestRepo) Resolve(ctx context.Context, tx *gorm.DB, userID int64, status string, adminID *int64) error {
  transaction := tx
  if transaction == nil {
    transaction = ar.db
  }

  now := time.Now().UTC()
  result := transaction.WithContext(ctx).
    Model(&types.AppealRequest{}).
    Where("user_id = ? AND status = ?", userID, types.AppealStatusPending).
    Updates(map[string]interface{}{
      "status":     status,
      "admin_id":   adminID,
      "handled_at": now,
    })
  if result.Error != nil {
    return result.Error
  }
  if result.RowsAffected == 0 {
    return ErrAppealNotPending
  }
  return nil
}

func (ar *appealRequestRepo) ListByStatus(ctx context.Context, tx *gorm.DB, status string) ([]*types.AppealRequest, error) {
  transaction := tx
  if transaction == nil {
    transaction = ar.db
  }

  var results []*types.AppealRequest
  if err := transaction.WithContext(ctx).Where("status = ?", status).Order("appeal_time ASC").Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

func (ar *appealRequestRepo) List(ctx context.Context, tx *gorm.DB) ([]*types.AppealRequest, error) {
  transaction := tx
  if transaction == nil {
    transaction = ar.db
  }

  var results []*types.AppealRequest
  if err := transaction.WithContext(ctx).Order("appeal_time DESC").Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}
