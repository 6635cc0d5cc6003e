package repos

import (
  "context"
  "encoding/json"
  "time"
  "gorm.io/gorm"
  "gorm.io/datatypes"
  "github.com/google/uuid"
  "github.com/yungbote/relaydesk-backend/internal/logger"
  "github.com/yungbote/relaydesk-backend/internal/types"
)

type RelayEventRepo interface {
  Record(ctx context.Context, tx *gorm.DB, userID, threadID int64, direction, outcome string, detail map[string]interface{}) error
  ListByUser(ctx context.Context, tx *gorm.DB, userID int64, limit int) ([]*types.RelayEvent, error)
}

type relayEventRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewRelayEventRepo(db *gorm.DB, baseLog *logger.Logger) RelayEventRepo {
  return &relayEventRepo{db: db, log: baseLog.With("repo", "RelayEventRepo")}
}

func (rr *relayEventRepo) Record(ctx context.Context, tx *gorm.DB, userID, threadID int64, direction, outcome string, detail map[string]interface{}) error {
  transaction := tx
  if transaction == nil {
    transaction = rr.db
  }

  var raw datatypes.JSON
  if detail != nil {
    encoded, err := json.Marshal(detail)
    if err != nil {
      return err
    }
    raw = datatypes.JSON(encoded)
  }

  event := &types.RelayEvent{
    ID:        uuid.New(),
    UserID:    userID,
    ThreadID:  threadID,
    Direction: direction,
    Outcome:   outcome,
    Detail:    raw,
    CreatedAt: time.Now().UTC(),
  }
  return transaction.WithContext(ctx).Create(event).Error
}

func (rr *relayEventRepo) ListByUser(ctx context.Context, tx *gorm.DB, userID int64, limit int) ([]*types.RelayEvent, error) {
  transaction := tx
  if transaction == nil {
    transaction = rr.db
  }
  if limit <= 0 {
    limit = 50
  }

  var results []*types.RelayEvent
  if err := transaction.WithContext(ctx).
    Where("user_id = ?", userID).
    Order("created_at DESC").
    Limit(limit).
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}
