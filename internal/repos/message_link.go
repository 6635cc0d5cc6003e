package repos

import (
  "context"
  "errors"
  "gorm.io/gorm"
  "github.com/yungbote/relaydesk-backend/internal/logger"
  "github.com/yungbote/relaydesk-backend/internal/types"
)

type MessageLinkRepo interface {
  Create(ctx context.Context, tx *gorm.DB, link *types.MessageLink) error
  // GetForwardedID resolves the forwarded copy of a message the same
  // side authored. Returns (0, nil) when no link exists.
  GetForwardedID(ctx context.Context, tx *gorm.DB, receivedID, topicID int64, inGroup bool) (int64, error)
  // GetReceivedID resolves the original of a forwarded copy, for
  // replies that cross the boundary. Returns (0, nil) when no link
  // exists.
  GetReceivedID(ctx context.Context, tx *gorm.DB, forwardedID, topicID int64, inGroup bool) (int64, error)
}

type messageLinkRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewMessageLinkRepo(db *gorm.DB, baseLog *logger.Logger) MessageLinkRepo {
  return &messageLinkRepo{db: db, log: baseLog.With("repo", "MessageLinkRepo")}
}

func (mr *messageLinkRepo) Create(ctx context.Context, tx *gorm.DB, link *types.MessageLink) error {
  transaction := tx
  if transaction == nil {
    transaction = mr.db
  }
  return transaction.WithContext(ctx).Create(link).Error
}

func (mr *messageLinkRepo) GetForwardedID(ctx context.Context, tx *gorm.DB, receivedID, topicID int64, inGroup bool) (int64, error) {
  transaction := tx
  if transaction == nil {
    transaction = mr.db
  }

  var link types.MessageLink
  err := transaction.WithContext(ctx).
    Where("received_id = ? AND topic_id = ? AND in_group = ?", receivedID, topicID, inGroup).
    First(&link).Error
  if errors.Is(err, gorm.ErrRecordNotFound) {
    return 0, nil
  }
  if err != nil {
    return 0, err
  }
  return link.ForwardedID, nil
}

func (mr *messageLinkRepo) GetReceivedID(ctx context.Context, tx *gorm.DB, forwardedID, topicID int64, inGroup bool) (int64, error) {
  transaction := tx
  if transaction == nil {
    transaction = mr.db
  }

  var link types.MessageLink
  err := transaction.WithContext(ctx).
    Where("forwarded_id = ? AND topic_id = ? AND in_group = ?", forwardedID, topicID, inGroup).
    First(&link).Error
  if errors.Is(err, gorm.ErrRecordNotFound) {
    return 0, nil
  }
  if err != nil {
    return 0, err
  }
  return link.ReceivedID, nil
}
