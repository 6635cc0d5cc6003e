package repos

import (
  "context"
  "errors"
  "gorm.io/gorm"
  "github.com/yungbote/relaydesk-backend/internal/logger"
  "github.com/yungbote/relaydesk-backend/internal/types"
)

type TopicRepo interface {
  Create(ctx context.Context, tx *gorm.DB, topic *types.Topic) error
  GetByUserID(ctx context.Context, tx *gorm.DB, userID int64) (*types.Topic, error)
  GetByThreadID(ctx context.Context, tx *gorm.DB, threadID int64) (*types.Topic, error)
  DeleteByThreadID(ctx context.Context, tx *gorm.DB, threadID int64) error
  DeleteByUserID(ctx context.Context, tx *gorm.DB, userID int64) error
}

type topicRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewTopicRepo(db *gorm.DB, baseLog *logger.Logger) TopicRepo {
  return &topicRepo{db: db, log: baseLog.With("repo", "TopicRepo")}
}

func (tr *topicRepo) Create(ctx context.Context, tx *gorm.DB, topic *types.Topic) error {
  transaction := tx
  if transaction == nil {
    transaction = tr.db
  }
  return transaction.WithContext(ctx).Create(topic).Error
}

func (tr *topicRepo) GetByUserID(ctx context.Context, tx *gorm.DB, userID int64) (*types.Topic, error) {
  transaction := tx
  if transaction == nil {
    transaction = tr.db
  }

  var topic types.Topic
  err := transaction.WithContext(ctx).Where("user_id = ?", userID).First(&topic).Error
  if errors.Is(err, gorm.ErrRecordNotFound) {
    return nil, nil
  }
  if err != nil {
    return nil, err
  }
  return &topic, nil
}

func (tr *topicRepo) GetByThreadID(ctx context.Context, tx *gorm.DB, threadID int64) (*types.Topic, error) {
  transaction := tx
  if transaction == nil {
    transaction = tr.db
  }

  var topic types.Topic
  err := transaction.WithContext(ctx).Where("thread_id = ?", threadID).First(&topic).Error
  if errors.Is(err, gorm.ErrRecordNotFound) {
    return nil, nil
  }
  if err != nil {
    return nil, err
  }
  return &topic, nil
}

func (tr *topicRepo) DeleteByThreadID(ctx context.Context, tx *gorm.DB, threadID int64) error {
  transaction := tx
  if transaction == nil {
    transaction = tr.db
  }
  return transaction.WithContext(ctx).Where("thread_id = ?", threadID).Delete(&types.Topic{}).Error
}

func (tr *topicRepo) DeleteByUserID(ctx context.Context, tx *gorm.DB, userID int64) error {
  transaction := tx
  if transaction == nil {
    transaction = tr.db
  }
  return transaction.WithContext(ctx).Where("user_id = ?", userID).Delete(&types.Topic{}).Error
}
