package types

// MessageLink records one successful forward across the boundary.
// InGroup is the direction flag: true when the received message was
// authored inside the workspace. (received_id, topic_id, in_group)
// uniquely resolves forwarded_id and the symmetric lookup holds.
type MessageLink struct {
  ID          uint  `gorm:"primaryKey"`
  ReceivedID  int64 `gorm:"not null;column:received_id;index:idx_messages_received,priority:1"`
  ForwardedID int64 `gorm:"not null;column:forwarded_id;index:idx_messages_forwarded,priority:1"`
  TopicID     int64 `gorm:"not null;column:topic_id;index:idx_messages_received,priority:2;index:idx_messages_forwarded,priority:2"`
  InGroup     bool  `gorm:"not null;column:in_group;index:idx_messages_received,priority:3;index:idx_messages_forwarded,priority:3"`
}

func (MessageLink) TableName() string {
  return "messages"
}
