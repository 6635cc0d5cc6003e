package types

// Topic maps an end-user to their conversation thread in the staff
// workspace. At most one open thread exists per user; the row is
// deleted when the workspace thread becomes unreachable so the next
// inbound message lazily recreates it.
type Topic struct {
  ID       uint  `gorm:"primaryKey"`
  UserID   int64 `gorm:"uniqueIndex;not null;column:user_id"`
  ThreadID int64 `gorm:"uniqueIndex;not null;column:thread_id"`
}

func (Topic) TableName() string {
  return "topics"
}
