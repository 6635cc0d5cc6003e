package types

import (
  "time"
)

const (
  BlockReasonManual       = "manual"
  BlockReasonAutoAttempts = "auto_attempts"
)

type BlockedUser struct {
  UserID      int64     `gorm:"primaryKey;column:user_id"`
  Username    string    `gorm:"column:username"`
  FirstName   string    `gorm:"column:first_name"`
  LastName    string    `gorm:"column:last_name"`
  BlockReason string    `gorm:"column:block_reason;default:manual"`
  BlockedAt   time.Time `gorm:"column:blocked_at"`
}

func (BlockedUser) TableName() string {
  return "blocked_users"
}
