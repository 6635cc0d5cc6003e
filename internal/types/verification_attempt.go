package types

import (
  "time"
)

// VerificationAttempt counts failed challenge answers per user. The
// row is created on the first failure and deleted on success or
// appeal approval, so AttemptCount only ever grows between resets.
type VerificationAttempt struct {
  ID                uint      `gorm:"primaryKey"`
  UserID            int64     `gorm:"uniqueIndex;not null;column:user_id"`
  AttemptCount      int       `gorm:"not null;default:0;column:attempt_count"`
  LastAttemptTime   time.Time `gorm:"column:last_attempt_time"`
  BlockedByAttempts bool      `gorm:"not null;default:false;column:blocked_by_attempts"`
}

func (VerificationAttempt) TableName() string {
  return "verification_attempts"
}
