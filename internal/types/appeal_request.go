package types

import (
  "time"
)

const (
  AppealStatusPending  = "pending"
  AppealStatusApproved = "approved"
  AppealStatusRejected = "rejected"
)

const (
  AppealModeManual = "manual"
  AppealModeAuto   = "auto"
)

// AppealRequest is the one appeal a blocked user may ever file. Once
// the status leaves pending it never changes again.
type AppealRequest struct {
  ID         uint       `gorm:"primaryKey"`
  UserID     int64      `gorm:"uniqueIndex;not null;column:user_id"`
  AppealTime time.Time  `gorm:"column:appeal_time"`
  Status     string     `gorm:"not null;default:pending;column:status"`
  AdminID    *int64     `gorm:"column:admin_id"`
  HandledAt  *time.Time `gorm:"column:handled_at"`
}

func (AppealRequest) TableName() string {
  return "appeal_requests"
}
