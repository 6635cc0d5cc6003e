package types

import (
  "time"
  "gorm.io/datatypes"
  "github.com/google/uuid"
)

const (
  RelayDirectionInbound  = "inbound"
  RelayDirectionOutbound = "outbound"
)

const (
  RelayOutcomeForwarded   = "forwarded"
  RelayOutcomeDenied      = "denied"
  RelayOutcomeRecoverable = "recoverable"
  RelayOutcomeFailed      = "failed"
)

// RelayEvent is an append-only audit row written per processed
// message, giving operators enough context to diagnose store or
// transport failures after the fact.
type RelayEvent struct {
  ID        uuid.UUID      `gorm:"type:uuid;primaryKey"`
  UserID    int64          `gorm:"index;column:user_id"`
  ThreadID  int64          `gorm:"column:thread_id"`
  Direction string         `gorm:"column:direction"`
  Outcome   string         `gorm:"column:outcome"`
  Detail    datatypes.JSON `gorm:"column:detail"`
  CreatedAt time.Time      `gorm:"not null;column:created_at"`
}

func (RelayEvent) TableName() string {
  return "relay_events"
}
