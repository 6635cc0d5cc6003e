package types

const (
  SettingChallengeKind    = "challenge_kind"
  SettingAppealMode       = "appeal_mode"
  SettingBlockedAutoReply = "blocked_auto_reply"
)

type Setting struct {
  Key   string `gorm:"primaryKey;column:key"`
  Value string `gorm:"not null;column:value"`
}

func (Setting) TableName() string {
  return "settings"
}
