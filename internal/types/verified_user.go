package types

// VerifiedUser presence means the user passed a challenge (or was
// verified manually). Absence means unverified.
type VerifiedUser struct {
  UserID int64 `gorm:"primaryKey;column:user_id"`
}

func (VerifiedUser) TableName() string {
  return "verified_users"
}
