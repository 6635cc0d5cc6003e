package cache

import (
	"context"
	"fmt"
	"time"
)

// TTLs from the verification design: challenge answers and appeal
// flags lapse after 5 minutes, the verified fast-path after 30, and
// challenge issuance is rate limited to one per 10 seconds per user.
const (
	VerifiedTTL   = 1800 * time.Second
	ChallengeTTL  = 300 * time.Second
	AppealFlagTTL = 300 * time.Second
	RateLimitTTL  = 10 * time.Second
	SettingTTL    = 300 * time.Second
)

// Cache is the ephemeral tier. Entries may vanish at any time; every
// reader that caches store-backed data must fall back to the store on
// a miss. Errors from Set/Delete are for logging only.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// SetNX stores the value only if the key is absent and reports
	// whether it did. Zero ttl means no expiry.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, keys ...string) error
}

func VerifiedKey(userID int64) string {
	return fmt.Sprintf("verified_%d", userID)
}

func ThreadByUserKey(userID int64) string {
	return fmt.Sprintf("chat_%d_threadid", userID)
}

func UserByThreadKey(threadID int64) string {
	return fmt.Sprintf("threadid_%d_userid", threadID)
}

func ChallengeKey(userID int64) string {
	return fmt.Sprintf("captcha_%d", userID)
}

func RateLimitKey(userID int64) string {
	return fmt.Sprintf("captcha_rate_limit_%d", userID)
}

func AppealVerificationKey(userID int64) string {
	return fmt.Sprintf("appeal_verification_%d", userID)
}

func SettingKey(key string) string {
	return fmt.Sprintf("setting_%s", key)
}
