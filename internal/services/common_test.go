package services

import (
	"context"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/relaydesk-backend/internal/cache"
	"github.com/yungbote/relaydesk-backend/internal/repos"
	"github.com/yungbote/relaydesk-backend/internal/repos/testutil"
)

const testWorkspaceChatID = int64(-50001)

// testEnv wires the full service graph over an in-memory store and a
// recording messenger.
type testEnv struct {
	db           *gorm.DB
	mem          *cache.Memory
	fm           *fakeMessenger
	settings     SettingsService
	challenge    ChallengeService
	appeal       AppealService
	verification VerificationService
	router       RouterService
	moderation   ModerationService
	topicRepo    repos.TopicRepo
	linkRepo     repos.MessageLinkRepo
	blockedRepo  repos.BlockedUserRepo
	attemptRepo  repos.VerificationAttemptRepo
	appealRepo   repos.AppealRequestRepo
	verifiedRepo repos.VerifiedUserRepo
	settingRepo  repos.SettingRepo
	eventRepo    repos.RelayEventRepo
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	mem := cache.NewMemory()
	fm := newFakeMessenger()

	env := &testEnv{
		db:           db,
		mem:          mem,
		fm:           fm,
		topicRepo:    repos.NewTopicRepo(db, log),
		linkRepo:     repos.NewMessageLinkRepo(db, log),
		blockedRepo:  repos.NewBlockedUserRepo(db, log),
		attemptRepo:  repos.NewVerificationAttemptRepo(db, log),
		appealRepo:   repos.NewAppealRequestRepo(db, log),
		verifiedRepo: repos.NewVerifiedUserRepo(db, log),
		settingRepo:  repos.NewSettingRepo(db, log),
		eventRepo:    repos.NewRelayEventRepo(db, log),
	}
	env.settings = NewSettingsService(db, log, env.settingRepo, mem)
	env.challenge = NewChallengeService(log, mem, fm)
	env.appeal = NewAppealService(db, log, mem, env.appealRepo, env.blockedRepo, env.attemptRepo, env.challenge, env.settings, fm, testWorkspaceChatID)
	env.verification = NewVerificationService(db, log, mem, env.verifiedRepo, env.attemptRepo, env.blockedRepo, env.challenge, env.appeal, env.settings, fm)
	env.router = NewRouterService(db, log, mem, env.topicRepo, env.linkRepo, env.eventRepo, fm, testWorkspaceChatID)
	env.moderation = NewModerationService(db, log, mem, env.blockedRepo, env.verifiedRepo, env.attemptRepo, env.eventRepo)
	return env
}

// futureClock returns a time source shifted forward by d.
func futureClock(d time.Duration) func() time.Time {
	base := time.Now()
	return func() time.Time { return base.Add(d) }
}

// challengeAnswer reads the stored expectation for a user so tests can
// answer correctly without parsing prompt text.
func (env *testEnv) challengeAnswer(t *testing.T, userID int64) string {
	t.Helper()
	answer, ok, err := env.mem.Get(context.Background(), cache.ChallengeKey(userID))
	if err != nil {
		t.Fatalf("read challenge answer: %v", err)
	}
	if !ok {
		t.Fatalf("no outstanding challenge for user %d", userID)
	}
	return answer
}
