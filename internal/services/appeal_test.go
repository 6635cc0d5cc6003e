package services

import (
	"context"
	"errors"
	"testing"

	"github.com/yungbote/relaydesk-backend/internal/cache"
	"github.com/yungbote/relaydesk-backend/internal/repos"
	"github.com/yungbote/relaydesk-backend/internal/transport"
	"github.com/yungbote/relaydesk-backend/internal/types"
)

func blockUser(t *testing.T, env *testEnv, user transport.User) {
	t.Helper()
	err := env.blockedRepo.Upsert(context.Background(), nil, &types.BlockedUser{
		UserID:      user.ID,
		Username:    user.Username,
		FirstName:   user.FirstName,
		BlockReason: types.BlockReasonAutoAttempts,
	})
	if err != nil {
		t.Fatalf("Upsert blocked: %v", err)
	}
}

func TestAppealManualFlow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := transport.User{ID: 2001, FirstName: "Sam", Username: "sam"}
	blockUser(t, env, user)

	if err := env.appeal.Request(ctx, user); err != nil {
		t.Fatalf("Request: %v", err)
	}
	if _, ok, _ := env.mem.Get(ctx, cache.AppealVerificationKey(user.ID)); !ok {
		t.Fatalf("expected appeal flag after Request")
	}

	answer := env.challengeAnswer(t, user.ID)
	decision, err := env.verification.Admit(ctx, user, answer)
	if err != nil {
		t.Fatalf("Admit (appeal answer): %v", err)
	}
	if decision.Reason != DecisionAppealSubmitted {
		t.Fatalf("expected appeal_submitted, got %+v", decision)
	}

	appeal, err := env.appealRepo.GetByUserID(ctx, nil, user.ID)
	if err != nil {
		t.Fatalf("GetByUserID: %v", err)
	}
	if appeal == nil || appeal.Status != types.AppealStatusPending {
		t.Fatalf("expected pending appeal, got %+v", appeal)
	}

	// The review notice lands in the workspace with both affordances.
	workspace := env.fm.sentTo(testWorkspaceChatID)
	if len(workspace) == 0 || len(workspace[len(workspace)-1].Actions) != 2 {
		t.Fatalf("expected review notice with approve/reject actions, got %+v", workspace)
	}

	adminID := int64(42)
	if err := env.appeal.Resolve(ctx, user.ID, true, &adminID); err != nil {
		t.Fatalf("Resolve (approve): %v", err)
	}

	appeal, err = env.appealRepo.GetByUserID(ctx, nil, user.ID)
	if err != nil {
		t.Fatalf("GetByUserID (resolved): %v", err)
	}
	if appeal.Status != types.AppealStatusApproved || appeal.AdminID == nil || *appeal.AdminID != adminID {
		t.Fatalf("expected approved appeal handled by admin %d, got %+v", adminID, appeal)
	}

	blocked, err := env.blockedRepo.Get(ctx, nil, user.ID)
	if err != nil {
		t.Fatalf("Get blocked: %v", err)
	}
	if blocked != nil {
		t.Fatalf("block row must be removed on approval, got %+v", blocked)
	}

	if err := env.appeal.Resolve(ctx, user.ID, false, &adminID); !errors.Is(err, repos.ErrAppealNotPending) {
		t.Fatalf("second Resolve must report not pending, got %v", err)
	}
}

func TestAppealIsOneShot(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := transport.User{ID: 2002, FirstName: "Kai"}
	blockUser(t, env, user)

	if err := env.appealRepo.Create(ctx, nil, &types.AppealRequest{UserID: user.ID}); err != nil {
		t.Fatalf("Create appeal: %v", err)
	}
	if err := env.appeal.Resolve(ctx, user.ID, false, nil); err != nil {
		t.Fatalf("Resolve (reject): %v", err)
	}

	before := len(env.fm.sentTo(user.ID))
	if err := env.appeal.Request(ctx, user); err != nil {
		t.Fatalf("Request (after rejection): %v", err)
	}
	after := env.fm.sentTo(user.ID)
	if len(after) != before+1 {
		t.Fatalf("expected exactly one status message, got %d new", len(after)-before)
	}
	if _, ok, _ := env.mem.Get(ctx, cache.ChallengeKey(user.ID)); ok {
		t.Fatalf("no challenge may be issued after a resolved appeal")
	}
}

func TestAppealAutoMode(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := transport.User{ID: 2003, FirstName: "Noa"}
	blockUser(t, env, user)

	if err := env.settings.Set(ctx, types.SettingAppealMode, types.AppealModeAuto); err != nil {
		t.Fatalf("Set appeal mode: %v", err)
	}

	if err := env.appeal.Request(ctx, user); err != nil {
		t.Fatalf("Request: %v", err)
	}
	answer := env.challengeAnswer(t, user.ID)
	decision, err := env.verification.Admit(ctx, user, answer)
	if err != nil {
		t.Fatalf("Admit (appeal answer): %v", err)
	}
	if decision.Reason != DecisionAppealSubmitted {
		t.Fatalf("expected appeal_submitted, got %+v", decision)
	}

	appeal, err := env.appealRepo.GetByUserID(ctx, nil, user.ID)
	if err != nil {
		t.Fatalf("GetByUserID: %v", err)
	}
	if appeal == nil || appeal.Status != types.AppealStatusApproved {
		t.Fatalf("auto mode must approve on the spot, got %+v", appeal)
	}

	blocked, err := env.blockedRepo.Get(ctx, nil, user.ID)
	if err != nil {
		t.Fatalf("Get blocked: %v", err)
	}
	if blocked != nil {
		t.Fatalf("block row must be removed in auto mode, got %+v", blocked)
	}
}

func TestAppealWrongAnswerFailsSubmission(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := transport.User{ID: 2004}
	blockUser(t, env, user)

	if err := env.appeal.Request(ctx, user); err != nil {
		t.Fatalf("Request: %v", err)
	}
	decision, err := env.verification.Admit(ctx, user, "definitely wrong")
	if err != nil {
		t.Fatalf("Admit (wrong appeal answer): %v", err)
	}
	if decision.Reason != DecisionAppealFailed {
		t.Fatalf("expected appeal_verification_failed, got %+v", decision)
	}

	appeal, err := env.appealRepo.GetByUserID(ctx, nil, user.ID)
	if err != nil {
		t.Fatalf("GetByUserID: %v", err)
	}
	if appeal != nil {
		t.Fatalf("no appeal row may exist after a failed answer, got %+v", appeal)
	}
	if _, ok, _ := env.mem.Get(ctx, cache.AppealVerificationKey(user.ID)); ok {
		t.Fatalf("appeal flag must be cleared after a failed answer")
	}

	// A wrong appeal answer does not burn the one-shot; Request works
	// again.
	if err := env.appeal.Request(ctx, user); err != nil {
		t.Fatalf("Request (retry): %v", err)
	}
	if _, ok, _ := env.mem.Get(ctx, cache.ChallengeKey(user.ID)); !ok {
		t.Fatalf("expected a fresh appeal challenge on retry")
	}
}

func TestAppealRequestNotBlocked(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := transport.User{ID: 2005}

	if err := env.appeal.Request(ctx, user); err != nil {
		t.Fatalf("Request: %v", err)
	}
	if _, ok, _ := env.mem.Get(ctx, cache.AppealVerificationKey(user.ID)); ok {
		t.Fatalf("no appeal flag may be set for an unblocked user")
	}
}
