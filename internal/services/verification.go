package services

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/relaydesk-backend/internal/cache"
	"github.com/yungbote/relaydesk-backend/internal/logger"
	"github.com/yungbote/relaydesk-backend/internal/repos"
	"github.com/yungbote/relaydesk-backend/internal/transport"
	"github.com/yungbote/relaydesk-backend/internal/types"
)

// maxAttempts failed answers auto-block the user.
const maxAttempts = 3

// Decision is the verdict for one inbound user message. Allow means
// the message may proceed to the relay router; everything else is a
// deny with the reason recorded for logs and tests.
type Decision struct {
	Allow  bool
	Reason string
}

const (
	DecisionVerified        = "verified"
	DecisionChallengeIssued = "challenge_issued"
	DecisionChallengePassed = "challenge_passed"
	DecisionChallengeFailed = "challenge_failed"
	DecisionAutoBlocked     = "auto_blocked"
	DecisionBlocked         = "blocked"
	DecisionRateLimited     = "rate_limited"
	DecisionAppealSubmitted = "appeal_submitted"
	DecisionAppealFailed    = "appeal_verification_failed"
)

// VerificationService is the single gate every inbound user message
// passes before it can be relayed.
type VerificationService interface {
	Admit(ctx context.Context, user transport.User, text string) (Decision, error)
	// ConfirmButton handles the out-of-band confirmation event of a
	// button challenge.
	ConfirmButton(ctx context.Context, userID int64) error
}

type verificationService struct {
	db           *gorm.DB
	log          *logger.Logger
	cache        cache.Cache
	verifiedRepo repos.VerifiedUserRepo
	attemptRepo  repos.VerificationAttemptRepo
	blockedRepo  repos.BlockedUserRepo
	challenge    ChallengeService
	appeal       AppealService
	settings     SettingsService
	messenger    transport.Messenger
}

func NewVerificationService(
	db *gorm.DB,
	log *logger.Logger,
	c cache.Cache,
	verifiedRepo repos.VerifiedUserRepo,
	attemptRepo repos.VerificationAttemptRepo,
	blockedRepo repos.BlockedUserRepo,
	challenge ChallengeService,
	appeal AppealService,
	settings SettingsService,
	messenger transport.Messenger,
) VerificationService {
	return &verificationService{
		db:           db,
		log:          log.With("service", "VerificationService"),
		cache:        c,
		verifiedRepo: verifiedRepo,
		attemptRepo:  attemptRepo,
		blockedRepo:  blockedRepo,
		challenge:    challenge,
		appeal:       appeal,
		settings:     settings,
		messenger:    messenger,
	}
}

func (vs *verificationService) Admit(ctx context.Context, user transport.User, text string) (Decision, error) {
	blocked, err := vs.blockedRepo.Get(ctx, nil, user.ID)
	if err != nil {
		return Decision{}, fmt.Errorf("load block state for user %d: %w", user.ID, err)
	}
	if blocked != nil {
		return vs.admitBlocked(ctx, user, text)
	}

	outstanding, err := vs.challenge.Outstanding(ctx, user.ID)
	if err != nil {
		return Decision{}, fmt.Errorf("check outstanding challenge for user %d: %w", user.ID, err)
	}
	if outstanding {
		return vs.admitAnswer(ctx, user, text)
	}

	verified, err := vs.isVerified(ctx, user.ID)
	if err != nil {
		return Decision{}, err
	}
	if verified {
		return Decision{Allow: true, Reason: DecisionVerified}, nil
	}

	return vs.admitUnverified(ctx, user)
}

// admitBlocked handles messages from a blocked user: either an appeal
// challenge answer, or a prompt to start the one-shot appeal.
func (vs *verificationService) admitBlocked(ctx context.Context, user transport.User, text string) (Decision, error) {
	// The block row keeps the latest display fields.
	if err := vs.blockedRepo.UpdateProfile(ctx, nil, user.ID, user.Username, user.FirstName, user.LastName); err != nil {
		vs.log.Warn("blocked user profile refresh failed", "user_id", user.ID, "error", err)
	}

	appealKey := cache.AppealVerificationKey(user.ID)
	_, appealing, err := vs.cache.Get(ctx, appealKey)
	if err != nil {
		return Decision{}, fmt.Errorf("read appeal flag for user %d: %w", user.ID, err)
	}

	if appealing {
		ok, err := vs.challenge.Verify(ctx, user.ID, text)
		if err != nil {
			return Decision{}, err
		}
		if err := vs.cache.Delete(ctx, appealKey); err != nil {
			vs.log.Warn("appeal flag clear failed", "user_id", user.ID, "error", err)
		}
		if err := vs.challenge.Clear(ctx, user.ID); err != nil {
			vs.log.Warn("challenge clear failed", "user_id", user.ID, "error", err)
		}

		if !ok {
			vs.notify(ctx, user.ID, "Incorrect answer. Appeal verification failed.\n\nPlease try again by clicking the Appeal button.")
			return Decision{Reason: DecisionAppealFailed}, nil
		}

		if err := vs.appeal.Submit(ctx, user); err != nil {
			return Decision{}, fmt.Errorf("submit appeal for user %d: %w", user.ID, err)
		}
		return Decision{Reason: DecisionAppealSubmitted}, nil
	}

	text = "Your account has been blocked. If you believe this is a mistake, you can submit an appeal (one-time opportunity)."
	if reply, err := vs.settings.Get(ctx, types.SettingBlockedAutoReply); err != nil {
		vs.log.Warn("blocked auto-reply lookup failed", "user_id", user.ID, "error", err)
	} else if reply != "" {
		text = reply + "\n\n" + text
	}
	_, err = vs.messenger.SendMessage(ctx, transport.SendRequest{
		ChatID: user.ID,
		Text:   text,
		Actions: []transport.Action{
			{Label: "Appeal", Data: EncodeAction(ActionAppealRequest, user.ID)},
		},
	})
	if err != nil {
		vs.log.Warn("blocked notice send failed", "user_id", user.ID, "error", err)
	}
	return Decision{Reason: DecisionBlocked}, nil
}

// admitAnswer consumes the message as a challenge answer. Correct
// answers verify the user but are never forwarded themselves.
func (vs *verificationService) admitAnswer(ctx context.Context, user transport.User, text string) (Decision, error) {
	ok, err := vs.challenge.Verify(ctx, user.ID, text)
	if err != nil {
		return Decision{}, err
	}

	if ok {
		if err := vs.markVerified(ctx, user.ID); err != nil {
			return Decision{}, err
		}
		vs.notify(ctx, user.ID, "Verification successful! You can now send messages.")
		return Decision{Reason: DecisionChallengePassed}, nil
	}

	var count int
	err = vs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var txErr error
		count, txErr = vs.attemptRepo.Increment(ctx, tx, user.ID)
		if txErr != nil {
			return txErr
		}
		if count >= maxAttempts {
			return vs.blockForAttempts(ctx, tx, user)
		}
		return nil
	})
	if err != nil {
		return Decision{}, fmt.Errorf("record failed attempt for user %d: %w", user.ID, err)
	}

	if count >= maxAttempts {
		// Cache invalidation and user notification only after the
		// block committed.
		if err := vs.cache.Delete(ctx, cache.VerifiedKey(user.ID), cache.ChallengeKey(user.ID)); err != nil {
			vs.log.Warn("cache invalidate failed after auto-block", "user_id", user.ID, "error", err)
		}
		vs.log.Warn("user auto-blocked after failed verification attempts", "user_id", user.ID, "attempts", count)
		_, sendErr := vs.messenger.SendMessage(ctx, transport.SendRequest{
			ChatID: user.ID,
			Text:   fmt.Sprintf("You have been blocked after %d failed verification attempts.\n\nIf you believe this is a mistake, you can submit an appeal (one-time opportunity).", maxAttempts),
			Actions: []transport.Action{
				{Label: "Appeal", Data: EncodeAction(ActionAppealRequest, user.ID)},
			},
		})
		if sendErr != nil {
			vs.log.Warn("auto-block notice send failed", "user_id", user.ID, "error", sendErr)
		}
		return Decision{Reason: DecisionAutoBlocked}, nil
	}

	snapshot, err := vs.settings.Snapshot(ctx)
	if err != nil {
		return Decision{}, err
	}
	header := fmt.Sprintf("Incorrect answer (%d/%d attempts).\n\nPlease try again:", count, maxAttempts)
	if err := vs.challenge.Issue(ctx, user, snapshot.ChallengeKind, header); err != nil {
		vs.log.Warn("challenge reissue failed", "user_id", user.ID, "error", err)
	}
	return Decision{Reason: DecisionChallengeFailed}, nil
}

func (vs *verificationService) admitUnverified(ctx context.Context, user transport.User) (Decision, error) {
	allowed, err := vs.cache.SetNX(ctx, cache.RateLimitKey(user.ID), "1", cache.RateLimitTTL)
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit check for user %d: %w", user.ID, err)
	}
	if !allowed {
		return Decision{Reason: DecisionRateLimited}, nil
	}

	snapshot, err := vs.settings.Snapshot(ctx)
	if err != nil {
		return Decision{}, err
	}

	vs.notify(ctx, user.ID, "Your message was not sent. Please complete verification first.")
	if err := vs.challenge.Issue(ctx, user, snapshot.ChallengeKind, ""); err != nil {
		return Decision{}, fmt.Errorf("issue challenge for user %d: %w", user.ID, err)
	}
	return Decision{Reason: DecisionChallengeIssued}, nil
}

func (vs *verificationService) ConfirmButton(ctx context.Context, userID int64) error {
	if err := vs.markVerified(ctx, userID); err != nil {
		return err
	}
	vs.notify(ctx, userID, "Verification successful, you can now send messages")
	return nil
}

// markVerified is the shared success transition: verified row in,
// attempts row out, both in one store transaction, then best-effort
// cache updates.
func (vs *verificationService) markVerified(ctx context.Context, userID int64) error {
	err := vs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := vs.verifiedRepo.Upsert(ctx, tx, userID); err != nil {
			return err
		}
		return vs.attemptRepo.Reset(ctx, tx, userID)
	})
	if err != nil {
		return fmt.Errorf("mark user %d verified: %w", userID, err)
	}

	if err := vs.cache.Set(ctx, cache.VerifiedKey(userID), "1", cache.VerifiedTTL); err != nil {
		vs.log.Warn("verified cache populate failed", "user_id", userID, "error", err)
	}
	if err := vs.challenge.Clear(ctx, userID); err != nil {
		vs.log.Warn("challenge clear failed", "user_id", userID, "error", err)
	}
	return nil
}

// blockForAttempts runs inside the caller's transaction.
func (vs *verificationService) blockForAttempts(ctx context.Context, tx *gorm.DB, user transport.User) error {
	if err := vs.attemptRepo.MarkBlocked(ctx, tx, user.ID); err != nil {
		return err
	}
	if err := vs.blockedRepo.Upsert(ctx, tx, &types.BlockedUser{
		UserID:      user.ID,
		Username:    user.Username,
		FirstName:   user.FirstName,
		LastName:    user.LastName,
		BlockReason: types.BlockReasonAutoAttempts,
	}); err != nil {
		return err
	}
	return vs.verifiedRepo.Delete(ctx, tx, user.ID)
}

func (vs *verificationService) isVerified(ctx context.Context, userID int64) (bool, error) {
	key := cache.VerifiedKey(userID)
	if val, ok, err := vs.cache.Get(ctx, key); err == nil && ok {
		return val == "1", nil
	}

	verified, err := vs.verifiedRepo.Exists(ctx, nil, userID)
	if err != nil {
		return false, fmt.Errorf("load verified state for user %d: %w", userID, err)
	}
	if verified {
		if err := vs.cache.Set(ctx, key, "1", cache.VerifiedTTL); err != nil {
			vs.log.Warn("verified cache populate failed", "user_id", userID, "error", err)
		}
	}
	return verified, nil
}

func (vs *verificationService) notify(ctx context.Context, chatID int64, text string) {
	if _, err := vs.messenger.SendMessage(ctx, transport.SendRequest{ChatID: chatID, Text: text}); err != nil {
		vs.log.Warn("notification send failed", "chat_id", chatID, "error", err)
	}
}
