package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/yungbote/relaydesk-backend/internal/cache"
	"github.com/yungbote/relaydesk-backend/internal/logger"
	"github.com/yungbote/relaydesk-backend/internal/repos"
	"github.com/yungbote/relaydesk-backend/internal/transport"
	"github.com/yungbote/relaydesk-backend/internal/types"
)

// AppealService owns the one-shot appeal flow for blocked users:
// appeal challenge bootstrap, submission, and resolution.
type AppealService interface {
	// Request starts the appeal: checks eligibility, flags the user as
	// appealing and issues a verification challenge.
	Request(ctx context.Context, user transport.User) error
	// Submit records the appeal after a passed appeal challenge. In
	// auto mode the appeal is approved on the spot.
	Submit(ctx context.Context, user transport.User) error
	// Resolve approves or rejects a pending appeal.
	Resolve(ctx context.Context, userID int64, approve bool, adminID *int64) error
	ListPending(ctx context.Context) ([]*types.AppealRequest, error)
	List(ctx context.Context) ([]*types.AppealRequest, error)
}

type appealService struct {
	db              *gorm.DB
	log             *logger.Logger
	cache           cache.Cache
	appealRepo      repos.AppealRequestRepo
	blockedRepo     repos.BlockedUserRepo
	attemptRepo     repos.VerificationAttemptRepo
	challenge       ChallengeService
	settings        SettingsService
	messenger       transport.Messenger
	workspaceChatID int64
}

func NewAppealService(
	db *gorm.DB,
	log *logger.Logger,
	c cache.Cache,
	appealRepo repos.AppealRequestRepo,
	blockedRepo repos.BlockedUserRepo,
	attemptRepo repos.VerificationAttemptRepo,
	challenge ChallengeService,
	settings SettingsService,
	messenger transport.Messenger,
	workspaceChatID int64,
) AppealService {
	return &appealService{
		db:              db,
		log:             log.With("service", "AppealService"),
		cache:           c,
		appealRepo:      appealRepo,
		blockedRepo:     blockedRepo,
		attemptRepo:     attemptRepo,
		challenge:       challenge,
		settings:        settings,
		messenger:       messenger,
		workspaceChatID: workspaceChatID,
	}
}

func (as *appealService) Request(ctx context.Context, user transport.User) error {
	existing, err := as.appealRepo.GetByUserID(ctx, nil, user.ID)
	if err != nil {
		return fmt.Errorf("load appeal for user %d: %w", user.ID, err)
	}
	if existing != nil {
		as.notify(ctx, user.ID, appealStatusMessage(existing.Status))
		return nil
	}

	blocked, err := as.blockedRepo.Get(ctx, nil, user.ID)
	if err != nil {
		return fmt.Errorf("load block state for user %d: %w", user.ID, err)
	}
	if blocked == nil {
		as.notify(ctx, user.ID, "Your account is not blocked. No appeal is needed.")
		return nil
	}

	if err := as.cache.Set(ctx, cache.AppealVerificationKey(user.ID), "1", cache.AppealFlagTTL); err != nil {
		return fmt.Errorf("flag appeal for user %d: %w", user.ID, err)
	}

	snapshot, err := as.settings.Snapshot(ctx)
	if err != nil {
		return err
	}
	header := "To submit your appeal, please complete this verification first:"
	if err := as.challenge.Issue(ctx, user, snapshot.ChallengeKind, header); err != nil {
		return fmt.Errorf("issue appeal challenge for user %d: %w", user.ID, err)
	}
	return nil
}

func (as *appealService) Submit(ctx context.Context, user transport.User) error {
	// Re-check: the flow is one-shot, so a row created between
	// Request and Submit wins.
	existing, err := as.appealRepo.GetByUserID(ctx, nil, user.ID)
	if err != nil {
		return fmt.Errorf("load appeal for user %d: %w", user.ID, err)
	}
	if existing != nil {
		as.notify(ctx, user.ID, appealStatusMessage(existing.Status))
		return nil
	}

	err = as.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return as.appealRepo.Create(ctx, tx, &types.AppealRequest{UserID: user.ID})
	})
	if err != nil {
		return fmt.Errorf("create appeal for user %d: %w", user.ID, err)
	}

	snapshot, err := as.settings.Snapshot(ctx)
	if err != nil {
		return err
	}

	if snapshot.AppealMode == types.AppealModeAuto {
		if err := as.Resolve(ctx, user.ID, true, nil); err != nil {
			return err
		}
		as.notify(ctx, user.ID, "Note: your account is on watch. Repeated violations will not be appealable.")
		as.notify(ctx, as.workspaceChatID, fmt.Sprintf("Appeal from %s (ID: %d) was auto-approved. The user is on watch.", displayName(user), user.ID))
		return nil
	}

	as.notify(ctx, user.ID, "Your appeal has been submitted and is pending review.")
	_, err = as.messenger.SendMessage(ctx, transport.SendRequest{
		ChatID: as.workspaceChatID,
		Text:   fmt.Sprintf("Appeal request from %s (ID: %d).", displayName(user), user.ID),
		Actions: []transport.Action{
			{Label: "Approve", Data: EncodeAction(ActionApproveAppeal, user.ID)},
			{Label: "Reject", Data: EncodeAction(ActionRejectAppeal, user.ID)},
		},
	})
	if err != nil {
		as.log.Warn("appeal review notice send failed", "user_id", user.ID, "error", err)
	}
	return nil
}

func (as *appealService) Resolve(ctx context.Context, userID int64, approve bool, adminID *int64) error {
	status := types.AppealStatusRejected
	if approve {
		status = types.AppealStatusApproved
	}

	err := as.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := as.appealRepo.Resolve(ctx, tx, userID, status, adminID); err != nil {
			return err
		}
		if !approve {
			return nil
		}
		if err := as.blockedRepo.Delete(ctx, tx, userID); err != nil {
			return err
		}
		return as.attemptRepo.Reset(ctx, tx, userID)
	})
	if errors.Is(err, repos.ErrAppealNotPending) {
		return err
	}
	if err != nil {
		return fmt.Errorf("resolve appeal for user %d: %w", userID, err)
	}

	if approve {
		if err := as.cache.Delete(ctx, cache.VerifiedKey(userID), cache.ChallengeKey(userID)); err != nil {
			as.log.Warn("cache invalidate failed after appeal approval", "user_id", userID, "error", err)
		}
		as.notify(ctx, userID, "Your appeal has been approved and your account unblocked. Please complete verification before sending messages.")
		as.log.Info("appeal approved", "user_id", userID)
	} else {
		as.notify(ctx, userID, "Your appeal has been reviewed and rejected. This decision is final.")
		as.log.Info("appeal rejected", "user_id", userID)
	}
	return nil
}

func (as *appealService) ListPending(ctx context.Context) ([]*types.AppealRequest, error) {
	return as.appealRepo.ListByStatus(ctx, nil, types.AppealStatusPending)
}

func (as *appealService) List(ctx context.Context) ([]*types.AppealRequest, error) {
	return as.appealRepo.List(ctx, nil)
}

func (as *appealService) notify(ctx context.Context, chatID int64, text string) {
	if _, err := as.messenger.SendMessage(ctx, transport.SendRequest{ChatID: chatID, Text: text}); err != nil {
		as.log.Warn("notification send failed", "chat_id", chatID, "error", err)
	}
}

func appealStatusMessage(status string) string {
	switch status {
	case types.AppealStatusPending:
		return "You have already submitted an appeal. Please wait for the review result."
	case types.AppealStatusApproved:
		return "Your appeal was already approved. You can verify and send messages."
	case types.AppealStatusRejected:
		return "Your appeal was rejected. Appeals are a one-time opportunity and no further appeals are accepted."
	default:
		return "You have already submitted an appeal."
	}
}

func displayName(user transport.User) string {
	name := strings.TrimSpace(user.FirstName + " " + user.LastName)
	if user.Username != "" {
		if name == "" {
			return "@" + user.Username
		}
		return name + " (@" + user.Username + ")"
	}
	if name == "" {
		return fmt.Sprintf("user %d", user.ID)
	}
	return name
}
