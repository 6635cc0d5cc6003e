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

// ModerationService is the staff-side lever: manual blocks, unblocks
// and per-user relay history for the management API.
type ModerationService interface {
	Block(ctx context.Context, user transport.User) error
	Unblock(ctx context.Context, userID int64) error
	ListBlocked(ctx context.Context) ([]*types.BlockedUser, error)
	Events(ctx context.Context, userID int64, limit int) ([]*types.RelayEvent, error)
}

type moderationService struct {
	db           *gorm.DB
	log          *logger.Logger
	cache        cache.Cache
	blockedRepo  repos.BlockedUserRepo
	verifiedRepo repos.VerifiedUserRepo
	attemptRepo  repos.VerificationAttemptRepo
	eventRepo    repos.RelayEventRepo
}

func NewModerationService(
	db *gorm.DB,
	log *logger.Logger,
	c cache.Cache,
	blockedRepo repos.BlockedUserRepo,
	verifiedRepo repos.VerifiedUserRepo,
	attemptRepo repos.VerificationAttemptRepo,
	eventRepo repos.RelayEventRepo,
) ModerationService {
	return &moderationService{
		db:           db,
		log:          log.With("service", "ModerationService"),
		cache:        c,
		blockedRepo:  blockedRepo,
		verifiedRepo: verifiedRepo,
		attemptRepo:  attemptRepo,
		eventRepo:    eventRepo,
	}
}

func (ms *moderationService) Block(ctx context.Context, user transport.User) error {
	err := ms.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ms.blockedRepo.Upsert(ctx, tx, &types.BlockedUser{
			UserID:      user.ID,
			Username:    user.Username,
			FirstName:   user.FirstName,
			LastName:    user.LastName,
			BlockReason: types.BlockReasonManual,
		}); err != nil {
			return err
		}
		return ms.verifiedRepo.Delete(ctx, tx, user.ID)
	})
	if err != nil {
		return fmt.Errorf("block user %d: %w", user.ID, err)
	}

	if err := ms.cache.Delete(ctx, cache.VerifiedKey(user.ID), cache.ChallengeKey(user.ID)); err != nil {
		ms.log.Warn("cache invalidate failed after block", "user_id", user.ID, "error", err)
	}
	ms.log.Info("user blocked", "user_id", user.ID, "reason", types.BlockReasonManual)
	return nil
}

func (ms *moderationService) Unblock(ctx context.Context, userID int64) error {
	err := ms.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ms.blockedRepo.Delete(ctx, tx, userID); err != nil {
			return err
		}
		return ms.attemptRepo.Reset(ctx, tx, userID)
	})
	if err != nil {
		return fmt.Errorf("unblock user %d: %w", userID, err)
	}

	if err := ms.cache.Delete(ctx, cache.VerifiedKey(userID)); err != nil {
		ms.log.Warn("cache invalidate failed after unblock", "user_id", userID, "error", err)
	}
	ms.log.Info("user unblocked", "user_id", userID)
	return nil
}

func (ms *moderationService) ListBlocked(ctx context.Context) ([]*types.BlockedUser, error) {
	return ms.blockedRepo.List(ctx, nil)
}

func (ms *moderationService) Events(ctx context.Context, userID int64, limit int) ([]*types.RelayEvent, error) {
	return ms.eventRepo.ListByUser(ctx, nil, userID, limit)
}
