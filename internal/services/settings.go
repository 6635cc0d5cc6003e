package services

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/relaydesk-backend/internal/cache"
	"github.com/yungbote/relaydesk-backend/internal/logger"
	"github.com/yungbote/relaydesk-backend/internal/repos"
	"github.com/yungbote/relaydesk-backend/internal/types"
)

// SettingsSnapshot is the process-wide configuration read once per
// unit of work. Operations act on the snapshot they were handed, not
// on ambient global state, so a concurrent settings change never
// flips behavior mid-operation.
type SettingsSnapshot struct {
	ChallengeKind ChallengeKind
	AppealMode    string
}

type SettingsService interface {
	Snapshot(ctx context.Context) (SettingsSnapshot, error)
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

type settingsService struct {
	db    *gorm.DB
	log   *logger.Logger
	repo  repos.SettingRepo
	cache cache.Cache
}

func NewSettingsService(db *gorm.DB, log *logger.Logger, repo repos.SettingRepo, c cache.Cache) SettingsService {
	return &settingsService{
		db:    db,
		log:   log.With("service", "SettingsService"),
		repo:  repo,
		cache: c,
	}
}

func (ss *settingsService) Snapshot(ctx context.Context) (SettingsSnapshot, error) {
	kindRaw, err := ss.Get(ctx, types.SettingChallengeKind)
	if err != nil {
		return SettingsSnapshot{}, err
	}
	kind, err := ParseChallengeKind(kindRaw)
	if err != nil {
		return SettingsSnapshot{}, err
	}

	mode, err := ss.Get(ctx, types.SettingAppealMode)
	if err != nil {
		return SettingsSnapshot{}, err
	}
	if mode == "" {
		mode = types.AppealModeManual
	}

	return SettingsSnapshot{ChallengeKind: kind, AppealMode: mode}, nil
}

func (ss *settingsService) Get(ctx context.Context, key string) (string, error) {
	cacheKey := cache.SettingKey(key)
	if val, ok, err := ss.cache.Get(ctx, cacheKey); err == nil && ok {
		return val, nil
	}

	val, err := ss.repo.Get(ctx, nil, key)
	if err != nil {
		return "", err
	}
	if err := ss.cache.Set(ctx, cacheKey, val, cache.SettingTTL); err != nil {
		ss.log.Warn("settings cache populate failed", "key", key, "error", err)
	}
	return val, nil
}

func (ss *settingsService) Set(ctx context.Context, key, value string) error {
	switch key {
	case types.SettingChallengeKind:
		if _, err := ParseChallengeKind(value); err != nil {
			return err
		}
	case types.SettingAppealMode:
		if value != types.AppealModeManual && value != types.AppealModeAuto {
			return fmt.Errorf("invalid appeal mode %q", value)
		}
	}

	if err := ss.repo.Set(ctx, nil, key, value); err != nil {
		return err
	}
	if err := ss.cache.Delete(ctx, cache.SettingKey(key)); err != nil {
		ss.log.Warn("settings cache invalidate failed", "key", key, "error", err)
	}
	return nil
}
