package services

import (
	"context"
	"fmt"
	"strconv"

	"gorm.io/gorm"

	"github.com/yungbote/relaydesk-backend/internal/cache"
	"github.com/yungbote/relaydesk-backend/internal/logger"
	"github.com/yungbote/relaydesk-backend/internal/repos"
	"github.com/yungbote/relaydesk-backend/internal/transport"
	"github.com/yungbote/relaydesk-backend/internal/types"
)

const (
	RouteForwarded   = "forwarded"
	RouteRecoverable = "recoverable"
	RouteOrphaned    = "orphaned"
	RouteFailed      = "failed"
)

// ForwardResult reports what happened to one relayed message.
// RouteRecoverable means the backing thread disappeared and the
// mapping was cleaned up; the caller may retry once to get a fresh
// thread.
type ForwardResult struct {
	Status      string
	ThreadID    int64
	ForwardedID int64
}

// RouterService relays admitted messages between user DMs and
// workspace threads, keeping the mapping and per-message correlation.
type RouterService interface {
	RouteInbound(ctx context.Context, msg *transport.IncomingMessage) (ForwardResult, error)
	RouteOutbound(ctx context.Context, msg *transport.IncomingMessage) (ForwardResult, error)
}

type routerService struct {
	db              *gorm.DB
	log             *logger.Logger
	cache           cache.Cache
	topicRepo       repos.TopicRepo
	linkRepo        repos.MessageLinkRepo
	eventRepo       repos.RelayEventRepo
	messenger       transport.Messenger
	workspaceChatID int64
}

func NewRouterService(
	db *gorm.DB,
	log *logger.Logger,
	c cache.Cache,
	topicRepo repos.TopicRepo,
	linkRepo repos.MessageLinkRepo,
	eventRepo repos.RelayEventRepo,
	messenger transport.Messenger,
	workspaceChatID int64,
) RouterService {
	return &routerService{
		db:              db,
		log:             log.With("service", "RouterService"),
		cache:           c,
		topicRepo:       topicRepo,
		linkRepo:        linkRepo,
		eventRepo:       eventRepo,
		messenger:       messenger,
		workspaceChatID: workspaceChatID,
	}
}

func (rs *routerService) RouteInbound(ctx context.Context, msg *transport.IncomingMessage) (ForwardResult, error) {
	threadID, err := rs.ensureThread(ctx, msg.From)
	if err != nil {
		return ForwardResult{Status: RouteFailed}, err
	}

	replyToID := int64(0)
	if msg.ReplyTo != nil {
		if msg.ReplyTo.From.ID == msg.From.ID {
			replyToID, err = rs.linkRepo.GetForwardedID(ctx, nil, msg.ReplyTo.MessageID, threadID, false)
		} else {
			replyToID, err = rs.linkRepo.GetReceivedID(ctx, nil, msg.ReplyTo.MessageID, threadID, true)
		}
		if err != nil {
			rs.log.Warn("reply correlation lookup failed", "user_id", msg.From.ID, "error", err)
			replyToID = 0
		}
	}

	fwd, err := rs.send(ctx, rs.workspaceChatID, threadID, msg, replyToID)
	if err != nil {
		if transport.IsThreadNotFound(err) {
			if recErr := rs.recoverThread(ctx, msg.From.ID, threadID); recErr != nil {
				return ForwardResult{Status: RouteFailed}, recErr
			}
			return ForwardResult{Status: RouteRecoverable, ThreadID: threadID}, nil
		}
		// The general thread (id 0) is where operators watch for
		// delivery trouble.
		rs.alertThread(ctx, 0, fmt.Sprintf("Failed to forward a message from user %d: %v", msg.From.ID, err))
		rs.recordEvent(ctx, msg.From.ID, threadID, types.RelayDirectionInbound, types.RelayOutcomeFailed, map[string]any{"error": err.Error()})
		return ForwardResult{Status: RouteFailed, ThreadID: threadID}, fmt.Errorf("forward message from user %d: %w", msg.From.ID, err)
	}

	err = rs.linkRepo.Create(ctx, nil, &types.MessageLink{
		ReceivedID:  msg.MessageID,
		ForwardedID: fwd.MessageID,
		TopicID:     threadID,
		InGroup:     false,
	})
	if err != nil {
		rs.log.Error("message link record failed", "user_id", msg.From.ID, "thread_id", threadID, "error", err)
	}
	rs.recordEvent(ctx, msg.From.ID, threadID, types.RelayDirectionInbound, types.RelayOutcomeForwarded, nil)
	return ForwardResult{Status: RouteForwarded, ThreadID: threadID, ForwardedID: fwd.MessageID}, nil
}

func (rs *routerService) RouteOutbound(ctx context.Context, msg *transport.IncomingMessage) (ForwardResult, error) {
	threadID := msg.ThreadID
	userID, err := rs.userForThread(ctx, threadID)
	if err != nil {
		return ForwardResult{Status: RouteFailed}, err
	}
	if userID == 0 {
		rs.log.Warn("no user mapped to thread", "thread_id", threadID)
		rs.alertThread(ctx, threadID, "This thread is no longer linked to any user. Closing it.")
		if err := rs.messenger.CloseThread(ctx, rs.workspaceChatID, threadID); err != nil {
			rs.log.Warn("orphaned thread close failed", "thread_id", threadID, "error", err)
		}
		rs.recordEvent(ctx, 0, threadID, types.RelayDirectionOutbound, types.RelayOutcomeDenied, map[string]any{"reason": "orphaned_thread"})
		return ForwardResult{Status: RouteOrphaned, ThreadID: threadID}, nil
	}

	replyToID := int64(0)
	if msg.ReplyTo != nil {
		if msg.ReplyTo.From.ID == msg.From.ID {
			replyToID, err = rs.linkRepo.GetForwardedID(ctx, nil, msg.ReplyTo.MessageID, threadID, true)
		} else {
			replyToID, err = rs.linkRepo.GetReceivedID(ctx, nil, msg.ReplyTo.MessageID, threadID, false)
		}
		if err != nil {
			rs.log.Warn("reply correlation lookup failed", "thread_id", threadID, "error", err)
			replyToID = 0
		}
	}

	fwd, err := rs.send(ctx, userID, 0, msg, replyToID)
	if err != nil {
		rs.alertThread(ctx, threadID, fmt.Sprintf("Failed to deliver the message to the user: %v", err))
		rs.recordEvent(ctx, userID, threadID, types.RelayDirectionOutbound, types.RelayOutcomeFailed, map[string]any{"error": err.Error()})
		return ForwardResult{Status: RouteFailed, ThreadID: threadID}, fmt.Errorf("deliver message to user %d: %w", userID, err)
	}

	err = rs.linkRepo.Create(ctx, nil, &types.MessageLink{
		ReceivedID:  msg.MessageID,
		ForwardedID: fwd.MessageID,
		TopicID:     threadID,
		InGroup:     true,
	})
	if err != nil {
		rs.log.Error("message link record failed", "user_id", userID, "thread_id", threadID, "error", err)
	}
	rs.recordEvent(ctx, userID, threadID, types.RelayDirectionOutbound, types.RelayOutcomeForwarded, nil)
	return ForwardResult{Status: RouteForwarded, ThreadID: threadID, ForwardedID: fwd.MessageID}, nil
}

// ensureThread resolves or creates the workspace thread for a user.
func (rs *routerService) ensureThread(ctx context.Context, user transport.User) (int64, error) {
	if val, ok, err := rs.cache.Get(ctx, cache.ThreadByUserKey(user.ID)); err == nil && ok {
		if threadID, parseErr := strconv.ParseInt(val, 10, 64); parseErr == nil && threadID != 0 {
			return threadID, nil
		}
	}

	topic, err := rs.topicRepo.GetByUserID(ctx, nil, user.ID)
	if err != nil {
		return 0, fmt.Errorf("load topic for user %d: %w", user.ID, err)
	}
	if topic != nil {
		rs.cacheMapping(ctx, user.ID, topic.ThreadID)
		return topic.ThreadID, nil
	}

	title := fmt.Sprintf("%s | %d", displayName(user), user.ID)
	threadID, err := rs.messenger.CreateThread(ctx, rs.workspaceChatID, title)
	if err != nil {
		return 0, fmt.Errorf("create thread for user %d: %w", user.ID, err)
	}

	err = rs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return rs.topicRepo.Create(ctx, tx, &types.Topic{UserID: user.ID, ThreadID: threadID})
	})
	if err != nil {
		return 0, fmt.Errorf("record topic for user %d: %w", user.ID, err)
	}
	rs.cacheMapping(ctx, user.ID, threadID)

	info, err := rs.messenger.SendMessage(ctx, transport.SendRequest{
		ChatID:   rs.workspaceChatID,
		ThreadID: threadID,
		Text:     userCard(user),
	})
	if err != nil {
		rs.log.Warn("thread info message send failed", "user_id", user.ID, "thread_id", threadID, "error", err)
		return threadID, nil
	}
	if err := rs.messenger.PinMessage(ctx, rs.workspaceChatID, info.MessageID); err != nil {
		rs.log.Warn("thread info message pin failed", "user_id", user.ID, "thread_id", threadID, "error", err)
	}
	return threadID, nil
}

func (rs *routerService) userForThread(ctx context.Context, threadID int64) (int64, error) {
	if val, ok, err := rs.cache.Get(ctx, cache.UserByThreadKey(threadID)); err == nil && ok {
		if userID, parseErr := strconv.ParseInt(val, 10, 64); parseErr == nil && userID != 0 {
			return userID, nil
		}
	}

	topic, err := rs.topicRepo.GetByThreadID(ctx, nil, threadID)
	if err != nil {
		return 0, fmt.Errorf("load topic for thread %d: %w", threadID, err)
	}
	if topic == nil {
		return 0, nil
	}
	rs.cacheMapping(ctx, topic.UserID, threadID)
	return topic.UserID, nil
}

// recoverThread drops a mapping whose backing thread is gone so the
// next message starts fresh.
func (rs *routerService) recoverThread(ctx context.Context, userID, threadID int64) error {
	err := rs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return rs.topicRepo.DeleteByThreadID(ctx, tx, threadID)
	})
	if err != nil {
		return fmt.Errorf("drop topic for thread %d: %w", threadID, err)
	}
	if err := rs.cache.Delete(ctx, cache.ThreadByUserKey(userID), cache.UserByThreadKey(threadID)); err != nil {
		rs.log.Warn("cache invalidate failed after thread loss", "user_id", userID, "thread_id", threadID, "error", err)
	}
	rs.log.Warn("thread lost, mapping dropped", "user_id", userID, "thread_id", threadID)
	rs.recordEvent(ctx, userID, threadID, types.RelayDirectionInbound, types.RelayOutcomeRecoverable, map[string]any{"reason": "thread_not_found"})
	return nil
}

func (rs *routerService) send(ctx context.Context, chatID, threadID int64, msg *transport.IncomingMessage, replyToID int64) (*transport.Message, error) {
	kind := transport.MediaKind(msg.Kind)
	req := transport.SendRequest{
		ChatID:    chatID,
		ThreadID:  threadID,
		Kind:      kind,
		Text:      msg.Text,
		Caption:   msg.Caption,
		FileID:    msg.FileID,
		ReplyToID: replyToID,
	}
	switch kind {
	case transport.KindText:
		return rs.messenger.SendMessage(ctx, req)
	case transport.KindPhoto, transport.KindSticker, transport.KindVideo,
		transport.KindDocument, transport.KindAudio, transport.KindVoice,
		transport.KindAnimation:
		return rs.messenger.SendMedia(ctx, req)
	default:
		return nil, &transport.UnsupportedKindError{Kind: msg.Kind}
	}
}

func (rs *routerService) cacheMapping(ctx context.Context, userID, threadID int64) {
	err := rs.cache.Set(ctx, cache.ThreadByUserKey(userID), strconv.FormatInt(threadID, 10), 0)
	if err == nil {
		err = rs.cache.Set(ctx, cache.UserByThreadKey(threadID), strconv.FormatInt(userID, 10), 0)
	}
	if err != nil {
		rs.log.Warn("mapping cache populate failed", "user_id", userID, "thread_id", threadID, "error", err)
	}
}

func (rs *routerService) alertThread(ctx context.Context, threadID int64, text string) {
	_, err := rs.messenger.SendMessage(ctx, transport.SendRequest{
		ChatID:   rs.workspaceChatID,
		ThreadID: threadID,
		Text:     text,
	})
	if err != nil {
		rs.log.Warn("thread alert send failed", "thread_id", threadID, "error", err)
	}
}

func (rs *routerService) recordEvent(ctx context.Context, userID, threadID int64, direction, outcome string, detail map[string]any) {
	if err := rs.eventRepo.Record(ctx, nil, userID, threadID, direction, outcome, detail); err != nil {
		rs.log.Warn("relay event record failed", "user_id", userID, "thread_id", threadID, "error", err)
	}
}

func userCard(user transport.User) string {
	card := fmt.Sprintf("User: %s\nID: %d", displayName(user), user.ID)
	if user.Username != "" {
		card += "\nUsername: @" + user.Username
	}
	return card
}
