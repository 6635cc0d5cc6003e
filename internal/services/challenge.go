package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"

	"github.com/google/uuid"

	"github.com/yungbote/relaydesk-backend/internal/cache"
	"github.com/yungbote/relaydesk-backend/internal/logger"
	"github.com/yungbote/relaydesk-backend/internal/transport"
)

type ChallengeKind string

const (
	ChallengeMath   ChallengeKind = "math"
	ChallengeButton ChallengeKind = "button"
	ChallengeImage  ChallengeKind = "image"
)

func ParseChallengeKind(raw string) (ChallengeKind, error) {
	switch ChallengeKind(raw) {
	case ChallengeMath, ChallengeButton, ChallengeImage:
		return ChallengeKind(raw), nil
	case "":
		return ChallengeMath, nil
	default:
		return "", fmt.Errorf("invalid challenge kind %q", raw)
	}
}

// Callback actions round-tripped through inline affordances.
const (
	ActionVerifyButton  = "verify_button"
	ActionAppealRequest = "appeal_request"
	ActionApproveAppeal = "approve_appeal"
	ActionRejectAppeal  = "reject_appeal"
)

// ActionPayload is the opaque callback data attached to inline
// affordances and parsed back out of callback events.
type ActionPayload struct {
	Action string `json:"action"`
	UserID int64  `json:"user_id"`
}

func EncodeAction(action string, userID int64) string {
	raw, _ := json.Marshal(ActionPayload{Action: action, UserID: userID})
	return string(raw)
}

// ChallengeService issues and verifies challenges. The expected
// answer lives only in the cache, with a 300-second expiry: an
// unanswered challenge silently lapses and a fresh one is issued on
// the next message.
type ChallengeService interface {
	// Issue generates a new challenge (always fresh, never a resend)
	// and sends the prompt to the user. header is prepended to the
	// prompt so callers can label retry and appeal variants.
	Issue(ctx context.Context, user transport.User, kind ChallengeKind, header string) error
	// Outstanding reports whether an unexpired challenge exists.
	Outstanding(ctx context.Context, userID int64) (bool, error)
	// Verify compares the answer against the stored expectation as an
	// exact string match. A lapsed or absent challenge never matches.
	Verify(ctx context.Context, userID int64, answer string) (bool, error)
	Clear(ctx context.Context, userID int64) error
}

type challengeService struct {
	log       *logger.Logger
	cache     cache.Cache
	messenger transport.Messenger
	render    *imageRenderer
}

func NewChallengeService(log *logger.Logger, c cache.Cache, messenger transport.Messenger) ChallengeService {
	serviceLog := log.With("service", "ChallengeService")
	return &challengeService{
		log:       serviceLog,
		cache:     c,
		messenger: messenger,
		render:    newImageRenderer(serviceLog),
	}
}

func (cs *challengeService) Issue(ctx context.Context, user transport.User, kind ChallengeKind, header string) error {
	switch kind {
	case ChallengeMath:
		return cs.issueMath(ctx, user, header)
	case ChallengeButton:
		return cs.issueButton(ctx, user, header)
	case ChallengeImage:
		return cs.issueImage(ctx, user, header)
	default:
		return fmt.Errorf("invalid challenge kind %q", kind)
	}
}

func (cs *challengeService) issueMath(ctx context.Context, user transport.User, header string) error {
	a := rand.Intn(50) + 1
	b := rand.Intn(50) + 1
	answer := fmt.Sprintf("%d", a+b)

	if err := cs.cache.Set(ctx, cache.ChallengeKey(user.ID), answer, cache.ChallengeTTL); err != nil {
		return fmt.Errorf("store challenge answer: %w", err)
	}

	text := fmt.Sprintf("Please solve the following math problem and send the answer:\n\n%d + %d = ?", a, b)
	if header != "" {
		text = header + "\n\n" + text
	}
	_, err := cs.messenger.SendMessage(ctx, transport.SendRequest{
		ChatID: user.ID,
		Text:   text,
	})
	return err
}

func (cs *challengeService) issueButton(ctx context.Context, user transport.User, header string) error {
	// The stored expectation is a nonce no typed text can match, so a
	// text reply to a button challenge counts as a wrong answer while
	// the real confirmation arrives as a verify_button callback.
	nonce := "button:" + uuid.NewString()
	if err := cs.cache.Set(ctx, cache.ChallengeKey(user.ID), nonce, cache.ChallengeTTL); err != nil {
		return fmt.Errorf("store challenge answer: %w", err)
	}

	text := "Please click the button to verify."
	if header != "" {
		text = header + "\n\n" + text
	}
	_, err := cs.messenger.SendMessage(ctx, transport.SendRequest{
		ChatID: user.ID,
		Text:   text,
		Actions: []transport.Action{
			{Label: "Click to verify", Data: EncodeAction(ActionVerifyButton, user.ID)},
		},
	})
	return err
}

func (cs *challengeService) issueImage(ctx context.Context, user transport.User, header string) error {
	code := fmt.Sprintf("%d%d%d%d", rand.Intn(10), rand.Intn(10), rand.Intn(10), rand.Intn(10))
	if err := cs.cache.Set(ctx, cache.ChallengeKey(user.ID), code, cache.ChallengeTTL); err != nil {
		return fmt.Errorf("store challenge answer: %w", err)
	}

	png, err := cs.render.CodeImage(code)
	if err != nil {
		return fmt.Errorf("render challenge image: %w", err)
	}

	caption := "Please enter the 4 digits shown in the image:"
	if header != "" {
		caption = header + "\n\n" + caption
	}
	_, err = cs.messenger.SendMedia(ctx, transport.SendRequest{
		ChatID:  user.ID,
		Kind:    transport.KindPhoto,
		PNG:     png,
		Caption: caption,
	})
	return err
}

func (cs *challengeService) Outstanding(ctx context.Context, userID int64) (bool, error) {
	_, ok, err := cs.cache.Get(ctx, cache.ChallengeKey(userID))
	return ok, err
}

func (cs *challengeService) Verify(ctx context.Context, userID int64, answer string) (bool, error) {
	expected, ok, err := cs.cache.Get(ctx, cache.ChallengeKey(userID))
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	return answer == expected, nil
}

func (cs *challengeService) Clear(ctx context.Context, userID int64) error {
	return cs.cache.Delete(ctx, cache.ChallengeKey(userID))
}
