package handlers

import (
  "bytes"
  "context"
  "encoding/json"
  "net/http"
  "net/http/httptest"
  "strings"
  "testing"
  "github.com/gin-gonic/gin"
  "github.com/yungbote/relaydesk-backend/internal/logger"
  "github.com/yungbote/relaydesk-backend/internal/repos"
  "github.com/yungbote/relaydesk-backend/internal/services"
  "github.com/yungbote/relaydesk-backend/internal/transport"
  "github.com/yungbote/relaydesk-backend/internal/types"
)

const testWorkspaceID = int64(-900)

type fakeVerification struct {
  decision  services.Decision
  admitted  []int64
  confirmed []int64
}

func (f *fakeVerification) Admit(_ context.Context, user transport.User, _ string) (services.Decision, error) {
  f.admitted = append(f.admitted, user.ID)
  return f.decision, nil
}

func (f *fakeVerification) ConfirmButton(_ context.Context, userID int64) error {
  f.confirmed = append(f.confirmed, userID)
  return nil
}

type fakeRouter struct {
  inbound  []int64
  outbound []int64
  results  []services.ForwardResult
}

func (f *fakeRouter) RouteInbound(_ context.Context, msg *transport.IncomingMessage) (services.ForwardResult, error) {
  f.inbound = append(f.inbound, msg.From.ID)
  if len(f.results) > 0 {
    res := f.results[0]
    f.results = f.results[1:]
    return res, nil
  }
  return services.ForwardResult{Status: services.RouteForwarded}, nil
}

func (f *fakeRouter) RouteOutbound(_ context.Context, msg *transport.IncomingMessage) (services.ForwardResult, error) {
  f.outbound = append(f.outbound, msg.ThreadID)
  return services.ForwardResult{Status: services.RouteForwarded}, nil
}

type fakeAppeal struct {
  requested  []int64
  resolved   []int64
  approvals  []bool
  resolveErr error
}

func (f *fakeAppeal) Request(_ context.Context, user transport.User) error {
  f.requested = append(f.requested, user.ID)
  return nil
}

func (f *fakeAppeal) Submit(_ context.Context, _ transport.User) error { return nil }

func (f *fakeAppeal) Resolve(_ context.Context, userID int64, approve bool, _ *int64) error {
  if f.resolveErr != nil {
    return f.resolveErr
  }
  f.resolved = append(f.resolved, userID)
  f.approvals = append(f.approvals, approve)
  return nil
}

// fakeNotifier satisfies the messenger capability; only SendMessage
// is exercised by the webhook handler.
type fakeNotifier struct {
  sent []transport.SendRequest
}

func (f *fakeNotifier) SendMessage(_ context.Context, req transport.SendRequest) (*transport.Message, error) {
  f.sent = append(f.sent, req)
  return &transport.Message{MessageID: int64(len(f.sent))}, nil
}

func (f *fakeNotifier) SendMedia(_ context.Context, req transport.SendRequest) (*transport.Message, error) {
  f.sent = append(f.sent, req)
  return &transport.Message{MessageID: int64(len(f.sent))}, nil
}

func (f *fakeNotifier) CreateThread(_ context.Context, _ int64, _ string) (int64, error) {
  return 0, nil
}

func (f *fakeNotifier) CloseThread(_ context.Context, _, _ int64) error { return nil }

func (f *fakeNotifier) PinMessage(_ context.Context, _, _ int64) error { return nil }

func (f *fakeAppeal) ListPending(_ context.Context) ([]*types.AppealRequest, error) {
  return nil, nil
}

func (f *fakeAppeal) List(_ context.Context) ([]*types.AppealRequest, error) {
  return nil, nil
}

type webhookFixture struct {
  engine       *gin.Engine
  verification *fakeVerification
  router       *fakeRouter
  appeal       *fakeAppeal
  messenger    *fakeNotifier
}

func newWebhookFixture(t *testing.T, decision services.Decision) (*gin.Engine, *fakeVerification, *fakeRouter, *fakeAppeal) {
  fx := newWebhookFixtureFull(t, decision)
  return fx.engine, fx.verification, fx.router, fx.appeal
}

func newWebhookFixtureFull(t *testing.T, decision services.Decision) *webhookFixture {
  t.Helper()
  gin.SetMode(gin.TestMode)
  log, err := logger.New("test")
  if err != nil {
    t.Fatalf("init logger: %v", err)
  }
  verification := &fakeVerification{decision: decision}
  router := &fakeRouter{}
  appeal := &fakeAppeal{}
  messenger := &fakeNotifier{}
  wh := NewWebhookHandler(log, "s3cret", testWorkspaceID, verification, router, appeal, messenger)
  engine := gin.New()
  engine.POST("/webhook", wh.Receive)
  return &webhookFixture{engine: engine, verification: verification, router: router, appeal: appeal, messenger: messenger}
}

func postUpdate(t *testing.T, engine *gin.Engine, secret string, update transport.Update) *httptest.ResponseRecorder {
  t.Helper()
  body, err := json.Marshal(update)
  if err != nil {
    t.Fatalf("marshal update: %v", err)
  }
  req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
  if secret != "" {
    req.Header.Set("X-Webhook-Secret", secret)
  }
  w := httptest.NewRecorder()
  engine.ServeHTTP(w, req)
  return w
}

func TestWebhookRejectsBadSecret(t *testing.T) {
  engine, _, _, _ := newWebhookFixture(t, services.Decision{Allow: true})
  w := postUpdate(t, engine, "wrong", transport.Update{UpdateID: 1})
  if w.Code != http.StatusUnauthorized {
    t.Fatalf("expected 401, got %d", w.Code)
  }
}

func TestWebhookMalformedBodyIsDropped(t *testing.T) {
  engine, verification, _, _ := newWebhookFixture(t, services.Decision{Allow: true})
  req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader([]byte("not json")))
  req.Header.Set("X-Webhook-Secret", "s3cret")
  w := httptest.NewRecorder()
  engine.ServeHTTP(w, req)
  if w.Code != http.StatusOK {
    t.Fatalf("malformed updates must still be acknowledged, got %d", w.Code)
  }
  if len(verification.admitted) != 0 {
    t.Fatalf("nothing may be admitted for a malformed update")
  }
}

func TestWebhookRelaysAdmittedUserMessage(t *testing.T) {
  engine, verification, router, _ := newWebhookFixture(t, services.Decision{Allow: true, Reason: services.DecisionVerified})
  update := transport.Update{
    UpdateID: 2,
    Message: &transport.IncomingMessage{
      MessageID: 10,
      ChatID:    1001,
      From:      transport.User{ID: 1001},
      Kind:      "text",
      Text:      "hello",
    },
  }
  w := postUpdate(t, engine, "s3cret", update)
  if w.Code != http.StatusOK {
    t.Fatalf("expected 200, got %d", w.Code)
  }
  if len(verification.admitted) != 1 || verification.admitted[0] != 1001 {
    t.Fatalf("expected user 1001 admitted, got %v", verification.admitted)
  }
  if len(router.inbound) != 1 {
    t.Fatalf("expected one inbound route, got %v", router.inbound)
  }
}

func TestWebhookDeniedMessageIsNotRelayed(t *testing.T) {
  engine, _, router, _ := newWebhookFixture(t, services.Decision{Reason: services.DecisionChallengeIssued})
  update := transport.Update{
    UpdateID: 3,
    Message: &transport.IncomingMessage{
      MessageID: 11,
      ChatID:    1002,
      From:      transport.User{ID: 1002},
      Kind:      "text",
      Text:      "hello",
    },
  }
  postUpdate(t, engine, "s3cret", update)
  if len(router.inbound) != 0 {
    t.Fatalf("denied messages must not be routed, got %v", router.inbound)
  }
}

func TestWebhookRetriesRecoverableForward(t *testing.T) {
  engine, _, router, _ := newWebhookFixture(t, services.Decision{Allow: true})
  router.results = []services.ForwardResult{
    {Status: services.RouteRecoverable},
    {Status: services.RouteForwarded},
  }
  update := transport.Update{
    UpdateID: 4,
    Message: &transport.IncomingMessage{
      MessageID: 12,
      ChatID:    1003,
      From:      transport.User{ID: 1003},
      Kind:      "text",
      Text:      "hello",
    },
  }
  postUpdate(t, engine, "s3cret", update)
  if len(router.inbound) != 2 {
    t.Fatalf("expected exactly one retry after thread loss, got %d routes", len(router.inbound))
  }
}

func TestWebhookRoutesWorkspaceThreadMessage(t *testing.T) {
  engine, verification, router, _ := newWebhookFixture(t, services.Decision{Allow: true})
  update := transport.Update{
    UpdateID: 5,
    Message: &transport.IncomingMessage{
      MessageID: 13,
      ChatID:    testWorkspaceID,
      ThreadID:  777,
      From:      transport.User{ID: 7001},
      Kind:      "text",
      Text:      "reply",
    },
  }
  postUpdate(t, engine, "s3cret", update)
  if len(router.outbound) != 1 || router.outbound[0] != 777 {
    t.Fatalf("expected outbound route for thread 777, got %v", router.outbound)
  }
  if len(verification.admitted) != 0 {
    t.Fatalf("workspace messages are never gated, got %v", verification.admitted)
  }
}

func TestWebhookCallbackDispatch(t *testing.T) {
  engine, verification, _, appeal := newWebhookFixture(t, services.Decision{Allow: true})

  // verify_button from the right user.
  postUpdate(t, engine, "s3cret", transport.Update{
    UpdateID: 6,
    Callback: &transport.CallbackQuery{
      CallbackID: "cb1",
      From:       transport.User{ID: 1001},
      ChatID:     1001,
      Data:       services.EncodeAction(services.ActionVerifyButton, 1001),
    },
  })
  if len(verification.confirmed) != 1 || verification.confirmed[0] != 1001 {
    t.Fatalf("expected button confirmation for 1001, got %v", verification.confirmed)
  }

  // verify_button replayed by someone else is dropped.
  postUpdate(t, engine, "s3cret", transport.Update{
    UpdateID: 7,
    Callback: &transport.CallbackQuery{
      CallbackID: "cb2",
      From:       transport.User{ID: 1002},
      ChatID:     1002,
      Data:       services.EncodeAction(services.ActionVerifyButton, 1001),
    },
  })
  if len(verification.confirmed) != 1 {
    t.Fatalf("mismatched callback user must be dropped, got %v", verification.confirmed)
  }

  // Appeal resolution only counts inside the workspace.
  postUpdate(t, engine, "s3cret", transport.Update{
    UpdateID: 8,
    Callback: &transport.CallbackQuery{
      CallbackID: "cb3",
      From:       transport.User{ID: 42},
      ChatID:     1001,
      Data:       services.EncodeAction(services.ActionApproveAppeal, 1001),
    },
  })
  if len(appeal.resolved) != 0 {
    t.Fatalf("resolution outside the workspace must be dropped, got %v", appeal.resolved)
  }
  postUpdate(t, engine, "s3cret", transport.Update{
    UpdateID: 9,
    Callback: &transport.CallbackQuery{
      CallbackID: "cb4",
      From:       transport.User{ID: 42},
      ChatID:     testWorkspaceID,
      Data:       services.EncodeAction(services.ActionRejectAppeal, 1001),
    },
  })
  if len(appeal.resolved) != 1 || appeal.resolved[0] != 1001 || appeal.approvals[0] {
    t.Fatalf("expected rejection of 1001, got %v %v", appeal.resolved, appeal.approvals)
  }
}

func TestWebhookStaleAppealResolutionNotifiesWorkspace(t *testing.T) {
  fx := newWebhookFixtureFull(t, services.Decision{Allow: true})
  fx.appeal.resolveErr = repos.ErrAppealNotPending

  postUpdate(t, fx.engine, "s3cret", transport.Update{
    UpdateID: 10,
    Callback: &transport.CallbackQuery{
      CallbackID: "cb5",
      From:       transport.User{ID: 42},
      ChatID:     testWorkspaceID,
      Data:       services.EncodeAction(services.ActionApproveAppeal, 1001),
    },
  })

  if len(fx.appeal.resolved) != 0 {
    t.Fatalf("an already-handled appeal must not resolve again, got %v", fx.appeal.resolved)
  }
  if len(fx.messenger.sent) != 1 {
    t.Fatalf("expected one workspace notice, got %d", len(fx.messenger.sent))
  }
  notice := fx.messenger.sent[0]
  if notice.ChatID != testWorkspaceID {
    t.Fatalf("notice must land in the workspace chat, got %d", notice.ChatID)
  }
  if !strings.Contains(notice.Text, "Invalid action") {
    t.Fatalf("expected an invalid-action notice, got %q", notice.Text)
  }
}
