package handlers

import (
  "context"
  "encoding/json"
  "errors"
  "net/http"
  "github.com/gin-gonic/gin"
  "github.com/yungbote/relaydesk-backend/internal/logger"
  "github.com/yungbote/relaydesk-backend/internal/repos"
  "github.com/yungbote/relaydesk-backend/internal/services"
  "github.com/yungbote/relaydesk-backend/internal/transport"
)

// WebhookHandler receives platform update events. It always answers
// 200: a non-2xx would make the platform redeliver the same update,
// and a malformed or unprocessable update stays malformed on retry.
type WebhookHandler struct {
  log             *logger.Logger
  secret          string
  workspaceChatID int64
  verification    services.VerificationService
  router          services.RouterService
  appeal          services.AppealService
  messenger       transport.Messenger
}

func NewWebhookHandler(
  log *logger.Logger,
  secret string,
  workspaceChatID int64,
  verification services.VerificationService,
  router services.RouterService,
  appeal services.AppealService,
  messenger transport.Messenger,
) *WebhookHandler {
  return &WebhookHandler{
    log:             log.With("handler", "WebhookHandler"),
    secret:          secret,
    workspaceChatID: workspaceChatID,
    verification:    verification,
    router:          router,
    appeal:          appeal,
    messenger:       messenger,
  }
}

func (wh *WebhookHandler) Receive(c *gin.Context) {
  if wh.secret != "" && c.GetHeader("X-Webhook-Secret") != wh.secret {
    c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid webhook secret"})
    return
  }

  var update transport.Update
  if err := c.ShouldBindJSON(&update); err != nil {
    wh.log.Warn("malformed update dropped", "error", err)
    c.JSON(http.StatusOK, gin.H{"ok": true})
    return
  }

  ctx := c.Request.Context()
  switch {
  case update.Message != nil:
    wh.handleMessage(ctx, update.Message)
  case update.Callback != nil:
    wh.handleCallback(ctx, update.Callback)
  default:
    wh.log.Debug("update without message or callback dropped", "update_id", update.UpdateID)
  }
  c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (wh *WebhookHandler) handleMessage(ctx context.Context, msg *transport.IncomingMessage) {
  if msg.ChatID == wh.workspaceChatID {
    if msg.ThreadID == 0 {
      // General workspace chatter is not relayed.
      return
    }
    if _, err := wh.router.RouteOutbound(ctx, msg); err != nil {
      wh.log.Error("outbound routing failed", "thread_id", msg.ThreadID, "error", err)
    }
    return
  }

  if msg.ChatID != msg.From.ID {
    wh.log.Debug("message from unrelated chat dropped", "chat_id", msg.ChatID)
    return
  }

  decision, err := wh.verification.Admit(ctx, msg.From, msg.Text)
  if err != nil {
    wh.log.Error("verification failed", "user_id", msg.From.ID, "error", err)
    return
  }
  if !decision.Allow {
    wh.log.Debug("inbound message denied", "user_id", msg.From.ID, "reason", decision.Reason)
    return
  }

  result, err := wh.router.RouteInbound(ctx, msg)
  if err != nil {
    wh.log.Error("inbound routing failed", "user_id", msg.From.ID, "error", err)
    return
  }
  if result.Status == services.RouteRecoverable {
    // The stale mapping is gone; one retry lands in a fresh thread.
    if _, err := wh.router.RouteInbound(ctx, msg); err != nil {
      wh.log.Error("inbound routing retry failed", "user_id", msg.From.ID, "error", err)
    }
  }
}

func (wh *WebhookHandler) handleCallback(ctx context.Context, cb *transport.CallbackQuery) {
  var payload services.ActionPayload
  if err := json.Unmarshal([]byte(cb.Data), &payload); err != nil {
    wh.log.Warn("malformed callback payload dropped", "callback_id", cb.CallbackID, "error", err)
    return
  }

  switch payload.Action {
  case services.ActionVerifyButton:
    if payload.UserID != cb.From.ID {
      wh.log.Warn("verify callback from wrong user dropped", "expected", payload.UserID, "actual", cb.From.ID)
      return
    }
    if err := wh.verification.ConfirmButton(ctx, cb.From.ID); err != nil {
      wh.log.Error("button confirmation failed", "user_id", cb.From.ID, "error", err)
    }
  case services.ActionAppealRequest:
    if payload.UserID != cb.From.ID {
      wh.log.Warn("appeal callback from wrong user dropped", "expected", payload.UserID, "actual", cb.From.ID)
      return
    }
    if err := wh.appeal.Request(ctx, cb.From); err != nil {
      wh.log.Error("appeal request failed", "user_id", cb.From.ID, "error", err)
    }
  case services.ActionApproveAppeal, services.ActionRejectAppeal:
    if cb.ChatID != wh.workspaceChatID {
      wh.log.Warn("appeal resolution outside workspace dropped", "chat_id", cb.ChatID)
      return
    }
    adminID := cb.From.ID
    approve := payload.Action == services.ActionApproveAppeal
    if err := wh.appeal.Resolve(ctx, payload.UserID, approve, &adminID); err != nil {
      if errors.Is(err, repos.ErrAppealNotPending) {
        // Stale affordance: the appeal was already handled (or never
        // existed). Tell the workspace instead of failing silently.
        if _, sendErr := wh.messenger.SendMessage(ctx, transport.SendRequest{
          ChatID: cb.ChatID,
          Text:   "Invalid action: this appeal has already been handled.",
        }); sendErr != nil {
          wh.log.Warn("stale appeal notice send failed", "user_id", payload.UserID, "error", sendErr)
        }
        return
      }
      wh.log.Error("appeal resolution failed", "user_id", payload.UserID, "error", err)
    }
  default:
    wh.log.Warn("unsupported callback action dropped", "action", payload.Action)
  }
}
