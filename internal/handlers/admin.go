package handlers

import (
  "errors"
  "net/http"
  "strconv"
  "github.com/gin-gonic/gin"
  "github.com/yungbote/relaydesk-backend/internal/repos"
  "github.com/yungbote/relaydesk-backend/internal/services"
  "github.com/yungbote/relaydesk-backend/internal/transport"
  "github.com/yungbote/relaydesk-backend/internal/types"
)

type AdminHandler struct {
  authService       services.AuthService
  moderationService services.ModerationService
  appealService     services.AppealService
  settingsService   services.SettingsService
}

func NewAdminHandler(
  authService services.AuthService,
  moderationService services.ModerationService,
  appealService services.AppealService,
  settingsService services.SettingsService,
) *AdminHandler {
  return &AdminHandler{
    authService:       authService,
    moderationService: moderationService,
    appealService:     appealService,
    settingsService:   settingsService,
  }
}

func (ah *AdminHandler) Login(c *gin.Context) {
  var req struct {
    Username string `json:"username"`
    Password string `json:"password"`
  }
  if err := c.ShouldBindJSON(&req); err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
    return
  }
  token, err := ah.authService.Login(c.Request.Context(), req.Username, req.Password)
  if err != nil {
    c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
    return
  }
  c.JSON(http.StatusOK, gin.H{"access_token": token})
}

func (ah *AdminHandler) ListBlocked(c *gin.Context) {
  blocked, err := ah.moderationService.ListBlocked(c.Request.Context())
  if err != nil {
    c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
    return
  }
  c.JSON(http.StatusOK, gin.H{"blocked_users": blocked})
}

func (ah *AdminHandler) BlockUser(c *gin.Context) {
  var req struct {
    UserID    int64  `json:"user_id"`
    Username  string `json:"username"`
    FirstName string `json:"first_name"`
    LastName  string `json:"last_name"`
  }
  if err := c.ShouldBindJSON(&req); err != nil || req.UserID == 0 {
    c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
    return
  }
  user := transport.User{
    ID:        req.UserID,
    Username:  req.Username,
    FirstName: req.FirstName,
    LastName:  req.LastName,
  }
  if err := ah.moderationService.Block(c.Request.Context(), user); err != nil {
    c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
    return
  }
  c.JSON(http.StatusOK, gin.H{"success": "true"})
}

func (ah *AdminHandler) UnblockUser(c *gin.Context) {
  userID, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
  if err != nil || userID == 0 {
    c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
    return
  }
  if err := ah.moderationService.Unblock(c.Request.Context(), userID); err != nil {
    c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
    return
  }
  c.JSON(http.StatusOK, gin.H{"success": "true"})
}

func (ah *AdminHandler) ListEvents(c *gin.Context) {
  userID, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
  if err != nil || userID == 0 {
    c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
    return
  }
  limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
  events, err := ah.moderationService.Events(c.Request.Context(), userID, limit)
  if err != nil {
    c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
    return
  }
  c.JSON(http.StatusOK, gin.H{"events": events})
}

func (ah *AdminHandler) ListAppeals(c *gin.Context) {
  var err error
  var appeals interface{}
  if c.Query("status") == "pending" {
    appeals, err = ah.appealService.ListPending(c.Request.Context())
  } else {
    appeals, err = ah.appealService.List(c.Request.Context())
  }
  if err != nil {
    c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
    return
  }
  c.JSON(http.StatusOK, gin.H{"appeals": appeals})
}

func (ah *AdminHandler) ResolveAppeal(c *gin.Context) {
  userID, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
  if err != nil || userID == 0 {
    c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
    return
  }
  var req struct {
    Approve bool   `json:"approve"`
    AdminID *int64 `json:"admin_id"`
  }
  if err := c.ShouldBindJSON(&req); err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
    return
  }
  err = ah.appealService.Resolve(c.Request.Context(), userID, req.Approve, req.AdminID)
  if errors.Is(err, repos.ErrAppealNotPending) {
    c.JSON(http.StatusConflict, gin.H{"error": "appeal is not pending"})
    return
  }
  if err != nil {
    c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
    return
  }
  c.JSON(http.StatusOK, gin.H{"success": "true"})
}

func (ah *AdminHandler) GetSettings(c *gin.Context) {
  snapshot, err := ah.settingsService.Snapshot(c.Request.Context())
  if err != nil {
    c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
    return
  }
  autoReply, err := ah.settingsService.Get(c.Request.Context(), types.SettingBlockedAutoReply)
  if err != nil {
    c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
    return
  }
  c.JSON(http.StatusOK, gin.H{
    "challenge_kind":     snapshot.ChallengeKind,
    "appeal_mode":        snapshot.AppealMode,
    "blocked_auto_reply": autoReply,
  })
}

func (ah *AdminHandler) SetSetting(c *gin.Context) {
  var req struct {
    Key   string `json:"key"`
    Value string `json:"value"`
  }
  if err := c.ShouldBindJSON(&req); err != nil || req.Key == "" {
    c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
    return
  }
  if err := ah.settingsService.Set(c.Request.Context(), req.Key, req.Value); err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
    return
  }
  c.JSON(http.StatusOK, gin.H{"success": "true"})
}
