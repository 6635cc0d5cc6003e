package server

import (
  "github.com/gin-gonic/gin"
  "github.com/gin-contrib/cors"
  "go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
  "github.com/yungbote/relaydesk-backend/internal/handlers"
  "github.com/yungbote/relaydesk-backend/internal/middleware"
)

type RouterConfig struct {
  WebhookHandler *handlers.WebhookHandler
  AdminHandler   *handlers.AdminHandler
  AuthMiddleware *middleware.AuthMiddleware
  EnableTracing  bool
}

func NewRouter(cfg RouterConfig) *gin.Engine {
  router := gin.Default()

  if cfg.EnableTracing {
    router.Use(otelgin.Middleware("relaydesk-backend"))
  }

  // Cors
  router.Use(cors.New(cors.Config{
    AllowOrigins: []string{
      "http://localhost:80",
      "http://localhost:3000",
    },
    AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
    AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With", "X-Webhook-Secret"},
    AllowCredentials: true,
  }))

// ===============
// || Public    ||
// ===============
  router.GET("/healthcheck", handlers.HealthCheck)
  router.POST("/webhook", cfg.WebhookHandler.Receive)
  router.POST("/admin/login", cfg.AdminHandler.Login)

// ===============
// || Protected ||
// ===============
  admin := router.Group("/admin")
  admin.Use(cfg.AuthMiddleware.RequireAdmin())
  // Blocked users
  admin.GET("/blocked", cfg.AdminHandler.ListBlocked)
  admin.POST("/blocked", cfg.AdminHandler.BlockUser)
  admin.DELETE("/blocked/:user_id", cfg.AdminHandler.UnblockUser)
  // Appeals
  admin.GET("/appeals", cfg.AdminHandler.ListAppeals)
  admin.POST("/appeals/:user_id/resolve", cfg.AdminHandler.ResolveAppeal)
  // Relay history
  admin.GET("/users/:user_id/events", cfg.AdminHandler.ListEvents)
  // Settings
  admin.GET("/settings", cfg.AdminHandler.GetSettings)
  admin.POST("/settings", cfg.AdminHandler.SetSetting)

  return router
}
