package main

import (
  "context"
  "errors"
  "fmt"
  "net/http"
  "os"
  "os/signal"
  "syscall"
  "time"
  "golang.org/x/sync/errgroup"
  "github.com/yungbote/relaydesk-backend/internal/cache"
  "github.com/yungbote/relaydesk-backend/internal/clients/botapi"
  "github.com/yungbote/relaydesk-backend/internal/config"
  "github.com/yungbote/relaydesk-backend/internal/db"
  "github.com/yungbote/relaydesk-backend/internal/handlers"
  "github.com/yungbote/relaydesk-backend/internal/logger"
  "github.com/yungbote/relaydesk-backend/internal/middleware"
  "github.com/yungbote/relaydesk-backend/internal/observability"
  "github.com/yungbote/relaydesk-backend/internal/repos"
  "github.com/yungbote/relaydesk-backend/internal/server"
  "github.com/yungbote/relaydesk-backend/internal/services"
  "github.com/yungbote/relaydesk-backend/internal/utils"
)

func main() {
  // Logger
  logMode := os.Getenv("LOG_MODE")
  if logMode == "" {
    logMode = "development"
  }
  log, err := logger.New(logMode)
  if err != nil {
    fmt.Printf("Failed to init logger: %v\n", err)
    os.Exit(1)
  }
  defer log.Sync()

  // Config
  log.Info("Loading configuration from main...")
  cfg, err := config.Load(log)
  if err != nil {
    log.Error("Could not load configuration", "error", err)
    os.Exit(1)
  }

  // Tracing
  otelShutdown := observability.InitOTel(context.Background(), log, observability.OtelConfig{
    ServiceName: "relaydesk-backend",
    Environment: utils.GetEnv("APP_ENV", "development", log),
    Version:     utils.GetEnv("APP_VERSION", "dev", log),
  })

  // Postgres
  postgresService, err := db.NewPostgresService(log)
  if err != nil {
    log.Error("Postgres init failed", "error", err)
    os.Exit(1)
  }
  if err = postgresService.Migrate(); err != nil {
    log.Error("Postgres migration failed", "error", err)
    os.Exit(1)
  }
  thePG := postgresService.DB()

  // Cache
  var store cache.Cache
  store, err = cache.NewRedis(log)
  if err != nil {
    log.Warn("Redis init failed, using in-process cache", "error", err)
    store = cache.NewMemory()
  }

  // Transport
  messenger, err := botapi.NewFromEnv(log)
  if err != nil {
    log.Error("Could not init bot API client", "error", err)
    os.Exit(1)
  }

  // Repos
  log.Info("Setting up Repos from main...")
  topicRepo := repos.NewTopicRepo(thePG, log)
  messageLinkRepo := repos.NewMessageLinkRepo(thePG, log)
  blockedUserRepo := repos.NewBlockedUserRepo(thePG, log)
  verificationAttemptRepo := repos.NewVerificationAttemptRepo(thePG, log)
  appealRequestRepo := repos.NewAppealRequestRepo(thePG, log)
  verifiedUserRepo := repos.NewVerifiedUserRepo(thePG, log)
  settingRepo := repos.NewSettingRepo(thePG, log)
  relayEventRepo := repos.NewRelayEventRepo(thePG, log)

  // Services
  log.Info("Setting up Services from main...")
  settingsService := services.NewSettingsService(thePG, log, settingRepo, store)
  challengeService := services.NewChallengeService(log, store, messenger)
  appealService := services.NewAppealService(thePG, log, store, appealRequestRepo, blockedUserRepo, verificationAttemptRepo, challengeService, settingsService, messenger, cfg.WorkspaceChatID)
  verificationService := services.NewVerificationService(thePG, log, store, verifiedUserRepo, verificationAttemptRepo, blockedUserRepo, challengeService, appealService, settingsService, messenger)
  routerService := services.NewRouterService(thePG, log, store, topicRepo, messageLinkRepo, relayEventRepo, messenger, cfg.WorkspaceChatID)
  authService := services.NewAuthService(log, cfg)
  moderationService := services.NewModerationService(thePG, log, store, blockedUserRepo, verifiedUserRepo, verificationAttemptRepo, relayEventRepo)

  // Handlers
  log.Info("Setting up handlers from main...")
  webhookHandler := handlers.NewWebhookHandler(log, cfg.WebhookSecret, cfg.WorkspaceChatID, verificationService, routerService, appealService, messenger)
  adminHandler := handlers.NewAdminHandler(authService, moderationService, appealService, settingsService)

  // Middleware
  authMiddleware := middleware.NewAuthMiddleware(log, authService)

  // Router
  log.Info("Setting up router from main...")
  router := server.NewRouter(server.RouterConfig{
    WebhookHandler: webhookHandler,
    AdminHandler:   adminHandler,
    AuthMiddleware: authMiddleware,
    EnableTracing:  observability.Enabled(),
  })

  srv := &http.Server{
    Addr:    cfg.ListenAddr,
    Handler: router,
  }

  ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
  defer stop()

  g, gctx := errgroup.WithContext(ctx)
  g.Go(func() error {
    log.Info("Server listening", "addr", cfg.ListenAddr)
    if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
      return err
    }
    return nil
  })
  g.Go(func() error {
    <-gctx.Done()
    log.Info("Shutting down server...")
    shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
    defer cancel()
    return srv.Shutdown(shutdownCtx)
  })

  if err := g.Wait(); err != nil {
    log.Error("Server failed", "error", err)
  }
  if otelShutdown != nil {
    shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
    defer cancel()
    if err := otelShutdown(shutdownCtx); err != nil {
      log.Warn("otel shutdown failed", "error", err)
    }
  }
}
