package config

import (
  "fmt"
  "os"
  "time"
  "gopkg.in/yaml.v3"
  "github.com/yungbote/relaydesk-backend/internal/logger"
  "github.com/yungbote/relaydesk-backend/internal/utils"
)

// Config carries everything the process needs at startup. Values come
// from the environment, with an optional YAML file overlay for
// deployments that prefer files over env vars (RELAYDESK_CONFIG_FILE).
type Config struct {
  WorkspaceChatID  int64         `yaml:"workspace_chat_id"`
  WebhookSecret    string        `yaml:"webhook_secret"`
  AdminID          int64         `yaml:"admin_id"`
  AdminUser        string        `yaml:"admin_user"`
  AdminPassHash    string        `yaml:"admin_pass_hash"`
  JWTSecretKey     string        `yaml:"jwt_secret_key"`
  AccessTokenTTL   time.Duration `yaml:"-"`
  ListenAddr       string        `yaml:"listen_addr"`
  TransportTimeout time.Duration `yaml:"-"`
}

type fileOverlay struct {
  Config              `yaml:",inline"`
  AccessTokenTTLSecs  int `yaml:"access_token_ttl_seconds"`
  TransportTimeoutSecs int `yaml:"transport_timeout_seconds"`
}

func Load(log *logger.Logger) (Config, error) {
  cfg := Config{
    WorkspaceChatID:  utils.GetEnvAsInt64("WORKSPACE_CHAT_ID", 0, log),
    WebhookSecret:    utils.GetEnv("WEBHOOK_SECRET", "", log),
    AdminID:          utils.GetEnvAsInt64("ADMIN_ID", 0, log),
    AdminUser:        utils.GetEnv("ADMIN_USER", "admin", log),
    AdminPassHash:    utils.GetEnv("ADMIN_PASS_HASH", "", log),
    JWTSecretKey:     utils.GetEnv("JWT_SECRET_KEY", "defaultsecret", log),
    AccessTokenTTL:   time.Duration(utils.GetEnvAsInt("ACCESS_TOKEN_TTL", 3600, log)) * time.Second,
    ListenAddr:       utils.GetEnv("LISTEN_ADDR", ":8080", log),
    TransportTimeout: time.Duration(utils.GetEnvAsInt("TRANSPORT_TIMEOUT_SECONDS", 15, log)) * time.Second,
  }

  path := utils.GetEnv("RELAYDESK_CONFIG_FILE", "", log)
  if path != "" {
    raw, err := os.ReadFile(path)
    if err != nil {
      return cfg, fmt.Errorf("read config file %s: %w", path, err)
    }
    var overlay fileOverlay
    overlay.Config = cfg
    if err := yaml.Unmarshal(raw, &overlay); err != nil {
      return cfg, fmt.Errorf("parse config file %s: %w", path, err)
    }
    cfg = overlay.Config
    if overlay.AccessTokenTTLSecs > 0 {
      cfg.AccessTokenTTL = time.Duration(overlay.AccessTokenTTLSecs) * time.Second
    }
    if overlay.TransportTimeoutSecs > 0 {
      cfg.TransportTimeout = time.Duration(overlay.TransportTimeoutSecs) * time.Second
    }
  }

  if cfg.WorkspaceChatID == 0 {
    return cfg, fmt.Errorf("WORKSPACE_CHAT_ID is required")
  }
  return cfg, nil
}
