package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/yungbote/relaydesk-backend/internal/config"
	"github.com/yungbote/relaydesk-backend/internal/logger"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

type AdminClaims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// AuthService issues and validates admin access tokens for the
// management API. A single admin account is configured at startup.
type AuthService interface {
	Login(ctx context.Context, username, password string) (string, error)
	Parse(token string) (*AdminClaims, error)
}

type authService struct {
	log *logger.Logger
	cfg config.Config
}

func NewAuthService(log *logger.Logger, cfg config.Config) AuthService {
	return &authService{
		log: log.With("service", "AuthService"),
		cfg: cfg,
	}
}

func (as *authService) Login(ctx context.Context, username, password string) (string, error) {
	if username != as.cfg.AdminUser || as.cfg.AdminPassHash == "" {
		return "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(as.cfg.AdminPassHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	now := time.Now()
	claims := AdminClaims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(as.cfg.AccessTokenTTL)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(as.cfg.JWTSecretKey))
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	as.log.Info("admin login", "username", username)
	return token, nil
}

func (as *authService) Parse(token string) (*AdminClaims, error) {
	parsed, err := jwt.ParseWithClaims(token, &AdminClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(as.cfg.JWTSecretKey), nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse access token: %w", err)
	}
	claims, ok := parsed.Claims.(*AdminClaims)
	if !ok || !parsed.Valid {
		return nil, fmt.Errorf("invalid access token claims")
	}
	return claims, nil
}
