package services

import (
	"context"
	"time"

	"github.com/dmitrijs2005/listbuffer/internal/common"
	"github.com/dmitrijs2005/listbuffer/internal/cryptox"
	"github.com/dmitrijs2005/listbuffer/internal/server/auth"
	"github.com/dmitrijs2005/listbuffer/internal/server/config"
)

// SessionService exchanges the shared API key for short-lived access tokens
// and resolves tokens back to the client they were issued to.
type SessionService struct {
	apiKeyHash string
	jwtSecret  []byte
	tokenTTL   time.Duration
}

func NewSessionService(cfg config.AuthConfig) *SessionService {
	return &SessionService{
		apiKeyHash: cfg.APIKeyHash,
		jwtSecret:  []byte(cfg.JWTSecret),
		tokenTTL:   cfg.TokenTTL,
	}
}

// Login verifies apiKey against the configured bcrypt hash and issues an
// access token for clientID. An unset hash rejects every key.
func (s *SessionService) Login(ctx context.Context, apiKey, clientID string) (string, error) {
	if s.apiKeyHash == "" || !cryptox.VerifySecret(s.apiKeyHash, apiKey) {
		return "", common.ErrorUnauthorized
	}
	if clientID == "" {
		clientID = "anonymous"
	}

	token, err := auth.GenerateToken(clientID, s.jwtSecret, s.tokenTTL)
	if err != nil {
		return "", common.ErrorInternal
	}
	return token, nil
}

// Authenticate returns the client id carried by token.
func (s *SessionService) Authenticate(token string) (string, error) {
	return auth.GetClientIDFromToken(token, s.jwtSecret)
}
