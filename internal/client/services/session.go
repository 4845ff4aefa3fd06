package services

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/listbuffer/internal/client/client"
	"github.com/dmitrijs2005/listbuffer/internal/client/repositories/metadata"
)

// SessionService defines the connection operations for the CLI.
//
// Contract:
//   - Login: authenticate against the server and remember when it succeeded.
//   - Ping: check server liveness.
//   - LastLogin: the time of the last successful login, if any.
//   - Close: release underlying client resources.
type SessionService interface {
	Login(ctx context.Context) error
	Ping(ctx context.Context) error
	LastLogin(ctx context.Context) (time.Time, bool, error)
	Close(ctx context.Context) error
}

type sessionService struct {
	client client.Client
	store  *client.Store
	now    func() time.Time
}

// NewSessionService constructs a SessionService bound to the given API
// client and local store.
func NewSessionService(c client.Client, store *client.Store) SessionService {
	return &sessionService{client: c, store: store, now: time.Now}
}

func (s *sessionService) Login(ctx context.Context) error {
	if err := s.client.Login(ctx); err != nil {
		return fmt.Errorf("login error: %w", err)
	}

	err := metadata.SetJSON(ctx, s.store.Metadata(s.store.DB()), metadata.KeyLastLogin, s.now().UTC())
	if err != nil {
		return fmt.Errorf("failed to record login: %w", err)
	}
	return nil
}

// Ping proxies a liveness check to the underlying client.
func (s *sessionService) Ping(ctx context.Context) error {
	return s.client.Ping(ctx)
}

func (s *sessionService) LastLogin(ctx context.Context) (time.Time, bool, error) {
	var at time.Time
	ok, err := metadata.GetJSON(ctx, s.store.Metadata(s.store.DB()), metadata.KeyLastLogin, &at)
	return at, ok, err
}

// Close releases resources held by the underlying client.
func (s *sessionService) Close(ctx context.Context) error {
	return s.client.Close()
}
