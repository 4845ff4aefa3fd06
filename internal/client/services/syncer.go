package services

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/listbuffer/internal/logging"
)

// Drainer replays the outbox.
type Drainer interface {
	Drain(ctx context.Context) (*DrainResult, error)
}

// Pinger checks whether the remote answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Syncer drains the outbox on an interval while the remote is reachable.
type Syncer struct {
	drainer  Drainer
	pinger   Pinger
	interval time.Duration
	log      logging.Logger
	online   atomic.Bool
}

func NewSyncer(drainer Drainer, pinger Pinger, interval time.Duration, log logging.Logger) *Syncer {
	return &Syncer{
		drainer:  drainer,
		pinger:   pinger,
		interval: interval,
		log:      log.With("module", "syncer"),
	}
}

// Online reports the outcome of the latest ping.
func (s *Syncer) Online() bool {
	return s.online.Load()
}

// Run ticks until ctx is cancelled.
func (s *Syncer) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick pings the remote and drains when it answers.
func (s *Syncer) Tick(ctx context.Context) {
	if err := s.pinger.Ping(ctx); err != nil {
		if s.online.Swap(false) {
			s.log.Warn(ctx, "remote went offline", "error", err)
		}
		return
	}
	if !s.online.Swap(true) {
		s.log.Info(ctx, "remote is online")
	}

	res, err := s.drainer.Drain(ctx)
	switch {
	case errors.Is(err, ErrDrainInProgress), errors.Is(err, context.Canceled):
	case err != nil:
		s.log.Error(ctx, "drain aborted", "error", err)
	case !res.Complete():
		s.log.Warn(ctx, "drain stopped at failed command", "seq", res.FailedSeq, "succeeded", res.Succeeded)
	case res.Succeeded > 0:
		s.log.Info(ctx, "drain finished", "succeeded", res.Succeeded, "remapped", res.Remapped)
	}
}
