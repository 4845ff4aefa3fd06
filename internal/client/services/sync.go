package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/listbuffer/internal/client/client"
	"github.com/dmitrijs2005/listbuffer/internal/client/models"
	"github.com/dmitrijs2005/listbuffer/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/listbuffer/internal/logging"
	"github.com/dmitrijs2005/listbuffer/internal/schema"
)

// ErrDrainInProgress is returned when Drain is called while another drain runs.
var ErrDrainInProgress = errors.New("drain already in progress")

// DrainResult summarizes one drain pass.
type DrainResult struct {
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// Collected is the number of Succeeded commands removed at start.
	Collected int `json:"collected"`
	Succeeded int `json:"succeeded"`
	Remapped  int `json:"remapped"`

	// FailedSeq is the command the pass stopped at, or 0.
	FailedSeq int64  `json:"failed_seq,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Complete reports whether the pass ran out of eligible commands.
func (r *DrainResult) Complete() bool {
	return r.FailedSeq == 0 && r.Error == ""
}

// SyncEngine replays the outbox against the remote backend in sequence order.
type SyncEngine struct {
	store    *client.Store
	registry *schema.Registry
	remote   client.RemoteTable
	outbox   *Outbox
	index    *ReferenceIndex
	timeout  time.Duration
	log      logging.Logger
	now      func() time.Time

	handlers map[models.Action]handler
	running  atomic.Bool
}

func NewSyncEngine(store *client.Store, registry *schema.Registry, remote client.RemoteTable,
	outbox *Outbox, index *ReferenceIndex, timeout time.Duration, log logging.Logger) *SyncEngine {
	e := &SyncEngine{
		store:    store,
		registry: registry,
		remote:   remote,
		outbox:   outbox,
		index:    index,
		timeout:  timeout,
		log:      log.With("module", "sync"),
		now:      time.Now,
	}
	e.handlers = e.buildHandlers()
	return e
}

// Drain removes Succeeded commands, then replays Pending and Failed commands
// one at a time in sequence order. The first failing command is marked
// Failed and ends the pass; it is not returned as an error. A successful
// Insert triggers the remap cascade, and an error from the cascade is
// returned after the command has been marked Failed.
func (e *SyncEngine) Drain(ctx context.Context) (*DrainResult, error) {
	if !e.running.CompareAndSwap(false, true) {
		return nil, ErrDrainInProgress
	}
	defer e.running.Store(false)

	res := &DrainResult{StartedAt: e.now().UTC()}
	err := e.drain(ctx, res)

	res.FinishedAt = e.now().UTC()
	if err != nil {
		res.Error = err.Error()
	}
	e.record(ctx, res)

	return res, err
}

func (e *SyncEngine) drain(ctx context.Context, res *DrainResult) error {
	collected, err := e.outbox.CollectGarbage(ctx)
	if err != nil {
		return fmt.Errorf("failed to collect succeeded commands: %w", err)
	}
	res.Collected = collected

	repo := e.store.Commands(e.store.DB())
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		cmd, err := repo.Next(ctx)
		if err != nil {
			return fmt.Errorf("failed to read next command: %w", err)
		}
		if cmd == nil {
			return nil
		}

		if remapFailed(cmd) {
			err := fmt.Errorf("%s (command %d reached the remote; disable it once resolved)", cmd.LastError, cmd.Seq)
			res.FailedSeq = cmd.Seq
			return e.fail(ctx, cmd, errors.New(cmd.LastError), err)
		}

		newID, err := e.dispatch(ctx, cmd)
		if err != nil {
			e.log.Warn(ctx, "command failed", "seq", cmd.Seq, "action", cmd.Action, "list", cmd.TableName, "error", err)
			res.FailedSeq = cmd.Seq
			return e.fail(ctx, cmd, err, nil)
		}

		if newID != nil {
			if err := e.remap(ctx, cmd, *newID); err != nil {
				res.FailedSeq = cmd.Seq
				return e.fail(ctx, cmd, err, err)
			}
			res.Remapped++
		}

		cmd.State = models.StateSucceeded
		cmd.LastError = ""
		if err := repo.UpdateState(ctx, cmd); err != nil {
			return fmt.Errorf("failed to mark command %d succeeded: %w", cmd.Seq, err)
		}
		res.Succeeded++
	}
}

// fail marks cmd Failed and returns ret, or the storage error if marking failed.
func (e *SyncEngine) fail(ctx context.Context, cmd *models.Command, cause, ret error) error {
	cmd.State = models.StateFailed
	cmd.Attempts++
	cmd.LastError = cause.Error()
	if err := e.store.Commands(e.store.DB()).UpdateState(ctx, cmd); err != nil {
		return fmt.Errorf("failed to mark command %d failed: %w", cmd.Seq, err)
	}
	return ret
}

const remapFailure = "remap "

// remapFailed reports whether cmd is an Insert whose remote call succeeded
// but whose cascade did not. Replaying it would create a second remote item.
func remapFailed(cmd *models.Command) bool {
	return cmd.State == models.StateFailed && cmd.Action == models.ActionInsert &&
		strings.HasPrefix(cmd.LastError, remapFailure)
}

func (e *SyncEngine) remap(ctx context.Context, cmd *models.Command, newID int) error {
	t, err := e.registry.Lookup(cmd.TypeName)
	if err != nil {
		return err
	}

	stats, err := e.index.Remap(ctx, t, cmd.Item(), newID)
	if err != nil {
		e.log.Error(ctx, "remap failed", "list", t.List, "old_id", cmd.Item(), "new_id", newID, "error", err)
		return fmt.Errorf(remapFailure+"%s %d -> %d: %w", t.List, cmd.Item(), newID, err)
	}

	e.log.Info(ctx, "item remapped", "list", t.List, "old_id", cmd.Item(), "new_id", newID,
		"references", stats.References, "attachments", stats.Attachments,
		"snapshots", stats.Snapshots, "commands", stats.Commands)
	return nil
}

// dispatch runs the handler of cmd. Panics are turned into errors.
func (e *SyncEngine) dispatch(ctx context.Context, cmd *models.Command) (newID *int, err error) {
	defer func() {
		if p := recover(); p != nil {
			newID, err = nil, fmt.Errorf("%s handler panicked: %v", cmd.Action, p)
		}
	}()

	h, ok := e.handlers[cmd.Action]
	if !ok {
		return nil, fmt.Errorf("no handler for action %q", cmd.Action)
	}

	t, err := e.registry.Lookup(cmd.TypeName)
	if err != nil {
		return nil, err
	}

	return h(ctx, t, cmd)
}

func (e *SyncEngine) call(ctx context.Context, op, list string, fn func(ctx context.Context) error) error {
	start := e.now()
	return callRemote(ctx, e.timeout, fn, func() {
		if d := e.now().Sub(start); d > slowOperation {
			e.log.Warn(ctx, "slow remote call", "op", op, "list", list, "duration", d.String())
		}
	})
}

func (e *SyncEngine) record(ctx context.Context, res *DrainResult) {
	if err := metadata.SetJSON(ctx, e.store.Metadata(e.store.DB()), metadata.KeyLastDrain, res); err != nil {
		e.log.Error(ctx, "failed to record drain result", "error", err)
	}
}
