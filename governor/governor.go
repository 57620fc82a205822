// Package governor injects a configurable artificial delay into the send
// path, simulating a slow network. The delay shifts when a commit happens,
// never how commits are ordered: the store still assigns order at persist
// time.
package governor

import (
	"context"
	"log/slog"
	"time"

	apperrors "chat-sync/errors"
)

// Policy selects how the delay is applied to the caller.
type Policy string

const (
	// PolicyBlocking freezes the caller until the delay elapses and the
	// commit completes. Intentionally the naive mode.
	PolicyBlocking Policy = "blocking"
	// PolicyDeferred schedules the commit in the background and returns
	// immediately; the owning session guards against a second send while
	// one is pending.
	PolicyDeferred Policy = "deferred"
)

// ParsePolicy maps a configuration string onto a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case PolicyBlocking, PolicyDeferred:
		return Policy(s), nil
	default:
		return "", apperrors.ErrUnknownPolicy
	}
}

type Governor struct {
	log    *slog.Logger
	policy Policy
	delay  time.Duration
}

func NewGovernor(log *slog.Logger, policy Policy, delay time.Duration) *Governor {
	return &Governor{log: log, policy: policy, delay: delay}
}

func (g *Governor) Policy() Policy { return g.policy }

// Execute applies the configured delay and then runs commit.
//
// Under PolicyBlocking the call returns the commit's outcome after the
// delay has elapsed; done is invoked with the same outcome before Execute
// returns. Under PolicyDeferred, Execute returns nil immediately and the
// outcome reaches done from a background goroutine once the delayed commit
// has finished. Either way done is called exactly once.
//
// Cancelling ctx during the wait abandons the commit and reports ctx's
// error; nothing is persisted in that case.
func (g *Governor) Execute(ctx context.Context, commit func(context.Context) error, done func(error)) error {
	if g.policy == PolicyBlocking {
		err := g.run(ctx, commit)
		done(err)
		return err
	}

	go func() {
		err := g.run(ctx, commit)
		if err != nil {
			g.log.Warn("Deferred send failed", "error", err)
		}
		done(err)
	}()
	return nil
}

// run waits out the delay on a timer (no busy wait) and then commits.
func (g *Governor) run(ctx context.Context, commit func(context.Context) error) error {
	if g.delay > 0 {
		timer := time.NewTimer(g.delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	return commit(ctx)
}
