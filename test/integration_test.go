package test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"chat-sync/domain"
	apperrors "chat-sync/errors"
	"chat-sync/feed"
	"chat-sync/governor"
	"chat-sync/repositories"
	"chat-sync/runtime"
	"chat-sync/runtime/workers"
	"chat-sync/session"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

// Test_Scenario drives the whole engine end to end: two sessions on the
// plain channel and a delayed sender on the latency channel, all sharing
// one store and one feed, with the pumps running under supervision.
func Test_Scenario(t *testing.T) {
	req := require.New(t)
	// Reduced to 16 Mo for testing (avoid 2 Go of preallocated storage)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).
		WithLoggingLevel(badger.ERROR).
		WithValueLogFileSize(16 << 20))
	req.NoError(err)
	defer db.Close()

	log := logs.GetLoggerFromLevel(slog.LevelError)
	repository := repositories.NewMessageRepository(db, log, nil)
	changeFeed := feed.NewChangeFeed(log, 64)
	engine := runtime.NewEngine(log, repository, changeFeed)

	instant := governor.NewGovernor(log, governor.PolicyBlocking, 0)
	delay := 100 * time.Millisecond
	delayed := governor.NewGovernor(log, governor.PolicyDeferred, delay)

	alice := session.NewSession(log, engine, domain.ChannelPlain, instant)
	bob := session.NewSession(log, engine, domain.ChannelPlain, instant)
	clara := session.NewSession(log, engine, domain.ChannelLatency, delayed)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req.NoError(alice.Activate(ctx, "Alice"))
	req.NoError(bob.Activate(ctx, "Bob"))
	req.NoError(clara.Activate(ctx, "Clara"))
	defer alice.Deactivate()
	defer bob.Deactivate()
	defer clara.Deactivate()

	sup := workers.NewSupervisor(log)
	go sup.Add(alice, bob, clara).Run(ctx)
	defer sup.Stop()

	claraDone := make(chan error, 1)
	clara.OnSendResult(func(err error) { claraDone <- err })

	// Plain channel: immediate exchange
	req.NoError(alice.SendMessage(ctx, "hi"))
	req.NoError(bob.SendMessage(ctx, "hello Alice"))
	req.NoError(alice.SendMessage(ctx, "bye"))

	// Latency channel: one send in flight, a second rejected outright
	req.NoError(clara.SendMessage(ctx, "slow greetings"))
	req.ErrorIs(clara.SendMessage(ctx, "impatient"), apperrors.ErrSendInFlight)
	req.NoError(<-claraDone)

	waitFor(t, func() bool { return len(alice.Messages()) == 3 && len(bob.Messages()) == 3 })
	waitFor(t, func() bool { return len(clara.Messages()) == 1 })

	// Every plain-channel reader converged on the same ordered view
	req.Equal(alice.Messages(), bob.Messages())
	view := alice.Messages()
	req.Equal("hi", view[0].Content)
	req.Equal("hello Alice", view[1].Content)
	req.Equal("bye", view[2].Content)

	// Channels never bleed into each other
	req.Equal("slow greetings", clara.Messages()[0].Content)

	// A newcomer rebuilds the same view from durable history alone
	late := session.NewSession(log, engine, domain.ChannelPlain, instant)
	req.NoError(late.Activate(ctx, "Late"))
	defer late.Deactivate()
	req.Equal(alice.Messages(), late.Messages())
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	require.True(t, cond())
}
