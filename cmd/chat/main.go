package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chat-sync/domain"
	apperrors "chat-sync/errors"
	"chat-sync/feed"
	"chat-sync/governor"
	"chat-sync/internal"
	"chat-sync/repositories"
	"chat-sync/runtime"
	"chat-sync/runtime/workers"
	"chat-sync/session"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

// Exit codes to provide meaningful status to the operating system or service manager.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	// The main function acts as a thin wrapper.
	// Its only responsibility is to call run() and handle the OS exit code.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Chat terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run initializes all components, drives the interactive loop, and
// centralizes error reporting, so deferred cleanup (database close,
// session teardown) always executes before the process exits.
func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	channel, err := config.ChannelID()
	if err != nil {
		return exitConfig, fmt.Errorf("%w: %s", err, config.Channel)
	}
	policy, err := config.Policy()
	if err != nil {
		return exitConfig, fmt.Errorf("%w: %s", err, config.SendPolicy)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Database (BadgerDB)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.ERROR))
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Engine wiring: store, feed, governor, session
	repository := repositories.NewMessageRepository(db, log, config.LimitMessages)
	changeFeed := feed.NewChangeFeed(log, config.ConnectionBufferSize)
	engine := runtime.NewEngine(log, repository, changeFeed)
	gov := governor.NewGovernor(log, policy, config.SendDelay)
	sess := session.NewSession(log, engine, channel, gov)

	// 4. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 5. Interactive loop
	scanner := bufio.NewScanner(os.Stdin)
	lines := make(chan string)
	go func() {
		defer close(lines)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	color.Cyan.Println("Enter your name:")
	var name string
	select {
	case <-ctx.Done():
		return exitOK, nil
	case line, ok := <-lines:
		if !ok {
			return exitOK, nil
		}
		name = line
	}

	if err := sess.Activate(ctx, name); err != nil {
		return exitConfig, err
	}
	defer sess.Deactivate()

	sess.OnMessage(func(m domain.Message) { render(m, name) })
	sess.OnSendResult(func(err error) {
		if err != nil {
			color.Red.Printf("send failed: %v\n", err)
		}
	})

	// Replay the reconciled history before going live.
	for _, m := range sess.Messages() {
		render(m, name)
	}

	// The event pump runs under supervision: a panic in a handler restarts
	// the pump instead of killing the program.
	sup := workers.NewSupervisor(log)
	go sup.Add(sess).Run(ctx)
	defer sup.Stop()

	color.Cyan.Printf("Connected to %q as %s (policy=%s, delay=%s). Ctrl+C to quit.\n",
		channel, name, policy, config.SendDelay)

	for {
		select {
		case <-ctx.Done():
			log.Info("Shutdown signal received")
			return exitOK, nil
		case line, ok := <-lines:
			if !ok {
				return exitOK, nil
			}
			switch err := sess.SendMessage(ctx, line); {
			case err == nil:
			case errors.Is(err, apperrors.ErrSendInFlight):
				color.Yellow.Println("still sending the previous message, try again in a moment")
			case errors.Is(err, apperrors.ErrEmptyContent):
				// Blank lines are simply ignored.
			default:
				color.Red.Printf("send rejected: %v\n", err)
			}
		}
	}
}

func render(m domain.Message, self string) {
	ts := m.CreatedAt.Local().Format(time.TimeOnly)
	if m.Sender == self {
		color.Green.Printf("[%s] %s: %s\n", ts, m.Sender, m.Content)
		return
	}
	fmt.Printf("[%s] %s: %s\n", ts, color.New(color.FgCyan).Render(m.Sender), m.Content)
}
