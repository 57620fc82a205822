// Package session implements one reader's live connection to a channel: an
// initial history fetch, a change-feed subscription, and the reconciled
// view both are folded into.
package session

import (
	"context"
	"log/slog"
	"sync"

	"chat-sync/domain"
	apperrors "chat-sync/errors"
	"chat-sync/feed"
	"chat-sync/governor"
	"chat-sync/projection"
	"chat-sync/runtime"

	"github.com/google/uuid"
)

// Handler observes each message newly admitted to the session's view.
// Duplicates filtered by the reconciler never reach a handler.
type Handler func(message domain.Message)

type Session struct {
	id       string
	log      *slog.Logger
	engine   *runtime.Engine
	channel  domain.Channel
	governor *governor.Governor
	view     *projection.View

	mu         sync.Mutex
	sender     string
	active     bool
	sending    bool
	sub        *feed.Subscription
	handlers   []Handler
	sendResult func(error)
}

func NewSession(log *slog.Logger, engine *runtime.Engine, channel domain.Channel, gov *governor.Governor) *Session {
	return &Session{
		id:       uuid.NewString(),
		log:      log,
		engine:   engine,
		channel:  channel,
		governor: gov,
		view:     projection.NewView(),
	}
}

func (s *Session) ID() string { return s.id }

// OnMessage registers a handler for newly admitted messages. The UI
// collaborator hangs off this hook.
func (s *Session) OnMessage(handler Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers = append(s.handlers, handler)
}

// OnSendResult registers the callback that receives the outcome of sends
// completed in the background under the deferred policy. Blocking sends
// report through it too, before SendMessage returns.
func (s *Session) OnSendResult(fn func(error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sendResult = fn
}

// Activate brings the session online for the given sender label: it
// registers on the change feed first, then fetches history into the view.
// Subscribing before fetching means a message committed in between arrives
// through the feed and the reconciler's dedup absorbs any overlap with the
// snapshot; nothing is lost and nothing is doubled.
func (s *Session) Activate(ctx context.Context, sender string) error {
	if err := validateSender(sender); err != nil {
		return err
	}

	s.mu.Lock()
	if s.active {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	sub := s.engine.Subscribe(s.channel)
	history, err := s.engine.Fetch(ctx, s.channel)
	if err != nil {
		s.engine.Unsubscribe(sub)
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active {
		// Lost a race with a concurrent Activate: the other call owns
		// the session, release this registration instead of leaking it.
		s.engine.Unsubscribe(sub)
		return nil
	}
	s.view.Reset(history)
	s.sub = sub
	s.sender = sender
	s.active = true
	s.log.Info("Session activated",
		"session_id", s.id, "channel", s.channel, "sender", sender)
	return nil
}

// Run pumps live events into the view until the context is canceled or the
// session deactivates. It implements contract.Worker so a supervisor can
// own it.
func (s *Session) Run(ctx context.Context) error {
	s.mu.Lock()
	sub := s.sub
	s.mu.Unlock()
	if sub == nil {
		return apperrors.ErrSessionInactive
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-sub.Done():
			s.log.Debug("Subscription closed, stopping pump", "session_id", s.id)
			return nil
		case message := <-sub.Events():
			if s.fold(message) {
				s.notify(message)
			}
		case <-sub.Lagged():
			// Deliveries were skipped while we lagged behind: the feed
			// never replays, so resynchronize from the store.
			s.resync(ctx)
		}
	}
}

// SendMessage validates and routes one send through the latency governor.
// Under the deferred policy a second attempt while one is pending is
// rejected with ErrSendInFlight, never queued.
func (s *Session) SendMessage(ctx context.Context, content string) error {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return apperrors.ErrSessionInactive
	}
	sender := s.sender
	if err := validateSend(sender, content); err != nil {
		s.mu.Unlock()
		return err
	}
	deferred := s.governor.Policy() == governor.PolicyDeferred
	if deferred {
		if s.sending {
			s.mu.Unlock()
			return apperrors.ErrSendInFlight
		}
		s.sending = true
	}
	s.mu.Unlock()

	commit := func(ctx context.Context) error {
		_, err := s.engine.Append(ctx, s.channel, sender, content)
		return err
	}
	done := func(err error) {
		s.mu.Lock()
		s.sending = false
		fn := s.sendResult
		s.mu.Unlock()
		if fn != nil {
			fn(err)
		}
	}
	return s.governor.Execute(ctx, commit, done)
}

// Messages returns the session's reconciled view, oldest first.
func (s *Session) Messages() []domain.Message {
	return s.view.Snapshot()
}

// Deactivate tears the session down: unsubscribes (idempotent) and
// discards the local view. Safe to call twice or concurrently with Run.
func (s *Session) Deactivate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return
	}
	s.engine.Unsubscribe(s.sub)
	s.sub = nil
	s.active = false
	s.sender = ""
	// fold checks active under the same lock, so a pump goroutine racing
	// this teardown cannot repopulate the discarded view.
	s.view.Reset(nil)
	s.log.Info("Session deactivated", "session_id", s.id, "channel", s.channel)
}

// fold admits one message into the view, unless the session has been
// deactivated in the meantime.
func (s *Session) fold(message domain.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return false
	}
	return s.view.Apply(message)
}

func (s *Session) notify(message domain.Message) {
	s.mu.Lock()
	handlers := make([]Handler, len(s.handlers))
	copy(handlers, s.handlers)
	s.mu.Unlock()
	for _, handler := range handlers {
		handler(message)
	}
}

// resync refetches history after lost deliveries and folds it in; dedup
// keeps everything already seen, ordered insert slots in what was missed.
func (s *Session) resync(ctx context.Context) {
	history, err := s.engine.Fetch(ctx, s.channel)
	if err != nil {
		s.log.Warn("Resync fetch failed", "session_id", s.id, "error", err)
		return
	}
	s.log.Info("Resynchronized after lost deliveries",
		"session_id", s.id, "channel", s.channel)
	for _, message := range history {
		if s.fold(message) {
			s.notify(message)
		}
	}
}
