// Package runtime composes the message store and the change feed into one
// engine. It owns the commit path without containing domain rules: the
// engine assigns order, persists, then notifies, in that order, for every
// append.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"chat-sync/domain"
	apperrors "chat-sync/errors"
	"chat-sync/feed"
	"chat-sync/repositories"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// Engine is the single cross-session shared resource: a durable append-only
// store per channel plus the feed that propagates each commit.
type Engine struct {
	log        *slog.Logger
	repository repositories.IMessageRepository
	feed       *feed.ChangeFeed

	mu    sync.Mutex
	locks map[domain.Channel]*sync.Mutex
}

func NewEngine(log *slog.Logger, repository repositories.IMessageRepository, changeFeed *feed.ChangeFeed) *Engine {
	return &Engine{
		log:        log,
		repository: repository,
		feed:       changeFeed,
		locks:      make(map[domain.Channel]*sync.Mutex),
	}
}

// Append assigns id and created_at, durably persists the message, then
// notifies the channel's subscribers. The per-channel lock makes the
// assign+persist+notify sequence atomic with respect to other appends, so
// append order, commit order and delivery order are one and the same.
// Concurrent appends from many sessions need no caller-side locking.
func (e *Engine) Append(ctx context.Context, channel domain.Channel, sender, content string) (domain.Message, error) {
	if !channel.Valid() {
		return domain.Message{}, apperrors.ErrUnknownChannel
	}
	if err := ctx.Err(); err != nil {
		return domain.Message{}, err
	}

	lock := e.channelLock(channel)
	lock.Lock()
	defer lock.Unlock()

	message := domain.Message{
		ID:        uuid.New(),
		Sender:    sender,
		Content:   content,
		CreatedAt: time.Now().UTC(),
		Channel:   channel,
	}

	if err := e.repository.StoreMessage(repositories.ToDiskMessage(message)); err != nil {
		// The write did not happen; the caller keeps its input and may retry.
		return domain.Message{}, fmt.Errorf("%w: %w", apperrors.ErrStoreUnavailable, err)
	}

	// Never notify-before-persist.
	e.feed.Publish(message)
	e.log.Debug("Message committed",
		"channel", channel,
		"message_id", message.ID,
		"sender", sender,
	)
	return message, nil
}

// Fetch returns the channel's full history in ascending (created_at, id)
// order. Safe to call concurrently with Append: an in-flight append may or
// may not be visible, but never partially.
func (e *Engine) Fetch(ctx context.Context, channel domain.Channel) ([]domain.Message, error) {
	if !channel.Valid() {
		return nil, apperrors.ErrUnknownChannel
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	diskMessages, err := e.repository.GetMessages(channel)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrStoreUnavailable, err)
	}
	return lo.Map(diskMessages, func(item repositories.DiskMessage, _ int) domain.Message {
		return repositories.FromDiskMessage(item)
	}), nil
}

// Subscribe registers a live subscription on the channel's change feed.
func (e *Engine) Subscribe(channel domain.Channel) *feed.Subscription {
	return e.feed.Subscribe(channel)
}

// Unsubscribe tears down a subscription. Idempotent.
func (e *Engine) Unsubscribe(sub *feed.Subscription) {
	e.feed.Unsubscribe(sub)
}

func (e *Engine) channelLock(channel domain.Channel) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	lock, ok := e.locks[channel]
	if !ok {
		lock = &sync.Mutex{}
		e.locks[channel] = lock
	}
	return lock
}
