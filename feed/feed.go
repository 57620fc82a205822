// Package feed implements the per-channel change feed: a broadcast of newly
// committed messages to every subscription active at commit time.
//
// Delivery is at-least-once and follows per-channel append order. A
// subscription only observes messages committed strictly after it
// registered; history is the job of a fetch, not of the feed.
package feed

import (
	"fmt"
	"log/slog"
	"sync"

	"chat-sync/domain"
)

type ChangeFeed struct {
	mu         sync.RWMutex
	log        *slog.Logger
	bufferSize int
	subs       map[domain.Channel]map[*Subscription]struct{}
}

func NewChangeFeed(log *slog.Logger, bufferSize int) *ChangeFeed {
	return &ChangeFeed{
		log:        log,
		bufferSize: bufferSize,
		subs:       make(map[domain.Channel]map[*Subscription]struct{}),
	}
}

// Subscribe registers interest in messages committed to one channel from
// this point on. The returned subscription buffers deliveries so a slow
// reader does not stall commits.
func (f *ChangeFeed) Subscribe(channel domain.Channel) *Subscription {
	sub := &Subscription{
		feed:    f,
		channel: channel,
		events:  make(chan domain.Message, f.bufferSize),
		done:    make(chan struct{}),
		lagged:  make(chan struct{}, 1),
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.subs[channel]; !ok {
		f.subs[channel] = make(map[*Subscription]struct{})
	}
	f.subs[channel][sub] = struct{}{}
	return sub
}

// Unsubscribe stops delivery to sub. Idempotent: closing twice, or after
// the owning session is already gone, is a no-op.
func (f *ChangeFeed) Unsubscribe(sub *Subscription) {
	if sub != nil {
		sub.Close()
	}
}

// Publish delivers a committed message to every active subscription of its
// channel, in call order. A subscriber whose buffer is full is skipped and
// marked lagged instead of blocking the commit path; the others are
// unaffected.
func (f *ChangeFeed) Publish(message domain.Message) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	for sub := range f.subs[message.Channel] {
		select {
		case sub.events <- message:
		default:
			// The lag signal must be receivable even when no further
			// event ever lands in the buffer, so it is its own channel
			// rather than a flag read on the next delivery.
			select {
			case sub.lagged <- struct{}{}:
			default:
			}
			f.log.Warn(fmt.Sprintf("Subscriber buffer full on %s, delivery skipped", message.Channel))
		}
	}
}

func (f *ChangeFeed) remove(sub *Subscription) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if members, ok := f.subs[sub.channel]; ok {
		delete(members, sub)
		// No empty sets left behind for channels nobody listens to.
		if len(members) == 0 {
			delete(f.subs, sub.channel)
		}
	}
}

// SubscriberCount reports how many subscriptions are active on a channel.
func (f *ChangeFeed) SubscriberCount(channel domain.Channel) int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subs[channel])
}

// Subscription is a live handle on one channel's feed. At most one owner
// reads from it; teardown is safe at any point, including mid-delivery.
type Subscription struct {
	feed      *ChangeFeed
	channel   domain.Channel
	events    chan domain.Message
	done      chan struct{}
	closeOnce sync.Once
	lagged    chan struct{}
}

// Events yields newly committed messages in append order. The channel is
// never closed; readers must also select on Done.
func (s *Subscription) Events() <-chan domain.Message {
	return s.events
}

// Done is closed when the subscription is torn down.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Channel returns the channel this subscription is registered on.
func (s *Subscription) Channel() domain.Channel {
	return s.channel
}

// Close deregisters the subscription. Idempotent.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		s.feed.remove(s)
		close(s.done)
	})
}

// Lagged signals that deliveries were skipped since the last receive. One
// receive drains the signal however many deliveries were lost; the owning
// session recovers with a fresh fetch, since the feed never replays.
func (s *Subscription) Lagged() <-chan struct{} {
	return s.lagged
}
