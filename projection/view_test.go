package projection

import (
	"testing"
	"time"

	"chat-sync/domain"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

func message(sender, content string, at time.Time) domain.Message {
	return domain.Message{
		ID:        uuid.New(),
		Sender:    sender,
		Content:   content,
		CreatedAt: at,
		Channel:   domain.ChannelPlain,
	}
}

func contents(messages []domain.Message) []string {
	return lo.Map(messages, func(m domain.Message, _ int) string { return m.Content })
}

func TestView_Apply_Keeps_Insertion_Order(t *testing.T) {
	req := require.New(t)
	view := NewView()
	at := time.Now().UTC()

	req.True(view.Apply(message("Alice", "hi", at)))
	req.True(view.Apply(message("Alice", "bye", at.Add(time.Second))))

	req.Equal([]string{"hi", "bye"}, contents(view.Snapshot()))
}

func TestView_Apply_Discards_Duplicates(t *testing.T) {
	req := require.New(t)
	view := NewView()
	msg := message("Alice", "only once", time.Now().UTC())

	// Given the message arrived through the history fetch
	view.Reset([]domain.Message{msg})

	// When the live feed re-delivers the same id
	req.False(view.Apply(msg))

	// Then the view holds it exactly once
	req.Equal(1, view.Len())
	req.Equal([]string{"only once"}, contents(view.Snapshot()))
}

func TestView_Apply_Reorders_Late_Commit(t *testing.T) {
	req := require.New(t)
	view := NewView()
	at := time.Now().UTC()

	// A delayed send commits with an earlier timestamp than a message the
	// feed already delivered.
	late := message("Bob", "undelayed", at.Add(time.Second))
	early := message("Alice", "delayed but older", at)

	req.True(view.Apply(late))
	req.True(view.Apply(early))

	req.Equal([]string{"delayed but older", "undelayed"}, contents(view.Snapshot()))
}

func TestView_Ties_Break_On_ID(t *testing.T) {
	req := require.New(t)
	view := NewView()
	at := time.Now().UTC()

	a := message("Alice", "a", at)
	b := message("Bob", "b", at)
	view.Apply(a)
	view.Apply(b)

	snapshot := view.Snapshot()
	req.Len(snapshot, 2)
	// Same instant: the id comparison decides, deterministically.
	req.True(snapshot[0].Before(snapshot[1]))
}

func TestView_Reset_Replaces_Wholesale(t *testing.T) {
	req := require.New(t)
	view := NewView()
	at := time.Now().UTC()

	view.Apply(message("Alice", "stale", at))

	fresh := []domain.Message{
		message("Alice", "hello", at),
		message("Bob", "world", at.Add(time.Second)),
	}
	view.Reset(fresh)

	req.Equal([]string{"hello", "world"}, contents(view.Snapshot()))
}

func TestView_Reset_Deduplicates_Snapshot(t *testing.T) {
	req := require.New(t)
	view := NewView()
	msg := message("Alice", "hi", time.Now().UTC())

	view.Reset([]domain.Message{msg, msg})

	req.Equal(1, view.Len())
}

func TestView_Snapshot_Is_A_Copy(t *testing.T) {
	req := require.New(t)
	view := NewView()
	at := time.Now().UTC()

	view.Apply(message("Alice", "hi", at))
	snapshot := view.Snapshot()

	view.Apply(message("Bob", "later", at.Add(time.Second)))

	req.Len(snapshot, 1, "earlier snapshot must not observe later folds")
}
