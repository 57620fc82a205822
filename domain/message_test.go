package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestChannel_Valid(t *testing.T) {
	req := require.New(t)
	req.True(ChannelPlain.Valid())
	req.True(ChannelLatency.Valid())
	req.False(Channel("lobby").Valid())
}

func TestMessage_Before_Orders_By_CreatedAt_Then_ID(t *testing.T) {
	req := require.New(t)
	at := time.Now().UTC()

	early := Message{ID: uuid.New(), CreatedAt: at}
	late := Message{ID: uuid.New(), CreatedAt: at.Add(time.Nanosecond)}
	req.True(early.Before(late))
	req.False(late.Before(early))

	// Same instant: the id bytes decide, in exactly one direction.
	a := Message{ID: uuid.MustParse("00000000-0000-0000-0000-000000000001"), CreatedAt: at}
	b := Message{ID: uuid.MustParse("00000000-0000-0000-0000-000000000002"), CreatedAt: at}
	req.True(a.Before(b))
	req.False(b.Before(a))
	req.False(a.Before(a))
}
