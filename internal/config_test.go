package internal

import (
	"testing"

	"chat-sync/domain"
	apperrors "chat-sync/errors"
	"chat-sync/governor"

	"github.com/stretchr/testify/require"
)

func TestConfig_ChannelID(t *testing.T) {
	req := require.New(t)

	channel, err := Config{Channel: "messages"}.ChannelID()
	req.NoError(err)
	req.Equal(domain.ChannelPlain, channel)

	channel, err = Config{Channel: "messageswithlatency"}.ChannelID()
	req.NoError(err)
	req.Equal(domain.ChannelLatency, channel)

	_, err = Config{Channel: "lobby"}.ChannelID()
	req.ErrorIs(err, apperrors.ErrUnknownChannel)
}

func TestConfig_Policy(t *testing.T) {
	req := require.New(t)

	policy, err := Config{SendPolicy: "blocking"}.Policy()
	req.NoError(err)
	req.Equal(governor.PolicyBlocking, policy)

	_, err = Config{SendPolicy: "instant"}.Policy()
	req.ErrorIs(err, apperrors.ErrUnknownPolicy)
}
