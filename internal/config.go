package internal

import (
	"time"

	"chat-sync/domain"
	apperrors "chat-sync/errors"
	"chat-sync/governor"
)

type Config struct {
	BadgerFilepath       string        `env:"BADGER_FILEPATH,required=true"`
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,default=64"`
	LimitMessages        *int          `env:"LIMIT_MESSAGES"`
	Channel              string        `env:"CHANNEL,default=messages"`
	SendPolicy           string        `env:"SEND_POLICY,default=deferred"`
	SendDelay            time.Duration `env:"SEND_DELAY,default=2s"`
	LogLevel             string        `env:"LOG_LEVEL,default=INFO"`
}

// ChannelID resolves the configured channel name against the known streams.
func (c Config) ChannelID() (domain.Channel, error) {
	channel := domain.Channel(c.Channel)
	if !channel.Valid() {
		return "", apperrors.ErrUnknownChannel
	}
	return channel, nil
}

// Policy resolves the configured latency policy.
func (c Config) Policy() (governor.Policy, error) {
	return governor.ParsePolicy(c.SendPolicy)
}
