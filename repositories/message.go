//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"fmt"
	"log/slog"
	"time"

	"chat-sync/domain"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
)

type IMessageRepository interface {
	StoreMessage(message DiskMessage) error
	GetMessages(channel domain.Channel) ([]DiskMessage, error)
}

type MessageRepository struct {
	db            *badger.DB
	log           *slog.Logger
	limitMessages *int
}

func NewMessageRepository(db *badger.DB, log *slog.Logger, limitMessages *int) MessageRepository {
	return MessageRepository{db: db, log: log, limitMessages: limitMessages}
}

// DiskMessage is the stored shape of a message. At is kept as nanoseconds
// since epoch so the value round-trips bit-identically and matches the
// padded timestamp in the key.
type DiskMessage struct {
	ID      uuid.UUID      `msgpack:"id"`
	Channel domain.Channel `msgpack:"channel"`
	Author  string         `msgpack:"author"`
	Content string         `msgpack:"content"`
	At      int64          `msgpack:"at"`
}

// StoreKey formats the BadgerDB key as "msg:{channel}:{timestamp_padded}:{uuid}" to:
//  1. Ensure chronological sorting using 19-digit zero padding (lexicographical order).
//  2. Prevent data loss by using UUID as a collision disconnector if two messages
//     arrive at the same nanosecond.
func StoreKey(message DiskMessage) string {
	return fmt.Sprintf("msg:%s:%019d:%s",
		message.Channel,
		message.At,
		message.ID,
	)
}

// KeyPrefix returns the scan prefix holding every message of one channel.
func KeyPrefix(channel domain.Channel) string {
	return fmt.Sprintf("msg:%s:", channel)
}

// StoreMessage persists a message in BadgerDB under its ordered key.
func (m MessageRepository) StoreMessage(message DiskMessage) error {
	bytes, err := msgpack.Marshal(message)
	if err != nil {
		return err
	}
	return m.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(StoreKey(message)), bytes)
	})
}

// GetMessages retrieves all messages of a channel using a prefix scan.
// Thanks to the padded timestamp in the key, messages come back naturally
// sorted by commit time, oldest first. When limitMessages is configured
// only the most recent messages are kept: the scan walks backwards from
// the newest key and the collected slice is reversed before decoding.
func (m MessageRepository) GetMessages(channel domain.Channel) ([]DiskMessage, error) {
	var byteMessages [][]byte
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := []byte(KeyPrefix(channel))
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		// Seek past the newest possible key of the channel, then walk back.
		seekKey := append(append([]byte{}, prefix...), []byte("9999999999999999999")...)
		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			if m.limitMessages != nil && len(byteMessages) == *m.limitMessages {
				m.log.Debug(fmt.Sprintf("Maximum of %d messages reached", *m.limitMessages))
				break
			}
			err := it.Item().Value(func(value []byte) error {
				byteMessages = append(byteMessages, append([]byte{}, value...))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	diskMessages := make([]DiskMessage, 0, len(byteMessages))
	// Reverse scan order back to ascending (created_at, id).
	for i := len(byteMessages) - 1; i >= 0; i-- {
		message, err := DecodeMessage(byteMessages[i])
		if err != nil {
			return nil, err
		}
		diskMessages = append(diskMessages, message)
	}
	return diskMessages, nil
}

// DecodeMessage unmarshals a stored value back into a DiskMessage.
// Malformed values are rejected with an error, never trusted by shape.
func DecodeMessage(value []byte) (DiskMessage, error) {
	var message DiskMessage
	if err := msgpack.Unmarshal(value, &message); err != nil {
		return DiskMessage{}, fmt.Errorf("corrupt stored message: %w", err)
	}
	return message, nil
}

func ToDiskMessage(message domain.Message) DiskMessage {
	return DiskMessage{
		ID:      message.ID,
		Channel: message.Channel,
		Author:  message.Sender,
		Content: message.Content,
		At:      message.CreatedAt.UnixNano(),
	}
}

func FromDiskMessage(message DiskMessage) domain.Message {
	return domain.Message{
		ID:        message.ID,
		Sender:    message.Author,
		Content:   message.Content,
		CreatedAt: time.Unix(0, message.At).UTC(),
		Channel:   message.Channel,
	}
}
