package messagestream

import (
	"context"
	"strconv"

	"chatrelay/internal/relay"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Stream is drained into Postgres by syncmsg.
const Stream = "chat_messages_stream"

// Entry field names.
const (
	FieldID      = "id" // idempotency key, one per relayed message
	FieldChatID  = "cid"
	FieldSender  = "sender"
	FieldContent = "content"
	FieldAt      = "at" // unix ms
)

// Publisher appends relayed messages to the Redis stream. It satisfies
// relay.DeliverySink.
type Publisher struct {
	rdc   *redis.Client
	newID func() string
}

func NewPublisher(rdc *redis.Client) *Publisher {
	return &Publisher{rdc: rdc, newID: uuid.NewString}
}

func (p *Publisher) Deliver(ctx context.Context, msg relay.Message) error {
	return p.rdc.XAdd(ctx, &redis.XAddArgs{
		Stream: Stream,
		Values: []interface{}{
			FieldID, p.newID(),
			FieldChatID, msg.RoomID,
			FieldSender, msg.Username,
			FieldContent, msg.Content,
			FieldAt, strconv.FormatInt(msg.CreatedAt.UnixMilli(), 10),
		},
	}).Err()
}
