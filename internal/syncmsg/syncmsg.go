package syncmsg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"chatrelay/internal/redis/messagestream"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	batchSize  = 100
	blockFor   = 2000 * time.Millisecond
	retryDelay = time.Second
)

// Run tails the message stream and persists every relayed message.
// Entries are removed from the stream once committed; a failed batch is
// read again, and the per-message id keeps the insert idempotent.
func Run(ctx context.Context, rdc *redis.Client, db *sql.DB) {
	go func() {
		lastID := "0-0"
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			next, err := drainOnce(ctx, rdc, db, lastID)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				zap.L().Warn("syncmsg.drain", zap.Error(err))
				time.Sleep(retryDelay)
				continue
			}
			lastID = next
		}
	}()
}

// drainOnce blocks up to blockFor for new entries and returns the cursor to
// continue from.
func drainOnce(ctx context.Context, rdc *redis.Client, db *sql.DB, lastID string) (string, error) {
	res, err := rdc.XRead(ctx, &redis.XReadArgs{
		Streams: []string{messagestream.Stream, lastID},
		Count:   batchSize,
		Block:   blockFor,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return lastID, nil
	}
	if err != nil {
		return lastID, fmt.Errorf("xread: %w", err)
	}
	if len(res) == 0 || len(res[0].Messages) == 0 {
		return lastID, nil
	}

	entries := res[0].Messages
	if err := persist(ctx, db, entries); err != nil {
		return lastID, fmt.Errorf("persist: %w", err)
	}

	ids := make([]string, len(entries))
	for i, m := range entries {
		ids[i] = m.ID
	}
	if err := rdc.XDel(ctx, messagestream.Stream, ids...).Err(); err != nil {
		// rows are committed; a later re-read is absorbed by ON CONFLICT
		zap.L().Warn("syncmsg.xdel", zap.Error(err))
	}
	return entries[len(entries)-1].ID, nil
}

type record struct {
	id        string
	chatID    string
	sender    string
	content   string
	createdAt time.Time
}

func decode(m redis.XMessage) (record, error) {
	get := func(k string) string {
		s, _ := m.Values[k].(string)
		return s
	}
	rec := record{
		id:      get(messagestream.FieldID),
		chatID:  get(messagestream.FieldChatID),
		sender:  get(messagestream.FieldSender),
		content: get(messagestream.FieldContent),
	}
	if rec.id == "" || rec.chatID == "" || rec.sender == "" {
		return record{}, errors.New("missing field")
	}
	ms, err := strconv.ParseInt(get(messagestream.FieldAt), 10, 64)
	if err != nil {
		return record{}, fmt.Errorf("bad timestamp: %w", err)
	}
	rec.createdAt = time.UnixMilli(ms).UTC()
	return rec, nil
}

func persist(ctx context.Context, db *sql.DB, msgs []redis.XMessage) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	const ins = `INSERT INTO messages (id, chat_id, sender_username, content, created_at)
	             VALUES ($1, $2, $3, $4, $5)
	             ON CONFLICT (id) DO NOTHING`
	for _, m := range msgs {
		rec, err := decode(m)
		if err != nil {
			zap.L().Warn("syncmsg.skip_entry", zap.String("entry", m.ID), zap.Error(err))
			continue
		}
		if _, err := tx.ExecContext(ctx, ins,
			rec.id, rec.chatID, rec.sender, rec.content, rec.createdAt); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}
