package history

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"chatrelay/internal/relay"

	"github.com/google/uuid"
)

type MessageDTO struct {
	ID        string    `json:"id"`
	ChatID    string    `json:"chat_id"`
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at" example:"2025-07-27T16:05:05Z"`
}

const (
	DefaultLimit = 50
	MaxLimit     = 100
)

var ErrMissingChat = errors.New("chat id required")

type IHistoryService interface {
	List(ctx context.Context, chatID string, before time.Time, limit int) ([]MessageDTO, error)
	Deliver(ctx context.Context, msg relay.Message) error
}

type historyService struct {
	db    *sql.DB
	now   func() time.Time
	newID func() string
}

var _ relay.DeliverySink = (*historyService)(nil)

func NewHistoryService(db *sql.DB) IHistoryService {
	return &historyService{
		db:    db,
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// List returns up to limit messages older than before, newest first.
func (svc *historyService) List(ctx context.Context, chatID string, before time.Time, limit int) ([]MessageDTO, error) {
	if chatID == "" {
		return nil, ErrMissingChat
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if before.IsZero() {
		before = svc.now()
	}

	const q = `SELECT id, chat_id, sender_username, content, created_at
	             FROM messages
	            WHERE chat_id = $1 AND created_at < $2
	         ORDER BY created_at DESC
	            LIMIT $3`
	rows, err := svc.db.QueryContext(ctx, q, chatID, before.UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := make([]MessageDTO, 0, limit)
	for rows.Next() {
		var m MessageDTO
		if err := rows.Scan(&m.ID, &m.ChatID, &m.Sender, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, m)
	}
	return list, rows.Err()
}

// Deliver writes one relayed message straight to Postgres.
func (svc *historyService) Deliver(ctx context.Context, msg relay.Message) error {
	const ins = `INSERT INTO messages (id, chat_id, sender_username, content, created_at)
	             VALUES ($1, $2, $3, $4, $5)
	             ON CONFLICT (id) DO NOTHING`
	_, err := svc.db.ExecContext(ctx, ins,
		svc.newID(), msg.RoomID, msg.Username, msg.Content, msg.CreatedAt.UTC())
	return err
}
