package db_client

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
)

// Schema used by the history service, the stream drainer and the last-seen
// stamper. Every statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS messages (
		id              TEXT PRIMARY KEY,
		chat_id         TEXT NOT NULL,
		sender_username TEXT NOT NULL,
		content         TEXT NOT NULL,
		created_at      TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS messages_chat_created_idx ON messages (chat_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS users (
		username  TEXT PRIMARY KEY,
		last_seen TIMESTAMPTZ
	)`,
}

func DSN(host, port, user, pass, database string) string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(user, pass),
		Host:   net.JoinHostPort(host, port),
		Path:   "/" + database,
	}
	return u.String()
}

func Open(host, port, user, pass, database string) (*sql.DB, error) {
	db, err := sql.Open("pgx", DSN(host, port, user, pass, database))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(20)
	db.SetConnMaxIdleTime(time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres %s:%s: %w", host, port, err)
	}
	return db, nil
}

// EnsureSchema creates the chat tables when they are missing.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			zap.L().Error("pg_schema", zap.Error(err))
			return err
		}
	}
	return nil
}
