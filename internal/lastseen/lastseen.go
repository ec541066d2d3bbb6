package lastseen

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"
)

// Presence lists the usernames currently present in any room.
type Presence interface {
	Usernames() []string
}

// Every interval, stamp users.last_seen for everyone present in a room.
func Run(ctx context.Context, p Presence, db *sql.DB, interval time.Duration) {
	tk := time.NewTicker(interval)
	go func() {
		defer tk.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-tk.C:
				syncOnce(ctx, p, db, time.Now().UTC())
			}
		}
	}()
}

func syncOnce(ctx context.Context, p Presence, db *sql.DB, now time.Time) {
	users := p.Usernames()
	if len(users) == 0 {
		return
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		zap.L().Error("lastseen.tx_begin", zap.Error(err))
		return
	}
	defer tx.Rollback()

	// first sighting creates the row
	const upsert = `INSERT INTO users (username, last_seen) VALUES ($1, $2)
	                ON CONFLICT (username) DO UPDATE SET last_seen = EXCLUDED.last_seen`
	for _, u := range users {
		if _, err := tx.ExecContext(ctx, upsert, u, now); err != nil {
			zap.L().Error("lastseen.upsert", zap.String("user", u), zap.Error(err))
			return
		}
	}

	if err := tx.Commit(); err != nil {
		zap.L().Debug("lastseen_error", zap.Error(err))
	}
}
