package syncmsg

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"chatrelay/internal/redis/messagestream"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var insertQ = regexp.QuoteMeta("INSERT INTO messages (id, chat_id, sender_username, content, created_at)")

func entry(id, msgID, chat, sender, content, at string) redis.XMessage {
	return redis.XMessage{
		ID: id,
		Values: map[string]interface{}{
			"id":      msgID,
			"cid":     chat,
			"sender":  sender,
			"content": content,
			"at":      at,
		},
	}
}

func readArgs(lastID string) *redis.XReadArgs {
	return &redis.XReadArgs{
		Streams: []string{messagestream.Stream, lastID},
		Count:   batchSize,
		Block:   blockFor,
	}
}

func TestDrainOnce_PersistsAndTrims(t *testing.T) {
	db, sm, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	rdc, rm := redismock.NewClientMock()

	rm.ExpectXRead(readArgs("0-0")).SetVal([]redis.XStream{{
		Stream: messagestream.Stream,
		Messages: []redis.XMessage{
			entry("1-0", "m1", "r1", "alice", "hi", "1753632305000"),
			entry("2-0", "m2", "r1", "bob", "yo", "1753632306000"),
		},
	}})
	sm.ExpectBegin()
	sm.ExpectExec(insertQ).
		WithArgs("m1", "r1", "alice", "hi", time.UnixMilli(1753632305000).UTC()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	sm.ExpectExec(insertQ).
		WithArgs("m2", "r1", "bob", "yo", time.UnixMilli(1753632306000).UTC()).
		WillReturnResult(sqlmock.NewResult(0, 0)) // already stored
	sm.ExpectCommit()
	rm.ExpectXDel(messagestream.Stream, "1-0", "2-0").SetVal(2)

	next, err := drainOnce(context.Background(), rdc, db, "0-0")
	require.NoError(t, err)
	assert.Equal(t, "2-0", next)
	assert.NoError(t, sm.ExpectationsWereMet())
	assert.NoError(t, rm.ExpectationsWereMet())
}

func TestDrainOnce_PersistFailureKeepsCursor(t *testing.T) {
	db, sm, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	rdc, rm := redismock.NewClientMock()

	rm.ExpectXRead(readArgs("5-0")).SetVal([]redis.XStream{{
		Stream:   messagestream.Stream,
		Messages: []redis.XMessage{entry("6-0", "m6", "r1", "alice", "hi", "1")},
	}})
	sm.ExpectBegin()
	sm.ExpectExec(insertQ).WillReturnError(errors.New("conn reset"))
	sm.ExpectRollback()

	next, err := drainOnce(context.Background(), rdc, db, "5-0")
	require.Error(t, err)
	assert.Equal(t, "5-0", next)
	assert.NoError(t, sm.ExpectationsWereMet())
	assert.NoError(t, rm.ExpectationsWereMet())
}

func TestDrainOnce_NothingNew(t *testing.T) {
	db, sm, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	rdc, rm := redismock.NewClientMock()

	rm.ExpectXRead(readArgs("3-0")).RedisNil()

	next, err := drainOnce(context.Background(), rdc, db, "3-0")
	require.NoError(t, err)
	assert.Equal(t, "3-0", next)
	assert.NoError(t, sm.ExpectationsWereMet())
}

func TestPersist_SkipsUndecodableEntries(t *testing.T) {
	db, sm, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	sm.ExpectBegin()
	sm.ExpectExec(insertQ).
		WithArgs("m1", "r1", "alice", "ok", time.UnixMilli(10).UTC()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	sm.ExpectCommit()

	err = persist(context.Background(), db, []redis.XMessage{
		entry("1-0", "", "r1", "alice", "no id", "10"),
		entry("2-0", "m0", "r1", "alice", "bad time", "yesterday"),
		entry("3-0", "m1", "r1", "alice", "ok", "10"),
	})
	require.NoError(t, err)
	assert.NoError(t, sm.ExpectationsWereMet())
}
