package registry

import (
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureRoom_CreatedThenExisting(t *testing.T) {
	r := New()

	room, how := r.EnsureRoom("r1")
	assert.Equal(t, Created, how)
	assert.Equal(t, "r1", room.ID)
	assert.Empty(t, room.Members)

	_, how = r.EnsureRoom("r1")
	assert.Equal(t, Existing, how)
	assert.Equal(t, 1, r.Len())
}

func TestFindRoom_NoSideEffects(t *testing.T) {
	r := New()

	_, ok := r.FindRoom("missing")
	assert.False(t, ok)
	assert.Equal(t, 0, r.Len())

	r.AddMember("r1", "alice")
	room, ok := r.FindRoom("r1")
	require.True(t, ok)
	assert.Equal(t, []string{"alice"}, room.Members)

	// mutating the snapshot must not leak back
	room.Members[0] = "mallory"
	assert.True(t, r.HasMember("r1", "alice"))
}

func TestAddMember_Idempotent(t *testing.T) {
	r := New()

	assert.Equal(t, Created, r.AddMember("r1", "alice"))
	assert.Equal(t, Existing, r.AddMember("r1", "alice"))
	assert.Equal(t, Existing, r.AddMember("r1", "bob"))

	room, ok := r.FindRoom("r1")
	require.True(t, ok)
	assert.Equal(t, []string{"alice", "bob"}, room.Members)
}

func TestRemoveMember_DeletesEmptyRoom(t *testing.T) {
	r := New()
	r.AddMember("r1", "alice")
	r.AddMember("r1", "bob")

	removed, deleted := r.RemoveMember("r1", "bob")
	assert.True(t, removed)
	assert.False(t, deleted)

	removed, deleted = r.RemoveMember("r1", "alice")
	assert.True(t, removed)
	assert.True(t, deleted)

	_, ok := r.FindRoom("r1")
	assert.False(t, ok)
}

func TestRemoveMember_MissingStateIsNoop(t *testing.T) {
	r := New()

	removed, deleted := r.RemoveMember("nope", "alice")
	assert.False(t, removed)
	assert.False(t, deleted)

	r.AddMember("r1", "alice")
	removed, deleted = r.RemoveMember("r1", "bob")
	assert.False(t, removed)
	assert.False(t, deleted)
	assert.True(t, r.HasMember("r1", "alice"))
}

func TestRemoveMember_DropsRoomLeftEmptyByEnsure(t *testing.T) {
	r := New()
	r.EnsureRoom("r1")

	_, deleted := r.RemoveMember("r1", "ghost")
	assert.True(t, deleted)
	assert.Equal(t, 0, r.Len())
}

func TestRoomsAndUsernames(t *testing.T) {
	r := New()
	r.AddMember("b", "carol")
	r.AddMember("a", "alice")
	r.AddMember("a", "carol")

	rooms := r.Rooms()
	require.Len(t, rooms, 2)
	assert.Equal(t, "a", rooms[0].ID)
	assert.Equal(t, "b", rooms[1].ID)

	assert.Equal(t, []string{"alice", "carol"}, r.Usernames())
}

func TestRandomJoinsAndLeaves_NeverEmptyNeverDuplicate(t *testing.T) {
	r := New()
	rng := rand.New(rand.NewSource(42))
	rooms := []string{"r1", "r2", "r3"}
	users := []string{"a", "b", "c", "d"}

	for i := 0; i < 2000; i++ {
		room := rooms[rng.Intn(len(rooms))]
		user := users[rng.Intn(len(users))]
		if rng.Intn(2) == 0 {
			r.AddMember(room, user)
		} else {
			r.RemoveMember(room, user)
		}

		for _, snap := range r.Rooms() {
			require.NotEmpty(t, snap.Members, "room %s left empty", snap.ID)
			seen := map[string]bool{}
			for _, m := range snap.Members {
				require.False(t, seen[m], "duplicate member %s in %s", m, snap.ID)
				seen[m] = true
			}
		}
	}
}

func TestConcurrentJoinLeave(t *testing.T) {
	r := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			user := fmt.Sprintf("u%d", i)
			for j := 0; j < 100; j++ {
				r.AddMember("shared", user)
				r.RemoveMember("shared", user)
			}
		}(i)
	}
	wg.Wait()

	_, ok := r.FindRoom("shared")
	assert.False(t, ok)
}
