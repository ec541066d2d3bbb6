package registry

import (
	"sort"
	"sync"
)

// Ensured tells whether EnsureRoom found the room or had to create it.
type Ensured int

const (
	Existing Ensured = iota
	Created
)

func (e Ensured) String() string {
	if e == Created {
		return "created"
	}
	return "existing"
}

// Room is a read-only snapshot of one room's membership.
type Room struct {
	ID      string   `json:"roomId"`
	Members []string `json:"members"`
}

// Registry keeps the set of present usernames per room.
// A room with no members is never kept.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]map[string]struct{} // roomID -> usernames
}

func New() *Registry {
	return &Registry{rooms: make(map[string]map[string]struct{})}
}

// FindRoom returns a snapshot of the room, if it exists.
func (r *Registry) FindRoom(roomID string) (Room, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set, ok := r.rooms[roomID]
	if !ok {
		return Room{}, false
	}
	return snapshot(roomID, set), true
}

// EnsureRoom returns the existing room or registers a new empty one.
// Joins go through AddMember, which ensures and fills the room under one
// lock, so an empty room is never visible between joins and leaves.
func (r *Registry) EnsureRoom(roomID string) (Room, Ensured) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, how := r.ensureLocked(roomID)
	return snapshot(roomID, set), how
}

// AddMember ensures the room exists and adds username to it. Adding a
// present member is a no-op.
func (r *Registry) AddMember(roomID, username string) Ensured {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, how := r.ensureLocked(roomID)
	set[username] = struct{}{}
	return how
}

// RemoveMember drops username from the room and deletes the room when it
// becomes empty. Missing room or member is not an error.
func (r *Registry) RemoveMember(roomID, username string) (removed, roomDeleted bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.rooms[roomID]
	if !ok {
		return false, false
	}
	if _, ok = set[username]; ok {
		delete(set, username)
		removed = true
	}
	if len(set) == 0 {
		delete(r.rooms, roomID)
		roomDeleted = true
	}
	return removed, roomDeleted
}

// HasMember reports whether username is present in roomID.
func (r *Registry) HasMember(roomID, username string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.rooms[roomID][username]
	return ok
}

// Rooms returns every room sorted by id.
func (r *Registry) Rooms() []Room {
	r.mu.RLock()
	out := make([]Room, 0, len(r.rooms))
	for id, set := range r.rooms {
		out = append(out, snapshot(id, set))
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Usernames returns the distinct usernames present in any room.
func (r *Registry) Usernames() []string {
	r.mu.RLock()
	seen := make(map[string]struct{})
	for _, set := range r.rooms {
		for u := range set {
			seen[u] = struct{}{}
		}
	}
	r.mu.RUnlock()

	out := make([]string, 0, len(seen))
	for u := range seen {
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

func (r *Registry) ensureLocked(roomID string) (map[string]struct{}, Ensured) {
	if set, ok := r.rooms[roomID]; ok {
		return set, Existing
	}
	set := make(map[string]struct{})
	r.rooms[roomID] = set
	return set, Created
}

func snapshot(roomID string, set map[string]struct{}) Room {
	members := make([]string, 0, len(set))
	for u := range set {
		members = append(members, u)
	}
	sort.Strings(members)
	return Room{ID: roomID, Members: members}
}
