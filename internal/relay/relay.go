package relay

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"chatrelay/internal/registry"

	"go.uber.org/zap"
)

var (
	ErrMalformed        = errors.New("malformed event")
	ErrUnknownConn      = errors.New("unknown connection")
	ErrUnbound          = errors.New("connection not joined")
	ErrRoomMismatch     = errors.New("room does not match joined room")
	ErrSenderMismatch   = errors.New("sender does not match joined user")
	ErrUnknownRoom      = errors.New("unknown room")
	ErrIdentityMismatch = errors.New("username does not match connection identity")
)

const (
	joinedSelfText = "You have joined this chat"
)

// Writer is the outbound half of a live transport connection.
type Writer interface {
	Write(frame []byte) error
	Close() error
}

type conn struct {
	id       string
	identity string // authenticated username, empty when unknown
	w        Writer
	session  Session

	// gate orders writes to w; Join holds it across binding and the ack so
	// no room frame reaches the joiner ahead of it.
	gate sync.Mutex
}

// Relay tracks live connections, binds them to rooms and fans messages out.
type Relay struct {
	reg *registry.Registry
	fwd *Forwarder
	now func() time.Time

	mu    sync.RWMutex
	conns map[string]*conn            // connID -> conn
	bound map[string]map[string]*conn // roomID -> connID -> conn
}

type Option func(*Relay)

// WithForwarder hands every fanned-out message to f.
func WithForwarder(f *Forwarder) Option {
	return func(r *Relay) { r.fwd = f }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(r *Relay) { r.now = now }
}

func New(reg *registry.Registry, opts ...Option) *Relay {
	r := &Relay{
		reg:   reg,
		now:   time.Now,
		conns: make(map[string]*conn),
		bound: make(map[string]map[string]*conn),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Connect registers a new unbound connection. identity may be empty.
func (r *Relay) Connect(connID, identity string, w Writer) {
	r.mu.Lock()
	r.conns[connID] = &conn{id: connID, identity: identity, w: w}
	r.mu.Unlock()
}

// Join binds the connection to roomID as username. A connection bound to a
// different room leaves it first. The joiner's ack is its first frame from
// the new room.
func (r *Relay) Join(connID, roomID, username string) error {
	if roomID == "" || username == "" {
		return ErrMalformed
	}

	r.mu.RLock()
	c, ok := r.conns[connID]
	r.mu.RUnlock()
	if !ok {
		return ErrUnknownConn
	}

	// lock order: c.gate, then r.mu
	c.gate.Lock()
	r.mu.Lock()
	if r.conns[connID] != c {
		r.mu.Unlock()
		c.gate.Unlock()
		return ErrUnknownConn
	}
	if c.identity != "" && c.identity != username {
		r.mu.Unlock()
		c.gate.Unlock()
		return ErrIdentityMismatch
	}

	var left *departure
	if b, ok := c.session.Binding(); ok && b != (Binding{Username: username, RoomID: roomID}) {
		left = r.releaseLocked(c)
	}

	c.session.Bind(username, roomID)
	room := r.bound[roomID]
	if room == nil {
		room = make(map[string]*conn)
		r.bound[roomID] = room
	}
	room[c.id] = c
	how := r.reg.AddMember(roomID, username)
	others := r.recipientsLocked(roomID, c.id)
	r.mu.Unlock()

	ackErr := r.ack(c)
	c.gate.Unlock()

	if left != nil {
		r.announceDeparture(left)
	}

	zap.L().Info("relay.join",
		zap.String("conn", connID),
		zap.String("room", roomID),
		zap.String("user", username),
		zap.Stringer("room_state", how),
	)

	if ackErr != nil {
		zap.L().Debug("relay.write_failed", zap.String("conn", c.id), zap.Error(ackErr))
		_ = c.w.Close()
		r.Disconnect(c.id)
		return nil
	}
	r.notify(others, fmt.Sprintf("%s joined the chat", username))
	return nil
}

// ack writes the private join confirmation. c.gate must be held.
func (r *Relay) ack(c *conn) error {
	frame, err := encodeFrame(EventLog, Notice{Text: joinedSelfText})
	if err != nil {
		return err
	}
	return c.w.Write(frame)
}

// Message fans content out to every connection bound to roomID, the sender's
// own connection included. username, when set, must match the binding.
func (r *Relay) Message(connID, roomID, username, content string) error {
	if roomID == "" || content == "" {
		return ErrMalformed
	}

	r.mu.RLock()
	c, ok := r.conns[connID]
	if !ok {
		r.mu.RUnlock()
		return ErrUnknownConn
	}
	b, ok := c.session.Binding()
	switch {
	case !ok:
		r.mu.RUnlock()
		return ErrUnbound
	case b.RoomID != roomID:
		r.mu.RUnlock()
		return ErrRoomMismatch
	case username != "" && username != b.Username:
		r.mu.RUnlock()
		return ErrSenderMismatch
	}
	if _, ok := r.reg.FindRoom(roomID); !ok {
		r.mu.RUnlock()
		return ErrUnknownRoom
	}
	recipients := r.recipientsLocked(roomID, "")
	r.mu.RUnlock()

	msg := Message{
		RoomID:    roomID,
		Username:  b.Username,
		Content:   content,
		CreatedAt: r.now().UTC(),
	}
	frame, err := encodeFrame(EventMessage, msg)
	if err != nil {
		return err
	}
	r.fanout(recipients, frame)

	if r.fwd != nil {
		r.fwd.Enqueue(msg)
	}
	return nil
}

// Disconnect releases whatever the connection held. Safe to call more than
// once and for unknown ids.
func (r *Relay) Disconnect(connID string) {
	r.mu.Lock()
	c, ok := r.conns[connID]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.conns, connID)
	left := r.releaseLocked(c)
	c.session.Close()
	r.mu.Unlock()

	if left != nil {
		r.announceDeparture(left)
	}
}

// State returns the connection's lifecycle state; unknown ids are closed.
func (r *Relay) State(connID string) State {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.conns[connID]
	if !ok {
		return StateClosed
	}
	return c.session.State()
}

// Binding returns the connection's current binding.
func (r *Relay) Binding(connID string) (Binding, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.conns[connID]
	if !ok {
		return Binding{}, false
	}
	return c.session.Binding()
}

type Stats struct {
	Conns int `json:"conns"`
	Rooms int `json:"rooms"`
}

func (r *Relay) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Stats{Conns: len(r.conns), Rooms: r.reg.Len()}
}

type departure struct {
	binding    Binding
	released   bool // username no longer present in the room
	recipients []*conn
}

// releaseLocked unbinds c and drops the username from the registry when no
// other connection of the same user remains in the room. r.mu must be held.
func (r *Relay) releaseLocked(c *conn) *departure {
	b, ok := c.session.Unbind()
	if !ok {
		return nil
	}

	if room := r.bound[b.RoomID]; room != nil {
		delete(room, c.id)
		if len(room) == 0 {
			delete(r.bound, b.RoomID)
		}
	}

	d := &departure{binding: b}
	if !r.userBoundLocked(b.RoomID, b.Username) {
		d.released, _ = r.reg.RemoveMember(b.RoomID, b.Username)
	}
	d.recipients = r.recipientsLocked(b.RoomID, "")
	return d
}

func (r *Relay) userBoundLocked(roomID, username string) bool {
	for _, c := range r.bound[roomID] {
		if b, ok := c.session.Binding(); ok && b.Username == username {
			return true
		}
	}
	return false
}

func (r *Relay) recipientsLocked(roomID, exceptConn string) []*conn {
	room := r.bound[roomID]
	out := make([]*conn, 0, len(room))
	for id, c := range room {
		if id != exceptConn {
			out = append(out, c)
		}
	}
	return out
}

func (r *Relay) announceDeparture(d *departure) {
	if !d.released {
		return
	}
	zap.L().Info("relay.leave",
		zap.String("room", d.binding.RoomID),
		zap.String("user", d.binding.Username),
	)
	r.notify(d.recipients, fmt.Sprintf("%s left the room", d.binding.Username))
}

func (r *Relay) notify(to []*conn, text string) {
	if len(to) == 0 {
		return
	}
	frame, err := encodeFrame(EventLog, Notice{Text: text})
	if err != nil {
		zap.L().Error("relay.encode_notice", zap.Error(err))
		return
	}
	r.fanout(to, frame)
}

// fanout does the I/O outside any lock. A failed write closes the connection
// and runs the disconnect path for it.
func (r *Relay) fanout(to []*conn, frame []byte) {
	var failed []*conn
	for _, c := range to {
		c.gate.Lock()
		err := c.w.Write(frame)
		c.gate.Unlock()
		if err != nil {
			zap.L().Debug("relay.write_failed", zap.String("conn", c.id), zap.Error(err))
			failed = append(failed, c)
		}
	}
	for _, c := range failed {
		_ = c.w.Close()
		r.Disconnect(c.id)
	}
}
