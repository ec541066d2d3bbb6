package relay

// State of one connection: Unbound -> Bound -> Closed.
type State int

const (
	StateUnbound State = iota
	StateBound
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateBound:
		return "bound"
	case StateClosed:
		return "closed"
	default:
		return "unbound"
	}
}

// Binding is the (username, room) pair a connection currently speaks for.
type Binding struct {
	Username string
	RoomID   string
}

// Session is the per-connection record kept by the Relay. It is not safe for
// concurrent use on its own; the Relay serialises access.
type Session struct {
	binding Binding
	state   State
}

// Bind records the pair, replacing any previous one.
func (s *Session) Bind(username, roomID string) {
	if s.state == StateClosed {
		return
	}
	s.binding = Binding{Username: username, RoomID: roomID}
	s.state = StateBound
}

// Unbind clears the binding and returns what it was. A second call reports
// nothing.
func (s *Session) Unbind() (Binding, bool) {
	if s.state != StateBound {
		return Binding{}, false
	}
	prev := s.binding
	s.binding = Binding{}
	s.state = StateUnbound
	return prev, true
}

func (s *Session) Binding() (Binding, bool) {
	return s.binding, s.state == StateBound
}

// Close unbinds and makes the session reject further binds.
func (s *Session) Close() (Binding, bool) {
	prev, ok := s.Unbind()
	s.state = StateClosed
	return prev, ok
}

func (s *Session) State() State { return s.state }
