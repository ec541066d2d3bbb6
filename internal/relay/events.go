package relay

import (
	"encoding/json"
	"time"
)

// Event names on the wire.
const (
	EventJoin     = "join"
	EventJoinChat = "join-chat" // legacy alias of join
	EventMessage  = "message"
	EventLog      = "log"
)

// Envelope wraps every WS frame.
type Envelope struct {
	Event string          `json:"event"`          // e.g. "message"
	Body  json.RawMessage `json:"body,omitempty"` // arbitrary JSON object
}

// Message is one chat line as fanned out to the room.
type Message struct {
	RoomID    string    `json:"roomId"`
	Username  string    `json:"username"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// MarshalJSON also emits senderUsername and the legacy chatId/message keys
// older clients read.
func (m Message) MarshalJSON() ([]byte, error) {
	type plain Message
	return json.Marshal(struct {
		plain
		ChatID         string `json:"chatId"`
		Text           string `json:"message"`
		SenderUsername string `json:"senderUsername"`
	}{plain(m), m.RoomID, m.Content, m.Username})
}

// Notice is the body of a "log" frame.
type Notice struct {
	Text string `json:"text"`
}

func encodeFrame(event string, body any) ([]byte, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Body: raw})
}
