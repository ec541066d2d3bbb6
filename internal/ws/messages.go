package ws

// JoinRequest is the body for "join" and "join-chat".
type JoinRequest struct {
	RoomID   string `json:"roomId"`
	ChatID   string `json:"chatId"` // legacy name of roomId
	Username string `json:"username"`
}

func (r JoinRequest) room() string { return firstNonEmpty(r.RoomID, r.ChatID) }

// MessageRequest is the body for "message".
type MessageRequest struct {
	RoomID   string `json:"roomId"`
	ChatID   string `json:"chatId"`
	Username string `json:"username"`
	Content  string `json:"content"`
	Message  string `json:"message"` // legacy name of content
}

func (r MessageRequest) room() string { return firstNonEmpty(r.RoomID, r.ChatID) }
func (r MessageRequest) text() string { return firstNonEmpty(r.Content, r.Message) }

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
