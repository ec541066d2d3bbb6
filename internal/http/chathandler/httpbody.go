package chathandler

import "time"

type ErrorResponse struct {
	Error string `json:"error"`
} // @name ErrorResponse

type ListMessagesQuery struct {
	Before time.Time `form:"before" time_format:"2006-01-02T15:04:05Z07:00" time_utc:"1"`
	Limit  int       `form:"limit,default=50" binding:"gte=0,lte=100"`
} // @name ListMessagesQuery

type RoomResponse struct {
	RoomID      string   `json:"roomId"      example:"r1"`
	Members     []string `json:"members"`
	MemberCount int      `json:"memberCount" example:"2"`
} // @name RoomResponse
