package chatrooms

import (
	"encoding/json"
	"fmt"

	"github.com/five82/lumen/internal/state"
)

// envelope wraps every response of the chatrooms API.
type envelope struct {
	Code int             `json:"code"`
	Data json.RawMessage `json:"data"`
	Type string          `json:"type"`
}

// outcome is the part of data shared by every endpoint.
type outcome struct {
	Success *bool  `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (o outcome) reason(fallback string) string {
	switch {
	case o.Error != "":
		return o.Error
	case o.Message != "":
		return o.Message
	default:
		return fallback
	}
}

// Info mirrors the payload returned by /info.
type Info struct {
	Version string `json:"version"`
	Name    string `json:"name"`
}

// Room mirrors /get_room and /create_room.
type Room struct {
	Key  string `json:"room"`
	Name string `json:"name"`
}

// Credentials identify a user inside a room.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// UserStatus mirrors /create_user.
type UserStatus struct {
	Approved bool `json:"approved"`
}

type sendRequest struct {
	Credentials
	Text string `json:"text"`
}

type sendResponse struct {
	Message state.Message `json:"message"`
}

type fetchRequest struct {
	Credentials
	AfterMessage int64 `json:"after_message"`
}

type fetchResponse struct {
	Messages []state.Message `json:"messages"`
}

// ProtocolError is returned when the server answers with success false.
type ProtocolError struct {
	Endpoint string
	Code     int
	Message  string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s: %s (code %d)", e.Endpoint, e.Message, e.Code)
}
