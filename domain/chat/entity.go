package chat

import (
	"errors"
	"unicode/utf8"
)

// Field limits for relayed messages, counted in runes.
const (
	MaxRoomLength     = 30
	MaxUsernameLength = 30
)

// Validation errors
var (
	ErrRoomTooLong     = errors.New("room exceeds maximum length")
	ErrUsernameTooLong = errors.New("username exceeds maximum length")
	ErrUsernameEmpty   = errors.New("username cannot be empty")
)

// Message is a chat line relayed to every connected stream.
// The JSON shape {room, username, message} is the wire contract with clients.
type Message struct {
	Room     string `json:"room" form:"room"`
	Username string `json:"username" form:"username"`
	Text     string `json:"message" form:"message"`
}

// Validate checks the length limits for room and username.
// Text is unconstrained.
func (m Message) Validate() error {
	if utf8.RuneCountInString(m.Room) > MaxRoomLength {
		return ErrRoomTooLong
	}
	if utf8.RuneCountInString(m.Username) > MaxUsernameLength {
		return ErrUsernameTooLong
	}
	return nil
}

// ValidateUsername validates a username used for pairing or the user directory.
func ValidateUsername(username string) error {
	if username == "" {
		return ErrUsernameEmpty
	}
	if utf8.RuneCountInString(username) > MaxUsernameLength {
		return ErrUsernameTooLong
	}
	return nil
}
