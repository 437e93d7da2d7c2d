package events

import (
	"time"

	"github.com/go-monolith/mono/pkg/helper"
)

// PairingMatchedEvent is emitted when two waiting users are paired into a room.
type PairingMatchedEvent struct {
	Room      string    `json:"room"`
	Usernames []string  `json:"usernames"`
	Timestamp time.Time `json:"timestamp"`
}

// PairingReleasedEvent is emitted when a user leaves the waiting pool.
type PairingReleasedEvent struct {
	Username  string    `json:"username"`
	Room      string    `json:"room,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Event definitions for the matchmaker domain.
var (
	PairingMatchedV1 = helper.EventDefinition[PairingMatchedEvent](
		"matchmaker",
		"PairingMatched",
		"v1",
	)

	PairingReleasedV1 = helper.EventDefinition[PairingReleasedEvent](
		"matchmaker",
		"PairingReleased",
		"v1",
	)
)
