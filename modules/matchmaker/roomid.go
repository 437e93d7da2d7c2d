package matchmaker

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// RoomIDDigits is the length of generated room identifiers.
const RoomIDDigits = 6

var roomIDSpace = big.NewInt(1_000_000)

// GenerateRoomID returns a random 6-digit decimal room identifier.
// Identifiers are not checked for uniqueness.
func GenerateRoomID() string {
	n, err := rand.Int(rand.Reader, roomIDSpace)
	if err != nil {
		// crypto/rand does not fail on supported platforms
		panic(fmt.Sprintf("matchmaker: read random room id: %v", err))
	}
	return fmt.Sprintf("%0*d", RoomIDDigits, n.Int64())
}

// IsValidRoomID reports whether id has the shape produced by GenerateRoomID.
func IsValidRoomID(id string) bool {
	if len(id) != RoomIDDigits {
		return false
	}
	for _, c := range id {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
