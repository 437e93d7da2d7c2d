package users

import "context"

// Service names registered in the users service container.
const (
	ServiceSetUser = "set-user"
	ServiceGetUser = "get-user"
)

// SetUserRequest is the request for storing a username.
type SetUserRequest struct {
	IP       string `json:"ip"`
	Username string `json:"username"`
}

// GetUserRequest is the request for looking up a username.
type GetUserRequest struct {
	IP string `json:"ip"`
}

// UserResponse is returned by both services. Found is false when the IP
// has no stored username.
type UserResponse struct {
	Username string `json:"username,omitempty"`
	Found    bool   `json:"found"`
}

// UserPort defines the interface for user directory operations.
type UserPort interface {
	SetUser(ctx context.Context, ip, username string) error
	GetUser(ctx context.Context, ip string) (string, bool, error)
}
