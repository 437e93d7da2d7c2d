package users

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// UserAdapter implements UserPort using the service container.
type UserAdapter struct {
	container mono.ServiceContainer
}

// Compile-time interface check
var _ UserPort = (*UserAdapter)(nil)

// NewUserAdapter creates a new UserAdapter.
func NewUserAdapter(container mono.ServiceContainer) *UserAdapter {
	return &UserAdapter{container: container}
}

// SetUser stores username for ip.
func (a *UserAdapter) SetUser(ctx context.Context, ip, username string) error {
	req := SetUserRequest{IP: ip, Username: username}
	var resp UserResponse

	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceSetUser,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return fmt.Errorf("set-user call failed: %w", err)
	}
	return nil
}

// GetUser returns the username stored for ip.
func (a *UserAdapter) GetUser(ctx context.Context, ip string) (string, bool, error) {
	req := GetUserRequest{IP: ip}
	var resp UserResponse

	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceGetUser,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return "", false, fmt.Errorf("get-user call failed: %w", err)
	}
	return resp.Username, resp.Found, nil
}
