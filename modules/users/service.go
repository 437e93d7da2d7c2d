package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/anon-chat-relay/domain/chat"
	"github.com/go-monolith/mono"
)

// setUser handles the set-user service request.
func (m *UsersModule) setUser(_ context.Context, req SetUserRequest, _ *mono.Msg) (UserResponse, error) {
	if req.IP == "" {
		return UserResponse{}, fmt.Errorf("ip is required")
	}
	if err := chat.ValidateUsername(req.Username); err != nil {
		return UserResponse{}, err
	}

	if err := m.repo.Upsert(&UserRecord{IP: req.IP, Username: req.Username}); err != nil {
		return UserResponse{}, err
	}

	m.logger.Debug("Stored username", "ip", req.IP, "username", req.Username)
	return UserResponse{Username: req.Username, Found: true}, nil
}

// getUser handles the get-user service request.
func (m *UsersModule) getUser(_ context.Context, req GetUserRequest, _ *mono.Msg) (UserResponse, error) {
	if req.IP == "" {
		return UserResponse{}, fmt.Errorf("ip is required")
	}

	record, err := m.repo.FindByIP(req.IP)
	if errors.Is(err, ErrNotFound) {
		return UserResponse{Found: false}, nil
	}
	if err != nil {
		return UserResponse{}, err
	}
	return UserResponse{Username: record.Username, Found: true}, nil
}
