package matchmaker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// MatchmakerAdapter implements MatchmakerPort using the service container.
type MatchmakerAdapter struct {
	container mono.ServiceContainer
}

// Compile-time interface check
var _ MatchmakerPort = (*MatchmakerAdapter)(nil)

// NewMatchmakerAdapter creates a new MatchmakerAdapter.
func NewMatchmakerAdapter(container mono.ServiceContainer) *MatchmakerAdapter {
	return &MatchmakerAdapter{container: container}
}

// RequestPairing asks the matchmaker to pair username.
func (a *MatchmakerAdapter) RequestPairing(ctx context.Context, username string) (PairingResult, error) {
	return a.call(ctx, ServiceRequestPairing, username)
}

// Release removes username from the waiting pool.
func (a *MatchmakerAdapter) Release(ctx context.Context, username string) error {
	_, err := a.call(ctx, ServiceReleasePairing, username)
	return err
}

// Status returns the pairing state of username.
func (a *MatchmakerAdapter) Status(ctx context.Context, username string) (PairingResult, error) {
	return a.call(ctx, ServicePairingStatus, username)
}

func (a *MatchmakerAdapter) call(ctx context.Context, service, username string) (PairingResult, error) {
	req := PairingRequest{Username: username}
	var resp PairingResponse

	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		service,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return PairingResult{}, fmt.Errorf("%s call failed: %w", service, err)
	}
	return resp.Result, nil
}
