package matchmaker

import "context"

// Service names registered in the matchmaker's service container.
const (
	ServiceRequestPairing = "request-pairing"
	ServiceReleasePairing = "release-pairing"
	ServicePairingStatus  = "pairing-status"
)

// PairingRequest is the request for all matchmaker services.
type PairingRequest struct {
	Username string `json:"username"`
}

// PairingResponse wraps a PairingResult.
type PairingResponse struct {
	Result PairingResult `json:"result"`
}

// MatchmakerPort defines the interface for pairing operations.
type MatchmakerPort interface {
	RequestPairing(ctx context.Context, username string) (PairingResult, error)
	Release(ctx context.Context, username string) error
	Status(ctx context.Context, username string) (PairingResult, error)
}
