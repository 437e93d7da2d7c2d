package matchmaker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/example/anon-chat-relay/events"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
)

// MatchmakerModule exposes the waiting pool as request-reply services
// and emits pairing events.
type MatchmakerModule struct {
	pool     *Pool
	eventBus mono.EventBus
	logger   types.Logger
}

// Compile-time interface checks
var (
	_ mono.Module                = (*MatchmakerModule)(nil)
	_ mono.ServiceProviderModule = (*MatchmakerModule)(nil)
	_ mono.EventEmitterModule    = (*MatchmakerModule)(nil)
	_ mono.HealthCheckableModule = (*MatchmakerModule)(nil)
)

// NewModule creates a matchmaker module with an empty pool.
func NewModule(logger types.Logger) *MatchmakerModule {
	return &MatchmakerModule{
		pool:   NewPool(nil),
		logger: logger,
	}
}

// Name returns the module name.
func (m *MatchmakerModule) Name() string {
	return "matchmaker"
}

// SetEventBus receives the EventBus from the framework.
func (m *MatchmakerModule) SetEventBus(bus mono.EventBus) {
	m.eventBus = bus
}

// EmitEvents declares the events this module can emit.
func (m *MatchmakerModule) EmitEvents() []mono.BaseEventDefinition {
	return []mono.BaseEventDefinition{
		events.PairingMatchedV1.ToBase(),
		events.PairingReleasedV1.ToBase(),
	}
}

// RegisterServices registers request-reply services in the service container.
func (m *MatchmakerModule) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceRequestPairing, json.Unmarshal, json.Marshal, m.requestPairing,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceRequestPairing, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceReleasePairing, json.Unmarshal, json.Marshal, m.releasePairing,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceReleasePairing, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServicePairingStatus, json.Unmarshal, json.Marshal, m.pairingStatus,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServicePairingStatus, err)
	}

	m.logger.Info("Registered services",
		"services", []string{ServiceRequestPairing, ServiceReleasePairing, ServicePairingStatus})
	return nil
}

// Start initializes the module.
func (m *MatchmakerModule) Start(_ context.Context) error {
	if m.eventBus == nil {
		m.logger.Warn("EventBus not set, pairing events will not be published")
	}
	m.logger.Info("Matchmaker module started")
	return nil
}

// Stop shuts down the module.
func (m *MatchmakerModule) Stop(_ context.Context) error {
	s := m.pool.Snapshot()
	m.logger.Info("Matchmaker module stopped", "waiting", s.Waiting, "matched", s.Matched)
	return nil
}

// Health returns the health status.
func (m *MatchmakerModule) Health(_ context.Context) mono.HealthStatus {
	s := m.pool.Snapshot()
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"waiting": s.Waiting,
			"matched": s.Matched,
		},
	}
}

// Pool returns the waiting pool.
func (m *MatchmakerModule) Pool() *Pool {
	return m.pool
}

// requestPairing handles the request-pairing service.
func (m *MatchmakerModule) requestPairing(_ context.Context, req PairingRequest, _ *mono.Msg) (PairingResponse, error) {
	result, created := m.pool.Pair(req.Username)

	if created {
		m.logger.Info("Users paired", "room", result.Room, "username", req.Username, "partner", result.Partner)
		m.publishMatched(events.PairingMatchedEvent{
			Room:      result.Room,
			Usernames: []string{result.Partner, req.Username},
			Timestamp: time.Now(),
		})
	}
	return PairingResponse{Result: result}, nil
}

// releasePairing handles the release-pairing service.
func (m *MatchmakerModule) releasePairing(_ context.Context, req PairingRequest, _ *mono.Msg) (PairingResponse, error) {
	before := m.pool.Release(req.Username)
	if before.State != StateUnseen {
		m.publishReleased(events.PairingReleasedEvent{
			Username:  req.Username,
			Room:      before.Room,
			Timestamp: time.Now(),
		})
	}
	return PairingResponse{Result: PairingResult{State: StateUnseen}}, nil
}

// pairingStatus handles the pairing-status service.
func (m *MatchmakerModule) pairingStatus(_ context.Context, req PairingRequest, _ *mono.Msg) (PairingResponse, error) {
	return PairingResponse{Result: m.pool.Status(req.Username)}, nil
}

func (m *MatchmakerModule) publishMatched(event events.PairingMatchedEvent) {
	if m.eventBus == nil {
		return
	}
	if err := events.PairingMatchedV1.Publish(m.eventBus, event, nil); err != nil {
		m.logger.Warn("Failed to publish PairingMatched event", "room", event.Room, "error", err)
	}
}

func (m *MatchmakerModule) publishReleased(event events.PairingReleasedEvent) {
	if m.eventBus == nil {
		return
	}
	if err := events.PairingReleasedV1.Publish(m.eventBus, event, nil); err != nil {
		m.logger.Warn("Failed to publish PairingReleased event", "username", event.Username, "error", err)
	}
}
