package relay

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/example/anon-chat-relay/domain/chat"
	"github.com/example/anon-chat-relay/events"
	"github.com/example/anon-chat-relay/modules/bus"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
)

// RelayModule owns the message bus and the ingest path into it.
type RelayModule struct {
	bus    *bus.Bus
	logger types.Logger

	pairsMatched  atomic.Int64
	pairsReleased atomic.Int64
}

// Compile-time interface checks.
var _ mono.Module = (*RelayModule)(nil)
var _ mono.EventConsumerModule = (*RelayModule)(nil)
var _ mono.HealthCheckableModule = (*RelayModule)(nil)

// NewModule creates a RelayModule whose bus retains capacity messages.
// The bus exists from construction so other modules can subscribe before Start.
func NewModule(capacity int, logger types.Logger) *RelayModule {
	return &RelayModule{
		bus:    bus.New(capacity),
		logger: logger,
	}
}

// Name returns the module name.
func (m *RelayModule) Name() string {
	return "relay"
}

// Start initializes the module.
func (m *RelayModule) Start(_ context.Context) error {
	if m.bus.Closed() {
		return fmt.Errorf("relay bus already closed")
	}
	m.logger.Info("Relay module started", "capacity", m.bus.Capacity())
	return nil
}

// Stop closes the bus so every open stream ends.
func (m *RelayModule) Stop(_ context.Context) error {
	subscribers := m.bus.SubscriberCount()
	m.bus.Close()
	m.logger.Info("Relay module stopped",
		"subscribers", subscribers,
		"published", m.bus.Published())
	return nil
}

// Health returns the health status.
func (m *RelayModule) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: !m.bus.Closed(),
		Message: "operational",
		Details: map[string]any{
			"subscribers":    m.bus.SubscriberCount(),
			"published":      m.bus.Published(),
			"capacity":       m.bus.Capacity(),
			"pairs_matched":  m.pairsMatched.Load(),
			"pairs_released": m.pairsReleased.Load(),
		},
	}
}

// RegisterEventConsumers registers handlers for matchmaker events.
func (m *RelayModule) RegisterEventConsumers(registry mono.EventRegistry) error {
	if err := helper.RegisterTypedEventConsumer(
		registry, events.PairingMatchedV1, m.handlePairingMatched, m,
	); err != nil {
		return fmt.Errorf("failed to register PairingMatched consumer: %w", err)
	}

	if err := helper.RegisterTypedEventConsumer(
		registry, events.PairingReleasedV1, m.handlePairingReleased, m,
	); err != nil {
		return fmt.Errorf("failed to register PairingReleased consumer: %w", err)
	}

	m.logger.Info("Registered event consumers: PairingMatched, PairingReleased")
	return nil
}

func (m *RelayModule) handlePairingMatched(_ context.Context, event events.PairingMatchedEvent, _ *mono.Msg) error {
	m.pairsMatched.Add(1)
	m.logger.Info("Room allocated", "room", event.Room, "usernames", event.Usernames)
	return nil
}

func (m *RelayModule) handlePairingReleased(_ context.Context, event events.PairingReleasedEvent, _ *mono.Msg) error {
	m.pairsReleased.Add(1)
	m.logger.Debug("User released", "username", event.Username, "room", event.Room)
	return nil
}

// Post validates msg and publishes it to the bus. Only validation errors are
// returned; a closed bus is logged and swallowed.
func (m *RelayModule) Post(msg chat.Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	if err := m.bus.Publish(msg); err != nil {
		if errors.Is(err, bus.ErrClosed) {
			m.logger.Warn("Dropped message, bus closed", "room", msg.Room)
			return nil
		}
		m.logger.Error("Failed to publish message", "error", err)
	}
	return nil
}

// Subscribe opens a new subscription on the bus.
func (m *RelayModule) Subscribe() *bus.Subscription {
	return m.bus.Subscribe()
}

// Bus returns the underlying bus.
func (m *RelayModule) Bus() *bus.Bus {
	return m.bus
}
