package api

import (
	"bufio"
	"context"
	"errors"
	"net/url"
	"path/filepath"
	"sort"

	"github.com/example/anon-chat-relay/domain/chat"
	"github.com/example/anon-chat-relay/modules/bus"
	"github.com/example/anon-chat-relay/modules/matchmaker"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/valyala/fasthttp"
)

// setupRoutes configures all HTTP routes.
func (m *APIModule) setupRoutes() {
	m.app.Get("/health", m.healthHandler)

	// Relay
	if m.limiter != nil {
		m.app.Post("/message", m.limiter, m.postMessage)
	} else {
		m.app.Post("/message", m.postMessage)
	}
	m.app.Get("/events", m.streamEvents)

	// Pairing
	m.app.Post("/request_chat", m.requestChat)
	m.app.Get("/leave_chat", m.leaveChat)
	m.app.Post("/leave_chat", m.leaveChat)
	m.app.Get("/api/pairing_status", m.pairingStatus)

	// User directory
	m.app.Post("/api/set_user", m.setUser)
	m.app.Get("/api/get_user", m.getUser)

	// Pages
	m.app.Get("/random", m.page("random.html"))
	m.app.Get("/waiting", m.page("waiting.html"))
	m.app.Get("/room/:id", m.roomPage)
	m.app.Static("/", m.staticDir)
}

// healthHandler handles GET /health.
func (m *APIModule) healthHandler(c *fiber.Ctx) error {
	ctx := c.UserContext()
	resp := HealthResponse{
		Status:  "healthy",
		Modules: make(map[string]ModuleHealth, len(m.health)+1),
	}

	self := m.Health(ctx)
	resp.Modules[m.Name()] = ModuleHealth{Healthy: self.Healthy, Message: self.Message, Details: self.Details}

	names := make([]string, 0, len(m.health))
	for name := range m.health {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		status := m.health[name].Health(ctx)
		resp.Modules[name] = ModuleHealth{Healthy: status.Healthy, Message: status.Message, Details: status.Details}
		if !status.Healthy {
			resp.Status = "degraded"
		}
	}

	if resp.Status != "healthy" {
		return c.Status(fiber.StatusServiceUnavailable).JSON(resp)
	}
	return c.JSON(resp)
}

// postMessage handles POST /message.
func (m *APIModule) postMessage(c *fiber.Ctx) error {
	var msg chat.Message
	if err := c.BodyParser(&msg); err != nil {
		return fiber.NewError(fiber.StatusUnprocessableEntity, "Invalid message body")
	}

	if err := m.relay.Post(msg); err != nil {
		if isValidation(err) {
			return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
		}
		return err
	}

	c.Status(fiber.StatusOK)
	return nil
}

// streamEvents handles GET /events. The subscription is taken before the
// response starts, so the stream holds every message published after the
// request arrived.
func (m *APIModule) streamEvents(c *fiber.Ctx) error {
	room := c.Query("room")
	if room != "" {
		if err := (chat.Message{Room: room}).Validate(); err != nil {
			return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
		}
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	sub := m.relay.Subscribe()
	id := uuid.New().String()
	ctx, cancel := context.WithCancel(m.ctx)
	logger := m.logger.With("stream", id)

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer cancel()
		defer sub.Close()

		m.streams.Add(1)
		defer m.streams.Add(-1)
		logger.Debug("Event stream opened", "room", room)

		sse := newSSEWriter(w)
		err := bus.Stream(ctx, sub, bus.StreamOptions{
			Emit:      sse.WriteMessage,
			Filter:    bus.RoomFilter(room),
			Keepalive: m.keepalive,
			OnIdle:    sse.WriteKeepalive,
			Logger:    logger,
		})
		if err != nil {
			logger.Debug("Event stream closed by client", "error", err)
			return
		}
		logger.Debug("Event stream ended")
	}))
	return nil
}

// requestChat handles POST /request_chat.
func (m *APIModule) requestChat(c *fiber.Ctx) error {
	username, err := parseUsername(c)
	if err != nil {
		return err
	}

	result, err := m.matchmaker.RequestPairing(c.UserContext(), username)
	if err != nil {
		m.logger.Error("Pairing request failed", "username", username, "error", err)
		return fiber.NewError(fiber.StatusServiceUnavailable, "Matchmaker unavailable")
	}

	if result.Matched() {
		return c.Redirect(roomURL(result.Room, username), fiber.StatusSeeOther)
	}
	return c.Redirect("/waiting?username="+url.QueryEscape(username), fiber.StatusSeeOther)
}

// leaveChat handles GET and POST /leave_chat. The username comes from the
// query string, or from a form or JSON body when the query has none.
func (m *APIModule) leaveChat(c *fiber.Ctx) error {
	username := c.Query("username")
	if username == "" {
		var req UsernameRequest
		if err := c.BodyParser(&req); err == nil {
			username = req.Username
		}
	}
	if username != "" {
		if err := m.matchmaker.Release(c.UserContext(), username); err != nil {
			m.logger.Error("Release failed", "username", username, "error", err)
			return fiber.NewError(fiber.StatusServiceUnavailable, "Matchmaker unavailable")
		}
	}
	return c.Redirect("/", fiber.StatusSeeOther)
}

// pairingStatus handles GET /api/pairing_status.
func (m *APIModule) pairingStatus(c *fiber.Ctx) error {
	username := c.Query("username")
	if err := chat.ValidateUsername(username); err != nil {
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	}

	result, err := m.matchmaker.Status(c.UserContext(), username)
	if err != nil {
		m.logger.Error("Pairing status failed", "username", username, "error", err)
		return fiber.NewError(fiber.StatusServiceUnavailable, "Matchmaker unavailable")
	}
	return c.JSON(result)
}

// setUser handles POST /api/set_user.
func (m *APIModule) setUser(c *fiber.Ctx) error {
	username, err := parseUsername(c)
	if err != nil {
		return err
	}

	if err := m.users.SetUser(c.UserContext(), c.IP(), username); err != nil {
		m.logger.Error("Failed to store username", "ip", c.IP(), "error", err)
		return fiber.NewError(fiber.StatusInternalServerError, "Failed to store username")
	}
	return c.JSON(UserResponse{Username: username})
}

// getUser handles GET /api/get_user.
func (m *APIModule) getUser(c *fiber.Ctx) error {
	username, found, err := m.users.GetUser(c.UserContext(), c.IP())
	if err != nil {
		m.logger.Error("Failed to load username", "ip", c.IP(), "error", err)
		return fiber.NewError(fiber.StatusInternalServerError, "Failed to load username")
	}
	if !found {
		return fiber.NewError(fiber.StatusNotFound, "No username stored for this address")
	}
	return c.JSON(UserResponse{Username: username})
}

// page serves a file from the static directory.
func (m *APIModule) page(name string) fiber.Handler {
	path := filepath.Join(m.staticDir, name)
	return func(c *fiber.Ctx) error {
		return c.SendFile(path)
	}
}

// roomPage handles GET /room/:id.
func (m *APIModule) roomPage(c *fiber.Ctx) error {
	if !matchmaker.IsValidRoomID(c.Params("id")) {
		return fiber.ErrNotFound
	}
	return c.SendFile(filepath.Join(m.staticDir, "room.html"))
}

// parseUsername reads and validates the username field of a form or JSON body.
func parseUsername(c *fiber.Ctx) (string, error) {
	var req UsernameRequest
	if err := c.BodyParser(&req); err != nil {
		return "", fiber.NewError(fiber.StatusUnprocessableEntity, "Invalid request body")
	}
	if err := chat.ValidateUsername(req.Username); err != nil {
		return "", fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	}
	return req.Username, nil
}

func roomURL(room, username string) string {
	return "/room/" + url.PathEscape(room) + "?username=" + url.QueryEscape(username)
}

// isValidation reports whether err came from message validation.
func isValidation(err error) bool {
	return errors.Is(err, chat.ErrRoomTooLong) ||
		errors.Is(err, chat.ErrUsernameTooLong) ||
		errors.Is(err, chat.ErrUsernameEmpty)
}
