package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/example/anon-chat-relay/domain/chat"
	"github.com/example/anon-chat-relay/modules/matchmaker"
	"github.com/example/anon-chat-relay/modules/relay"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockLogger implements types.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(_ string, _ ...any)         {}
func (m *mockLogger) Info(_ string, _ ...any)          {}
func (m *mockLogger) Warn(_ string, _ ...any)          {}
func (m *mockLogger) Error(_ string, _ ...any)         {}
func (m *mockLogger) With(_ ...any) types.Logger       { return m }
func (m *mockLogger) WithModule(_ string) types.Logger { return m }
func (m *mockLogger) WithError(_ error) types.Logger   { return m }

// poolPort serves MatchmakerPort straight from an in-process pool.
type poolPort struct {
	pool *matchmaker.Pool
	err  error
}

func (p *poolPort) RequestPairing(_ context.Context, username string) (matchmaker.PairingResult, error) {
	if p.err != nil {
		return matchmaker.PairingResult{}, p.err
	}
	return p.pool.RequestPairing(username), nil
}

func (p *poolPort) Release(_ context.Context, username string) error {
	if p.err != nil {
		return p.err
	}
	p.pool.Release(username)
	return nil
}

func (p *poolPort) Status(_ context.Context, username string) (matchmaker.PairingResult, error) {
	if p.err != nil {
		return matchmaker.PairingResult{}, p.err
	}
	return p.pool.Status(username), nil
}

// mapUsers is an in-memory UserPort.
type mapUsers struct {
	mu    sync.Mutex
	names map[string]string
}

func (u *mapUsers) SetUser(_ context.Context, ip, username string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.names[ip] = username
	return nil
}

func (u *mapUsers) GetUser(_ context.Context, ip string) (string, bool, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	name, ok := u.names[ip]
	return name, ok, nil
}

// staticHealth is a fixed HealthChecker.
type staticHealth struct {
	status mono.HealthStatus
}

func (s staticHealth) Health(_ context.Context) mono.HealthStatus { return s.status }

type testEnv struct {
	module *APIModule
	relay  *relay.RelayModule
	pool   *poolPort
	users  *mapUsers
}

func setupTestModule(t *testing.T, limiter fiber.Handler) *testEnv {
	t.Helper()

	staticDir := t.TempDir()
	for _, name := range []string{"index.html", "random.html", "waiting.html", "room.html"} {
		require.NoError(t, os.WriteFile(filepath.Join(staticDir, name), []byte("<html>"+name+"</html>"), 0o644))
	}

	env := &testEnv{
		relay: relay.NewModule(16, &mockLogger{}),
		pool:  &poolPort{pool: matchmaker.NewPool(nil)},
		users: &mapUsers{names: map[string]string{}},
	}
	m := NewModule("0", staticDir, 0, &mockLogger{})
	m.matchmaker = env.pool
	m.users = env.users
	m.SetRelay(env.relay)
	if limiter != nil {
		m.SetRateLimiter(limiter)
	}
	require.NoError(t, m.setup())
	t.Cleanup(func() {
		m.cancel()
		_ = env.relay.Stop(context.Background())
	})

	env.module = m
	return env
}

func formRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestPostMessage(t *testing.T) {
	tests := []struct {
		name          string
		req           *http.Request
		wantStatus    int
		wantPublished uint64
	}{
		{
			name:          "form message",
			req:           formRequest("POST", "/message", "room=lobby&username=alice&message=hello"),
			wantStatus:    fiber.StatusOK,
			wantPublished: 1,
		},
		{
			name:          "json message",
			req:           jsonRequest("POST", "/message", `{"room":"lobby","username":"bob","message":"hi"}`),
			wantStatus:    fiber.StatusOK,
			wantPublished: 1,
		},
		{
			name:          "thirty rune room is accepted",
			req:           formRequest("POST", "/message", "room="+strings.Repeat("é", 30)+"&username=alice"),
			wantStatus:    fiber.StatusOK,
			wantPublished: 1,
		},
		{
			name:       "room too long",
			req:        formRequest("POST", "/message", "room="+strings.Repeat("r", 31)+"&username=alice&message=x"),
			wantStatus: fiber.StatusUnprocessableEntity,
		},
		{
			name:       "username too long",
			req:        formRequest("POST", "/message", "room=lobby&username="+strings.Repeat("u", 31)+"&message=x"),
			wantStatus: fiber.StatusUnprocessableEntity,
		},
		{
			name:       "malformed json",
			req:        jsonRequest("POST", "/message", `{"room":`),
			wantStatus: fiber.StatusUnprocessableEntity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupTestModule(t, nil)

			resp, err := env.module.app.Test(tt.req)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Equal(t, tt.wantPublished, env.relay.Bus().Published())

			if tt.wantStatus == fiber.StatusOK {
				body, _ := io.ReadAll(resp.Body)
				assert.Empty(t, body)
			} else {
				var errResp ErrorResponse
				require.NoError(t, json.NewDecoder(resp.Body).Decode(&errResp))
				assert.Equal(t, "validation_failed", errResp.Error)
			}
		})
	}
}

func TestPostMessage_RateLimiterRuns(t *testing.T) {
	blocked := func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusTooManyRequests)
	}
	env := setupTestModule(t, blocked)

	resp, err := env.module.app.Test(formRequest("POST", "/message", "room=lobby&username=alice"))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
	assert.Zero(t, env.relay.Bus().Published())
}

func TestStreamEvents(t *testing.T) {
	env := setupTestModule(t, nil)

	go func() {
		// Publish once the handler has subscribed, then close the bus to end the stream.
		deadline := time.Now().Add(2 * time.Second)
		for env.relay.Bus().SubscriberCount() == 0 && time.Now().Before(deadline) {
			time.Sleep(5 * time.Millisecond)
		}
		_ = env.relay.Post(chat.Message{Room: "000001", Username: "alice", Text: "hi"})
		_ = env.relay.Post(chat.Message{Room: "000002", Username: "carol", Text: "elsewhere"})
		_ = env.relay.Post(chat.Message{Room: "000001", Username: "bob", Text: "hello"})
		_ = env.relay.Stop(context.Background())
	}()

	resp, err := env.module.app.Test(httptest.NewRequest("GET", "/events?room=000001", nil), 5000)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	want := `data: {"room":"000001","username":"alice","message":"hi"}` + "\n\n" +
		`data: {"room":"000001","username":"bob","message":"hello"}` + "\n\n"
	assert.Equal(t, want, string(body))
	assert.Zero(t, env.relay.Bus().SubscriberCount())
}

func TestStreamEvents_EndsOnShutdown(t *testing.T) {
	env := setupTestModule(t, nil)

	go func() {
		deadline := time.Now().Add(2 * time.Second)
		for env.relay.Bus().SubscriberCount() == 0 && time.Now().Before(deadline) {
			time.Sleep(5 * time.Millisecond)
		}
		env.module.cancel()
		_ = env.relay.Post(chat.Message{Room: "lobby", Username: "late"})
	}()

	resp, err := env.module.app.Test(httptest.NewRequest("GET", "/events", nil), 5000)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	assert.NotContains(t, string(body), "late")
}

func TestStreamEvents_RejectsLongRoom(t *testing.T) {
	env := setupTestModule(t, nil)

	resp, err := env.module.app.Test(httptest.NewRequest("GET", "/events?room="+strings.Repeat("r", 31), nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
	assert.Zero(t, env.relay.Bus().SubscriberCount())
}

func TestRequestChat(t *testing.T) {
	env := setupTestModule(t, nil)
	app := env.module.app

	resp, err := app.Test(formRequest("POST", "/request_chat", "username=alice"))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/waiting?username=alice", resp.Header.Get("Location"))

	resp, err = app.Test(formRequest("POST", "/request_chat", "username=bob"))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusSeeOther, resp.StatusCode)

	room := env.pool.pool.Status("bob").Room
	require.True(t, matchmaker.IsValidRoomID(room))
	assert.Equal(t, "/room/"+room+"?username=bob", resp.Header.Get("Location"))

	// The waiting side picks up its room from the status endpoint.
	resp, err = app.Test(httptest.NewRequest("GET", "/api/pairing_status?username=alice", nil))
	require.NoError(t, err)
	var status matchmaker.PairingResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	assert.Equal(t, matchmaker.StateMatched, status.State)
	assert.Equal(t, room, status.Room)
	assert.Equal(t, "bob", status.Partner)
}

func TestRequestChat_Validation(t *testing.T) {
	env := setupTestModule(t, nil)

	for _, body := range []string{"username=", "username=" + strings.Repeat("x", 31)} {
		resp, err := env.module.app.Test(formRequest("POST", "/request_chat", body))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode, body)
	}
	assert.Equal(t, matchmaker.Snapshot{}, env.pool.pool.Snapshot())
}

func TestRequestChat_MatchmakerDown(t *testing.T) {
	env := setupTestModule(t, nil)
	env.pool.err = errors.New("timeout")

	resp, err := env.module.app.Test(formRequest("POST", "/request_chat", "username=alice"))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
}

func TestLeaveChat(t *testing.T) {
	env := setupTestModule(t, nil)
	env.pool.pool.RequestPairing("alice")
	env.pool.pool.RequestPairing("bob")

	resp, err := env.module.app.Test(httptest.NewRequest("GET", "/leave_chat?username=alice", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))
	assert.Equal(t, matchmaker.StateUnseen, env.pool.pool.Status("alice").State)

	// Unknown or missing usernames still redirect.
	resp, err = env.module.app.Test(httptest.NewRequest("GET", "/leave_chat", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusSeeOther, resp.StatusCode)
}

func TestLeaveChat_UsernameFromBody(t *testing.T) {
	env := setupTestModule(t, nil)
	env.pool.pool.RequestPairing("alice")
	env.pool.pool.RequestPairing("bob")
	env.pool.pool.RequestPairing("carol")

	resp, err := env.module.app.Test(formRequest("POST", "/leave_chat", "username=alice"))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, matchmaker.StateUnseen, env.pool.pool.Status("alice").State)

	resp, err = env.module.app.Test(jsonRequest("POST", "/leave_chat", `{"username":"carol"}`))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, matchmaker.StateUnseen, env.pool.pool.Status("carol").State)

	// The query string wins over the body.
	resp, err = env.module.app.Test(formRequest("POST", "/leave_chat?username=bob", "username=nobody"))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, matchmaker.StateUnseen, env.pool.pool.Status("bob").State)
}

func TestUserDirectory(t *testing.T) {
	env := setupTestModule(t, nil)
	app := env.module.app

	resp, err := app.Test(httptest.NewRequest("GET", "/api/get_user", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp, err = app.Test(jsonRequest("POST", "/api/set_user", `{"username":"alice"}`))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/api/get_user", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var user UserResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&user))
	assert.Equal(t, "alice", user.Username)

	resp, err = app.Test(jsonRequest("POST", "/api/set_user", `{"username":""}`))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
}

func TestPages(t *testing.T) {
	env := setupTestModule(t, nil)

	tests := []struct {
		path       string
		wantStatus int
		wantBody   string
	}{
		{"/random", fiber.StatusOK, "random.html"},
		{"/waiting?username=alice", fiber.StatusOK, "waiting.html"},
		{"/room/123456", fiber.StatusOK, "room.html"},
		{"/room/abc", fiber.StatusNotFound, ""},
		{"/", fiber.StatusOK, "index.html"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, err := env.module.app.Test(httptest.NewRequest("GET", tt.path, nil))
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			if tt.wantBody != "" {
				body, _ := io.ReadAll(resp.Body)
				assert.Contains(t, string(body), tt.wantBody)
			}
		})
	}
}

func TestHealthHandler(t *testing.T) {
	env := setupTestModule(t, nil)
	env.module.RegisterHealthCheck(env.relay, "relay")

	resp, err := env.module.app.Test(httptest.NewRequest("GET", "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var health HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "healthy", health.Status)
	assert.Contains(t, health.Modules, "api")
	assert.Contains(t, health.Modules, "relay")

	env.module.RegisterHealthCheck(staticHealth{mono.HealthStatus{Healthy: false, Message: "down"}}, "users")
	resp, err = env.module.app.Test(httptest.NewRequest("GET", "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
}

func TestSetup_RequiresDependencies(t *testing.T) {
	m := NewModule("0", "static", 0, &mockLogger{})
	assert.Error(t, m.setup())

	m.matchmaker = &poolPort{pool: matchmaker.NewPool(nil)}
	m.users = &mapUsers{names: map[string]string{}}
	assert.Error(t, m.setup(), "relay is required")
}
