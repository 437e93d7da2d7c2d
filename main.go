package main

import (
	"context"
	"log"
	"os"

	"github.com/example/anon-chat-relay/config"
	"github.com/example/anon-chat-relay/modules/api"
	"github.com/example/anon-chat-relay/modules/matchmaker"
	"github.com/example/anon-chat-relay/modules/ratelimit"
	"github.com/example/anon-chat-relay/modules/relay"
	"github.com/example/anon-chat-relay/modules/users"
	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/go-monolith/mono"
)

func main() {
	log.Println("=== Anonymous Chat Relay - Fiber SSE + Matchmaker ===")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Create mono application
	app, err := mono.NewMonoApplication(
		mono.WithShutdownTimeout(cfg.ShutdownTimeout),
		mono.WithLogLevel(mono.LogLevelInfo),
		mono.WithLogFormat(mono.LogFormatText),
	)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}

	logger := app.Logger()

	// Create modules
	relayModule := relay.NewModule(cfg.BusCapacity, logger.WithModule("relay"))
	matchmakerModule := matchmaker.NewModule(logger.WithModule("matchmaker"))
	usersModule := users.NewModule(cfg.DBPath, cfg.DBDebug, logger.WithModule("users"))
	apiModule := api.NewModule(cfg.Port, cfg.StaticDir, cfg.SSEKeepalive, logger.WithModule("api"))

	// Inject the relay into the API module
	// (the bus is an in-process ring buffer, not a service)
	apiModule.SetRelay(relayModule)
	apiModule.RegisterHealthCheck(relayModule, relayModule.Name())
	apiModule.RegisterHealthCheck(matchmakerModule, matchmakerModule.Name())
	apiModule.RegisterHealthCheck(usersModule, usersModule.Name())

	// Register modules with the framework.
	// Order: independent modules first, then modules with dependencies
	// - relay: Message bus owner (EventConsumerModule for pairing events)
	// - matchmaker: Waiting pool (ServiceProviderModule + EventEmitterModule)
	// - users: IP to username directory (ServiceProviderModule, GORM + SQLite)
	// - rate-limiter: Redis sliding window, only when REDIS_ADDR is set
	// - api: Driving adapter (Fiber HTTP/SSE server, depends on matchmaker and users)
	app.Register(relayModule)
	app.Register(matchmakerModule)
	app.Register(usersModule)

	if cfg.RateLimitEnabled() {
		limiterConfig := ratelimit.DefaultConfig()
		limiterConfig.RequestsPerWindow = cfg.RateLimitRequests
		limiterConfig.WindowSize = cfg.RateLimitWindow

		limiterModule := ratelimit.NewModule(cfg.RedisAddr, cfg.RedisPassword, limiterConfig, logger.WithModule("rate-limiter"))
		apiModule.SetRateLimiter(limiterModule.Handler())
		apiModule.RegisterHealthCheck(limiterModule, limiterModule.Name())
		app.Register(limiterModule)
	}

	app.Register(apiModule)

	// Start application
	if err := app.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}

	printStartupInfo(cfg)

	// Graceful shutdown
	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"mono-app": func(ctx context.Context) error {
				log.Println("Graceful shutdown initiated...")
				return app.Stop(ctx)
			},
		},
	)

	exitCode := <-wait
	log.Printf("Application exited with code: %d", exitCode)
	os.Exit(exitCode)
}

func printStartupInfo(cfg *config.Config) {
	log.Println("")
	log.Println("Application started successfully!")
	log.Println("")
	log.Println("Architecture:")
	log.Println("  - HTTP Framework: Fiber with server-sent events")
	log.Printf("  - Message Bus: in-process ring buffer (capacity %d)", cfg.BusCapacity)
	log.Printf("  - User Directory: SQLite (%s)", cfg.DBPath)
	if cfg.RateLimitEnabled() {
		log.Printf("  - Rate Limit: %d messages per %s via Redis (%s)", cfg.RateLimitRequests, cfg.RateLimitWindow, cfg.RedisAddr)
	} else {
		log.Println("  - Rate Limit: disabled (set REDIS_ADDR to enable)")
	}
	log.Println("")
	log.Printf("Endpoints (http://localhost:%s):", cfg.Port)
	log.Println("  GET    /health                - Health check")
	log.Println("  POST   /message               - Publish {room, username, message}")
	log.Println("  GET    /events[?room=]        - Server-sent event stream")
	log.Println("  POST   /request_chat          - Join the random chat pool")
	log.Println("  GET    /leave_chat?username=  - Leave the pool (POST with a form or JSON body also works)")
	log.Println("  GET    /api/pairing_status    - Poll pairing state")
	log.Println("  POST   /api/set_user          - Remember a username for this address")
	log.Println("  GET    /api/get_user          - Look up the stored username")
	log.Printf("  Static files from %s", cfg.StaticDir)
	log.Println("")
	log.Println("Press Ctrl+C to shutdown gracefully")
}
