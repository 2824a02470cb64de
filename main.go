// Command crossroadbus starts the Crossroad Bus game server.
//
// It supports two modes:
//  1. "serve" (default) – runs the HTTP server exposing REST API, WebSocket, and an /mcp HTTP endpoint
//  2. "stdio-mcp" – runs an MCP stdio server and spins up an internal HTTP API if none is available
//
// Settings come from an optional crossroadbus.{json,yaml,toml} file,
// CROSSROADBUS_* environment variables and the flags below, in increasing
// order of precedence. An optional ngrok tunnel exposes the server publicly
// during development.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"github.com/urfave/cli/v3"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"

	"github.com/wricardo/mcp-training/crossroadbus/api"
	"github.com/wricardo/mcp-training/crossroadbus/game/config"
	"github.com/wricardo/mcp-training/crossroadbus/game/engine"
	"github.com/wricardo/mcp-training/crossroadbus/game/service"
	"github.com/wricardo/mcp-training/crossroadbus/game/session"
	"github.com/wricardo/mcp-training/crossroadbus/results"
	"github.com/wricardo/mcp-training/crossroadbus/settings"
	"github.com/wricardo/mcp-training/crossroadbus/transport/mcp"
	"github.com/wricardo/mcp-training/crossroadbus/transport/websocket"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "Crossroad Bus Game Server"
)

const (
	cleanupInterval = 1 * time.Hour
	syncInterval    = 5 * time.Second
)

// main loads .env, then hands over to the command line.
func main() {
	// godotenv reports a missing file as fs.ErrNotExist; anything else is worth a note.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "warning: error loading .env file: %v\n", err)
	}

	cmd := newCommand()
	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", cmd.Name, err)
		os.Exit(1)
	}
}

// newCommand builds the root command. Root flags are inherited by the
// subcommands; running without a subcommand serves HTTP.
func newCommand() *cli.Command {
	return &cli.Command{
		Name:    "crossroadbus",
		Usage:   AppName,
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "settings file (json, yaml or toml)"},
			&cli.IntFlag{Name: "port", Value: 8080, Usage: "HTTP server port"},
			&cli.StringFlag{Name: "host", Value: "localhost", Usage: "HTTP server host"},
			&cli.StringFlag{Name: "config-dir", Usage: "directory containing level configurations", Sources: cli.EnvVars("CONFIG_DIR")},
			&cli.StringFlag{Name: "sessions-dir", Usage: "directory session files are persisted to"},
			&cli.StringFlag{Name: "results-dsn", Usage: "results ledger: sqlite file or postgres:// DSN"},
			&cli.BoolFlag{Name: "debug", Usage: "enable debug logging"},
			&cli.BoolFlag{Name: "realtime", Usage: "advance moving buses on a wall clock and stream frames"},
			&cli.IntFlag{Name: "fps", Usage: "frames per second of the realtime loop"},
			&cli.BoolFlag{Name: "ngrok", Usage: "enable ngrok tunnel", Sources: cli.EnvVars("NGROK_ENABLED")},
			&cli.StringFlag{Name: "ngrok-auth", Usage: "ngrok auth token", Sources: cli.EnvVars("NGROK_AUTHTOKEN", "NGROK_AUTH_TOKEN")},
			&cli.StringFlag{Name: "ngrok-domain", Usage: "custom ngrok domain", Sources: cli.EnvVars("NGROK_DOMAIN")},
		},
		Action: runServe,
		Commands: []*cli.Command{
			{
				Name:    "serve",
				Aliases: []string{"server", "http"},
				Usage:   "run HTTP server with API, WebSocket, and MCP endpoint",
				Action:  runServe,
			},
			{
				Name:    "stdio-mcp",
				Aliases: []string{"mcp-stdio", "mcp"},
				Usage:   "run MCP stdio server with internal HTTP server",
				Action:  runStdioMCP,
			},
		},
	}
}

// loadSettings resolves settings and applies explicitly set flags on top.
func loadSettings(cmd *cli.Command) (*settings.Settings, error) {
	s, err := settings.Load(viper.New(), cmd.String("config"))
	if err != nil {
		return nil, err
	}

	if cmd.IsSet("port") {
		s.Port = cmd.Int("port")
	}
	if cmd.IsSet("config-dir") {
		s.ConfigDir = cmd.String("config-dir")
	}
	if cmd.IsSet("sessions-dir") {
		s.SessionsDir = cmd.String("sessions-dir")
	}
	if cmd.IsSet("results-dsn") {
		s.ResultsDSN = cmd.String("results-dsn")
	}
	if cmd.IsSet("fps") {
		s.FPS = cmd.Int("fps")
	}
	if cmd.Bool("realtime") {
		s.Realtime = true
	}
	if cmd.Bool("ngrok") {
		s.Ngrok = true
	}
	if cmd.IsSet("ngrok-domain") {
		s.NgrokDomain = cmd.String("ngrok-domain")
	}
	if cmd.Bool("debug") {
		s.LogLevel = "debug"
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// services bundles what initializeServices wires together.
type services struct {
	game        service.GameService
	sessions    *session.Manager
	persistence *session.FilePersistence
	ledger      *results.Ledger
}

// Close flushes sessions and closes the results ledger.
func (s *services) Close() error {
	var errs []error
	if err := s.sessions.SaveAllSessions(); err != nil {
		errs = append(errs, err)
	}
	if s.ledger != nil {
		if err := s.ledger.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// initializeServices wires config and session managers, the results ledger
// and the game service.
func initializeServices(s *settings.Settings, log zerolog.Logger, opts ...service.Option) (*services, error) {
	// Create config manager first (needed for persistence)
	configManager, err := config.NewManagerWithLogger(s.ConfigDir, log.With().Str("component", "config").Logger())
	if err != nil {
		return nil, fmt.Errorf("failed to create config manager: %w", err)
	}

	persistence, err := session.NewFilePersistence(s.SessionsDir, configManager)
	if err != nil {
		return nil, fmt.Errorf("failed to create session persistence: %w", err)
	}

	sessionManager := session.NewManagerWithPersistence(persistence,
		session.WithLogger(log.With().Str("component", "sessions").Logger()),
	)

	// Load persisted sessions on startup
	if err := sessionManager.LoadPersistedSessions(); err != nil {
		log.Warn().Err(err).Msg("failed to load persisted sessions")
	}

	svc := &services{sessions: sessionManager, persistence: persistence}

	if s.ResultsDSN != "" {
		ledger, err := results.Open(s.ResultsDSN, log.With().Str("component", "results").Logger())
		if err != nil {
			return nil, fmt.Errorf("failed to open results ledger: %w", err)
		}
		svc.ledger = ledger
		opts = append(opts, service.WithResults(ledger))
	}

	opts = append([]service.Option{service.WithLogger(log.With().Str("component", "service").Logger())}, opts...)
	svc.game = service.NewGameService(sessionManager, configManager, opts...)

	return svc, nil
}

// newHub creates the WebSocket hub. Client commands are executed against
// the service returned by game and the resulting state is pushed back to the
// session.
func newHub(game func() service.GameService, log zerolog.Logger) *websocket.Hub {
	var hub *websocket.Hub
	hub = websocket.NewHub(
		websocket.WithHubLogger(log.With().Str("component", "websocket").Logger()),
		websocket.WithCommandHandler(func(sessionID string, cmd websocket.Command) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			state, err := dispatchCommand(ctx, game(), sessionID, cmd)
			if err != nil {
				log.Debug().Err(err).Str("session", sessionID).Str("action", cmd.Action).Msg("command failed")
				hub.BroadcastEvent(sessionID, "error", map[string]string{"error": err.Error()})
				return
			}
			hub.BroadcastToSession(sessionID, state)
		}),
	)
	return hub
}

// dispatchCommand runs one client command and returns the state after it.
func dispatchCommand(ctx context.Context, game service.GameService, sessionID string, cmd websocket.Command) (*engine.GameState, error) {
	switch cmd.Action {
	case "start":
		result, err := game.StartLevel(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		return result.GameState, nil
	case "turn":
		result, err := game.Turn(ctx, sessionID, cmd.Direction, 1)
		if err != nil {
			return nil, err
		}
		return result.GameState, nil
	case "reset":
		return game.Reset(ctx, sessionID)
	case "state":
		return game.GetGameState(ctx, sessionID)
	}
	return nil, fmt.Errorf("%w: unknown action %q", service.ErrInvalidArgument, cmd.Action)
}

// newMainRouter mounts the API server at the root and the MCP HTTP endpoint at /mcp.
func newMainRouter(apiServer http.Handler, mcpClient *mcp.Client) *http.ServeMux {
	mainRouter := http.NewServeMux()
	mainRouter.Handle("/", apiServer)
	mainRouter.HandleFunc("/mcp", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "Failed to read request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		response := mcpClient.GetMCPServer().HandleMessage(r.Context(), body)

		w.Header().Set("Content-Type", "application/json")
		responseData, err := json.Marshal(response)
		if err != nil {
			http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
			return
		}
		w.Write(responseData)
	})
	return mainRouter
}

// runServe starts the HTTP server with REST API, WebSocket hub, and an /mcp proxy endpoint.
// If ngrok is enabled it also provisions a public tunnel.
func runServe(ctx context.Context, cmd *cli.Command) error {
	s, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	log := s.NewLogger(os.Stderr)
	log.Info().Str("version", Version).Str("mode", "serve").Msgf("starting %s", AppName)

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var gameService service.GameService
	hub := newHub(func() service.GameService { return gameService }, log)

	svc, err := initializeServices(s, log, service.WithEventListener(hub.HandleGameEvent))
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	defer func() {
		if err := svc.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close services")
		}
	}()
	gameService = svc.game

	var wg sync.WaitGroup
	spawn := func(fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
		}()
	}

	spawn(func() { hub.Run(ctx) })
	spawn(func() { sessionCleanupRoutine(ctx, svc.sessions, cleanupInterval, s.SessionTTL, log) })
	spawn(func() { filesystemSyncRoutine(ctx, svc.sessions, svc.persistence, syncInterval, log) })
	if s.Realtime {
		spawn(func() {
			if err := gameService.RunRealtime(ctx, s.FPS, hub.BroadcastToSession); err != nil {
				log.Error().Err(err).Msg("realtime loop failed")
			}
		})
	}

	apiServer := api.NewServer(gameService, hub, api.WithLogger(log.With().Str("component", "api").Logger()))

	addr := fmt.Sprintf("%s:%d", cmd.String("host"), s.Port)
	mcpClient := mcp.NewClient(fmt.Sprintf("http://%s", addr))
	mainRouter := newMainRouter(apiServer, mcpClient)

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      mainRouter,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", addr).
			Str("api", fmt.Sprintf("http://%s/api", addr)).
			Str("websocket", fmt.Sprintf("ws://%s/ws?session=<session_id>", addr)).
			Str("mcp", fmt.Sprintf("http://%s/mcp", addr)).
			Msg("HTTP server listening")

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	if s.Ngrok {
		spawn(func() { runNgrokTunnel(ctx, cmd.String("ngrok-auth"), s.NgrokDomain, mainRouter, log) })
	}

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	case err := <-serveErr:
		if err != nil {
			cancel()
			wg.Wait()
			return fmt.Errorf("HTTP server failed: %w", err)
		}
	}
	cancel()

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	wg.Wait()
	log.Info().Msg("server stopped")
	return nil
}

// runNgrokTunnel serves handler through an ngrok tunnel until ctx is done.
func runNgrokTunnel(ctx context.Context, authToken, domain string, handler http.Handler, log zerolog.Logger) {
	if authToken == "" {
		log.Warn().Msg("ngrok enabled but no auth token provided (use --ngrok-auth, NGROK_AUTHTOKEN, or NGROK_AUTH_TOKEN)")
		return
	}

	log.Info().Msg("starting ngrok tunnel")

	var tunnel ngrokConfig.Tunnel
	if domain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(domain))
		log.Info().Str("domain", domain).Msg("using custom ngrok domain")
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(authToken))
	if err != nil {
		log.Error().Err(err).Msg("failed to start ngrok tunnel")
		return
	}

	go func() {
		<-ctx.Done()
		if err := tun.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close ngrok tunnel")
		}
	}()

	ngrokURL := tun.URL()
	log.Info().
		Str("url", ngrokURL).
		Str("api", ngrokURL+"/api").
		Str("websocket", ngrokURL+"/ws?session=<session_id>").
		Str("mcp", ngrokURL+"/mcp").
		Msg("🚀 ngrok tunnel established")

	if err := http.Serve(tun, handler); err != nil && !errors.Is(err, http.ErrServerClosed) && ctx.Err() == nil {
		log.Error().Err(err).Msg("ngrok server error")
	}
	log.Info().Msg("ngrok tunnel closed")
}

// sessionCleanupRoutine periodically removes sessions that have not been
// accessed within ttl.
func sessionCleanupRoutine(ctx context.Context, manager *session.Manager, interval, ttl time.Duration, log zerolog.Logger) {
	if ttl <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := manager.CleanupExpiredSessions(ttl); removed > 0 {
				log.Info().Int("removed", removed).Msg("cleaned up expired sessions")
			}
		}
	}
}

// filesystemSyncRoutine periodically drops sessions whose files were deleted.
func filesystemSyncRoutine(ctx context.Context, manager *session.Manager, persistence session.SessionPersistence, interval time.Duration, log zerolog.Logger) {
	if persistence == nil {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if pruned := syncWithFilesystem(manager, persistence, log); pruned > 0 {
				log.Info().Int("pruned", pruned).Msg("filesystem sync: pruned orphaned sessions from memory")
			}
		}
	}
}

// syncWithFilesystem removes in-memory sessions that have no file any more.
func syncWithFilesystem(manager *session.Manager, persistence session.SessionPersistence, log zerolog.Logger) int {
	pruned := 0
	for _, sess := range manager.List() {
		if persistence.Exists(sess.ID) {
			continue
		}
		if err := manager.DeleteFromMemory(sess.ID); err == nil {
			pruned++
			log.Debug().Str("session", sess.ID).Msg("pruned session from memory (file deleted)")
		}
	}
	return pruned
}

// runStdioMCP runs an MCP stdio server.
// It tries to reuse an external API at http://localhost:<port>; if unavailable, it
// starts a minimal internal HTTP API bound to a random loopback port and targets that.
// Logs go to stderr since stdout carries the protocol.
func runStdioMCP(ctx context.Context, cmd *cli.Command) error {
	s, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	log := s.NewLogger(os.Stderr)

	externalURL := fmt.Sprintf("http://localhost:%d", s.Port)
	log.Info().Str("url", externalURL).Msg("checking for external API server")

	baseURL := externalURL
	if !apiReachable(externalURL) {
		log.Info().Msg("no external API server found, starting internal HTTP server")

		svc, err := initializeServices(s, log)
		if err != nil {
			return fmt.Errorf("failed to initialize services: %w", err)
		}
		defer svc.Close()

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		listener, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return fmt.Errorf("failed to get available port: %w", err)
		}

		hub := newHub(func() service.GameService { return svc.game }, log)
		go hub.Run(ctx)

		httpServer := &http.Server{
			Handler: api.NewServer(svc.game, hub, api.WithLogger(log.With().Str("component", "api").Logger())),
		}
		go func() {
			if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("internal HTTP server error")
			}
		}()
		defer httpServer.Close()

		baseURL = fmt.Sprintf("http://%s", listener.Addr().String())
		log.Info().Str("addr", listener.Addr().String()).Msg("internal HTTP server started for MCP stdio")
	} else {
		log.Info().Str("url", externalURL).Msg("external API server found, using it for MCP")
	}

	mcpClient := mcp.NewClient(baseURL)
	log.Info().Str("api", baseURL).Msg("MCP stdio server ready")

	if err := server.ServeStdio(mcpClient.GetMCPServer()); err != nil {
		return fmt.Errorf("MCP stdio server error: %w", err)
	}
	return nil
}

// apiReachable reports whether an API server answers at baseURL.
func apiReachable(baseURL string) bool {
	testClient := &http.Client{Timeout: 2 * time.Second}
	resp, err := testClient.Get(baseURL + "/health")
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode < 500
}
