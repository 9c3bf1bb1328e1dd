// Command minecart starts the Mine Cart Track Simulator.
//
// It supports these commands:
//  1. "server" (default) – runs the HTTP server exposing REST API, WebSocket, and an /mcp HTTP endpoint
//  2. "stdio-mcp" – runs an MCP stdio server and spins up an internal HTTP API if none is available
//  3. "solve" – prints the first crash and the last cart for a track file
//
// Flags control host/port, track and session directories, logging, and
// optional ngrok tunneling for easy external access during development.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	"github.com/urfave/cli/v3"
	"github.com/wricardo/mcp-training/minecart/api"
	"github.com/wricardo/mcp-training/minecart/game/config"
	"github.com/wricardo/mcp-training/minecart/game/engine"
	"github.com/wricardo/mcp-training/minecart/game/service"
	"github.com/wricardo/mcp-training/minecart/game/session"
	"github.com/wricardo/mcp-training/minecart/logging"
	"github.com/wricardo/mcp-training/minecart/transport/mcp"
	"github.com/wricardo/mcp-training/minecart/transport/websocket"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "Mine Cart Track Simulator"
)

const (
	sessionMaxAge       = 24 * time.Hour
	sessionCleanupEvery = time.Hour
	filesystemSyncEvery = 5 * time.Second
)

// options holds the resolved command line configuration.
type options struct {
	host         string
	port         int
	tracksDir    string
	sessionsDir  string
	defaultTrack string
	ngrok        bool
	ngrokAuth    string
	ngrokDomain  string
}

func (o options) addr() string {
	return fmt.Sprintf("%s:%d", o.host, o.port)
}

func optionsFromCommand(cmd *cli.Command) options {
	return options{
		host:         cmd.String("host"),
		port:         cmd.Int("port"),
		tracksDir:    cmd.String("tracks-dir"),
		sessionsDir:  cmd.String("sessions-dir"),
		defaultTrack: cmd.String("default-track"),
		ngrok:        cmd.Bool("ngrok"),
		ngrokAuth:    cmd.String("ngrok-auth"),
		ngrokDomain:  cmd.String("ngrok-domain"),
	}
}

func main() {
	// Load .env file if it exists (ignore error if not found)
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logging.L().Warn("error loading .env file", "error", err)
	}

	if err := newApp().Run(context.Background(), os.Args); err != nil {
		logging.L().Error("command failed", "error", err)
		os.Exit(1)
	}
}

// newApp builds the command tree. Flags declared on the root are visible to
// every subcommand.
func newApp() *cli.Command {
	return &cli.Command{
		Name:    "minecart",
		Usage:   AppName,
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "host", Value: "localhost", Usage: "HTTP server host", Sources: cli.EnvVars("HOST")},
			&cli.IntFlag{Name: "port", Value: 8080, Usage: "HTTP server port", Sources: cli.EnvVars("PORT")},
			&cli.StringFlag{Name: "tracks-dir", Value: "tracks", Usage: "Directory containing track configurations", Sources: cli.EnvVars("TRACKS_DIR")},
			&cli.StringFlag{Name: "sessions-dir", Value: "sessions", Usage: "Directory where sessions are persisted", Sources: cli.EnvVars("SESSIONS_DIR")},
			&cli.StringFlag{Name: "default-track", Usage: "Track id for sessions created without a config_id", Sources: cli.EnvVars("DEFAULT_TRACK")},
			&cli.BoolFlag{Name: "debug", Usage: "Enable debug logging", Sources: cli.EnvVars("DEBUG")},
			&cli.StringFlag{Name: "log-format", Value: "text", Usage: "Log format: text or json", Sources: cli.EnvVars("LOG_FORMAT")},
			&cli.BoolFlag{Name: "ngrok", Usage: "Enable ngrok tunnel", Sources: cli.EnvVars("NGROK_ENABLED")},
			&cli.StringFlag{Name: "ngrok-auth", Usage: "Ngrok auth token", Sources: cli.EnvVars("NGROK_AUTHTOKEN", "NGROK_AUTH_TOKEN")},
			&cli.StringFlag{Name: "ngrok-domain", Usage: "Custom ngrok domain (optional)", Sources: cli.EnvVars("NGROK_DOMAIN")},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			format := cmd.String("log-format")
			if format != "text" && format != "json" {
				return ctx, fmt.Errorf("unknown log format %q", format)
			}
			logging.Setup(logging.Config{Debug: cmd.Bool("debug"), Format: format})
			return ctx, nil
		},
		Action: serverAction,
		Commands: []*cli.Command{
			{
				Name:    "server",
				Aliases: []string{"http"},
				Usage:   "Run HTTP server with API, WebSocket, and MCP endpoint",
				Action:  serverAction,
			},
			{
				Name:    "stdio-mcp",
				Aliases: []string{"mcp-stdio", "mcp"},
				Usage:   "Run MCP stdio server with internal HTTP server",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					opts := optionsFromCommand(cmd)
					svc, err := initializeServices(ctx, opts)
					if err != nil {
						return err
					}
					defer svc.saveAll()
					return runStdioMCPWithInternalServer(ctx, opts, svc.sim)
				},
			},
			{
				Name:      "solve",
				Usage:     "Print the first crash and the last cart for a track file",
				ArgsUsage: "<track file>",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "max-ticks", Value: engine.DefaultMaxTicks, Usage: "Give up after this many ticks"},
					&cli.BoolFlag{Name: "render", Usage: "Print the track after the last crash"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					if cmd.NArg() != 1 {
						return fmt.Errorf("solve takes exactly one track file")
					}
					return solveTrackFile(os.Stdout, cmd.Args().First(), cmd.Int("max-ticks"), cmd.Bool("render"))
				},
			},
			{
				Name:  "version",
				Usage: "Show version information",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					fmt.Fprintf(cmd.Root().Writer, "%s v%s\n", AppName, Version)
					return nil
				},
			},
		},
	}
}

func serverAction(ctx context.Context, cmd *cli.Command) error {
	opts := optionsFromCommand(cmd)
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := initializeServices(ctx, opts)
	if err != nil {
		return err
	}
	return runHTTPServer(ctx, opts, svc)
}

// solveTrackFile answers both puzzle questions for one track file.
func solveTrackFile(w io.Writer, path string, maxTicks int, render bool) error {
	track, err := engine.LoadTrackConfig(path)
	if err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}

	solution, err := engine.Solve(track.Layout, maxTicks)
	if err != nil {
		return fmt.Errorf("solve %s: %w", path, err)
	}

	fmt.Fprintf(w, "Track: %s (%d carts)\n", track.Name, solution.Carts)
	if solution.FirstCrash != nil {
		fmt.Fprintf(w, "First crash: %s (tick %d)\n", engine.FormatPosition(*solution.FirstCrash), solution.FirstCrashTick)
	} else {
		fmt.Fprintln(w, "First crash: none")
	}
	if solution.LastCart != nil {
		fmt.Fprintf(w, "Last cart: %s (tick %d)\n", engine.FormatPosition(*solution.LastCart), solution.LastCartTick)
	} else {
		fmt.Fprintln(w, "Last cart: none")
	}
	fmt.Fprintf(w, "Crashes: %d\n", solution.Crashes)

	if !render {
		return nil
	}

	removeMode := *track
	removeMode.CrashMode = engine.CrashModeRemove
	removeMode.MaxTicks = 0
	sim, err := engine.NewEngine(&removeMode)
	if err != nil {
		return err
	}
	if _, err := sim.RunUntilLastCart(maxTicks); err != nil {
		return err
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Join(sim.Render(), "\n"))
	return nil
}

// newMCPHandler serves MCP JSON-RPC messages posted over HTTP.
func newMCPHandler(client *mcp.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
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

		response := client.GetMCPServer().HandleMessage(r.Context(), body)

		w.Header().Set("Content-Type", "application/json")
		responseData, err := json.Marshal(response)
		if err != nil {
			http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
			return
		}
		w.Write(responseData)
	}
}

// newRouter combines the REST API, WebSocket endpoint and the /mcp proxy.
func newRouter(simService service.SimulationService, hub *websocket.Hub, baseURL string) http.Handler {
	mainRouter := http.NewServeMux()
	mainRouter.Handle("/", api.NewServer(simService, hub))
	mainRouter.HandleFunc("/mcp", newMCPHandler(mcp.NewClient(baseURL)))
	return mainRouter
}

// runHTTPServer starts the HTTP server and blocks until ctx is cancelled.
// If ngrok is enabled it also provisions a public tunnel. Every session is
// saved once the server has stopped taking requests.
func runHTTPServer(ctx context.Context, opts options, svc *services) error {
	logger := logging.L()

	hub := websocket.NewHub()
	go hub.Run(ctx)

	addr := opts.addr()
	mainRouter := newRouter(svc.sim, hub, "http://"+addr)

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      mainRouter,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	var wg sync.WaitGroup
	serveErr := make(chan error, 1)

	wg.Add(1)
	go func() {
		defer wg.Done()

		logger.Info("HTTP server listening", "addr", addr,
			"api", fmt.Sprintf("http://%s/api", addr),
			"websocket", fmt.Sprintf("ws://%s/ws?session=<session_id>", addr),
			"mcp", fmt.Sprintf("http://%s/mcp", addr))

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	if opts.ngrok {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runNgrokTunnel(ctx, opts, mainRouter)
		}()
	}

	var err error
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err = <-serveErr:
		logger.Error("HTTP server failed", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if shutdownErr := httpServer.Shutdown(shutdownCtx); shutdownErr != nil {
		logger.Error("HTTP server shutdown error", "error", shutdownErr)
	}

	wg.Wait()
	svc.saveAll()
	logger.Info("server stopped")
	return err
}

func runNgrokTunnel(ctx context.Context, opts options, handler http.Handler) {
	logger := logging.L().With("component", "ngrok")

	if opts.ngrokAuth == "" {
		logger.Warn("ngrok enabled but no auth token provided (use --ngrok-auth, NGROK_AUTHTOKEN, or NGROK_AUTH_TOKEN)")
		return
	}

	var tunnel ngrokConfig.Tunnel
	if opts.ngrokDomain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(opts.ngrokDomain))
		logger.Info("using custom ngrok domain", "domain", opts.ngrokDomain)
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(opts.ngrokAuth))
	if err != nil {
		logger.Error("failed to start ngrok tunnel", "error", err)
		return
	}

	go func() {
		<-ctx.Done()
		if err := tun.Close(); err != nil {
			logger.Error("failed to close ngrok tunnel", "error", err)
		}
	}()

	ngrokURL := tun.URL()
	logger.Info("ngrok tunnel established", "url", ngrokURL,
		"api", ngrokURL+"/api",
		"websocket", ngrokURL+"/ws?session=<session_id>",
		"mcp", ngrokURL+"/mcp")

	if err := http.Serve(tun, handler); err != nil && !errors.Is(err, http.ErrServerClosed) && ctx.Err() == nil {
		logger.Error("ngrok server error", "error", err)
	}
	logger.Info("ngrok tunnel closed")
}

// services are the long-lived pieces shared by the server commands.
type services struct {
	sim      service.SimulationService
	sessions *session.Manager
	configs  *config.Manager
}

// saveAll writes every in-memory session to disk.
func (s *services) saveAll() {
	if err := s.sessions.SaveAllSessions(); err != nil {
		logging.L().Error("failed to save sessions on shutdown", "error", err)
		return
	}
	logging.L().Info("sessions saved", "count", s.sessions.Count())
}

// initializeServices wires the track and session managers into the
// simulation service and starts the background maintenance routines.
func initializeServices(ctx context.Context, opts options) (*services, error) {
	configManager, err := config.NewManager(opts.tracksDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create config manager: %w", err)
	}
	if opts.defaultTrack != "" {
		if err := configManager.SetDefault(opts.defaultTrack); err != nil {
			return nil, err
		}
		logging.L().Info("default track set", "track", opts.defaultTrack)
	}

	persistence, err := session.NewFilePersistence(opts.sessionsDir, configManager)
	if err != nil {
		return nil, fmt.Errorf("failed to create session persistence: %w", err)
	}

	sessionManager := session.NewManagerWithPersistence(persistence)
	if err := sessionManager.LoadPersistedSessions(); err != nil {
		logging.L().Warn("failed to load persisted sessions", "error", err)
	}

	simService := service.NewSimulationService(sessionManager, configManager)

	go sessionCleanupRoutine(ctx, sessionManager, sessionCleanupEvery, sessionMaxAge)
	go filesystemSyncRoutine(ctx, sessionManager, persistence, configManager, filesystemSyncEvery)

	return &services{sim: simService, sessions: sessionManager, configs: configManager}, nil
}

// sessionCleanupRoutine periodically removes sessions that have not been
// accessed within maxAge.
func sessionCleanupRoutine(ctx context.Context, manager *session.Manager, every, maxAge time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := manager.CleanupExpiredSessions(maxAge); removed > 0 {
				logging.L().Info("cleaned up expired sessions", "count", removed)
			}
		}
	}
}

// filesystemSyncRoutine drops sessions from memory once their files are
// deleted from the sessions directory, and re-reads edited track files.
func filesystemSyncRoutine(ctx context.Context, manager *session.Manager, persistence session.SessionPersistence, configs *config.Manager, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pruneOrphanedSessions(manager, persistence)
			configs.RefreshCache()
		}
	}
}

func pruneOrphanedSessions(manager *session.Manager, persistence session.SessionPersistence) int {
	if persistence == nil {
		return 0
	}

	pruned := 0
	for _, sess := range manager.List() {
		if persistence.Exists(sess.ID) {
			continue
		}
		if err := manager.DeleteFromMemory(sess.ID); err == nil {
			pruned++
			logging.L().Debug("pruned session from memory", "session_id", sess.ID)
		}
	}

	if pruned > 0 {
		logging.L().Info("filesystem sync pruned orphaned sessions", "count", pruned)
	}
	return pruned
}

// runStdioMCPWithInternalServer runs an MCP stdio server.
// It reuses an API already listening on the configured address; otherwise it
// starts an internal HTTP API on a random loopback port and targets that.
func runStdioMCPWithInternalServer(ctx context.Context, opts options, simService service.SimulationService) error {
	logger := logging.L()
	externalURL := "http://" + opts.addr()
	logger.Info("checking for external API server", "url", externalURL)

	baseURL := externalURL
	if !apiAvailable(ctx, externalURL) {
		listener, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return fmt.Errorf("failed to get available port: %w", err)
		}
		baseURL = "http://" + listener.Addr().String()

		hub := websocket.NewHub()
		go hub.Run(ctx)

		httpServer := &http.Server{Handler: api.NewServer(simService, hub)}
		go func() {
			if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("internal HTTP server error", "error", err)
			}
		}()
		defer httpServer.Close()

		logger.Info("started internal HTTP server for MCP stdio", "url", baseURL)
	} else {
		logger.Info("external API server found, using it for MCP", "url", externalURL)
	}

	mcpClient := mcp.NewClient(baseURL)
	logger.Info("MCP stdio server ready", "api", baseURL)

	// stdout carries the protocol; logs stay on stderr
	if err := server.ServeStdio(mcpClient.GetMCPServer()); err != nil {
		return fmt.Errorf("MCP stdio server error: %w", err)
	}
	return nil
}

func apiAvailable(ctx context.Context, baseURL string) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/api/health", nil)
	if err != nil {
		return false
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		logging.L().Debug("API health check failed", "error", err)
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
