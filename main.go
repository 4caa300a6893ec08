// Command gridpath starts the grid pathfinding server.
//
// It supports two modes:
//  1. "server" (default) runs the HTTP server exposing the REST API, WebSocket, and an /mcp HTTP endpoint
//  2. "stdio-mcp" runs an MCP stdio server and spins up an internal HTTP API if none is available
//
// Flags control host/port, the maps directory, where sessions are stored, debug
// logging, and optional ngrok tunneling for external access during development.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/inconshreveable/log15/v3"
	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"

	"github.com/wricardo/gridpath/api"
	"github.com/wricardo/gridpath/logging"
	"github.com/wricardo/gridpath/nav/config"
	"github.com/wricardo/gridpath/nav/service"
	"github.com/wricardo/gridpath/nav/session"
	"github.com/wricardo/gridpath/transport/mcp"
	"github.com/wricardo/gridpath/transport/websocket"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "Grid Path Server"
)

// Session store backends
const (
	storeMemory = "memory"
	storeFile   = "file"
	storeRedis  = "redis"
	storeMongo  = "mongo"
)

const (
	sessionMaxAge   = 24 * time.Hour
	cleanupInterval = time.Hour
	syncInterval    = 5 * time.Second
)

// Configuration flags control how the server starts and which services are enabled.
// Every flag falls back to an environment variable.
var (
	port         = flag.Int("port", envInt("PORT", 8080), "HTTP server port")
	host         = flag.String("host", envString("HOST", "localhost"), "HTTP server host")
	mapsDir      = flag.String("maps-dir", envString("MAPS_DIR", "maps"), "Directory containing map files")
	sessionStore = flag.String("session-store", envString("SESSION_STORE", storeFile), "Session store: memory, file, redis or mongo")
	sessionsDir  = flag.String("sessions-dir", envString("SESSIONS_DIR", "sessions"), "Directory for the file session store")
	redisAddr    = flag.String("redis-addr", envString("REDIS_ADDR", "localhost:6379"), "Redis address for the redis session store")
	sessionTTL   = flag.Duration("session-ttl", 7*24*time.Hour, "Expiry of sessions in the redis store (0 keeps them)")
	mongoURI     = flag.String("mongo-uri", envString("MONGO_URI", "mongodb://localhost:27017"), "MongoDB URI for the mongo session store")
	mongoDB      = flag.String("mongo-db", envString("MONGO_DB", "gridpath"), "MongoDB database for the mongo session store")
	debug        = flag.Bool("debug", envBool("DEBUG"), "Enable debug logging")
	version      = flag.Bool("version", false, "Show version information")
	ngrokEnabled = flag.Bool("ngrok", false, "Enable ngrok tunnel")
	ngrokAuth    = flag.String("ngrok-auth", "", "Ngrok auth token (or use NGROK_AUTHTOKEN env var)")
	ngrokDomain  = flag.String("ngrok-domain", "", "Custom ngrok domain (optional)")
)

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func envBool(key string) bool {
	v, _ := strconv.ParseBool(os.Getenv(key))
	return v
}

func init() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS] [MODE]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "%s v%s\n\n", AppName, Version)
		fmt.Fprintf(os.Stderr, "Available modes:\n")
		fmt.Fprintf(os.Stderr, "  server, http     Run HTTP server with API, WebSocket, and MCP endpoint (default)\n")
		fmt.Fprintf(os.Stderr, "  stdio-mcp        Run MCP stdio server with internal HTTP server\n")
		fmt.Fprintf(os.Stderr, "  mcp-stdio, mcp   Aliases for stdio-mcp\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s                              # HTTP server on port 8080, file sessions\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -session-store redis         # share sessions through Redis\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s stdio-mcp                    # MCP stdio server\n", os.Args[0])
	}
}

func main() {
	// .env is optional
	envErr := godotenv.Load()

	flag.Parse()

	if *version {
		fmt.Printf("%s v%s\n", AppName, Version)
		os.Exit(0)
	}

	// stdout carries MCP traffic in stdio mode, so logs always go to stderr
	logger := logging.New(os.Stderr, *debug, "app", "gridpath")
	if envErr == nil {
		logger.Info("loaded environment variables from .env file")
	} else if !errors.Is(envErr, os.ErrNotExist) {
		logger.Warn("error loading .env file", "err", envErr)
	}

	mode := "server"
	if args := flag.Args(); len(args) > 0 {
		mode = args[0]
	}
	logger.Info("starting", "name", AppName, "version", Version, "mode", mode)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := websocket.NewHub(logger)
	go hub.Run(ctx)

	navService, sessions, closeStore, err := initializeServices(ctx, logger, hub)
	if err != nil {
		logger.Crit("failed to initialize services", "err", err)
		os.Exit(1)
	}
	defer closeStore()

	go sessionCleanupRoutine(ctx, sessions, logger)
	go storeSyncRoutine(ctx, sessions, logger)

	switch mode {
	case "stdio-mcp", "mcp-stdio", "mcp":
		err = runStdioMCPWithInternalServer(navService, hub, logger)
	case "server", "http":
		err = runHTTPServer(ctx, navService, hub, logger)
	default:
		err = fmt.Errorf("unknown mode %q, use 'server' (default) or 'stdio-mcp'", mode)
	}

	if err != nil {
		logger.Crit("server failed", "err", err)
		cancel()
		closeStore()
		os.Exit(1)
	}
}

// newRouter combines the REST API, WebSocket and an /mcp endpoint targeting baseURL
func newRouter(navService service.NavService, hub *websocket.Hub, baseURL string, logger log15.Logger) http.Handler {
	router := mux.NewRouter()
	router.Handle("/mcp", mcp.NewClient(baseURL).HTTPHandler())
	router.PathPrefix("/").Handler(api.NewServer(navService, hub, logger))
	return router
}

// runHTTPServer serves until SIGINT/SIGTERM. If ngrok is enabled (via flag or
// environment), it also provisions a public tunnel serving the same router.
func runHTTPServer(ctx context.Context, navService service.NavService, hub *websocket.Hub, logger log15.Logger) error {
	addr := net.JoinHostPort(*host, strconv.Itoa(*port))
	router := newRouter(navService, hub, "http://"+addr, logger)

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stop)

	serveErr := make(chan error, 1)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()

		logger.Info("HTTP server listening", "addr", addr)
		logger.Info("endpoints",
			"api", "http://"+addr+"/api",
			"ws", "ws://"+addr+"/ws?session=<session_id>",
			"mcp", "http://"+addr+"/mcp")

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	if ngrokShouldRun() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runNgrokTunnel(ctx, router, logger)
		}()
	}

	var runErr error
	select {
	case sig := <-stop:
		logger.Info("shutting down", "signal", sig)
	case runErr = <-serveErr:
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "err", err)
	}

	wg.Wait()
	logger.Info("server stopped")
	return runErr
}

// ngrokShouldRun checks the flag first, then NGROK_ENABLED
func ngrokShouldRun() bool {
	if *ngrokEnabled {
		return true
	}
	return envBool("NGROK_ENABLED")
}

// ngrokAuthToken resolves the token from the flag or either env spelling
func ngrokAuthToken() string {
	if *ngrokAuth != "" {
		return *ngrokAuth
	}
	if token := os.Getenv("NGROK_AUTHTOKEN"); token != "" {
		return token
	}
	return os.Getenv("NGROK_AUTH_TOKEN")
}

// runNgrokTunnel serves handler through an ngrok HTTP endpoint until ctx is done
func runNgrokTunnel(ctx context.Context, handler http.Handler, logger log15.Logger) {
	authToken := ngrokAuthToken()
	if authToken == "" {
		logger.Warn("ngrok enabled but no auth token provided (use --ngrok-auth, NGROK_AUTHTOKEN, or NGROK_AUTH_TOKEN)")
		return
	}

	domain := *ngrokDomain
	if domain == "" {
		domain = os.Getenv("NGROK_DOMAIN")
	}

	var tunnel ngrokConfig.Tunnel
	if domain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(domain))
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	logger.Info("starting ngrok tunnel", "domain", domain)
	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(authToken))
	if err != nil {
		logger.Error("failed to start ngrok tunnel", "err", err)
		return
	}

	go func() {
		<-ctx.Done()
		if err := tun.Close(); err != nil {
			logger.Warn("failed to close ngrok tunnel", "err", err)
		}
	}()

	url := tun.URL()
	logger.Info("ngrok tunnel established", "url", url, "api", url+"/api", "mcp", url+"/mcp")

	if err := http.Serve(tun, handler); err != nil && !errors.Is(err, http.ErrServerClosed) && ctx.Err() == nil {
		logger.Error("ngrok server error", "err", err)
	}
	logger.Info("ngrok tunnel closed")
}

// initializeServices wires the map manager, the configured session store and the
// navigation service. The returned func releases store connections.
func initializeServices(ctx context.Context, logger log15.Logger, notifier service.Notifier) (service.NavService, *session.Manager, func(), error) {
	maps, err := config.NewManager(*mapsDir, logger)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create map manager: %w", err)
	}

	persistence, closeStore, err := newPersistence(ctx, maps)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create session persistence: %w", err)
	}

	var sessions *session.Manager
	if persistence == nil {
		sessions = session.NewManager(logger)
	} else {
		sessions = session.NewManagerWithPersistence(persistence, logger)
	}
	if err := sessions.LoadPersistedSessions(); err != nil {
		logger.Warn("failed to load persisted sessions", "err", err)
	}

	var opts []service.Option
	if notifier != nil {
		opts = append(opts, service.WithNotifier(notifier))
	}
	navService := service.NewNavService(sessions, maps, logger, opts...)

	logger.Info("services ready", "maps_dir", *mapsDir, "session_store", *sessionStore, "sessions", sessions.Count())
	return navService, sessions, closeStore, nil
}

// newPersistence builds the session store selected by -session-store. A nil
// persistence keeps sessions in memory only.
func newPersistence(ctx context.Context, maps service.MapManager) (session.SessionPersistence, func(), error) {
	noop := func() {}

	switch *sessionStore {
	case storeMemory:
		return nil, noop, nil

	case storeFile:
		persistence, err := session.NewFilePersistence(*sessionsDir, maps)
		if err != nil {
			return nil, nil, err
		}
		return persistence, noop, nil

	case storeRedis:
		client := redis.NewClient(&redis.Options{Addr: *redisAddr})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("redis %s: %w", *redisAddr, err)
		}
		return session.NewRedisPersistence(client, maps, *sessionTTL), func() { client.Close() }, nil

	case storeMongo:
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(*mongoURI))
		if err != nil {
			return nil, nil, fmt.Errorf("mongo connect: %w", err)
		}
		if err := client.Ping(connectCtx, nil); err != nil {
			client.Disconnect(context.Background())
			return nil, nil, fmt.Errorf("mongo ping: %w", err)
		}
		closeFn := func() {
			disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			client.Disconnect(disconnectCtx)
		}
		return session.NewMongoPersistence(client, *mongoDB, "", maps), closeFn, nil

	default:
		return nil, nil, fmt.Errorf("unknown session store %q", *sessionStore)
	}
}

// sessionCleanupRoutine periodically drops sessions that have not been accessed
// within sessionMaxAge.
func sessionCleanupRoutine(ctx context.Context, manager *session.Manager, logger log15.Logger) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := manager.CleanupExpiredSessions(sessionMaxAge); removed > 0 {
				logger.Debug("session cleanup", "removed", removed)
			}
		}
	}
}

// storeSyncRoutine removes sessions from memory when their stored copy was deleted externally
func storeSyncRoutine(ctx context.Context, manager *session.Manager, logger log15.Logger) {
	ticker := time.NewTicker(syncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if pruned := manager.PruneMissing(); pruned > 0 {
				logger.Info("store sync pruned orphaned sessions", "count", pruned)
			}
		}
	}
}

// runStdioMCPWithInternalServer runs an MCP stdio server.
// It reuses an external API at http://localhost:8080 when one answers; otherwise it
// starts an internal HTTP API on a random loopback port and targets that.
func runStdioMCPWithInternalServer(navService service.NavService, hub *websocket.Hub, logger log15.Logger) error {
	baseURL := "http://localhost:8080"
	logger.Info("checking for external API server", "url", baseURL)

	testClient := &http.Client{Timeout: 2 * time.Second}
	resp, err := testClient.Get(baseURL + "/healthz")
	if err == nil {
		resp.Body.Close()
	}

	if err == nil && resp.StatusCode < 500 {
		logger.Info("external API server found, using it for MCP", "url", baseURL)
	} else {
		listener, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return fmt.Errorf("failed to get available port: %w", err)
		}
		baseURL = "http://" + listener.Addr().String()

		httpServer := &http.Server{Handler: api.NewServer(navService, hub, logger)}
		go func() {
			if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("internal HTTP server error", "err", err)
			}
		}()
		defer httpServer.Close()

		logger.Info("internal HTTP server started for MCP stdio", "url", baseURL)
	}

	mcpClient := mcp.NewClient(baseURL)
	logger.Info("MCP stdio server ready", "api", baseURL)
	if err := server.ServeStdio(mcpClient.GetMCPServer()); err != nil {
		return fmt.Errorf("MCP stdio server error: %w", err)
	}
	return nil
}
