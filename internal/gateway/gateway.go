// ABOUTME: Gateway orchestrator that wires the backend client, tool registry and JSON-RPC server
// ABOUTME: Owns the HTTP server, audit sinks and optional tailnet node lifecycle

package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"tailscale.com/tsnet"

	"github.com/2389/repairdesk-gateway/internal/auth"
	"github.com/2389/repairdesk-gateway/internal/backend"
	"github.com/2389/repairdesk-gateway/internal/builtins"
	"github.com/2389/repairdesk-gateway/internal/config"
	"github.com/2389/repairdesk-gateway/internal/dedupe"
	"github.com/2389/repairdesk-gateway/internal/mcp"
	"github.com/2389/repairdesk-gateway/internal/packs"
	"github.com/2389/repairdesk-gateway/internal/store"
)

// Version is reported by /health and the initialize handshake. Set by main.
var Version = "dev"

// ServiceName identifies the gateway in health responses.
const ServiceName = "repairdesk-gateway"

// duplicateCacheSize bounds the duplicate-submission cache.
const duplicateCacheSize = 10_000

// Gateway orchestrates the repairdesk-gateway server components.
type Gateway struct {
	config      *config.Config
	client      *backend.Client
	registry    *packs.Registry
	dedupe      *dedupe.Cache
	auditDB     *store.SQLiteStore
	auditFile   *store.JSONLSink
	mcpServer   *mcp.Server
	httpServer  *http.Server
	tsnetServer *tsnet.Server
	logger      *slog.Logger
	startedAt   time.Time

	// mcpEndpoint is the advertised URL of the JSON-RPC endpoint
	mcpEndpoint string

	addrMu sync.Mutex
	addr   net.Addr
	ready  chan struct{}
}

// NewRegistry builds a registry holding the repair pack. dup may be nil.
func NewRegistry(client *backend.Client, dup *dedupe.Cache, logger *slog.Logger) (*packs.Registry, error) {
	registry := packs.NewRegistry(client, logger.With("component", "pack-registry"))
	pack := builtins.RepairPack(builtins.Options{
		Duplicates: dup,
		Logger:     logger.With("component", "repair-pack"),
	})
	if err := registry.RegisterBuiltinPack(pack); err != nil {
		return nil, fmt.Errorf("registering repair pack: %w", err)
	}
	return registry, nil
}

// openAudit opens the configured audit sinks. Either may be nil.
func openAudit(cfg config.AuditConfig) (*store.SQLiteStore, *store.JSONLSink, error) {
	var db *store.SQLiteStore
	if cfg.DatabasePath != "" {
		var err error
		db, err = store.NewSQLiteStore(cfg.DatabasePath)
		if err != nil {
			return nil, nil, fmt.Errorf("opening audit database: %w", err)
		}
	}

	var file *store.JSONLSink
	if cfg.JSONLPath != "" {
		var err error
		file, err = store.NewJSONLSink(cfg.JSONLPath)
		if err != nil {
			if db != nil {
				_ = db.Close()
			}
			return nil, nil, fmt.Errorf("opening audit log: %w", err)
		}
	}
	return db, file, nil
}

// newVerifier returns a JWT verifier when a secret is configured, else nil.
func newVerifier(cfg config.AuthConfig) (auth.TokenVerifier, error) {
	if cfg.JWTSecret == "" {
		return nil, nil
	}
	v, err := auth.NewJWTVerifier([]byte(cfg.JWTSecret))
	if err != nil {
		return nil, fmt.Errorf("creating JWT verifier: %w", err)
	}
	return v, nil
}

// New creates a new Gateway instance with the given configuration.
func New(cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	if logger == nil {
		logger = slog.Default()
	}

	client := backend.NewClient(backend.Config{
		BaseURL:   cfg.Backend.BaseURL,
		Timeout:   cfg.Backend.Timeout,
		UserAgent: ServiceName + "/" + Version,
		Logger:    logger.With("component", "backend"),
	})

	var dup *dedupe.Cache
	if cfg.Tools.DuplicateWindow > 0 {
		dup = dedupe.New(cfg.Tools.DuplicateWindow, duplicateCacheSize)
	}

	registry, err := NewRegistry(client, dup, logger)
	if err != nil {
		if dup != nil {
			dup.Close()
		}
		return nil, err
	}

	verifier, err := newVerifier(cfg.Auth)
	if err != nil {
		if dup != nil {
			dup.Close()
		}
		return nil, err
	}

	auditDB, auditFile, err := openAudit(cfg.Audit)
	if err != nil {
		if dup != nil {
			dup.Close()
		}
		return nil, err
	}

	var sinks store.Multi
	if auditDB != nil {
		sinks = append(sinks, auditDB)
	}
	if auditFile != nil {
		sinks = append(sinks, auditFile)
	}

	gw := &Gateway{
		config:      cfg,
		client:      client,
		registry:    registry,
		dedupe:      dup,
		auditDB:     auditDB,
		auditFile:   auditFile,
		logger:      logger.With("component", "gateway"),
		startedAt:   time.Now(),
		mcpEndpoint: determineMCPEndpoint(cfg),
		ready:       make(chan struct{}),
	}

	mcpCfg := mcp.Config{
		Registry:      registry,
		Logger:        logger,
		TokenVerifier: verifier,
		Name:          ServiceName,
		Version:       Version,
	}
	if len(sinks) > 0 {
		mcpCfg.Audit = sinks
	}
	gw.mcpServer, err = mcp.NewServer(mcpCfg)
	if err != nil {
		_ = gw.closeComponents()
		return nil, fmt.Errorf("creating MCP server: %w", err)
	}

	gw.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           gw.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	gw.logger.Info("gateway configured",
		"backend", client.BaseURL(),
		"tools", registry.ToolCount(),
		"token_verification", verifier != nil,
		"duplicate_window", cfg.Tools.DuplicateWindow,
		"audit_db", cfg.Audit.DatabasePath,
		"audit_jsonl", cfg.Audit.JSONLPath,
	)
	return gw, nil
}

// Handler returns the gateway's HTTP routes.
func (g *Gateway) Handler() http.Handler {
	mux := http.NewServeMux()

	// Health endpoints - no auth required
	mux.HandleFunc("GET /health", g.handleHealth)
	mux.HandleFunc("GET /health/ready", g.handleReady)
	mux.HandleFunc("GET /tools", g.handleTools)

	g.mcpServer.RegisterRoutes(mux)
	return mux
}

// Registry returns the tool registry.
func (g *Gateway) Registry() *packs.Registry {
	return g.registry
}

// MCPEndpoint returns the advertised JSON-RPC endpoint URL.
func (g *Gateway) MCPEndpoint() string {
	return g.mcpEndpoint
}

// Ready is closed once the HTTP listener is bound.
func (g *Gateway) Ready() <-chan struct{} {
	return g.ready
}

// Addr returns the bound listener address, or nil before Ready.
func (g *Gateway) Addr() net.Addr {
	g.addrMu.Lock()
	defer g.addrMu.Unlock()
	return g.addr
}

// determineMCPEndpoint builds the endpoint URL from the listen address.
func determineMCPEndpoint(cfg *config.Config) string {
	if cfg.Tailscale.Enabled {
		scheme := "http"
		if cfg.Tailscale.HTTPS || cfg.Tailscale.Funnel {
			scheme = "https"
		}
		return scheme + "://" + cfg.Tailscale.Hostname + "/mcp"
	}
	host, port, err := net.SplitHostPort(cfg.Server.HTTPAddr)
	if err != nil {
		return "http://" + cfg.Server.HTTPAddr + "/mcp"
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, port) + "/mcp"
}

// startServer serves HTTP in a goroutine, returning an error channel.
func (g *Gateway) startServer(ln net.Listener) chan error {
	errCh := make(chan error, 1)

	g.addrMu.Lock()
	g.addr = ln.Addr()
	g.addrMu.Unlock()
	close(g.ready)

	go func() {
		g.logger.Info("HTTP server listening", "addr", ln.Addr().String(), "mcp_endpoint", g.mcpEndpoint)
		if err := g.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	return errCh
}

// waitForShutdownSignal waits for context cancellation or server error.
func (g *Gateway) waitForShutdownSignal(ctx context.Context, errCh chan error) error {
	select {
	case <-ctx.Done():
		g.logger.Info("context canceled, initiating shutdown")
		return nil
	case err := <-errCh:
		g.logger.Error("server error", "error", err)
		return err
	}
}

// Run starts the gateway and blocks until ctx is canceled or the server fails.
// Returns nil on graceful shutdown.
func (g *Gateway) Run(ctx context.Context) error {
	ln, err := g.setupListener(ctx)
	if err != nil {
		_ = g.closeComponents()
		return err
	}

	errCh := g.startServer(ln)
	serverErr := g.waitForShutdownSignal(ctx, errCh)

	shutdownErr := g.gracefulShutdown()

	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
// The run context is already canceled at this point.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return g.Shutdown(ctx)
}

// appendCloseError appends an error with label if err is non-nil.
func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

// closeComponents releases everything except the HTTP server and tailnet node.
func (g *Gateway) closeComponents() error {
	var errs []error
	if g.auditDB != nil {
		errs = appendCloseError(errs, "audit database close", g.auditDB.Close())
	}
	if g.auditFile != nil {
		errs = appendCloseError(errs, "audit log close", g.auditFile.Close())
	}
	if g.dedupe != nil {
		g.dedupe.Close()
	}
	if g.registry != nil {
		g.registry.Close()
	}
	return errors.Join(errs...)
}

// Shutdown gracefully stops the HTTP server and releases resources.
// In-flight requests finish (and are audited) before sinks close.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway")

	var errs []error
	errs = appendCloseError(errs, "HTTP shutdown", g.httpServer.Shutdown(ctx))

	if g.tsnetServer != nil {
		errs = appendCloseError(errs, "tailscale shutdown", g.tsnetServer.Close())
	}

	if err := g.closeComponents(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %w", errors.Join(errs...))
	}
	return nil
}
