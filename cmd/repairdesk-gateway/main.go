// ABOUTME: Entry point for repairdesk-gateway
// ABOUTME: Serves repair-shop tools over JSON-RPC and inspects a running or stopped gateway

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/2389/repairdesk-gateway/internal/backend"
	"github.com/2389/repairdesk-gateway/internal/config"
	"github.com/2389/repairdesk-gateway/internal/gateway"
	"github.com/2389/repairdesk-gateway/internal/store"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
                     _          _           _
 _ __ ___ _ __   __ _(_)_ __ __| | ___  ___| | __
| '__/ _ \ '_ \ / _' | | '__/ _' |/ _ \/ __| |/ /
| | |  __/ |_) | (_| | | | | (_| |  __/\__ \   <
|_|  \___| .__/ \__,_|_|_|  \__,_|\___||___/_|\_\
         |_|
`

func usage(w io.Writer) {
	fmt.Fprintln(w, "Usage: repairdesk-gateway <command>")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  serve                       Start the gateway server")
	fmt.Fprintln(w, "  health                      Check a running gateway")
	fmt.Fprintln(w, "  tools                       Print the tool catalog as markdown")
	fmt.Fprintln(w, "  audit [-limit N] [-type T] [-tool NAME]")
	fmt.Fprintln(w, "                              Show recent audit records")
}

func main() {
	if len(os.Args) < 2 {
		usage(os.Stdout)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	gateway.Version = version

	var err error
	args := os.Args[2:]
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "health":
		err = runHealth(ctx)
	case "tools":
		err = runTools(os.Stdout)
	case "audit":
		err = runAudit(ctx, os.Stdout, args)
	case "help", "-h", "--help":
		usage(os.Stdout)
		return
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads path, falling back to the built-in defaults when the file
// does not exist.
func loadConfig(path string) (*config.Config, bool, error) {
	cfg, err := config.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return config.Default(), false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("loading config: %w", err)
	}
	return cfg, true, nil
}

func runServe(ctx context.Context) error {
	configPath := config.DefaultPath()

	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, found, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Logging, os.Stdout)

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	green.Print("    ▶ ")
	if found {
		fmt.Printf("Config:    %s\n", configPath)
	} else {
		fmt.Print("Config:    ")
		gray.Println("(defaults)")
	}
	green.Print("    ▶ ")
	fmt.Printf("Backend:   %s\n", cfg.Backend.BaseURL)
	if !cfg.Tailscale.Enabled {
		green.Print("    ▶ ")
		fmt.Printf("HTTP:      %s\n", cfg.Server.HTTPAddr)
	}

	if cfg.Tailscale.Enabled {
		green.Print("    ▶ ")
		fmt.Printf("Tailscale: ")
		cyan.Print(cfg.Tailscale.Hostname)
		if cfg.Tailscale.Funnel {
			yellow.Print(" [funnel]")
		}
		if cfg.Tailscale.Ephemeral {
			gray.Print(" (ephemeral)")
		}
		fmt.Println()
	}

	if cfg.Auth.JWTSecret == "" {
		yellow.Print("    ! ")
		fmt.Println("Tokens are forwarded without local verification")
	}

	fmt.Println()

	logger.Info("starting repairdesk-gateway",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
		"backend", cfg.Backend.BaseURL,
	)

	gw, err := gateway.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating gateway: %w", err)
	}

	return gw.Run(ctx)
}

// localURL turns a listen address into a URL reachable from this host.
func localURL(addr, path string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://" + addr + path
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, port) + path
}

func runHealth(ctx context.Context) error {
	cfg, _, err := loadConfig(config.DefaultPath())
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, localURL(cfg.Server.HTTPAddr, "/health/ready"), nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d: %s", resp.StatusCode, body)
	}

	fmt.Println("healthy")
	return nil
}

func runTools(w io.Writer) error {
	cfg, _, err := loadConfig(config.DefaultPath())
	if err != nil {
		return err
	}

	client := backend.NewClient(backend.Config{BaseURL: cfg.Backend.BaseURL, Timeout: cfg.Backend.Timeout})
	registry, err := gateway.NewRegistry(client, nil, setupLogger(config.LoggingConfig{Level: "error"}, io.Discard))
	if err != nil {
		return err
	}
	defer registry.Close()

	_, err = w.Write(gateway.CatalogMarkdown(registry.ListBuiltinPacks(), ""))
	return err
}

func runAudit(ctx context.Context, w io.Writer, args []string) error {
	fset := flag.NewFlagSet("audit", flag.ContinueOnError)
	limit := fset.Int("limit", 20, "maximum records to show")
	typ := fset.String("type", "", "only show request, success or error records")
	tool := fset.String("tool", "", "only show records for this tool")
	if err := fset.Parse(args); err != nil {
		return err
	}

	cfg, _, err := loadConfig(config.DefaultPath())
	if err != nil {
		return err
	}
	if cfg.Audit.DatabasePath == "" {
		return fmt.Errorf("audit.database_path is not configured")
	}

	filter := store.AuditFilter{Limit: *limit}
	if *typ != "" {
		t := store.AuditType(*typ)
		if !t.IsValid() {
			return fmt.Errorf("invalid -type %q: want request, success or error", *typ)
		}
		filter.Type = &t
	}
	if *tool != "" {
		filter.ToolName = tool
	}

	s, err := store.NewSQLiteStore(cfg.Audit.DatabasePath)
	if err != nil {
		return fmt.Errorf("opening audit database: %w", err)
	}
	defer s.Close()

	entries, err := s.ListAuditLog(ctx, filter)
	if err != nil {
		return fmt.Errorf("listing audit log: %w", err)
	}
	printAudit(w, entries)
	return nil
}

func printAudit(w io.Writer, entries []store.AuditEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "no audit records")
		return
	}

	gray := color.New(color.FgHiBlack)
	for _, e := range entries {
		var typ string
		switch e.Type {
		case store.AuditSuccess:
			typ = color.GreenString("%-7s", e.Type)
		case store.AuditError:
			typ = color.RedString("%-7s", e.Type)
		default:
			typ = color.CyanString("%-7s", e.Type)
		}

		fmt.Fprintf(w, "%s %s %s", e.Timestamp.Local().Format(time.DateTime), typ, e.Method)
		if e.ToolName != "" {
			fmt.Fprintf(w, " %s", e.ToolName)
		}
		if e.ExecutionTimeMs != nil {
			gray.Fprintf(w, " %dms", *e.ExecutionTimeMs)
		}
		if e.Subject != "" {
			gray.Fprintf(w, " subject=%s", e.Subject)
		}
		if e.Error != "" {
			fmt.Fprintf(w, " %s", color.RedString(e.Error))
		}
		gray.Fprintf(w, " [%s]\n", e.RequestID)
	}
}
