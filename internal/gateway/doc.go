// Package gateway wires the repairdesk-gateway components together and runs
// the HTTP server.
//
// # Components
//
//   - backend.Client: REST client for the repair-shop backend
//   - packs.Registry: tool descriptors and handlers (the repair pack)
//   - dedupe.Cache: duplicate create_repair_order guard, when tools.duplicate_window > 0
//   - store sinks: SQLite and/or JSONL audit trail
//   - mcp.Server: the JSON-RPC endpoint
//
// # HTTP Endpoints
//
//   - POST /mcp: JSON-RPC 2.0 tool calls
//   - GET /health: liveness with tool count
//   - GET /health/ready: 200 when the backend answers, 503 otherwise
//   - GET /tools: HTML tool catalog (?format=markdown for the source)
//
// # Listeners
//
// By default the gateway listens on server.http_addr. With tailscale.enabled
// it joins the tailnet through tsnet instead and serves on :80, on :443 with
// tailnet certificates (https), or publicly through Funnel (funnel).
//
// # Lifecycle
//
//	gw, err := gateway.New(cfg, logger)
//	if err != nil {
//		return err
//	}
//	return gw.Run(ctx) // blocks until ctx is canceled
//
// Shutdown drains in-flight requests for up to five seconds, then closes the
// audit sinks so every request that completed is recorded.
package gateway
