// Package config handles configuration loading for repairdesk-gateway.
//
// # Overview
//
// Configuration is loaded from YAML (default) or TOML (".toml" extension)
// files with environment variable expansion. Missing values fall back to
// development defaults, then the result is validated.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from REPAIRDESK_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/repairdesk/gateway.yaml
//  3. ~/.config/repairdesk/gateway.yaml
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	auth:
//	  jwt_secret: "${REPAIRDESK_JWT_SECRET}"
//
// REPAIRDESK_BACKEND_URL, when set, replaces backend.base_url.
//
// # Configuration Sections
//
//	server:
//	  http_addr: "0.0.0.0:3001"
//
//	backend:
//	  base_url: "http://localhost:3000"
//	  timeout: "10s"
//
//	auth:
//	  jwt_secret: ""            # verify inbound bearer tokens before forwarding
//
//	audit:
//	  database_path: "/var/lib/repairdesk/audit.db"
//	  jsonl_path: "./mcp-logs.jsonl"
//
//	tools:
//	  duplicate_window: "30s"   # 0 disables duplicate repair-order suppression
//
//	tailscale:
//	  enabled: false
//	  hostname: "repairdesk-gateway"
//	  auth_key: "${TS_AUTHKEY}"
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
// The same keys are used in TOML, e.g. [backend] base_url = "...".
package config
