// Package packs provides the tool registry behind the gateway's tools/list
// and tools/call methods.
//
// # Overview
//
// Tools are grouped into built-in packs. Each tool pairs a static
// ToolDefinition (name, description, JSON schema) with a ToolHandler.
// Tool names are globally unique; registering a name twice fails with
// ErrToolCollision and leaves the registry unchanged.
//
// # Dispatch
//
// The Registry owns the single backend.Client. ExecuteTool derives a
// backend session from the credential in the call's context, so concurrent
// calls never observe each other's token:
//
//	ctx = auth.WithCredential(ctx, token)
//	result, err := registry.ExecuteTool(ctx, "validate_availability", args)
//
// Handler panics are recovered and returned as ErrToolPanicked.
//
// # Usage
//
//	registry := packs.NewRegistry(client, logger)
//	registry.RegisterBuiltinPack(builtins.RepairPack(builtins.Options{}))
//	defs := registry.ListTools() // registration order
package packs
