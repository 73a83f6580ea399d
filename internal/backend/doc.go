// Package backend is the gateway's only channel to the downstream
// repair-shop REST API.
//
// A Client owns the HTTP transport and holds no credential. Each inbound
// gateway request derives its own Session:
//
//	s := client.Session(auth.CredentialFromContext(ctx))
//	eq, err := s.GetEquipment(ctx, "E1")
//
// # Error Semantics
//
// Lookup calls (search, get, list) normalize 404, 401 and 403 to an empty
// result: nil for single items, an empty slice for collections. The status
// is logged at warn level so authorization failures are not invisible.
// Every other failure, and every failure of a mutating call, is returned as
// an *Error carrying the backend's message.
package backend
