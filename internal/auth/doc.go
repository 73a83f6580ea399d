// Package auth scopes caller credentials to a single gateway request.
//
// # Credential Propagation
//
// The gateway never issues tokens. A bearer token presented on an inbound
// request is forwarded verbatim to the downstream REST backend, which owns
// authorization. The token travels in the request context:
//
//	ctx, err := auth.ScopeRequest(r, verifier) // installs or clears
//	token := auth.CredentialFromContext(ctx)
//
// A request without a bearer header gets an explicitly empty credential, so
// nothing can carry over from an earlier request or an outer context.
//
// # Local Verification
//
// When auth.jwt_secret is configured, presented tokens are checked with
// JWTVerifier (HS256) before being forwarded, and the "sub" claim is
// recorded with WithSubject for audit purposes. Anonymous requests still
// pass through.
package auth
