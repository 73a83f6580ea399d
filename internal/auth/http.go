// ABOUTME: Bearer credential extraction from HTTP requests
// ABOUTME: Reads the Authorization header and optionally verifies the token before forwarding

package auth

import (
	"context"
	"net/http"
	"strings"
)

// ExtractBearerToken extracts a bearer token from the Authorization header value.
// Returns "" for a missing header or any non-bearer scheme. The scheme is
// matched case-insensitively.
func ExtractBearerToken(authHeader string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(authHeader), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// ScopeRequest returns a context carrying r's bearer credential, or an
// explicitly cleared credential when r has none.
//
// When verifier is non-nil a presented token must verify; otherwise the
// verifier's error is returned and the context is left unscoped.
// Unauthenticated requests are never rejected here: the downstream backend
// decides whether anonymous access is allowed.
func ScopeRequest(r *http.Request, verifier TokenVerifier) (context.Context, error) {
	ctx := r.Context()
	token := ExtractBearerToken(r.Header.Get("Authorization"))
	if token == "" || verifier == nil {
		return WithCredential(ctx, token), nil
	}

	subject, err := verifier.Verify(token)
	if err != nil {
		return ctx, err
	}
	return WithSubject(WithCredential(ctx, token), subject), nil
}
