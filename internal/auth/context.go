// ABOUTME: Per-request credential scoping carried through context.Context
// ABOUTME: Provides WithCredential/CredentialFromContext so no credential is shared across requests

package auth

import (
	"context"
)

// credentialContextKey is the key type for storing the bearer credential in context.Context.
type credentialContextKey struct{}

// subjectContextKey is the key type for the locally verified token subject.
type subjectContextKey struct{}

// WithCredential returns a new context carrying the bearer token for one
// inbound request. An empty token explicitly marks the request as
// unauthenticated, shadowing anything an outer context carried.
func WithCredential(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, credentialContextKey{}, token)
}

// CredentialFromContext returns the bearer token attached to ctx, or "" when
// the request is unauthenticated.
func CredentialFromContext(ctx context.Context) string {
	token, _ := ctx.Value(credentialContextKey{}).(string)
	return token
}

// WithSubject attaches the "sub" claim of a locally verified token.
func WithSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, subjectContextKey{}, subject)
}

// SubjectFromContext returns the verified subject, or "" if none.
func SubjectFromContext(ctx context.Context) string {
	sub, _ := ctx.Value(subjectContextKey{}).(string)
	return sub
}
