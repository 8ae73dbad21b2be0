package auth

import (
	"context"

	"realtors/models"
)

type ctxKey struct{}

// WithSession returns a context carrying the caller's session.
func WithSession(ctx context.Context, sess *models.Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, sess)
}

// FromContext returns the session stored by WithSession, or nil.
func FromContext(ctx context.Context) *models.Session {
	sess, _ := ctx.Value(ctxKey{}).(*models.Session)
	return sess
}

// IsAdmin reports whether ctx carries an admin session.
func IsAdmin(ctx context.Context) bool {
	sess := FromContext(ctx)
	return sess != nil && sess.IsAdmin
}

// Actor names the caller for audit entries.
func Actor(ctx context.Context) string {
	if sess := FromContext(ctx); sess != nil {
		return sess.Email
	}
	return "public"
}
