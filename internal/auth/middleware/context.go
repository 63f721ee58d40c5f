package auth

import (
	"context"

	"github.com/mind-engage/ielts-practice/internal/rbac"
)

// WithIdentity stores the authenticated subject and role.
func WithIdentity(ctx context.Context, sub, role string) context.Context {
	return rbac.WithRole(rbac.WithSubject(ctx, sub), role)
}

func SubjectFromContext(ctx context.Context) string { return rbac.SubjectFromContext(ctx) }
