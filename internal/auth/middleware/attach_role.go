package auth

import (
	"errors"
	"net/http"

	"github.com/mind-engage/ielts-practice/internal/rbac"
)

// AttachRoleFromDB replaces the token's role with the one stored for the
// subject, so role changes apply before the token expires. Tokens for
// users that no longer exist are rejected unless allowClaimFallback is
// set (offline/dev).
func AttachRoleFromDB(users *Users, allowClaimFallback bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			role, err := users.RoleOf(ctx, rbac.SubjectFromContext(ctx))
			switch {
			case err == nil:
				next.ServeHTTP(w, r.WithContext(rbac.WithRole(ctx, role)))
			case errors.Is(err, ErrUserNotFound) && allowClaimFallback && rbac.RoleFromContext(ctx) != "":
				next.ServeHTTP(w, r)
			case errors.Is(err, ErrUserNotFound):
				http.Error(w, "unknown user", http.StatusUnauthorized)
			default:
				http.Error(w, "forbidden", http.StatusForbidden)
			}
		})
	}
}
