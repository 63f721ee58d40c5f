package rbac

import (
	"net/http"
)

var defaultChecker = NewChecker(nil)

// guard lets a request through when allow returns true and answers 403
// otherwise.
func guard(allow func(r *http.Request) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !allow(r) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Require enforces a single permission.
func Require(perm string) func(http.Handler) http.Handler {
	return guard(func(r *http.Request) bool { return Can(r.Context(), perm) })
}

// RequireAny enforces that the role has at least one of the permissions.
func RequireAny(perms ...string) func(http.Handler) http.Handler {
	return guard(func(r *http.Request) bool {
		role := RoleFromContext(r.Context())
		return role != "" && defaultChecker.Any(role, perms...)
	})
}

// RequireAll enforces that the role has all of the permissions.
func RequireAll(perms ...string) func(http.Handler) http.Handler {
	return guard(func(r *http.Request) bool {
		role := RoleFromContext(r.Context())
		return role != "" && defaultChecker.All(role, perms...)
	})
}

// RequireOwnerOr admits the resource owner, or anyone holding perm.
func RequireOwnerOr(perm string, isOwner func(r *http.Request) bool) func(http.Handler) http.Handler {
	return guard(func(r *http.Request) bool { return isOwner(r) || Can(r.Context(), perm) })
}
