package middleware

import (
	"net/http"

	"github.com/firmsync/tenantcore/internal/domain/user"
)

// RequireRole returns middleware that restricts access to users with one of the given roles.
func RequireRole(roles ...user.Role) func(http.Handler) http.Handler {
	allowed := make(map[user.Role]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u := UserFromContext(r.Context())
			if u == nil {
				writeCoded(w, http.StatusUnauthorized, CodeUnauthenticated, "authorization required")
				return
			}

			if !allowed[u.Role] {
				writeCoded(w, http.StatusForbidden, CodeForbidden, "forbidden")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequirePlatformAdmin restricts access to the platform admin roles. It is
// the single authority for which roles count as platform admins; the tenant
// gate uses the same predicate.
func RequirePlatformAdmin() func(http.Handler) http.Handler {
	return RequireRole(user.RolePlatformAdmin, user.RoleSuperAdmin)
}
