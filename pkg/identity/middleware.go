package identity

import (
	"errors"
	"net/http"

	"github.com/marmos91/hostkit/internal/logger"
)

// Middleware rejects requests that m cannot authenticate with 401 and a
// challenge. Authenticated principals are stored in the request context.
func Middleware(m Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, err := m.Authenticate(r)
			if err != nil {
				if !errors.Is(err, ErrNoCredentials) {
					logger.DebugCtx(r.Context(), "Authentication failed",
						logger.KeyRealm, m.Realm(), logger.KeyError, err)
				}
				w.Header().Set("WWW-Authenticate", m.Challenge())
				http.Error(w, "Authentication required", http.StatusUnauthorized)
				return
			}

			if lc := logger.FromContext(r.Context()); lc != nil {
				lc.Principal = p.Name
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

// RequireRole blocks principals without role with 403.
// Must be used after Middleware.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := PrincipalFromContext(r.Context())
			if p == nil {
				http.Error(w, "Authentication required", http.StatusUnauthorized)
				return
			}

			if !p.HasRole(role) {
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
