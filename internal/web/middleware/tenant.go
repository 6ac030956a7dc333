package middleware

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/JonMunkholm/rosterimport/internal/core"
)

var tenantPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// Tenant resolves the tenant from header and stores it, together with the
// client IP and User-Agent, on the request context. Requests without a
// valid tenant are rejected with 400.
func Tenant(header string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tenantID := strings.TrimSpace(r.Header.Get(header))
			if tenantID == "" {
				writeJSONError(w, http.StatusBadRequest, "missing "+header+" header", "TENANT_MISSING")
				return
			}
			if !tenantPattern.MatchString(tenantID) {
				writeJSONError(w, http.StatusBadRequest, "invalid "+header+" header", "TENANT_INVALID")
				return
			}

			ctx := core.ContextWithTenant(r.Context(), tenantID)
			ctx = core.ContextWithIPAddress(ctx, ClientIP(r))
			ctx = core.ContextWithUserAgent(ctx, r.UserAgent())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
