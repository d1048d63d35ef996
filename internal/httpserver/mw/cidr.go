package mw

import (
	"net/http"

	"github.com/MrSnakeDoc/sortmark/internal/logger"
	"github.com/MrSnakeDoc/sortmark/internal/utils"
)

// AllowOnlyCIDRS lets through callers whose IP is in allowed. An empty list disables the check.
// trustProxy should be true only behind a trusted reverse proxy.
func AllowOnlyCIDRS(allowed []string, trustProxy bool, log logger.Logger) func(http.Handler) http.Handler {
	m := utils.NewIPMatcher(allowed)
	if m.IsEmpty() {
		log.Debug("AllowOnlyCIDRS: empty matcher, passthrough mode")
		return func(next http.Handler) http.Handler { return next }
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := utils.ClientIP(r, trustProxy)
			if !m.Allow(ip) {
				log.Warn("rejected caller outside allowed CIDRs",
					logger.String("ip", ip),
					logger.String("path", r.URL.Path))
				writeDetail(w, http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
