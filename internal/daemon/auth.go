package daemon

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"agrisync/internal/logging"
)

// requireToken rejects requests whose bearer token does not match. An empty
// token leaves the API open, which is only sensible on a loopback bind.
func (s *apiServer) requireToken(token string, next http.Handler) http.Handler {
	if token == "" {
		return next
	}
	want := []byte(token)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scheme, got, ok := strings.Cut(r.Header.Get("Authorization"), " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || subtle.ConstantTimeCompare([]byte(strings.TrimSpace(got)), want) != 1 {
			logging.WithContext(r.Context(), s.log()).Debug("api request rejected",
				logging.String("path", r.URL.Path),
				logging.String(logging.FieldEventType, "api_unauthorized"))
			w.Header().Set("WWW-Authenticate", `Bearer realm="agrisync"`)
			s.writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}
