package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/sqlgate/sqlgate/pkg/httputil"
)

// BearerAuthConfig holds the shared secret every request must present.
type BearerAuthConfig struct {
	Token string
}

// VerifyBearerToken is a middleware function enforcing bearer-token
// authentication. The Authorization header must carry exactly
// "Bearer <token>" with the configured secret; anything else is rejected with
// 401 before the wrapped handler runs. Comparison is constant-time.
func VerifyBearerToken(config *BearerAuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				unauthorized(w)
				return
			}

			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok {
				unauthorized(w)
				return
			}

			if subtle.ConstantTimeCompare([]byte(token), []byte(config.Token)) != 1 {
				unauthorized(w)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="Restricted"`)
	httputil.Error(w, http.StatusUnauthorized, "Unauthorized")
}
