package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"
	"golang.org/x/crypto/bcrypt"

	apperrors "keyserve/internal/errors"
)

// AdminAuthConfig configures the admin basic-auth gate. When SecretHash is
// set it is treated as a bcrypt hash and takes precedence over the plaintext
// Secret; the plaintext path uses a constant-time compare.
type AdminAuthConfig struct {
	Username   string
	Secret     string
	SecretHash string
	Logger     *slog.Logger
}

// AdminAuth protects the admin surface with HTTP basic auth.
func AdminAuth(cfg AdminAuthConfig) func(next http.Handler) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			username, password, ok := r.BasicAuth()
			if !ok || !credentialsMatch(cfg, username, password) {
				logger.WarnContext(r.Context(), "admin auth rejected",
					"remote_addr", r.RemoteAddr,
					"path", r.URL.Path,
				)

				w.Header().Set("WWW-Authenticate", `Basic realm="keyserve admin"`)
				render.Render(w, r, apperrors.NewErrorResponse(apperrors.ErrUnauthorized))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func credentialsMatch(cfg AdminAuthConfig, username, password string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(cfg.Username)) == 1

	var passOK bool
	if cfg.SecretHash != "" {
		passOK = bcrypt.CompareHashAndPassword([]byte(cfg.SecretHash), []byte(password)) == nil
	} else {
		passOK = subtle.ConstantTimeCompare([]byte(password), []byte(cfg.Secret)) == 1
	}

	return userOK && passOK
}
