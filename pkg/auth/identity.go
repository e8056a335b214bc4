package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"

	"chatdb/pkg/config"
	"chatdb/pkg/logger"
	"chatdb/pkg/utils"
)

// Role represents the resolved caller role for a request.
type Role int

const (
	RoleUnauth Role = iota
	RoleFrontend
	RoleBackend
	RoleAdmin
)

// SecConfig mirrors the security-related configuration used to drive
// authentication, CORS and rate limiting behavior.
type SecConfig struct {
	AllowedOrigins []string
	RPS            float64
	Burst          int
	IPWhitelist    []string
	BackendKeys    map[string]struct{}
	FrontendKeys   map[string]struct{}
	AdminKeys      map[string]struct{}
}

// Identity is the verified caller identity injected into the request
// context. The tracker trusts it as-is; verification beyond the HMAC check
// belongs to the identity provider issuing the signature.
type Identity struct {
	UserID string
	Email  string
}

type ctxIdentityKey struct{}

// IdentityFromContext returns the verified identity, or zero when the
// caller is unauthenticated.
func IdentityFromContext(ctx context.Context) Identity {
	if v := ctx.Value(ctxIdentityKey{}); v != nil {
		if id, ok := v.(Identity); ok {
			return id
		}
	}
	return Identity{}
}

// WithIdentity returns ctx carrying the given identity. Exported for tests.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxIdentityKey{}, id)
}

// RequireSignedUser verifies HMAC signature headers and injects the
// verified user identity into the request context. Backend and admin
// callers may omit the signature and pass identity headers through as-is.
func RequireSignedUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		role := r.Header.Get("X-Role-Name")
		userID := strings.TrimSpace(r.Header.Get("X-User-ID"))
		email := strings.TrimSpace(r.Header.Get("X-User-Email"))
		sig := strings.TrimSpace(r.Header.Get("X-User-Signature"))

		if role == "backend" || role == "admin" {
			if sig == "" {
				// Trusted caller without a signature; accept the identity
				// headers if present.
				if userID != "" {
					r = r.WithContext(WithIdentity(r.Context(), Identity{UserID: userID, Email: email}))
				}
				next.ServeHTTP(w, r)
				return
			}
			// signature present -> fall through to verification
		}

		if sig == "" && userID == "" {
			// anonymous caller: no identity is injected. Handlers that
			// require one reject downstream; the feed serves its empty
			// snapshot instead.
			next.ServeHTTP(w, r)
			return
		}
		if sig == "" || userID == "" {
			logger.Warn("missing_signature_headers", "path", r.URL.Path, "remote", r.RemoteAddr)
			utils.JSONError(w, http.StatusUnauthorized, "missing signature headers")
			return
		}

		keys := config.GetSigningKeys()
		if len(keys) == 0 {
			logger.Error("no_signing_keys_configured")
			utils.JSONError(w, http.StatusInternalServerError, "server misconfigured: no signing secrets available")
			return
		}

		ok := false
		for k := range keys {
			mac := hmac.New(sha256.New, []byte(k))
			mac.Write([]byte(userID))
			expected := hex.EncodeToString(mac.Sum(nil))
			if hmac.Equal([]byte(expected), []byte(sig)) {
				ok = true
				break
			}
		}
		if !ok {
			logger.Warn("invalid_signature", "user", userID)
			utils.JSONError(w, http.StatusUnauthorized, "invalid signature")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), Identity{UserID: userID, Email: email})))
	})
}
