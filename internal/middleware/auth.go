package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"cabnet/internal/domain"
)

const identityKey = "cabnet.identity"

// TokenVerifier resolves a bearer token to the caller.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (domain.Identity, error)
}

// Auth rejects requests without a valid bearer token and stores the
// resolved identity on the context.
func Auth(verifier TokenVerifier) gin.HandlerFunc {
	return authenticate(verifier, false)
}

// AuthWithQueryToken also accepts the token as a "token" query parameter,
// for websocket handshakes that cannot set headers.
func AuthWithQueryToken(verifier TokenVerifier) gin.HandlerFunc {
	return authenticate(verifier, true)
}

func authenticate(verifier TokenVerifier, allowQuery bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" && allowQuery {
			token = c.Query("token")
		}
		if token == "" {
			abort(c, http.StatusUnauthorized, "missing bearer token")
			return
		}

		id, err := verifier.Verify(c.Request.Context(), token)
		if err != nil {
			abort(c, http.StatusUnauthorized, err.Error())
			return
		}

		c.Set(identityKey, id)
		c.Next()
	}
}

// RequireRole rejects callers whose role is not listed. It must run after Auth.
func RequireRole(roles ...domain.ActorRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := Caller(c)
		if !ok {
			abort(c, http.StatusUnauthorized, "authentication required")
			return
		}
		for _, r := range roles {
			if id.Role == r {
				c.Next()
				return
			}
		}
		abort(c, http.StatusForbidden, "role "+string(id.Role)+" may not access this resource")
	}
}

// Caller returns the identity stored by Auth.
func Caller(c *gin.Context) (domain.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return domain.Identity{}, false
	}
	id, ok := v.(domain.Identity)
	return id, ok
}

// SetCaller stores id on the context.
func SetCaller(c *gin.Context, id domain.Identity) {
	c.Set(identityKey, id)
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

func abort(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(code, gin.H{"success": false, "message": message})
}
