// README: Bearer-token auth middleware; stores the verified caller uid on the gin context.
package middleware

import (
	"net/http"
	"strings"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"

	"routedesk/internal/infra"
)

const callerUIDKey = "caller_uid"

// Auth rejects requests without a valid bearer token. Websocket clients that
// cannot set headers may pass the token as the access_token query parameter.
// Roles are never read from the token; services reload them from the store.
func Auth(verifier infra.TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := bearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		token, err := verifier.VerifyIDToken(c.Request.Context(), raw)
		if err != nil {
			log.WithField("path", c.FullPath()).Warnf("token rejected: %v", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(callerUIDKey, token.UID)
		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if header == "" {
		if q := c.Query("access_token"); q != "" {
			return q, true
		}
		return "", false
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}

// CallerUID returns the uid set by Auth, or "" on unauthenticated routes.
func CallerUID(c *gin.Context) string {
	return c.GetString(callerUIDKey)
}
