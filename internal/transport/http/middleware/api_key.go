package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"apiverse/internal/app"
	"apiverse/internal/transport/http/response"
)

const APIKeyHeader = "X-API-Key"

// AuthAPIKey resolves the caller from exact API-key material. Used by the
// embeddable widget; usage is charged to the key owner.
func AuthAPIKey(keys *app.APIKeyService) gin.HandlerFunc {
	return func(c *gin.Context) {
		rawKey := strings.TrimSpace(c.GetHeader(APIKeyHeader))
		if rawKey == "" {
			response.Error(c, http.StatusForbidden, response.CodeForbidden, "API key header missing")
			c.Abort()
			return
		}

		user, err := keys.ResolveUser(rawKey)
		if err != nil {
			if errors.Is(err, app.ErrInvalidAPIKey) {
				response.Error(c, http.StatusForbidden, response.CodeForbidden, "invalid API key")
			} else {
				response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "API key lookup failed")
			}
			c.Abort()
			return
		}

		c.Set(ContextUserIDKey, user.ID)
		c.Set(ContextEmailKey, user.Email)
		c.Next()
	}
}
