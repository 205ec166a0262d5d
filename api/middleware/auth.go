package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/tarbouchdata/scoutscrape/models"
)

// Auth returns API-key authentication middleware. Keys arrive as either
//
//	X-API-Key: <key>
//	Authorization: Bearer <key>
//
// With no keys configured the API is open and the middleware does nothing.
// Key comparison is constant-time so response latency leaks nothing about
// how much of a guessed key matched.
func Auth(apiKeys []string) gin.HandlerFunc {
	keys := make([][]byte, 0, len(apiKeys))
	for _, k := range apiKeys {
		if k != "" {
			keys = append(keys, []byte(k))
		}
	}
	if len(keys) == 0 {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		presented := presentedKey(c)
		if presented == "" {
			abortUnauthorized(c, "missing API key: provide X-API-Key header or Authorization: Bearer <key>")
			return
		}

		pb := []byte(presented)
		for _, k := range keys {
			if len(k) == len(pb) && subtle.ConstantTimeCompare(k, pb) == 1 {
				c.Set("api_key", presented)
				c.Next()
				return
			}
		}
		abortUnauthorized(c, "invalid API key")
	}
}

// presentedKey tries X-API-Key first, then Authorization: Bearer.
func presentedKey(c *gin.Context) string {
	if key := c.GetHeader("X-API-Key"); key != "" {
		return key
	}
	if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, models.ExtractResponse{
		Success: false,
		Error: &models.ErrorDetail{
			Code:    models.ErrCodeUnauthorized,
			Message: msg,
		},
	})
}
