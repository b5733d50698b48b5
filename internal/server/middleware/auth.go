// Package middleware contains the gin middleware for identity, access logging,
// panic recovery and rate limiting.
package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/flardop/Advanced-Retro-sub001/internal/auth"
	"github.com/flardop/Advanced-Retro-sub001/internal/common"
	"github.com/flardop/Advanced-Retro-sub001/internal/server/response"
)

const claimsKey = "auth_claims"

// Authenticate parses an optional bearer token. Invalid tokens are rejected,
// missing ones leave the request anonymous.
func Authenticate(tokens *auth.Tokens) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.Next()
			return
		}

		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			response.Error(c, common.ErrUnauthorized)
			return
		}

		claims, err := tokens.Parse(strings.TrimSpace(raw))
		if err != nil {
			log.WithError(err).WithField("path", c.FullPath()).Debug("Rejected bearer token")
			response.Error(c, common.ErrUnauthorized)
			return
		}

		c.Set(claimsKey, claims)
		c.Next()
	}
}

// RequireUser aborts anonymous requests.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if Claims(c) == nil {
			response.Error(c, common.ErrUnauthorized)
			return
		}
		c.Next()
	}
}

// RequireAdmin aborts requests without an admin token.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := Claims(c)
		if claims == nil {
			response.Error(c, common.ErrUnauthorized)
			return
		}
		if !claims.IsAdmin() {
			response.Error(c, common.ErrNotAdmin)
			return
		}
		c.Next()
	}
}

// Claims returns the verified token claims or nil.
func Claims(c *gin.Context) *auth.Claims {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil
	}
	claims, _ := v.(*auth.Claims)
	return claims
}

// UserID returns the authenticated user id or "".
func UserID(c *gin.Context) string {
	if claims := Claims(c); claims != nil {
		return claims.Subject
	}
	return ""
}

// UserEmail returns the e-mail carried by the token, if any.
func UserEmail(c *gin.Context) string {
	if claims := Claims(c); claims != nil {
		return claims.Email
	}
	return ""
}
