package middleware

import (
	"math"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/flardop/Advanced-Retro-sub001/internal/common"
	"github.com/flardop/Advanced-Retro-sub001/internal/ratelimit"
	"github.com/flardop/Advanced-Retro-sub001/internal/server/response"
)

// RateLimit gates a route group with limit requests per window,
// keyed by scope and the caller (user id, or client IP when anonymous).
// A limiter failure lets the request through.
func RateLimit(limiter ratelimit.Limiter, scope string, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		who := UserID(c)
		if who == "" {
			who = "ip:" + c.ClientIP()
		}

		res, err := limiter.Check(c.Request.Context(), scope+":"+who, limit, window)
		if err != nil {
			log.WithError(err).WithField("scope", scope).Warn("Rate limiter unavailable")
			c.Next()
			return
		}

		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		if !res.Allowed {
			retry := int(math.Ceil(time.Until(res.ResetAt).Seconds()))
			if retry < 1 {
				retry = 1
			}
			c.Header("Retry-After", strconv.Itoa(retry))
			log.WithFields(log.Fields{"scope": scope, "key": who}).Debug("rate limited")
			response.Error(c, common.ErrRateLimited)
			return
		}
		c.Next()
	}
}
