// Package ratelimit applies per-IP request limits to the two endpoints
// worth protecting in this service: room creation and push-channel
// connection attempts. Modeled on internal/v1/ratelimit/limiter.go, trimmed
// to the in-memory store kind this service needs — there is no
// authenticated-user tier here (no auth in scope) and no Redis-backed store
// (single-instance process, see DESIGN.md for the dropped Redis dependency).
package ratelimit

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	"go.uber.org/zap"

	"github.com/BenArtzi4/Sound-Clash-sub000/internal/logging"
	"github.com/BenArtzi4/Sound-Clash-sub000/internal/metrics"
)

// Limiter holds the rate limiter instances for the HTTP control surface.
type Limiter struct {
	roomCreate *limiter.Limiter
	wsConnect  *limiter.Limiter
}

// New builds a Limiter from formatted rates (e.g. "100-M" for 100/minute),
// the same format the teacher's config carries.
func New(roomCreateRate, wsConnectRate string) (*Limiter, error) {
	createRate, err := limiter.NewRateFromFormatted(roomCreateRate)
	if err != nil {
		return nil, err
	}
	connectRate, err := limiter.NewRateFromFormatted(wsConnectRate)
	if err != nil {
		return nil, err
	}

	return &Limiter{
		// One store each: both limiters key by client IP, so a shared store
		// would count room creations and connection attempts together.
		roomCreate: limiter.New(memory.NewStore(), createRate),
		wsConnect:  limiter.New(memory.NewStore(), connectRate),
	}, nil
}

// RoomCreate is gin middleware enforcing the per-IP room-creation limit.
func (l *Limiter) RoomCreate() gin.HandlerFunc {
	return l.middleware(l.roomCreate, "room_create")
}

// WSConnect checks the per-IP push-channel connection limit. It is called
// directly (rather than as gin middleware) because the route is registered
// against the raw upgrade handler, matching how the teacher's hub checks
// CheckWebSocket before upgrading.
func (l *Limiter) WSConnect(c *gin.Context) bool {
	ctx, err := l.wsConnect.Get(c.Request.Context(), c.ClientIP())
	if err != nil {
		logging.Error(c.Request.Context(), "rate limiter store failed", zap.Error(err))
		return true // fail open
	}
	if ctx.Reached {
		metrics.RateLimitExceededTotal.WithLabelValues("ws_connect").Inc()
		c.JSON(http.StatusTooManyRequests, gin.H{"code": "rate_limited", "message": "too many connection attempts"})
		return false
	}
	return true
}

func (l *Limiter) middleware(lim *limiter.Limiter, endpoint string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, err := lim.Get(c.Request.Context(), c.ClientIP())
		if err != nil {
			logging.Error(c.Request.Context(), "rate limiter store failed", zap.Error(err))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.FormatInt(ctx.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(ctx.Remaining, 10))

		if ctx.Reached {
			metrics.RateLimitExceededTotal.WithLabelValues(endpoint).Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"code": "rate_limited", "message": "too many requests", "retry_after": ctx.Reset,
			})
			return
		}
		c.Next()
	}
}
