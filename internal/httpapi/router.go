package httpapi

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/BenArtzi4/Sound-Clash-sub000/internal/hub"
	"github.com/BenArtzi4/Sound-Clash-sub000/internal/middleware"
	"github.com/BenArtzi4/Sound-Clash-sub000/internal/ratelimit"
)

// NewRouter assembles the gin.Engine for the whole process: the HTTP
// control surface, the push-channel upgrade route, and the metrics/health
// endpoints, following the teacher's main.go layout (recovery, then the
// correlation-ID and CORS middleware, then routes).
func NewRouter(srv *Server, h *hub.Hub, limiter *ratelimit.Limiter, allowedOrigins []string) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowOrigins = allowedOrigins
	corsCfg.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsCfg.AllowHeaders = []string{"Origin", "Content-Type", middleware.HeaderXCorrelationID}
	router.Use(cors.New(corsCfg))

	router.GET("/health", srv.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api/games")
	{
		if limiter != nil {
			api.POST("", limiter.RoomCreate(), srv.CreateGame)
		} else {
			api.POST("", srv.CreateGame)
		}
		api.GET("/:code", srv.GetGame)
		api.POST("/:code/kick/:team_name", srv.KickTeam)
	}

	router.GET("/ws/:role/:code", func(c *gin.Context) {
		if limiter != nil && !limiter.WSConnect(c) {
			return
		}
		h.ServeWS(c)
	})

	return router
}
