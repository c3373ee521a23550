// Command server runs the Sound Clash game orchestrator: the Room Registry,
// the Connection Hub's push-channel upgrade route, and the HTTP control
// surface, wired together and served behind graceful shutdown, following
// the teacher's cmd/v1/session/main.go shape.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/BenArtzi4/Sound-Clash-sub000/internal/catalog"
	"github.com/BenArtzi4/Sound-Clash-sub000/internal/config"
	"github.com/BenArtzi4/Sound-Clash-sub000/internal/httpapi"
	"github.com/BenArtzi4/Sound-Clash-sub000/internal/hub"
	"github.com/BenArtzi4/Sound-Clash-sub000/internal/logging"
	"github.com/BenArtzi4/Sound-Clash-sub000/internal/ratelimit"
	"github.com/BenArtzi4/Sound-Clash-sub000/internal/room"
)

const (
	catalogTimeout = 5 * time.Second
	sweepInterval  = 10 * time.Minute
)

func main() {
	for _, path := range []string{".env", "../../.env"} {
		if err := godotenv.Load(path); err == nil {
			break
		}
	}

	cfg, err := config.Load()
	if err != nil {
		panic(err) // no logger yet; config failed fast before we can construct one
	}

	if err := logging.Initialize(cfg.GoEnv != "production"); err != nil {
		panic(err)
	}

	cat := catalog.NewHTTPClient(cfg.CatalogAddr, catalogTimeout)
	registry := room.NewRegistry(cat, catalogTimeout, cfg.IdleTTL, sweepInterval)
	defer registry.Shutdown()

	h := hub.NewHub(registry, cfg.AllowedOrigins)

	limiter, err := ratelimit.New(cfg.RateLimitAPIGlobal, cfg.RateLimitWsConnect)
	if err != nil {
		logging.Error(nil, "failed to construct rate limiter", zap.Error(err))
		os.Exit(1)
	}

	srv := httpapi.NewServer(registry, cfg.DefaultMaxRounds, cfg.DefaultGenres)
	router := httpapi.NewRouter(srv, h, limiter, cfg.AllowedOrigins)

	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logging.Info(nil, "sound clash server starting", zap.String("port", cfg.Port))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Error(nil, "server failed", zap.Error(err))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logging.Info(nil, "shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logging.Error(nil, "server forced to shutdown", zap.Error(err))
	}

	logging.Info(nil, "server exiting")
}
