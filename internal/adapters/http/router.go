package http

import (
	"context"

	"github.com/dkeye/Jukebox/internal/adapters/signal"
	"github.com/dkeye/Jukebox/internal/app/orch"
	"github.com/dkeye/Jukebox/internal/config"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

func SignalOptions(cfg *config.Config) signal.Options {
	return signal.Options{
		ReadLimit:          cfg.ReadLimit,
		PingPeriod:         cfg.PingPeriod,
		WriteTimeout:       cfg.WriteTimeout,
		SendBuffer:         cfg.SendBuffer,
		TrustPayloadUserID: cfg.Auth.TrustPayloadUserID,
		MessageLimit:       cfg.Limits.Messages,
		ReactionLimit:      cfg.Limits.Reactions,
		LimitWindow:        cfg.Limits.Window,
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, orch *orch.Orchestrator) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	store.Options(sessions.Options{Path: "/", MaxAge: 3600 * 24 * 30, HttpOnly: true})
	r.Use(sessions.Sessions("JukeboxSessions", store))
	r.Use(GuestMiddleware())

	if cfg.StaticPath != "" {
		r.Static("/static", cfg.StaticPath)
		r.GET("/", func(c *gin.Context) {
			c.File(cfg.StaticPath + "/index.html")
		})
	}

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	ctrl := signal.NewSignalWSController(orch, SignalOptions(cfg))
	rooms := roomsHandler{orch: orch}
	r.GET("/healthz", rooms.health)

	api := r.Group("/api", AuthMiddleware(cfg.Auth.JWTSecret))
	api.GET("/rooms", rooms.list)
	api.GET("/rooms/:id", rooms.get)
	api.GET("/ws", func(c *gin.Context) {
		log.Debug().Str("module", "adapters.http").Str("guest", c.GetString(signal.CtxGuestID)).Msg("ws endpoint hit")
		ctrl.HandleSignal(ctx, c)
	})

	return r
}
