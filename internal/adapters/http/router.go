package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/SeatVoice/internal/adapters/signal"
	"github.com/dkeye/SeatVoice/internal/app/orch"
	"github.com/dkeye/SeatVoice/internal/config"
	"github.com/dkeye/SeatVoice/internal/domain"
)

const (
	sessionName     = "SeatVoiceSession"
	sessionTokenKey = "ct"
	queryTimeout    = 2 * time.Second
)

// ClientTokenMiddleware gives every browser a stable token kept in the signed
// session cookie. The token keys per-browser limits, never identity.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		s := sessions.Default(c)
		token, _ := s.Get(sessionTokenKey).(string)
		if token == "" {
			token = uuid.NewString()
			s.Set(sessionTokenKey, token)
			if err := s.Save(); err != nil {
				log.Error().Err(err).Str("module", "adapters.http").Msg("save session")
			}
		}
		c.Set(signal.ClientTokenKey, token)
		c.Next()
	}
}

func SetupRouter(
	ctx context.Context,
	cfg *config.Config,
	o *orch.Orchestrator,
	limiter *signal.RoomRateLimiter,
) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	store.Options(sessions.Options{Path: "/", MaxAge: 3600 * 24 * 7, HttpOnly: true})
	r.Use(sessions.Sessions(sessionName, store))
	r.Use(ClientTokenMiddleware())

	r.Static("/static", cfg.StaticPath)
	r.GET("/", func(c *gin.Context) {
		c.File(cfg.StaticPath + "/index.html")
	})

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	ctrl := signal.NewSignalWSController(o, limiter, signal.Options{
		SendBuffer: cfg.Room.SendBuffer,
		ReadLimit:  cfg.ReadLimit,
		PingPeriod: cfg.PingPeriod,
	})

	api := r.Group("/api")

	api.GET("/rooms", func(c *gin.Context) {
		qctx, cancel := context.WithTimeout(c.Request.Context(), queryTimeout)
		defer cancel()
		c.JSON(http.StatusOK, gin.H{"rooms": o.Rooms.List(qctx)})
	})

	api.GET("/rooms/:name", func(c *gin.Context) {
		room, ok := o.Rooms.GetRoom(domain.RoomName(c.Param("name")))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
			return
		}
		qctx, cancel := context.WithTimeout(c.Request.Context(), queryTimeout)
		defer cancel()
		snap, err := room.Snapshot(qctx)
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, snap)
	})

	if cfg.Mode == "debug" {
		api.DELETE("/rooms/:name", func(c *gin.Context) {
			name := domain.RoomName(c.Param("name"))
			if _, ok := o.Rooms.GetRoom(name); !ok {
				c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
				return
			}
			o.EvictRoom(name)
			log.Info().Str("module", "adapters.http").Str("room", string(name)).Msg("room evicted")
			c.Status(http.StatusNoContent)
		})
	}

	api.GET("/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"connections": o.Registry.Count(),
			"relay":       o.Relay.Stats(),
		})
	})

	api.GET("/ws/signal", func(c *gin.Context) {
		log.Debug().Str("module", "adapters.http").Str("client", c.GetString(signal.ClientTokenKey)).Msg("ws signal endpoint hit")
		ctrl.HandleSignal(ctx, c)
	})

	return r
}
