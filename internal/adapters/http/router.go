package http

import (
	"context"
	"net/http"
	"time"

	"github.com/dkeye/Duet/internal/adapters/signal"
	"github.com/dkeye/Duet/internal/app"
	"github.com/dkeye/Duet/internal/config"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type healthResponse struct {
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
	ActiveRooms int       `json:"activeRooms"`
	ActiveUsers int       `json:"activeUsers"`
}

func SetupRouter(ctx context.Context, cfg *config.Config, hub *app.Hub) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	ctrl := signal.NewSignalWSController(hub, signal.Options{
		ReadLimit:      cfg.ReadLimit,
		PingPeriod:     cfg.PingPeriod,
		PongWait:       cfg.PongWait,
		WriteWait:      cfg.WriteWait,
		SendBuffer:     cfg.SendBuffer,
		AllowedOrigins: cfg.AllowedOrigins,
	})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, healthResponse{
			Status:      "ok",
			Timestamp:   time.Now().UTC(),
			ActiveRooms: hub.Registry.RoomCount(),
			ActiveUsers: hub.Registry.ParticipantCount(),
		})
	})

	if cfg.Mode == "debug" {
		r.GET("/rooms", func(c *gin.Context) {
			c.JSON(http.StatusOK, hub.Registry.Snapshot())
		})
	}

	r.GET("/ws", func(c *gin.Context) {
		ctrl.HandleSignal(ctx, c)
	})

	log.Info().Str("module", "adapters.http").Str("mode", cfg.Mode).Msg("router setup")
	return r
}
