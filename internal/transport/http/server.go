package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/seenup/seenup-server/internal/auth"
	"github.com/seenup/seenup-server/internal/config"
	"github.com/seenup/seenup-server/internal/core"
	"github.com/seenup/seenup-server/internal/store"
)

// Services bundles the core services the transport exposes.
type Services struct {
	Presence   *core.Presence
	Dispatcher *core.Dispatcher
	Channels   *core.Channels
	Messages   *core.Messages
	Hub        *core.Hub
}

// NewServer builds the HTTP server with REST and websocket routes.
func NewServer(svc Services, authService *auth.Service, st store.Store, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(LoggerMiddleware(logger), gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		c.String(stdhttp.StatusOK, "ok")
	})

	apiHandlers := NewAPIHandlers(authService, logger)
	channelHandlers := NewChannelHandlers(st, svc.Channels, logger)

	api := router.Group("/api")
	api.POST("/register", apiHandlers.Register)
	api.POST("/login", apiHandlers.Login)

	authed := api.Group("", AuthMiddleware(authService, logger))
	authed.POST("/channels", channelHandlers.CreateChannel)
	authed.GET("/channels", channelHandlers.ListChannels)
	authed.GET("/channels/:name/admin", channelHandlers.IsAdmin)

	wsHandler := NewWSHandler(authService, svc.Presence, svc.Dispatcher, svc.Channels, svc.Messages, svc.Hub, st, logger)
	router.GET("/ws", gin.WrapH(wsHandler))

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}
