package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"lostandfound-exchange/config"
	"lostandfound-exchange/handler"
)

// NewRouter /api 下的接口都需要认证
func NewRouter(cfg config.ServerConfig, h *handler.Handlers) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), LogMiddleware())

	router.GET("/health", h.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api", AuthMiddleware([]byte(cfg.JWTSecret)))
	{
		api.POST("/lost", h.CreateLost)
		api.GET("/lost/:id", h.GetLost)
		api.PUT("/lost/:id/status/:status", h.UpdateLostStatus)

		api.POST("/found", h.CreateFound)
		api.GET("/found/:id", h.GetFound)
		api.PUT("/found/:id/status/:status", h.UpdateFoundStatus)
		api.POST("/found/:id/claims", RateLimitMiddleware(cfg.RateLimit, cfg.Burst), h.SubmitClaim)

		api.GET("/recommendations", h.Recommendations)
		api.GET("/tags", h.Tags)

		api.GET("/claims", h.MyClaims)
		api.POST("/claims/:id/review/:action", h.ReviewClaim)

		api.GET("/messages", h.Messages)
		api.GET("/messages/unread", h.UnreadMessages)
		api.GET("/messages/:id", h.ReadMessage)
		api.POST("/messages/send/:user_id", h.SendMessage)
	}
	return router
}

type Server struct {
	srv *http.Server
}

func New(cfg config.ServerConfig, h *handler.Handlers) *Server {
	return &Server{srv: &http.Server{Addr: cfg.Addr, Handler: NewRouter(cfg, h)}}
}

// Start 阻塞直到 Shutdown 被调用
func (s *Server) Start() error {
	log.WithField("addr", s.srv.Addr).Info("Starting server...")
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
