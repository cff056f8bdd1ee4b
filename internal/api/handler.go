// Package api exposes the automation engine over HTTP: strategy CRUD,
// lifecycle actions, status queries, and a WebSocket event stream.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"autotrader/internal/engine"
	"autotrader/internal/events"
	"autotrader/internal/monitor"
	"autotrader/pkg/crypto"
	"autotrader/pkg/db"
)

// Server wires HTTP endpoints around the engine facade.
type Server struct {
	Router    *gin.Engine
	Engine    engine.Service
	DB        *db.Database
	Bus       *events.Bus
	Metrics   *monitor.Metrics
	Keys      *crypto.Keyring
	JWTSecret string

	http *http.Server
}

// Config wires a Server. Keys may be nil; the credentials endpoint then
// reports encryption as unavailable.
type Config struct {
	Addr      string
	Engine    engine.Service
	DB        *db.Database
	Bus       *events.Bus
	Metrics   *monitor.Metrics
	Keys      *crypto.Keyring
	JWTSecret string
}

// NewServer builds the router and middleware stack.
func NewServer(cfg Config) *Server {
	r := gin.New()

	// Middleware order matters: recovery first, CORS last before routes.
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(RequestLogger(cfg.Metrics))
	r.Use(RateLimitMiddleware())
	r.Use(TimeoutMiddleware(30 * time.Second))
	r.Use(CORSMiddleware())

	s := &Server{
		Router:    r,
		Engine:    cfg.Engine,
		DB:        cfg.DB,
		Bus:       cfg.Bus,
		Metrics:   cfg.Metrics,
		Keys:      cfg.Keys,
		JWTSecret: cfg.JWTSecret,
		http:      &http.Server{Addr: cfg.Addr, Handler: r},
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.Router.GET("/health", s.health)

	api := s.Router.Group("/api")
	{
		auth := api.Group("/auth")
		{
			auth.POST("/register", s.registerUser)
			auth.POST("/login", s.loginUser)
		}

		protected := api.Group("")
		protected.Use(AuthMiddleware(s.JWTSecret))
		{
			protected.GET("/status", s.getSystemStatus)

			protected.GET("/strategies", s.listStrategies)
			protected.POST("/strategies", s.createStrategy)
			protected.GET("/strategies/:id", s.getStrategy)
			protected.PUT("/strategies/:id", s.updateStrategy)
			protected.DELETE("/strategies/:id", s.deleteStrategy)

			protected.POST("/strategies/:id/start", s.startStrategy)
			protected.POST("/strategies/:id/pause", s.pauseStrategy)
			protected.POST("/strategies/:id/resume", s.resumeStrategy)
			protected.POST("/strategies/:id/stop", s.stopStrategy)
			protected.POST("/strategies/:id/reset", s.resetStrategy)
			protected.POST("/strategies/:id/execute", s.executeStrategy)

			protected.GET("/strategies/:id/status", s.getStrategyStatus)
			protected.GET("/strategies/:id/signals", s.getStrategySignals)
			protected.GET("/strategies/:id/trades", s.getStrategyTrades)

			protected.PUT("/broker/credentials", s.putBrokerCredentials)

			protected.GET("/events/ws", s.websocket)
		}
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC()})
}

// Start serves until Shutdown is called or the listener fails.
func (s *Server) Start() error {
	err := s.http.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
