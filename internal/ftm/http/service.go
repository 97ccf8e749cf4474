package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/ftm-project/ftm/internal/errors"
	"github.com/ftm-project/ftm/internal/ftm"
)

// Service exposes an Engine over the /api/* routes registered in
// route.go, plus the embedded static UI.
type Service struct {
	engine *ftm.Engine
	port   int

	router *gin.Engine
	server *http.Server

	onShutdown func()
}

// OnShutdown registers fn to run when a client calls POST /api/shutdown
// (the CLI's `ftm stop`). The checkout command uses
// this to trigger its own graceful Engine.Stop()+process exit sequence.
func (s *Service) OnShutdown(fn func()) {
	s.onShutdown = fn
}

func NewService(engine *ftm.Engine, port int) *Service {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	if err := router.SetTrustedProxies(nil); err != nil {
		log.Err(err).Msg("Failed to set trusted proxies")
	}

	router.Use(
		errors.RecoveryMiddleware(),
		errors.ErrorHandlerMiddleware(),
		gin.LoggerWithWriter(log.Logger, "/api/health"),
		corsMiddleware(),
	)

	s := &Service{
		engine: engine,
		port:   port,
		router: router,
	}

	s.initRouter()
	return s
}

func (s *Service) addr() string {
	return fmt.Sprintf("127.0.0.1:%d", s.port)
}

func (s *Service) Start() error {
	s.server = &http.Server{
		Addr:    s.addr(),
		Handler: s.router,
	}

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Err(err).Msg("Failed to start HTTP server")
		}
	}()

	log.Info().Msg("Starting HTTP server on " + s.addr())
	return nil
}

func (s *Service) ListenAndServe() error {
	s.server = &http.Server{
		Addr:    s.addr(),
		Handler: s.router,
	}

	log.Info().Msg("Starting HTTP server on " + s.addr())
	return s.server.ListenAndServe()
}

func (s *Service) Stop() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		log.Debug().Err(err).Msg("Failed to shutdown HTTP server")
		return nil
	}

	log.Info().Msg("HTTP server stopped")
	return nil
}

func (s *Service) GetRouter() *gin.Engine {
	return s.router
}
