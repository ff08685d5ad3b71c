package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/elbartohub/myWhisper/internal/conf"
	"github.com/elbartohub/myWhisper/internal/errors"
	"github.com/elbartohub/myWhisper/internal/pipeline"
	"github.com/elbartohub/myWhisper/internal/speech"
)

// Service is the HTTP front end for the transcription pipeline.
type Service struct {
	conf       *conf.Config
	pipeline   *pipeline.Pipeline
	downloader *speech.Downloader

	router *gin.Engine
	server *http.Server
}

func NewService(cfg *conf.Config, pl *pipeline.Pipeline, downloader *speech.Downloader) *Service {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	// Handle error from SetTrustedProxies
	if err := router.SetTrustedProxies(nil); err != nil {
		log.Err(err).Msg("Failed to set trusted proxies")
	}

	// Middleware
	router.Use(
		errors.RecoveryMiddleware(),
		errors.ErrorHandlerMiddleware(),
		gin.LoggerWithWriter(log.Logger, "/health"),
		corsMiddleware(),
	)

	s := &Service{
		conf:       cfg,
		pipeline:   pl,
		downloader: downloader,
		router:     router,
	}

	s.initRouter()
	return s
}

func (s *Service) Start() error {

	s.server = &http.Server{
		Addr:    s.conf.Addr,
		Handler: s.router,
	}

	go func() {
		// Handle error from Run
		if err := s.server.ListenAndServe(); err != nil {
			log.Err(err).Msg("Failed to start HTTP server")
		}
	}()

	log.Info().Msg("Starting HTTP server on " + s.conf.Addr)

	return nil
}

func (s *Service) ListenAndServe() error {

	s.server = &http.Server{
		Addr:    s.conf.Addr,
		Handler: s.router,
	}

	log.Info().Msg("Starting HTTP server on " + s.conf.Addr)
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
