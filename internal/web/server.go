package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/vitos/loop_scanner/internal/usecase"
	"go.uber.org/zap"
)

type Server struct {
	router  *http.ServeMux
	server  *http.Server
	service *usecase.ScanService
	logger  *zap.Logger
}

func NewServer(port int, service *usecase.ScanService, logger *zap.Logger) *Server {
	s := &Server{
		router:  http.NewServeMux(),
		service: service,
		logger:  logger,
	}
	s.routes()
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("GET /healthz", s.handleHealth)

	// Loops of the latest scan
	s.router.HandleFunc("GET /api/loops", s.handleLoops)

	// Scans
	s.router.HandleFunc("GET /api/scans", s.handleScans)
	s.router.HandleFunc("POST /api/scan", s.handleTriggerScan)

	// Normalized rates behind the latest scan
	s.router.HandleFunc("GET /api/rates", s.handleRates)
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	s.logger.Info("Starting web server", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
