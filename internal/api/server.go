package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/clipmark/clipmark-agent/internal/capture"
	"github.com/clipmark/clipmark-agent/internal/clips"
	"github.com/clipmark/clipmark-agent/internal/extract"
	"github.com/clipmark/clipmark-agent/internal/marks"
	"github.com/clipmark/clipmark-agent/internal/session"
	"github.com/clipmark/clipmark-agent/internal/usage"
)

// HistoryLister reads past extraction jobs for the jobs endpoint.
type HistoryLister interface {
	List(ctx context.Context, limit int) ([]extract.Job, error)
}

// ExportSink stores generated export files.
type ExportSink interface {
	Save(filename string, data []byte) error
}

type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

type ServerConfig struct {
	Port     int
	Marks    *marks.Store
	Queue    *extract.Queue
	Sessions session.Repository
	Usage    usage.Store
	History  HistoryLister
	Clips    *clips.Library
	Exports  ExportSink
	Caps     capture.Capabilities
	Profile  capture.Profile
	Logger   *slog.Logger

	StartTime time.Time
	AgentID   string
	Version   string
}

func NewServer(cfg ServerConfig) *Server {
	router := NewRouter(cfg)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf("127.0.0.1:%d", cfg.Port),
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 0,
			IdleTimeout:  60 * time.Second,
		},
		logger: cfg.Logger,
	}
}

func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Addr() string {
	return s.httpServer.Addr
}
