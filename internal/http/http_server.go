package http

// this is entry point of the http request handlers

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"gitlab.com/judgeflow.net/internal/adapter/crypto"
	"gitlab.com/judgeflow.net/internal/adapter/metrics"
	"gitlab.com/judgeflow.net/internal/config"
	"gitlab.com/judgeflow.net/internal/core/ports/primary"
	"gitlab.com/judgeflow.net/internal/core/ports/secondary"
	"gitlab.com/judgeflow.net/internal/core/services/submission"
	"gitlab.com/judgeflow.net/internal/core/services/worker"
	"gitlab.com/judgeflow.net/internal/handlers"
	"gitlab.com/judgeflow.net/internal/handlers/health"
	"gitlab.com/judgeflow.net/internal/handlers/submissions"
	"gitlab.com/judgeflow.net/internal/handlers/workers"
)

type ServiceProvider struct {
	submissionService submission.ISubmissionService
	workerService     worker.IWorkerRegistrationService
	jobs              secondary.JobStore
	metrics           *metrics.Metrics
}

func NewServiceProvider(
	submissionService submission.ISubmissionService,
	workerService worker.IWorkerRegistrationService,
	jobs secondary.JobStore,
	m *metrics.Metrics,
) *ServiceProvider {
	return &ServiceProvider{
		submissionService: submissionService,
		workerService:     workerService,
		jobs:              jobs,
		metrics:           m,
	}
}

type Server struct {
	router          *mux.Router
	srv             *http.Server
	Port            int
	ServiceName     string
	ServiceProvider ServiceProvider
	httpCfg         *config.HTTPConfig
	jwtCfg          *config.JwtConfig
	logger          primary.Logger
}

func NewServer(serviceName string, serviceProvider ServiceProvider, httpCfg *config.HTTPConfig, jwtCfg *config.JwtConfig, logger primary.Logger) *Server {
	return &Server{
		Port:            httpCfg.Port,
		ServiceName:     serviceName,
		ServiceProvider: serviceProvider,
		httpCfg:         httpCfg,
		jwtCfg:          jwtCfg,
		logger:          logger,
	}
}

func (s *Server) Init() error {
	if s.ServiceProvider.submissionService == nil || s.ServiceProvider.jobs == nil {
		return errors.New("submission service and job store are required")
	}

	r := mux.NewRouter()
	submissions.
		NewSubmissionHandler(s.ServiceProvider.submissionService, s.httpCfg, handlers.New(s.jwtCfg, crypto.NewJWTService(s.jwtCfg)), s.logger).
		RegisterRoutes(r)
	if s.ServiceProvider.workerService != nil {
		workers.NewHandler(s.ServiceProvider.workerService, s.logger).Register(r)
	}
	health.NewHandler(s.ServiceProvider.jobs).Register(r)
	r.Handle("/metrics", s.ServiceProvider.metrics.Handler()).Methods("GET")
	s.router = r
	return nil
}

// Handler exposes the router, mostly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start(ctx context.Context, errCh chan<- error) {
	// write deadlines are set per message on websocket streams
	s.srv = &http.Server{
		Addr:        fmt.Sprintf(":%d", s.Port),
		Handler:     s.router,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
		BaseContext: func(_ net.Listener) context.Context { return ctx },
	}

	// Start the server in a goroutine
	go func() {
		s.logger.Info("Server listening", "addr", s.srv.Addr, "service", s.ServiceName)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Server error", "error", err)
			errCh <- err
		}
	}()
}

func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Shutting down http server...")
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}
