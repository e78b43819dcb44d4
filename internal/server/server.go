package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"time"

	"github.com/Nzyazin/wallettx/internal/core/handler"
	"github.com/Nzyazin/wallettx/internal/core/idgen"
	"github.com/Nzyazin/wallettx/internal/core/lock"
	"github.com/Nzyazin/wallettx/internal/core/logger"
	"github.com/Nzyazin/wallettx/internal/core/metrics"
	middlWre "github.com/Nzyazin/wallettx/internal/core/middleware"
	"github.com/Nzyazin/wallettx/internal/core/mover"
	"github.com/Nzyazin/wallettx/internal/core/repository/postgres"
	"github.com/Nzyazin/wallettx/internal/core/usecase"
	"github.com/Nzyazin/wallettx/pkg/config"
	"github.com/Nzyazin/wallettx/pkg/postgresdb"
	"github.com/Nzyazin/wallettx/pkg/redisdb"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	metricsprom "github.com/slok/go-http-metrics/metrics/prometheus"
	"github.com/slok/go-http-metrics/middleware"
	"github.com/slok/go-http-metrics/middleware/std"
)

type Server struct {
	router             *mux.Router
	log                logger.Logger
	httpServer         *http.Server
	transactionHandler *handler.TransactionHandler
	db                 *postgresdb.Database
	redis              *redisdb.Client
}

func NewServer(cfg *config.Config, log logger.Logger) (*Server, error) {
	db, err := postgresdb.NewPostgresDB(cfg.DB, log)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := postgres.Migrate(ctx, db.DB); err != nil {
		db.Close()
		return nil, err
	}

	rdb, err := redisdb.NewRedisClient(cfg.Redis, log)
	if err != nil {
		db.Close()
		return nil, err
	}

	executionMetrics, err := metrics.NewExecutionMetrics(prometheus.DefaultRegisterer)
	if err != nil {
		db.Close()
		rdb.Close()
		return nil, err
	}

	transactionRepository := postgres.NewPostgresTransactionRepo(db.DB, log)
	ledgerRepository := postgres.NewPostgresLedgerRepo(db.DB, log)
	moneyMover := mover.NewBreakerMover(ledgerRepository, mover.BreakerSettings{
		ConsecutiveFailures: cfg.Executor.BreakerFailures,
		Timeout:             cfg.Executor.BreakerTimeout,
	}, log)
	walletLock := lock.NewRedisLock(rdb.Client, lock.Options{Expiry: cfg.Executor.LockExpiry}, log)

	executor, err := usecase.NewTransactionExecutor(walletLock, moneyMover, cfg.Executor.MaxLifetime, log,
		usecase.WithStatusStore(transactionRepository),
		usecase.WithOutcomeRecorder(executionMetrics),
	)
	if err != nil {
		db.Close()
		rdb.Close()
		return nil, err
	}

	transactionUsecase := usecase.NewTransactionUsecase(transactionRepository, executor, idgen.UUIDGenerator{}, log)

	server := &Server{
		log:                log,
		router:             mux.NewRouter(),
		transactionHandler: handler.NewTransactionHandler(transactionUsecase, log),
		db:                 db,
		redis:              rdb,
	}

	server.router.Use(middlWre.RequestLogger(server.log))

	mw := middleware.New(middleware.Config{
		Recorder: metricsprom.NewRecorder(metricsprom.Config{}),
	})

	server.router.Use(func(next http.Handler) http.Handler {
		return std.Handler("", mw, next)
	})

	server.RegisterRoutes()

	return server, nil
}

func (s *Server) RegisterRoutes() {
	s.router.Use(middlWre.Recovery(s.log))
	s.transactionHandler.RegisterRoutes(s.router)
	s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	s.router.PathPrefix("/debug/pprof/").Handler(http.DefaultServeMux)
}

func (s *Server) Run(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadTimeout:       9 * time.Second,
		WriteTimeout:      12 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 6 * time.Second,
	}

	s.httpServer = srv

	return srv.ListenAndServe()
}

func (s *Server) RunTLS(addr, certFile, keyFile string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadTimeout:       9 * time.Second,
		WriteTimeout:      9 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 6 * time.Second,
		TLSConfig:         &tls.Config{MinVersion: tls.VersionTLS12},
	}

	s.httpServer = srv
	return srv.ListenAndServeTLS(certFile, keyFile)
}

func (s *Server) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	var shutdownErr error

	go func() {
		defer close(done)

		if s.httpServer != nil {
			if err := s.httpServer.Shutdown(ctx); err != nil {
				s.log.Error("failed to shutdown HTTP server", logger.ErrorField("error", err))
				shutdownErr = errors.Join(shutdownErr, fmt.Errorf("HTTP server shutdown error: %w", err))
			}
		}

		if s.db != nil {
			if err := s.db.Close(); err != nil {
				s.log.Error("failed to close database connection", logger.ErrorField("error", err))
				shutdownErr = errors.Join(shutdownErr, fmt.Errorf("database shutdown error: %w", err))
			}
		}

		if s.redis != nil {
			if err := s.redis.Close(); err != nil {
				s.log.Error("failed to close redis connection", logger.ErrorField("error", err))
				shutdownErr = errors.Join(shutdownErr, fmt.Errorf("redis shutdown error: %w", err))
			}
		}
	}()

	select {
	case <-done:
		return shutdownErr
	case <-ctx.Done():
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}
