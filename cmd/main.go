package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Nzyazin/wallettx/internal/core/logger"
	"github.com/Nzyazin/wallettx/internal/server"
	"github.com/Nzyazin/wallettx/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, cleanup, err := logger.NewLogger(logger.Options{Dir: cfg.Log.Dir, Level: cfg.Log.Level})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	srv, err := server.NewServer(cfg, log)
	if err != nil {
		log.Error("Failed to create server", logger.ErrorField("error", err))
		return
	}

	go func() {
		log.Info("Starting server",
			logger.StringField("addr", cfg.Server.Addr),
			logger.BoolField("tls", cfg.Server.TLSEnabled()))

		var err error
		if cfg.Server.TLSEnabled() {
			err = srv.RunTLS(cfg.Server.Addr, cfg.Server.TLSCertFile, cfg.Server.TLSKeyFile)
		} else {
			err = srv.Run(cfg.Server.Addr)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed", logger.ErrorField("error", err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server shutdown failed", logger.ErrorField("error", err))
	}

	log.Info("Server exited properly")
}
