package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/hongminglow/loandesk/internal/backend"
	"github.com/hongminglow/loandesk/internal/config"
	"github.com/hongminglow/loandesk/internal/loans"
	"github.com/hongminglow/loandesk/internal/logging"
	"github.com/hongminglow/loandesk/internal/notify"
	"github.com/hongminglow/loandesk/internal/server"
)

func main() {
	loadLocalEnv()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := logging.NewSlogLogger(logging.New(cfg.Logging, os.Stdout))
	ctx := context.Background()

	be, err := backend.Open(ctx, cfg, logger)
	if err != nil {
		logger.Error(ctx, "open backend", "error", err)
		os.Exit(1)
	}
	defer be.Close()

	loanSvc := loans.NewService(be.Store, notify.NewLogNotifier(logger), logger)
	srv := server.New(cfg, server.Deps{
		Auth:  be.Auth,
		Loans: loanSvc,
		Ping:  be.Ping,
		Log:   logger,
	})

	go func() {
		logger.Info(ctx, "loandesk API listening", "addr", srv.Addr(), "backend", string(cfg.Mode))
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(ctx, "http server error", "error", err)
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctxShutdown); err != nil {
		logger.Error(ctx, "graceful shutdown error", "error", err)
	}
}

func loadLocalEnv() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found; relying on existing environment")
	}
}
