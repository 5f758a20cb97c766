package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"golang.org/x/term"

	"github.com/hongminglow/loandesk/internal/backend"
	"github.com/hongminglow/loandesk/internal/cli"
	"github.com/hongminglow/loandesk/internal/config"
	"github.com/hongminglow/loandesk/internal/loans"
	"github.com/hongminglow/loandesk/internal/logging"
	"github.com/hongminglow/loandesk/internal/notify"
	"github.com/hongminglow/loandesk/internal/session"
)

func main() {
	os.Exit(run())
}

func run() int {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "loanctl: %v\n", err)
		return 2
	}
	if os.Getenv("LOG_LEVEL") == "" {
		cfg.Logging.Level = "warn"
	}
	logger := logging.NewSlogLogger(logging.New(cfg.Logging, os.Stderr))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	be, err := backend.Open(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loanctl: %v\n", err)
		return 1
	}
	defer be.Close()

	notifier := notify.NewWriterNotifier(os.Stderr)
	sessions := session.NewManager(be.Auth, session.NewFileStore(cfg.SessionFile), notifier, logger)
	defer sessions.Close()

	var opts []cli.Option
	if fd := int(os.Stdin.Fd()); term.IsTerminal(fd) {
		opts = append(opts, cli.WithPasswordReader(func() ([]byte, error) { return term.ReadPassword(fd) }))
	}
	if be.Mode == config.BackendLocal {
		opts = append(opts, cli.WithReset(be.Reset))
	}
	app := cli.NewApp(sessions, loans.NewService(be.Store, notifier, logger), be, os.Stdin, os.Stdout, opts...)

	if err := app.Run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, cli.ErrUsage) {
			return 2
		}
		fmt.Fprintf(os.Stderr, "loanctl: %v\n", err)
		return 1
	}
	return 0
}
