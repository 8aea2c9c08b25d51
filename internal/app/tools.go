package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/vilonda/portal/config"
	"github.com/vilonda/portal/internal/migrations"
)

// RunMigration is the body of the repair commands. It returns the process exit code.
func RunMigration(name string, fn migrations.Func) int {
	cfg, err := config.LoadForTools()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return 1
	}

	a, err := Initialize(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize application: %v\n", err)
		return 1
	}
	defer func() { _ = a.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if _, err := migrations.Run(ctx, name, fn, a.DB, a.Logger, a.Metrics); err != nil {
		return 1
	}
	return 0
}
