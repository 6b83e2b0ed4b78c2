package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"keepsake/internal/config"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		printCLIError(os.Stderr, []string{err.Error(), "hint: fix the config file named above or list values with: keepsake config list"})
		return 1
	}
	if path := cfg.TrustedProjectConfigPath; path != "" {
		printWarning(os.Stderr, fmt.Sprintf("warning: using trusted project config from %s", path))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(cfg).ExecuteContext(ctx); err != nil {
		printCLIError(os.Stderr, formatCLIError(err))
		return 1
	}
	return 0
}
