// WagerVault - pooled-stake wagering with escrowed settlement
package main

import (
	"context"
	"os"

	"github.com/mbd888/wagervault/internal/config"
	"github.com/mbd888/wagervault/internal/logging"
	"github.com/mbd888/wagervault/internal/server"
)

// Build info - set by ldflags
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	logger := logging.New("info", "text")

	logger.Info("starting wagervault",
		"version", Version,
		"commit", Commit,
		"build_time", BuildTime,
	)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"env", cfg.Env,
		"dice_platform_fee_bps", cfg.DicePlatformFeeBps,
		"bet_platform_fee_bps", cfg.BetPlatformFeeBps,
		"arbiter_fee_bps", cfg.ArbiterFeeBps,
	)

	srv, err := server.New(cfg, server.WithLogger(logger))
	if err != nil {
		logger.Error("failed to create server", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	if err := srv.Run(ctx); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
