package main

import (
	"os"

	"github.com/yigit/unilife/internal/bootstrap"
	"github.com/yigit/unilife/internal/config"
	"github.com/yigit/unilife/internal/pkg/logger"
	"github.com/yigit/unilife/internal/server"
)

func main() {
	configPath := config.GetEnv("UNILIFE_CONFIG", bootstrap.DefaultConfigPath)

	srv, err := server.NewServer(configPath)
	if err != nil {
		// Error details are logged within NewServer's setup functions
		logger.Error().Err(err).Msg("Failed to initialize server")
		os.Exit(1)
	}

	// Blocks until shutdown signal
	if err := srv.Run(); err != nil {
		logger.Error().Err(err).Msg("Server execution failed or shutdown encountered errors")
		os.Exit(1)
	}

	logger.Info().Msg("Application finished gracefully.")
}
