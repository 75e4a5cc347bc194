package main

import (
	"context"

	"github.com/joho/godotenv"

	"introchat/internal/app"
	"introchat/pkg/config"
	"introchat/pkg/logger"
	"introchat/pkg/shutdown"
)

// build metadata - set via ldflags during build/release
var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	_ = godotenv.Load(".env")
	logger.Init()

	flags := config.ParseConfigFlags()
	fileCfg, fileExists, err := config.ParseConfigFile(flags)
	if err != nil {
		shutdown.Abort("config file parse failed", err, "", 0)
	}
	envCfg, envRes := config.ParseConfigEnvs()

	eff, err := config.LoadEffectiveConfig(flags, fileCfg, fileExists, envCfg, envRes)
	if err != nil {
		shutdown.Abort("config resolution failed", err, "", 0)
	}

	a, err := app.New(eff, version, commit, buildDate)
	if err != nil {
		shutdown.Abort("startup failed", err, eff.DBPath, 0)
	}

	ctx, cancel := shutdown.SetupSignalHandler(context.Background())
	defer cancel()

	if err := a.Run(ctx); err != nil {
		shutdown.Abort("server exited", err, eff.DBPath, 0)
	}
	logger.Info("server_stopped")
}
