package main

import (
	"github.com/ilievs/powercycle/config"
	"github.com/ilievs/powercycle/logging"
)

func main() {
	cfg := config.Load()
	logger := logging.Setup(cfg.Env)

	if err := RunApplication(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("powercycle failed")
	}
}
