// Command loader creates the schema and bulk-loads review exports and
// product snapshots into the relational store.
package main

import (
	"os"

	"github.com/rs/zerolog/log"

	"trendsensei/internal/adapters/observability"
	"trendsensei/internal/shared"
)

func main() {
	cfg := shared.Load()
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel)

	if err := newRootCmd(cfg).Execute(); err != nil {
		log.Error().Err(err).Msg("loader failed")
		os.Exit(1)
	}
}
