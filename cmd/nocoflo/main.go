package main

import (
	"os"

	"github.com/architeacher/nocoflo/internal/config"
	"github.com/architeacher/nocoflo/internal/runtime"
	"github.com/rs/zerolog/log"
)

// Set at build time with -ldflags "-X main.version=... -X main.commit=...".
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	config.ServiceVersion = version
	config.CommitSHA = commit

	if err := runtime.New().Run(); err != nil {
		log.Error().Err(err).Msg("nocoflo stopped")
		os.Exit(1)
	}
}
