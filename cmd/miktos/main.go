// Command miktos is a command line client for the Miktos API.
package main

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"

	"github.com/charmbracelet/fang"
	"github.com/picatz/miktos"
	"github.com/picatz/miktos/internal/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	cfg    *config.Config
	client *miktos.Client
)

// errMissingAPIKey is returned by commands that call the API without a key.
var errMissingAPIKey = errors.New("MIKTOS_API_KEY environment variable is not set, run 'miktos auth' to get one")

func setupLogging(w io.Writer, debug bool) {
	level := zerolog.WarnLevel
	if debug {
		level = zerolog.DebugLevel
	}
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: w}).Level(level).With().Timestamp().Logger()
}

func requireAPIKey() error {
	if client.APIKey() == "" {
		return errMissingAPIKey
	}
	return nil
}

func main() {
	var err error
	cfg, err = config.Load()
	if err != nil {
		setupLogging(os.Stderr, false)
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	setupLogging(os.Stderr, cfg.Debug)

	client = miktos.NewClient(cfg.APIKey, cfg.ClientOptions()...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := fang.Execute(ctx, rootCmd); err != nil {
		os.Exit(1)
	}
}
