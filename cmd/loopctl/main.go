// Command loopctl builds, simulates and records loops through a day graph.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/CrazyDubya/Loop/cmd/loopctl/commands"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Set with -ldflags "-X main.version=...".
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

// Exit codes beyond 0 and 1.
const (
	exitRejected = 2 // graph failed validation or store failed its check
	exitOperator = 3 // operator ran but did not achieve its goal
)

func main() {
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		With().Timestamp().Logger()
	zerolog.SetGlobalLevel(levelFromEnv(os.Getenv("LOG_LEVEL")))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := commands.Execute(ctx, version, commit, buildDate)
	stop()

	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("loopctl failed")
	}
	os.Exit(exitCode(err))
}

func levelFromEnv(s string) zerolog.Level {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, commands.ErrValidationFailed), errors.Is(err, commands.ErrIntegrity):
		return exitRejected
	case errors.Is(err, commands.ErrOperatorFailed):
		return exitOperator
	default:
		return 1
	}
}
