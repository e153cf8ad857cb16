package main

import (
	"context"
	"os"

	"github.com/desertthunder/nowplaying/internal/shared"
	"github.com/urfave/cli/v3"
)

func main() {
	logger := shared.NewLogger(nil)
	runner := NewRunner(RunnerOpts{Logger: logger})

	app := &cli.Command{
		Name:     "nowplaying",
		Usage:    "Hand out Spotify tokens to API key holders",
		Version:  "0.1.0",
		Commands: runner.register(),
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		logger.Fatal("application error", "err", err)
	}
}
