package main

import (
	"context"
	"errors"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/desertthunder/cull/internal/shared"
)

func main() {
	logger := shared.NewLogger(nil)

	runner := NewRunner(RunnerOpts{
		ConfigPath:  "config.toml",
		Logger:      logger,
		Interactive: true,
	})

	if err := runner.App().Run(context.Background(), os.Args); err != nil {
		switch {
		case errors.Is(err, huh.ErrUserAborted):
			os.Exit(130)
		default:
			logger.Fatalf("application error: %v", err)
		}
	}
}
