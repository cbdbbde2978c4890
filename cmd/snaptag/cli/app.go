package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mwantia/snaptag/internal/app"
	"github.com/mwantia/snaptag/internal/config"
	"github.com/mwantia/snaptag/pkg/db/engine"
)

// RunWithApp loads the configuration, runs fn against a fresh App and closes
// it again, so every command works on the durable state only.
func RunWithApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	a, err := app.New(cfg)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	runErr := fn(ctx, a)
	if err := a.Close(context.Background()); err != nil && runErr == nil {
		return err
	}
	return runErr
}

// ParseKey parses a record key given on the command line.
func ParseKey(s string) (engine.Key, error) {
	key, err := strconv.ParseInt(s, 10, 64)
	if err != nil || key <= 0 {
		return 0, fmt.Errorf("invalid key '%s': expected a positive integer", s)
	}
	return engine.Key(key), nil
}
