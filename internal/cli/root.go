package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/meu-horario-api/internal/app"
	"github.com/noah-isme/meu-horario-api/pkg/config"
	"github.com/noah-isme/meu-horario-api/pkg/logger"
)

var (
	flagLogLevel string

	cfg  *config.Config
	logr *zap.Logger
)

// NewRootCmd creates the root cobra command for horarioctl.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "horarioctl",
		Short: "Operator tooling for the timetable API",
		Long:  "horarioctl migrates the database, loads seed data and triggers slot allocation.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if flagLogLevel != "" {
				loaded.Log.Level = flagLogLevel
			}
			l, err := logger.New(loaded)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			cfg, logr = loaded, l
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logr != nil {
				_ = logr.Sync()
			}
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level override (debug, info, warn, error)")

	root.AddCommand(
		newMigrateCmd(),
		newSeedCmd(),
		newAllocateCmd(),
	)
	return root
}

// withApp builds the application for one command and closes it afterwards.
func withApp(ctx context.Context, fn func(*app.App) error) error {
	a, err := app.New(ctx, cfg, logr)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
