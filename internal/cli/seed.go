package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/noah-isme/meu-horario-api/internal/app"
	"github.com/noah-isme/meu-horario-api/internal/seed"
)

func newSeedCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load teachers, class sections and subjects from a YAML fixture",
		Long:  "Seed creates missing records by name and allocates every new subject. Without --file the bundled fixture is used.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fx, err := loadFixture(file)
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(a *app.App) error {
				report, err := a.Seeder().Apply(cmd.Context(), fx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), report)
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Path to a seed fixture (YAML)")
	return cmd
}

func loadFixture(path string) (*seed.Fixture, error) {
	if path == "" {
		return seed.Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	return seed.Load(data)
}
