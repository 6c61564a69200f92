package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/noah-isme/meu-horario-api/internal/app"
	"github.com/noah-isme/meu-horario-api/internal/dto"
)

func newAllocateCmd() *cobra.Command {
	var reallocate bool
	cmd := &cobra.Command{
		Use:   "allocate <subject_id>",
		Short: "Allocate weekly slots for a subject",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app.App) error {
				run := a.Services.Allocation.Allocate
				if reallocate {
					run = a.Services.Allocation.Reallocate
				}
				result, err := run(cmd.Context(), args[0])
				if err != nil {
					return fmt.Errorf("allocate subject: %w", err)
				}
				if err := printJSON(cmd.OutOrStdout(), result); err != nil {
					return err
				}
				return allocationError(result)
			})
		},
	}
	cmd.Flags().BoolVar(&reallocate, "reallocate", false, "Drop the subject's slots first")
	return cmd
}

// allocationError turns outcomes an operator must act on into a non-zero exit.
func allocationError(result *dto.AllocationResult) error {
	switch {
	case result.Reason == dto.ReasonSubjectNotFound:
		return fmt.Errorf("subject %s not found", result.SubjectID)
	case result.Partial():
		return fmt.Errorf("subject %s: placed %d of %d weekly slots", result.SubjectID, result.Allocated, result.Requested)
	}
	return nil
}
