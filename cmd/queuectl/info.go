package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newInfoCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "info <id>",
		Short: "Show a single job's full record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cp, closeStore, err := openControlPlane(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer closeStore()

			j, err := cp.Info(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if flags.json {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(j)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "id:           %s\n", j.ID)
			fmt.Fprintf(out, "command:      %s\n", j.Command)
			fmt.Fprintf(out, "state:        %s\n", j.State)
			fmt.Fprintf(out, "attempts:     %d/%d\n", j.Attempts, j.MaxRetries)
			fmt.Fprintf(out, "created_at:   %s\n", j.CreatedAt)
			fmt.Fprintf(out, "updated_at:   %s\n", j.UpdatedAt)
			if j.LockedBy != nil {
				fmt.Fprintf(out, "locked_by:    %s\n", *j.LockedBy)
			}
			if j.NextRetryAt != nil {
				fmt.Fprintf(out, "next_retry_at: %s\n", *j.NextRetryAt)
			}
			if j.Error != nil {
				fmt.Fprintf(out, "error:        %s\n", *j.Error)
			}
			if j.Output != nil {
				fmt.Fprintf(out, "output:       %s\n", *j.Output)
			}
			return nil
		},
	}

	return cmd
}
