package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newStatusCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show aggregate job and worker counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cp, closeStore, err := openControlPlane(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer closeStore()

			status, err := cp.Status(cmd.Context())
			if err != nil {
				return err
			}

			if flags.json {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(status)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "pending:     %d\n", status.Pending)
			fmt.Fprintf(out, "processing:  %d\n", status.Processing)
			fmt.Fprintf(out, "completed:   %d\n", status.Completed)
			fmt.Fprintf(out, "failed:      %d\n", status.Failed)
			fmt.Fprintf(out, "dead:        %d\n", status.Dead)
			fmt.Fprintf(out, "workers:     %d\n", status.ActiveWorker)
			return nil
		},
	}

	return cmd
}
