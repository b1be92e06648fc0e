package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rezkam/queuectl/internal/queue/job"
)

func newListCmd(flags *rootFlags) *cobra.Command {
	var state string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs, optionally filtered by state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cp, closeStore, err := openControlPlane(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer closeStore()

			var stateFilter *job.State
			if state != "" {
				s := job.State(state)
				stateFilter = &s
			}

			jobs, err := cp.List(cmd.Context(), stateFilter)
			if err != nil {
				return err
			}

			if flags.json {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(jobs)
			}
			for _, j := range jobs {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\tattempts=%d/%d\n", j.ID, j.State, j.Attempts, j.MaxRetries)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&state, "state", "", "filter to a single state (pending, processing, completed, failed, dead)")

	return cmd
}
