package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rezkam/queuectl/internal/queue/job"
)

func newEnqueueCmd(flags *rootFlags) *cobra.Command {
	var maxRetries int

	cmd := &cobra.Command{
		Use:   "enqueue <id> <command>",
		Short: "Submit a new job",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cp, closeStore, err := openControlPlane(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer closeStore()

			req := job.EnqueueRequest{ID: args[0], Command: args[1]}
			if cmd.Flags().Changed("max-retries") {
				req.MaxRetries = &maxRetries
			}

			j, err := cp.Enqueue(cmd.Context(), req)
			if err != nil {
				return err
			}

			if flags.json {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(j)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "enqueued %s (max_retries=%d)\n", j.ID, j.MaxRetries)
			return nil
		},
	}

	cmd.Flags().IntVar(&maxRetries, "max-retries", 0, "override the default max retry budget for this job")

	return cmd
}
