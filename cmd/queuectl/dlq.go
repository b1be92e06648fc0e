package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newDlqCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dlq",
		Short: "Inspect and retry dead-lettered jobs",
	}
	cmd.AddCommand(newDlqListCmd(flags), newDlqRetryCmd(flags))
	return cmd
}

func newDlqListCmd(flags *rootFlags) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs in the dead letter queue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cp, closeStore, err := openControlPlane(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer closeStore()

			dlq, err := cp.DlqList(cmd.Context(), limit)
			if err != nil {
				return err
			}

			if flags.json {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(dlq)
			}
			for _, d := range dlq {
				errMsg := ""
				if d.Error != nil {
					errMsg = *d.Error
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\tattempts=%d/%d\tdead_at=%s\terror=%s\n", d.ID, d.Attempts, d.MaxRetries, d.DeadAt, errMsg)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "maximum rows to return (0 means no limit)")

	return cmd
}

func newDlqRetryCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "retry <id>",
		Short: "Move a dead-lettered job back to pending",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cp, closeStore, err := openControlPlane(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer closeStore()

			if err := cp.DlqRetry(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "requeued %s\n", args[0])
			return nil
		},
	}

	return cmd
}
