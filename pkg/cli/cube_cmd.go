package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newCubeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cube",
		Short: "Assemble and inspect the queryable cube",
	}
	cmd.AddCommand(newCubeRebuildCmd(), newCubeStatusCmd())
	return cmd
}

func newCubeRebuildCmd() *cobra.Command {
	var wait bool

	cmd := &cobra.Command{
		Use:   "rebuild <dataset-id>",
		Short: "Rebuild the cube tables for a dataset",
		Long: `Starts an asynchronous rebuild of the dataset's fact and reference
tables. With --wait, polls until the rebuild finishes.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFor(cmd.Root().PersistentFlags())
			var resp struct {
				DatasetID string `json:"dataset_id"`
				Status    string `json:"status"`
				StartedAt string `json:"started_at"`
			}
			err := client.Post(cmd.Context(), "/v1/datasets/"+args[0]+"/cube", nil, &resp)
			if err != nil {
				return err
			}
			if !wait {
				if getOutputFormat(cmd) == "json" {
					return printJSON(cmd.OutOrStdout(), resp)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "rebuild %s for %s\n", resp.Status, resp.DatasetID)
				return nil
			}
			return waitForRebuild(cmd.Context(), cmd, client, args[0])
		},
	}

	cmd.Flags().BoolVar(&wait, "wait", false, "Wait for the rebuild to finish")
	return cmd
}

func waitForRebuild(ctx context.Context, cmd *cobra.Command, client *Client, datasetID string) error {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		running, err := cubeRunning(ctx, client, datasetID)
		if err != nil {
			return err
		}
		if !running {
			fmt.Fprintf(cmd.OutOrStdout(), "rebuild finished for %s\n", datasetID)
			return nil
		}
	}
}

func newCubeStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <dataset-id>",
		Short: "Show whether a cube rebuild is running",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFor(cmd.Root().PersistentFlags())
			running, err := cubeRunning(cmd.Context(), client, args[0])
			if err != nil {
				return err
			}
			if getOutputFormat(cmd) == "json" {
				return printJSON(cmd.OutOrStdout(), map[string]any{"dataset_id": args[0], "running": running})
			}
			if running {
				fmt.Fprintln(cmd.OutOrStdout(), "running")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "idle")
			}
			return nil
		},
	}
}

func cubeRunning(ctx context.Context, client *Client, datasetID string) (bool, error) {
	var resp struct {
		Running bool `json:"running"`
	}
	if err := client.Get(ctx, "/v1/datasets/"+datasetID+"/cube", nil, &resp); err != nil {
		return false, err
	}
	return resp.Running, nil
}
