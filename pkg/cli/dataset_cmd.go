package cli

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"
)

type datasetEntry struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type datasetList struct {
	Items []datasetEntry `json:"items"`
	Total int            `json:"total"`
}

func newDatasetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dataset",
		Short: "Manage datasets",
	}
	cmd.AddCommand(
		newDatasetCreateCmd(),
		newDatasetListCmd(),
		newDatasetGetCmd(),
		newDatasetDeleteCmd(),
	)
	return cmd
}

func newDatasetCreateCmd() *cobra.Command {
	var title string

	cmd := &cobra.Command{
		Use:     "create",
		Short:   "Create a dataset",
		Example: `  statcube dataset create --title "Population by local authority"`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var ds datasetEntry
			err := clientFor(cmd.Root().PersistentFlags()).Post(cmd.Context(), "/v1/datasets",
				map[string]string{"title": title}, &ds)
			if err != nil {
				return err
			}
			return printDataset(cmd, ds)
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "Dataset title")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func newDatasetListCmd() *cobra.Command {
	var (
		maxResults int
		offset     int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List datasets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			query := url.Values{}
			if maxResults > 0 {
				query.Set("max_results", strconv.Itoa(maxResults))
			}
			if offset > 0 {
				query.Set("offset", strconv.Itoa(offset))
			}
			var list datasetList
			err := clientFor(cmd.Root().PersistentFlags()).Get(cmd.Context(), "/v1/datasets", query, &list)
			if err != nil {
				return err
			}
			if getOutputFormat(cmd) == "json" {
				return printJSON(cmd.OutOrStdout(), list)
			}
			rows := make([][]string, 0, len(list.Items))
			for _, ds := range list.Items {
				rows = append(rows, []string{ds.ID, ds.Title, coverageLabel(ds)})
			}
			printTable(cmd.OutOrStdout(), []string{"id", "title", "coverage"}, rows)
			fmt.Fprintf(cmd.OutOrStdout(), "total: %d\n", list.Total)
			return nil
		},
	}

	cmd.Flags().IntVar(&maxResults, "max-results", 0, "Maximum number of datasets to return")
	cmd.Flags().IntVar(&offset, "offset", 0, "Number of datasets to skip")
	return cmd
}

func newDatasetGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <dataset-id>",
		Short: "Show a dataset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var ds datasetEntry
			err := clientFor(cmd.Root().PersistentFlags()).Get(cmd.Context(), "/v1/datasets/"+args[0], nil, &ds)
			if err != nil {
				return err
			}
			return printDataset(cmd, ds)
		},
	}
}

func newDatasetDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <dataset-id>",
		Short: "Delete a dataset and its stored files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := clientFor(cmd.Root().PersistentFlags()).Delete(cmd.Context(), "/v1/datasets/"+args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	}
}

func printDataset(cmd *cobra.Command, ds datasetEntry) error {
	if getOutputFormat(cmd) == "json" {
		return printJSON(cmd.OutOrStdout(), ds)
	}
	printTable(cmd.OutOrStdout(), []string{"id", "title", "coverage"},
		[][]string{{ds.ID, ds.Title, coverageLabel(ds)}})
	return nil
}

func coverageLabel(ds datasetEntry) string {
	if ds.StartDate == "" {
		return "-"
	}
	return ds.StartDate + " .. " + ds.EndDate
}
