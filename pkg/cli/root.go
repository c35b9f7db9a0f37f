package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	version = "dev"
	commit  = "none"
)

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		output, _ := rootCmd.PersistentFlags().GetString("output")
		if output == "json" {
			errObj := map[string]any{
				"error": err.Error(),
			}
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				errObj["http_status"] = apiErr.HTTPStatus
				if apiErr.Code != "" {
					errObj["code"] = apiErr.Code
				}
				if len(apiErr.FactValues) > 0 {
					errObj["fact_values"] = apiErr.FactValues
				}
				if len(apiErr.ReferenceValues) > 0 {
					errObj["reference_values"] = apiErr.ReferenceValues
				}
			}
			_ = printJSON(os.Stdout, errObj)
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			var apiErr *APIError
			if errors.As(err, &apiErr) && len(apiErr.FactValues) > 0 {
				fmt.Fprintf(os.Stderr, "Non-matching values (%d rows): %v\n", apiErr.TotalNonMatching, apiErr.FactValues)
			}
		}
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	var (
		host   string
		output string
	)

	rootCmd := &cobra.Command{
		Use:           "statcube",
		Short:         "Dataset publishing CLI",
		Long:          "Command-line interface for the statcube dataset publishing API.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("host") {
				if v := os.Getenv("STATCUBE_HOST"); v != "" {
					host = v
					_ = cmd.Root().PersistentFlags().Set("host", v)
				}
			}
			return validateOutputFormat(output)
		},
	}

	fs := rootCmd.PersistentFlags()
	fs.StringVar(&host, "host", "http://localhost:8080", "Server base URL (env: STATCUBE_HOST)")
	fs.StringVar(&output, "output", "table", "Output format: table or json")

	rootCmd.AddCommand(
		newDatasetCmd(),
		newUploadCmd(),
		newColumnsCmd(),
		newClassifyCmd(),
		newDimensionsCmd(),
		newBindCmd(),
		newResetCmd(),
		newLookupCmd(),
		newPreviewCmd(),
		newCubeCmd(),
		newVersionCmd(),
	)

	return rootCmd
}

// clientFor builds an API client from the root command's flags.
func clientFor(fs *pflag.FlagSet) *Client {
	host, _ := fs.GetString("host")
	return NewClient(host)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print CLI version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "statcube %s (%s)\n", version, commit)
		},
	}
}
