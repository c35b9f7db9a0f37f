package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

type dimensionEntry struct {
	ID              string          `json:"id"`
	DatasetID       string          `json:"dataset_id"`
	RevisionID      string          `json:"revision_id"`
	FactTableColumn string          `json:"fact_table_column"`
	Type            string          `json:"type"`
	JoinColumn      string          `json:"join_column,omitempty"`
	LookupTableID   string          `json:"lookup_table_id,omitempty"`
	Extractor       json.RawMessage `json:"extractor,omitempty"`
}

func newDimensionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dimensions <revision-id>",
		Short: "List dimensions of a revision",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp struct {
				Dimensions []dimensionEntry `json:"dimensions"`
			}
			err := clientFor(cmd.Root().PersistentFlags()).Get(cmd.Context(),
				"/v1/revisions/"+args[0]+"/dimensions", nil, &resp)
			if err != nil {
				return err
			}
			if getOutputFormat(cmd) == "json" {
				return printJSON(cmd.OutOrStdout(), resp.Dimensions)
			}
			rows := make([][]string, 0, len(resp.Dimensions))
			for _, d := range resp.Dimensions {
				rows = append(rows, []string{d.ID, d.FactTableColumn, d.Type, d.JoinColumn})
			}
			printTable(cmd.OutOrStdout(), []string{"id", "column", "type", "join column"}, rows)
			return nil
		},
	}
}

func newBindCmd() *cobra.Command {
	var extractor string

	cmd := &cobra.Command{
		Use:   "bind <dimension-id>",
		Short: "Bind a dimension against a reference structure",
		Long: `Binds a dimension using the extractor envelope given by --extractor,
either inline JSON or @file to read it from disk. The envelope names
the extractor kind (text, numeric, date, lookup_table, reference_data,
note_codes) and its parameters.`,
		Example: `  statcube bind 9c2e --extractor '{"kind":"date","payload":{"year_format":"YYYY"}}'
  statcube bind 9c2e --extractor @area-lookup.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			envelope := []byte(extractor)
			if strings.HasPrefix(extractor, "@") {
				data, err := os.ReadFile(extractor[1:])
				if err != nil {
					return err
				}
				envelope = data
			}
			if !json.Valid(envelope) {
				return fmt.Errorf("--extractor is not valid JSON")
			}

			var dim dimensionEntry
			err := clientFor(cmd.Root().PersistentFlags()).PostRaw(cmd.Context(),
				"/v1/dimensions/"+args[0]+"/bind", nil, "application/json",
				bytes.NewReader(envelope), &dim)
			if err != nil {
				return err
			}
			return printDimension(cmd, dim)
		},
	}

	cmd.Flags().StringVar(&extractor, "extractor", "", "Extractor envelope as JSON, or @file")
	_ = cmd.MarkFlagRequired("extractor")
	return cmd
}

func newResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset <dimension-id>",
		Short: "Reset a dimension binding back to raw",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var dim dimensionEntry
			err := clientFor(cmd.Root().PersistentFlags()).Post(cmd.Context(),
				"/v1/dimensions/"+args[0]+"/reset", nil, &dim)
			if err != nil {
				return err
			}
			return printDimension(cmd, dim)
		},
	}
}

func newLookupCmd() *cobra.Command {
	var fileType string

	cmd := &cobra.Command{
		Use:   "lookup <dimension-id> <file>",
		Short: "Upload a lookup table for a dimension",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[1])
			if err != nil {
				return err
			}
			defer f.Close()

			ft := fileType
			if ft == "" && strings.EqualFold(filepath.Ext(args[1]), ".parquet") {
				ft = "parquet"
			}
			query := url.Values{"filename": {filepath.Base(args[1])}}
			if ft != "" {
				query.Set("file_type", ft)
			}

			var resp struct {
				ID          string `json:"id"`
				DimensionID string `json:"dimension_id"`
				Filename    string `json:"filename"`
				FileType    string `json:"file_type"`
			}
			err = clientFor(cmd.Root().PersistentFlags()).PostRaw(cmd.Context(),
				"/v1/dimensions/"+args[0]+"/lookup", query, "application/octet-stream", f, &resp)
			if err != nil {
				return err
			}
			if getOutputFormat(cmd) == "json" {
				return printJSON(cmd.OutOrStdout(), resp)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "uploaded %s (%s) as %s\n", resp.Filename, resp.FileType, resp.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&fileType, "file-type", "", "Lookup file type: csv or parquet")
	return cmd
}

func newPreviewCmd() *cobra.Command {
	var lang string

	cmd := &cobra.Command{
		Use:   "preview <dimension-id>",
		Short: "Preview sample dimension values with resolved descriptions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := url.Values{}
			if lang != "" {
				query.Set("lang", lang)
			}
			var resp struct {
				DimensionID string `json:"dimension_id"`
				Column      struct {
					Name         string `json:"name"`
					OrdinalIndex int    `json:"ordinal_index"`
					Role         string `json:"role"`
				} `json:"column"`
				Lang          string `json:"lang"`
				TotalDistinct int64  `json:"total_distinct"`
				Entries       []struct {
					Value       string `json:"value"`
					Description string `json:"description"`
				} `json:"entries"`
			}
			err := clientFor(cmd.Root().PersistentFlags()).Get(cmd.Context(),
				"/v1/dimensions/"+args[0]+"/preview", query, &resp)
			if err != nil {
				return err
			}
			if getOutputFormat(cmd) == "json" {
				return printJSON(cmd.OutOrStdout(), resp)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "column %d %s (%s)\n",
				resp.Column.OrdinalIndex, resp.Column.Name, resp.Column.Role)
			rows := make([][]string, 0, len(resp.Entries))
			for _, e := range resp.Entries {
				rows = append(rows, []string{e.Value, e.Description})
			}
			printTable(cmd.OutOrStdout(), []string{"value", "description"}, rows)
			fmt.Fprintf(cmd.OutOrStdout(), "distinct values: %d\n", resp.TotalDistinct)
			return nil
		},
	}

	cmd.Flags().StringVar(&lang, "lang", "", "Language for descriptions (default en-gb)")
	return cmd
}

func printDimension(cmd *cobra.Command, dim dimensionEntry) error {
	if getOutputFormat(cmd) == "json" {
		return printJSON(cmd.OutOrStdout(), dim)
	}
	printTable(cmd.OutOrStdout(), []string{"id", "column", "type", "join column"},
		[][]string{{dim.ID, dim.FactTableColumn, dim.Type, dim.JoinColumn}})
	return nil
}
