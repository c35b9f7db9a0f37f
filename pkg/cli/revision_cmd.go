package cli

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

type columnEntry struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	OrdinalIndex     int    `json:"ordinal_index"`
	InferredDatatype string `json:"inferred_datatype"`
	Role             string `json:"role"`
	Excluded         bool   `json:"excluded"`
}

type revisionEntry struct {
	ID                string `json:"id"`
	DatasetID         string `json:"dataset_id"`
	RevisionIndex     int    `json:"revision_index"`
	FactTableFilename string `json:"fact_table_filename"`
	FileType          string `json:"file_type"`
}

type uploadResponse struct {
	Revision revisionEntry `json:"revision"`
	Columns  []columnEntry `json:"columns"`
}

func newUploadCmd() *cobra.Command {
	var fileType string

	cmd := &cobra.Command{
		Use:   "upload <dataset-id> <file>",
		Short: "Upload a fact table as a new revision",
		Long: `Uploads a fact-table file as the next revision of the dataset and
detects its columns. The file type is inferred from the extension
unless --file-type is given.`,
		Example: `  statcube upload 6f1a facts.csv
  statcube upload 6f1a facts.parquet --file-type parquet`,
		Args: cobra.ExactArgs(2),
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

			var resp uploadResponse
			err = clientFor(cmd.Root().PersistentFlags()).PostRaw(cmd.Context(),
				"/v1/datasets/"+args[0]+"/revisions", query, "application/octet-stream", f, &resp)
			if err != nil {
				return err
			}
			if getOutputFormat(cmd) == "json" {
				return printJSON(cmd.OutOrStdout(), resp)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "revision %d (%s)\n", resp.Revision.RevisionIndex, resp.Revision.ID)
			printColumns(cmd, resp.Columns)
			return nil
		},
	}

	cmd.Flags().StringVar(&fileType, "file-type", "", "Fact-table file type: csv or parquet")
	return cmd
}

func newColumnsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "columns <dataset-id>",
		Short: "List detected fact-table columns and their roles",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp struct {
				Columns []columnEntry `json:"columns"`
			}
			err := clientFor(cmd.Root().PersistentFlags()).Get(cmd.Context(),
				"/v1/datasets/"+args[0]+"/columns", nil, &resp)
			if err != nil {
				return err
			}
			if getOutputFormat(cmd) == "json" {
				return printJSON(cmd.OutOrStdout(), resp.Columns)
			}
			printColumns(cmd, resp.Columns)
			return nil
		},
	}
}

type partitionEntry struct {
	DataValues string   `json:"data_values"`
	Measure    string   `json:"measure"`
	NoteCodes  string   `json:"note_codes"`
	Dimensions []string `json:"dimensions"`
	Ignored    []string `json:"ignored"`
}

func newClassifyCmd() *cobra.Command {
	var assign []string

	cmd := &cobra.Command{
		Use:   "classify <dataset-id>",
		Short: "Assign roles to fact-table columns",
		Long: `Assigns a role to each named column and, once every column is
resolved, partitions the fact table and creates raw dimensions for
the dimension and time columns.

Roles: data_values, measure, dimension, time, note_codes, ignore.`,
		Example: `  statcube classify 6f1a \
    --assign Value=data_values --assign AreaCode=dimension \
    --assign Year=time --assign RowID=ignore`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			type assignment struct {
				Column string `json:"column"`
				Role   string `json:"role"`
			}
			assignments := make([]assignment, 0, len(assign))
			for _, a := range assign {
				column, role, ok := strings.Cut(a, "=")
				if !ok {
					return fmt.Errorf("invalid --assign %q: expected COLUMN=ROLE", a)
				}
				assignments = append(assignments, assignment{Column: column, Role: role})
			}

			var part partitionEntry
			err := clientFor(cmd.Root().PersistentFlags()).Post(cmd.Context(),
				"/v1/datasets/"+args[0]+"/classify",
				map[string]any{"assignments": assignments}, &part)
			if err != nil {
				return err
			}
			if getOutputFormat(cmd) == "json" {
				return printJSON(cmd.OutOrStdout(), part)
			}
			printTable(cmd.OutOrStdout(), []string{"role", "columns"}, [][]string{
				{"data values", part.DataValues},
				{"measure", part.Measure},
				{"note codes", part.NoteCodes},
				{"dimensions", strings.Join(part.Dimensions, ", ")},
				{"ignored", strings.Join(part.Ignored, ", ")},
			})
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&assign, "assign", nil, "Column assignment as COLUMN=ROLE (repeatable)")
	return cmd
}

func printColumns(cmd *cobra.Command, columns []columnEntry) {
	rows := make([][]string, 0, len(columns))
	for _, c := range columns {
		rows = append(rows, []string{
			strconv.Itoa(c.OrdinalIndex), c.Name, c.InferredDatatype, c.Role,
		})
	}
	printTable(cmd.OutOrStdout(), []string{"#", "name", "datatype", "role"}, rows)
}
