package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hupe1980/agentcrew/datatools"
)

type ingestOptions struct {
	Table string
}

func newIngestCmd(state *cliState) *cobra.Command {
	var options ingestOptions

	cmd := &cobra.Command{
		Use:   "ingest <csv-file>... [flags]",
		Short: "Load CSV files into the analytics database",
		Example: `  # Create tables sales_data and customer_data
  agentcrew ingest data/sales_data.csv data/customer_data.csv`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if options.Table != "" && len(args) > 1 {
				return errors.New("--table can only be used with a single file")
			}

			db, err := datatools.Open(state.cfg.DataDBPath, func(o *datatools.Options) {
				o.Logger = state.logger
			})
			if err != nil {
				return err
			}
			defer db.Close()

			for _, path := range args {
				res, err := db.IngestCSVFile(cmd.Context(), path, options.Table)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d rows into %s (%d columns)\n", path, res.Rows, res.Table, len(res.Columns))
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&options.Table, "table", "", "table name (default: derived from the file name)")

	return cmd
}
