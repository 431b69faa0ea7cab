package cli

import (
	"github.com/spf13/cobra"

	"github.com/markdave123-py/cortexprep/internal/core/ingestion_engine"
)

func newSearchCmd(root *rootOptions) *cobra.Command {
	var opts ingestion_engine.RunOptions
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Chunk the source document, load it and declare the retrieval service",
		Long: `Runs the search pipeline once. When the chunk table already exists the document
is not read again and only the retrieval service is (re)declared, unless --force is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := root.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer closeApp(a)
			report, err := a.Search.WithOptions(opts).Run(cmd.Context())
			return printReport(cmd, root, report, err)
		},
	}
	cmd.Flags().StringVar(&opts.SourceFile, "source", "", "source document path or s3:// URI (overrides SOURCE_FILE)")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "drop and reload the table even if it exists")
	return cmd
}

func newAnalystCmd(root *rootOptions) *cobra.Command {
	var opts ingestion_engine.RunOptions
	cmd := &cobra.Command{
		Use:   "analyst",
		Short: "Load the work-record table and publish the semantic model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := root.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer closeApp(a)
			report, err := a.Analyst.WithOptions(opts).Run(cmd.Context())
			return printReport(cmd, root, report, err)
		},
	}
	cmd.Flags().StringVar(&opts.SourceFile, "data", "", "CSV data file (overrides ANALYST_DATA_FILE)")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "drop and reload the table even if it exists")
	return cmd
}

// printReport prints the report even for failed runs and then returns the run error.
func printReport(cmd *cobra.Command, root *rootOptions, report *ingestion_engine.RunReport, runErr error) error {
	if report == nil {
		return runErr
	}
	if root.asJSON {
		if err := printJSON(cmd, report); err != nil {
			return err
		}
		return runErr
	}

	cmd.Printf("run %s (%s): %s\n", report.RunID, report.Pipeline, report.State)
	if report.FailedStage != "" {
		cmd.Printf("  failed at:    %s\n", report.FailedStage)
		cmd.Printf("  data durable: %t\n", report.DataDurable)
	}
	if report.Ingested {
		cmd.Printf("  ingested:     %d rows (%d chunks)\n", report.RowCount, report.ChunkCount)
	} else if runErr == nil {
		cmd.Println("  ingested:     skipped, table already exists")
	}
	if report.Service != nil {
		cmd.Printf("  service:      %s.%s.%s over %s\n", report.Service.Database, report.Service.Schema, report.Service.Name, report.Service.SourceTable)
	}
	if report.Tool != nil {
		cmd.Printf("  tool:         %s (%s)\n", report.Tool.ToolName(), report.Tool.ToolType())
	}
	return runErr
}
