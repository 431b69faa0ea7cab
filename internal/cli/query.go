package cli

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	db "github.com/markdave123-py/cortexprep/internal/core/database"
	"github.com/markdave123-py/cortexprep/internal/core/ingestion_engine"
	"github.com/markdave123-py/cortexprep/internal/models"
	"github.com/markdave123-py/cortexprep/internal/services"
)

func newQueryCmd(root *rootOptions) *cobra.Command {
	var topK int
	cmd := &cobra.Command{
		Use:   "query [text]",
		Short: "Query the declared retrieval service",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := root.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer closeApp(a)

			search := services.NewSearchService(
				db.NewSearcher(a.Warehouse.DB(), a.Warehouse.Dialect()),
				ingestion_engine.SearchServiceFromConfig(a.Config))
			hits, err := search.Search(cmd.Context(), models.SearchRequest{Query: strings.Join(args, " "), TopK: topK})
			if err != nil {
				return err
			}
			if root.asJSON {
				if hits == nil {
					hits = []models.SearchHit{}
				}
				return printJSON(cmd, hits)
			}
			if len(hits) == 0 {
				cmd.Println("No results found.")
				return nil
			}
			for i, h := range hits {
				cmd.Printf("  [%d] %s #%d (%.2f)\n", i+1, h.FileName, h.ChunkID, h.Score)
				cmd.Printf("      %s\n", oneLine(h.Text))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&topK, "top-k", "k", models.DefaultTopK, "maximum number of results")
	return cmd
}

func newAgentCmd(root *rootOptions) *cobra.Command {
	var tools []string
	cmd := &cobra.Command{
		Use:   "agent [question]",
		Short: "Prepare both pipelines and ask the agent runtime a question",
		Long: `Runs the search and analyst pipelines (skipping ingestion for tables that already
exist), registers their tools and forwards the question to AGENT_ENDPOINT.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := root.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer closeApp(a)
			if a.Agent == nil {
				return errors.New("AGENT_ENDPOINT is not set")
			}

			for _, p := range []ingestion_engine.Pipeline{a.Search, a.Analyst} {
				report, err := p.Run(cmd.Context())
				if err != nil {
					return err
				}
				if report.Tool == nil {
					continue
				}
				a.Tools.Register(report.Tool)
				a.Log.Info("tool ready", zap.String("tool", report.Tool.ToolName()))
			}

			selected, err := a.Tools.Select(tools)
			if err != nil {
				return err
			}
			res, err := a.Agent.Query(cmd.Context(), strings.Join(args, " "), selected)
			if err != nil {
				return err
			}
			if root.asJSON {
				return printJSON(cmd, res)
			}
			cmd.Println(res.Output)
			for _, src := range res.Sources {
				cmd.Printf("  source: %s (%s), %d rows\n", src.ToolName, src.ToolType, len(src.Metadata))
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&tools, "tools", nil, "tool names to offer the agent (default all)")
	return cmd
}

func newPingCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check the warehouse connection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := root.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer closeApp(a)
			version, err := a.Warehouse.Ping(cmd.Context())
			if err != nil {
				return err
			}
			cmd.Printf("%s %s\n", a.Config.Dialect, version)
			return nil
		},
	}
}

func oneLine(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > 120 {
		return string(r[:117]) + "..."
	}
	return s
}
