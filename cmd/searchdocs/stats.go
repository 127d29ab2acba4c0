package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/parametric-ai/searchdocs/pkg/config"
	"github.com/parametric-ai/searchdocs/pkg/tracker"
)

func newStatsCmd() *cobra.Command {
	var (
		configPath string
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show search and token usage statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if cfg.DBPath == "" {
				return fmt.Errorf("usage tracking is disabled (db_path is empty)")
			}

			tr, err := tracker.New(cfg.DBPath)
			if err != nil {
				return err
			}
			defer tr.Close()

			ctx := context.Background()

			summary, err := tr.Summary(ctx)
			if err != nil {
				return err
			}

			fmt.Printf("Searches: %d (cache hits: %d)\n", summary.Searches, summary.CacheHits)
			fmt.Printf("Tokens:   %d total (%d prompt, %d completion)\n\n",
				summary.TotalTokens, summary.TotalPrompt, summary.TotalCompletion)

			records, err := tr.Recent(ctx, limit)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Println("No searches recorded.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tQUERY\tCACHED\tTOKENS\tLATENCY")
			for _, r := range records {
				cached := ""
				if r.Cached {
					cached = "yes"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%dms\n",
					r.CreatedAt.Format("2006-01-02T15:04:05"), r.Query, cached, r.TotalTokens, r.LatencyMS)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config file")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of recent searches to show")
	return cmd
}
