package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/user/serp-tracker/internal/entity"
	"github.com/user/serp-tracker/internal/usecase"
)

var (
	analyzeLocation string
	analyzeMaxPages int
	analyzeQueryID  string
	analyzeJSON     bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run one analysis in the foreground",
}

var analyzeCampaignCmd = &cobra.Command{
	Use:   "campaign [query] [website...]",
	Short: "Find all websites of a campaign in one scan",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAnalyze(cmd, entity.AnalysisRequest{
			Kind:     entity.KindCampaign,
			Query:    args[0],
			Websites: args[1:],
			Location: analyzeLocation,
			MaxPages: analyzeMaxPages,
			QueryID:  analyzeQueryID,
		})
	},
}

var analyzeSiteCmd = &cobra.Command{
	Use:   "site [query] [website]",
	Short: "Locate one website, falling back to scraping and simulation",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAnalyze(cmd, entity.AnalysisRequest{
			Kind:     entity.KindSingleSite,
			Query:    args[0],
			Websites: args[1:],
			Location: analyzeLocation,
			QueryID:  analyzeQueryID,
		})
	},
}

func init() {
	analyzeCmd.PersistentFlags().StringVarP(&analyzeLocation, "location", "l", "", "location appended to the query")
	analyzeCmd.PersistentFlags().StringVar(&analyzeQueryID, "query-id", "", "identifier stored with persisted results")
	analyzeCmd.PersistentFlags().BoolVar(&analyzeJSON, "json", false, "output results as JSON")
	analyzeCampaignCmd.Flags().IntVarP(&analyzeMaxPages, "max-pages", "p", 0, "result pages to scan (default DEFAULT_MAX_PAGES)")

	analyzeCmd.AddCommand(analyzeCampaignCmd, analyzeSiteCmd)
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, req entity.AnalysisRequest) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := context.WithTimeout(ctx, a.cfg.JobTimeout)
	defer cancel()

	out, err := a.dispatcher.Execute(ctx, req)
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	if analyzeJSON {
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal results: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}
	printOutcome(cmd, out)
	return nil
}

func printOutcome(cmd *cobra.Command, out *usecase.Outcome) {
	if c := out.Campaign; c != nil {
		cache := ""
		if c.FromCache {
			cache = " (cached)"
		}
		cmd.Printf("Query: %s%s\n", c.Query, cache)
		cmd.Printf("Pages scanned: %d, quota consumed: %d\n\n", c.PagesScanned, c.QuotaConsumed)
		for _, f := range c.FoundWebsites() {
			cmd.Printf("  #%-3d %s  %s\n", f.Position, f.Website, f.URL)
		}
		for _, w := range c.NotFound {
			cmd.Printf("  ---  %s  not found\n", w)
		}
	}
	for _, s := range out.Sites {
		if !s.Found {
			cmd.Printf("%s: not found [%s]\n", s.Website, s.Method)
			continue
		}
		cmd.Printf("%s: #%d %s [%s]\n", s.Website, *s.Position, *s.URLFound, s.Method)
	}
}
