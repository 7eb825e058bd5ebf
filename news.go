package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"goatfarm-breeding-forecast/internal/news"
)

var newsJSON bool

var newsCmd = &cobra.Command{
	Use:   "news",
	Short: "Print the latest goat farming headlines",
	RunE: func(cmd *cobra.Command, args []string) error {
		items, err := newFetcher().Fetch(cmd.Context())
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		if newsJSON {
			return encode(w, "json", items)
		}
		if len(items) == 0 {
			fmt.Fprintln(w, "No news available.")
			return nil
		}
		source := ""
		for _, item := range items {
			if item.Source != source {
				source = item.Source
				fmt.Fprintf(w, "\n%s\n%s\n", source, strings.Repeat("-", ruleWidth))
			}
			fmt.Fprintf(w, "%s\n  %s\n", item.Title, item.Link)
			if item.Summary != "" {
				fmt.Fprintf(w, "  %s\n", item.Summary)
			}
		}
		return nil
	},
}

func init() {
	newsCmd.Flags().BoolVar(&newsJSON, "json", false, "print items as JSON")
	rootCmd.AddCommand(newsCmd)
}

func newFetcher() *news.Fetcher {
	return news.New(news.Options{
		Feeds:             cfg.News.Feeds,
		PerFeed:           cfg.News.PerFeed,
		SummaryChars:      cfg.News.SummaryChars,
		RequestsPerSecond: cfg.News.RequestsPerSecond,
		Timeout:           time.Duration(cfg.News.TimeoutSecs) * time.Second,
	}, zap.L().Named("news"))
}
