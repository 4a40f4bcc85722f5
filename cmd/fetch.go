package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var (
	fetchPage int
	fetchJSON bool
)

// fetchCmd fetches one tab once and prints it, for debugging sources
// without running the server.
var fetchCmd = &cobra.Command{
	Use:   "fetch <tab>",
	Short: "Fetch a feed tab once and print the items",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tab := args[0]
		cfg := GetConfig()
		a := buildApp(cfg)
		defer a.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()

		res, err := a.Aggregator.FetchTab(ctx, tab, fetchPage)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if fetchJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		}
		for _, it := range res.Items {
			ts := time.UnixMilli(it.Timestamp).UTC().Format(time.RFC3339)
			fmt.Fprintf(out, "%-9s %s  %s\n", it.Platform, ts, it.Title)
		}
		fmt.Fprintf(out, "%d items, hasMore=%v\n", len(res.Items), res.HasMore)
		return nil
	},
}

func init() {
	fetchCmd.Flags().IntVar(&fetchPage, "page", 0, "page number (0-based)")
	fetchCmd.Flags().BoolVar(&fetchJSON, "json", false, "print the raw JSON result")
	rootCmd.AddCommand(fetchCmd)
}
