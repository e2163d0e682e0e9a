package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"

	"github.com/soltrace/soltrace/service/config"
	"github.com/soltrace/soltrace/service/export"
	"github.com/soltrace/soltrace/service/metrics"
	"github.com/soltrace/soltrace/service/solana"
)

// scanCommand fetches and classifies a wallet's history directly from the
// chain, without a running server. Useful for one-off lookups and for
// debugging classification.
func scanCommand() *cli.Command {
	return &cli.Command{
		Name:      "scan",
		Usage:     "Fetch and classify a wallet's transactions directly from the chain",
		ArgsUsage: "WALLET_ADDRESS",
		Description: `Fetch a wallet's recent transactions and classify them locally.

When a Helius API key is available the enhanced feed is used; otherwise
the raw RPC path parses transactions from chain data. The classified
history is printed as JSON by default.

Example:
  soltrace scan DYw8jCTfwHNRJhhmFcbXvVDTqWMEVFBX6ZKUmG5CNSKK --limit 50 --csv report.csv`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "rpc-url",
				Usage:   "Solana RPC endpoint",
				EnvVars: []string{"SOLANA_RPC_URL"},
				Value:   "https://api.mainnet-beta.solana.com",
			},
			&cli.StringFlag{
				Name:    "helius-api-key",
				Usage:   "Helius API key (enables the enhanced feed)",
				EnvVars: []string{"HELIUS_API_KEY"},
			},
			&cli.StringFlag{
				Name:    "helius-api-url",
				Usage:   "Helius API root",
				EnvVars: []string{"HELIUS_API_URL"},
				Value:   config.DefaultHeliusAPIURL,
			},
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Value:   50,
				Usage:   "Maximum number of transactions to fetch (1-1000)",
			},
			&cli.StringFlag{
				Name:  "before",
				Usage: "Resume pagination before this signature",
			},
			&cli.StringFlag{
				Name:  "csv",
				Usage: "Write a tax report CSV to this path ('-' for stdout)",
			},
			&cli.BoolFlag{
				Name:  "summary",
				Usage: "Print per-category counts instead of full transactions",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Value: 2 * time.Minute,
				Usage: "Overall fetch timeout",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return fmt.Errorf("wallet address is required")
			}

			address := c.Args().Get(0)
			limit := c.Int("limit")
			if limit < 1 || limit > 1000 {
				return fmt.Errorf("limit must be between 1 and 1000")
			}

			logger := cliLogger()

			var feed solana.EnhancedFeed
			if key := c.String("helius-api-key"); key != "" {
				feed = solana.NewHeliusFeed(c.String("helius-api-url"), key)
			}

			rpcURL := c.String("rpc-url")
			rpcClient := solana.NewRPCClient(rpcURL)

			// The scan is one-shot, so metrics go to a private registry.
			m := metrics.NewMetrics(prometheus.NewRegistry())

			solClient := solana.NewClient(rpcClient, feed, rpcURL, m, logger)

			ctx, cancel := context.WithTimeout(context.Background(), c.Duration("timeout"))
			defer cancel()

			txns, err := solClient.FetchWalletTransactions(ctx, address, solana.FetchOptions{
				Limit:  limit,
				Before: c.String("before"),
			})
			if err != nil {
				return fmt.Errorf("failed to fetch transactions: %w", err)
			}

			if csvPath := c.String("csv"); csvPath != "" {
				return writeCSVReport(address, txns, csvPath)
			}

			categorized := solana.Categorize(txns)

			if c.Bool("summary") {
				fmt.Printf("Scanned %d transaction(s) for %s:\n\n", categorized.Stats.Total, address)
				fmt.Printf("  Swaps:     %d\n", categorized.Stats.Swaps)
				fmt.Printf("  Transfers: %d\n", categorized.Stats.Transfers)
				fmt.Printf("  NFTs:      %d\n", categorized.Stats.NFTs)
				fmt.Printf("  Stakes:    %d\n", categorized.Stats.Stakes)
				fmt.Printf("  Unknown:   %d\n", categorized.Stats.Unknown)
				return nil
			}

			data, err := json.MarshalIndent(map[string]interface{}{
				"wallet_address": address,
				"transactions":   txns,
				"stats":          categorized.Stats,
			}, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal transactions: %w", err)
			}
			fmt.Println(string(data))

			return nil
		},
	}
}

func writeCSVReport(address string, txns []*solana.Transaction, path string) error {
	csv := export.GenerateCSV(txns)

	if path == "-" {
		fmt.Print(csv)
		if len(csv) > 0 && csv[len(csv)-1] != '\n' {
			fmt.Println()
		}
		return nil
	}

	if err := os.WriteFile(path, []byte(csv), 0o644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	fmt.Fprintf(os.Stderr, "✓ Report with %d transaction(s) written to %s\n", len(txns), path)
	return nil
}
