package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/itchyny/gojq"
	"github.com/urfave/cli/v2"

	"github.com/soltrace/soltrace/client"
)

func walletCommands() *cli.Command {
	return &cli.Command{
		Name:  "wallet",
		Usage: "Wallet scanning and history commands",
		Subcommands: []*cli.Command{
			walletAddCommand(),
			walletRemoveCommand(),
			walletGetCommand(),
			walletListCommand(),
			walletScanCommand(),
			walletTransactionsCommand(),
			walletSummaryCommand(),
			walletExportCommand(),
		},
	}
}

func cliLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

func serverFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "server",
		Aliases: []string{"s"},
		Value:   "http://localhost:8080",
		Usage:   "HTTP server URL",
		EnvVars: []string{"SOLTRACE_SERVER_URL"},
	}
}

func jsonFlag() *cli.BoolFlag {
	return &cli.BoolFlag{
		Name:    "json",
		Aliases: []string{"j"},
		Usage:   "Output as JSON",
	}
}

func walletAddCommand() *cli.Command {
	return &cli.Command{
		Name:      "add",
		Aliases:   []string{"register"},
		Usage:     "Register a wallet for scheduled scanning",
		ArgsUsage: "WALLET_ADDRESS",
		Flags: []cli.Flag{
			serverFlag(),
			&cli.StringFlag{
				Name:  "label",
				Usage: "Human-readable label for the wallet",
			},
			&cli.IntFlag{
				Name:    "scan-limit",
				Aliases: []string{"n"},
				Usage:   "Transactions fetched per scan (1-1000, server default when omitted)",
			},
			&cli.DurationFlag{
				Name:    "scan-interval",
				Aliases: []string{"i"},
				Usage:   "How often to scan for new transactions (e.g., 30s, 5m)",
			},
			jsonFlag(),
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return fmt.Errorf("wallet address is required")
			}

			address := c.Args().Get(0)
			jsonOutput := c.Bool("json")

			cl := client.NewClient(c.String("server"), nil, cliLogger())

			wallet, err := cl.Register(context.Background(), address, client.RegisterOptions{
				Label:        c.String("label"),
				ScanLimit:    c.Int("scan-limit"),
				ScanInterval: c.Duration("scan-interval"),
			})
			if err != nil {
				return fmt.Errorf("failed to register wallet: %w", err)
			}

			if jsonOutput {
				data, _ := json.Marshal(wallet)
				fmt.Println(string(data))
			} else {
				fmt.Printf("✓ Wallet registered successfully\n")
				fmt.Printf("  Address:       %s\n", wallet.Address)
				if wallet.Label != "" {
					fmt.Printf("  Label:         %s\n", wallet.Label)
				}
				fmt.Printf("  Scan Limit:    %d\n", wallet.ScanLimit)
				fmt.Printf("  Scan Interval: %s\n", wallet.ScanInterval)
			}

			return nil
		},
	}
}

func walletRemoveCommand() *cli.Command {
	return &cli.Command{
		Name:      "remove",
		Aliases:   []string{"rm", "delete", "unregister"},
		Usage:     "Unregister a wallet from scanning",
		ArgsUsage: "WALLET_ADDRESS",
		Flags: []cli.Flag{
			serverFlag(),
			jsonFlag(),
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return fmt.Errorf("wallet address is required")
			}

			address := c.Args().Get(0)
			jsonOutput := c.Bool("json")

			cl := client.NewClient(c.String("server"), nil, cliLogger())

			if err := cl.Unregister(context.Background(), address); err != nil {
				return fmt.Errorf("failed to unregister wallet: %w", err)
			}

			if jsonOutput {
				data, _ := json.Marshal(map[string]interface{}{
					"address": address,
					"status":  "unregistered",
				})
				fmt.Println(string(data))
			} else {
				fmt.Printf("✓ Wallet unregistered successfully\n")
				fmt.Printf("  Address: %s\n", address)
			}

			return nil
		},
	}
}

func walletGetCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Aliases:   []string{"show"},
		Usage:     "Get details for a specific wallet",
		ArgsUsage: "WALLET_ADDRESS",
		Flags: []cli.Flag{
			serverFlag(),
			jsonFlag(),
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return fmt.Errorf("wallet address is required")
			}

			address := c.Args().Get(0)
			jsonOutput := c.Bool("json")

			cl := client.NewClient(c.String("server"), nil, cliLogger())

			wallet, err := cl.Get(context.Background(), address)
			if err != nil {
				return fmt.Errorf("failed to get wallet: %w", err)
			}

			if jsonOutput {
				data, _ := json.MarshalIndent(wallet, "", "  ")
				fmt.Println(string(data))
			} else {
				printWalletDetails(wallet)
			}

			return nil
		},
	}
}

func walletListCommand() *cli.Command {
	return &cli.Command{
		Name:    "list",
		Aliases: []string{"ls"},
		Usage:   "List all registered wallets (outputs JSON by default)",
		Flags: []cli.Flag{
			serverFlag(),
			&cli.BoolFlag{
				Name:    "table",
				Aliases: []string{"t"},
				Usage:   "Output as human-readable table instead of JSON",
			},
		},
		Action: func(c *cli.Context) error {
			tableOutput := c.Bool("table")

			cl := client.NewClient(c.String("server"), nil, cliLogger())

			wallets, err := cl.List(context.Background())
			if err != nil {
				return fmt.Errorf("failed to list wallets: %w", err)
			}

			// Default to JSON output
			if !tableOutput {
				data, _ := json.MarshalIndent(wallets, "", "  ")
				fmt.Println(string(data))
				return nil
			}

			if len(wallets) == 0 {
				fmt.Println("No wallets registered")
				return nil
			}

			fmt.Printf("Found %d wallet(s):\n\n", len(wallets))
			for _, w := range wallets {
				fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
				printWalletDetails(w)
			}

			return nil
		},
	}
}

func walletScanCommand() *cli.Command {
	return &cli.Command{
		Name:      "scan",
		Usage:     "Trigger an immediate scan of a wallet and wait for the result",
		ArgsUsage: "WALLET_ADDRESS",
		Flags: []cli.Flag{
			serverFlag(),
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Transactions to fetch (uses the wallet's configured limit when omitted)",
			},
			jsonFlag(),
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return fmt.Errorf("wallet address is required")
			}

			address := c.Args().Get(0)
			jsonOutput := c.Bool("json")

			cl := client.NewClient(c.String("server"), nil, cliLogger())

			result, err := cl.Scan(context.Background(), address, c.Int("limit"))
			if err != nil {
				return fmt.Errorf("failed to scan wallet: %w", err)
			}

			if jsonOutput {
				data, _ := json.Marshal(result)
				fmt.Println(string(data))
			} else {
				fmt.Printf("✓ Scan completed\n")
				fmt.Printf("  Address:   %s\n", result.Address)
				fmt.Printf("  Fetched:   %d\n", result.Fetched)
				fmt.Printf("  Stored:    %d\n", result.Stored)
				fmt.Printf("  Published: %d\n", result.Published)
				fmt.Printf("  Scan Time: %s\n", result.ScanTime.Format(time.RFC3339))
			}

			return nil
		},
	}
}

func walletTransactionsCommand() *cli.Command {
	return &cli.Command{
		Name:      "transactions",
		Aliases:   []string{"txns", "tx"},
		Usage:     "List classified transactions for a wallet",
		ArgsUsage: "WALLET_ADDRESS",
		Flags: []cli.Flag{
			serverFlag(),
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"l"},
				Value:   20,
				Usage:   "Maximum number of transactions to retrieve (1-1000)",
			},
			&cli.StringFlag{
				Name:    "type",
				Aliases: []string{"t"},
				Usage:   "Filter by category (swap, transfer, nft, stake, unknown)",
			},
			&cli.StringSliceFlag{
				Name:    "must-jq",
				Aliases: []string{"jq"},
				Usage:   "jq filter expression that must evaluate to true (can be specified multiple times, all must match)",
			},
			jsonFlag(),
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return fmt.Errorf("wallet address is required")
			}

			address := c.Args().Get(0)
			limit := c.Int("limit")
			jsonOutput := c.Bool("json")

			if limit < 1 || limit > 1000 {
				return fmt.Errorf("limit must be between 1 and 1000")
			}

			logger := cliLogger()

			jqFilters, err := compileJQFilters(c.StringSlice("must-jq"))
			if err != nil {
				return err
			}

			cl := client.NewClient(c.String("server"), nil, logger)

			transactions, err := cl.ListTransactions(context.Background(), address, limit, c.String("type"))
			if err != nil {
				return fmt.Errorf("failed to list transactions: %w", err)
			}

			if len(jqFilters) > 0 {
				filtered := transactions[:0]
				for _, txn := range transactions {
					ok, err := matchesJQFilters(jqFilters, txn)
					if err != nil {
						logger.Debug("jq filter error", "signature", txn.Signature, "error", err)
						continue
					}
					if ok {
						filtered = append(filtered, txn)
					}
				}
				transactions = filtered
			}

			if jsonOutput {
				data, _ := json.MarshalIndent(transactions, "", "  ")
				fmt.Println(string(data))
				return nil
			}

			if len(transactions) == 0 {
				fmt.Println("No transactions found")
				return nil
			}

			fmt.Printf("Found %d transaction(s) for wallet %s:\n\n", len(transactions), address)
			for i, txn := range transactions {
				fmt.Printf("[%d] Signature: %s\n", i+1, txn.Signature)
				fmt.Printf("    Date:      %s\n", txn.Time().Format(time.RFC3339))
				fmt.Printf("    Type:      %s\n", txn.Type)
				fmt.Printf("    Direction: %s\n", txn.Direction)
				fmt.Printf("    Amount:    %.4f %s\n", txn.Amount, txn.Token)
				if txn.From != "" {
					fmt.Printf("    From:      %s\n", txn.From)
				}
				if txn.To != "" {
					fmt.Printf("    To:        %s\n", txn.To)
				}
				fmt.Printf("    Fee:       %.6f SOL\n", txn.Fee)
				if txn.Description != "" {
					fmt.Printf("    Note:      %s\n", txn.Description)
				}
				if txn.TimestampEstimated {
					fmt.Printf("    (timestamp estimated from scan time, not chain time)\n")
				}
				fmt.Println()
			}

			return nil
		},
	}
}

func walletSummaryCommand() *cli.Command {
	return &cli.Command{
		Name:      "summary",
		Usage:     "Show per-category transaction counts for a wallet",
		ArgsUsage: "WALLET_ADDRESS",
		Flags: []cli.Flag{
			serverFlag(),
			jsonFlag(),
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return fmt.Errorf("wallet address is required")
			}

			address := c.Args().Get(0)
			jsonOutput := c.Bool("json")

			cl := client.NewClient(c.String("server"), nil, cliLogger())

			stats, err := cl.Summary(context.Background(), address)
			if err != nil {
				return fmt.Errorf("failed to get summary: %w", err)
			}

			if jsonOutput {
				data, _ := json.Marshal(stats)
				fmt.Println(string(data))
			} else {
				printStats(address, stats)
			}

			return nil
		},
	}
}

func walletExportCommand() *cli.Command {
	return &cli.Command{
		Name:      "export",
		Usage:     "Download a wallet's transaction history as a tax report CSV",
		ArgsUsage: "WALLET_ADDRESS",
		Flags: []cli.Flag{
			serverFlag(),
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Output file path (default: server-suggested name; '-' for stdout)",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return fmt.Errorf("wallet address is required")
			}

			address := c.Args().Get(0)
			output := c.String("output")

			cl := client.NewClient(c.String("server"), nil, cliLogger())

			filename, data, err := cl.ExportCSV(context.Background(), address)
			if err != nil {
				return fmt.Errorf("failed to export transactions: %w", err)
			}

			if output == "-" {
				fmt.Print(string(data))
				return nil
			}

			if output == "" {
				output = filename
			}

			if err := os.WriteFile(output, data, 0o644); err != nil {
				return fmt.Errorf("failed to write report: %w", err)
			}

			fmt.Fprintf(os.Stderr, "✓ Report written to %s\n", output)
			return nil
		},
	}
}

func printWalletDetails(w *client.Wallet) {
	fmt.Printf("Address:       %s\n", w.Address)
	if w.Label != "" {
		fmt.Printf("Label:         %s\n", w.Label)
	}
	fmt.Printf("Status:        %s\n", w.Status)
	fmt.Printf("Scan Limit:    %d\n", w.ScanLimit)
	fmt.Printf("Scan Interval: %s\n", w.ScanInterval)
	if w.LastScanAt != nil {
		fmt.Printf("Last Scan:     %s\n", w.LastScanAt.Format(time.RFC3339))
	} else {
		fmt.Printf("Last Scan:     (never)\n")
	}
	fmt.Printf("Created At:    %s\n", w.CreatedAt.Format(time.RFC3339))
	fmt.Println()
}

func printStats(address string, stats *client.Stats) {
	fmt.Printf("Transaction summary for %s:\n\n", address)
	fmt.Printf("  Total:     %d\n", stats.Total)
	fmt.Printf("  Swaps:     %d\n", stats.Swaps)
	fmt.Printf("  Transfers: %d\n", stats.Transfers)
	fmt.Printf("  NFTs:      %d\n", stats.NFTs)
	fmt.Printf("  Stakes:    %d\n", stats.Stakes)
	fmt.Printf("  Unknown:   %d\n", stats.Unknown)
}

// compileJQFilters parses and compiles a set of jq filter expressions.
func compileJQFilters(filters []string) ([]*gojq.Code, error) {
	compiled := make([]*gojq.Code, len(filters))
	for i, filter := range filters {
		query, err := gojq.Parse(filter)
		if err != nil {
			return nil, fmt.Errorf("failed to parse jq filter %q: %w", filter, err)
		}
		compiled[i], err = gojq.Compile(query)
		if err != nil {
			return nil, fmt.Errorf("failed to compile jq filter %q: %w", filter, err)
		}
	}
	return compiled, nil
}

// matchesJQFilters reports whether every compiled filter evaluates to a
// truthy value against the transaction's JSON representation.
func matchesJQFilters(filters []*gojq.Code, txn *client.Transaction) (bool, error) {
	data, err := json.Marshal(txn)
	if err != nil {
		return false, err
	}

	var value interface{}
	if err := json.Unmarshal(data, &value); err != nil {
		return false, err
	}

	for _, code := range filters {
		iter := code.Run(value)
		v, ok := iter.Next()
		if !ok {
			return false, nil
		}
		if err, isErr := v.(error); isErr {
			return false, err
		}
		if !isTruthy(v) {
			return false, nil
		}
	}

	return true, nil
}

// isTruthy checks if a jq result value is truthy.
// In jq, false and null are falsy, everything else is truthy.
func isTruthy(v interface{}) bool {
	if v == nil {
		return false
	}
	if b, ok := v.(bool); ok {
		return b
	}
	// Everything else (numbers, strings, objects, arrays) is truthy
	return true
}
