package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/urfave/cli/v2"

	"github.com/soltrace/soltrace/service/db"
)

func listWalletsCommand() *cli.Command {
	return &cli.Command{
		Name:    "list-wallets",
		Usage:   "List all registered wallets",
		Aliases: []string{"ls"},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "status",
				Aliases: []string{"s"},
				Usage:   "Filter by status (active, paused, error)",
			},
		},
		Action: func(c *cli.Context) error {
			store, closer, err := getStore(c)
			if err != nil {
				return err
			}
			defer closer()

			wallets, err := store.ListWallets(context.Background())
			if err != nil {
				return fmt.Errorf("failed to list wallets: %w", err)
			}

			// Filter by status if specified
			statusFilter := c.String("status")
			if statusFilter != "" {
				filtered := make([]*db.Wallet, 0)
				for _, w := range wallets {
					if w.Status == statusFilter {
						filtered = append(filtered, w)
					}
				}
				wallets = filtered
			}

			if c.Bool("json") {
				return outputJSON(wallets)
			}

			// Pretty table output
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ADDRESS\tLABEL\tSTATUS\tSCAN LIMIT\tSCAN INTERVAL\tLAST SCAN\tCREATED")
			for _, wallet := range wallets {
				lastScan := "never"
				if wallet.LastScanAt != nil {
					lastScan = wallet.LastScanAt.Format(time.RFC3339)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%v\t%s\t%s\n",
					wallet.Address,
					wallet.Label,
					wallet.Status,
					wallet.ScanLimit,
					wallet.ScanInterval,
					lastScan,
					wallet.CreatedAt.Format(time.RFC3339),
				)
			}
			w.Flush()

			fmt.Fprintf(os.Stderr, "\nTotal: %d wallets\n", len(wallets))
			return nil
		},
	}
}

func getWalletCommand() *cli.Command {
	return &cli.Command{
		Name:      "get-wallet",
		Usage:     "Get wallet details",
		Aliases:   []string{"get"},
		ArgsUsage: "<address>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("requires exactly one argument: wallet address")
			}

			address := c.Args().First()
			store, closer, err := getStore(c)
			if err != nil {
				return err
			}
			defer closer()

			wallet, err := store.GetWallet(context.Background(), address)
			if err != nil {
				return fmt.Errorf("failed to get wallet: %w", err)
			}

			count, err := store.CountTransactionsByWallet(context.Background(), address)
			if err != nil {
				return fmt.Errorf("failed to count transactions: %w", err)
			}

			if c.Bool("json") {
				return outputJSON(map[string]interface{}{
					"wallet":            wallet,
					"transaction_count": count,
				})
			}

			// Pretty output
			fmt.Printf("Address:       %s\n", wallet.Address)
			if wallet.Label != "" {
				fmt.Printf("Label:         %s\n", wallet.Label)
			}
			fmt.Printf("Status:        %s\n", wallet.Status)
			fmt.Printf("Scan Limit:    %d\n", wallet.ScanLimit)
			fmt.Printf("Scan Interval: %v\n", wallet.ScanInterval)
			if wallet.LastScanAt != nil {
				fmt.Printf("Last Scan:     %s\n", wallet.LastScanAt.Format(time.RFC3339))
			} else {
				fmt.Printf("Last Scan:     never\n")
			}
			fmt.Printf("Created:       %s\n", wallet.CreatedAt.Format(time.RFC3339))
			fmt.Printf("Transactions:  %d\n", count)

			return nil
		},
	}
}

func listTransactionsCommand() *cli.Command {
	return &cli.Command{
		Name:    "list-transactions",
		Usage:   "List stored transactions",
		Aliases: []string{"txs"},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "wallet",
				Aliases: []string{"w"},
				Usage:   "Wallet address to list transactions for",
			},
			&cli.StringFlag{
				Name:  "type",
				Usage: "Filter by category (swap, transfer, nft, stake, unknown)",
			},
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Limit number of transactions",
				Value:   50,
			},
			&cli.StringFlag{
				Name:  "format",
				Usage: "Output format: json (default) or human",
				Value: "json",
			},
		},
		Action: func(c *cli.Context) error {
			walletAddr := c.String("wallet")
			if walletAddr == "" {
				return fmt.Errorf("please specify --wallet flag to list transactions")
			}

			store, closer, err := getStore(c)
			if err != nil {
				return err
			}
			defer closer()

			transactions, err := store.ListTransactionsByWallet(context.Background(), walletAddr, c.Int("limit"))
			if err != nil {
				return fmt.Errorf("failed to get transactions: %w", err)
			}

			if typeFilter := c.String("type"); typeFilter != "" {
				filtered := transactions[:0]
				for _, tx := range transactions {
					if string(tx.Type) == typeFilter {
						filtered = append(filtered, tx)
					}
				}
				transactions = filtered
			}

			// Default to JSON output (stdout = JSON)
			if c.String("format") == "json" {
				return outputJSON(transactions)
			}

			if len(transactions) == 0 {
				fmt.Println("No transactions found")
				return nil
			}

			for i, tx := range transactions {
				if i > 0 {
					fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
				}

				fmt.Printf("Signature: %s\n", tx.Signature)
				fmt.Printf("Date:      %s\n", time.UnixMilli(tx.Timestamp).UTC().Format(time.RFC3339))
				if tx.TimestampEstimated {
					fmt.Printf("           (estimated from scan time, not chain time)\n")
				}
				fmt.Printf("Type:      %s\n", tx.Type)
				fmt.Printf("Direction: %s\n", tx.Direction)
				fmt.Printf("Amount:    %.4f %s\n", tx.Amount, tx.Token)
				if tx.TokenMint != "" {
					fmt.Printf("Mint:      %s\n", tx.TokenMint)
				}
				if tx.From != "" {
					fmt.Printf("From:      %s\n", tx.From)
				}
				if tx.To != "" {
					fmt.Printf("To:        %s\n", tx.To)
				}
				fmt.Printf("Fee:       %.6f SOL\n", tx.Fee)
				if tx.Description != "" {
					fmt.Printf("Note:      %s\n", tx.Description)
				}
			}

			fmt.Fprintf(os.Stderr, "\nTotal: %d transactions\n", len(transactions))
			return nil
		},
	}
}

// Helper function to connect to database
func getStore(c *cli.Context) (*db.Store, func(), error) {
	dbURL := c.String("database-url")
	if dbURL == "" {
		dbURL = os.Getenv("DATABASE_URL")
	}
	if dbURL == "" {
		return nil, nil, fmt.Errorf("database-url is required (set DATABASE_URL env var or use --database-url)")
	}

	pool, err := pgxpool.New(context.Background(), dbURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := db.NewStore(pool)
	closer := func() { pool.Close() }

	return store, closer, nil
}

// Helper function to output JSON
func outputJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
