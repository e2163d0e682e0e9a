package temporal

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/soltrace/soltrace/service/metrics"
	natspkg "github.com/soltrace/soltrace/service/nats"
	"github.com/soltrace/soltrace/service/solana"
)

// ScanWalletInput contains the input parameters for scanning a wallet.
type ScanWalletInput struct {
	Address string `json:"address"`
	Limit   int    `json:"limit"`
}

// ScanWalletResult contains the result of a wallet scan.
type ScanWalletResult struct {
	Address   string    `json:"address"`
	Fetched   int       `json:"fetched"`
	Stored    int       `json:"stored"`
	Published int       `json:"published"`
	ScanTime  time.Time `json:"scan_time"`
	Error     *string   `json:"error,omitempty"`
}

// FetchTransactionsInput contains parameters for the FetchTransactions activity.
type FetchTransactionsInput struct {
	Address string `json:"address"`
	Limit   int    `json:"limit"`
	Before  string `json:"before,omitempty"`
}

// FetchTransactionsResult contains the classified transactions fetched upstream.
type FetchTransactionsResult struct {
	Transactions []*solana.Transaction `json:"transactions"`
}

// StoreTransactionsInput contains parameters for the StoreTransactions activity.
type StoreTransactionsInput struct {
	WalletAddress string                `json:"wallet_address"`
	Transactions  []*solana.Transaction `json:"transactions"`
}

// StoreTransactionsResult contains the result of persisting transactions.
type StoreTransactionsResult struct {
	Stored int `json:"stored"`
}

// PublishTransactionsInput contains parameters for the PublishTransactions activity.
type PublishTransactionsInput struct {
	WalletAddress string                `json:"wallet_address"`
	Transactions  []*solana.Transaction `json:"transactions"`
}

// PublishTransactionsResult contains the result of publishing events.
type PublishTransactionsResult struct {
	Published int `json:"published"`
}

// StoreInterface defines the database operations needed by activities.
// This allows for easy mocking in tests.
type StoreInterface interface {
	UpsertTransactions(ctx context.Context, walletAddress string, txns []*solana.Transaction) (int, error)
	UpdateWalletScanTime(ctx context.Context, address string, scanTime time.Time) error
}

// SolanaClientInterface defines the upstream fetch operations needed by
// activities. This allows for easy mocking in tests.
type SolanaClientInterface interface {
	FetchWalletTransactions(ctx context.Context, address string, opts solana.FetchOptions) ([]*solana.Transaction, error)
}

// PublisherInterface defines the NATS publishing operations needed by
// activities. This allows for easy mocking in tests.
type PublisherInterface interface {
	PublishTransaction(ctx context.Context, event *natspkg.TransactionEvent) error
	PublishTransactionBatch(ctx context.Context, events []*natspkg.TransactionEvent) error
}

// Activities holds the dependencies needed by Temporal activities.
// Following go-kit pattern, all dependencies are explicit.
type Activities struct {
	store        StoreInterface
	solanaClient SolanaClientInterface
	publisher    PublisherInterface
	metrics      *metrics.Metrics
	logger       *slog.Logger
}

// NewActivities creates a new Activities instance with explicit dependencies.
// If metrics is nil, no metrics will be recorded.
func NewActivities(
	store StoreInterface,
	solanaClient SolanaClientInterface,
	publisher PublisherInterface,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Activities {
	if logger == nil {
		logger = slog.Default()
	}
	return &Activities{
		store:        store,
		solanaClient: solanaClient,
		publisher:    publisher,
		metrics:      m,
		logger:       logger,
	}
}

// FetchTransactions fetches and classifies wallet transactions from upstream.
func (a *Activities) FetchTransactions(ctx context.Context, input FetchTransactionsInput) (*FetchTransactionsResult, error) {
	start := time.Now()
	defer func() {
		if a.metrics != nil {
			a.metrics.RecordActivityDuration("FetchTransactions", input.Address, time.Since(start).Seconds())
		}
	}()

	a.logger.DebugContext(ctx, "fetching wallet transactions",
		"address", input.Address,
		"limit", input.Limit,
		"before", input.Before,
	)

	transactions, err := a.solanaClient.FetchWalletTransactions(ctx, input.Address, solana.FetchOptions{
		Limit:  input.Limit,
		Before: input.Before,
	})
	if err != nil {
		a.logger.ErrorContext(ctx, "failed to fetch wallet transactions",
			"address", input.Address,
			"error", err,
		)
		return nil, fmt.Errorf("failed to fetch wallet transactions: %w", err)
	}

	a.logger.InfoContext(ctx, "fetched wallet transactions",
		"address", input.Address,
		"count", len(transactions),
	)

	return &FetchTransactionsResult{Transactions: transactions}, nil
}

// StoreTransactions persists classified transactions and updates the
// wallet's last scan time. Re-running with the same transactions is safe
// because records are keyed by signature.
func (a *Activities) StoreTransactions(ctx context.Context, input StoreTransactionsInput) (*StoreTransactionsResult, error) {
	start := time.Now()
	defer func() {
		if a.metrics != nil {
			a.metrics.RecordActivityDuration("StoreTransactions", input.WalletAddress, time.Since(start).Seconds())
		}
	}()

	a.logger.DebugContext(ctx, "storing transactions",
		"wallet", input.WalletAddress,
		"count", len(input.Transactions),
	)

	upsertStart := time.Now()
	stored, err := a.store.UpsertTransactions(ctx, input.WalletAddress, input.Transactions)
	if a.metrics != nil {
		status := "success"
		if err != nil {
			status = "error"
		}
		a.metrics.RecordDBQuery("upsert_transactions", "wallet_transactions", status, time.Since(upsertStart).Seconds())
	}
	if err != nil {
		a.logger.ErrorContext(ctx, "failed to store transactions",
			"wallet", input.WalletAddress,
			"error", err,
		)
		return nil, fmt.Errorf("failed to store transactions: %w", err)
	}

	updateStart := time.Now()
	if err := a.store.UpdateWalletScanTime(ctx, input.WalletAddress, time.Now()); err != nil {
		// Transactions are written, so don't fail the activity for this.
		a.logger.WarnContext(ctx, "failed to update wallet scan time",
			"wallet", input.WalletAddress,
			"error", err,
		)
		if a.metrics != nil {
			a.metrics.RecordDBQuery("update_scan_time", "wallets", "error", time.Since(updateStart).Seconds())
		}
	} else if a.metrics != nil {
		a.metrics.RecordDBQuery("update_scan_time", "wallets", "success", time.Since(updateStart).Seconds())
	}

	a.logger.InfoContext(ctx, "stored transactions",
		"wallet", input.WalletAddress,
		"stored", stored,
	)

	return &StoreTransactionsResult{Stored: stored}, nil
}

// PublishTransactions publishes classified transactions to NATS for
// real-time subscribers. Publishing is best-effort per event.
func (a *Activities) PublishTransactions(ctx context.Context, input PublishTransactionsInput) (*PublishTransactionsResult, error) {
	start := time.Now()
	defer func() {
		if a.metrics != nil {
			a.metrics.RecordActivityDuration("PublishTransactions", input.WalletAddress, time.Since(start).Seconds())
		}
	}()

	if a.publisher == nil || len(input.Transactions) == 0 {
		return &PublishTransactionsResult{}, nil
	}

	events := make([]*natspkg.TransactionEvent, 0, len(input.Transactions))
	for _, txn := range input.Transactions {
		events = append(events, natspkg.FromTransaction(input.WalletAddress, txn))
	}

	if err := a.publisher.PublishTransactionBatch(ctx, events); err != nil {
		a.logger.ErrorContext(ctx, "failed to publish transactions",
			"wallet", input.WalletAddress,
			"count", len(events),
			"error", err,
		)
		return nil, fmt.Errorf("failed to publish transactions: %w", err)
	}

	a.logger.DebugContext(ctx, "published transactions",
		"wallet", input.WalletAddress,
		"count", len(events),
	)

	return &PublishTransactionsResult{Published: len(events)}, nil
}
