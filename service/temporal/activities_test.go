package temporal

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soltrace/soltrace/service/metrics"
	natspkg "github.com/soltrace/soltrace/service/nats"
	"github.com/soltrace/soltrace/service/solana"
)

// mockStore is a mock implementation of StoreInterface for testing.
type mockStore struct {
	upserted     map[string][]*solana.Transaction
	scanTimes    map[string]time.Time
	upsertErr    error
	scanTimeErr  error
	upsertCalled int
}

func newMockStore() *mockStore {
	return &mockStore{
		upserted:  make(map[string][]*solana.Transaction),
		scanTimes: make(map[string]time.Time),
	}
}

func (m *mockStore) UpsertTransactions(ctx context.Context, walletAddress string, txns []*solana.Transaction) (int, error) {
	m.upsertCalled++
	if m.upsertErr != nil {
		return 0, m.upsertErr
	}
	m.upserted[walletAddress] = append(m.upserted[walletAddress], txns...)
	return len(txns), nil
}

func (m *mockStore) UpdateWalletScanTime(ctx context.Context, address string, scanTime time.Time) error {
	if m.scanTimeErr != nil {
		return m.scanTimeErr
	}
	m.scanTimes[address] = scanTime
	return nil
}

// mockSolanaClient is a mock implementation of SolanaClientInterface.
type mockSolanaClient struct {
	transactions []*solana.Transaction
	fetchErr     error
	lastOpts     solana.FetchOptions
}

func (m *mockSolanaClient) FetchWalletTransactions(ctx context.Context, address string, opts solana.FetchOptions) ([]*solana.Transaction, error) {
	m.lastOpts = opts
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	return m.transactions, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestFetchTransactionsActivity(t *testing.T) {
	client := &mockSolanaClient{
		transactions: []*solana.Transaction{
			{Signature: "sig1", Type: solana.TypeSwap, Direction: solana.DirectionSwap},
			{Signature: "sig2", Type: solana.TypeUnknown, Direction: solana.DirectionUnresolved},
		},
	}
	activities := NewActivities(newMockStore(), client, nil, nil, testLogger())

	result, err := activities.FetchTransactions(context.Background(), FetchTransactionsInput{
		Address: "wallet1",
		Limit:   25,
	})
	require.NoError(t, err)
	require.Len(t, result.Transactions, 2)
	assert.Equal(t, 25, client.lastOpts.Limit)
}

func TestFetchTransactionsActivity_Error(t *testing.T) {
	client := &mockSolanaClient{fetchErr: errors.New("rpc unavailable")}
	activities := NewActivities(newMockStore(), client, nil, nil, testLogger())

	_, err := activities.FetchTransactions(context.Background(), FetchTransactionsInput{Address: "wallet1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to fetch wallet transactions")
}

func TestStoreTransactionsActivity(t *testing.T) {
	store := newMockStore()
	activities := NewActivities(store, &mockSolanaClient{}, nil, nil, testLogger())

	txns := []*solana.Transaction{
		{Signature: "sig1", Type: solana.TypeTransfer, Direction: solana.DirectionIn},
	}
	result, err := activities.StoreTransactions(context.Background(), StoreTransactionsInput{
		WalletAddress: "wallet1",
		Transactions:  txns,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Stored)
	assert.Len(t, store.upserted["wallet1"], 1)

	// Scan time is updated after a successful store.
	_, ok := store.scanTimes["wallet1"]
	assert.True(t, ok)
}

func TestStoreTransactionsActivity_ScanTimeFailureIsNonFatal(t *testing.T) {
	store := newMockStore()
	store.scanTimeErr = errors.New("db busy")
	activities := NewActivities(store, &mockSolanaClient{}, nil, nil, testLogger())

	result, err := activities.StoreTransactions(context.Background(), StoreTransactionsInput{
		WalletAddress: "wallet1",
		Transactions: []*solana.Transaction{
			{Signature: "sig1", Type: solana.TypeStake, Direction: solana.DirectionOut},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Stored)
}

func TestStoreTransactionsActivity_RecordsDBMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	store := newMockStore()
	activities := NewActivities(store, &mockSolanaClient{}, nil, metrics.NewMetrics(reg), testLogger())

	_, err := activities.StoreTransactions(context.Background(), StoreTransactionsInput{
		WalletAddress: "wallet1",
		Transactions: []*solana.Transaction{
			{Signature: "sig1", Type: solana.TypeTransfer, Direction: solana.DirectionIn},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 1.0, dbOperationCount(t, reg, "upsert_transactions", "success"))
	assert.Equal(t, 1.0, dbOperationCount(t, reg, "update_scan_time", "success"))
}

// dbOperationCount returns the db_operations_total counter value for the
// given operation and status, or zero when the series does not exist.
func dbOperationCount(t *testing.T, reg *prometheus.Registry, operation, status string) float64 {
	t.Helper()

	families, err := reg.Gather()
	require.NoError(t, err)

	for _, family := range families {
		if family.GetName() != "db_operations_total" {
			continue
		}
		for _, m := range family.GetMetric() {
			matched := 0
			for _, pair := range m.GetLabel() {
				if (pair.GetName() == "operation" && pair.GetValue() == operation) ||
					(pair.GetName() == "status" && pair.GetValue() == status) {
					matched++
				}
			}
			if matched == 2 {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func TestStoreTransactionsActivity_Error(t *testing.T) {
	store := newMockStore()
	store.upsertErr = errors.New("constraint violation")
	activities := NewActivities(store, &mockSolanaClient{}, nil, nil, testLogger())

	_, err := activities.StoreTransactions(context.Background(), StoreTransactionsInput{
		WalletAddress: "wallet1",
		Transactions: []*solana.Transaction{
			{Signature: "sig1"},
		},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to store transactions")
}

func TestPublishTransactionsActivity(t *testing.T) {
	publisher := natspkg.NewMockPublisher()
	activities := NewActivities(newMockStore(), &mockSolanaClient{}, publisher, nil, testLogger())

	result, err := activities.PublishTransactions(context.Background(), PublishTransactionsInput{
		WalletAddress: "wallet1",
		Transactions: []*solana.Transaction{
			{Signature: "sig1", Type: solana.TypeSwap, Direction: solana.DirectionSwap, Amount: 5, Token: "USDC"},
			{Signature: "sig2", Type: solana.TypeTransfer, Direction: solana.DirectionOut, Amount: 1.5, Token: "SOL"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Published)

	events := publisher.GetPublishedEventsForWallet("wallet1")
	require.Len(t, events, 2)
	assert.Equal(t, "sig1", events[0].Signature)
	assert.Equal(t, "swap", events[0].Type)
	assert.Equal(t, "USDC", events[0].Token)
}

func TestPublishTransactionsActivity_NoPublisher(t *testing.T) {
	activities := NewActivities(newMockStore(), &mockSolanaClient{}, nil, nil, testLogger())

	result, err := activities.PublishTransactions(context.Background(), PublishTransactionsInput{
		WalletAddress: "wallet1",
		Transactions: []*solana.Transaction{
			{Signature: "sig1"},
		},
	})
	require.NoError(t, err)
	assert.Zero(t, result.Published)
}

func TestPublishTransactionsActivity_Error(t *testing.T) {
	publisher := natspkg.NewMockPublisher()
	publisher.SetPublishBatchError(errors.New("nats down"))
	activities := NewActivities(newMockStore(), &mockSolanaClient{}, publisher, nil, testLogger())

	_, err := activities.PublishTransactions(context.Background(), PublishTransactionsInput{
		WalletAddress: "wallet1",
		Transactions: []*solana.Transaction{
			{Signature: "sig1"},
		},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to publish transactions")
}
