package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/soltrace/soltrace/service/solana"
)

// Store provides database operations for the service.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Store with the given database connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Wallet is a wallet registered for scheduled scanning.
type Wallet struct {
	Address      string
	Label        string
	ScanLimit    int
	ScanInterval time.Duration
	Status       string
	LastScanAt   *time.Time
	CreatedAt    time.Time
}

// CreateWalletParams contains the parameters for registering a wallet.
type CreateWalletParams struct {
	Address      string
	Label        string
	ScanLimit    int
	ScanInterval time.Duration
}

// CreateWallet registers a wallet for scanning. Registering an existing
// address updates its label, scan limit and interval.
func (s *Store) CreateWallet(ctx context.Context, params CreateWalletParams) (*Wallet, error) {
	query := `
		INSERT INTO wallets (address, label, scan_limit, scan_interval_seconds, status)
		VALUES ($1, $2, $3, $4, 'active')
		ON CONFLICT (address) DO UPDATE
		SET label = EXCLUDED.label,
		    scan_limit = EXCLUDED.scan_limit,
		    scan_interval_seconds = EXCLUDED.scan_interval_seconds
		RETURNING address, label, scan_limit, scan_interval_seconds, status, last_scan_at, created_at
	`
	row := s.pool.QueryRow(ctx, query,
		params.Address,
		params.Label,
		params.ScanLimit,
		int64(params.ScanInterval.Seconds()),
	)
	return scanWallet(row)
}

// GetWallet retrieves a registered wallet by address.
// Returns pgx.ErrNoRows if the wallet is not registered.
func (s *Store) GetWallet(ctx context.Context, address string) (*Wallet, error) {
	query := `
		SELECT address, label, scan_limit, scan_interval_seconds, status, last_scan_at, created_at
		FROM wallets
		WHERE address = $1
	`
	return scanWallet(s.pool.QueryRow(ctx, query, address))
}

// ListWallets returns all registered wallets, oldest registration first.
func (s *Store) ListWallets(ctx context.Context) ([]*Wallet, error) {
	query := `
		SELECT address, label, scan_limit, scan_interval_seconds, status, last_scan_at, created_at
		FROM wallets
		ORDER BY created_at
	`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list wallets: %w", err)
	}
	defer rows.Close()

	var wallets []*Wallet
	for rows.Next() {
		w, err := scanWallet(rows)
		if err != nil {
			return nil, err
		}
		wallets = append(wallets, w)
	}
	return wallets, rows.Err()
}

// WalletExists reports whether a wallet is registered.
func (s *Store) WalletExists(ctx context.Context, address string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM wallets WHERE address = $1)`, address).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check wallet exists: %w", err)
	}
	return exists, nil
}

// DeleteWallet removes a wallet registration and its stored transactions.
func (s *Store) DeleteWallet(ctx context.Context, address string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM wallet_transactions WHERE wallet_address = $1`, address); err != nil {
		return fmt.Errorf("delete wallet transactions: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM wallets WHERE address = $1`, address); err != nil {
		return fmt.Errorf("delete wallet: %w", err)
	}
	return tx.Commit(ctx)
}

// UpdateWalletScanTime records the time of the latest completed scan.
func (s *Store) UpdateWalletScanTime(ctx context.Context, address string, scanTime time.Time) error {
	_, err := s.pool.Exec(ctx, `UPDATE wallets SET last_scan_at = $2 WHERE address = $1`, address, scanTime)
	if err != nil {
		return fmt.Errorf("update wallet scan time: %w", err)
	}
	return nil
}

// UpsertTransactions stores classified transactions for a wallet. A record
// with a signature already present is overwritten: a re-scan reproduces the
// same signature, so last write wins. Returns the number of rows written.
func (s *Store) UpsertTransactions(ctx context.Context, walletAddress string, txns []*solana.Transaction) (int, error) {
	if len(txns) == 0 {
		return 0, nil
	}

	query := `
		INSERT INTO wallet_transactions (
			signature, wallet_address, timestamp_ms, timestamp_estimated,
			tx_type, direction, from_address, to_address,
			amount, token, token_mint, fee, description
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (signature) DO UPDATE
		SET wallet_address = EXCLUDED.wallet_address,
		    timestamp_ms = EXCLUDED.timestamp_ms,
		    timestamp_estimated = EXCLUDED.timestamp_estimated,
		    tx_type = EXCLUDED.tx_type,
		    direction = EXCLUDED.direction,
		    from_address = EXCLUDED.from_address,
		    to_address = EXCLUDED.to_address,
		    amount = EXCLUDED.amount,
		    token = EXCLUDED.token,
		    token_mint = EXCLUDED.token_mint,
		    fee = EXCLUDED.fee,
		    description = EXCLUDED.description
	`

	batch := &pgx.Batch{}
	for _, t := range txns {
		batch.Queue(query,
			t.Signature,
			walletAddress,
			t.Timestamp,
			t.TimestampEstimated,
			string(t.Type),
			string(t.Direction),
			t.From,
			t.To,
			t.Amount,
			t.Token,
			t.TokenMint,
			t.Fee,
			t.Description,
		)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	for i := range txns {
		if _, err := results.Exec(); err != nil {
			return i, fmt.Errorf("upsert transaction %s: %w", txns[i].Signature, err)
		}
	}
	return len(txns), nil
}

// GetTransaction retrieves one stored transaction by signature.
// Returns pgx.ErrNoRows if it does not exist.
func (s *Store) GetTransaction(ctx context.Context, signature string) (*solana.Transaction, error) {
	query := selectTransaction + ` WHERE signature = $1`
	return scanTransaction(s.pool.QueryRow(ctx, query, signature))
}

// ListTransactionsByWallet returns stored transactions for a wallet, newest
// first, capped at limit (or all when limit <= 0).
func (s *Store) ListTransactionsByWallet(ctx context.Context, walletAddress string, limit int) ([]*solana.Transaction, error) {
	query := selectTransaction + ` WHERE wallet_address = $1 ORDER BY timestamp_ms DESC`
	args := []any{walletAddress}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var txns []*solana.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txns = append(txns, t)
	}
	return txns, rows.Err()
}

// CountTransactionsByWallet returns the number of stored records for a wallet.
func (s *Store) CountTransactionsByWallet(ctx context.Context, walletAddress string) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM wallet_transactions WHERE wallet_address = $1`,
		walletAddress,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count transactions: %w", err)
	}
	return count, nil
}

// GetLatestSignature returns the signature of the newest stored transaction
// for a wallet, or empty string when none are stored.
func (s *Store) GetLatestSignature(ctx context.Context, walletAddress string) (string, error) {
	var sig string
	err := s.pool.QueryRow(ctx,
		`SELECT signature FROM wallet_transactions WHERE wallet_address = $1 ORDER BY timestamp_ms DESC LIMIT 1`,
		walletAddress,
	).Scan(&sig)
	if err == pgx.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get latest signature: %w", err)
	}
	return sig, nil
}

const selectTransaction = `
	SELECT signature, timestamp_ms, timestamp_estimated, tx_type, direction,
	       from_address, to_address, amount, token, token_mint, fee, description
	FROM wallet_transactions`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWallet(row rowScanner) (*Wallet, error) {
	var (
		w               Wallet
		intervalSeconds int64
	)
	err := row.Scan(&w.Address, &w.Label, &w.ScanLimit, &intervalSeconds, &w.Status, &w.LastScanAt, &w.CreatedAt)
	if err != nil {
		return nil, err
	}
	w.ScanInterval = time.Duration(intervalSeconds) * time.Second
	return &w, nil
}

func scanTransaction(row rowScanner) (*solana.Transaction, error) {
	var (
		t         solana.Transaction
		txType    string
		direction string
	)
	err := row.Scan(
		&t.Signature,
		&t.Timestamp,
		&t.TimestampEstimated,
		&txType,
		&direction,
		&t.From,
		&t.To,
		&t.Amount,
		&t.Token,
		&t.TokenMint,
		&t.Fee,
		&t.Description,
	)
	if err != nil {
		return nil, err
	}
	t.Type = solana.TxType(txType)
	t.Direction = solana.Direction(direction)
	return &t, nil
}
