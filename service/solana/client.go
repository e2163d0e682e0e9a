package solana

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/soltrace/soltrace/service/metrics"
)

// RPCClient is an interface for the Solana RPC operations we need.
// This allows us to mock the RPC layer in tests without hitting real nodes.
type RPCClient interface {
	GetSignaturesForAddress(
		ctx context.Context,
		address solana.PublicKey,
		opts *rpc.GetSignaturesForAddressOpts,
	) ([]*rpc.TransactionSignature, error)

	GetTransaction(
		ctx context.Context,
		signature solana.Signature,
		opts *rpc.GetTransactionOpts,
	) (*rpc.GetTransactionResult, error)
}

// Per-call page ceilings and hydration tuning. The page ceilings are
// independent of the caller's total limit; the hydration pause keeps the
// raw path under public RPC rate limits.
const (
	enhancedPageLimit  = 100
	rawPageLimit       = 50
	hydrationBatchSize = 10
	defaultBatchPause  = 100 * time.Millisecond
	defaultFetchLimit  = 10
)

// Client fetches a wallet's transaction history and classifies every record
// into a normalized Transaction. When an enhanced feed is configured it is
// preferred; otherwise the client falls back to raw RPC, inferring from
// program IDs and balance deltas what the feed would have said directly.
type Client struct {
	rpc        RPCClient
	feed       EnhancedFeed // nil: raw RPC only
	logger     *slog.Logger
	metrics    *metrics.Metrics
	endpoint   string // RPC endpoint identifier for metrics labels
	batchPause time.Duration
}

// NewClient creates a new fetch-and-classify client. feed may be nil, in
// which case every fetch uses the raw RPC path. If m is nil, no metrics are
// recorded.
func NewClient(rpcClient RPCClient, feed EnhancedFeed, endpoint string, m *metrics.Metrics, logger *slog.Logger) *Client {
	return &Client{
		rpc:        rpcClient,
		feed:       feed,
		logger:     logger,
		metrics:    m,
		endpoint:   endpoint,
		batchPause: defaultBatchPause,
	}
}

// FetchOptions bounds a fetch call.
type FetchOptions struct {
	// Limit caps the number of records returned. Zero means the default.
	Limit int
	// Before resumes pagination after the given signature.
	Before string
}

// FetchWalletTransactions returns up to opts.Limit classified transactions
// for the address, newest first, each with a distinct signature. Upstream
// fetch failures are returned as errors; individual records that fail to
// hydrate or parse are dropped and counted, never aborting the scan.
func (c *Client) FetchWalletTransactions(ctx context.Context, address string, opts FetchOptions) ([]*Transaction, error) {
	if opts.Limit <= 0 {
		opts.Limit = defaultFetchLimit
	}

	if c.feed != nil {
		return c.fetchEnhanced(ctx, address, opts)
	}
	return c.fetchRaw(ctx, address, opts)
}

// fetchEnhanced pages through the enhanced feed, classifying as it goes.
func (c *Client) fetchEnhanced(ctx context.Context, address string, opts FetchOptions) ([]*Transaction, error) {
	c.logger.DebugContext(ctx, "fetching via enhanced feed",
		"wallet", address,
		"limit", opts.Limit,
	)

	var out []*Transaction
	seen := make(map[string]struct{})
	before := opts.Before

	for len(out) < opts.Limit {
		batchLimit := min(enhancedPageLimit, opts.Limit-len(out))

		start := time.Now()
		page, err := c.feed.GetAddressTransactions(ctx, address, batchLimit, before)
		duration := time.Since(start).Seconds()

		status := "success"
		if err != nil {
			status = "error"
		}
		if c.metrics != nil {
			c.metrics.RecordFeedCall(status, duration)
		}
		if err != nil {
			return nil, fmt.Errorf("enhanced feed page: %w", err)
		}
		if len(page) == 0 {
			break
		}

		for _, raw := range page {
			if len(out) >= opts.Limit {
				break
			}
			if _, dup := seen[raw.Signature]; dup {
				continue
			}
			seen[raw.Signature] = struct{}{}

			txn := ClassifyEnrichedTransaction(raw, address)
			if txn.Type == TypeUnknown && raw.Type != "" && !KnownFeedType(raw.Type) {
				c.logger.WarnContext(ctx, "unrecognized feed transaction type",
					"type", raw.Type,
					"source", raw.Source,
					"signature", raw.Signature,
				)
			}
			if c.metrics != nil {
				c.metrics.RecordTransactionClassified(address, string(txn.Type))
			}
			out = append(out, txn)
		}

		next := page[len(page)-1].Signature
		if next == before {
			// No forward progress; stop rather than loop on a stuck cursor.
			break
		}
		before = next

		if len(page) < batchLimit {
			break // feed exhausted
		}
	}

	c.logger.InfoContext(ctx, "fetched transactions from enhanced feed",
		"wallet", address,
		"count", len(out),
	)
	return out, nil
}

// fetchRaw discovers signatures page by page, then hydrates full transactions
// in fixed-size concurrent batches, preserving discovery order in the output.
func (c *Client) fetchRaw(ctx context.Context, address string, opts FetchOptions) ([]*Transaction, error) {
	owner, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return nil, fmt.Errorf("invalid wallet address %q: %w", address, err)
	}

	sigs, err := c.discoverSignatures(ctx, owner, opts)
	if err != nil {
		return nil, err
	}

	c.logger.DebugContext(ctx, "hydrating transactions",
		"wallet", address,
		"signatures", len(sigs),
	)

	// Hydrate in batches: batch N+1 is only issued after batch N fully
	// resolves, and each goroutine writes to its own slot so output keeps
	// discovery order, not completion order.
	results := make([]*Transaction, len(sigs))
	for start := 0; start < len(sigs); start += hydrationBatchSize {
		end := min(start+hydrationBatchSize, len(sigs))

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i] = c.hydrateOne(ctx, sigs[i], owner, address)
			}(i)
		}
		wg.Wait()

		if end < len(sigs) {
			time.Sleep(c.batchPause)
		}
	}

	out := make([]*Transaction, 0, len(results))
	dropped := 0
	for _, txn := range results {
		if txn == nil {
			dropped++
			continue
		}
		out = append(out, txn)
	}
	if dropped > 0 && c.metrics != nil {
		c.metrics.RecordTransactionsDropped(address, "hydration_failed", dropped)
	}

	c.logger.InfoContext(ctx, "fetched and classified raw transactions",
		"wallet", address,
		"count", len(out),
		"dropped", dropped,
	)
	return out, nil
}

// discoverSignatures pages GetSignaturesForAddress until the caller's limit
// is met, a page comes back short, or the cursor stops advancing.
func (c *Client) discoverSignatures(ctx context.Context, owner solana.PublicKey, opts FetchOptions) ([]*rpc.TransactionSignature, error) {
	var sigs []*rpc.TransactionSignature
	seen := make(map[solana.Signature]struct{})

	var before solana.Signature
	if opts.Before != "" {
		sig, err := solana.SignatureFromBase58(opts.Before)
		if err != nil {
			return nil, fmt.Errorf("invalid before cursor %q: %w", opts.Before, err)
		}
		before = sig
	}

	for len(sigs) < opts.Limit {
		batchLimit := min(rawPageLimit, opts.Limit-len(sigs))
		rpcOpts := &rpc.GetSignaturesForAddressOpts{Limit: &batchLimit}
		if !before.IsZero() {
			rpcOpts.Before = before
		}

		start := time.Now()
		page, err := c.rpc.GetSignaturesForAddress(ctx, owner, rpcOpts)
		duration := time.Since(start).Seconds()

		status := "success"
		if err != nil {
			status = "error"
		}
		if c.metrics != nil {
			c.metrics.RecordRPCCall("GetSignaturesForAddress", status, c.endpoint, duration)
			if err == nil {
				c.metrics.RecordRPCSignaturesPerCall(c.endpoint, float64(len(page)))
			}
			if err != nil && isRateLimited(err) {
				c.metrics.RecordRateLimitHit(c.endpoint)
			}
		}
		if err != nil {
			return nil, fmt.Errorf("get signatures for address: %w", err)
		}
		if len(page) == 0 {
			break
		}

		for _, sig := range page {
			if len(sigs) >= opts.Limit {
				break
			}
			if _, dup := seen[sig.Signature]; dup {
				continue
			}
			seen[sig.Signature] = struct{}{}
			sigs = append(sigs, sig)
		}

		next := page[len(page)-1].Signature
		if next == before {
			break
		}
		before = next

		if len(page) < batchLimit {
			break
		}
	}
	return sigs, nil
}

// isRateLimited reports whether an RPC error looks like a 429. The rpc
// package surfaces HTTP status through the error string only.
func isRateLimited(err error) bool {
	return strings.Contains(err.Error(), "429")
}

// hydrateOne fetches and classifies a single transaction. Failures are
// logged and yield nil; one bad record never aborts the batch.
func (c *Client) hydrateOne(ctx context.Context, sig *rpc.TransactionSignature, owner solana.PublicKey, address string) *Transaction {
	maxVersion := uint64(0)
	txnOpts := &rpc.GetTransactionOpts{
		Encoding:                       solana.EncodingBase64,
		MaxSupportedTransactionVersion: &maxVersion,
	}

	start := time.Now()
	result, err := c.rpc.GetTransaction(ctx, sig.Signature, txnOpts)
	duration := time.Since(start).Seconds()

	status := "success"
	if err != nil {
		status = "error"
	}
	if c.metrics != nil {
		c.metrics.RecordRPCCall("GetTransaction", status, c.endpoint, duration)
		if err != nil && isRateLimited(err) {
			c.metrics.RecordRateLimitHit(c.endpoint)
		}
	}
	if err != nil {
		c.logger.WarnContext(ctx, "failed to get transaction, dropping",
			"signature", sig.Signature.String(),
			"error", err,
		)
		return nil
	}
	if result == nil {
		c.logger.DebugContext(ctx, "transaction not found", "signature", sig.Signature.String())
		return nil
	}

	decoded, err := result.Transaction.GetTransaction()
	if err != nil {
		c.logger.WarnContext(ctx, "failed to decode transaction, dropping",
			"signature", sig.Signature.String(),
			"error", err,
		)
		if c.metrics != nil {
			c.metrics.RecordTransactionsDropped(address, "decode_failed", 1)
		}
		return nil
	}

	blockTime := result.BlockTime
	if blockTime == nil {
		blockTime = sig.BlockTime
	}

	txn, err := ClassifyRawTransaction(sig.Signature, decoded, result.Meta, blockTime, owner)
	if err != nil {
		c.logger.WarnContext(ctx, "failed to classify transaction, dropping",
			"signature", sig.Signature.String(),
			"error", err,
		)
		if c.metrics != nil {
			c.metrics.RecordTransactionsDropped(address, "classify_failed", 1)
		}
		return nil
	}
	if c.metrics != nil {
		c.metrics.RecordTransactionClassified(address, string(txn.Type))
	}
	return txn
}
