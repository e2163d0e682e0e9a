package solana

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// EnhancedFeed is the interface to an address-scoped, pre-enriched
// transaction history API. Implementations return records newest first;
// pagination uses the last signature of the previous page as the cursor.
type EnhancedFeed interface {
	GetAddressTransactions(ctx context.Context, address string, limit int, before string) ([]*EnrichedTransaction, error)
}

const defaultFeedTimeout = 30 * time.Second

// HeliusFeed implements EnhancedFeed against the Helius enhanced
// transactions API.
type HeliusFeed struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// FeedOption configures a HeliusFeed.
type FeedOption func(*HeliusFeed)

// WithFeedHTTPClient sets a custom http.Client.
func WithFeedHTTPClient(client *http.Client) FeedOption {
	return func(f *HeliusFeed) {
		f.client = client
	}
}

// WithFeedTimeout sets the HTTP client timeout.
func WithFeedTimeout(d time.Duration) FeedOption {
	return func(f *HeliusFeed) {
		f.client.Timeout = d
	}
}

// NewHeliusFeed creates an enhanced feed client. baseURL is the API root
// (e.g. https://api.helius.xyz); the key is passed as a query parameter on
// every request.
func NewHeliusFeed(baseURL, apiKey string, opts ...FeedOption) *HeliusFeed {
	f := &HeliusFeed{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: defaultFeedTimeout},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// GetAddressTransactions fetches one page of enriched transaction history.
func (f *HeliusFeed) GetAddressTransactions(ctx context.Context, address string, limit int, before string) ([]*EnrichedTransaction, error) {
	q := url.Values{}
	q.Set("api-key", f.apiKey)
	q.Set("limit", strconv.Itoa(limit))
	if before != "" {
		q.Set("before", before)
	}
	endpoint := fmt.Sprintf("%s/v0/addresses/%s/transactions?%s", f.baseURL, url.PathEscape(address), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build feed request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("enhanced feed request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("enhanced feed returned %d: %s", resp.StatusCode, string(body))
	}

	var page []*EnrichedTransaction
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("decode feed response: %w", err)
	}
	return page, nil
}
