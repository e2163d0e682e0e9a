package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Wallet represents a registered wallet that the server is scanning.
type Wallet struct {
	Address      string        `json:"address"`
	Label        string        `json:"label,omitempty"`
	ScanLimit    int           `json:"scan_limit"`
	ScanInterval time.Duration `json:"scan_interval"`
	Status       string        `json:"status"` // active, paused, error
	LastScanAt   *time.Time    `json:"last_scan_at,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
}

// Transaction is a classified transaction as returned by the server.
type Transaction struct {
	Signature          string  `json:"signature"`
	Timestamp          int64   `json:"timestamp"` // milliseconds since epoch
	TimestampEstimated bool    `json:"timestampEstimated,omitempty"`
	Type               string  `json:"type"`      // swap, transfer, nft, stake, unknown
	Direction          string  `json:"direction"` // in, out, swap, unresolved
	From               string  `json:"from"`
	To                 string  `json:"to"`
	Amount             float64 `json:"amount"`
	Token              string  `json:"token"`
	TokenMint          string  `json:"tokenMint,omitempty"`
	Fee                float64 `json:"fee"`
	Description        string  `json:"description,omitempty"`
}

// Time returns the transaction timestamp as a time.Time.
func (t *Transaction) Time() time.Time {
	return time.UnixMilli(t.Timestamp).UTC()
}

// Stats holds per-category transaction counts for a wallet.
type Stats struct {
	Total     int `json:"total"`
	Swaps     int `json:"swaps"`
	Transfers int `json:"transfers"`
	NFTs      int `json:"nfts"`
	Stakes    int `json:"stakes"`
	Unknown   int `json:"unknown"`
}

// ScanResult reports the outcome of a manually triggered scan.
type ScanResult struct {
	Address   string    `json:"address"`
	Fetched   int       `json:"fetched"`
	Stored    int       `json:"stored"`
	Published int       `json:"published"`
	ScanTime  time.Time `json:"scan_time"`
	Error     *string   `json:"error,omitempty"`
}

// RegisterOptions are optional settings for wallet registration. Zero
// values defer to the server's defaults.
type RegisterOptions struct {
	Label        string
	ScanLimit    int
	ScanInterval time.Duration
}

// Client is the HTTP client for the soltrace wallet service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new wallet service client.
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

// Register tells the server to start scanning a wallet. Registering an
// already-registered wallet updates its settings in place.
func (c *Client) Register(ctx context.Context, address string, opts RegisterOptions) (*Wallet, error) {
	reqBody := map[string]interface{}{
		"address": address,
	}
	if opts.Label != "" {
		reqBody["label"] = opts.Label
	}
	if opts.ScanLimit > 0 {
		reqBody["scan_limit"] = opts.ScanLimit
	}
	if opts.ScanInterval > 0 {
		reqBody["scan_interval"] = opts.ScanInterval.String()
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/v1/wallets", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return nil, c.parseErrorResponse(resp)
	}

	var apiWallet walletResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiWallet); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	c.logger.Debug("wallet registered", "address", address)
	return responseToWallet(&apiWallet)
}

// Unregister tells the server to stop scanning a wallet.
func (c *Client) Unregister(ctx context.Context, address string) error {
	u := fmt.Sprintf("%s/api/v1/wallets/%s", c.baseURL, url.PathEscape(address))
	req, err := http.NewRequestWithContext(ctx, "DELETE", u, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		return c.parseErrorResponse(resp)
	}

	c.logger.Debug("wallet unregistered", "address", address)
	return nil
}

// Get retrieves the registration details for a specific wallet.
func (c *Client) Get(ctx context.Context, address string) (*Wallet, error) {
	u := fmt.Sprintf("%s/api/v1/wallets/%s", c.baseURL, url.PathEscape(address))
	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseErrorResponse(resp)
	}

	var apiWallet walletResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiWallet); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return responseToWallet(&apiWallet)
}

// List retrieves all registered wallets.
func (c *Client) List(ctx context.Context) ([]*Wallet, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/api/v1/wallets", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseErrorResponse(resp)
	}

	var response struct {
		Wallets []walletResponse `json:"wallets"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	wallets := make([]*Wallet, len(response.Wallets))
	for i, apiWallet := range response.Wallets {
		wallet, err := responseToWallet(&apiWallet)
		if err != nil {
			return nil, fmt.Errorf("failed to parse wallet %s: %w", apiWallet.Address, err)
		}
		wallets[i] = wallet
	}

	return wallets, nil
}

// Scan triggers an immediate scan of a wallet and waits for the result.
// A limit of 0 uses the wallet's configured scan limit.
func (c *Client) Scan(ctx context.Context, address string, limit int) (*ScanResult, error) {
	u := fmt.Sprintf("%s/api/v1/wallets/%s/scan", c.baseURL, url.PathEscape(address))
	if limit > 0 {
		u += "?limit=" + strconv.Itoa(limit)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseErrorResponse(resp)
	}

	var result ScanResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &result, nil
}

// ListTransactions retrieves stored transactions for a wallet, newest
// first. A limit of 0 uses the server default. txType optionally narrows
// the results to one category (swap, transfer, nft, stake, unknown).
func (c *Client) ListTransactions(ctx context.Context, address string, limit int, txType string) ([]*Transaction, error) {
	u := fmt.Sprintf("%s/api/v1/wallets/%s/transactions", c.baseURL, url.PathEscape(address))

	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if txType != "" {
		q.Set("type", txType)
	}
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseErrorResponse(resp)
	}

	var response struct {
		Transactions []*Transaction `json:"transactions"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return response.Transactions, nil
}

// Summary retrieves per-category transaction counts for a wallet.
func (c *Client) Summary(ctx context.Context, address string) (*Stats, error) {
	u := fmt.Sprintf("%s/api/v1/wallets/%s/summary", c.baseURL, url.PathEscape(address))
	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseErrorResponse(resp)
	}

	var response struct {
		Stats Stats `json:"stats"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &response.Stats, nil
}

// ExportCSV downloads a wallet's transaction history as CSV. It returns
// the server-suggested filename and the file contents.
func (c *Client) ExportCSV(ctx context.Context, address string) (string, []byte, error) {
	u := fmt.Sprintf("%s/api/v1/wallets/%s/export", c.baseURL, url.PathEscape(address))
	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return "", nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", nil, c.parseErrorResponse(resp)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", nil, fmt.Errorf("failed to read response: %w", err)
	}

	filename := "transactions.csv"
	if cd := resp.Header.Get("Content-Disposition"); cd != "" {
		if _, params, err := mime.ParseMediaType(cd); err == nil && params["filename"] != "" {
			filename = params["filename"]
		}
	}

	return filename, data, nil
}

// walletResponse is the API response format for a wallet. The server
// returns scan_interval as a duration string (e.g. "5m0s").
type walletResponse struct {
	Address      string     `json:"address"`
	Label        string     `json:"label,omitempty"`
	ScanLimit    int        `json:"scan_limit"`
	ScanInterval string     `json:"scan_interval"`
	Status       string     `json:"status"`
	LastScanAt   *time.Time `json:"last_scan_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// responseToWallet converts an API response to a domain Wallet.
func responseToWallet(resp *walletResponse) (*Wallet, error) {
	scanInterval, err := time.ParseDuration(resp.ScanInterval)
	if err != nil {
		return nil, fmt.Errorf("invalid scan_interval %q: %w", resp.ScanInterval, err)
	}

	return &Wallet{
		Address:      resp.Address,
		Label:        resp.Label,
		ScanLimit:    resp.ScanLimit,
		ScanInterval: scanInterval,
		Status:       resp.Status,
		LastScanAt:   resp.LastScanAt,
		CreatedAt:    resp.CreatedAt,
	}, nil
}

// parseErrorResponse attempts to parse an error response from the server.
func (c *Client) parseErrorResponse(resp *http.Response) error {
	var errResp struct {
		Error string `json:"error"`
	}

	body, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error == "" {
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(body))
	}

	return fmt.Errorf("request failed: %s", errResp.Error)
}
