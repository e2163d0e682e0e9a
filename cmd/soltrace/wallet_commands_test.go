package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/itchyny/gojq"
	"github.com/urfave/cli/v2"

	"github.com/soltrace/soltrace/client"
)

func TestJQFilterMatching(t *testing.T) {
	tests := []struct {
		name        string
		doc         string
		jqFilter    string
		expectMatch bool
		expectErr   bool
	}{
		{
			name:        "simple field equality",
			doc:         `{"type": "swap", "amount": 1.5}`,
			jqFilter:    `.type == "swap"`,
			expectMatch: true,
		},
		{
			name:        "field mismatch",
			doc:         `{"type": "transfer"}`,
			jqFilter:    `.type == "swap"`,
			expectMatch: false,
		},
		{
			name:        "numeric comparison true",
			doc:         `{"amount": 100}`,
			jqFilter:    `.amount > 50`,
			expectMatch: true,
		},
		{
			name:        "numeric comparison false",
			doc:         `{"amount": 25}`,
			jqFilter:    `.amount > 50`,
			expectMatch: false,
		},
		{
			name:        "missing field is null",
			doc:         `{"type": "swap"}`,
			jqFilter:    `.nonexistent`,
			expectMatch: false,
		},
		{
			name:        "string selection is truthy",
			doc:         `{"token": "USDC"}`,
			jqFilter:    `.token`,
			expectMatch: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, err := gojq.Parse(tt.jqFilter)
			if err != nil {
				t.Fatalf("failed to parse jq filter: %v", err)
			}
			code, err := gojq.Compile(query)
			if err != nil {
				t.Fatalf("failed to compile jq filter: %v", err)
			}

			var docJSON interface{}
			err = json.Unmarshal([]byte(tt.doc), &docJSON)
			if err != nil && !tt.expectErr {
				t.Fatalf("unexpected JSON parse error: %v", err)
			}
			if err != nil && tt.expectErr {
				return
			}

			iter := code.Run(docJSON)
			v, ok := iter.Next()
			if !ok {
				if tt.expectMatch {
					t.Fatal("expected match but jq filter returned no result")
				}
				return
			}

			if err, isErr := v.(error); isErr {
				if !tt.expectErr {
					t.Fatalf("unexpected jq filter error: %v", err)
				}
				return
			}

			matched := isTruthy(v)
			if matched != tt.expectMatch {
				t.Errorf("expected match=%v, got match=%v (jq result: %v)", tt.expectMatch, matched, v)
			}
		})
	}
}

func TestMatchesJQFilters(t *testing.T) {
	txn := &client.Transaction{
		Signature: "sig1",
		Timestamp: 1700000000000,
		Type:      "swap",
		Direction: "swap",
		Amount:    1.5,
		Token:     "USDC",
		Fee:       0.000005,
	}

	tests := []struct {
		name        string
		filters     []string
		expectMatch bool
	}{
		{
			name:        "no filters matches everything",
			filters:     nil,
			expectMatch: true,
		},
		{
			name:        "single matching filter",
			filters:     []string{`.type == "swap"`},
			expectMatch: true,
		},
		{
			name:        "single failing filter",
			filters:     []string{`.type == "transfer"`},
			expectMatch: false,
		},
		{
			name:        "all filters must match",
			filters:     []string{`.type == "swap"`, `.amount > 1`},
			expectMatch: true,
		},
		{
			name:        "one failing filter rejects",
			filters:     []string{`.type == "swap"`, `.amount > 100`},
			expectMatch: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			compiled, err := compileJQFilters(tt.filters)
			if err != nil {
				t.Fatalf("failed to compile filters: %v", err)
			}

			matched, err := matchesJQFilters(compiled, txn)
			if err != nil {
				t.Fatalf("unexpected filter error: %v", err)
			}

			if matched != tt.expectMatch {
				t.Errorf("expected match=%v, got match=%v", tt.expectMatch, matched)
			}
		})
	}
}

func TestCompileJQFilters_InvalidFilter(t *testing.T) {
	_, err := compileJQFilters([]string{`.type ==`})
	if err == nil {
		t.Fatal("expected parse error for invalid filter")
	}
}

// Test helpers for mocking HTTP server

func testWalletJSON(address string) map[string]interface{} {
	now := time.Now().UTC()
	return map[string]interface{}{
		"address":       address,
		"scan_limit":    100,
		"scan_interval": "5m0s",
		"status":        "active",
		"created_at":    now.Format(time.RFC3339),
	}
}

func runWalletCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()

	oldStdout := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	app := &cli.App{
		Commands: []*cli.Command{
			walletCommands(),
		},
	}

	err := app.Run(append([]string{"test"}, args...))

	w.Close()
	os.Stdout = oldStdout

	var buf bytes.Buffer
	buf.ReadFrom(r)
	return buf.String(), err
}

func TestWalletAddCommand(t *testing.T) {
	os.Unsetenv("SOLTRACE_SERVER_URL")
	os.Unsetenv("SERVER_URL")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" || r.URL.Path != "/api/v1/wallets" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
			return
		}

		var req struct {
			Address      string `json:"address"`
			ScanInterval string `json:"scan_interval"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		if req.Address != "testwallet123" {
			t.Errorf("unexpected address: %s", req.Address)
		}
		if req.ScanInterval != "30s" {
			t.Errorf("unexpected scan_interval: %s", req.ScanInterval)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(testWalletJSON("testwallet123"))
	}))
	defer server.Close()

	output, err := runWalletCommand(t, "wallet", "add", "--server", server.URL, "--scan-interval", "30s", "testwallet123")
	if err != nil {
		t.Fatalf("command failed: %v", err)
	}

	if !bytes.Contains([]byte(output), []byte("✓ Wallet registered successfully")) {
		t.Errorf("expected success message, got: %s", output)
	}
}

func TestWalletAddCommand_JSON(t *testing.T) {
	os.Unsetenv("SOLTRACE_SERVER_URL")
	os.Unsetenv("SERVER_URL")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(testWalletJSON("testwallet"))
	}))
	defer server.Close()

	output, err := runWalletCommand(t, "wallet", "add", "--server", server.URL, "--json", "testwallet")
	if err != nil {
		t.Fatalf("command failed: %v", err)
	}

	var result map[string]interface{}
	if err := json.Unmarshal([]byte(output), &result); err != nil {
		t.Fatalf("expected JSON output, got: %s", output)
	}

	if result["address"] != "testwallet" {
		t.Errorf("expected address=testwallet, got: %v", result["address"])
	}
}

func TestWalletListCommand(t *testing.T) {
	os.Unsetenv("SOLTRACE_SERVER_URL")
	os.Unsetenv("SERVER_URL")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "GET" || r.URL.Path != "/api/v1/wallets" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
			return
		}

		wallets := struct {
			Wallets []map[string]interface{} `json:"wallets"`
		}{
			Wallets: []map[string]interface{}{
				testWalletJSON("wallet1"),
				testWalletJSON("wallet2"),
			},
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(wallets)
	}))
	defer server.Close()

	output, err := runWalletCommand(t, "wallet", "list", "--server", server.URL)
	if err != nil {
		t.Fatalf("command failed: %v", err)
	}

	// Should output JSON array by default
	var wallets []map[string]interface{}
	if err := json.Unmarshal([]byte(output), &wallets); err != nil {
		t.Fatalf("expected JSON array output, got: %s", output)
	}

	if len(wallets) != 2 {
		t.Errorf("expected 2 wallets, got: %d", len(wallets))
	}

	if wallets[0]["address"] != "wallet1" {
		t.Errorf("expected first wallet address to be wallet1, got: %v", wallets[0]["address"])
	}
}

func TestWalletGetCommand_NotFound(t *testing.T) {
	os.Unsetenv("SOLTRACE_SERVER_URL")
	os.Unsetenv("SERVER_URL")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "wallet not found",
		})
	}))
	defer server.Close()

	app := &cli.App{
		Commands: []*cli.Command{
			walletCommands(),
		},
	}

	err := app.Run([]string{"test", "wallet", "get", "--server", server.URL, "nonexistent"})
	if err == nil {
		t.Fatal("expected error for nonexistent wallet")
	}

	if !bytes.Contains([]byte(err.Error()), []byte("wallet not found")) {
		t.Errorf("expected 'wallet not found' error, got: %v", err)
	}
}

func TestWalletRemoveCommand_Aliases(t *testing.T) {
	os.Unsetenv("SOLTRACE_SERVER_URL")
	os.Unsetenv("SERVER_URL")

	aliases := []string{"remove", "rm", "delete", "unregister"}

	for _, alias := range aliases {
		t.Run(alias, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != "DELETE" {
					w.WriteHeader(http.StatusMethodNotAllowed)
					return
				}
				w.WriteHeader(http.StatusNoContent)
			}))
			defer server.Close()

			// Suppress output
			oldStdout := os.Stdout
			os.Stdout, _ = os.Open(os.DevNull)
			defer func() { os.Stdout = oldStdout }()

			app := &cli.App{
				Commands: []*cli.Command{
					walletCommands(),
				},
			}

			err := app.Run([]string{"test", "wallet", alias, "--server", server.URL, "testwallet"})
			if err != nil {
				t.Errorf("alias %s failed: %v", alias, err)
			}
		})
	}
}

func TestWalletTransactionsCommand_JQFilter(t *testing.T) {
	os.Unsetenv("SOLTRACE_SERVER_URL")
	os.Unsetenv("SERVER_URL")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		response := map[string]interface{}{
			"wallet_address": "testwallet",
			"transactions": []map[string]interface{}{
				{"signature": "sig1", "timestamp": 1700000000000, "type": "swap", "direction": "swap", "amount": 5.0, "token": "SOL", "fee": 0.000005},
				{"signature": "sig2", "timestamp": 1700000001000, "type": "transfer", "direction": "in", "amount": 0.1, "token": "SOL", "fee": 0.000005},
			},
			"count": 2,
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(response)
	}))
	defer server.Close()

	output, err := runWalletCommand(t, "wallet", "transactions", "--server", server.URL,
		"--must-jq", `.amount > 1`, "--json", "testwallet")
	if err != nil {
		t.Fatalf("command failed: %v", err)
	}

	var txns []map[string]interface{}
	if err := json.Unmarshal([]byte(output), &txns); err != nil {
		t.Fatalf("expected JSON array output, got: %s", output)
	}

	if len(txns) != 1 {
		t.Fatalf("expected 1 transaction after jq filtering, got: %d", len(txns))
	}
	if txns[0]["signature"] != "sig1" {
		t.Errorf("expected sig1, got: %v", txns[0]["signature"])
	}
}

func TestWalletSummaryCommand(t *testing.T) {
	os.Unsetenv("SOLTRACE_SERVER_URL")
	os.Unsetenv("SERVER_URL")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/wallets/testwallet/summary" {
			t.Errorf("unexpected path: %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
			return
		}
		response := map[string]interface{}{
			"wallet_address": "testwallet",
			"stats": map[string]int{
				"total": 7, "swaps": 3, "transfers": 2, "nfts": 1, "stakes": 0, "unknown": 1,
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(response)
	}))
	defer server.Close()

	output, err := runWalletCommand(t, "wallet", "summary", "--server", server.URL, "--json", "testwallet")
	if err != nil {
		t.Fatalf("command failed: %v", err)
	}

	var stats map[string]interface{}
	if err := json.Unmarshal([]byte(output), &stats); err != nil {
		t.Fatalf("expected JSON output, got: %s", output)
	}

	if stats["total"] != float64(7) {
		t.Errorf("expected total=7, got: %v", stats["total"])
	}
	if stats["swaps"] != float64(3) {
		t.Errorf("expected swaps=3, got: %v", stats["swaps"])
	}
}

func TestWalletExportCommand_Stdout(t *testing.T) {
	os.Unsetenv("SOLTRACE_SERVER_URL")
	os.Unsetenv("SERVER_URL")

	csvBody := "Date,Type,Direction,Token,Amount,Fee (SOL),From,To,Description,Transaction Signature\n" +
		"2023-11-14T22:13:20Z,trade,SWAP,USDC,1.5000,0.000005,,,\"\",sig1"

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/wallets/testwallet/export" {
			t.Errorf("unexpected path: %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="trace-report-test...llet-2023-11-14.csv"`)
		w.Write([]byte(csvBody))
	}))
	defer server.Close()

	output, err := runWalletCommand(t, "wallet", "export", "--server", server.URL, "--output", "-", "testwallet")
	if err != nil {
		t.Fatalf("command failed: %v", err)
	}

	if !bytes.Contains([]byte(output), []byte("Date,Type,Direction,")) {
		t.Errorf("expected CSV header in output, got: %s", output)
	}
	if !bytes.Contains([]byte(output), []byte("trade")) {
		t.Errorf("expected trade row in output, got: %s", output)
	}
}
