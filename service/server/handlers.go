package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/jackc/pgx/v5"

	"github.com/soltrace/soltrace/service/config"
	"github.com/soltrace/soltrace/service/db"
	"github.com/soltrace/soltrace/service/export"
	"github.com/soltrace/soltrace/service/metrics"
	"github.com/soltrace/soltrace/service/solana"
	"github.com/soltrace/soltrace/service/temporal"
)

const (
	maxRequestBodySize = 1 << 20 // 1MB - plenty for wallet registration
	maxAddressLength   = 100     // Solana addresses are 44 chars, give buffer
	maxScanInterval    = 24 * time.Hour
	maxScanLimit       = 1000
)

var (
	// Valid Solana address characters: base58 (no 0, O, I, l)
	validAddressRegex = regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]+$`)
)

// handleRegisterWallet returns a handler that registers a wallet for
// scheduled scanning and creates its Temporal schedule.
// POST /api/v1/wallets
func handleRegisterWallet(store *db.Store, scheduler temporal.Scheduler, cfg *config.Config, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Limit request body size to prevent memory exhaustion
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

		var req struct {
			Address      string `json:"address"`
			Label        string `json:"label"`
			ScanLimit    int    `json:"scan_limit"`
			ScanInterval string `json:"scan_interval"`
		}

		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Debug("failed to decode register request", "error", err)
			if strings.Contains(err.Error(), "http: request body too large") {
				writeError(w, "request body too large: maximum size is 1MB", http.StatusBadRequest)
				return
			}
			writeError(w, "invalid request body: must be valid JSON", http.StatusBadRequest)
			return
		}

		if err := validateAddress(req.Address); err != nil {
			logger.Debug("invalid address", "address", req.Address, "error", err)
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		scanInterval := cfg.DefaultScanInterval
		if req.ScanInterval != "" {
			var err error
			scanInterval, err = time.ParseDuration(req.ScanInterval)
			if err != nil {
				logger.Debug("invalid scan interval", "interval", req.ScanInterval, "error", err)
				writeError(w, "invalid scan_interval: must be a valid duration (e.g. '30s', '5m')", http.StatusBadRequest)
				return
			}
		}
		if err := validateScanInterval(scanInterval, cfg.MinScanInterval); err != nil {
			logger.Debug("invalid scan interval value", "interval", scanInterval, "error", err)
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		scanLimit := req.ScanLimit
		if scanLimit == 0 {
			scanLimit = cfg.DefaultScanLimit
		}
		if err := validateScanLimit(scanLimit); err != nil {
			logger.Debug("invalid scan limit", "limit", scanLimit, "error", err)
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		existed, err := store.WalletExists(r.Context(), req.Address)
		if err != nil {
			logger.Error("failed to check wallet existence", "address", req.Address, "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}

		wallet, err := store.CreateWallet(r.Context(), db.CreateWalletParams{
			Address:      req.Address,
			Label:        req.Label,
			ScanLimit:    scanLimit,
			ScanInterval: scanInterval,
		})
		if err != nil {
			logger.Error("failed to register wallet", "address", req.Address, "error", err)
			writeError(w, "failed to register wallet", http.StatusInternalServerError)
			return
		}

		if err := scheduler.UpsertWalletSchedule(r.Context(), req.Address, scanLimit, scanInterval); err != nil {
			logger.Error("failed to create schedule", "address", req.Address, "error", err)

			// Rollback: only delete the registration we just created.
			if !existed {
				if delErr := store.DeleteWallet(r.Context(), req.Address); delErr != nil {
					logger.Error("failed to rollback wallet registration", "address", req.Address, "error", delErr)
				}
			}

			writeError(w, "failed to create schedule for wallet", http.StatusInternalServerError)
			return
		}

		statusCode := http.StatusCreated
		if existed {
			statusCode = http.StatusOK
		}

		logger.Info("wallet registered with schedule",
			"address", wallet.Address,
			"scan_limit", wallet.ScanLimit,
			"scan_interval", wallet.ScanInterval,
		)

		writeJSON(w, walletToResponse(wallet), statusCode)
	})
}

// handleUnregisterWallet returns a handler that unregisters a wallet and
// deletes its Temporal schedule.
// DELETE /api/v1/wallets/{address}
func handleUnregisterWallet(store *db.Store, scheduler temporal.Scheduler, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		address := r.PathValue("address")

		if err := validateAddress(address); err != nil {
			logger.Debug("invalid address", "address", address, "error", err)
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		exists, err := store.WalletExists(r.Context(), address)
		if err != nil {
			logger.Error("failed to check wallet existence", "address", address, "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}

		if !exists {
			writeError(w, "wallet not found", http.StatusNotFound)
			return
		}

		// Delete the schedule first. If this fails, keep the registration
		// so a retry can clean up both.
		if err := scheduler.DeleteWalletSchedule(r.Context(), address); err != nil {
			logger.Error("failed to delete schedule", "address", address, "error", err)
			writeError(w, "failed to delete schedule for wallet", http.StatusInternalServerError)
			return
		}

		if err := store.DeleteWallet(r.Context(), address); err != nil {
			logger.Error("failed to delete wallet", "address", address, "error", err)
			writeError(w, "failed to unregister wallet", http.StatusInternalServerError)
			return
		}

		logger.Info("wallet unregistered", "address", address)
		w.WriteHeader(http.StatusNoContent)
	})
}

// handleGetWallet returns a handler that retrieves a registered wallet.
// GET /api/v1/wallets/{address}
func handleGetWallet(store *db.Store, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		address := r.PathValue("address")

		if err := validateAddress(address); err != nil {
			logger.Debug("invalid address", "address", address, "error", err)
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		wallet, err := store.GetWallet(r.Context(), address)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				writeError(w, "wallet not found", http.StatusNotFound)
				return
			}
			logger.Error("failed to get wallet", "address", address, "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, walletToResponse(wallet), http.StatusOK)
	})
}

// handleListWallets returns a handler that lists all registered wallets.
// GET /api/v1/wallets
func handleListWallets(store *db.Store, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wallets, err := store.ListWallets(r.Context())
		if err != nil {
			logger.Error("failed to list wallets", "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}

		logger.Debug("wallets listed", "count", len(wallets))

		resp := make([]walletResponse, len(wallets))
		for i, wallet := range wallets {
			resp[i] = walletToResponse(wallet)
		}

		writeJSON(w, map[string]interface{}{
			"wallets": resp,
		}, http.StatusOK)
	})
}

// handleScanWallet returns a handler that triggers a one-off scan for a
// wallet and waits for the result.
// POST /api/v1/wallets/{address}/scan?limit=N
func handleScanWallet(store *db.Store, trigger ScanTrigger, cfg *config.Config, m *metrics.Metrics, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		address := r.PathValue("address")

		if err := validateAddress(address); err != nil {
			logger.Debug("invalid address", "address", address, "error", err)
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		if trigger == nil {
			writeError(w, "scan workflows unavailable", http.StatusServiceUnavailable)
			return
		}

		limit := cfg.DefaultScanLimit
		if wallet, err := store.GetWallet(r.Context(), address); err == nil {
			limit = wallet.ScanLimit
		}
		if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
			parsed, err := strconv.Atoi(limitStr)
			if err != nil {
				writeError(w, "invalid limit parameter: must be an integer", http.StatusBadRequest)
				return
			}
			if err := validateScanLimit(parsed); err != nil {
				writeError(w, err.Error(), http.StatusBadRequest)
				return
			}
			limit = parsed
		}

		scanStart := time.Now()
		result, err := trigger.TriggerWalletScan(r.Context(), address, limit)
		if m != nil {
			status := "success"
			if err != nil {
				status = "error"
			}
			m.RecordScanWorkflow(address, status, time.Since(scanStart).Seconds())
		}
		if err != nil {
			logger.Error("scan failed", "address", address, "error", err)
			writeError(w, "scan failed", http.StatusBadGateway)
			return
		}

		logger.Info("manual scan completed",
			"address", address,
			"fetched", result.Fetched,
			"stored", result.Stored,
		)

		writeJSON(w, result, http.StatusOK)
	})
}

// handleListTransactions returns a handler that lists stored transactions
// for a wallet, newest first.
// GET /api/v1/wallets/{address}/transactions?limit=N&type=T
func handleListTransactions(store *db.Store, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		address := r.PathValue("address")

		if err := validateAddress(address); err != nil {
			logger.Debug("invalid address", "address", address, "error", err)
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		query := r.URL.Query()

		limit := 100
		if limitStr := query.Get("limit"); limitStr != "" {
			parsed, err := strconv.Atoi(limitStr)
			if err != nil {
				writeError(w, "invalid limit parameter: must be an integer", http.StatusBadRequest)
				return
			}
			if parsed < 1 {
				writeError(w, "limit must be at least 1", http.StatusBadRequest)
				return
			}
			if parsed > maxScanLimit {
				writeError(w, fmt.Sprintf("limit cannot exceed %d", maxScanLimit), http.StatusBadRequest)
				return
			}
			limit = parsed
		}

		transactions, err := store.ListTransactionsByWallet(r.Context(), address, limit)
		if err != nil {
			logger.Error("failed to list transactions", "wallet", address, "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}

		// Optional type filter applied after the query; category counts
		// stay cheap at the DB level.
		if txType := query.Get("type"); txType != "" {
			filtered := transactions[:0]
			for _, t := range transactions {
				if string(t.Type) == txType {
					filtered = append(filtered, t)
				}
			}
			transactions = filtered
		}

		logger.Debug("transactions listed", "wallet", address, "count", len(transactions))

		writeJSON(w, map[string]interface{}{
			"wallet_address": address,
			"transactions":   transactions,
			"count":          len(transactions),
		}, http.StatusOK)
	})
}

// handleWalletSummary returns a handler that reports per-category counts
// for a wallet's stored transactions.
// GET /api/v1/wallets/{address}/summary
func handleWalletSummary(store *db.Store, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		address := r.PathValue("address")

		if err := validateAddress(address); err != nil {
			logger.Debug("invalid address", "address", address, "error", err)
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		transactions, err := store.ListTransactionsByWallet(r.Context(), address, 0)
		if err != nil {
			logger.Error("failed to list transactions", "wallet", address, "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}

		categorized := solana.Categorize(transactions)

		writeJSON(w, map[string]interface{}{
			"wallet_address": address,
			"stats":          categorized.Stats,
		}, http.StatusOK)
	})
}

// handleExportCSV returns a handler that exports a wallet's stored
// transactions as a CSV attachment.
// GET /api/v1/wallets/{address}/export
func handleExportCSV(store *db.Store, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		address := r.PathValue("address")

		if err := validateAddress(address); err != nil {
			logger.Debug("invalid address", "address", address, "error", err)
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		transactions, err := store.ListTransactionsByWallet(r.Context(), address, 0)
		if err != nil {
			logger.Error("failed to list transactions", "wallet", address, "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}

		csv := export.GenerateCSV(transactions)
		filename := export.Filename(address, time.Now().UTC())

		logger.Info("exported transactions", "wallet", address, "count", len(transactions), "filename", filename)

		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(csv))
	})
}

// walletResponse is the JSON response format for a registered wallet.
type walletResponse struct {
	Address      string     `json:"address"`
	Label        string     `json:"label,omitempty"`
	ScanLimit    int        `json:"scan_limit"`
	ScanInterval string     `json:"scan_interval"`
	Status       string     `json:"status"`
	LastScanAt   *time.Time `json:"last_scan_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// walletToResponse converts a domain Wallet to a response format.
func walletToResponse(w *db.Wallet) walletResponse {
	return walletResponse{
		Address:      w.Address,
		Label:        w.Label,
		ScanLimit:    w.ScanLimit,
		ScanInterval: w.ScanInterval.String(),
		Status:       w.Status,
		LastScanAt:   w.LastScanAt,
		CreatedAt:    w.CreatedAt,
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}

// validateAddress validates a wallet address for security and format.
func validateAddress(address string) error {
	if address == "" {
		return errorf("address is required")
	}

	if len(address) > maxAddressLength {
		return errorf("address too long: maximum length is %d characters", maxAddressLength)
	}

	// Check for null bytes and control characters
	for _, r := range address {
		if r == 0 || unicode.IsControl(r) {
			return errorf("invalid characters in address: control characters not allowed")
		}
	}

	if !validAddressRegex.MatchString(address) {
		return errorf("invalid address format: must contain only valid base58 characters")
	}

	return nil
}

// validateScanInterval validates a scan interval for reasonable bounds.
func validateScanInterval(interval, minInterval time.Duration) error {
	if interval <= 0 {
		return errorf("scan_interval must be positive")
	}

	if minInterval > 0 && interval < minInterval {
		return errorf("scan_interval must be at least %v", minInterval)
	}

	if interval > maxScanInterval {
		return errorf("scan_interval cannot exceed %v", maxScanInterval)
	}

	return nil
}

// validateScanLimit validates a scan limit for reasonable bounds.
func validateScanLimit(limit int) error {
	if limit < 1 {
		return errorf("scan_limit must be at least 1")
	}

	if limit > maxScanLimit {
		return errorf("scan_limit cannot exceed %d", maxScanLimit)
	}

	return nil
}

// errorf is a helper to format error strings.
func errorf(format string, args ...interface{}) error {
	return &validationError{msg: strings.TrimSpace(fmt.Sprintf(format, args...))}
}

type validationError struct {
	msg string
}

func (e *validationError) Error() string {
	return e.msg
}
