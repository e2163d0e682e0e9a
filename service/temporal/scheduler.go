package temporal

import (
	"context"
	"time"
)

// Scheduler manages Temporal schedules for wallet scanning.
// Each registered wallet gets its own schedule that triggers the
// ScanWalletWorkflow.
type Scheduler interface {
	// CreateWalletSchedule creates a new schedule for scanning a wallet.
	// The schedule triggers the ScanWalletWorkflow on the given interval.
	CreateWalletSchedule(ctx context.Context, address string, limit int, interval time.Duration) error

	// UpsertWalletSchedule creates the schedule if missing, or updates its
	// interval if it already exists.
	UpsertWalletSchedule(ctx context.Context, address string, limit int, interval time.Duration) error

	// DeleteWalletSchedule deletes the schedule for a wallet.
	// This stops the wallet from being scanned.
	DeleteWalletSchedule(ctx context.Context, address string) error
}

// scheduleID returns the Temporal schedule ID for a wallet address.
func scheduleID(address string) string {
	return "scan-wallet-" + address
}
