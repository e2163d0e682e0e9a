package temporal

import (
	"fmt"
	"time"

	temporalsdk "go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

var a *Activities // for type-safe activity invocation

// ScanWalletWorkflow is the Temporal workflow that scans a Solana wallet for
// transactions. It is triggered by a Temporal schedule at the wallet's
// configured interval, or manually via the API.
//
// The workflow performs these steps:
// 1. Fetch and classify transactions from upstream (FetchTransactions activity)
// 2. Persist them to Postgres (StoreTransactions activity)
// 3. Publish them to NATS for subscribers (PublishTransactions activity)
func ScanWalletWorkflow(ctx workflow.Context, input ScanWalletInput) (*ScanWalletResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("ScanWalletWorkflow started", "address", input.Address)

	result := &ScanWalletResult{
		Address:  input.Address,
		ScanTime: workflow.Now(ctx),
	}

	activityOptions := workflow.ActivityOptions{
		StartToCloseTimeout: 300 * time.Second,
		RetryPolicy: &temporalsdk.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    30 * time.Second,
			MaximumAttempts:    3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, activityOptions)

	// Step 1: Fetch and classify transactions from upstream
	var fetchResult *FetchTransactionsResult
	err := workflow.ExecuteActivity(ctx, a.FetchTransactions, FetchTransactionsInput{
		Address: input.Address,
		Limit:   input.Limit,
	}).Get(ctx, &fetchResult)
	if err != nil {
		logger.Error("failed to fetch transactions", "address", input.Address, "error", err)
		errMsg := fmt.Sprintf("failed to fetch transactions: %v", err)
		result.Error = &errMsg
		return result, fmt.Errorf("failed to fetch transactions: %w", err)
	}

	result.Fetched = len(fetchResult.Transactions)
	logger.Info("fetched transactions",
		"address", input.Address,
		"count", result.Fetched,
	)

	if result.Fetched == 0 {
		logger.Info("no transactions found", "address", input.Address)
		return result, nil
	}

	// Step 2: Persist to the database
	var storeResult *StoreTransactionsResult
	err = workflow.ExecuteActivity(ctx, a.StoreTransactions, StoreTransactionsInput{
		WalletAddress: input.Address,
		Transactions:  fetchResult.Transactions,
	}).Get(ctx, &storeResult)
	if err != nil {
		logger.Error("failed to store transactions", "address", input.Address, "error", err)
		errMsg := fmt.Sprintf("failed to store transactions: %v", err)
		result.Error = &errMsg
		return result, fmt.Errorf("failed to store transactions: %w", err)
	}

	result.Stored = storeResult.Stored

	// Step 3: Publish to NATS. Events are a convenience for subscribers,
	// so a publish failure does not fail the scan.
	var publishResult *PublishTransactionsResult
	err = workflow.ExecuteActivity(ctx, a.PublishTransactions, PublishTransactionsInput{
		WalletAddress: input.Address,
		Transactions:  fetchResult.Transactions,
	}).Get(ctx, &publishResult)
	if err != nil {
		logger.Warn("failed to publish transactions", "address", input.Address, "error", err)
	} else {
		result.Published = publishResult.Published
	}

	logger.Info("ScanWalletWorkflow completed successfully",
		"address", input.Address,
		"fetched", result.Fetched,
		"stored", result.Stored,
		"published", result.Published,
	)

	return result, nil
}
