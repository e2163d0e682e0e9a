package nats

import (
	"time"

	"github.com/soltrace/soltrace/service/solana"
)

// TransactionEvent represents a classified transaction published to NATS.
// It is published to the subject "txns.{wallet_address}" in JetStream.
type TransactionEvent struct {
	// Transaction identifiers
	Signature     string `json:"signature"`
	WalletAddress string `json:"wallet_address"`

	// Classification
	Type      string `json:"type"`
	Direction string `json:"direction"`

	// Transfer details
	From      string  `json:"from,omitempty"`
	To        string  `json:"to,omitempty"`
	Amount    float64 `json:"amount"`
	Token     string  `json:"token"`
	TokenMint string  `json:"token_mint,omitempty"`
	Fee       float64 `json:"fee"`

	Description string `json:"description,omitempty"`

	// Timing information
	Timestamp          int64 `json:"timestamp"`
	TimestampEstimated bool  `json:"timestamp_estimated,omitempty"`

	// Metadata
	PublishedAt time.Time `json:"published_at"`
}

// FromTransaction converts a classified transaction to a TransactionEvent
// for publishing.
func FromTransaction(walletAddress string, txn *solana.Transaction) *TransactionEvent {
	return &TransactionEvent{
		Signature:          txn.Signature,
		WalletAddress:      walletAddress,
		Type:               string(txn.Type),
		Direction:          string(txn.Direction),
		From:               txn.From,
		To:                 txn.To,
		Amount:             txn.Amount,
		Token:              txn.Token,
		TokenMint:          txn.TokenMint,
		Fee:                txn.Fee,
		Description:        txn.Description,
		Timestamp:          txn.Timestamp,
		TimestampEstimated: txn.TimestampEstimated,
		PublishedAt:        time.Now().UTC(),
	}
}
