package solana

import (
	"math"
	"strings"
	"time"
)

// NativeTransfer is a SOL movement reported by the enhanced feed.
type NativeTransfer struct {
	FromUserAccount string `json:"fromUserAccount"`
	ToUserAccount   string `json:"toUserAccount"`
	Amount          int64  `json:"amount"` // lamports
}

// TokenTransfer is an SPL token movement reported by the enhanced feed.
type TokenTransfer struct {
	FromUserAccount string  `json:"fromUserAccount"`
	ToUserAccount   string  `json:"toUserAccount"`
	TokenAmount     float64 `json:"tokenAmount"` // human units
	Mint            string  `json:"mint"`
}

// EnrichedTransaction is a pre-enriched record from the enhanced feed: it
// already carries a coarse type string and flat transfer lists, so no
// instruction inspection is needed on this path.
type EnrichedTransaction struct {
	Signature       string           `json:"signature"`
	Timestamp       int64            `json:"timestamp"` // seconds
	Fee             int64            `json:"fee"`       // lamports
	FeePayer        string           `json:"feePayer"`
	Type            string           `json:"type"`
	Source          string           `json:"source"`
	Description     string           `json:"description"`
	NativeTransfers []NativeTransfer `json:"nativeTransfers"`
	TokenTransfers  []TokenTransfer  `json:"tokenTransfers"`
}

// feedTypeTable maps the feed's type strings to our categories. Feed types
// not listed here classify as TypeUnknown; that is data, not an error.
var feedTypeTable = map[string]struct {
	Type        TxType
	Description string
}{
	"swap":           {TypeSwap, "Swap"},
	"trade":          {TypeSwap, "Swap"},
	"transfer":       {TypeTransfer, "Transfer"},
	"sol_transfer":   {TypeTransfer, "Transfer"},
	"token_transfer": {TypeTransfer, "Transfer"},
	"nft_sale":       {TypeNFT, "NFT Transaction"},
	"nft_mint":       {TypeNFT, "NFT Transaction"},
	"nft_bid":        {TypeNFT, "NFT Transaction"},
	"stake":          {TypeStake, "Staking"},
	"unstake":        {TypeStake, "Staking"},
}

// KnownFeedType reports whether the feed type string maps to a category.
func KnownFeedType(feedType string) bool {
	_, ok := feedTypeTable[strings.ToLower(feedType)]
	return ok
}

// ClassifyEnrichedTransaction normalizes an enhanced-feed record for the
// given owner wallet. It never fails: a record that cannot be interpreted
// yields TypeUnknown with zeroed numeric fields.
func ClassifyEnrichedTransaction(tx *EnrichedTransaction, owner string) *Transaction {
	txn := &Transaction{
		Signature:   tx.Signature,
		Type:        TypeUnknown,
		Direction:   DirectionUnresolved,
		Token:       "SOL",
		Fee:         float64(tx.Fee) / LamportsPerSOL,
		Description: tx.Description,
	}
	if tx.Timestamp > 0 {
		txn.Timestamp = tx.Timestamp * 1000
	} else {
		txn.Timestamp = time.Now().UnixMilli()
		txn.TimestampEstimated = true
	}

	if entry, ok := feedTypeTable[strings.ToLower(tx.Type)]; ok {
		txn.Type = entry.Type
		if txn.Description == "" {
			txn.Description = entry.Description
		}
	}

	native := findNativeTransfer(tx.NativeTransfers, owner)
	token := findTokenTransfer(tx.TokenTransfers, owner)

	// Primary amount: a token transfer touching the owner wins over a native
	// one, matching the token/mint it names.
	if native != nil {
		txn.Amount = math.Abs(float64(native.Amount)) / LamportsPerSOL
	}
	if token != nil {
		txn.Amount = math.Abs(token.TokenAmount)
		txn.TokenMint = token.Mint
		if token.Mint != "" {
			txn.Token = truncateMint(token.Mint)
		} else {
			txn.Token = "TOKEN"
		}
	}

	// Counterparties: the first native transfer if present, else the fee
	// payer as sender with no known recipient.
	txn.From = tx.FeePayer
	if len(tx.NativeTransfers) > 0 {
		if tx.NativeTransfers[0].FromUserAccount != "" {
			txn.From = tx.NativeTransfers[0].FromUserAccount
		}
		txn.To = tx.NativeTransfers[0].ToUserAccount
	}

	switch txn.Type {
	case TypeSwap:
		txn.Direction = DirectionSwap
	case TypeTransfer:
		if native != nil {
			txn.Direction = transferDirection(native.FromUserAccount, owner)
		}
		if token != nil {
			txn.Direction = transferDirection(token.FromUserAccount, owner)
		}
	default:
		// NFT, stake and unknown: derive from whichever native transfer
		// touches the owner; none leaves the direction unresolved.
		if native != nil {
			txn.Direction = transferDirection(native.FromUserAccount, owner)
		}
	}

	return txn
}

func transferDirection(from, owner string) Direction {
	if from == owner {
		return DirectionOut
	}
	return DirectionIn
}

func findNativeTransfer(transfers []NativeTransfer, owner string) *NativeTransfer {
	for i := range transfers {
		if transfers[i].FromUserAccount == owner || transfers[i].ToUserAccount == owner {
			return &transfers[i]
		}
	}
	return nil
}

func findTokenTransfer(transfers []TokenTransfer, owner string) *TokenTransfer {
	for i := range transfers {
		if transfers[i].FromUserAccount == owner || transfers[i].ToUserAccount == owner {
			return &transfers[i]
		}
	}
	return nil
}
