package solana

// TxType is the coarse semantic category assigned to a transaction.
type TxType string

const (
	TypeSwap     TxType = "swap"
	TypeTransfer TxType = "transfer"
	TypeNFT      TxType = "nft"
	TypeStake    TxType = "stake"
	TypeUnknown  TxType = "unknown"
)

// Direction describes how value moved relative to the scanned wallet.
// DirectionSwap means the wallet exchanged one asset for another rather
// than sending or receiving. DirectionUnresolved means no balance movement
// touching the wallet could be attributed, so in/out is genuinely unknown.
type Direction string

const (
	DirectionIn         Direction = "in"
	DirectionOut        Direction = "out"
	DirectionSwap       Direction = "swap"
	DirectionUnresolved Direction = "unresolved"
)

// LamportsPerSOL is the native asset decimal scale.
const LamportsPerSOL = 1e9

// Transaction is the normalized record produced by the classifiers.
// It is our domain model, independent of the enhanced feed and raw RPC
// response formats, and is immutable once constructed. Signature is the
// identity: a re-scan reproduces the same record for the same signature.
type Transaction struct {
	Signature string `json:"signature"`

	// Timestamp is milliseconds since epoch, from the chain block time or
	// the feed-provided time. TimestampEstimated is true when neither was
	// available and the local clock was used instead; such timestamps do
	// not reflect chain ordering.
	Timestamp          int64 `json:"timestamp"`
	TimestampEstimated bool  `json:"timestampEstimated,omitempty"`

	Type      TxType    `json:"type"`
	Direction Direction `json:"direction"`

	// From and To are best-effort counterparty addresses and may be empty.
	From string `json:"from"`
	To   string `json:"to"`

	// Amount is the non-negative magnitude of the primary asset moved, in
	// human-readable units. Gain or loss is carried by Direction, never by
	// the sign of Amount.
	Amount float64 `json:"amount"`

	// Token is a symbol or truncated mint identifying the primary asset.
	// TokenMint is the full mint address for non-native assets.
	Token     string `json:"token"`
	TokenMint string `json:"tokenMint,omitempty"`

	// Fee is the transaction fee in SOL.
	Fee float64 `json:"fee"`

	Description string `json:"description,omitempty"`
}

// BalanceChange is a signed per-mint balance delta for one owner in one
// transaction, in human-readable units. It is an intermediate value used
// by the classifiers and is never persisted.
type BalanceChange struct {
	Mint     string
	Amount   float64 // signed: positive = received, negative = sent
	Decimals uint8
	Symbol   string
}

// truncateMint shortens a mint address for display when no symbol is known.
func truncateMint(mint string) string {
	if len(mint) > 8 {
		return mint[:8]
	}
	return mint
}
