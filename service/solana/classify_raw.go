package solana

import (
	"fmt"
	"math"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// rawTxView is everything the raw-path rules need, computed once up front.
type rawTxView struct {
	accountKeys  []solana.PublicKey
	programIDs   []solana.PublicKey
	tokenChanges []BalanceChange
	nativeDelta  int64 // lamports, post minus pre for the owner account; 0 if owner absent
}

// rawRule is one step of the classification chain. Rules are evaluated top
// down and the first match wins, which keeps the priority order (swap > nft >
// stake > transfer) explicit and auditable.
type rawRule struct {
	match func(*rawTxView) bool
	build func(*rawTxView, *Transaction)
}

var rawRules = []rawRule{
	{matchRole(RoleSwapRouter), buildSwap},
	{matchRole(RoleNFTMarketplace), buildBalanceDelta(TypeNFT, "NFT Transaction")},
	{matchRole(RoleStakeProgram), buildBalanceDelta(TypeStake, "Staking Transaction")},
	{func(v *rawTxView) bool { return len(v.tokenChanges) > 0 }, buildTokenTransfer},
	{func(v *rawTxView) bool { return v.nativeDelta != 0 }, buildNativeTransfer},
}

// ClassifyRawTransaction normalizes a raw, unenriched chain transaction for
// the given owner wallet. It returns an error only for malformed input; a
// transaction it has no opinion about classifies as TypeUnknown. If the owner
// does not appear in the account list the record degrades to zero-valued
// deltas rather than failing.
func ClassifyRawTransaction(
	sig solana.Signature,
	tx *solana.Transaction,
	meta *rpc.TransactionMeta,
	blockTime *solana.UnixTimeSeconds,
	owner solana.PublicKey,
) (*Transaction, error) {
	if tx == nil {
		return nil, fmt.Errorf("nil transaction for signature %s", sig)
	}

	view := newRawTxView(tx, meta, owner)

	txn := &Transaction{
		Signature: sig.String(),
		Type:      TypeUnknown,
		Direction: DirectionUnresolved,
		Token:     "SOL",
	}
	if blockTime != nil {
		txn.Timestamp = blockTime.Time().UnixMilli()
	} else {
		txn.Timestamp = time.Now().UnixMilli()
		txn.TimestampEstimated = true
	}
	if meta != nil {
		txn.Fee = float64(meta.Fee) / LamportsPerSOL
	}

	// Best effort: the first two account keys approximate the counterparties.
	if len(view.accountKeys) > 0 {
		txn.From = view.accountKeys[0].String()
	}
	if len(view.accountKeys) > 1 {
		txn.To = view.accountKeys[1].String()
	}

	for _, rule := range rawRules {
		if rule.match(view) {
			rule.build(view, txn)
			break
		}
	}
	return txn, nil
}

func newRawTxView(tx *solana.Transaction, meta *rpc.TransactionMeta, owner solana.PublicKey) *rawTxView {
	// Copy before extending: appending to the message's slice directly can
	// write loaded addresses into the caller's backing array.
	accountKeys := make([]solana.PublicKey, len(tx.Message.AccountKeys))
	copy(accountKeys, tx.Message.AccountKeys)
	if meta != nil {
		accountKeys = append(accountKeys, meta.LoadedAddresses.Writable...)
		accountKeys = append(accountKeys, meta.LoadedAddresses.ReadOnly...)
	}

	view := &rawTxView{accountKeys: accountKeys}
	for _, ix := range tx.Message.Instructions {
		if int(ix.ProgramIDIndex) < len(accountKeys) {
			view.programIDs = append(view.programIDs, accountKeys[ix.ProgramIDIndex])
		}
	}

	if meta == nil {
		return view
	}
	view.tokenChanges = TokenBalanceChanges(meta.PreTokenBalances, meta.PostTokenBalances, owner)

	for i, key := range accountKeys {
		if !key.Equals(owner) {
			continue
		}
		if i < len(meta.PreBalances) && i < len(meta.PostBalances) {
			view.nativeDelta = int64(meta.PostBalances[i]) - int64(meta.PreBalances[i])
		}
		break
	}
	return view
}

func matchRole(role ProgramRole) func(*rawTxView) bool {
	return func(v *rawTxView) bool {
		_, ok := firstProgramWithRole(v.programIDs, role)
		return ok
	}
}

func buildSwap(v *rawTxView, txn *Transaction) {
	txn.Type = TypeSwap
	txn.Direction = DirectionSwap

	router, _ := firstProgramWithRole(v.programIDs, RoleSwapRouter)
	txn.Description = router + " Swap"

	// Prefer the first token delta as the primary (outgoing) asset; fall back
	// to the native balance delta when the swap only touched SOL.
	if len(v.tokenChanges) > 0 {
		change := v.tokenChanges[0]
		txn.Amount = math.Abs(change.Amount)
		txn.TokenMint = change.Mint
		txn.Token = tokenLabel(change)
	} else if v.nativeDelta != 0 {
		txn.Amount = math.Abs(float64(v.nativeDelta)) / LamportsPerSOL
	}
}

func buildBalanceDelta(txType TxType, description string) func(*rawTxView, *Transaction) {
	return func(v *rawTxView, txn *Transaction) {
		txn.Type = txType
		txn.Description = description
		txn.Amount = math.Abs(float64(v.nativeDelta)) / LamportsPerSOL
		txn.Direction = directionFromDelta(float64(v.nativeDelta))
	}
}

func buildTokenTransfer(v *rawTxView, txn *Transaction) {
	change := v.tokenChanges[0]
	txn.Type = TypeTransfer
	txn.Description = "Token Transfer"
	txn.Amount = math.Abs(change.Amount)
	txn.TokenMint = change.Mint
	txn.Token = tokenLabel(change)
	txn.Direction = directionFromDelta(change.Amount)
}

func buildNativeTransfer(v *rawTxView, txn *Transaction) {
	txn.Type = TypeTransfer
	txn.Description = "SOL Transfer"
	txn.Amount = math.Abs(float64(v.nativeDelta)) / LamportsPerSOL
	txn.Direction = directionFromDelta(float64(v.nativeDelta))
}

// directionFromDelta maps a signed balance delta to a direction. A zero delta
// gives no signal either way, so the direction stays unresolved.
func directionFromDelta(delta float64) Direction {
	switch {
	case delta > 0:
		return DirectionIn
	case delta < 0:
		return DirectionOut
	default:
		return DirectionUnresolved
	}
}

func tokenLabel(change BalanceChange) string {
	if change.Symbol != "" {
		return change.Symbol
	}
	return truncateMint(change.Mint)
}
