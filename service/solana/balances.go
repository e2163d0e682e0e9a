package solana

import (
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// TokenBalanceChanges computes net per-mint balance deltas for one owner
// from the pre/post token balance snapshots of a transaction.
//
// Mints whose balance did not change are dropped: they represent no economic
// activity for this owner. Output order follows the order mints first appear
// in the snapshots (pre entries, then post-only mints); callers use the first
// entry as a default primary asset, which is a heuristic, not a guarantee.
func TokenBalanceChanges(pre, post []rpc.TokenBalance, owner solana.PublicKey) []BalanceChange {
	type entry struct {
		pre, post float64
		decimals  uint8
	}
	byMint := make(map[solana.PublicKey]*entry)
	var order []solana.PublicKey

	for _, b := range pre {
		if b.Owner == nil || !b.Owner.Equals(owner) {
			continue
		}
		e, ok := byMint[b.Mint]
		if !ok {
			e = &entry{}
			byMint[b.Mint] = e
			order = append(order, b.Mint)
		}
		e.pre = uiAmount(b.UiTokenAmount)
		e.decimals = uiDecimals(b.UiTokenAmount)
	}

	for _, b := range post {
		if b.Owner == nil || !b.Owner.Equals(owner) {
			continue
		}
		e, ok := byMint[b.Mint]
		if !ok {
			e = &entry{}
			byMint[b.Mint] = e
			order = append(order, b.Mint)
		}
		e.post = uiAmount(b.UiTokenAmount)
		e.decimals = uiDecimals(b.UiTokenAmount)
	}

	var changes []BalanceChange
	for _, mint := range order {
		e := byMint[mint]
		if delta := e.post - e.pre; delta != 0 {
			changes = append(changes, BalanceChange{
				Mint:     mint.String(),
				Amount:   delta,
				Decimals: e.decimals,
			})
		}
	}
	return changes
}

func uiAmount(a *rpc.UiTokenAmount) float64 {
	if a == nil || a.UiAmount == nil {
		return 0
	}
	return *a.UiAmount
}

func uiDecimals(a *rpc.UiTokenAmount) uint8 {
	if a == nil {
		return 0
	}
	return a.Decimals
}
