package solana

// Stats holds per-category counts for a set of transactions. Total always
// equals the sum of the category counts.
type Stats struct {
	Total     int `json:"total"`
	Swaps     int `json:"swaps"`
	Transfers int `json:"transfers"`
	NFTs      int `json:"nfts"`
	Stakes    int `json:"stakes"`
	Unknown   int `json:"unknown"`
}

// Categorized partitions a transaction list by type.
type Categorized struct {
	All       []*Transaction `json:"all"`
	Swaps     []*Transaction `json:"swaps"`
	Transfers []*Transaction `json:"transfers"`
	NFTs      []*Transaction `json:"nfts"`
	Stakes    []*Transaction `json:"stakes"`
	Unknown   []*Transaction `json:"unknown"`
	Stats     Stats          `json:"stats"`
}

// Categorize partitions transactions by type and computes count statistics.
// It is a pure function: no I/O, stable under repeated calls, and every
// input record lands in exactly one partition.
func Categorize(txns []*Transaction) Categorized {
	c := Categorized{All: txns}
	for _, txn := range txns {
		switch txn.Type {
		case TypeSwap:
			c.Swaps = append(c.Swaps, txn)
		case TypeTransfer:
			c.Transfers = append(c.Transfers, txn)
		case TypeNFT:
			c.NFTs = append(c.NFTs, txn)
		case TypeStake:
			c.Stakes = append(c.Stakes, txn)
		default:
			c.Unknown = append(c.Unknown, txn)
		}
	}
	c.Stats = Stats{
		Total:     len(txns),
		Swaps:     len(c.Swaps),
		Transfers: len(c.Transfers),
		NFTs:      len(c.NFTs),
		Stakes:    len(c.Stakes),
		Unknown:   len(c.Unknown),
	}
	return c
}
