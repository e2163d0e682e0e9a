// Package export renders classified transactions as CSV reports suitable
// for import into tax tooling.
package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/soltrace/soltrace/service/solana"
)

// Header is the fixed CSV column order. Consumers rely on it; do not reorder.
const Header = "Date,Type,Direction,Token,Amount,Fee (SOL),From,To,Description,Transaction Signature"

// GenerateCSV renders transactions as a CSV document, one row per record.
//
// The swap type is rendered under its tax-report label "trade", directions
// are upper-cased, and the description is always quoted with internal quotes
// doubled so free-form labels cannot break the row structure. Amounts carry
// four decimal places, fees six.
func GenerateCSV(txns []*solana.Transaction) string {
	var b strings.Builder
	b.WriteString(Header)

	for _, tx := range txns {
		b.WriteByte('\n')
		b.WriteString(formatRow(tx))
	}
	return b.String()
}

func formatRow(tx *solana.Transaction) string {
	date := time.UnixMilli(tx.Timestamp).UTC().Format(time.RFC3339)

	txType := string(tx.Type)
	if tx.Type == solana.TypeSwap {
		txType = "trade"
	}

	token := tx.Token
	if token == "" {
		token = "SOL"
	}

	description := strings.ReplaceAll(tx.Description, `"`, `""`)

	fields := []string{
		date,
		txType,
		strings.ToUpper(string(tx.Direction)),
		token,
		fmt.Sprintf("%.4f", tx.Amount),
		fmt.Sprintf("%.6f", tx.Fee),
		tx.From,
		tx.To,
		`"` + description + `"`,
		tx.Signature,
	}
	return strings.Join(fields, ",")
}

// Filename builds the report file name for a wallet: the address is
// shortened to its first and last four characters and the current date is
// appended, e.g. trace-report-AbCd...WxYz-2026-09-01.csv.
func Filename(walletAddress string, now time.Time) string {
	short := walletAddress
	if len(walletAddress) > 8 {
		short = walletAddress[:4] + "..." + walletAddress[len(walletAddress)-4:]
	}
	return fmt.Sprintf("trace-report-%s-%s.csv", short, now.UTC().Format("2006-01-02"))
}
