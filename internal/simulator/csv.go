package simulator

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"time"
)

var ledgerHeader = []string{
	"entry_index",
	"exit_index",
	"entry_time",
	"exit_time",
	"direction",
	"entry_price",
	"exit_price",
	"return",
	"net_return",
	"pnl",
	"capital_after",
	"exit_reason",
}

// WriteLedger writes the trade ledger as CSV.
func WriteLedger(w io.Writer, trades []Trade) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(ledgerHeader); err != nil {
		return err
	}
	for _, t := range trades {
		row := []string{
			strconv.Itoa(t.EntryIndex),
			strconv.Itoa(t.ExitIndex),
			fmtTime(t.EntryTime),
			fmtTime(t.ExitTime),
			strconv.Itoa(t.Direction),
			fmtFloat(t.EntryPrice),
			fmtFloat(t.ExitPrice),
			fmtFloat(t.Return),
			fmtFloat(t.NetReturn),
			fmtFloat(t.PnL),
			fmtFloat(t.CapitalAfter),
			t.ExitReason,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteLedgerCSV writes the trade ledger to a file at path.
func WriteLedgerCSV(path string, trades []Trade) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return WriteLedger(f, trades)
}

func fmtTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

func fmtFloat(x float64) string {
	return strconv.FormatFloat(x, 'f', 6, 64)
}
