package journal

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"
)

var csvHeader = []string{
	"command_id", "queue_id", "account_id", "instrument", "direction",
	"entry_price", "stop_price", "take_profit", "size", "risk_amount",
	"strategy", "sentiment", "status", "execution_id", "fill_price",
	"filled_volume", "failure_reason", "attempts", "created_at", "closed_at",
}

// WriteCSV writes recs with a header row.
func WriteCSV(w io.Writer, recs []TradeRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, t := range recs {
		closed := ""
		if t.ClosedAt != nil {
			closed = t.ClosedAt.Format(time.RFC3339)
		}
		err := cw.Write([]string{
			t.CommandID,
			t.QueueID,
			t.AccountID,
			t.Instrument,
			string(t.Direction),
			f(t.Entry),
			f(t.Stop),
			f(t.TakeProfit),
			f(t.Size),
			f(t.RiskAmount),
			t.Strategy,
			t.Sentiment,
			string(t.Status),
			t.ExecutionID,
			f(t.FillPrice),
			f(t.FilledVolume),
			t.FailureReason,
			strconv.Itoa(t.Attempts),
			t.CreatedAt.Format(time.RFC3339),
			closed,
		})
		if err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func f(x float64) string {
	return strconv.FormatFloat(x, 'f', -1, 64)
}
