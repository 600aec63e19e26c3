package journal

import (
	"fmt"
	"strings"
	"time"
)

// FormatTradeOrg renders rec as an org-mode heading with a properties
// drawer, ready to paste into a trading notebook.
func FormatTradeOrg(rec TradeRecord) string {
	var b strings.Builder

	fmt.Fprintf(&b, "** Trade: %s %s (%s)\n", rec.Instrument, strings.ToUpper(string(rec.Status)), shortID(rec.CommandID))

	b.WriteString(":PROPERTIES:\n")
	prop := func(k, v string) {
		if v != "" {
			fmt.Fprintf(&b, ":%s: %s\n", k, v)
		}
	}
	prop("ID", rec.CommandID)
	prop("QUEUE_ID", rec.QueueID)
	prop("ACCOUNT", rec.AccountID)
	prop("INSTRUMENT", rec.Instrument)
	prop("DIRECTION", rec.Direction.Label())
	prop("ENTRY_PRICE", f(rec.Entry))
	prop("STOP_PRICE", f(rec.Stop))
	prop("TAKE_PROFIT", f(rec.TakeProfit))
	prop("SIZE", fmt.Sprintf("%.2f", rec.Size))
	prop("RISK_AMOUNT", fmt.Sprintf("%.2f", rec.RiskAmount))
	prop("STRATEGY", rec.Strategy)
	prop("SENTIMENT", rec.Sentiment)
	prop("STATUS", string(rec.Status))
	prop("ATTEMPTS", fmt.Sprint(rec.Attempts))
	prop("CREATED", rec.CreatedAt.Format(time.RFC3339))
	if rec.ClosedAt != nil {
		prop("CLOSED", rec.ClosedAt.Format(time.RFC3339))
	}
	b.WriteString(":END:\n")

	b.WriteString("\n*** Thesis\n")
	if rec.ReferenceURL != "" {
		fmt.Fprintf(&b, "[[%s][chart]]\n", rec.ReferenceURL)
	}

	b.WriteString("\n*** Execution\n")
	switch rec.Status {
	case StatusFilled:
		fmt.Fprintf(&b, "Filled %s @ %s, execution %s\n", f(rec.FilledVolume), f(rec.FillPrice), rec.ExecutionID)
	case StatusFailed:
		fmt.Fprintf(&b, "Failed: %s\n", rec.FailureReason)
	default:
		b.WriteString("Pending")
		if rec.LastError != "" {
			fmt.Fprintf(&b, " (last error: %s)", rec.LastError)
		}
		b.WriteString("\n")
	}

	b.WriteString("\n*** Review\n- \n")
	return b.String()
}

// FormatTradesOrg renders recs one after another.
func FormatTradesOrg(recs []TradeRecord) string {
	if len(recs) == 0 {
		return "No trades.\n"
	}
	var b strings.Builder
	for i, rec := range recs {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(FormatTradeOrg(rec))
	}
	return b.String()
}

func shortID(full string) string {
	if len(full) <= 8 {
		return full
	}
	return full[:8]
}
