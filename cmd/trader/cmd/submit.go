package cmd

import (
	"fmt"

	"github.com/rustyeddy/tradequeue/command"
	"github.com/rustyeddy/tradequeue/market"
	"github.com/spf13/cobra"
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Build a trade command and queue it",
	Long: `Validate a trade idea, size it from the risk amount and queue it for the
worker.

A take-profit of 0 is placed automatically at the configured reward:risk
ratio. The journal gets a pending record before the command is queued.`,
	Example: `  trader submit --account 1001 --base XAUUSD --direction buy \
      --entry 2000 --stop 1990 --strategy BRK-01 --sentiment calm --risk 200`,
	RunE: runSubmit,
}

var (
	submitAccount   string
	submitBase      string
	submitDirection string
	submitEntry     float64
	submitStop      float64
	submitTP        float64
	submitRisk      float64
	submitRatio     float64
	submitStrategy  string
	submitSentiment string
	submitURL       string
	submitID        string
)

func init() {
	rootCmd.AddCommand(submitCmd)

	f := submitCmd.Flags()
	f.StringVar(&submitAccount, "account", "", "trading account id")
	f.StringVar(&submitBase, "base", "", "base instrument (e.g. EURUSD, XAUUSD)")
	f.StringVar(&submitDirection, "direction", "", "buy or sell")
	f.Float64Var(&submitEntry, "entry", 0, "limit entry price")
	f.Float64Var(&submitStop, "stop", 0, "stop-loss price")
	f.Float64Var(&submitTP, "tp", 0, "take-profit price (0 = auto from ratio)")
	f.Float64Var(&submitRisk, "risk", 0, "amount to risk in account currency (default: risk.default_risk)")
	f.Float64Var(&submitRatio, "ratio", 0, "reward:risk ratio for auto take-profit (default: risk.default_rr_ratio)")
	f.StringVar(&submitStrategy, "strategy", "", "strategy tag")
	f.StringVar(&submitSentiment, "sentiment", "calm", "sentiment tag")
	f.StringVar(&submitURL, "url", "", "reference URL (chart, note)")
	f.StringVar(&submitID, "id", "", "command id (default: generated)")

	for _, name := range []string{"account", "base", "direction", "entry", "stop", "strategy"} {
		_ = submitCmd.MarkFlagRequired(name)
	}
}

func runSubmit(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	dir, err := market.ParseDirection(submitDirection)
	if err != nil {
		return err
	}
	risk := submitRisk
	if risk == 0 {
		risk = cfg.Risk.DefaultRisk
	}
	ratio := submitRatio
	if ratio == 0 {
		ratio = cfg.Risk.DefaultRRRatio
	}

	q, err := openQueue(cfg)
	if err != nil {
		return err
	}
	j, err := openJournal(cfg)
	if err != nil {
		return err
	}
	defer j.Close()

	p := &command.Producer{
		Builder: command.Builder{
			Prefix:      cfg.Symbol.Prefix,
			Suffix:      cfg.Symbol.Suffix,
			Ratio:       ratio,
			Instruments: cfg.InstrumentTable(),
		},
		Queue:    q,
		Recorder: j,
	}

	r, err := p.Submit(cmd.Context(), command.Request{
		RequestID:    submitID,
		AccountID:    submitAccount,
		Base:         submitBase,
		Direction:    dir,
		Entry:        submitEntry,
		Stop:         submitStop,
		TakeProfit:   submitTP,
		RiskAmount:   risk,
		Strategy:     submitStrategy,
		Sentiment:    submitSentiment,
		ReferenceURL: submitURL,
	})
	if err != nil {
		return err
	}

	c := r.Command
	fmt.Printf("✓ Queued %s (queue id %s)\n", c.CommandID, r.QueueID)
	fmt.Printf("  %s %s %.2f @ %v  SL %v  TP %v\n", c.Direction.Label(), c.Instrument, c.Size, c.Entry, c.Stop, c.TakeProfit)
	fmt.Printf("  Risk %.2f  Reward:Risk 1:%.2f\n", c.RiskAmount, r.Assessment.Ratio)
	return nil
}
