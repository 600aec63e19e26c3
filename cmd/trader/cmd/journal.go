package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/rustyeddy/tradequeue/journal"
	"github.com/spf13/cobra"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Query trade journal data",
	Long: `Query and display trade records from the SQLite journal.

Subcommands:
  trade  - Get details of a specific trade by command id
  list   - List recent trades, optionally by status
  today  - List trades closed today
  day    - List trades closed on a specific day

Examples:
  trader journal trade <command-id>
  trader journal list --status failed --limit 20
  trader journal day 2024-01-15 --format csv`,
}

var journalTradeCmd = &cobra.Command{
	Use:   "trade <command-id>",
	Short: "Get details of a specific trade",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalTrade,
}

var journalListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent trades",
	Args:  cobra.NoArgs,
	RunE:  runJournalList,
}

var journalTodayCmd = &cobra.Command{
	Use:   "today",
	Short: "List trades closed today",
	Args:  cobra.NoArgs,
	RunE:  runJournalToday,
}

var journalDayCmd = &cobra.Command{
	Use:   "day <YYYY-MM-DD>",
	Short: "List trades closed on a specific day",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalDay,
}

var (
	journalDBPath string
	journalStatus string
	journalLimit  int
	journalFormat string
)

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalTradeCmd)
	journalCmd.AddCommand(journalListCmd)
	journalCmd.AddCommand(journalTodayCmd)
	journalCmd.AddCommand(journalDayCmd)

	journalCmd.PersistentFlags().StringVarP(&journalDBPath, "db", "d", "", "path to SQLite journal DB (default: journal.db_path)")
	journalCmd.PersistentFlags().StringVar(&journalFormat, "format", "org", "output format: org or csv")
	journalListCmd.Flags().StringVar(&journalStatus, "status", "", "pending, filled or failed")
	journalListCmd.Flags().IntVarP(&journalLimit, "limit", "n", 50, "maximum records (0 = all)")
}

func openJournalFromFlags() (*journal.SQLite, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if journalDBPath != "" {
		cfg.Journal.DBPath = journalDBPath
	}
	return openJournal(cfg)
}

func printTrades(recs []journal.TradeRecord) error {
	switch journalFormat {
	case "csv":
		return journal.WriteCSV(os.Stdout, recs)
	case "org", "":
		fmt.Print(journal.FormatTradesOrg(recs))
		return nil
	default:
		return fmt.Errorf("unknown format %q", journalFormat)
	}
}

func runJournalTrade(cmd *cobra.Command, args []string) error {
	j, err := openJournalFromFlags()
	if err != nil {
		return err
	}
	defer j.Close()

	rec, err := j.Get(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("get trade: %w", err)
	}
	return printTrades([]journal.TradeRecord{rec})
}

func runJournalList(cmd *cobra.Command, args []string) error {
	status := journal.Status(journalStatus)
	switch status {
	case "", journal.StatusPending, journal.StatusFilled, journal.StatusFailed:
	default:
		return fmt.Errorf("unknown status %q", journalStatus)
	}

	j, err := openJournalFromFlags()
	if err != nil {
		return err
	}
	defer j.Close()

	recs, err := j.List(cmd.Context(), status, journalLimit)
	if err != nil {
		return fmt.Errorf("query trades: %w", err)
	}
	return printTrades(recs)
}

func runJournalToday(cmd *cobra.Command, args []string) error {
	loc := time.Local
	return listClosedOn(cmd, loc, time.Now().In(loc).Format("2006-01-02"))
}

func runJournalDay(cmd *cobra.Command, args []string) error {
	return listClosedOn(cmd, time.Local, args[0])
}

func listClosedOn(cmd *cobra.Command, loc *time.Location, day string) error {
	start, end, err := dayBounds(loc, day)
	if err != nil {
		return fmt.Errorf("date: %w", err)
	}

	j, err := openJournalFromFlags()
	if err != nil {
		return err
	}
	defer j.Close()

	recs, err := j.ListClosedBetween(cmd.Context(), start, end)
	if err != nil {
		return fmt.Errorf("query trades: %w", err)
	}
	return printTrades(recs)
}

func dayBounds(loc *time.Location, day string) (time.Time, time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", day, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	end := start.AddDate(0, 0, 1)
	return start, end, nil
}
