package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rustyeddy/tradequeue/broker"
	"github.com/rustyeddy/tradequeue/config"
	"github.com/spf13/cobra"
)

var ordersCmd = &cobra.Command{
	Use:   "orders",
	Short: "Inspect or cancel pending orders at the venue",
	Long: `Query the configured venue directly for limit orders that have not
triggered yet.

Examples:
  trader orders list
  trader orders show <order-id>
  trader orders cancel <order-id> --yes`,
}

var ordersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pending orders",
	Args:  cobra.NoArgs,
	RunE:  runOrdersList,
}

var ordersShowCmd = &cobra.Command{
	Use:   "show <order-id>",
	Short: "Show one pending order",
	Args:  cobra.ExactArgs(1),
	RunE:  runOrdersShow,
}

var ordersCancelCmd = &cobra.Command{
	Use:   "cancel <order-id>",
	Short: "Cancel a pending order",
	Args:  cobra.ExactArgs(1),
	RunE:  runOrdersCancel,
}

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Show the venue account balance and margin",
	Args:  cobra.NoArgs,
	RunE:  runAccount,
}

var ordersCancelYes bool

func init() {
	rootCmd.AddCommand(ordersCmd)
	rootCmd.AddCommand(accountCmd)
	ordersCmd.AddCommand(ordersListCmd)
	ordersCmd.AddCommand(ordersShowCmd)
	ordersCmd.AddCommand(ordersCancelCmd)

	ordersCancelCmd.Flags().BoolVarP(&ordersCancelYes, "yes", "y", false, "confirm cancellation")
}

// connectVenue opens a session on the configured venue. The caller closes it.
func connectVenue(ctx context.Context, cfg *config.Config) (broker.Venue, time.Duration, error) {
	dur, err := cfg.Worker.Durations()
	if err != nil {
		return nil, 0, err
	}
	v, err := newVenue(cfg)
	if err != nil {
		return nil, 0, err
	}
	cctx, cancel := context.WithTimeout(ctx, dur.VenueTimeout)
	defer cancel()
	if err := v.Connect(cctx, cfg.Venue.Credentials()); err != nil {
		return nil, 0, fmt.Errorf("connect %s venue: %w", cfg.Venue.Type, err)
	}
	return v, dur.VenueTimeout, nil
}

// withVenue runs fn against a connected venue, bounded by the venue timeout.
func withVenue(cmd *cobra.Command, fn func(ctx context.Context, v broker.Venue) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	v, timeout, err := connectVenue(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer v.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()
	return fn(ctx, v)
}

func runOrdersList(cmd *cobra.Command, args []string) error {
	return withVenue(cmd, func(ctx context.Context, v broker.Venue) error {
		orders, err := v.PendingOrders(ctx)
		if err != nil {
			return fmt.Errorf("pending orders: %w", err)
		}
		printOrders(os.Stdout, orders)
		return nil
	})
}

func runOrdersShow(cmd *cobra.Command, args []string) error {
	return withVenue(cmd, func(ctx context.Context, v broker.Venue) error {
		o, err := v.OrderDetail(ctx, args[0])
		if err != nil {
			return err
		}
		printOrder(os.Stdout, o)
		return nil
	})
}

func runOrdersCancel(cmd *cobra.Command, args []string) error {
	if !ordersCancelYes {
		return fmt.Errorf("refusing to cancel order %s without --yes", args[0])
	}
	return withVenue(cmd, func(ctx context.Context, v broker.Venue) error {
		if err := v.CancelOrder(ctx, args[0]); err != nil {
			return err
		}
		fmt.Printf("✓ Cancelled order %s\n", args[0])
		return nil
	})
}

func runAccount(cmd *cobra.Command, args []string) error {
	return withVenue(cmd, func(ctx context.Context, v broker.Venue) error {
		a, err := v.Account(ctx)
		if err != nil {
			return fmt.Errorf("account: %w", err)
		}
		printAccount(os.Stdout, a)
		return nil
	})
}

func printOrders(w io.Writer, orders []broker.Order) {
	if len(orders) == 0 {
		fmt.Fprintln(w, "No pending orders.")
		return
	}
	fmt.Fprintf(w, "%-28s %-12s %-10s %8s %12s %12s %12s\n", "ORDER", "SYMBOL", "TYPE", "VOLUME", "PRICE", "SL", "TP")
	for _, o := range orders {
		fmt.Fprintf(w, "%-28s %-12s %-10s %8.2f %12v %12v %12v\n",
			o.OrderID, o.Symbol, o.Direction.Label(), o.Volume, o.Price, o.StopLoss, o.TakeProfit)
	}
}

func printOrder(w io.Writer, o broker.Order) {
	fmt.Fprintf(w, "Order %s\n", o.OrderID)
	fmt.Fprintf(w, "  %s %s %.2f @ %v  SL %v  TP %v\n", o.Direction.Label(), o.Symbol, o.Volume, o.Price, o.StopLoss, o.TakeProfit)
	if o.ClientRef != "" {
		fmt.Fprintf(w, "  Command: %s\n", o.ClientRef)
	}
	if o.Comment != "" {
		fmt.Fprintf(w, "  Comment: %s\n", o.Comment)
	}
	if !o.PlacedAt.IsZero() {
		fmt.Fprintf(w, "  Placed:  %s\n", o.PlacedAt.UTC().Format(time.RFC3339))
	}
}

func printAccount(w io.Writer, a broker.AccountInfo) {
	fmt.Fprintf(w, "Account %s (%s)\n", a.Login, a.Currency)
	fmt.Fprintf(w, "  Balance     %12.2f\n", a.Balance)
	fmt.Fprintf(w, "  Equity      %12.2f\n", a.Equity)
	fmt.Fprintf(w, "  Margin      %12.2f\n", a.Margin)
	fmt.Fprintf(w, "  Free margin %12.2f\n", a.FreeMargin)
	if a.MarginLevel > 0 {
		fmt.Fprintf(w, "  Level       %11.1f%%\n", a.MarginLevel)
	}
}
