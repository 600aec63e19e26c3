package cmd

import (
	"fmt"

	"github.com/rustyeddy/tradequeue/notify"
	"github.com/spf13/cobra"
)

var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Read and acknowledge execution notifications",
}

var notifyListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show undelivered notifications, oldest first",
	Args:  cobra.NoArgs,
	RunE:  runNotifyList,
}

var notifyAckCmd = &cobra.Command{
	Use:   "ack <notification-id>...",
	Short: "Mark notifications as delivered",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runNotifyAck,
}

func init() {
	rootCmd.AddCommand(notifyCmd)
	notifyCmd.AddCommand(notifyListCmd)
	notifyCmd.AddCommand(notifyAckCmd)
}

func openOutbox() (*notify.Outbox, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return notify.Open(cfg.Notify.Dir)
}

func runNotifyList(cmd *cobra.Command, args []string) error {
	o, err := openOutbox()
	if err != nil {
		return err
	}
	ns, err := o.Pending()
	if err != nil {
		return err
	}
	if len(ns) == 0 {
		fmt.Println("No notifications.")
		return nil
	}
	for _, n := range ns {
		mark := "✓"
		if !n.Success {
			mark = "✗"
		}
		fmt.Printf("%s %s [%s] %s\n", mark, n.ID, n.CommandID, n.Message)
		if n.Error != "" {
			fmt.Printf("    %s\n", n.Error)
		}
	}
	return nil
}

func runNotifyAck(cmd *cobra.Command, args []string) error {
	o, err := openOutbox()
	if err != nil {
		return err
	}
	for _, nid := range args {
		ok, err := o.MarkSent(nid)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Printf("  %s: not found\n", nid)
			continue
		}
		fmt.Printf("✓ %s\n", nid)
	}
	return nil
}
