package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/rustyeddy/tradequeue/journal"
	"github.com/rustyeddy/tradequeue/queue"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect or reset the command queue",
}

var queueListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show queue counts and pending commands",
	Args:  cobra.NoArgs,
	RunE:  runQueueList,
}

var queueClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every pending command",
	Long: `Delete every pending command from the queue.

Claimed commands are left to their worker and failed entries are kept.
The journal record of every deleted command is marked failed with the
reason "cleared by operator".`,
	Args: cobra.NoArgs,
	RunE: runQueueClear,
}

var queueClearYes bool

func init() {
	rootCmd.AddCommand(queueCmd)
	queueCmd.AddCommand(queueListCmd)
	queueCmd.AddCommand(queueClearCmd)

	queueClearCmd.Flags().BoolVarP(&queueClearYes, "yes", "y", false, "confirm deletion")
}

func runQueueList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	q, err := openQueue(cfg)
	if err != nil {
		return err
	}

	s, err := q.Stats()
	if err != nil {
		return err
	}
	fmt.Printf("Queue: %s\n", q.Root())
	fmt.Printf("  pending %d  claimed %d  failed %d\n", s.Pending, s.Claimed, s.Failed)

	claimed, err := q.ListClaimed()
	if err != nil {
		return err
	}
	for _, e := range claimed {
		fmt.Printf("  [claimed by %s] %s %s\n", e.ClaimedBy, e.QueueID, e.Command)
	}

	ids, err := q.ListPending()
	if err != nil {
		return err
	}
	for _, qid := range ids {
		e, err := q.Get(qid)
		if err != nil {
			fmt.Printf("  [pending] %s (%v)\n", qid, err)
			continue
		}
		fmt.Printf("  [pending] %s %s\n", qid, e.Command)
	}
	return nil
}

func runQueueClear(cmd *cobra.Command, args []string) error {
	if !queueClearYes {
		return fmt.Errorf("refusing to clear the queue without --yes")
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
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

	n, err := clearQueue(cmd.Context(), q, j)
	if err != nil {
		return err
	}
	fmt.Printf("✓ Removed %d pending commands\n", n)
	return nil
}

const clearedReason = "cleared by operator"

// clearQueue deletes the pending entries and fails their journal records.
func clearQueue(ctx context.Context, q queue.Queue, j journal.Store) (int, error) {
	removed, clearErr := q.ClearAll()
	for _, e := range removed {
		cid := e.Command.CommandID
		logger := log.WithFields(log.Fields{"queue_id": e.QueueID, "command_id": cid})
		if cid == "" {
			logger.Warn("cleared entry had no readable command")
			continue
		}
		err := j.MarkFailed(ctx, cid, clearedReason)
		switch {
		case err == nil:
			logger.Debug("journal record failed")
		case errors.Is(err, journal.ErrFinalized):
			logger.Debug("journal record already final")
		case errors.Is(err, journal.ErrNotFound):
			logger.Warn("no journal record for cleared command")
		default:
			return len(removed), fmt.Errorf("journal %s: %w", cid, err)
		}
	}
	return len(removed), clearErr
}
