package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rustyeddy/tradequeue/notify"
	"github.com/rustyeddy/tradequeue/status"
	"github.com/rustyeddy/tradequeue/worker"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the trade worker",
	Long: `Run the trade worker against the configured venue.

The worker claims queued commands in arrival order, re-sizes them against
live instrument data and places them as limit orders. Results are written
to the trade journal and the notification outbox. Stop it with Ctrl-C; a
command in flight is finished first.`,
	RunE: runWorker,
}

var (
	workerID     string
	workerNoHTTP bool
)

func init() {
	rootCmd.AddCommand(workerCmd)
	workerCmd.Flags().StringVar(&workerID, "id", "", "worker id (default: worker.id or hostname)")
	workerCmd.Flags().BoolVar(&workerNoHTTP, "no-status", false, "do not start the status endpoint")
}

func runWorker(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if workerID != "" {
		cfg.Worker.ID = workerID
	}
	dur, err := cfg.Worker.Durations()
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

	outbox, err := notify.Open(cfg.Notify.Dir)
	if err != nil {
		return fmt.Errorf("open outbox: %w", err)
	}

	venue, err := newVenue(cfg)
	if err != nil {
		return err
	}
	conn := worker.NewConnection(venue, cfg.Venue.Credentials(), worker.ConnOptions{
		CallTimeout:         dur.VenueTimeout,
		ReconnectMaxElapsed: dur.ReconnectMaxElapsed,
	})

	w := worker.New(worker.Options{
		ID:             cfg.Worker.WorkerID(),
		Prefix:         cfg.Symbol.Prefix,
		Suffix:         cfg.Symbol.Suffix,
		PollInterval:   dur.Poll,
		HealthInterval: dur.Health,
		VenueTimeout:   dur.VenueTimeout,
		ClaimLease:     dur.ClaimLease,
		MaxRetries:     cfg.Worker.MaxRetries,
	}, q, j, conn, outbox)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithFields(log.Fields{
		"worker_id": w.ID(),
		"venue":     cfg.Venue.Type,
		"queue":     q.Root(),
		"journal":   cfg.Journal.DBPath,
	}).Info("starting")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return w.Run(gctx) })
	if cfg.Status.Addr != "" && !workerNoHTTP {
		srv := status.New(q, j, conn, w)
		g.Go(func() error { return srv.Run(gctx, cfg.Status.Addr) })
	}
	if err := g.Wait(); err != nil && err != context.Canceled {
		return err
	}

	s := w.Stats()
	fmt.Printf("✓ Worker %s stopped: %d processed, %d filled, %d failed, %d retried\n",
		w.ID(), s.Processed, s.Filled, s.Failed, s.Retried)
	return nil
}
