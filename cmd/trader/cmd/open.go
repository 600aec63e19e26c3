package cmd

import (
	"fmt"

	"github.com/rustyeddy/tradequeue/broker"
	"github.com/rustyeddy/tradequeue/broker/bridge"
	"github.com/rustyeddy/tradequeue/broker/paper"
	"github.com/rustyeddy/tradequeue/config"
	"github.com/rustyeddy/tradequeue/journal"
	"github.com/rustyeddy/tradequeue/queue"
)

func openQueue(cfg *config.Config) (*queue.Dir, error) {
	q, err := queue.Open(cfg.Queue.Dir)
	if err != nil {
		return nil, fmt.Errorf("open queue %s: %w", cfg.Queue.Dir, err)
	}
	return q, nil
}

func openJournal(cfg *config.Config) (*journal.SQLite, error) {
	j, err := journal.NewSQLite(cfg.Journal.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", cfg.Journal.DBPath, err)
	}
	return j, nil
}

// newVenue builds the venue named by cfg.Venue.Type.
func newVenue(cfg *config.Config) (broker.Venue, error) {
	switch cfg.Venue.Type {
	case "paper":
		v := paper.NewVenue(paper.Account{
			ID:       cfg.Venue.Login,
			Currency: "USD",
			Balance:  cfg.Venue.PaperBalance,
			Equity:   cfg.Venue.PaperBalance,
		})
		for _, inst := range paper.WithSymbols(paper.InstrumentsFrom(cfg.InstrumentTable()), cfg.Symbol.Prefix, cfg.Symbol.Suffix) {
			v.AddInstrument(inst)
		}
		return v, nil
	case "bridge":
		return bridge.New(cfg.Venue.URL, cfg.Venue.Token()), nil
	default:
		return nil, fmt.Errorf("unknown venue type %q", cfg.Venue.Type)
	}
}
