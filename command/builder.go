package command

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/rustyeddy/tradequeue/market"
	"github.com/rustyeddy/tradequeue/pkg/id"
	"github.com/rustyeddy/tradequeue/risk"
)

var (
	ErrMissingAccount    = errors.New("command: account is required")
	ErrMissingStrategy   = errors.New("command: strategy code is required")
	ErrInvalidSentiment  = errors.New("command: unknown sentiment")
	ErrInvalidPrice      = errors.New("command: prices must be positive")
	ErrUnknownInstrument = errors.New("command: no instrument parameters for base")
)

// Sentiments are the accepted emotion tags.
var Sentiments = []string{"calm", "confident", "fomo", "stressed", "revenge"}

// Request is what the front end collects from the user.
type Request struct {
	RequestID    string // identity of the originating request; generated when empty
	AccountID    string
	Base         string
	Direction    market.Direction
	Entry        float64
	Stop         float64
	TakeProfit   float64 // 0 derives the target from the builder's ratio
	RiskAmount   float64
	Strategy     string
	Sentiment    string
	ReferenceURL string
}

// Builder turns requests into commands. Validation and sizing both have to
// pass before a command exists.
type Builder struct {
	Prefix string
	Suffix string
	Ratio  float64 // default reward:risk for derived targets

	// Instruments supplies advisory tick economics by base code.
	// Nil means market.Instruments.
	Instruments map[string]market.InstrumentInfo

	Now func() time.Time
}

func (b Builder) now() time.Time {
	if b.Now != nil {
		return b.Now().UTC()
	}
	return time.Now().UTC()
}

func (b Builder) instrument(base string) (market.InstrumentInfo, bool) {
	table := b.Instruments
	if table == nil {
		table = market.Instruments
	}
	info, ok := table[strings.TrimSpace(base)]
	return info, ok
}

// Build validates the request, derives the take profit when needed, sizes
// the position and resolves the venue symbol.
func (b Builder) Build(req Request) (TradeCommand, error) {
	if strings.TrimSpace(req.AccountID) == "" {
		return TradeCommand{}, ErrMissingAccount
	}
	if strings.TrimSpace(req.Strategy) == "" {
		return TradeCommand{}, ErrMissingStrategy
	}
	sentiment := strings.ToLower(strings.TrimSpace(req.Sentiment))
	if !slices.Contains(Sentiments, sentiment) {
		return TradeCommand{}, fmt.Errorf("%w: %q (want one of %s)", ErrInvalidSentiment, req.Sentiment, strings.Join(Sentiments, ", "))
	}
	if !req.Direction.Valid() {
		return TradeCommand{}, fmt.Errorf("%w: %q", market.ErrUnknownDirection, req.Direction)
	}
	if req.Entry <= 0 || req.Stop <= 0 || req.TakeProfit < 0 {
		return TradeCommand{}, ErrInvalidPrice
	}

	symbol, err := market.Resolve(req.Base, b.Prefix, b.Suffix)
	if err != nil {
		return TradeCommand{}, err
	}
	info, ok := b.instrument(req.Base)
	if !ok {
		return TradeCommand{}, fmt.Errorf("%w: %q", ErrUnknownInstrument, req.Base)
	}

	if err := risk.CheckStopPlacement(req.Direction, req.Entry, req.Stop); err != nil {
		return TradeCommand{}, err
	}

	tp := req.TakeProfit
	if tp == 0 {
		tp, err = risk.AutoTarget(req.Direction, req.Entry, req.Stop, b.Ratio, info.Precision())
		if err != nil {
			return TradeCommand{}, err
		}
	}
	if err := risk.CheckTargetSide(req.Direction, req.Entry, tp); err != nil {
		return TradeCommand{}, err
	}

	size, err := risk.Size(risk.SizeInputs{
		RiskBudget: req.RiskAmount,
		Entry:      req.Entry,
		Stop:       req.Stop,
		TickValue:  info.TickValue,
		TickSize:   info.TickSize,
		VolumeStep: info.VolumeStep,
		MinVolume:  info.MinVolume,
		MaxVolume:  info.MaxVolume,
	})
	if err != nil {
		return TradeCommand{}, err
	}

	cmdID := strings.TrimSpace(req.RequestID)
	if cmdID == "" {
		cmdID = id.NewCommand()
	}

	return TradeCommand{
		CommandID:    cmdID,
		AccountID:    strings.TrimSpace(req.AccountID),
		Direction:    req.Direction,
		Base:         strings.TrimSpace(req.Base),
		Instrument:   symbol,
		Entry:        req.Entry,
		Stop:         req.Stop,
		TakeProfit:   tp,
		Size:         size,
		RiskAmount:   req.RiskAmount,
		Tags:         Tags{Strategy: strings.TrimSpace(req.Strategy), Sentiment: sentiment},
		ReferenceURL: strings.TrimSpace(req.ReferenceURL),
		CreatedAt:    b.now(),
	}, nil
}
