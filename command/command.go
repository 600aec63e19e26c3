// Package command defines the trade command handed from the producer to the
// worker, and the builder that is the only way to construct a valid one.
package command

import (
	"fmt"
	"time"

	"github.com/rustyeddy/tradequeue/market"
)

// Tags classify a command for later review.
type Tags struct {
	Strategy  string `json:"strategy"`
	Sentiment string `json:"sentiment"`
}

// TradeCommand is an immutable instruction to place one limit order. It is
// passed by value; nothing in the pipeline mutates a command after Build.
type TradeCommand struct {
	CommandID    string           `json:"commandId"`
	AccountID    string           `json:"accountId"`
	Direction    market.Direction `json:"orderDirection"`
	Base         string           `json:"instrumentBase,omitempty"`
	Instrument   string           `json:"instrumentIdentifier"`
	Entry        float64          `json:"entryPrice"`
	Stop         float64          `json:"stopPrice"`
	TakeProfit   float64          `json:"takeProfitPrice"`
	Size         float64          `json:"size"`
	RiskAmount   float64          `json:"riskAmount"`
	Tags         Tags             `json:"tags"`
	ReferenceURL string           `json:"referenceUrl,omitempty"`
	CreatedAt    time.Time        `json:"commandTimestamp"`
}

// Comment is the short order comment sent to the venue.
func (c TradeCommand) Comment() string {
	return c.Tags.Sentiment + "|" + c.Tags.Strategy
}

func (c TradeCommand) String() string {
	return fmt.Sprintf("%s %s %s @ %v sl=%v tp=%v size=%v",
		c.CommandID, c.Direction.Label(), c.Instrument, c.Entry, c.Stop, c.TakeProfit, c.Size)
}
