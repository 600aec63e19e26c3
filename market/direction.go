package market

import (
	"errors"
	"fmt"
	"strings"
)

// Direction is the side and type of a pending order.
type Direction string

const (
	BuyLimit  Direction = "LIMIT_BUY"
	SellLimit Direction = "LIMIT_SELL"
)

var ErrUnknownDirection = errors.New("market: unknown order direction")

// ParseDirection accepts the wire names plus the common spellings used by
// front ends ("BUY_LIMIT", "buy", ...).
func ParseDirection(s string) (Direction, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "LIMIT_BUY", "BUY_LIMIT", "BUY":
		return BuyLimit, nil
	case "LIMIT_SELL", "SELL_LIMIT", "SELL":
		return SellLimit, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownDirection, s)
}

func (d Direction) Valid() bool {
	return d == BuyLimit || d == SellLimit
}

func (d Direction) IsBuy() bool { return d == BuyLimit }

// Label is the human readable form, e.g. "BUY LIMIT".
func (d Direction) Label() string {
	switch d {
	case BuyLimit:
		return "BUY LIMIT"
	case SellLimit:
		return "SELL LIMIT"
	}
	return string(d)
}
