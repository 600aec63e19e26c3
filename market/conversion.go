package market

import (
	"errors"
	"fmt"
)

var ErrNoConversion = errors.New("market: no conversion to account currency")

// Currencies splits a six letter code such as EURUSD or XAUUSD into its
// base and quote currencies.
func Currencies(base string) (string, string, bool) {
	if len(base) != 6 {
		return "", "", false
	}
	return base[:3], base[3:], true
}

// QuoteToAccountRate returns the factor that converts an amount in the
// quote currency of base into accountCurrency, using mid as the price of
// base itself.
func QuoteToAccountRate(base, accountCurrency string, mid float64) (float64, error) {
	baseCcy, quoteCcy, ok := Currencies(base)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrNoConversion, base)
	}

	// EURUSD, XAUUSD with a USD account.
	if quoteCcy == accountCurrency {
		return 1.0, nil
	}

	// USDJPY with a USD account: mid is JPY per USD.
	if baseCcy == accountCurrency {
		if mid <= 0 {
			return 0, fmt.Errorf("%w: %s has no price", ErrNoConversion, base)
		}
		return 1.0 / mid, nil
	}

	// Crosses need a second quote.
	return 0, fmt.Errorf("%w: %s -> %s", ErrNoConversion, quoteCcy, accountCurrency)
}
