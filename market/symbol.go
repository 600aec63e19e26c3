package market

import (
	"errors"
	"strings"
)

var ErrEmptyBase = errors.New("market: empty instrument base")

// Resolve composes a venue instrument identifier as prefix + base + suffix.
//
// Venues are case-sensitive on some instrument tables, so the base is used
// exactly as given apart from surrounding whitespace. No quote currency is
// inserted; callers that want "XAUUSD" pass "XAUUSD" (or "XAU" with suffix "USD").
func Resolve(base, prefix, suffix string) (string, error) {
	base = strings.TrimSpace(base)
	if base == "" {
		return "", ErrEmptyBase
	}
	return prefix + base + suffix, nil
}
