// market/instruments.go
package market

// InstrumentInfo is the tick economics and volume limits of one tradable
// instrument, as quoted by a venue.
type InstrumentInfo struct {
	Symbol     string  `json:"symbol"`
	TickValue  float64 `json:"tickValue"`  // account currency per tick per 1.0 volume
	TickSize   float64 `json:"tickSize"`   // smallest price increment
	VolumeStep float64 `json:"volumeStep"` // smallest volume increment
	MinVolume  float64 `json:"minVolume"`
	MaxVolume  float64 `json:"maxVolume"`
	Bid        float64 `json:"bid"`
	Ask        float64 `json:"ask"`
	Digits     int     `json:"digits"` // quoted precision, 0 = unspecified
}

// DefaultDigits is the precision used when an instrument does not specify one.
const DefaultDigits = 2

// Precision returns the number of decimals prices are quoted with.
func (i InstrumentInfo) Precision() int {
	if i.Digits <= 0 {
		return DefaultDigits
	}
	return i.Digits
}

// Mid is the midpoint of the current quote.
func (i InstrumentInfo) Mid() float64 {
	return (i.Bid + i.Ask) / 2
}

// Instruments is the producer's static view of common instruments. Sizes
// computed from it are advisory; the worker resizes against live venue data.
var Instruments = map[string]InstrumentInfo{
	"XAUUSD": {
		Symbol:     "XAUUSD",
		TickValue:  1.0,
		TickSize:   0.01,
		VolumeStep: 0.01,
		MinVolume:  0.01,
		MaxVolume:  100,
		Digits:     2,
	},
	"EURUSD": {
		Symbol:     "EURUSD",
		TickValue:  1.0,
		TickSize:   0.00001,
		VolumeStep: 0.01,
		MinVolume:  0.01,
		MaxVolume:  100,
		Digits:     5,
	},
	"GBPUSD": {
		Symbol:     "GBPUSD",
		TickValue:  1.0,
		TickSize:   0.00001,
		VolumeStep: 0.01,
		MinVolume:  0.01,
		MaxVolume:  100,
		Digits:     5,
	},
	"USDJPY": {
		Symbol:     "USDJPY",
		TickValue:  0.67,
		TickSize:   0.001,
		VolumeStep: 0.01,
		MinVolume:  0.01,
		MaxVolume:  100,
		Digits:     3,
	},
}
