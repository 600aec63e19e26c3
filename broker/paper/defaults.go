package paper

import "github.com/rustyeddy/tradequeue/market"

// DefaultInstruments lists market.Instruments with typical contract sizes.
func DefaultInstruments() []Instrument {
	return InstrumentsFrom(market.Instruments)
}

// InstrumentsFrom lists every entry of table, keyed by base code. Entries
// without a quote get the built-in one when there is one.
func InstrumentsFrom(table map[string]market.InstrumentInfo) []Instrument {
	out := make([]Instrument, 0, len(table))
	for base, info := range table {
		inst := Instrument{Base: base, Info: info, ContractSize: contractSize(base), MarginRate: 0.01}
		if inst.Info.Bid == 0 && inst.Info.Ask == 0 {
			inst.Info.Bid, inst.Info.Ask = quote(base)
		}
		out = append(out, inst)
	}
	return out
}

func contractSize(base string) float64 {
	switch base {
	case "XAUUSD":
		return 100
	case "XAGUSD":
		return 5000
	}
	return 100000
}

// WithSymbols returns insts renamed to the venue's symbol convention.
func WithSymbols(insts []Instrument, prefix, suffix string) []Instrument {
	out := make([]Instrument, len(insts))
	for i, inst := range insts {
		sym, err := market.Resolve(inst.Info.Symbol, prefix, suffix)
		if err != nil {
			sym = inst.Info.Symbol
		}
		inst.Info.Symbol = sym
		out[i] = inst
	}
	return out
}

func quote(base string) (bid, ask float64) {
	switch base {
	case "XAUUSD":
		return 2000.00, 2000.30
	case "EURUSD":
		return 1.08500, 1.08512
	case "GBPUSD":
		return 1.27000, 1.27015
	case "USDJPY":
		return 150.000, 150.012
	}
	return 0, 0
}
