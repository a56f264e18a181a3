// Package instruments is the read-only instrument registry: a lookup from
// instrument id to the archive path fragment, decimal factor and category
// needed by the fetch/decode pipeline. Data entry and the CLI surface over
// this registry are external collaborators; this package only specifies
// the lookup contract and a minimal seed set so the core is testable
package instruments

import (
	"strings"
	"sync"

	"dukafeed/internal/archive"
)

// Category names the instrument's market class
type Category string

const (
	Forex      Category = "forex"
	Crypto     Category = "crypto"
	Stocks     Category = "stocks"
	Metals     Category = "metals"
	Indices    Category = "indices"
	Commodities Category = "commodities"
	Bonds      Category = "bonds"
	ETFs       Category = "etfs"
)

var (
	once sync.Once
	reg  map[string]archive.Instrument
)

// seed is a minimal built-in set; a real deployment loads this from the
// registry's data source, out of scope here
func seed() map[string]archive.Instrument {
	return map[string]archive.Instrument{
		"eurusd": {ID: "eurusd", Name: "Euro/US Dollar", Category: string(Forex), PathFragment: "EURUSD", DecimalFactor: 1e5},
		"usdjpy": {ID: "usdjpy", Name: "US Dollar/Japanese Yen", Category: string(Forex), PathFragment: "USDJPY", DecimalFactor: 1e3},
		"gbpusd": {ID: "gbpusd", Name: "British Pound/US Dollar", Category: string(Forex), PathFragment: "GBPUSD", DecimalFactor: 1e5},
		"xauusd": {ID: "xauusd", Name: "Gold/US Dollar", Category: string(Metals), PathFragment: "XAUUSD", DecimalFactor: 1e3},
		"btcusd": {ID: "btcusd", Name: "Bitcoin/US Dollar", Category: string(Crypto), PathFragment: "BTCUSD", DecimalFactor: 1e2},
	}
}

func ensureLoaded() {
	once.Do(func() {
		reg = seed()
	})
}

// Lookup returns the instrument for id (case-insensitive), or false if unknown.
// Lazily initialized on first call, safe for concurrent readers, no teardown
func Lookup(id string) (archive.Instrument, bool) {
	ensureLoaded()
	inst, ok := reg[strings.ToLower(id)]
	return inst, ok
}

// All returns every known instrument. The returned slice is a fresh copy;
// callers may not mutate the registry through it
func All() []archive.Instrument {
	ensureLoaded()
	out := make([]archive.Instrument, 0, len(reg))
	for _, inst := range reg {
		out = append(out, inst)
	}
	return out
}
