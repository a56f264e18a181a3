// Package archive implements the fetch/decode pipeline over Dukascopy's
// per-hour bi5 archive: planning hour slots over a date range, fetching
// and LZMA-decompressing each hour's blob, parsing it into normalized
// ticks, and streaming the result in order with bounded concurrency.
package archive

import (
	"fmt"
	"time"
)

// HourSlot identifies one archive hour in UTC. Ordering is lexicographic
// on the tuple, which is also chronological order.
type HourSlot struct {
	Year  int
	Month int // 1-12, calendar month (NOT the archive URL's zero-based month)
	Day   int
	Hour  int // 0-23
}

// NewHourSlot builds a HourSlot from a time.Time, converting to UTC first
func NewHourSlot(t time.Time) HourSlot {
	ut := t.UTC()
	return HourSlot{Year: ut.Year(), Month: int(ut.Month()), Day: ut.Day(), Hour: ut.Hour()}
}

// Start returns the UTC instant this slot begins at
func (h HourSlot) Start() time.Time {
	return time.Date(h.Year, time.Month(h.Month), h.Day, h.Hour, 0, 0, 0, time.UTC)
}

// String renders the slot as "YYYY-MM-DDTHH", used in logs and as a map key
func (h HourSlot) String() string {
	return fmt.Sprintf("%04d-%02d-%02dT%02d", h.Year, h.Month, h.Day, h.Hour)
}

// Before reports whether h sorts strictly before o
func (h HourSlot) Before(o HourSlot) bool {
	if h.Year != o.Year {
		return h.Year < o.Year
	}
	if h.Month != o.Month {
		return h.Month < o.Month
	}
	if h.Day != o.Day {
		return h.Day < o.Day
	}
	return h.Hour < o.Hour
}

// Next returns the slot immediately following h
func (h HourSlot) Next() HourSlot {
	return NewHourSlot(h.Start().Add(time.Hour))
}

// DateRange is an inclusive range of UTC calendar days. Invariant:
// Start must not be after End; callers validate this at construction
type DateRange struct {
	Start time.Time // UTC calendar day, time-of-day ignored
	End   time.Time
}

// Days returns the number of calendar days spanned, inclusive
func (r DateRange) Days() int {
	s := time.Date(r.Start.Year(), r.Start.Month(), r.Start.Day(), 0, 0, 0, 0, time.UTC)
	e := time.Date(r.End.Year(), r.End.Month(), r.End.Day(), 0, 0, 0, 0, time.UTC)
	return int(e.Sub(s).Hours()/24) + 1
}

// Tick is one normalized best bid/ask quote
type Tick struct {
	Timestamp time.Time // UTC, millisecond precision
	Ask       float64
	Bid       float64
	AskVolume float32
	BidVolume float32
}

// Mid returns the midpoint price used by the OHLCV aggregator
func (t Tick) Mid() float64 { return (t.Ask + t.Bid) / 2 }

// rawTickSize is the fixed on-wire record length in bytes
const rawTickSize = 20

// RawTickSizeBytes is rawTickSize exported for callers that need to
// estimate decoded payload size (e.g. progress reporting) without
// reaching into the parser
const RawTickSizeBytes = rawTickSize

// rawTick is the transient 20-byte wire record; never surfaces past the parser
type rawTick struct {
	msOffset uint32
	askRaw   uint32
	bidRaw   uint32
	askVol   float32
	bidVol   float32
}

// TickBatch carries all ticks decoded for one hour slot. Ticks is empty
// when the archive published nothing for this hour (404 or zero-length body)
type TickBatch struct {
	Slot  HourSlot
	Ticks []Tick
}

// Instrument is immutable reference data the registry hands back by id
type Instrument struct {
	ID            string
	Name          string
	Category      string
	PathFragment  string
	DecimalFactor float64
}

// URL returns the archive URL for one hour of this instrument. Note the
// archive's URL convention is zero-based on month, unlike HourSlot.Month
func (i Instrument) URL(slot HourSlot) string {
	return fmt.Sprintf(
		"https://datafeed.dukascopy.com/datafeed/%s/%04d/%02d/%02d/%02dh_ticks.bi5",
		i.PathFragment, slot.Year, slot.Month-1, slot.Day, slot.Hour,
	)
}
