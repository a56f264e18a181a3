package aggregate

import (
	"time"

	"dukafeed/internal/archive"
	perr "dukafeed/internal/platform/errors"
)

// Bar is one closed OHLCV bucket. Invariant: Low <= Open,Close <= High;
// Volume is the sum of ask and bid volume within the bucket;
// BucketStart equals Timeframe.Floor(BucketStart)
type Bar struct {
	BucketStart time.Time
	Open        float64
	High        float64
	Low         float64
	Close       float64
	Volume      float64
	TickCount   int
}

// Aggregator folds a stream of ticks into closed bars at a fixed
// timeframe. Ticks must arrive in non-decreasing timestamp order; a
// backwards-moving timestamp is a programmer error and yields
// Error(OrderViolation), not a silently-dropped tick
type Aggregator struct {
	tf      Timeframe
	started bool
	bucket  time.Time
	acc     Bar
	lastTS  time.Time
}

// NewAggregator builds an aggregator for the given timeframe
func NewAggregator(tf Timeframe) *Aggregator {
	return &Aggregator{tf: tf}
}

// Process folds one tick into the current bucket. It returns a non-nil
// Bar exactly when processing tick closes the previous bucket
func (a *Aggregator) Process(tick archive.Tick) (*Bar, error) {
	if a.started && tick.Timestamp.Before(a.lastTS) {
		return nil, perr.Newf(perr.KindOrderViolation,
			"tick at %s precedes previous tick at %s", tick.Timestamp, a.lastTS)
	}
	a.lastTS = tick.Timestamp

	b := a.tf.Floor(tick.Timestamp)
	mid := tick.Mid()
	vol := float64(tick.AskVolume) + float64(tick.BidVolume)

	if !a.started {
		a.started = true
		a.bucket = b
		a.acc = Bar{BucketStart: b, Open: mid, High: mid, Low: mid, Close: mid, Volume: vol, TickCount: 1}
		return nil, nil
	}

	if b == a.bucket {
		if mid > a.acc.High {
			a.acc.High = mid
		}
		if mid < a.acc.Low {
			a.acc.Low = mid
		}
		a.acc.Close = mid
		a.acc.Volume += vol
		a.acc.TickCount++
		return nil, nil
	}

	completed := a.acc
	a.bucket = b
	a.acc = Bar{BucketStart: b, Open: mid, High: mid, Low: mid, Close: mid, Volume: vol, TickCount: 1}
	return &completed, nil
}

// Finish emits any partial bar and resets the aggregator's state. Returns
// nil if no tick has been processed since the last Finish
func (a *Aggregator) Finish() *Bar {
	if !a.started {
		return nil
	}
	completed := a.acc
	a.started = false
	a.bucket = time.Time{}
	a.acc = Bar{}
	return &completed
}
