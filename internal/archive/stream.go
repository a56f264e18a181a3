package archive

import (
	"context"
	"sync"

	perr "dukafeed/internal/platform/errors"
)

// StreamResult is one item yielded by a TickStream: either a TickBatch or
// an error scoped to its HourSlot
type StreamResult struct {
	Batch TickBatch
	Err   error
}

const defaultStreamConcurrency = 8

// TickStream composes the Range Planner, HTTP Fetcher, Decompressor and
// Tick Parser into the pipeline operator 4.E exposes to consumers:
// tick_stream(client, instrument, range) -> lazy sequence of Result<TickBatch>.
//
// Scheduling is a single-threaded cooperative driver with N concurrent
// in-flight fetches (default 8); batches are delivered in HourSlot order
// even though fetches complete out of order, via a reorder buffer bounded
// at N entries. The consumer's read pace is the only backpressure: at most
// N fetches are ever pending at once
type TickStream struct {
	fetcher     Fetcher
	instrument  Instrument
	slots       []HourSlot
	concurrency int
}

// NewTickStream builds a stream over every hour slot in r for inst. A
// concurrency <= 0 uses the default of 8 concurrent in-flight fetches
func NewTickStream(fetcher Fetcher, inst Instrument, r DateRange, concurrency int) *TickStream {
	return NewTickStreamForSlots(fetcher, inst, PlanRange(r), concurrency)
}

// NewTickStreamForSlots builds a stream over an explicit, already-planned
// slot list. Used to resume a partially completed task at its saved
// progress index without re-fetching the hours already delivered
func NewTickStreamForSlots(fetcher Fetcher, inst Instrument, slots []HourSlot, concurrency int) *TickStream {
	if concurrency <= 0 {
		concurrency = defaultStreamConcurrency
	}
	return &TickStream{
		fetcher:     fetcher,
		instrument:  inst,
		slots:       slots,
		concurrency: concurrency,
	}
}

// Results returns a channel yielding one StreamResult per HourSlot in
// strictly ascending order. It closes once every slot has been delivered,
// or early if the very first slot fails with a Permanent error. Cancelling
// ctx drops in-flight fetches and discards the reorder buffer
func (s *TickStream) Results(ctx context.Context) <-chan StreamResult {
	out := make(chan StreamResult)
	go func() {
		defer close(out)
		s.run(ctx, out)
	}()
	return out
}

func (s *TickStream) run(parent context.Context, out chan<- StreamResult) {
	n := len(s.slots)
	if n == 0 {
		return
	}

	ctx, abort := context.WithCancel(parent)
	defer abort()

	sem := make(chan struct{}, s.concurrency)
	results := make([]chan StreamResult, n)
	for i := range results {
		results[i] = make(chan StreamResult, 1)
	}

	var wg sync.WaitGroup
	launch := func(i int) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				results[i] <- StreamResult{Err: ctx.Err()}
				return
			}
			defer func() { <-sem }()
			results[i] <- s.fetchOne(ctx, s.slots[i])
		}()
	}

	next := 0
	for next < n && next < s.concurrency {
		launch(next)
		next++
	}

	for i := 0; i < n; i++ {
		var r StreamResult
		select {
		case r = <-results[i]:
		case <-ctx.Done():
			wg.Wait()
			return
		}

		if next < n {
			launch(next)
			next++
		}

		select {
		case out <- r:
		case <-ctx.Done():
			wg.Wait()
			return
		}

		if i == 0 && r.Err != nil {
			if e, ok := perr.As(r.Err); ok && e.Kind() == perr.KindPermanent {
				abort()
				wg.Wait()
				return
			}
		}
	}

	wg.Wait()
}

// fetchOne runs fetch -> decompress -> parse for a single slot. A nil
// blob (EmptyHour) short-circuits straight to an empty TickBatch
func (s *TickStream) fetchOne(ctx context.Context, slot HourSlot) StreamResult {
	url := s.instrument.URL(slot)
	blob, err := s.fetcher.Fetch(ctx, url)
	if err != nil {
		return StreamResult{Batch: TickBatch{Slot: slot}, Err: perr.WithOp(err, slot.String())}
	}
	if blob == nil {
		return StreamResult{Batch: TickBatch{Slot: slot}}
	}

	raw, err := Decompress(blob)
	if err != nil {
		return StreamResult{Batch: TickBatch{Slot: slot}, Err: perr.WithOp(err, slot.String())}
	}

	batch, err := ParseTicks(slot, raw, s.instrument.DecimalFactor)
	if err != nil {
		return StreamResult{Batch: TickBatch{Slot: slot}, Err: perr.WithOp(err, slot.String())}
	}
	return StreamResult{Batch: batch}
}
