// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

// Package lfsim estimates, without spawning a single goroutine, how long a
// producer/consumer workload of a given shape would take to drain through
// a queue. It is a discrete-event simulator in the style of the teacher
// repo's job-duration estimator: a min-heap of pending events driven
// forward in time, with a deque standing in for whatever is currently
// waiting its turn.
//
// It exists to give CI a fast, deterministic sanity check — "does
// estimated completion time scale the way it should as consumers are
// added" — before paying for the real, nondeterministic goroutine stress
// tests that exercise [github.com/quartzdev/lfqueue.Queue] itself. lfsim
// never touches the real queue implementation; it models arrival and
// service times only.
package lfsim

import (
	"cmp"
	"fmt"
	"time"

	"github.com/addrummond/heap"
	"github.com/gammazero/deque"
	"pgregory.net/rapid"

	"github.com/quartzdev/lfqueue/internal/cerr"
)

const (
	// ErrInvalidProducerCount is returned when Config.Producers is not positive.
	ErrInvalidProducerCount = cerr.Error("lfsim: producer count must be positive")
	// ErrInvalidConsumerCount is returned when Config.Consumers is not positive.
	ErrInvalidConsumerCount = cerr.Error("lfsim: consumer count must be positive")
	// ErrInvalidItemCount is returned when Config.ItemsPerProducer is not positive.
	ErrInvalidItemCount = cerr.Error("lfsim: items per producer must be positive")
)

// LatencyConfig describes a jittered per-operation latency, biased toward
// Med the same way the teacher's BiasedDurationConfig is: sampling in
// [Min-Med, Max-Med] around zero takes advantage of rapid's own bias
// toward small and boundary values.
type LatencyConfig struct {
	Min, Med, Max time.Duration
}

func (c LatencyConfig) draw(t *rapid.T, name string) time.Duration {
	if c.Med < c.Min || c.Max < c.Med {
		panic(fmt.Sprintf("lfsim: invalid LatencyConfig: %+v", c))
	}
	return rapid.Custom(func(t *rapid.T) time.Duration {
		return c.Med + time.Duration(
			rapid.Int64Range(int64(c.Min-c.Med), int64(c.Max-c.Med)).Draw(t, name+"(internal)"))
	}).Draw(t, name)
}

// Config describes the shape of a producer/consumer workload to estimate.
type Config struct {
	Producers        int
	Consumers        int
	ItemsPerProducer int
	PushLatency      LatencyConfig
	PopLatency       LatencyConfig
}

func (c Config) validate() error {
	if c.Producers <= 0 {
		return ErrInvalidProducerCount
	}
	if c.Consumers <= 0 {
		return ErrInvalidConsumerCount
	}
	if c.ItemsPerProducer <= 0 {
		return ErrInvalidItemCount
	}
	return nil
}

// event is the discrete-event timeline's unit of work, mirroring the
// teacher's internal/sim taskEvent: a point in simulated time paired with
// the closure that advances the simulation from there.
type event struct {
	Time time.Duration
	Func func()
}

func (a *event) Cmp(b *event) int {
	return cmp.Compare(a.Time, b.Time)
}

// Estimate simulates cfg.Producers producers each pushing
// cfg.ItemsPerProducer items, drained by cfg.Consumers consumers, and
// returns the simulated wall-clock time at which the last item is
// consumed. t drives the latency jitter so that a caller running this
// inside rapid.Check gets a reproducible, shrinkable estimate.
func Estimate(t *rapid.T, cfg Config) (time.Duration, error) {
	if err := cfg.validate(); err != nil {
		return 0, err
	}

	var events heap.Heap[event, heap.Min]
	var readyItems deque.Deque[time.Duration] // push-completion times awaiting a consumer
	idleConsumers := cfg.Consumers
	totalItems := cfg.Producers * cfg.ItemsPerProducer
	itemsConsumed := 0
	simTime := time.Duration(0)

	var startPop func(now time.Duration)
	startPop = func(now time.Duration) {
		idleConsumers--
		completeAt := now + cfg.PopLatency.draw(t, "popLatency")
		heap.PushOrderable(&events, event{
			Time: completeAt,
			Func: func() {
				itemsConsumed++
				if readyItems.Len() > 0 {
					readyItems.PopFront()
					startPop(completeAt)
				} else {
					idleConsumers++
				}
			},
		})
	}

	var schedulePush func(producer, remaining int, now time.Duration)
	schedulePush = func(producer, remaining int, now time.Duration) {
		pushAt := now + cfg.PushLatency.draw(t, "pushLatency")
		heap.PushOrderable(&events, event{
			Time: pushAt,
			Func: func() {
				if idleConsumers > 0 {
					startPop(pushAt)
				} else {
					readyItems.PushBack(pushAt)
				}
				if remaining > 1 {
					schedulePush(producer, remaining-1, pushAt)
				}
			},
		})
	}

	for p := 0; p < cfg.Producers; p++ {
		schedulePush(p, cfg.ItemsPerProducer, 0)
	}

	for itemsConsumed < totalItems {
		ev, ok := heap.PopOrderable(&events)
		if !ok {
			break
		}
		simTime = ev.Time
		ev.Func()
	}

	return simTime, nil
}
