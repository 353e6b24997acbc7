// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

// Package lfqueue provides an unbounded, lock-free, multi-producer
// multi-consumer FIFO queue for passing heap-allocated values between
// goroutines without a mutex.
//
// The queue is a Michael–Scott style singly-linked list: [Queue.Push]
// installs a value into the current tail node and links a fresh dummy node
// behind it; [Queue.Pop] advances head past the oldest value-bearing node.
// Both operations are lock-free — a goroutine that loses a compare-and-swap
// race retries, but some other goroutine always makes progress in the
// meantime.
//
// # Node lifetime
//
// Every node carries a split reference count: an external count that
// travels with whichever of head or tail currently names the node (so a
// compare-and-swap on that slot can't succeed against a pointer that's been
// recycled out from under it and back), and an internal count that the
// node keeps for itself once a claim is released. A node becomes eligible
// for reclamation only once both halves of the count fall to zero — see
// node.go for the exact arithmetic, which mirrors the split-counter scheme
// from Anthony Williams' "C++ Concurrency in Action". Because Go is
// garbage collected, "reclaim" here means "drop the last strong reference
// and let the collector do the rest" rather than calling free; the
// counting protocol itself is still required, not optional, since it's
// what makes it safe for one goroutine to dereference a node's next or
// data fields while another is concurrently advancing past it.
//
// # What this package does not do
//
// The queue has no capacity limit, no priority ordering, no persistence,
// and no wait-free guarantee (a losing goroutine retries rather than being
// guaranteed to finish in bounded steps). [Queue.Pop] never blocks: an
// empty observation under concurrent Push is a valid, if momentary, result
// rather than an error.
package lfqueue
