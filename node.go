// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package lfqueue

import (
	"sync/atomic"
)

// countedPtr is the (external_count, ptr) pair described in spec.md §4.1:
// it must move as a single atomic unit so that a compare-and-swap on a slot
// holding it fails whenever the slot has been recycled, even if the pointer
// value happens to repeat. Both fields must be comparable with == for
// atomic.Value's CompareAndSwap to work, which a plain struct of an integer
// and a pointer already is.
type countedPtr[T any] struct {
	external uint32
	ptr      *node[T]
}

// atomicCountedPtr stores a countedPtr[T] atomically as a single unit,
// extended with Swap so that the tail-exchange step of Push (spec.md §4.3
// step 3c) can be expressed as one atomic operation instead of a
// hand-rolled CAS loop.
type atomicCountedPtr[T any] struct {
	v atomic.Value
}

func (p *atomicCountedPtr[T]) Load() countedPtr[T] {
	v, _ := p.v.Load().(countedPtr[T])
	return v
}

func (p *atomicCountedPtr[T]) Store(c countedPtr[T]) {
	p.v.Store(c)
}

func (p *atomicCountedPtr[T]) CompareAndSwap(old, new countedPtr[T]) bool {
	return p.v.CompareAndSwap(old, new)
}

// Swap atomically replaces the stored value and returns the previous one.
func (p *atomicCountedPtr[T]) Swap(new countedPtr[T]) countedPtr[T] {
	old, _ := p.v.Swap(new).(countedPtr[T])
	return old
}

// claim increments the external count of whatever node is currently named
// by the slot and returns the resulting countedPtr, retrying the CAS until
// it wins. This is the "Claim" step shared by Push (§4.3 step 3a) and Pop
// (§4.4 step 2a): incrementing before dereferencing ptr is what makes it
// safe to read the claimed node's fields.
func (p *atomicCountedPtr[T]) claim() countedPtr[T] {
	old := p.Load()
	for {
		newC := countedPtr[T]{external: old.external + 1, ptr: old.ptr}
		if p.CompareAndSwap(old, newC) {
			return newC
		}
		old = p.Load()
	}
}

// packedCount is the node's half of the split reference count from spec.md
// §3/§4.2: internal is the count of releases folded back into the node,
// externalHolders is how many of {head, tail} still name it (0, 1, or 2).
// The pair is packed into a single uint64 so it can be updated with one
// atomic compare-and-swap, per the "packed single-word encoding" option
// spec.md §9 calls out as an alternative to a double-word CAS.
type packedCount struct {
	internal        int32
	externalHolders int32
}

func packCount(c packedCount) uint64 {
	return uint64(uint32(c.internal))<<32 | uint64(uint32(c.externalHolders))
}

func unpackCount(v uint64) packedCount {
	return packedCount{
		internal:        int32(uint32(v >> 32)),
		externalHolders: int32(uint32(v)),
	}
}

// node is one cell of the list. A freshly allocated node starts as the
// queue's successor dummy: data is nil, externalHolders is 2 (it is about
// to be named by both the slot that links to it and the slot that's about
// to be swung to it), and next is unset until the producer that publishes
// it as a "real" node writes it exactly once (spec.md §3, Node.next).
type node[T any] struct {
	data  atomic.Pointer[T]
	count atomic.Uint64
	next  atomicCountedPtr[T]
}

// liveNodes tracks outstanding node allocations for leak-detection tests
// (spec.md §8's "idempotent destruction...verified by an allocator harness
// or leak detector" law). Go has no manual free to instrument, so this
// counter is incremented on allocation and decremented the moment a node's
// count provably reaches zero, standing in for the allocator harness the
// original C++ tests would use. Read from tests via [LiveNodes] in
// export_test.go.
var liveNodes atomic.Int64

func newNode[T any]() *node[T] {
	n := &node[T]{}
	n.count.Store(packCount(packedCount{internal: 0, externalHolders: 2}))
	liveNodes.Add(1)
	return n
}

// releaseRef folds one external claim back into the node's internal count
// (spec.md §4.2: "when a thread releases its claim, it transfers its
// contribution into the node's internal_count"). Used when a thread loses
// the race to be the Push linker, observes head == tail in Pop, or loses
// the head-advancing CAS in Pop.
func (n *node[T]) releaseRef() {
	old := n.count.Load()
	for {
		oc := unpackCount(old)
		nc := packedCount{internal: oc.internal - 1, externalHolders: oc.externalHolders}
		packed := packCount(nc)
		if n.count.CompareAndSwap(old, packed) {
			if nc.internal == 0 && nc.externalHolders == 0 {
				liveNodes.Add(-1)
			}
			return
		}
		old = n.count.Load()
	}
}

// freeExternalCounter resolves the reference held by a slot (head or tail)
// that has just been advanced past oldSlot. Per spec.md §4.2, the slot's
// external count minus 2 (the initial claim pair set when the node was
// first published) is folded into the node's internal count, and the
// node's externalHolders is decremented by one. This is called exactly
// once per slot-advance, from the thread that won the advancing CAS.
func freeExternalCounter[T any](oldSlot countedPtr[T]) {
	n := oldSlot.ptr
	countIncrease := int32(oldSlot.external) - 2
	old := n.count.Load()
	for {
		oc := unpackCount(old)
		nc := packedCount{
			internal:        oc.internal + countIncrease,
			externalHolders: oc.externalHolders - 1,
		}
		packed := packCount(nc)
		if n.count.CompareAndSwap(old, packed) {
			if nc.internal == 0 && nc.externalHolders == 0 {
				liveNodes.Add(-1)
			}
			return
		}
		old = n.count.Load()
	}
}
