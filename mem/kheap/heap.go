// Package kheap implements the kernel's general-purpose dynamic memory
// allocator: an address-ordered AVL tree of free blocks and one of used
// blocks, grown on demand by asking a caller-supplied callback for more
// virtually-mapped address space.
//
// Grounded on the original core's kernel/mm/heap.c, which keeps the same
// two-tree shape (free_area_address, used_area) via an intrusive AVL
// tree with an address-compare callback. That implementation embeds a
// heap_block_t header immediately before each block's usable memory and
// stores the AVL node inline in the header; this package instead keeps
// block bookkeeping entirely in the trees themselves (internal/avltree),
// since Go has no need to self-describe a block from a bare pointer the
// way a freestanding C allocator does.
package kheap

import (
	"github.com/Dreaded-Gnu/kernel/internal/avltree"
	"github.com/Dreaded-Gnu/kernel/kernel/errors"
	"github.com/Dreaded-Gnu/kernel/kernel/panic"
)

// FitPolicy selects which free block Alloc splits when more than one is
// large enough to satisfy a request.
type FitPolicy int

const (
	// FitLargestAddress always splits the free block with the highest
	// base address that is large enough, same as the original core's
	// unconditional avl_get_max. It is the default: cheap (O(log n) in
	// the common case, degrading to a bounded walk only when the
	// highest block is too small) and it keeps long-lived low-address
	// allocations undisturbed.
	FitLargestAddress FitPolicy = iota
	// FitFirstFit splits the first free block in ascending address
	// order that is large enough.
	FitFirstFit
	// FitBestFit splits the smallest free block that is still large
	// enough, minimizing the remainder left behind.
	FitBestFit
)

// GrowFunc is called when no free block satisfies a request. It must
// arrange at least minBytes of freshly backed, mapped address space and
// return its base and actual size (which may be larger than minBytes,
// e.g. rounded up to a page).
type GrowFunc func(minBytes uint32) (base uint32, size uint32, err error)

type block struct {
	address uint32
	size    uint32
}

// Heap is a dynamic allocator over a virtual address range the caller
// has already mapped (or can map on demand via grow).
type Heap struct {
	free *avltree.Tree[*block]
	used *avltree.Tree[*block]

	policy FitPolicy
	grow   GrowFunc
}

// New constructs an empty heap. Call AddRegion at least once (directly,
// or implicitly via grow on the first Alloc) before allocating.
func New(policy FitPolicy, grow GrowFunc) *Heap {
	return &Heap{
		free:   avltree.New[*block](),
		used:   avltree.New[*block](),
		policy: policy,
		grow:   grow,
	}
}

// AddRegion inserts [base, base+size) as a new free block. Used both for
// the heap's initial carve-out and by Alloc after a successful grow.
func (h *Heap) AddRegion(base, size uint32) {
	if size == 0 {
		return
	}
	h.insertFreeMerged(base, size)
}

// Alloc returns the address of a newly allocated block of at least size
// bytes, growing the heap (if a GrowFunc was supplied) when no existing
// free block is large enough.
func (h *Heap) Alloc(size uint32) (uint32, error) {
	if size == 0 {
		size = 1
	}

	for {
		addr, ok := h.findFit(size)
		if ok {
			return h.split(addr, size), nil
		}

		if h.grow == nil {
			return 0, errors.ErrHeapFull
		}
		base, grown, err := h.grow(size)
		if err != nil {
			return 0, err
		}
		h.AddRegion(base, grown)
	}
}

// split removes the free block at addr, carves size bytes off its low
// end into a used block, and reinserts whatever remains as a smaller
// free block.
func (h *Heap) split(addr, size uint32) uint32 {
	blk, _ := h.free.Find(addr)
	h.free.Remove(addr)

	if remaining := blk.size - size; remaining > 0 {
		h.free.Insert(addr+size, &block{address: addr + size, size: remaining})
	}

	h.used.Insert(addr, &block{address: addr, size: size})
	return addr
}

// Free returns the block at addr to the free tree, coalescing it with an
// address-adjacent free neighbor on either side.
//
// The original core's heap_free_block only ever attempts one direction
// of merge, and unconditionally panics ("PARENT!") immediately before
// reaching that merge -- so in practice freed blocks there are never
// coalesced at all. This implementation merges with both neighbors
// whenever they are contiguous, so free space does not fragment away
// under sustained alloc/free churn.
func (h *Heap) Free(addr uint32) error {
	blk, ok := h.used.Find(addr)
	if !ok {
		panic.Panicf("kheap: address %#x is not an allocated block", addr)
		return nil
	}
	h.used.Remove(addr)

	h.insertFreeMerged(blk.address, blk.size)
	return nil
}

// insertFreeMerged inserts [address, address+size) into the free tree,
// absorbing an immediately-preceding or immediately-following free block
// into the same node rather than leaving adjacent free ranges split
// across two tree entries.
func (h *Heap) insertFreeMerged(address, size uint32) {
	if pk, pv, ok := h.free.Predecessor(address); ok && pv.address+pv.size == address {
		h.free.Remove(pk)
		address = pv.address
		size += pv.size
	}
	if sk, sv, ok := h.free.Successor(address); ok && address+size == sk {
		h.free.Remove(sk)
		size += sv.size
	}
	h.free.Insert(address, &block{address: address, size: size})
}

// findFit returns the base address of a free block at least size bytes
// long, chosen according to the heap's FitPolicy.
func (h *Heap) findFit(size uint32) (uint32, bool) {
	switch h.policy {
	case FitFirstFit:
		var found uint32
		var hit bool
		h.free.Walk(func(key uint32, v *block) bool {
			if v.size >= size {
				found, hit = key, true
				return false
			}
			return true
		})
		return found, hit

	case FitBestFit:
		var found uint32
		var bestSize uint32 = ^uint32(0)
		var hit bool
		h.free.Walk(func(key uint32, v *block) bool {
			if v.size >= size && v.size < bestSize {
				found, bestSize, hit = key, v.size, true
			}
			return true
		})
		return found, hit

	default: // FitLargestAddress
		key, v, ok := h.free.Max()
		for ok {
			if v.size >= size {
				return key, true
			}
			key, v, ok = h.free.Predecessor(key)
		}
		return 0, false
	}
}

// Allocated reports whether addr names a block currently handed out by
// Alloc.
func (h *Heap) Allocated(addr uint32) bool {
	_, ok := h.used.Find(addr)
	return ok
}

// FreeBytes returns the sum of every free block's size, for diagnostics
// and tests -- not an O(1) accessor, since the trees don't keep a running
// total.
func (h *Heap) FreeBytes() uint32 {
	var total uint32
	h.free.Walk(func(_ uint32, v *block) bool {
		total += v.size
		return true
	})
	return total
}

// FreeBlockCount returns the number of distinct free blocks, for tests
// asserting on coalescing behavior.
func (h *Heap) FreeBlockCount() int {
	return h.free.Len()
}
