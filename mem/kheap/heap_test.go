package kheap_test

import (
	"testing"

	"github.com/Dreaded-Gnu/kernel/kernel/errors"
	"github.com/Dreaded-Gnu/kernel/kernel/panic"
	"github.com/Dreaded-Gnu/kernel/mem/kheap"
)

func TestAllocSplitsFreeBlock(t *testing.T) {
	h := kheap.New(kheap.FitLargestAddress, nil)
	h.AddRegion(0x1000, 0x1000)

	addr, err := h.Alloc(0x100)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if addr != 0x1000 {
		t.Fatalf("Alloc returned %x, want 0x1000", addr)
	}
	if !h.Allocated(addr) {
		t.Fatalf("Allocated(%x) = false", addr)
	}
	if got := h.FreeBytes(); got != 0x1000-0x100 {
		t.Fatalf("FreeBytes = %x, want %x", got, 0x1000-0x100)
	}
}

func TestAllocExhaustedWithoutGrowFails(t *testing.T) {
	h := kheap.New(kheap.FitLargestAddress, nil)
	h.AddRegion(0x1000, 0x10)

	_, err := h.Alloc(0x100)
	if !errors.Is(err, errors.KindHeapFull) {
		t.Fatalf("Alloc error = %v, want ErrHeapFull", err)
	}
}

func TestAllocGrowsWhenExhausted(t *testing.T) {
	grown := false
	h := kheap.New(kheap.FitLargestAddress, func(minBytes uint32) (uint32, uint32, error) {
		grown = true
		return 0x5000, 0x1000, nil
	})
	h.AddRegion(0x1000, 0x10)

	addr, err := h.Alloc(0x100)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if !grown {
		t.Fatalf("grow callback never invoked")
	}
	if addr != 0x5000 {
		t.Fatalf("Alloc returned %x, want 0x5000", addr)
	}
}

func TestFreeCoalescesBothNeighbors(t *testing.T) {
	h := kheap.New(kheap.FitFirstFit, nil)
	h.AddRegion(0x1000, 0x3000)

	a, _ := h.Alloc(0x1000)
	b, _ := h.Alloc(0x1000)
	c, _ := h.Alloc(0x1000)

	if err := h.Free(a); err != nil {
		t.Fatalf("Free(a): %v", err)
	}
	if err := h.Free(c); err != nil {
		t.Fatalf("Free(c): %v", err)
	}
	if got := h.FreeBlockCount(); got != 2 {
		t.Fatalf("FreeBlockCount after freeing a,c = %d, want 2 (not yet adjacent)", got)
	}

	if err := h.Free(b); err != nil {
		t.Fatalf("Free(b): %v", err)
	}
	if got := h.FreeBlockCount(); got != 1 {
		t.Fatalf("FreeBlockCount after freeing middle block = %d, want 1 (fully coalesced)", got)
	}
	if got := h.FreeBytes(); got != 0x3000 {
		t.Fatalf("FreeBytes after full coalesce = %x, want 0x3000", got)
	}
}

// TestFreeInvalidAddressHalts confirms INVALID_FREE is fatal: an address
// the heap never handed out must halt the kernel rather than return a
// recoverable error.
func TestFreeInvalidAddressHalts(t *testing.T) {
	var halted bool
	panic.SetHooks(func() {}, func() { halted = true })
	t.Cleanup(func() { panic.SetHooks(func() {}, func() { select {} }) })

	h := kheap.New(kheap.FitLargestAddress, nil)
	h.AddRegion(0x1000, 0x1000)

	h.Free(0x9999)

	if !halted {
		t.Fatalf("Free(0x9999) never halted via INVALID_FREE")
	}
}

func TestFitPoliciesChooseDifferentBlocks(t *testing.T) {
	setup := func(policy kheap.FitPolicy) *kheap.Heap {
		h := kheap.New(policy, nil)
		h.AddRegion(0x1000, 0x100) // small, low address
		h.AddRegion(0x2000, 0x500) // medium
		h.AddRegion(0x3000, 0x100) // small, high address
		return h
	}

	if h := setup(kheap.FitLargestAddress); true {
		addr, err := h.Alloc(0x80)
		if err != nil {
			t.Fatalf("FitLargestAddress Alloc: %v", err)
		}
		if addr != 0x3000 {
			t.Fatalf("FitLargestAddress chose %x, want 0x3000", addr)
		}
	}

	if h := setup(kheap.FitFirstFit); true {
		addr, err := h.Alloc(0x80)
		if err != nil {
			t.Fatalf("FitFirstFit Alloc: %v", err)
		}
		if addr != 0x1000 {
			t.Fatalf("FitFirstFit chose %x, want 0x1000", addr)
		}
	}

	if h := setup(kheap.FitBestFit); true {
		addr, err := h.Alloc(0x80)
		if err != nil {
			t.Fatalf("FitBestFit Alloc: %v", err)
		}
		if addr != 0x1000 {
			t.Fatalf("FitBestFit chose %x, want 0x1000 (first of the equally-small candidates)", addr)
		}
	}
}
