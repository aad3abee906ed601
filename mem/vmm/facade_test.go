package vmm_test

import (
	"testing"

	"github.com/Dreaded-Gnu/kernel/internal/hosttest"
	"github.com/Dreaded-Gnu/kernel/mem/pfn"
	"github.com/Dreaded-Gnu/kernel/mem/vmm"
)

func newFacade(t *testing.T) (*vmm.Facade, *pfn.Allocator) {
	t.Helper()

	mem, err := hosttest.NewMemory(testRAM)
	if err != nil {
		t.Fatalf("NewMemory: %v", err)
	}
	t.Cleanup(func() { mem.Close() })

	hw := hosttest.NewHardware(mem)
	alloc := pfn.New(testRAM, nil)
	alloc.Init(0x10000)

	e := vmm.New(vmm.ModeV7LPAE, hw, alloc)
	f := vmm.NewFacade(e, alloc)
	if err := f.Init(0x10000); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return f, alloc
}

// Init leaves the identity and higher-half ranges mapped and the kernel
// context active, satisfying end-to-end scenario S2 (boot brings up the
// kernel's own address space before anything else runs).
func TestFacadeInitMapsIdentityAndHigherHalf(t *testing.T) {
	f, _ := newFacade(t)
	ctx := f.KernelContext()

	addr := uint32(0x4000)
	if !f.IsMapped(ctx, addr) {
		t.Fatalf("identity address %x not mapped after Init", addr)
	}
	if !f.IsMapped(ctx, vmm.KernelAreaStart+addr) {
		t.Fatalf("higher-half address %x not mapped after Init", vmm.KernelAreaStart+addr)
	}

	paddr, ok := f.Translate(ctx, vmm.KernelAreaStart+addr)
	if !ok || paddr != addr {
		t.Fatalf("Translate(higher-half %x) = (%x, %v), want (%x, true)", vmm.KernelAreaStart+addr, paddr, ok, addr)
	}
}

// MapRange installs a contiguous run and marks the backing frames used;
// remapping the same range fails outright rather than silently
// succeeding over the existing mapping.
func TestMapRangeAllOrNothing(t *testing.T) {
	f, alloc := newFacade(t)
	ctx := f.KernelContext()

	phys, err := alloc.FindFree(0)
	if err != nil {
		t.Fatalf("FindFree: %v", err)
	}
	size := uint32(4 * vmm.PageSize)
	vaddr := vmm.KernelAreaStart + 0x30000000

	if err := f.MapRange(ctx, vaddr, phys, size, vmm.Normal, vmm.ReadOnly); err != nil {
		t.Fatalf("MapRange: %v", err)
	}

	for i := uint32(0); i < 4; i++ {
		if !alloc.IsUsed(phys + i*vmm.PageSize) {
			t.Fatalf("frame %d of mapped range not marked used", i)
		}
		if !f.IsMapped(ctx, vaddr+i*vmm.PageSize) {
			t.Fatalf("page %d of mapped range not mapped", i)
		}
	}

	if err := f.MapRange(ctx, vaddr, phys, size, vmm.Normal, vmm.ReadOnly); err == nil {
		t.Fatalf("remapping an already-mapped range succeeded")
	}

	// The failed remap attempt must not have disturbed the original
	// mapping.
	for i := uint32(0); i < 4; i++ {
		if !f.IsMapped(ctx, vaddr+i*vmm.PageSize) {
			t.Fatalf("page %d unmapped by failed remap attempt", i)
		}
	}
}

// UnmapRange is idempotent: calling it twice, or on a range with gaps,
// never errors or panics, and leaves every page unmapped.
func TestUnmapRangeIdempotent(t *testing.T) {
	f, alloc := newFacade(t)
	ctx := f.KernelContext()

	phys, _ := alloc.FindFree(0)
	size := uint32(2 * vmm.PageSize)
	vaddr := vmm.KernelAreaStart + 0x31000000

	if err := f.MapRange(ctx, vaddr, phys, size, vmm.Normal, vmm.ReadOnly); err != nil {
		t.Fatalf("MapRange: %v", err)
	}

	f.UnmapRange(ctx, vaddr, size)
	f.UnmapRange(ctx, vaddr, size) // must not panic on an already-unmapped range

	if f.IsMapped(ctx, vaddr) || f.IsMapped(ctx, vaddr+vmm.PageSize) {
		t.Fatalf("UnmapRange left a page mapped")
	}
}

// FindFreeRange returns disjoint runs on successive calls and never
// reports a range overlapping one already handed out.
func TestFindFreeRangeDisjoint(t *testing.T) {
	f, _ := newFacade(t)
	ctx := f.KernelContext()

	first, err := f.FindFreeRange(ctx, 4)
	if err != nil {
		t.Fatalf("FindFreeRange: %v", err)
	}

	if err := f.MapRange(ctx, first, 0x100000, 4*vmm.PageSize, vmm.Normal, vmm.ReadOnly); err != nil {
		t.Fatalf("MapRange: %v", err)
	}

	second, err := f.FindFreeRange(ctx, 4)
	if err != nil {
		t.Fatalf("FindFreeRange (second): %v", err)
	}
	if second >= first && second < first+4*vmm.PageSize {
		t.Fatalf("second free range %x overlaps first %x", second, first)
	}
}

// MapRangeRandom maps independently-sourced frames into one contiguous
// virtual run; the backing frames need not be contiguous themselves.
func TestMapRangeRandom(t *testing.T) {
	f, _ := newFacade(t)
	ctx := f.KernelContext()

	vaddr, err := f.FindFreeRange(ctx, 3)
	if err != nil {
		t.Fatalf("FindFreeRange: %v", err)
	}

	if err := f.MapRangeRandom(ctx, vaddr, 3*vmm.PageSize, vmm.Normal, vmm.ReadOnly); err != nil {
		t.Fatalf("MapRangeRandom: %v", err)
	}

	for i := uint32(0); i < 3; i++ {
		va := vaddr + i*vmm.PageSize
		if !f.IsMapped(ctx, va) {
			t.Fatalf("page %d of random range not mapped", i)
		}
	}
}
