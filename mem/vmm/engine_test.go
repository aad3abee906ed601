package vmm_test

import (
	"testing"

	"github.com/Dreaded-Gnu/kernel/internal/hosttest"
	"github.com/Dreaded-Gnu/kernel/kernel/errors"
	"github.com/Dreaded-Gnu/kernel/mem/pfn"
	"github.com/Dreaded-Gnu/kernel/mem/vmm"
)

const testRAM = 8 * 1024 * 1024

func newEngine(t *testing.T) (*vmm.Engine, *pfn.Allocator, *hosttest.Hardware) {
	t.Helper()

	mem, err := hosttest.NewMemory(testRAM)
	if err != nil {
		t.Fatalf("NewMemory: %v", err)
	}
	t.Cleanup(func() { mem.Close() })

	hw := hosttest.NewHardware(mem)
	alloc := pfn.New(testRAM, nil)
	alloc.Init(0x10000) // reserve a placement area for the engine's own tables

	e := vmm.New(vmm.ModeV7LPAE, hw, alloc)
	ctx, err := e.CreateContext(vmm.Kernel)
	if err != nil {
		t.Fatalf("CreateContext: %v", err)
	}
	if err := e.Prepare(ctx); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	e.SetContext(ctx)
	return e, alloc, hw
}

// Map then Unmap of the same address leaves it unmapped again: the
// round-trip property every map/unmap pair must satisfy.
func TestMapUnmapRoundTrip(t *testing.T) {
	e, alloc, _ := newEngine(t)

	ctx, err := e.CreateContext(vmm.Kernel)
	if err != nil {
		t.Fatalf("CreateContext: %v", err)
	}

	phys, err := alloc.FindFree(vmm.PageSize)
	if err != nil {
		t.Fatalf("FindFree: %v", err)
	}

	vaddr := vmm.KernelAreaStart + 0x10000000
	if e.IsMapped(ctx, vaddr) {
		t.Fatalf("fresh context reports %x already mapped", vaddr)
	}

	if err := e.Map(ctx, vaddr, phys, vmm.Normal, vmm.ReadOnly); err != nil {
		t.Fatalf("Map: %v", err)
	}
	if !e.IsMapped(ctx, vaddr) {
		t.Fatalf("Map succeeded but IsMapped reports false")
	}

	got, ok := e.Translate(ctx, vaddr)
	if !ok || got != phys {
		t.Fatalf("Translate = (%x, %v), want (%x, true)", got, ok, phys)
	}

	if err := e.Unmap(ctx, vaddr); err != nil {
		t.Fatalf("Unmap: %v", err)
	}
	if e.IsMapped(ctx, vaddr) {
		t.Fatalf("IsMapped still true after Unmap")
	}
}

// Mapping an already-mapped address fails with ErrAlreadyMapped and does
// not disturb the existing translation.
func TestMapAlreadyMapped(t *testing.T) {
	e, alloc, _ := newEngine(t)
	ctx, _ := e.CreateContext(vmm.Kernel)

	phys1, _ := alloc.FindFree(vmm.PageSize)
	phys2, _ := alloc.FindFree(vmm.PageSize)
	vaddr := vmm.KernelAreaStart + 0x20000000

	if err := e.Map(ctx, vaddr, phys1, vmm.Normal, vmm.ReadOnly); err != nil {
		t.Fatalf("first Map: %v", err)
	}
	err := e.Map(ctx, vaddr, phys2, vmm.Normal, vmm.ReadOnly)
	if !errors.Is(err, errors.KindAlreadyMapped) {
		t.Fatalf("second Map error = %v, want ErrAlreadyMapped", err)
	}

	got, _ := e.Translate(ctx, vaddr)
	if got != phys1 {
		t.Fatalf("translation changed after rejected remap: got %x, want %x", got, phys1)
	}
}

// Unmapping an address that was never mapped fails with ErrNotMapped.
func TestUnmapNotMapped(t *testing.T) {
	e, _, _ := newEngine(t)
	ctx, _ := e.CreateContext(vmm.Kernel)

	err := e.Unmap(ctx, vmm.KernelAreaStart+0x300000)
	if !errors.Is(err, errors.KindNotMapped) {
		t.Fatalf("Unmap error = %v, want ErrNotMapped", err)
	}
}

// Two contexts are isolated: a mapping installed in one is invisible from
// the other, even at the identical virtual address.
func TestContextIsolation(t *testing.T) {
	e, alloc, _ := newEngine(t)

	a, _ := e.CreateContext(vmm.User)
	b, _ := e.CreateContext(vmm.User)

	phys, _ := alloc.FindFree(vmm.PageSize)
	vaddr := vmm.UserAreaStart + 0x1000

	if err := e.Map(a, vaddr, phys, vmm.Normal, vmm.ReadOnly); err != nil {
		t.Fatalf("Map into a: %v", err)
	}

	if e.IsMapped(b, vaddr) {
		t.Fatalf("mapping in context a leaked into context b")
	}
	if !e.IsMapped(a, vaddr) {
		t.Fatalf("mapping vanished from context a")
	}
}

// SetContext issues exactly one TLB invalidate, one I-cache invalidate,
// and one instruction barrier per switch -- the fixed ordering rule after
// any context change.
func TestSetContextFlushOrdering(t *testing.T) {
	e, _, hw := newEngine(t)
	ctx, _ := e.CreateContext(vmm.Kernel)

	before := hw.TLBFlushes
	e.SetContext(ctx)

	if hw.TLBFlushes != before+1 {
		t.Fatalf("TLBFlushes = %d, want %d", hw.TLBFlushes, before+1)
	}
	if hw.ICacheFlushes == 0 {
		t.Fatalf("ICacheFlushes = 0, want > 0")
	}
	if hw.ISBCount == 0 {
		t.Fatalf("ISBCount = 0, want > 0")
	}
	if hw.TTBR1 != ctx.Table() {
		t.Fatalf("TTBR1 = %x, want %x", hw.TTBR1, ctx.Table())
	}
}

// DestroyContext frees every table frame reachable from the root, but
// leaves mapped target frames alone.
func TestDestroyContextFreesTableFrames(t *testing.T) {
	e, alloc, _ := newEngine(t)
	ctx, _ := e.CreateContext(vmm.User)

	target, _ := alloc.FindFree(vmm.PageSize)
	vaddr := vmm.UserAreaStart + 0x2000
	if err := e.Map(ctx, vaddr, target, vmm.Normal, vmm.ReadOnly); err != nil {
		t.Fatalf("Map: %v", err)
	}

	root := ctx.Table()
	e.DestroyContext(ctx)

	if alloc.IsUsed(root) {
		t.Fatalf("DestroyContext left the root table frame %x marked used", root)
	}

	// The target frame was never owned by the engine, so it must remain
	// marked used in the allocator: destroying the context only releases
	// the tables describing the mapping, not the memory it pointed at.
	if !alloc.IsUsed(target) {
		t.Fatalf("DestroyContext freed the mapped target frame")
	}
}
