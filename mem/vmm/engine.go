package vmm

import (
	"github.com/Dreaded-Gnu/kernel/kernel/errors"
	"github.com/Dreaded-Gnu/kernel/kernel/panic"
	"github.com/Dreaded-Gnu/kernel/mem/pfn"
)

// Engine is the page-table walker: given a probed Mode it owns the
// encode/decode format for that mode and drives Map/Unmap/context
// switches against a Hardware implementation. It never allocates a
// virtual address itself (that is the facade's job, mem/vmm's C3 layer);
// it only installs or removes the descriptor for an address the caller
// already chose.
type Engine struct {
	mode Mode
	fmt  format
	hw   Hardware
	alloc *pfn.Allocator

	window *window
	active *Context

	// bootstrap is true only during the first pass of Prepare, while the
	// engine is still establishing the permanently identity-mapped low
	// RAM region the window's own leaf table lives in. Table memory
	// touched while bootstrap is true is addressed directly by physical
	// address instead of through the window.
	bootstrap bool
}

// New constructs an Engine for the given probed mode. alloc supplies
// frames for new tables; hw carries out the actual reads/writes and
// maintenance operations.
func New(mode Mode, hw Hardware, alloc *pfn.Allocator) *Engine {
	e := &Engine{
		mode:  mode,
		fmt:   formatFor(mode),
		hw:    hw,
		alloc: alloc,
	}
	e.window = newWindow(e)
	return e
}

// Prepare reserves the transient mapping window's own leaf table and
// wires it into kernelCtx as the leaf-level table for the window's
// virtual range, so ordinary address translation resolves window
// addresses exactly like any other kernel mapping. It must run once,
// after kernelCtx exists and before any other Map/Unmap call, while low
// RAM is still reachable by physical address 1:1 (true immediately after
// boot).
func (e *Engine) Prepare(kernelCtx *Context) error {
	e.bootstrap = true
	defer func() { e.bootstrap = false }()

	frame, err := e.alloc.FindFree(PageSize)
	if err != nil {
		return err
	}
	e.zeroFrameDirect(frame)
	e.linkLeafTable(kernelCtx, TempStart, frame)
	e.window.adopt(frame)
	return nil
}

// linkLeafTable installs tableFrame as the leaf-level table covering
// vaddr's region in ctx, creating intermediate tables as needed. Unlike
// walk, it never writes a leaf descriptor itself: the frame it links in
// is a whole table that the caller (here, the window) populates leaf by
// leaf afterwards.
func (e *Engine) linkLeafTable(ctx *Context, vaddr, tableFrame uint32) {
	frame := ctx.table
	levels := len(e.fmt.levelBits)

	for level := 0; level < levels-1; level++ {
		idx := e.index(vaddr, level)

		if level == levels-2 {
			e.writeEntry(frame, idx, e.fmt.encodeTable(tableFrame))
			e.hw.DataSynchronizationBarrier()
			return
		}

		words := e.readEntry(frame, idx)
		child, ok := e.fmt.decodeTable(words)
		if !ok {
			var err error
			child, err = e.alloc.FindFree(PageSize)
			if err != nil {
				panic.Panicf("vmm: out of frames preparing transient window")
			}
			e.zeroFrame(child, e.tableBytes(level+1))
			e.writeEntry(frame, idx, e.fmt.encodeTable(child))
			e.hw.DataSynchronizationBarrier()
		}
		frame = child
	}
}

// CreateContext allocates a fresh, zeroed top-level table for the given
// kind.
func (e *Engine) CreateContext(kind Kind) (*Context, error) {
	frame, err := e.alloc.FindFree(PageSize)
	if err != nil {
		return nil, err
	}
	e.zeroFrame(frame, e.tableBytes(0))
	return &Context{kind: kind, table: frame}, nil
}

// DestroyContext releases every table frame reachable from ctx, including
// its root, then frees the root itself. Leaf target frames (the mapped
// physical memory, as opposed to the tables describing it) are left
// alone: freeing those is the caller's responsibility since the engine
// does not track ownership of mapped memory.
func (e *Engine) DestroyContext(ctx *Context) {
	e.freeSubtree(ctx.table, 0)
}

func (e *Engine) freeSubtree(frame uint32, level int) {
	if level == len(e.fmt.levelBits)-1 {
		e.alloc.MarkFree(frame)
		return
	}
	entries := numEntries(e.fmt.levelBits[level])
	for i := uint32(0); i < entries; i++ {
		words := e.readEntry(frame, i)
		child, present := e.fmt.decodeTable(words)
		if !present {
			continue
		}
		e.freeSubtree(child, level+1)
	}
	e.alloc.MarkFree(frame)
}

// SetContext installs ctx's root table into the hardware register that
// owns its Kind (TTBR0 for User, TTBR1 for Kernel, on every mode; TTBCR
// is not written here), then invalidates the
// TLB and I-cache and issues an instruction barrier — the mandatory
// ordering after any context switch.
func (e *Engine) SetContext(ctx *Context) {
	if ctx.kind == Kernel {
		e.hw.WriteTTBR1(ctx.table)
	} else {
		e.hw.WriteTTBR0(ctx.table)
	}
	ctx.live = true
	e.active = ctx

	e.hw.InvalidateTLB()
	e.hw.InvalidateICache()
	e.hw.InstructionSynchronizationBarrier()
}

// FlushComplete invalidates the entire TLB and I-cache. Used after a bulk
// change (e.g. the facade's Init pass) rather than address-by-address.
func (e *Engine) FlushComplete() {
	e.hw.InvalidateTLB()
	e.hw.InvalidateICache()
	e.hw.InstructionSynchronizationBarrier()
}

// FlushAddress invalidates the TLB entry for a single virtual address,
// the cheaper alternative to FlushComplete after a single Map/Unmap.
func (e *Engine) FlushAddress(vaddr uint32) {
	e.hw.InvalidateTLBEntry(vaddr)
}

// IsMapped reports whether ctx has a present leaf entry for vaddr.
func (e *Engine) IsMapped(ctx *Context, vaddr uint32) bool {
	_, _, present := e.walk(ctx, vaddr, false)
	return present
}

// IsMappedRange reports whether every page in [vaddr, vaddr+size) is
// mapped in ctx.
func (e *Engine) IsMappedRange(ctx *Context, vaddr, size uint32) bool {
	start := vaddr &^ (PageSize - 1)
	end := roundUpPage(vaddr + size)
	for a := start; a < end; a += PageSize {
		if !e.IsMapped(ctx, a) {
			return false
		}
	}
	return true
}

// Map installs a leaf entry translating vaddr to paddr in ctx, creating
// any missing intermediate tables along the way. Returns ErrAlreadyMapped
// if a leaf entry is already present.
func (e *Engine) Map(ctx *Context, vaddr, paddr uint32, memType MemType, flags PageFlags) error {
	if flags.has(Auto) {
		flags = e.autoFlags(ctx.kind, flags)
	}

	leafFrame, index, present := e.walk(ctx, vaddr, true)
	if present {
		return errors.ErrAlreadyMapped
	}

	e.writeEntry(leafFrame, index, e.fmt.encodeLeaf(paddr, memType, flags))
	e.hw.DataSynchronizationBarrier()

	if ctx.live {
		e.FlushAddress(vaddr)
	}
	return nil
}

// Unmap clears the leaf entry for vaddr in ctx. Returns ErrNotMapped if
// no leaf entry is present; the empty intermediate tables left behind
// are never reclaimed (a deliberate simplification: a table frame is
// cheap, and eagerly pruning it would require reference-counting every
// entry).
func (e *Engine) Unmap(ctx *Context, vaddr uint32) error {
	leafFrame, index, present := e.walk(ctx, vaddr, false)
	if !present {
		return errors.ErrNotMapped
	}

	e.clearEntry(leafFrame, index)
	e.hw.DataSynchronizationBarrier()

	if ctx.live {
		e.FlushAddress(vaddr)
	}
	return nil
}

// Translate returns the physical address backing vaddr in ctx, and
// whether a leaf entry is present at all.
func (e *Engine) Translate(ctx *Context, vaddr uint32) (paddr uint32, present bool) {
	leafFrame, index, present := e.walk(ctx, vaddr, false)
	if !present {
		return 0, false
	}
	words := e.readEntry(leafFrame, index)
	p, ok, _, _ := e.fmt.decodeLeaf(words)
	return p, ok
}

func (e *Engine) autoFlags(kind Kind, flags PageFlags) PageFlags {
	flags &^= Auto
	if kind == Kernel {
		flags |= Shared
	}
	return flags
}

// walk descends ctx's table hierarchy to the leaf entry for vaddr,
// returning the frame holding that entry and the index within it.
// present reports whether a leaf descriptor is currently installed there.
// When create is true, missing intermediate tables are allocated and
// zeroed as the walk descends; when false, a missing intermediate table
// means "not mapped" and the walk stops early with present=false and an
// undefined leafFrame/index (callers must check present before MUST use
// the other results).
func (e *Engine) walk(ctx *Context, vaddr uint32, create bool) (leafFrame uint32, index uint32, present bool) {
	frame := ctx.table
	levels := len(e.fmt.levelBits)

	for level := 0; level < levels; level++ {
		idx := e.index(vaddr, level)

		if level == levels-1 {
			words := e.readEntry(frame, idx)
			paddr, ok, _, _ := e.fmt.decodeLeaf(words)
			_ = paddr
			return frame, idx, ok
		}

		words := e.readEntry(frame, idx)
		child, ok := e.fmt.decodeTable(words)
		if !ok {
			if !create {
				return 0, 0, false
			}
			var err error
			child, err = e.alloc.FindFree(PageSize)
			if err != nil {
				panic.Panicf("vmm: out of frames creating table at level %d", level)
			}
			e.zeroFrame(child, e.tableBytes(level+1))
			e.writeEntry(frame, idx, e.fmt.encodeTable(child))
			e.hw.DataSynchronizationBarrier()
		}
		frame = child
	}

	return 0, 0, false
}

// index computes the table index vaddr selects at the given walk level
// (0 = root, len(levelBits)-1 = leaf).
func (e *Engine) index(vaddr uint32, level int) uint32 {
	shift := uint32(12)
	for i := len(e.fmt.levelBits) - 1; i > level; i-- {
		shift += uint32(e.fmt.levelBits[i])
	}
	mask := numEntries(e.fmt.levelBits[level]) - 1
	return (vaddr >> shift) & mask
}

func (e *Engine) tableBytes(level int) uint32 {
	return numEntries(e.fmt.levelBits[level]) * uint32(e.fmt.entryWords) * 4
}

func numEntries(bits int) uint32 {
	return 1 << uint(bits)
}

func roundUpPage(v uint32) uint32 {
	return (v + PageSize - 1) &^ (PageSize - 1)
}

// --- table-memory access ---------------------------------------------------
//
// Every table frame other than the window's own leaf table is reached
// through the transient window while the window is ready; before it is
// (Prepare's bootstrap pass), frames are touched directly, which is only
// valid because Prepare runs against frames the board's early boot
// sequence still maps 1:1.

func (e *Engine) readEntry(frame, index uint32) []uint32 {
	words := make([]uint32, e.fmt.entryWords)
	e.withFrame(frame, func(base uint32) {
		off := index * uint32(e.fmt.entryWords) * 4
		for i := range words {
			words[i] = e.hw.Read32(base + off + uint32(i)*4)
		}
	})
	return words
}

func (e *Engine) writeEntry(frame, index uint32, words []uint32) {
	e.withFrame(frame, func(base uint32) {
		off := index * uint32(e.fmt.entryWords) * 4
		for i, w := range words {
			e.hw.Write32(base+off+uint32(i)*4, w)
		}
	})
}

func (e *Engine) clearEntry(frame, index uint32) {
	zero := make([]uint32, e.fmt.entryWords)
	e.writeEntry(frame, index, zero)
}

func (e *Engine) zeroFrame(frame uint32, bytes uint32) {
	e.withFrame(frame, func(base uint32) {
		for off := uint32(0); off < bytes; off += 4 {
			e.hw.Write32(base+off, 0)
		}
	})
}

// zeroFrameDirect zeroes a frame by physical address without consulting
// the window; only valid for the window's own leaf table during Prepare.
func (e *Engine) zeroFrameDirect(frame uint32) {
	for off := uint32(0); off < e.tableBytes(len(e.fmt.levelBits)-1); off += 4 {
		e.hw.Write32(frame+off, 0)
	}
}

func (e *Engine) withFrame(frame uint32, fn func(base uint32)) {
	if e.bootstrap || e.window == nil || !e.window.ready() {
		fn(frame)
		return
	}
	va, err := e.window.Map(frame, PageSize)
	if err != nil {
		panic.Panicf("vmm: transient window exhausted mapping frame 0x%x", frame)
	}
	fn(va)
	e.window.Unmap(va, PageSize)
}

// writeLeafAt and clearLeafAt install or clear a single leaf descriptor
// directly in the window's own leaf table, addressed by physical frame
// (never through the window itself: the window's leaf table is the one
// structure the window cannot be used to reach).
func (e *Engine) writeLeafAt(leafFrame, index uint32, paddr uint32, memType MemType, flags PageFlags) {
	words := e.fmt.encodeLeaf(paddr, memType, flags)
	off := index * uint32(e.fmt.entryWords) * 4
	for i, w := range words {
		e.hw.Write32(leafFrame+off+uint32(i)*4, w)
	}
	e.hw.DataSynchronizationBarrier()
}

func (e *Engine) clearLeafAt(leafFrame, index uint32) {
	off := index * uint32(e.fmt.entryWords) * 4
	for i := 0; i < e.fmt.entryWords; i++ {
		e.hw.Write32(leafFrame+off+uint32(i)*4, 0)
	}
	e.hw.DataSynchronizationBarrier()
}
