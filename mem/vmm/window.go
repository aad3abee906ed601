package vmm

import "github.com/Dreaded-Gnu/kernel/kernel/errors"

// Window is the transient mapping range the page-table engine uses to
// edit table frames that are not otherwise addressable from the currently
// active context: a fixed kernel VA range populated at Prepare time, whose
// own leaf table is then used by Map/Unmap to install and remove
// short-lived mappings for arbitrary physical frames.
//
// The scan for a free run mirrors the first-fit block search the teacher
// runtime uses for DMA buffers (dma/alloc.go): walk the window's own
// occupancy in page-sized units, reset the run on any occupied page.
type window struct {
	start uint32
	size  uint32

	leafFrame uint32
	occupied  []bool // one entry per PageSize-sized slot in [start, start+size)

	engine *Engine
}

const (
	// TempStart and TempSize bound the transient mapping window inside
	// the kernel area. TempSize is capped at 1MiB -- exactly the span one
	// short-descriptor L2 table can describe (256 entries * 4KiB) -- so a
	// single leaf table covers the window on either descriptor format
	// without the window needing to know which one is active.
	TempStart uint32 = 0xFF000000
	TempSize  uint32 = 0x00100000 // 1 MiB -> 256 pages
)

func newWindow(e *Engine) *window {
	return &window{
		start:    TempStart,
		size:     TempSize,
		occupied: make([]bool, TempSize/PageSize),
		engine:   e,
	}
}

func (w *window) ready() bool {
	return w.leafFrame != 0
}

// adopt registers the physical frame reserved for the window's own leaf
// table. Called once, during Engine bootstrap, before the window is used
// for anything else.
func (w *window) adopt(leafFrame uint32) {
	w.leafFrame = leafFrame
}

// Map installs a mapping for [phys, phys+size) into the first free run of
// window slots, returning the virtual address the caller should use to
// reach it. Size is rounded up to a whole number of pages.
func (w *window) Map(phys uint32, size uint32) (uint32, error) {
	pages := int((size + PageSize - 1) / PageSize)
	if pages == 0 {
		pages = 1
	}

	run := 0
	start := -1
	for i, used := range w.occupied {
		if used {
			run = 0
			start = -1
			continue
		}
		if start == -1 {
			start = i
		}
		run++
		if run == pages {
			break
		}
	}
	if start == -1 || run < pages {
		return 0, errors.ErrNoSpace
	}

	base := w.start + uint32(start)*PageSize
	for i := 0; i < pages; i++ {
		w.occupied[start+i] = true
		leafIndex := uint32(start + i)
		slotVA := base + uint32(i)*PageSize
		slotPA := phys + uint32(i)*PageSize
		w.engine.writeLeafAt(w.leafFrame, leafIndex, slotPA, Normal, ReadOnly)
		if t, ok := w.engine.hw.(WindowTranslator); ok {
			t.InstallWindowSlot(slotVA, slotPA)
		}
		w.engine.hw.InvalidateTLBEntry(slotVA)
	}

	return base, nil
}

// WindowTranslator is implemented by Hardware fakes that have no real MMU
// to resolve a window virtual address back to the physical frame it was
// mapped to. Production Hardware, backed by the actual MMU, does not need
// it: the type assertion in Map/Unmap simply finds nothing to call.
type WindowTranslator interface {
	InstallWindowSlot(vaddr, phys uint32)
	ClearWindowSlot(vaddr uint32)
}

// Unmap clears the window slots covering [vaddr, vaddr+size) and flushes
// the TLB for that range.
func (w *window) Unmap(vaddr uint32, size uint32) {
	pages := int((size + PageSize - 1) / PageSize)
	if pages == 0 {
		pages = 1
	}
	first := int((vaddr - w.start) / PageSize)

	for i := 0; i < pages; i++ {
		idx := first + i
		if idx < 0 || idx >= len(w.occupied) {
			continue
		}
		w.occupied[idx] = false
		w.engine.clearLeafAt(w.leafFrame, uint32(idx))
		slotVA := vaddr + uint32(i)*PageSize
		if t, ok := w.engine.hw.(WindowTranslator); ok {
			t.ClearWindowSlot(slotVA)
		}
		w.engine.hw.InvalidateTLBEntry(slotVA)
	}
}
