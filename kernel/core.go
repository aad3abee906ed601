// Package kernel aggregates the memory and dispatch core's components
// into the single object the boot trampoline constructs once and the
// rest of the system reaches through: the frame allocator, the virtual
// memory facade, the kernel heap, and the interrupt/event dispatch
// fabric, wired to one board.Platform and one critical-section
// discipline.
//
// There is no teacher equivalent of a single aggregate struct -- tamago
// wires its SoC packages through global vars and go:linkname, and the
// original core wires its managers through static globals in kernel.c.
// Core plays the same role (one constructed-once object the rest of the
// kernel reaches through) without either's global-state style, since Go
// has no use for the indirection tamago's linkname trick exists to work
// around.
package kernel

import (
	"github.com/Dreaded-Gnu/kernel/board"
	"github.com/Dreaded-Gnu/kernel/event"
	"github.com/Dreaded-Gnu/kernel/irq"
	"github.com/Dreaded-Gnu/kernel/kernel/ksync"
	"github.com/Dreaded-Gnu/kernel/kernel/panic"
	"github.com/Dreaded-Gnu/kernel/mem/kheap"
	"github.com/Dreaded-Gnu/kernel/mem/pfn"
	"github.com/Dreaded-Gnu/kernel/mem/vmm"
)

// Core is the constructed-once kernel object: one frame allocator, one
// virtual memory facade, one heap, one interrupt controller and one
// event bus, all sharing the platform's facts and the critical-section
// discipline.
type Core struct {
	Platform board.Platform

	Frames *pfn.Allocator
	VMM    *vmm.Facade
	Heap   *kheap.Heap
	IRQ    *irq.Controller
	Events *event.Bus

	cs       *ksync.Section
	heapNext uint32
}

// New constructs a Core against a platform and a probed MMU mode. hw
// drives the page-table engine; masker drives the critical-section
// helper and the panic path's interrupt mask -- on real hardware both
// are the same arm.CPU value, since it implements both interfaces;
// hosted tests pass separate fakes.
func New(platform board.Platform, hw vmm.Hardware, masker ksync.Masker, mode vmm.Mode) *Core {
	cs := ksync.NewSection(masker)

	frames := pfn.New(platform.RAMSize(), cs)
	engine := vmm.New(mode, hw, frames)

	c := &Core{
		Platform: platform,
		Frames:   frames,
		VMM:      vmm.NewFacade(engine, frames),
		IRQ:      irq.New(board.ValidateIRQ(platform)),
		Events:   event.New(),
		cs:       cs,
	}

	panic.SetHooks(masker.DisableInterrupts, nil)
	return c
}

// Boot brings the core up to the point the rest of the kernel can
// allocate memory and register interrupt handlers: reserves everything
// below placementEnd in the frame allocator, builds the kernel page
// table context (identity- and higher-half-mapping the boot image),
// activates it, and installs a heap whose GrowFunc pulls freshly mapped
// pages from the kernel area immediately above the boot image.
func (c *Core) Boot(placementEnd uint32, heapPolicy kheap.FitPolicy) error {
	c.Frames.Init(placementEnd)

	if err := c.VMM.Init(placementEnd); err != nil {
		return err
	}

	c.heapNext = vmm.KernelAreaStart + roundUpPage(placementEnd)
	c.Heap = kheap.New(heapPolicy, c.growHeap)
	return nil
}

// growHeap is the kernel heap's GrowFunc: it maps minBytes (rounded up
// to whole pages, backed by independently allocated frames since the
// heap area has no contiguity requirement) at the next unused kernel
// virtual address and advances that watermark, matching the original
// core's "ask the VMM for more pages" heap-growth path.
func (c *Core) growHeap(minBytes uint32) (base uint32, size uint32, err error) {
	size = roundUpPage(minBytes)
	base = c.heapNext

	if err = c.VMM.MapRangeRandom(c.VMM.KernelContext(), base, size, vmm.Normal, vmm.Auto); err != nil {
		return 0, 0, err
	}

	c.heapNext += size
	return base, size, nil
}

// Dispatch runs a full event-bus drain followed by nothing else --
// exposed mainly so a caller need not import both irq and event to
// service pending work after an interrupt. The interrupt vector itself
// calls IRQ.Handle directly, not through Core.
func (c *Core) Dispatch() {
	c.Events.Handle()
}

// Critical runs fn with interrupts masked, exposing the core's single
// critical-section helper to callers outside mem/pfn (the only component
// that takes it at construction) that need the same discipline (e.g. the heap, whose trees are not
// otherwise protected against a concurrent interrupt-context allocator
// call).
func (c *Core) Critical(fn func()) {
	c.cs.Do(fn)
}

func roundUpPage(v uint32) uint32 {
	if v%vmm.PageSize == 0 {
		return v
	}
	return v + (vmm.PageSize - v%vmm.PageSize)
}
