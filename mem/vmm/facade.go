package vmm

import (
	"github.com/Dreaded-Gnu/kernel/kernel/errors"
	"github.com/Dreaded-Gnu/kernel/mem/pfn"
)

// Facade is the C3 layer: range-level operations built on top of the
// Engine's single-page Map/Unmap, plus the one-time boot sequence that
// brings the kernel context up.
type Facade struct {
	engine *Engine
	alloc  *pfn.Allocator

	kernelCtx *Context
	userCtx   map[*Context]bool

	initialised bool
}

// NewFacade constructs a Facade around an already-constructed Engine.
func NewFacade(engine *Engine, alloc *pfn.Allocator) *Facade {
	return &Facade{
		engine:  engine,
		alloc:   alloc,
		userCtx: make(map[*Context]bool),
	}
}

// Init brings the kernel context up: identity-maps [0, placementEnd) so
// the kernel can keep executing at its physical load address while
// higher-half mappings come online, mirrors that same range at
// KernelAreaStart (the higher-half jump), prepares the transient window,
// and activates the kernel context. placementEnd is the first byte past
// everything the bootstrap placement allocator (kernel image, initial
// page tables, initrd) has claimed.
func (f *Facade) Init(placementEnd uint32) error {
	ctx, err := f.engine.CreateContext(Kernel)
	if err != nil {
		return err
	}
	f.kernelCtx = ctx

	if err := f.engine.Prepare(ctx); err != nil {
		return err
	}

	for phys := uint32(0); phys < placementEnd; phys += PageSize {
		if err := f.engine.Map(ctx, phys, phys, Normal, Executable); err != nil && !errors.Is(err, errors.KindAlreadyMapped) {
			return err
		}
		higherHalf := KernelAreaStart + phys
		if err := f.engine.Map(ctx, higherHalf, phys, Normal, Executable); err != nil && !errors.Is(err, errors.KindAlreadyMapped) {
			return err
		}
	}

	f.engine.SetContext(ctx)
	f.engine.FlushComplete()
	f.initialised = true
	return nil
}

// KernelContext returns the facade's kernel context, valid after Init.
func (f *Facade) KernelContext() *Context {
	return f.kernelCtx
}

// NewUserContext allocates a fresh user context and tracks it for
// DestroyContext bookkeeping.
func (f *Facade) NewUserContext() (*Context, error) {
	ctx, err := f.engine.CreateContext(User)
	if err != nil {
		return nil, err
	}
	f.userCtx[ctx] = true
	return ctx, nil
}

// DestroyContext tears down a user context created by NewUserContext.
func (f *Facade) DestroyContext(ctx *Context) {
	f.engine.DestroyContext(ctx)
	delete(f.userCtx, ctx)
}

// MapRange marks [phys, phys+size) used in the frame allocator and maps
// it contiguously starting at vaddr. On partial failure (a page within
// the range is already mapped) it unmaps everything it had already
// installed and returns the error: the range is all-or-nothing.
func (f *Facade) MapRange(ctx *Context, vaddr, phys, size uint32, memType MemType, flags PageFlags) error {
	pages := pageCount(size)

	f.alloc.UseRange(phys, size)

	for i := uint32(0); i < pages; i++ {
		va := vaddr + i*PageSize
		pa := phys + i*PageSize
		if err := f.engine.Map(ctx, va, pa, memType, flags); err != nil {
			for j := uint32(0); j < i; j++ {
				f.engine.Unmap(ctx, vaddr+j*PageSize)
			}
			f.alloc.FreeRange(phys, size)
			return err
		}
	}
	return nil
}

// MapRangeRandom maps pages independently allocated from the frame
// allocator into the contiguous virtual run [vaddr, vaddr+size). Unlike
// MapRange, the backing physical frames need not be contiguous.
func (f *Facade) MapRangeRandom(ctx *Context, vaddr, size uint32, memType MemType, flags PageFlags) error {
	pages := pageCount(size)
	acquired := make([]uint32, 0, pages)

	rollback := func() {
		for i, pa := range acquired {
			f.engine.Unmap(ctx, vaddr+uint32(i)*PageSize)
			f.alloc.MarkFree(pa)
		}
	}

	for i := uint32(0); i < pages; i++ {
		pa, err := f.alloc.FindFree(PageSize)
		if err != nil {
			rollback()
			return err
		}
		f.alloc.MarkUsed(pa)

		va := vaddr + i*PageSize
		if err := f.engine.Map(ctx, va, pa, memType, flags); err != nil {
			f.alloc.MarkFree(pa)
			rollback()
			return err
		}
		acquired = append(acquired, pa)
	}
	return nil
}

// UnmapRange clears every leaf mapping in [vaddr, vaddr+size), skipping
// pages that are already unmapped rather than failing on the first gap:
// the operation is idempotent, since callers may re-invoke it on a range
// that partially unwound already.
func (f *Facade) UnmapRange(ctx *Context, vaddr, size uint32) {
	pages := pageCount(size)
	for i := uint32(0); i < pages; i++ {
		va := vaddr + i*PageSize
		if err := f.engine.Unmap(ctx, va); err != nil {
			continue
		}
	}
}

// FindFreeRange scans ctx's address area for the first unmapped run of
// `pages` contiguous pages and returns its base virtual address.
func (f *Facade) FindFreeRange(ctx *Context, pages uint32) (uint32, error) {
	min, max := AreaFor(ctx.kind)

	run := uint32(0)
	start := uint32(0)
	started := false

	for va := min; ; va += PageSize {
		if !f.engine.IsMapped(ctx, va) {
			if !started {
				start = va
				started = true
			}
			run++
			if run == pages {
				return start, nil
			}
		} else {
			run = 0
			started = false
		}

		if va >= max-PageSize {
			break
		}
	}
	return 0, errors.ErrNoSpace
}

// IsMapped reports whether vaddr has a present leaf entry in ctx.
func (f *Facade) IsMapped(ctx *Context, vaddr uint32) bool {
	return f.engine.IsMapped(ctx, vaddr)
}

// Translate returns the physical address vaddr currently resolves to in
// ctx, and whether it is mapped at all.
func (f *Facade) Translate(ctx *Context, vaddr uint32) (uint32, bool) {
	return f.engine.Translate(ctx, vaddr)
}

func pageCount(size uint32) uint32 {
	return (size + PageSize - 1) / PageSize
}
