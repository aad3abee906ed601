package pfn

import (
	"github.com/Dreaded-Gnu/kernel/kernel/errors"
	"github.com/Dreaded-Gnu/kernel/kernel/ksync"
)

// Allocator is a bitmap-backed physical frame allocator. If a critical
// section was supplied at construction, every exported method except Init
// enters it for the whole duration of its bitmap edit or scan rather than
// per bit; Init does not enter it.
type Allocator struct {
	bitmap bitmap
	cs     *ksync.Section
}

// New creates an allocator sized to cover ramBytes of physical RAM. cs may
// be nil in hosted tests that don't model interrupt masking.
func New(ramBytes uint32, cs *ksync.Section) *Allocator {
	frameCount := int((ramBytes + PageSize - 1) / PageSize)
	return &Allocator{
		bitmap: newBitmap(frameCount),
		cs:     cs,
	}
}

// Init marks every frame below placementAddress (rounded up to a frame
// boundary) as used. Must run before the first FindFree/FindFreeRange
// call; the vendor layer then adds platform-reserved regions via
// UseRange.
func (a *Allocator) Init(placementAddress uint32) {
	end := roundUpFrame(placementAddress)
	a.useRangeLocked(0, end)
}

// IsUsed reports whether the frame containing phys is currently marked
// used.
func (a *Allocator) IsUsed(phys uint32) bool {
	var used bool
	a.locked(func() { used = a.bitmap.isSet(int(FrameOf(phys))) })
	return used
}

// MarkUsed sets the bit for the frame containing phys.
func (a *Allocator) MarkUsed(phys uint32) {
	a.locked(func() { a.bitmap.set(int(FrameOf(phys))) })
}

// MarkFree clears the bit for the frame containing phys.
func (a *Allocator) MarkFree(phys uint32) {
	a.locked(func() { a.bitmap.clear(int(FrameOf(phys))) })
}

// UseRange marks every frame overlapping [phys, phys+n) as used. phys is
// rounded down to a frame boundary and n rounded up to a whole number of
// frames.
func (a *Allocator) UseRange(phys, n uint32) {
	start, end := frameRange(phys, n)
	a.locked(func() { a.useRangeLocked(start, end) })
}

// FreeRange clears every frame overlapping [phys, phys+n).
func (a *Allocator) FreeRange(phys, n uint32) {
	start, end := frameRange(phys, n)
	a.locked(func() {
		for f := FrameOf(start); f.Address() < end; f++ {
			a.bitmap.clear(int(f))
		}
	})
}

// frameRange rounds phys down to a frame boundary and n up to a whole
// number of frames, returning [start, end) in frame-aligned byte addresses.
func frameRange(phys, n uint32) (start, end uint32) {
	start = phys - phys%PageSize
	frames := (n + PageSize - 1) / PageSize
	end = start + frames*PageSize
	return
}

// FindFree returns a single free frame whose base address is a multiple of
// alignment (0 means any alignment), marking it used. It fails with
// ErrNoMemory if no frame satisfies the request, leaving the bitmap
// unchanged.
func (a *Allocator) FindFree(alignment uint32) (uint32, error) {
	return a.FindFreeRange(PageSize, alignment)
}

// FindFreeRange returns the base address of the smallest contiguous run of
// ceil(bytes/PageSize) frames whose base satisfies alignment, marking the
// whole run used. Fails with ErrNoMemory, leaving the bitmap unchanged, if
// no such run exists.
//
// The scan is a linear pass that skips whole words equal to allWordUsed;
// any set bit or alignment mismatch resets the in-progress run. On success
// a second pass marks the frames used, so a failed search never mutates
// the bitmap.
func (a *Allocator) FindFreeRange(bytes, alignment uint32) (uint32, error) {
	pages := int((bytes + PageSize - 1) / PageSize)
	if pages == 0 {
		pages = 1
	}

	var (
		found   uint32
		foundOK bool
		start   Frame
		run     int
	)

	a.locked(func() {
		totalFrames := a.bitmap.frames()

		for word := 0; word < len(a.bitmap.words) && !foundOK; word++ {
			if a.bitmap.wordAllUsed(word) {
				run = 0
				continue
			}

			for bit := 0; bit < wordBits; bit++ {
				frame := word*wordBits + bit
				if frame >= totalFrames {
					break
				}

				if a.bitmap.isSet(frame) {
					run = 0
					continue
				}

				if run == 0 {
					candidate := Frame(frame)
					if alignment > 0 && candidate.Address()%alignment != 0 {
						continue
					}
					start = candidate
				}

				run++
				if run == pages {
					found = start.Address()
					foundOK = true
					break
				}
			}
		}

		if !foundOK {
			return
		}

		for f := start; int(f-start) < pages; f++ {
			a.bitmap.set(int(f))
		}
	})

	if !foundOK {
		return 0, errors.ErrNoMemory
	}
	return found, nil
}

func (a *Allocator) useRangeLocked(start, end uint32) {
	for f := FrameOf(start); f.Address() < end; f++ {
		a.bitmap.set(int(f))
	}
}

func (a *Allocator) locked(fn func()) {
	if a.cs != nil {
		a.cs.Enter()
		defer a.cs.Leave()
	}
	fn()
}

func roundUpFrame(addr uint32) uint32 {
	if addr%PageSize == 0 {
		return addr
	}
	return addr + (PageSize - addr%PageSize)
}
