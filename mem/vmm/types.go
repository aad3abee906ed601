package vmm

// Kind distinguishes the two halves of the address space a context can
// describe.
type Kind int

const (
	// Kernel contexts span KernelAreaStart..KernelAreaEnd and install
	// into TTBR1.
	Kernel Kind = iota
	// User contexts span UserAreaStart..UserAreaEnd and install into
	// TTBR0.
	User
)

func (k Kind) String() string {
	if k == Kernel {
		return "kernel"
	}
	return "user"
}

// MemType selects the memory region attributes applied to a leaf entry.
type MemType int

const (
	// Normal is cacheable, bufferable system RAM.
	Normal MemType = iota
	// Device is non-cacheable MMIO.
	Device
	// StronglyOrdered forbids reordering and buffering entirely; used
	// for registers whose access order is externally observable.
	StronglyOrdered
)

// PageFlags are the page-level attributes orthogonal to MemType.
type PageFlags uint8

const (
	// Executable permits instruction fetch from the page. Its absence
	// sets the execute-never bit on modes that support one.
	Executable PageFlags = 1 << iota
	// Auto lets the engine add flags by the context's Kind: kernel
	// mappings gain Shared, user mappings gain nothing. It selects no
	// access permissions; a page is writable unless ReadOnly is set.
	Auto
	// ReadOnly marks the page non-writable.
	ReadOnly
	// Shared marks the page as shared between multiple observers
	// (sets the shareability bit where the format has one).
	Shared
)

func (f PageFlags) has(bit PageFlags) bool {
	return f&bit != 0
}

// Address space bounds. These are the fixed partition the boot sequence
// and this package agree on; they do not move at runtime.
const (
	KernelAreaStart uint32 = 0xC0000000
	KernelAreaEnd   uint32 = 0xFFFFFFFF

	UserAreaStart uint32 = 0x00001000
	UserAreaEnd   uint32 = 0xBFFFFFFF

	// PageSize is the leaf mapping granule for both descriptor formats.
	PageSize uint32 = 0x1000
)

// AreaFor returns the [min, max] virtual address bounds owned by a
// context of the given kind.
func AreaFor(kind Kind) (min, max uint32) {
	if kind == Kernel {
		return KernelAreaStart, KernelAreaEnd
	}
	return UserAreaStart, UserAreaEnd
}
