package vmm

// Context owns one top-level page table: the root frame installed into
// TTBR0 (user) or TTBR1 (kernel) and the Kind that bounds which
// virtual range it is permitted to describe.
type Context struct {
	kind  Kind
	table uint32 // physical address of the top-level table's frame

	// live is true once this context has been installed via SetContext at
	// least once; the engine only flushes the TLB/I-cache for contexts
	// that were actually active, matching the flush-on-switch invariant
	// rather than flushing unconditionally on every CreateContext.
	live bool
}

// Kind returns the address range this context describes.
func (c *Context) Kind() Kind {
	return c.kind
}

// Table returns the physical base address of the context's top-level
// table, for callers that need to program TTBR directly (board bring-up).
func (c *Context) Table() uint32 {
	return c.table
}
