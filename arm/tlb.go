// +build tamago,arm

package arm

// defined in tlb.s
func tlb_invalidate_all()
func tlb_invalidate_mva(uint32)
func icache_invalidate_all()

// InvalidateTLB performs a full unified TLB invalidate, used on every
// context switch.
func (cpu *CPU) InvalidateTLB() {
	tlb_invalidate_all()
}

// InvalidateTLBEntry invalidates the single TLB entry covering vaddr,
// used after an in-place map/unmap against the active context.
func (cpu *CPU) InvalidateTLBEntry(vaddr uint32) {
	tlb_invalidate_mva(vaddr)
}

// InvalidateICache performs a full instruction cache invalidate, issued on
// every context switch alongside the TLB invalidate.
func (cpu *CPU) InvalidateICache() {
	icache_invalidate_all()
}
