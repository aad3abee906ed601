// +build tamago,arm

package arm

import "unsafe"

// Read32 and Write32 give the page-table engine word-granularity access
// to a currently-mapped virtual address: table memory reached through
// the transient window, or an identity-mapped physical address during
// bootstrap. Grounded on tamago's internal/reg package, which performs
// the same unsafe.Pointer(uintptr(addr)) dance for every MMIO register
// access; this core does not need reg's cache-flush-per-access behavior
// since the window and bootstrap ranges are always Normal cacheable
// memory, not device MMIO.
func (cpu *CPU) Read32(vaddr uint32) uint32 {
	return *(*uint32)(unsafe.Pointer(uintptr(vaddr)))
}

func (cpu *CPU) Write32(vaddr uint32, value uint32) {
	*(*uint32)(unsafe.Pointer(uintptr(vaddr))) = value
}
