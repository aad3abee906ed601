// +build tamago,arm

package arm

// defined in barrier.s
func dsb()
func isb()
func dmb()

// DataSynchronizationBarrier ensures every explicit memory access issued
// before the barrier completes before any instruction after the barrier
// executes. Every leaf write in the page-table engine is followed by one.
func (cpu *CPU) DataSynchronizationBarrier() { dsb() }

// InstructionSynchronizationBarrier flushes the pipeline so that
// instructions fetched after the barrier observe any preceding context
// change (e.g. a TTBR write). Every context switch ends with one.
func (cpu *CPU) InstructionSynchronizationBarrier() { isb() }

// DataMemoryBarrier orders explicit memory accesses without the full
// completion guarantee of DSB; used around register-level TLB operations
// that do not themselves need to drain the write buffer.
func (cpu *CPU) DataMemoryBarrier() { dmb() }
