// +build tamago,arm

package arm

// defined in irq.s
func irq_enable()
func irq_disable()

// EnableInterrupts unmasks IRQ and FIQ delivery.
func (cpu *CPU) EnableInterrupts() {
	irq_enable()
}

// DisableInterrupts masks IRQ and FIQ delivery. Used by ksync.Section to
// guard every critical section touching the bitmap, the active context,
// the heap trees or the dispatch table.
func (cpu *CPU) DisableInterrupts() {
	irq_disable()
}
