// Package board defines the downward contract between the memory and
// dispatch core and a specific Raspberry Pi model: the peripheral MMIO
// base address, installed RAM size, and interrupt line count a model
// reports at boot so the rest of the kernel never hard-codes a board
// constant directly.
//
// Grounded on tamago's board/raspberrypi.Board interface (LED(name
// string, on bool) (err error)), generalized from that LED-toggling
// surface to the memory-map facts this core actually consumes, since a
// memory/dispatch kernel has no use for an LED line.
package board

// Platform is implemented once per supported model (pi1, pi2, pizero),
// each a package-level var assigned at init time per tamago's
// board/raspberrypi/{pi1,pi2,pizero} pattern.
type Platform interface {
	// PeripheralBase is the physical base address the SoC's MMIO
	// block is mapped (or remapped) to on this model. Differs between
	// Pi 1/Zero (0x20000000) and Pi 2+ (0x3f000000).
	PeripheralBase() uint32

	// RAMSize is the physical RAM installed on this model, less the
	// GPU's reserved split, matching the ramSize linker var each
	// teacher board/*/mem.go file sets.
	RAMSize() uint32

	// IRQLines is the number of normal interrupt lines the SoC's
	// interrupt controller exposes, used to build an irq.Validator.
	IRQLines() uint32
}

// ValidateIRQ builds an irq.Validator-shaped closure (num uint32) bool
// bounding registration to [0, p.IRQLines()), the Normal/Fast validation
// the original core's interrupt.c performs against its line count.
func ValidateIRQ(p Platform) func(num uint32) bool {
	lines := p.IRQLines()
	return func(num uint32) bool {
		return num < lines
	}
}
