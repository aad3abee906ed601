// ARM processor support for the memory and dispatch core.
//
// This package mirrors the shape of the teacher runtime's per-architecture
// CPU façade: a single CPU type whose methods wrap assembly-backed
// intrinsics, probed once at boot and then treated as read-only facts
// about the hardware.

//go:build tamago && arm

package arm

// CPU groups the ARM processor intrinsics the page-table engine and the
// critical-section helper need: TTBR access, cache/TLB maintenance,
// barriers and interrupt masking.
type CPU struct {
	mmfr0 uint32
}

// Init probes the CPU's memory-model feature register and caches the
// result. Must run once, before the page-table engine's Probe call.
func (cpu *CPU) Init() {
	cpu.mmfr0 = read_id_mmfr0()
}

// MMFR0 returns the raw ARM Memory Model Feature Register 0 contents, used
// by the page-table engine to select between the short-descriptor and LPAE
// formats.
func (cpu *CPU) MMFR0() uint32 {
	return cpu.mmfr0
}

// defined in cpu.s
func read_id_mmfr0() uint32
