package vmm

// Hardware bundles the processor intrinsics and raw memory access the
// page-table engine needs: TTBR/TTBCR access, TLB/I-cache maintenance,
// barriers, and word-granularity reads/writes against table memory
// reached through the transient window.
//
// This mirrors the teacher runtime's split between an arm.CPU intrinsics
// façade and its internal/reg register-access helpers
// ((*uint32)(unsafe.Pointer(uintptr(addr)))), folded into one interface so
// the engine can be driven by either the real hardware implementation
// (arm.CPU plus unsafe-pointer memory access, wired in by cmd/kernel)
// or a hosted fake backed by a plain Go slice.
type Hardware interface {
	ReadTTBR0() uint32
	WriteTTBR0(base uint32)
	ReadTTBR1() uint32
	WriteTTBR1(base uint32)
	WriteTTBCR(v uint32)

	InvalidateTLB()
	InvalidateTLBEntry(vaddr uint32)
	InvalidateICache()

	DataSynchronizationBarrier()
	InstructionSynchronizationBarrier()

	// Read32/Write32 access a 32-bit word at a virtual address reached
	// through the currently-installed transient window mapping (or, for
	// the identity-mapped low memory used during early boot, directly).
	Read32(vaddr uint32) uint32
	Write32(vaddr uint32, value uint32)
}
