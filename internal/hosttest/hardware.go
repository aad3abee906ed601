// Package hosttest provides fakes for the hardware-facing interfaces the
// memory and dispatch core depends on, so the engine, facade, heap, and
// dispatch logic can run their property tests on the host instead of on
// target hardware. Grounded on gopher-os's kernel/hal test doubles
// (function-variable mocks swapped in per test) and on tamago's use of
// golang.org/x/sys/unix to back DMA regions with real mmap'd memory in
// its own test helpers.
package hosttest

import "golang.org/x/sys/unix"

// Memory is a flat byte slice standing in for the board's physical RAM,
// backed by an anonymous mmap so its address is stable for the duration
// of a test process and large allocations don't pressure the Go heap.
type Memory struct {
	buf []byte
}

// NewMemory mmaps size bytes of anonymous memory to back a fake RAM
// image. The caller should call Close when done.
func NewMemory(size int) (*Memory, error) {
	buf, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, err
	}
	return &Memory{buf: buf}, nil
}

// Close releases the backing mapping.
func (m *Memory) Close() error {
	return unix.Munmap(m.buf)
}

func (m *Memory) Read32(addr uint32) uint32 {
	b := m.buf[addr : addr+4]
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func (m *Memory) Write32(addr uint32, v uint32) {
	b := m.buf[addr : addr+4]
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

// Hardware fakes the vmm.Hardware interface against a Memory-backed
// address space: TTBR/TLB/cache/barrier operations are recorded rather
// than acted on, since there is no real MMU on the host to drive.
//
// Read32/Write32 take a virtual address. For ordinary addresses that is
// just an offset into Mem, modeling the "physical memory is directly
// addressable" bootstrap assumption the engine also relies on. For
// addresses the page-table engine's transient window currently has a
// slot installed in, Hardware additionally implements vmm.WindowTranslator
// so the window can tell it which physical frame each slot currently
// aliases -- standing in for the real MMU translation the window relies
// on target hardware to perform.
type Hardware struct {
	Mem *Memory

	TTBR0, TTBR1 uint32
	TTBCR        uint32

	TLBFlushes         int
	TLBEntryFlushes    []uint32
	ICacheFlushes      int
	DSBCount, ISBCount int

	windowSlots map[uint32]uint32
}

// NewHardware wraps mem as a fake Hardware implementation.
func NewHardware(mem *Memory) *Hardware {
	return &Hardware{Mem: mem, windowSlots: make(map[uint32]uint32)}
}

// InstallWindowSlot and ClearWindowSlot implement vmm.WindowTranslator.
func (h *Hardware) InstallWindowSlot(vaddr, phys uint32) {
	h.windowSlots[vaddr&^(pageMask)] = phys &^ pageMask
}

func (h *Hardware) ClearWindowSlot(vaddr uint32) {
	delete(h.windowSlots, vaddr&^(pageMask))
}

const (
	pageSize = 0x1000
	pageMask = pageSize - 1
)

// translate resolves a virtual address to the offset Mem should be
// indexed at: identity, unless it falls within a currently-installed
// window slot.
func (h *Hardware) translate(vaddr uint32) uint32 {
	if phys, ok := h.windowSlots[vaddr&^pageMask]; ok {
		return phys | (vaddr & pageMask)
	}
	return vaddr
}

func (h *Hardware) ReadTTBR0() uint32     { return h.TTBR0 }
func (h *Hardware) WriteTTBR0(v uint32)   { h.TTBR0 = v }
func (h *Hardware) ReadTTBR1() uint32     { return h.TTBR1 }
func (h *Hardware) WriteTTBR1(v uint32)   { h.TTBR1 = v }
func (h *Hardware) WriteTTBCR(v uint32)   { h.TTBCR = v }

func (h *Hardware) InvalidateTLB() { h.TLBFlushes++ }
func (h *Hardware) InvalidateTLBEntry(vaddr uint32) {
	h.TLBEntryFlushes = append(h.TLBEntryFlushes, vaddr)
}
func (h *Hardware) InvalidateICache() { h.ICacheFlushes++ }

func (h *Hardware) DataSynchronizationBarrier()        { h.DSBCount++ }
func (h *Hardware) InstructionSynchronizationBarrier() { h.ISBCount++ }

func (h *Hardware) Read32(vaddr uint32) uint32     { return h.Mem.Read32(h.translate(vaddr)) }
func (h *Hardware) Write32(vaddr uint32, v uint32) { h.Mem.Write32(h.translate(vaddr), v) }

// Masker fakes ksync.Masker by counting mask/unmask calls instead of
// touching any real interrupt line, so tests can assert a critical
// section actually ran with interrupts "disabled" without a CPU to ask.
type Masker struct {
	Disabled bool
	Disables int
	Enables  int
}

func (m *Masker) DisableInterrupts() {
	m.Disabled = true
	m.Disables++
}

func (m *Masker) EnableInterrupts() {
	m.Disabled = false
	m.Enables++
}
