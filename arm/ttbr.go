// +build tamago,arm

package arm

// TTBR0/TTBR1 split control and access. The short-descriptor formats
// install the user context into TTBR0 and the kernel context into TTBR1;
// LPAE does the same but with 64-bit base registers (the high words are
// always zero on the 32-bit physical address space this core targets).

// defined in ttbr.s
func read_ttbr0() uint32
func write_ttbr0(uint32)
func read_ttbr1() uint32
func write_ttbr1(uint32)
func write_ttbcr(uint32)

// ReadTTBR0 returns the current TTBR0 physical base address (masked to the
// table-alignment boundary).
func (cpu *CPU) ReadTTBR0() uint32 { return read_ttbr0() &^ 0x3fff }

// WriteTTBR0 installs a new TTBR0 table base address.
func (cpu *CPU) WriteTTBR0(base uint32) { write_ttbr0(base) }

// ReadTTBR1 returns the current TTBR1 physical base address.
func (cpu *CPU) ReadTTBR1() uint32 { return read_ttbr1() &^ 0x3fff }

// WriteTTBR1 installs a new TTBR1 table base address.
func (cpu *CPU) WriteTTBR1(base uint32) { write_ttbr1(base) }

// WriteTTBCR sets the translation table base control register, selecting
// the TTBR0/TTBR1 address-space split point (N in short-descriptor mode,
// the ttbr0_size/ttbr1_size EAE split in LPAE).
func (cpu *CPU) WriteTTBCR(v uint32) { write_ttbcr(v) }
