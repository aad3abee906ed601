// Grounded on tamago's soc/bcm2835 miniuart.go: the AUX mini-UART used
// as a console on every Raspberry Pi model, stripped to the pieces
// klog.Sink needs (Init plus a blocking single-byte transmit).

//go:build tamago && arm

package bcm2835

import "unsafe"

// Mini-UART AUX register offsets, relative to PeripheralBase. Grounded
// on miniuart.go's AUX_* constant block.
const (
	auxEnables   = 0x215004
	auxMuIOReg   = 0x215040
	auxMuIERReg  = 0x215044
	auxMuIIRReg  = 0x215048
	auxMuLCRReg  = 0x21504c
	auxMuMCRReg  = 0x215050
	auxMuLSRReg  = 0x215054
	auxMuCNTLReg = 0x215060
	auxMuBAUDReg = 0x215068

	auxMuLSRTxEmpty = 0x20
)

// Console is the mini-UART console, implementing klog.Sink. GPIO pin-mux
// setup (ALT5 on GPIO14/15) is left to the board's own init sequence --
// miniuart.go's GPFSEL1/GPPUD dance is firmware/board-revision specific
// and outside a memory and dispatch core's concern.
type Console struct {
	base uint32
}

// NewConsole binds a Console to peripheralBase and programs the AUX
// mini-UART into 8N1 at the same divisor miniuart.go uses (115200 baud
// off the BCM2835's fixed core clock).
func NewConsole(peripheralBase uint32) *Console {
	c := &Console{base: peripheralBase}
	c.write32(auxEnables, 1)
	c.write32(auxMuIERReg, 0)
	c.write32(auxMuCNTLReg, 0)
	c.write32(auxMuLCRReg, 3)
	c.write32(auxMuMCRReg, 0)
	c.write32(auxMuIIRReg, 0xc6)
	c.write32(auxMuBAUDReg, 270)
	c.write32(auxMuCNTLReg, 3)
	return c
}

// WriteString implements klog.Sink: each byte waits for the transmitter
// to go idle before being written, matching miniuart.go's Tx.
func (c *Console) WriteString(s string) {
	for i := 0; i < len(s); i++ {
		for c.read32(auxMuLSRReg)&auxMuLSRTxEmpty == 0 {
		}
		c.write32(auxMuIOReg, uint32(s[i]))
	}
}

func (c *Console) read32(offset uint32) uint32 {
	return *(*uint32)(unsafe.Pointer(uintptr(c.base + offset)))
}

func (c *Console) write32(offset, value uint32) {
	*(*uint32)(unsafe.Pointer(uintptr(c.base + offset))) = value
}
