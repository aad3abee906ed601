// Package pi1 is the board.Platform implementation for the original
// Raspberry Pi (model A/A+/B/B+): peripheral base at the BCM2835's
// unmapped bus address and the 512MB-minus-GPU-split RAM size.
//
// Grounded on tamago's board/raspberrypi/pi1 package (peripheralBase
// constant and bcm2835.Init(peripheralBase) delegation via
// //go:linkname Init runtime.hwinit) and pi1/mem.go's ramSize linker
// var.

//go:build tamago && arm

package pi1

import (
	_ "unsafe"

	"github.com/Dreaded-Gnu/kernel/board/bcm2835"
	"github.com/Dreaded-Gnu/kernel/kernel/klog"
)

// peripheralBase is unremapped on the original Pi: the BCM2835's bus
// addresses equal its physical addresses starting here.
const peripheralBase = 0x20000000

// ramSize matches pi1/mem.go's newer-model figure (512MB less the 64MB
// VideoCore GPU split); older 256MB A/B revisions are not distinguished,
// same simplification the teacher package makes.
const ramSize = 0x20000000 - 0x04000000

// irqLines is the BCM2835 interrupt controller's GPU IRQ line count,
// shared by every model in this family.
const irqLines = 64

type platform struct{}

// Board is this model's board.Platform, assigned at package init like
// tamago's per-model `var Board pi.Board`.
var Board platform

func (platform) PeripheralBase() uint32 { return peripheralBase }
func (platform) RAMSize() uint32        { return ramSize }
func (platform) IRQLines() uint32       { return irqLines }

var (
	mailbox *bcm2835.Mailbox
	console *bcm2835.Console
)

//go:linkname Init runtime.hwinit
func Init() {
	mailbox = bcm2835.NewMailbox(peripheralBase)
	console = bcm2835.NewConsole(peripheralBase)
	klog.SetSink(console)
}

// Mailbox returns this model's VideoCore mailbox, nil until Init has run.
func Mailbox() *bcm2835.Mailbox { return mailbox }
