// Package pi2 is the board.Platform implementation for Raspberry Pi
// 2/3 (and other BCM2836/7 models sharing its peripheral remap):
// peripheral base at the VideoCore-remapped 0x3f000000 window and the
// 1GB-minus-GPU-split RAM size.
//
// Grounded on tamago's board/raspberrypi/pi2 package (peripheralBase
// constant and bcm2835.Init(peripheralBase) delegation) and
// pi2/mem.go's ramSize linker var.

//go:build tamago && arm

package pi2

import (
	_ "unsafe"

	"github.com/Dreaded-Gnu/kernel/board/bcm2835"
	"github.com/Dreaded-Gnu/kernel/kernel/klog"
)

// peripheralBase is remapped from the BCM2835's bus address on Pi2+,
// per pi2.go's comment on VideoCore's bootstrap-time register remap.
const peripheralBase = 0x3f000000

// ramSize matches pi2/mem.go exactly: 1GB less VideoCore's 76MB split.
const ramSize = 0x40000000 - 0x4c00000

const irqLines = 64

type platform struct{}

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

func Mailbox() *bcm2835.Mailbox { return mailbox }
