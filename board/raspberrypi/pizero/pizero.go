// Package pizero is the board.Platform implementation for Raspberry Pi
// Zero/Zero W: peripheral base shared with the original Pi (no remap on
// this model) and its own 512MB-minus-GPU-split RAM size.
//
// Grounded on tamago's board/raspberrypi/pizero package (peripheralBase
// constant, identical to pi1's) and pizero/mem.go's ramSize linker var.

//go:build tamago && arm

package pizero

import (
	_ "unsafe"

	"github.com/Dreaded-Gnu/kernel/board/bcm2835"
	"github.com/Dreaded-Gnu/kernel/kernel/klog"
)

const peripheralBase = 0x20000000

// ramSize matches pizero/mem.go exactly.
const ramSize = 0x20000000 - 0x04000000

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
