// cmd/kernel is the boot trampoline: the assembly/linker-script entry
// stub (out of scope for this core) brings the CPU to a state Go code can
// execute on, the selected board package's Init runs as runtime.hwinit,
// and main calls Kmain.
//
// Grounded on tamago's example/example.go (a minimal main for
// GOOS=tamago/GOARCH=arm), stripped of its USB/network/crypto demo
// content -- a memory and dispatch core has nothing analogous to boot
// into beyond its own components.

//go:build tamago && arm

package main

import (
	"github.com/Dreaded-Gnu/kernel/arm"
	"github.com/Dreaded-Gnu/kernel/kernel"
	"github.com/Dreaded-Gnu/kernel/kernel/entry"
	"github.com/Dreaded-Gnu/kernel/kernel/klog"
	"github.com/Dreaded-Gnu/kernel/kernel/panic"
	"github.com/Dreaded-Gnu/kernel/mem/kheap"
	"github.com/Dreaded-Gnu/kernel/mem/vmm"
)

var cpu = &arm.CPU{}

// core is the kernel's single aggregate object, reachable from every
// later-registered interrupt handler and event callback.
var core *kernel.Core

func main() {
	Kmain()
}

// Kmain is the Go-side entry point: the board package's Init has already
// run as runtime.hwinit, so the console and mailbox are ready before the
// first klog.Printf below.
func Kmain() {
	cpu.Init()

	mode, ok := vmm.ProbeMode(cpu.MMFR0())
	if !ok {
		panic.Panic("kernel: unsupported ARM MMU format")
	}

	core = kernel.New(activeBoard, cpu, cpu, mode)

	placement := uint32(entry.PlacementAddress(func(v uintptr) uintptr { return v }))
	if err := core.Boot(placement, kheap.FitLargestAddress); err != nil {
		panic.Panicf("kernel: boot failed: %v", err)
	}

	klog.Printf("kernel: up, placement=%x peripheral=%x ram=%x\n",
		placement, activeBoard.PeripheralBase(), activeBoard.RAMSize())

	cpu.EnableInterrupts()

	for {
		core.Dispatch()
	}
}
