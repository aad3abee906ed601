package kernel_test

import (
	"testing"

	"github.com/Dreaded-Gnu/kernel/event"
	"github.com/Dreaded-Gnu/kernel/internal/hosttest"
	"github.com/Dreaded-Gnu/kernel/irq"
	"github.com/Dreaded-Gnu/kernel/kernel"
	"github.com/Dreaded-Gnu/kernel/mem/kheap"
	"github.com/Dreaded-Gnu/kernel/mem/vmm"
)

const testRAM = 16 * 1024 * 1024
const testPlacement = 0x10000

type fakePlatform struct{}

func (fakePlatform) PeripheralBase() uint32 { return 0x3f000000 }
func (fakePlatform) RAMSize() uint32        { return testRAM }
func (fakePlatform) IRQLines() uint32       { return 64 }

func newCore(t *testing.T) (*kernel.Core, *hosttest.Hardware) {
	t.Helper()

	mem, err := hosttest.NewMemory(testRAM)
	if err != nil {
		t.Fatalf("NewMemory: %v", err)
	}
	t.Cleanup(func() { mem.Close() })

	hw := hosttest.NewHardware(mem)
	masker := &hosttest.Masker{}

	c := kernel.New(fakePlatform{}, hw, masker, vmm.ModeV7LPAE)
	if err := c.Boot(testPlacement, kheap.FitLargestAddress); err != nil {
		t.Fatalf("Boot: %v", err)
	}
	return c, hw
}

func TestBootMapsBootImageIdentityAndHigherHalf(t *testing.T) {
	c, _ := newCore(t)
	ctx := c.VMM.KernelContext()

	if !c.VMM.IsMapped(ctx, 0x1000) {
		t.Fatalf("identity mapping of boot image missing")
	}
	if !c.VMM.IsMapped(ctx, vmm.KernelAreaStart+0x1000) {
		t.Fatalf("higher-half mapping of boot image missing")
	}
}

func TestHeapGrowsFromKernelAreaAboveBootImage(t *testing.T) {
	c, _ := newCore(t)

	addr, err := c.Heap.Alloc(0x2000)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if addr < vmm.KernelAreaStart {
		t.Fatalf("heap block at %#x, want >= kernel area start %#x", addr, vmm.KernelAreaStart)
	}
	if !c.VMM.IsMapped(c.VMM.KernelContext(), addr) {
		t.Fatalf("heap-allocated address %#x is not actually mapped", addr)
	}
}

func TestCriticalMasksAndRestoresInterrupts(t *testing.T) {
	mem, err := hosttest.NewMemory(testRAM)
	if err != nil {
		t.Fatalf("NewMemory: %v", err)
	}
	t.Cleanup(func() { mem.Close() })

	masker := &hosttest.Masker{}
	c := kernel.New(fakePlatform{}, hosttest.NewHardware(mem), masker, vmm.ModeV7LPAE)

	var ran, sawDisabled bool
	c.Critical(func() {
		ran = true
		sawDisabled = masker.Disabled
	})

	if !ran {
		t.Fatalf("fn never ran inside Critical")
	}
	if !sawDisabled {
		t.Fatalf("fn ran inside Critical with interrupts enabled")
	}
	if masker.Disabled {
		t.Fatalf("interrupts still masked after Critical returned")
	}
}

func TestIRQRegistrationHonoursPlatformLineCount(t *testing.T) {
	c, _ := newCore(t)

	if _, err := c.IRQ.Register(irq.Normal, 1000, false, func(interface{}) {}); err == nil {
		t.Fatalf("Register accepted a line past the platform's IRQLines")
	}
}

func TestDispatchDrainsPendingEvents(t *testing.T) {
	c, _ := newCore(t)

	c.Events.Bind(1, false, func(origin event.Origin, typ event.Type) {})
	c.Events.Enqueue(1, event.OriginKernel)
	c.Dispatch()

	if c.Events.Pending() != 0 {
		t.Fatalf("Dispatch left %d events pending, want 0", c.Events.Pending())
	}
}
