// Package panic implements the fatal-error path for programmer-error
// classes (UnsupportedMode, InvalidFree, NestedOverflow): mask interrupts,
// emit a message over the console sink, and halt. Unlike Go's built-in
// panic, this never unwinds or recovers -- there is no caller left to
// hand control back to.
package panic

import "github.com/Dreaded-Gnu/kernel/kernel/klog"

// haltFn stops the CPU. The default blocks forever; hosted tests replace
// it so that Panic becomes observable instead of hanging the test binary.
var haltFn = func() { select {} }

// maskFn disables interrupts prior to reporting the fatal condition.
// Production code wires this to arm.CPU.DisableInterrupts.
var maskFn = func() {}

// SetHooks installs the hardware hooks used by Panic. Called once during
// boot; hosted tests call it to install no-op/observable hooks.
func SetHooks(mask func(), halt func()) {
	if mask != nil {
		maskFn = mask
	}
	if halt != nil {
		haltFn = halt
	}
}

// Panic masks interrupts, prints msg to the console, and halts. It never
// returns.
func Panic(msg string) {
	maskFn()

	klog.Printf("\n--- kernel panic ---\n%s\n--------------------\n", msg)

	haltFn()
}

// Panicf is Panic with formatting.
func Panicf(format string, args ...interface{}) {
	maskFn()

	klog.Printf("\n--- kernel panic ---\n")
	klog.Printf(format, args...)
	klog.Printf("\n--------------------\n")

	haltFn()
}
