package board_test

import (
	"testing"

	"github.com/Dreaded-Gnu/kernel/board"
)

type fakePlatform struct{ lines uint32 }

func (f fakePlatform) PeripheralBase() uint32 { return 0x3f000000 }
func (f fakePlatform) RAMSize() uint32        { return 0x40000000 }
func (f fakePlatform) IRQLines() uint32       { return f.lines }

func TestValidateIRQBoundsToLineCount(t *testing.T) {
	v := board.ValidateIRQ(fakePlatform{lines: 64})

	if !v(0) || !v(63) {
		t.Fatalf("in-range lines rejected")
	}
	if v(64) || v(1000) {
		t.Fatalf("out-of-range line accepted")
	}
}
