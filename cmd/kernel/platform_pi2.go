//go:build tamago && arm && pi2

package main

import (
	"github.com/Dreaded-Gnu/kernel/board"
	"github.com/Dreaded-Gnu/kernel/board/raspberrypi/pi2"
)

var activeBoard board.Platform = pi2.Board

func platformInit() {
	pi2.Init()
}
