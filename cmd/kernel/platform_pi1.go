//go:build tamago && arm && pi1

package main

import (
	"github.com/Dreaded-Gnu/kernel/board"
	"github.com/Dreaded-Gnu/kernel/board/raspberrypi/pi1"
)

var activeBoard board.Platform = pi1.Board

func platformInit() {
	pi1.Init()
}
