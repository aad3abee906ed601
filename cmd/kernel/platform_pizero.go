//go:build tamago && arm && pizero

package main

import (
	"github.com/Dreaded-Gnu/kernel/board"
	"github.com/Dreaded-Gnu/kernel/board/raspberrypi/pizero"
)

var activeBoard board.Platform = pizero.Board

func platformInit() {
	pizero.Init()
}
