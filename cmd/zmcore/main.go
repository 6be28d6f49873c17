// Command zmcore runs a Z-code story file to completion on standard
// output. Argument parsing is deliberately thin: one positional story
// file and two optional channel flags, per spec.md §6/§1.
package main

import (
	"flag"
	"fmt"
	"os"

	"zmcore/internal/decode"
	"zmcore/internal/vm"
	"zmcore/internal/zcore"
)

var (
	tracePath string
	logPath   string
)

func init() {
	flag.StringVar(&tracePath, "trace", "", "write one line per executed instruction to this file")
	flag.StringVar(&logPath, "log", "", "write coarse lifecycle events (start/quit) to this file")
	flag.Parse()
}

func main() {
	os.Exit(run())
}

func run() int {
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: zmcore <story-file>")
		return 1
	}
	romPath := flag.Arg(0)

	romBytes, err := os.ReadFile(romPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "zmcore: %v\n", err)
		return 1
	}

	img, err := zcore.Load(romBytes)
	if err != nil {
		fmt.Fprintf(os.Stderr, "zmcore: %v\n", err)
		return 1
	}

	var trace vm.TraceSink
	if tracePath != "" {
		f, err := os.Create(tracePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "zmcore: %v\n", err)
			return 1
		}
		defer f.Close()
		trace = &fileTrace{f: f}
	}

	var log vm.LogSink
	if logPath != "" {
		f, err := os.Create(logPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "zmcore: %v\n", err)
			return 1
		}
		defer f.Close()
		log = &fileLog{f: f}
	}

	e := vm.New(img, os.Stdout, trace, log, 0)
	if err := e.Run(); err != nil {
		if _, ok := err.(vm.Quit); ok {
			return 0
		}
		fmt.Fprintf(os.Stderr, "zmcore: %v\n", err)
		return 2
	}
	return 0
}

// fileTrace writes one line per executed instruction, matching the
// per-instruction trace channel spec.md §6 calls for.
type fileTrace struct {
	f *os.File
}

func (t *fileTrace) TraceInstruction(pc uint32, inst decode.Instruction) {
	fmt.Fprintf(t.f, "%#06x %s\n", pc, inst.Name)
}

// fileLog writes coarse lifecycle events: start of execution and quit.
type fileLog struct {
	f *os.File
}

func (l *fileLog) Logf(format string, args ...any) {
	fmt.Fprintf(l.f, format+"\n", args...)
}
