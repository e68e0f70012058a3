package proc

import (
	"github.com/go-delve/deet/pkg/logflags"
)

// Stackframe represents a frame in a system stack.
type Stackframe struct {
	// PC is the address the frame is executing: the current instruction
	// pointer for the innermost frame, the return address for the others.
	PC uint64
	// FrameBase is the value of the frame pointer register in this frame.
	FrameBase uint64
	// Function is the name of the function containing PC.
	Function string
	// Line is the source position of PC.
	Line Line
}

// Stacktrace returns the stack of the stopped target, innermost frame
// first, by following the chain of saved frame pointers: the caller's
// frame pointer is stored at the frame base and the return address one
// word above it.
// The walk ends with the frame of the function named entry. Every address
// on the way must resolve to both a function and a line, otherwise the
// whole backtrace fails with a SymbolResolutionError.
// Targets compiled without frame pointers produce meaningless frames.
// At the first instruction of a function, before its prologue ran, the
// frame pointer still belongs to the caller and the caller's frame is
// missing from the result.
func (t *Target) Stacktrace(syms SymbolLookup, entry string) ([]Stackframe, error) {
	regs, err := t.Registers()
	if err != nil {
		return nil, err
	}
	log := logflags.StackLogger().WithField("pid", t.Pid())

	pc, bp := regs.PC(), regs.BP()
	var frames []Stackframe
	for {
		fn, ok := syms.PCToFunc(pc)
		if !ok {
			return nil, &SymbolResolutionError{PC: pc, What: "function"}
		}
		line, ok := syms.PCToLine(pc)
		if !ok {
			return nil, &SymbolResolutionError{PC: pc, What: "line"}
		}
		frames = append(frames, Stackframe{PC: pc, FrameBase: bp, Function: fn, Line: line})
		if logflags.Stack() {
			log.Debugf("frame %d: %s (%s) pc=%#x bp=%#x", len(frames)-1, fn, line, pc, bp)
		}
		if fn == entry {
			return frames, nil
		}

		ret, err := t.ReadWord(bp + WordSize)
		if err != nil {
			return nil, err
		}
		next, err := t.ReadWord(bp)
		if err != nil {
			return nil, err
		}
		pc, bp = ret, next
	}
}
