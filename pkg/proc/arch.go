package proc

import "math/bits"

// WordSize is the pointer width of the host, in bytes. Memory of the
// target is accessed in units of this size.
const WordSize = bits.UintSize / 8

// BreakpointInstruction is the x86 INT3 opcode.
const BreakpointInstruction byte = 0xCC

// breakpointSize is the length of BreakpointInstruction; after the trap
// fires the instruction pointer is this many bytes past the breakpoint.
const breakpointSize = 1

// alignAddr rounds addr down to a multiple of WordSize.
func alignAddr(addr uint64) uint64 {
	return addr &^ uint64(WordSize-1)
}
