package proc

import (
	"fmt"
	"os"
	"syscall"
)

// Registers is the subset of the CPU state of a stopped process that the
// breakpoint engine and the unwinder rely on.
type Registers interface {
	PC() uint64
	SP() uint64
	BP() uint64
}

// Tracee is the process control capability of a platform backend.
// Every method is synchronous and must only be called while the process
// is stopped, except for Wait which blocks until the next event and Kill.
type Tracee interface {
	// Pid returns the process id.
	Pid() int
	// PeekWord reads the machine word at addr.
	PeekWord(addr uint64) (uint64, error)
	// PokeWord writes the machine word at addr.
	PokeWord(addr, word uint64) error
	// Registers returns the current register set.
	Registers() (Registers, error)
	// SetPC updates the instruction pointer.
	SetPC(pc uint64) error
	// Continue resumes the process delivering sig (0 for none).
	Continue(sig syscall.Signal) error
	// SingleStep resumes the process for one instruction delivering sig
	// (0 for none).
	SingleStep(sig syscall.Signal) error
	// Wait blocks until the next stop, exit or termination by signal.
	// The PC field of the returned status is not filled in.
	Wait() (Status, error)
	// Kill sends SIGKILL to the process; it does not reap it.
	Kill() error
	// Close releases the resources held by the backend once the process
	// has been reaped.
	Close() error
}

// LaunchOptions controls how a target is started.
type LaunchOptions struct {
	// WorkingDir is the working directory of the new process.
	WorkingDir string
	// TTY, if not empty, is the terminal the new process will use as its
	// controlling terminal and standard streams.
	TTY string
	// DisableASLR disables address space randomization for the new
	// process.
	DisableASLR bool

	Stdin  *os.File
	Stdout *os.File
	Stderr *os.File
}

// LaunchFunc starts cmd[0] with arguments cmd[1:] traced from its first
// instruction. It does not wait for the initial stop.
type LaunchFunc func(cmd []string, opts LaunchOptions) (Tracee, error)

// Line is a position in a source file.
type Line struct {
	File string
	Line int
}

func (l Line) String() string {
	return fmt.Sprintf("%s:%d", l.File, l.Line)
}

// SymbolLookup maps addresses of the target to source information.
type SymbolLookup interface {
	PCToLine(pc uint64) (Line, bool)
	PCToFunc(pc uint64) (string, bool)
}

// SymbolTable is a SymbolLookup that can also map source positions back
// to addresses.
type SymbolTable interface {
	SymbolLookup
	// LineToPC returns the address of line in file. An empty file means
	// the file containing the entry function.
	LineToPC(file string, line int) (uint64, bool)
	// FuncToPC returns the entry address of the named function.
	FuncToPC(name string) (uint64, bool)
}
