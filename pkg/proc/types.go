package proc

import (
	"fmt"
	"syscall"
)

// State is the classified state of the target process.
type State uint8

const (
	// StateRunning means the process is executing freely.
	StateRunning State = iota
	// StateStopped means the process is suspended by the tracer.
	StateStopped
	// StateExited means the process terminated normally.
	StateExited
	// StateSignaled means the process was terminated by a signal.
	StateSignaled
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	case StateExited:
		return "exited"
	case StateSignaled:
		return "signaled"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// Status describes the target process after a wait.
// Signal is only meaningful for StateStopped and StateSignaled, PC only
// for StateStopped and ExitCode only for StateExited.
type Status struct {
	State    State
	Signal   syscall.Signal
	PC       uint64
	ExitCode int
}

// Stopped returns the status of a process suspended by sig at pc.
func Stopped(sig syscall.Signal, pc uint64) Status {
	return Status{State: StateStopped, Signal: sig, PC: pc}
}

// Exited returns the status of a process that exited with code.
func Exited(code int) Status {
	return Status{State: StateExited, ExitCode: code}
}

// Signaled returns the status of a process killed by sig.
func Signaled(sig syscall.Signal) Status {
	return Status{State: StateSignaled, Signal: sig}
}

// Terminated returns true if the process no longer exists.
func (s Status) Terminated() bool {
	return s.State == StateExited || s.State == StateSignaled
}

// Trapped returns true if the process is stopped by SIGTRAP.
func (s Status) Trapped() bool {
	return s.State == StateStopped && s.Signal == syscall.SIGTRAP
}

func (s Status) String() string {
	switch s.State {
	case StateStopped:
		return fmt.Sprintf("stopped (signal %d) at %#x", int(s.Signal), s.PC)
	case StateExited:
		return fmt.Sprintf("exited (status %d)", s.ExitCode)
	case StateSignaled:
		return fmt.Sprintf("signaled (signal %d)", int(s.Signal))
	default:
		return s.State.String()
	}
}

// SpawnFailedError is returned when the target could not be started or
// never reached its initial stop.
type SpawnFailedError struct {
	Path string
	Err  error
}

func (e *SpawnFailedError) Error() string {
	return fmt.Sprintf("could not launch process %s: %v", e.Path, e.Err)
}

func (e *SpawnFailedError) Unwrap() error { return e.Err }

// MemoryAccessError is returned when the memory of the target process can
// not be read or written at Addr.
type MemoryAccessError struct {
	Addr  uint64
	Write bool
	Err   error
}

func (e *MemoryAccessError) Error() string {
	op := "read"
	if e.Write {
		op = "write"
	}
	return fmt.Sprintf("cannot access memory at address %#x (%s): %v", e.Addr, op, e.Err)
}

func (e *MemoryAccessError) Unwrap() error { return e.Err }

// BreakpointInstallError is returned when the trap instruction of a
// breakpoint can not be written into the target.
type BreakpointInstallError struct {
	ID   int
	Addr uint64
	Err  error
}

func (e *BreakpointInstallError) Error() string {
	return fmt.Sprintf("cannot insert breakpoint %d: %v", e.ID, e.Err)
}

func (e *BreakpointInstallError) Unwrap() error { return e.Err }

// UnexpectedWaitStatusError is returned when the operating system reports a
// wait status that is neither a stop, an exit nor a termination by signal.
// The process model no longer matches reality: callers should treat it as
// fatal for the session.
type UnexpectedWaitStatusError struct {
	Pid    int
	Status uint32
}

func (e *UnexpectedWaitStatusError) Error() string {
	return fmt.Sprintf("waitpid returned unexpected status %#x for process %d", e.Status, e.Pid)
}

// SymbolResolutionError is returned by Stacktrace when an address can not
// be mapped to a function or a source line.
type SymbolResolutionError struct {
	PC   uint64
	What string
}

func (e *SymbolResolutionError) Error() string {
	return fmt.Sprintf("could not resolve %s for address %#x", e.What, e.PC)
}

// ErrProcessExited indicates that the process has exited and contains both
// process id and exit status.
type ErrProcessExited struct {
	Pid    int
	Status Status
}

func (pe *ErrProcessExited) Error() string {
	return fmt.Sprintf("Process %d has %s", pe.Pid, pe.Status)
}
