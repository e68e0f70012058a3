//go:build unix

// Package fake implements proc.Tracee for a simulated process.
//
// The simulated process executes a fixed sequence of instruction
// addresses, its Trace. Before executing an instruction the process checks
// the byte at that address: if it is the breakpoint instruction the process
// traps, leaving the instruction pointer one byte past it, exactly like a
// real INT3. Resuming with an instruction pointer that does not match the
// next address of the trace faults with SIGSEGV.
package fake

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync/atomic"
	"syscall"

	"github.com/go-delve/deet/pkg/proc"
)

// Region is a mapped range of memory, starting at Addr.
type Region struct {
	Addr uint64
	Data []byte
}

// Program describes the process that Launch simulates.
type Program struct {
	// Regions are the mapped memory of the process.
	Regions []Region
	// Trace is the sequence of instruction addresses executed by the
	// process, in order; after the last one the process exits.
	Trace []uint64
	// ExitCode is the exit status of the process.
	ExitCode int
	// Signals maps an index of Trace to a signal the process receives
	// right before executing that instruction.
	Signals map[int]syscall.Signal
	// Unexpected maps an index of Trace to a raw wait status, neither a
	// stop nor a termination, reported right before executing that
	// instruction.
	Unexpected map[int]uint32
	// SP and BP are the initial stack and frame pointers.
	SP, BP uint64

	// LaunchErr makes Launch fail.
	LaunchErr error
	// FirstStop overrides the initial stop of the process.
	FirstStop *proc.Status
}

// SetWord stores word, little endian, at addr. It panics if addr is not
// mapped.
func (p *Program) SetWord(addr, word uint64) {
	for _, r := range p.Regions {
		if addr >= r.Addr && addr+8 <= r.Addr+uint64(len(r.Data)) {
			binary.LittleEndian.PutUint64(r.Data[addr-r.Addr:], word)
			return
		}
	}
	panic(fmt.Sprintf("address %#x not mapped", addr))
}

type state uint8

const (
	stopped state = iota
	running
	zombie
	reaped
)

var nextPid int32 = 1000

// Process is a simulated traced process.
type Process struct {
	prog *Program
	pid  int

	mem  map[uint64]byte
	idx  int
	regs Regs

	state     state
	event     *proc.Status
	eventErr  error
	delivered map[int]bool

	// Executed counts how many times each address of the trace executed.
	Executed map[uint64]int
	// Resumes counts the calls to Continue and SingleStep.
	Resumes int
	// Closed is set by Close.
	Closed bool
	// RegistersErr, if set, is returned by Registers.
	RegistersErr error
}

// Launcher returns a proc.LaunchFunc that starts prog. Every call starts a
// fresh copy of the program, last holds the most recent one.
func Launcher(prog *Program, last **Process) proc.LaunchFunc {
	return func(cmd []string, opts proc.LaunchOptions) (proc.Tracee, error) {
		p, err := Launch(prog)
		if err != nil {
			return nil, err
		}
		if last != nil {
			*last = p
		}
		return p, nil
	}
}

// Launch starts a simulated copy of prog stopped before its first
// instruction.
func Launch(prog *Program) (*Process, error) {
	if prog.LaunchErr != nil {
		return nil, prog.LaunchErr
	}
	p := &Process{
		prog:      prog,
		pid:       int(atomic.AddInt32(&nextPid, 1)),
		mem:       make(map[uint64]byte),
		delivered: make(map[int]bool),
		Executed:  make(map[uint64]int),
		regs:      Regs{SPReg: prog.SP, BPReg: prog.BP},
	}
	for _, r := range prog.Regions {
		for i, b := range r.Data {
			p.mem[r.Addr+uint64(i)] = b
		}
	}
	if len(prog.Trace) > 0 {
		p.regs.PCReg = prog.Trace[0]
	}
	first := proc.Stopped(syscall.SIGTRAP, 0)
	if prog.FirstStop != nil {
		first = *prog.FirstStop
	}
	p.post(first)
	return p, nil
}

// Regs is the register set of a simulated process.
type Regs struct {
	PCReg, SPReg, BPReg uint64
}

func (r Regs) PC() uint64 { return r.PCReg }
func (r Regs) SP() uint64 { return r.SPReg }
func (r Regs) BP() uint64 { return r.BPReg }

func (p *Process) Pid() int { return p.pid }

// Byte returns the current byte at addr, as the process sees it.
func (p *Process) Byte(addr uint64) (byte, bool) {
	b, ok := p.mem[addr]
	return b, ok
}

func (p *Process) checkStopped() error {
	if p.state != stopped {
		return syscall.ESRCH
	}
	return nil
}

func (p *Process) PeekWord(addr uint64) (uint64, error) {
	if err := p.checkStopped(); err != nil {
		return 0, err
	}
	var buf [8]byte
	for i := range buf {
		b, ok := p.mem[addr+uint64(i)]
		if !ok {
			return 0, syscall.EIO
		}
		buf[i] = b
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

func (p *Process) PokeWord(addr, word uint64) error {
	if err := p.checkStopped(); err != nil {
		return err
	}
	for i := uint64(0); i < 8; i++ {
		if _, ok := p.mem[addr+i]; !ok {
			return syscall.EIO
		}
	}
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], word)
	for i, b := range buf {
		p.mem[addr+uint64(i)] = b
	}
	return nil
}

func (p *Process) Registers() (proc.Registers, error) {
	if err := p.checkStopped(); err != nil {
		return nil, err
	}
	if p.RegistersErr != nil {
		return nil, p.RegistersErr
	}
	return p.regs, nil
}

func (p *Process) SetPC(pc uint64) error {
	if err := p.checkStopped(); err != nil {
		return err
	}
	p.regs.PCReg = pc
	return nil
}

func (p *Process) Continue(sig syscall.Signal) error {
	return p.resume(sig, false)
}

func (p *Process) SingleStep(sig syscall.Signal) error {
	return p.resume(sig, true)
}

func (p *Process) resume(sig syscall.Signal, step bool) error {
	if err := p.checkStopped(); err != nil {
		return err
	}
	p.Resumes++
	p.state = running
	if sig != 0 && !ignoredByDefault(sig) {
		p.die(proc.Signaled(sig))
		return nil
	}
	for {
		if p.idx >= len(p.prog.Trace) {
			p.die(proc.Exited(p.prog.ExitCode))
			return nil
		}
		addr := p.prog.Trace[p.idx]
		if p.regs.PCReg != addr {
			p.post(proc.Stopped(syscall.SIGSEGV, 0))
			return nil
		}
		if ws, ok := p.prog.Unexpected[p.idx]; ok && !p.delivered[p.idx] {
			p.delivered[p.idx] = true
			p.eventErr = &proc.UnexpectedWaitStatusError{Pid: p.pid, Status: ws}
			return nil
		}
		if sig, ok := p.prog.Signals[p.idx]; ok && !p.delivered[p.idx] {
			p.delivered[p.idx] = true
			p.post(proc.Stopped(sig, 0))
			return nil
		}
		if p.mem[addr] == proc.BreakpointInstruction {
			p.regs.PCReg = addr + 1
			p.post(proc.Stopped(syscall.SIGTRAP, 0))
			return nil
		}
		p.Executed[addr]++
		p.idx++
		if p.idx < len(p.prog.Trace) {
			p.regs.PCReg = p.prog.Trace[p.idx]
		}
		if step {
			if p.idx >= len(p.prog.Trace) {
				p.die(proc.Exited(p.prog.ExitCode))
			} else {
				p.post(proc.Stopped(syscall.SIGTRAP, 0))
			}
			return nil
		}
	}
}

func ignoredByDefault(sig syscall.Signal) bool {
	switch sig {
	case syscall.SIGURG, syscall.SIGCHLD, syscall.SIGWINCH:
		return true
	}
	return false
}

func (p *Process) post(status proc.Status) {
	if status.State == proc.StateStopped {
		p.state = stopped
	}
	p.event = &status
}

func (p *Process) die(status proc.Status) {
	p.state = zombie
	p.event = &status
}

var errNoChild = fmt.Errorf("wait: %w", syscall.ECHILD)

func (p *Process) Wait() (proc.Status, error) {
	if p.eventErr != nil {
		err := p.eventErr
		p.eventErr = nil
		return proc.Status{}, err
	}
	if p.event == nil {
		if p.state == reaped {
			return proc.Status{}, errNoChild
		}
		return proc.Status{}, errors.New("fake: wait would block forever")
	}
	ev := *p.event
	p.event = nil
	if ev.Terminated() {
		p.state = reaped
	}
	return ev, nil
}

func (p *Process) Kill() error {
	if p.state == reaped {
		return syscall.ESRCH
	}
	if p.state != zombie {
		p.die(proc.Signaled(syscall.SIGKILL))
	}
	return nil
}

func (p *Process) Close() error {
	p.Closed = true
	return nil
}
