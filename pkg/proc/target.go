package proc

import (
	"errors"
	"fmt"
	"syscall"

	"github.com/go-delve/deet/pkg/logflags"
)

// Target is a process under the control of the debugger.
// A Target is exclusively owned by one session and is driven by a single
// goroutine; once it has exited or has been killed only Kill (a no-op) may
// be called on it.
type Target struct {
	tracee Tracee
	cmd    []string
	status Status

	// pending is the address of the breakpoint the process is stopped
	// on, whose original instruction has not executed yet. It is stepped
	// over and re-armed by the next resume.
	pending    uint64
	hasPending bool

	// pendingSig is the signal that stopped the process, delivered when
	// the process is resumed.
	pendingSig syscall.Signal

	exited bool
	log    logflags.Logger
}

// Launch starts cmd under the tracer using launch and waits for it to stop
// before its first instruction.
func Launch(launch LaunchFunc, cmd []string, opts LaunchOptions) (*Target, error) {
	if len(cmd) == 0 {
		return nil, &SpawnFailedError{Err: errors.New("no executable specified")}
	}
	log := logflags.DebuggerLogger().WithField("path", cmd[0])
	tracee, err := launch(cmd, opts)
	if err != nil {
		return nil, &SpawnFailedError{Path: cmd[0], Err: err}
	}

	status, err := tracee.Wait()
	if err == nil && !status.Trapped() {
		err = fmt.Errorf("initial stop not observed, process %s", status)
	}
	if err != nil {
		if !status.Terminated() {
			killAndReap(tracee)
		}
		tracee.Close()
		return nil, &SpawnFailedError{Path: cmd[0], Err: err}
	}

	t := &Target{tracee: tracee, cmd: cmd, log: log.WithField("pid", tracee.Pid())}
	regs, err := tracee.Registers()
	if err != nil {
		t.Kill()
		return nil, &SpawnFailedError{Path: cmd[0], Err: err}
	}
	status.PC = regs.PC()
	t.status = status
	t.log.Debugf("launched, initial stop at %#x", status.PC)
	return t, nil
}

// Pid returns the process id of the target.
func (t *Target) Pid() int {
	return t.tracee.Pid()
}

// Command returns the command line the target was launched with.
func (t *Target) Command() []string {
	return t.cmd
}

// Status returns the last classified status of the target.
func (t *Target) Status() Status {
	return t.status
}

// Exited returns true if the process has exited or has been killed.
func (t *Target) Exited() bool {
	return t.exited
}

// PendingStepOver returns the address of the breakpoint the process is
// stopped on, if any.
func (t *Target) PendingStepOver() (uint64, bool) {
	return t.pending, t.hasPending
}

// Registers returns the current registers of the stopped target.
func (t *Target) Registers() (Registers, error) {
	if err := t.checkValid(); err != nil {
		return nil, err
	}
	return t.tracee.Registers()
}

func (t *Target) checkValid() error {
	if t.exited {
		return &ErrProcessExited{Pid: t.tracee.Pid(), Status: t.status}
	}
	return nil
}

// Resume continues the target until it stops, exits or is killed by a
// signal.
// If the target is sitting on a breakpoint the original instruction is
// first executed with a single step and the breakpoint re-armed. Then every
// breakpoint in bps is installed and the process runs freely. When it
// traps on one of them, the original byte is restored, the instruction
// pointer is moved back onto the breakpoint address, and the breakpoint
// becomes the pending step over of the next resume.
// If a breakpoint can not be installed the process is not resumed and the
// returned status is the unchanged, last known one.
func (t *Target) Resume(bps *BreakpointTable) (Status, error) {
	if err := t.checkValid(); err != nil {
		return t.status, err
	}
	if t.hasPending {
		status, err := t.stepOverPending(bps)
		if err != nil || !status.Trapped() {
			return status, err
		}
	}

	if err := bps.installAll(t); err != nil {
		return t.status, err
	}

	sig := t.takePendingSignal()
	t.log.Debugf("continue, signal %d", sig)
	prev := t.status
	t.status = Status{State: StateRunning}
	if err := t.tracee.Continue(sig); err != nil {
		t.status = prev
		return t.status, fmt.Errorf("could not continue process %d: %w", t.Pid(), err)
	}
	status, err := t.wait()
	if err != nil {
		return status, err
	}
	if status.Trapped() {
		if err := t.checkBreakpointHit(bps); err != nil {
			return t.status, err
		}
	}
	return t.status, nil
}

// StepInstruction executes exactly one instruction of the target. A pending
// breakpoint is stepped over and re-armed.
func (t *Target) StepInstruction(bps *BreakpointTable) (Status, error) {
	if err := t.checkValid(); err != nil {
		return t.status, err
	}
	if t.hasPending {
		return t.stepOverPending(bps)
	}
	start := t.status.PC
	status, err := t.singleStep()
	if err != nil {
		return status, err
	}
	// Only a step of the trap instruction itself is a breakpoint hit, a
	// jump may land one byte past an installed breakpoint.
	if status.Trapped() && status.PC == start+breakpointSize {
		if err := t.checkBreakpointHit(bps); err != nil {
			return t.status, err
		}
	}
	return t.status, nil
}

// stepOverPending executes the original instruction at the pending
// breakpoint and installs the trap again. If the step does not end in a
// trap stop the status is returned as is and the breakpoint stays pending.
func (t *Target) stepOverPending(bps *BreakpointTable) (Status, error) {
	addr := t.pending
	status, err := t.singleStep()
	if err != nil || !status.Trapped() {
		return status, err
	}
	if err := bps.install(t, addr); err != nil {
		ierr := &BreakpointInstallError{ID: -1, Addr: addr, Err: err}
		if bp, ok := bps.Find(addr); ok {
			ierr.ID = bp.ID
		}
		return status, ierr
	}
	t.hasPending = false
	return status, nil
}

func (t *Target) singleStep() (Status, error) {
	sig := t.takePendingSignal()
	t.log.Debugf("single step, signal %d", sig)
	prev := t.status
	t.status = Status{State: StateRunning}
	if err := t.tracee.SingleStep(sig); err != nil {
		t.status = prev
		return t.status, fmt.Errorf("could not single step process %d: %w", t.Pid(), err)
	}
	return t.wait()
}

// checkBreakpointHit rewinds the target onto the breakpoint it just
// trapped on, if any.
func (t *Target) checkBreakpointHit(bps *BreakpointTable) error {
	addr := t.status.PC - breakpointSize
	if _, installed := bps.OriginalByte(addr); !installed || bps.owner != t {
		return nil
	}
	if err := bps.restore(t, addr); err != nil {
		return err
	}
	if err := t.tracee.SetPC(addr); err != nil {
		return fmt.Errorf("could not rewind instruction pointer to %#x: %w", addr, err)
	}
	t.status.PC = addr
	t.pending = addr
	t.hasPending = true
	t.log.Debugf("breakpoint hit at %#x", addr)
	return nil
}

func (t *Target) takePendingSignal() syscall.Signal {
	sig := t.pendingSig
	t.pendingSig = 0
	return sig
}

// wait blocks until the next event of the target and classifies it.
func (t *Target) wait() (Status, error) {
	status, err := t.tracee.Wait()
	if err != nil {
		var uerr *UnexpectedWaitStatusError
		if errors.As(err, &uerr) {
			t.log.Errorf("%v, killing process", err)
			t.Kill()
		}
		return t.status, err
	}
	switch status.State {
	case StateStopped:
		regs, err := t.tracee.Registers()
		if err != nil {
			t.status = status
			if status.Signal != syscall.SIGTRAP {
				t.pendingSig = status.Signal
			}
			return t.status, fmt.Errorf("could not read registers of process %d: %w", t.Pid(), err)
		}
		status.PC = regs.PC()
		if status.Signal != syscall.SIGTRAP {
			t.pendingSig = status.Signal
		}
	case StateExited, StateSignaled:
		t.postExit()
	}
	t.status = status
	t.log.Debugf("wait: %s", status)
	return status, nil
}

// Kill terminates the target and reaps it. Killing a target that has
// already exited, or killing it twice, does nothing.
func (t *Target) Kill() error {
	if t.exited {
		return nil
	}
	t.log.Debugf("killing process")
	status, err := killAndReap(t.tracee)
	t.postExit()
	if err != nil {
		return err
	}
	t.status = status
	return nil
}

func (t *Target) postExit() {
	t.exited = true
	t.hasPending = false
	t.pendingSig = 0
	t.tracee.Close()
}

// killAndReap kills the process and waits until it is gone so that no
// zombie is left behind.
func killAndReap(tracee Tracee) (Status, error) {
	if err := tracee.Kill(); err != nil {
		if errors.Is(err, syscall.ESRCH) {
			return Signaled(syscall.SIGKILL), nil
		}
		return Status{}, fmt.Errorf("could not kill process %d: %w", tracee.Pid(), err)
	}
	for {
		status, err := tracee.Wait()
		if err != nil {
			if errors.Is(err, syscall.ECHILD) {
				return Signaled(syscall.SIGKILL), nil
			}
			return Status{}, err
		}
		if status.Terminated() {
			return status, nil
		}
	}
}
