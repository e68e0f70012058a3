//go:build amd64

package native

import (
	"errors"
	"os"
	"os/exec"
	"syscall"

	sys "golang.org/x/sys/unix"

	"github.com/go-delve/deet/pkg/logflags"
	"github.com/go-delve/deet/pkg/proc"
)

const (
	personalityGetPersonality = 0xffffffff // argument to pass to personality syscall to get the current personality
	_ADDR_NO_RANDOMIZE        = 0x0040000  // ADDR_NO_RANDOMIZE linux constant
)

// Launch creates a new process, traced from its first instruction. First
// entry in `cmd` is the program to run, and then rest are the arguments to
// be supplied to that process.
// Launch returns as soon as the process has been created: the caller must
// Wait for the initial SIGTRAP stop.
func Launch(cmd []string, opts proc.LaunchOptions) (proc.Tracee, error) {
	if len(cmd) == 0 {
		return nil, errors.New("no executable specified")
	}
	var (
		process *exec.Cmd
		err     error
	)

	dbp := newProcess()
	dbp.execPtraceFunc(func() {
		if opts.DisableASLR {
			oldPersonality, _, err := syscall.Syscall(sys.SYS_PERSONALITY, personalityGetPersonality, 0, 0)
			if err == syscall.Errno(0) {
				newPersonality := oldPersonality | _ADDR_NO_RANDOMIZE
				syscall.Syscall(sys.SYS_PERSONALITY, newPersonality, 0, 0)
				defer syscall.Syscall(sys.SYS_PERSONALITY, oldPersonality, 0, 0)
			}
		}

		process = exec.Command(cmd[0])
		process.Args = cmd
		process.Stdin = fileOr(opts.Stdin, os.Stdin)
		process.Stdout = fileOr(opts.Stdout, os.Stdout)
		process.Stderr = fileOr(opts.Stderr, os.Stderr)
		process.SysProcAttr = &syscall.SysProcAttr{Ptrace: true}
		if opts.TTY != "" {
			dbp.ctty, err = attachProcessToTTY(process, opts.TTY)
			if err != nil {
				return
			}
		}
		if opts.WorkingDir != "" {
			process.Dir = opts.WorkingDir
		}
		err = process.Start()
	})
	if err != nil {
		dbp.Close()
		return nil, err
	}
	dbp.pid = process.Process.Pid
	logflags.PtraceLogger().Debugf("started process %d: %v", dbp.pid, cmd)
	return dbp, nil
}

func fileOr(f, def *os.File) *os.File {
	if f != nil {
		return f
	}
	return def
}

func (dbp *nativeProcess) PeekWord(addr uint64) (word uint64, err error) {
	dbp.execPtraceFunc(func() { word, err = ptracePeekWord(dbp.pid, addr) })
	return word, err
}

func (dbp *nativeProcess) PokeWord(addr, word uint64) (err error) {
	dbp.execPtraceFunc(func() { err = ptracePokeWord(dbp.pid, addr, word) })
	return err
}

func (dbp *nativeProcess) Continue(sig syscall.Signal) (err error) {
	dbp.execPtraceFunc(func() { err = ptraceCont(dbp.pid, int(sig)) })
	return err
}

func (dbp *nativeProcess) SingleStep(sig syscall.Signal) (err error) {
	dbp.execPtraceFunc(func() { err = ptraceSingleStep(dbp.pid, int(sig)) })
	return err
}

// Wait blocks until the process stops, exits or is killed and classifies
// the wait status. Any other status, for example a job control
// continuation, is reported as an UnexpectedWaitStatusError.
func (dbp *nativeProcess) Wait() (proc.Status, error) {
	var (
		s   sys.WaitStatus
		err error
	)
	for {
		dbp.execPtraceFunc(func() { _, err = sys.Wait4(dbp.pid, &s, sys.WALL, nil) })
		if err != sys.EINTR {
			break
		}
	}
	if err != nil {
		return proc.Status{}, err
	}
	logflags.PtraceLogger().Debugf("wait4 %d: status %#x", dbp.pid, uint32(s))

	switch {
	case s.Exited():
		return proc.Exited(s.ExitStatus()), nil
	case s.Signaled():
		return proc.Signaled(s.Signal()), nil
	case s.Stopped():
		return proc.Stopped(s.StopSignal(), 0), nil
	default:
		return proc.Status{}, &proc.UnexpectedWaitStatusError{Pid: dbp.pid, Status: uint32(s)}
	}
}

// Kill sends SIGKILL to the process; the caller reaps it with Wait.
func (dbp *nativeProcess) Kill() error {
	return sys.Kill(dbp.pid, sys.SIGKILL)
}
