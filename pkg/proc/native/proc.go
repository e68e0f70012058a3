//go:build linux && amd64

package native

import (
	"os"
	"runtime"

	"github.com/go-delve/deet/pkg/logflags"
)

// nativeProcess is a process traced through ptrace(2).
//
// The kernel only accepts ptrace requests for a tracee from the thread that
// attached to it, so every request, including the fork and exec of the
// process and the calls to wait4, is funneled through a single goroutine
// locked to its OS thread.
type nativeProcess struct {
	pid  int
	ctty *os.File

	ptraceChan     chan func()
	ptraceDoneChan chan interface{}
	closed         bool
}

func newProcess() *nativeProcess {
	dbp := &nativeProcess{
		ptraceChan:     make(chan func()),
		ptraceDoneChan: make(chan interface{}),
	}
	go dbp.handlePtraceFuncs()
	return dbp
}

func (dbp *nativeProcess) handlePtraceFuncs() {
	// We must ensure here that we are running on the same thread during
	// while invoking the ptrace(2) syscall. This is due to the fact that ptrace(2) expects
	// all commands after PTRACE_ATTACH to come from the same thread.
	runtime.LockOSThread()

	for fn := range dbp.ptraceChan {
		fn()
		dbp.ptraceDoneChan <- nil
	}
	runtime.UnlockOSThread()
}

func (dbp *nativeProcess) execPtraceFunc(fn func()) {
	dbp.ptraceChan <- fn
	<-dbp.ptraceDoneChan
}

// Pid returns the process id.
func (dbp *nativeProcess) Pid() int {
	return dbp.pid
}

// Close stops the ptrace goroutine and releases the controlling terminal.
func (dbp *nativeProcess) Close() error {
	if dbp.closed {
		return nil
	}
	dbp.closed = true
	close(dbp.ptraceChan)
	if dbp.ctty != nil {
		if err := dbp.ctty.Close(); err != nil {
			logflags.PtraceLogger().Warnf("closing tty of process %d: %v", dbp.pid, err)
		}
	}
	return nil
}
