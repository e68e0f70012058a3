package debugger

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/go-delve/deet/pkg/bininfo"
	"github.com/go-delve/deet/pkg/locspec"
	"github.com/go-delve/deet/pkg/logflags"
	"github.com/go-delve/deet/pkg/proc"
	"github.com/go-delve/deet/pkg/proc/native"
)

var (
	// ErrNotRunning is returned by the operations that need a live process
	// when there is none.
	//lint:ignore ST1005 backwards compatibility
	ErrNotRunning = errors.New("The program is not being run.")

	// ErrNotExecutable is returned when the path given to New is not an
	// executable file.
	ErrNotExecutable = errors.New("not an executable file")
)

// SymbolTable is the symbol information the debugger needs about the
// executable.
type SymbolTable interface {
	proc.SymbolTable
	// EntryFunction returns the name of the function where backtraces end.
	EntryFunction() string
	// FunctionsWithPrefix returns the function names starting with prefix.
	FunctionsWithPrefix(prefix string) []string
}

// Debugger service.
//
// Debugger is the debugging session of one executable. It owns at most one
// live process at a time and the list of breakpoints, which survives
// across the processes started with Run.
type Debugger struct {
	config *Config
	path   string
	syms   SymbolTable

	targetMutex sync.Mutex
	target      *proc.Target
	breakpoints *proc.BreakpointTable

	log logflags.Logger
}

// Config provides the configuration to start a Debugger.
type Config struct {
	// Args are the arguments of the new processes when Run is called
	// without any.
	Args []string
	// WorkingDir is working directory of the new processes.
	WorkingDir string
	// TTY is the terminal new processes use as their standard streams.
	TTY string
	// DisableASLR disables address space randomization in new processes.
	DisableASLR bool

	// EntryFunction is the function backtraces stop at. If empty the
	// entry function of the executable is used.
	EntryFunction string

	// Launcher starts new processes, native.Launch if nil.
	Launcher proc.LaunchFunc
	// Symbols is the symbol information of the executable. If nil it is
	// loaded from the DWARF sections of the executable.
	Symbols SymbolTable

	Stdin, Stdout, Stderr *os.File
}

// New creates a new Debugger for the executable at path. No process is
// started until Run is called.
func New(config *Config, path string) (*Debugger, error) {
	if config == nil {
		config = &Config{}
	}
	d := &Debugger{
		config:      config,
		path:        path,
		syms:        config.Symbols,
		breakpoints: proc.NewBreakpointTable(),
		log:         logflags.DebuggerLogger(),
	}
	if d.config.Launcher == nil {
		d.config.Launcher = native.Launch
	}
	if d.syms == nil {
		if err := verifyBinary(path); err != nil {
			return nil, err
		}
		bi, err := bininfo.Load(path)
		if err != nil {
			return nil, err
		}
		d.syms = bi
	}
	d.log.Debugf("debugging %s, entry function %q", path, d.entryFunction())
	return d, nil
}

func verifyBinary(path string) error {
	fi, err := os.Stat(path)
	if err != nil {
		return err
	}
	if fi.IsDir() || fi.Mode().Perm()&0o111 == 0 {
		return fmt.Errorf("%s: %w", path, ErrNotExecutable)
	}
	return nil
}

// Path returns the path of the executable.
func (d *Debugger) Path() string {
	return d.path
}

// Symbols returns the symbol information of the executable.
func (d *Debugger) Symbols() SymbolTable {
	return d.syms
}

func (d *Debugger) entryFunction() string {
	if d.config.EntryFunction != "" {
		return d.config.EntryFunction
	}
	return d.syms.EntryFunction()
}

// IsRunning returns true if the debugger owns a live process.
func (d *Debugger) IsRunning() bool {
	d.targetMutex.Lock()
	defer d.targetMutex.Unlock()
	return d.target != nil
}

// ProcessPid returns the PID of the process the debugger is debugging, 0
// if there is none.
func (d *Debugger) ProcessPid() int {
	d.targetMutex.Lock()
	defer d.targetMutex.Unlock()
	if d.target == nil {
		return 0
	}
	return d.target.Pid()
}

// Run starts a new process with args, killing the current one, and
// continues it until the first breakpoint or its termination. A nil args
// uses the arguments of the configuration.
func (d *Debugger) Run(args []string) (proc.Status, error) {
	d.targetMutex.Lock()
	defer d.targetMutex.Unlock()

	if args == nil {
		args = d.config.Args
	}

	if d.target != nil {
		if err := d.killLocked(); err != nil {
			return proc.Status{}, err
		}
	}

	cmd := append([]string{d.path}, args...)
	d.log.Infof("launching %v", cmd)
	t, err := proc.Launch(d.config.Launcher, cmd, proc.LaunchOptions{
		WorkingDir:  d.config.WorkingDir,
		TTY:         d.config.TTY,
		DisableASLR: d.config.DisableASLR,
		Stdin:       d.config.Stdin,
		Stdout:      d.config.Stdout,
		Stderr:      d.config.Stderr,
	})
	if err != nil {
		return proc.Status{}, err
	}
	d.target = t
	return d.continueLocked()
}

// Continue resumes the process until it hits a breakpoint, stops on a
// signal or terminates. The process is released when it terminates.
func (d *Debugger) Continue() (proc.Status, error) {
	d.targetMutex.Lock()
	defer d.targetMutex.Unlock()
	if d.target == nil {
		return proc.Status{}, ErrNotRunning
	}
	return d.continueLocked()
}

func (d *Debugger) continueLocked() (proc.Status, error) {
	status, err := d.target.Resume(d.breakpoints)
	d.afterResume(status, err)
	return status, err
}

// StepInstruction executes a single instruction of the process.
func (d *Debugger) StepInstruction() (proc.Status, error) {
	d.targetMutex.Lock()
	defer d.targetMutex.Unlock()
	if d.target == nil {
		return proc.Status{}, ErrNotRunning
	}
	status, err := d.target.StepInstruction(d.breakpoints)
	d.afterResume(status, err)
	return status, err
}

func (d *Debugger) afterResume(status proc.Status, err error) {
	if err != nil {
		var werr *proc.UnexpectedWaitStatusError
		if errors.As(err, &werr) {
			d.log.Errorf("process %d: %v", werr.Pid, err)
			d.target.Kill()
			d.target = nil
		}
		return
	}
	if status.Terminated() {
		d.log.Debugf("process %d %s", d.target.Pid(), status)
		d.target = nil
	}
}

// CreateBreakpoint registers a breakpoint at addr. It is installed the
// next time a process is resumed.
func (d *Debugger) CreateBreakpoint(addr uint64) *proc.Breakpoint {
	d.targetMutex.Lock()
	defer d.targetMutex.Unlock()
	bp := d.breakpoints.Register(addr)
	d.log.Infof("created breakpoint: %s", bp)
	return bp
}

// FindLocation resolves a location spec, see package locspec, to an
// address.
func (d *Debugger) FindLocation(locStr string) (uint64, error) {
	loc, err := locspec.Parse(locStr)
	if err != nil {
		return 0, err
	}
	return loc.Find(d.syms)
}

// Breakpoints returns the registered breakpoints, in creation order.
func (d *Debugger) Breakpoints() []*proc.Breakpoint {
	d.targetMutex.Lock()
	defer d.targetMutex.Unlock()
	return d.breakpoints.Breakpoints()
}

// Stacktrace returns the call stack of the stopped process, innermost
// frame first, ending with the entry function.
func (d *Debugger) Stacktrace() ([]proc.Stackframe, error) {
	d.targetMutex.Lock()
	defer d.targetMutex.Unlock()
	if d.target == nil {
		return nil, ErrNotRunning
	}
	return d.target.Stacktrace(d.syms, d.entryFunction())
}

// Kill kills the process and returns its pid.
func (d *Debugger) Kill() (int, error) {
	d.targetMutex.Lock()
	defer d.targetMutex.Unlock()
	if d.target == nil {
		return 0, ErrNotRunning
	}
	pid := d.target.Pid()
	return pid, d.killLocked()
}

func (d *Debugger) killLocked() error {
	d.log.Infof("killing process %d", d.target.Pid())
	err := d.target.Kill()
	d.target = nil
	return err
}

// Detach ends the session, killing the process if there is one.
func (d *Debugger) Detach() error {
	d.targetMutex.Lock()
	defer d.targetMutex.Unlock()
	if d.target == nil {
		return nil
	}
	return d.killLocked()
}
