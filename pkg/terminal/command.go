// Package terminal implements functions for responding to user
// input and dispatching to appropriate backend commands.
package terminal

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/cosiner/argv"

	"github.com/go-delve/deet/pkg/proc"
	"github.com/go-delve/deet/service/debugger"
)

type cmdfunc func(t *Term, args string) error

type command struct {
	aliases        []string
	builtinAliases []string
	helpMsg        string
	cmdFn          cmdfunc
}

// Returns true if the command string matches one of the aliases for this command
func (c command) match(cmdstr string) bool {
	for _, v := range c.aliases {
		if v == cmdstr {
			return true
		}
	}
	return false
}

// Commands represents the commands for deet terminal process.
type Commands struct {
	cmds []command
}

// ExitRequestError is returned when the user
// exits deet.
type ExitRequestError struct{}

func (ere ExitRequestError) Error() string {
	return ""
}

// DebugCommands returns a Commands struct with default commands defined.
func DebugCommands() *Commands {
	c := &Commands{}

	c.cmds = []command{
		{aliases: []string{"help", "h"}, cmdFn: c.help, helpMsg: `Prints the help message.

	help [command]

Type "help" followed by the name of a command for more information about it.`},
		{aliases: []string{"run", "r"}, cmdFn: run, helpMsg: `Starts the program.

	run [arguments...]

Any process started by a previous run is killed first. The program runs until
it hits a breakpoint, stops on a signal or terminates. Arguments are split
like a shell would, backticks are not supported.`},
		{aliases: []string{"continue", "c", "cont"}, cmdFn: cont, helpMsg: `Run until breakpoint or program termination.

	continue`},
		{aliases: []string{"stepi", "si"}, cmdFn: stepInstruction, helpMsg: "Single step a single cpu instruction."},
		{aliases: []string{"break", "b"}, cmdFn: breakpoint, helpMsg: `Sets a breakpoint.

	break <location>

Locations are one of:

	*<address>	hexadecimal address, with or without 0x prefix
	<line>		line in the file of the entry function
	<file>:<line>	line in the given file
	<function>	entry of the function

Breakpoints persist across runs and are installed the next time the program
is resumed.`},
		{aliases: []string{"breakpoints", "bp"}, cmdFn: breakpoints, helpMsg: "Print out info for active breakpoints."},
		{aliases: []string{"backtrace", "bt", "stack"}, cmdFn: stack, helpMsg: `Print stack trace.

	backtrace

Prints one line per frame, innermost first, ending with the entry function.`},
		{aliases: []string{"kill"}, cmdFn: kill, helpMsg: "Kill the program being debugged."},
		{aliases: []string{"exit", "quit", "q"}, cmdFn: exitCommand, helpMsg: `Exit the debugger.

	exit

The program being debugged, if any, is killed.`},
	}

	sort.Sort(byFirstAlias(c.cmds))
	return c
}

// Find will look up the command function for the given command input.
// If it cannot find the command it will default to noCmdAvailable().
// If the command is an empty string it will do nothing.
func (c *Commands) Find(cmdstr string) command {
	if cmdstr == "" {
		return command{aliases: []string{"nullcmd"}, cmdFn: nullCommand}
	}

	for _, v := range c.cmds {
		if v.match(cmdstr) {
			return v
		}
	}

	return command{aliases: []string{"nocmd"}, cmdFn: noCmdAvailable}
}

// Call takes a command to execute.
func (c *Commands) Call(cmdstr string, t *Term) error {
	vals := strings.SplitN(strings.TrimSpace(cmdstr), " ", 2)
	cmdname := vals[0]
	var args string
	if len(vals) > 1 {
		args = strings.TrimSpace(vals[1])
	}
	return c.Find(cmdname).cmdFn(t, args)
}

// Merge takes aliases defined in the config struct and merges them with the default aliases.
func (c *Commands) Merge(allAliases map[string][]string) {
	for i := range c.cmds {
		if c.cmds[i].builtinAliases != nil {
			c.cmds[i].aliases = append(c.cmds[i].aliases[:0], c.cmds[i].builtinAliases...)
		}
	}
	for i := range c.cmds {
		if aliases, ok := allAliases[c.cmds[i].aliases[0]]; ok {
			if c.cmds[i].builtinAliases == nil {
				c.cmds[i].builtinAliases = make([]string, len(c.cmds[i].aliases))
				copy(c.cmds[i].builtinAliases, c.cmds[i].aliases)
			}
			c.cmds[i].aliases = append(c.cmds[i].aliases, aliases...)
		}
	}
}

func (c *Commands) isBreakCommand(cmdstr string) bool {
	for _, cmd := range c.cmds {
		if cmd.aliases[0] == "break" {
			return cmd.match(cmdstr)
		}
	}
	return false
}

func (c *Commands) executeFile(t *Term, name string) error {
	fh, err := os.Open(name)
	if err != nil {
		return err
	}
	defer fh.Close()

	scanner := bufio.NewScanner(fh)
	lineno := 0
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		lineno++

		if line == "" || line[0] == '#' {
			continue
		}

		if err := c.Call(line, t); err != nil {
			if _, isExitRequest := err.(ExitRequestError); isExitRequest {
				return err
			}
			if isFatal(err) {
				return err
			}
			fmt.Fprintf(t.stdout, "%s:%d: %v\n", name, lineno, err)
		}
	}

	return scanner.Err()
}

type byFirstAlias []command

func (a byFirstAlias) Len() int           { return len(a) }
func (a byFirstAlias) Swap(i, j int)      { a[i], a[j] = a[j], a[i] }
func (a byFirstAlias) Less(i, j int) bool { return a[i].aliases[0] < a[j].aliases[0] }

func (c *Commands) help(t *Term, args string) error {
	if args != "" {
		for _, cmd := range c.cmds {
			if cmd.match(args) {
				fmt.Fprintln(t.stdout, cmd.helpMsg)
				return nil
			}
		}
		return errors.New("command not available")
	}

	fmt.Fprintln(t.stdout, "The following commands are available:")
	w := new(tabwriter.Writer)
	w.Init(t.stdout, 0, 8, 0, ' ', 0)
	for _, cmd := range c.cmds {
		h := cmd.helpMsg
		if idx := strings.Index(h, "\n"); idx >= 0 {
			h = h[:idx]
		}
		if len(cmd.aliases) > 1 {
			fmt.Fprintf(w, "    %s (alias: %s) \t %s\n", cmd.aliases[0], strings.Join(cmd.aliases[1:], " | "), h)
		} else {
			fmt.Fprintf(w, "    %s \t %s\n", cmd.aliases[0], h)
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintln(t.stdout, "Type help followed by a command for full documentation.")
	return nil
}

func nullCommand(t *Term, args string) error {
	return nil
}

func noCmdAvailable(t *Term, args string) error {
	fmt.Fprintln(t.stdout, "Unrecognized command.")
	return nil
}

func exitCommand(t *Term, args string) error {
	return ExitRequestError{}
}

func splitArgs(args string) ([]string, error) {
	if strings.TrimSpace(args) == "" {
		return nil, nil
	}
	v, err := argv.Argv(args,
		func(s string) (string, error) {
			return "", fmt.Errorf("Backtick not supported in '%s'", s)
		},
		nil)
	if err != nil {
		return nil, err
	}
	if len(v) != 1 {
		return nil, errors.New("illegal commandline '" + args + "'")
	}
	return v[0], nil
}

func run(t *Term, args string) error {
	cmdargs, err := splitArgs(args)
	if err != nil {
		return err
	}
	if pid := t.debugger.ProcessPid(); pid != 0 {
		fmt.Fprintf(t.stdout, "Killing running inferior (pid %d)\n", pid)
	}
	fmt.Fprintln(t.stdout, "Continuing.")
	status, err := t.debugger.Run(cmdargs)
	if err != nil {
		var serr *proc.SpawnFailedError
		if errors.As(err, &serr) {
			fmt.Fprintf(t.stdout, "Error starting subprocess: %v\n", serr.Err)
			return nil
		}
		return t.resumeFailed(err)
	}
	t.printStatus(status)
	return nil
}

func cont(t *Term, args string) error {
	if !t.debugger.IsRunning() {
		fmt.Fprintln(t.stdout, debugger.ErrNotRunning)
		return nil
	}
	fmt.Fprintln(t.stdout, "Continuing.")
	status, err := t.debugger.Continue()
	if err != nil {
		return t.resumeFailed(err)
	}
	t.printStatus(status)
	return nil
}

func stepInstruction(t *Term, args string) error {
	if !t.debugger.IsRunning() {
		fmt.Fprintln(t.stdout, debugger.ErrNotRunning)
		return nil
	}
	status, err := t.debugger.StepInstruction()
	if err != nil {
		return t.resumeFailed(err)
	}
	if status.Trapped() {
		t.printLocation(status.PC)
		return nil
	}
	t.printStatus(status)
	return nil
}

// resumeFailed reports an error returned by a resume. Errors after which
// the process is still usable abort only the command.
func (t *Term) resumeFailed(err error) error {
	if isFatal(err) {
		return err
	}
	var ierr *proc.BreakpointInstallError
	if errors.As(err, &ierr) {
		fmt.Fprintln(t.stdout, "Warning:")
		fmt.Fprintf(t.stdout, "Cannot insert breakpoint %d\n", ierr.ID)
		fmt.Fprintf(t.stdout, "Cannot access memory at address 0x%x\n", ierr.Addr)
	} else {
		fmt.Fprintln(t.stdout)
		fmt.Fprintln(t.stdout, err)
	}
	fmt.Fprintln(t.stdout, "Command aborted.")
	return nil
}

func (t *Term) printStatus(status proc.Status) {
	switch status.State {
	case proc.StateStopped:
		fmt.Fprintf(t.stdout, "Child stopped (signal %s)\n", signalName(status.Signal))
		t.printLocation(status.PC)
	case proc.StateExited:
		fmt.Fprintf(t.stdout, "Child exited (status %d)\n", status.ExitCode)
	case proc.StateSignaled:
		fmt.Fprintf(t.stdout, "\nProgram terminated with signal %s, %s.\n", signalName(status.Signal), signalDescription(status.Signal))
		fmt.Fprintln(t.stdout, "The program no longer exists.")
	}
}

// signalDescription returns the capitalized description of sig, as in
// "Segmentation fault".
func signalDescription(sig syscall.Signal) string {
	s := sig.String()
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func (t *Term) printLocation(pc uint64) {
	if line, ok := t.debugger.Symbols().PCToLine(pc); ok {
		fmt.Fprintf(t.stdout, "Stopped at %s\n", t.highlight(ansiGreen, line.String()))
		return
	}
	fmt.Fprintf(t.stdout, "Stopped at 0x%x\n", pc)
}

func breakpoint(t *Term, args string) error {
	addr, err := t.debugger.FindLocation(args)
	if err != nil {
		fmt.Fprintln(t.stdout, err)
		return nil
	}
	bp := t.debugger.CreateBreakpoint(addr)
	fmt.Fprintf(t.stdout, "Set breakpoint %d at 0x%x\n", bp.ID, bp.Addr)
	return nil
}

func breakpoints(t *Term, args string) error {
	bps := t.debugger.Breakpoints()
	if len(bps) == 0 {
		fmt.Fprintln(t.stdout, "No breakpoints.")
		return nil
	}
	syms := t.debugger.Symbols()
	for _, bp := range bps {
		loc := ""
		if fn, ok := syms.PCToFunc(bp.Addr); ok {
			loc = " in " + t.highlight(ansiBlue, fn)
			if line, ok := syms.PCToLine(bp.Addr); ok {
				loc += " at " + line.String()
			}
		}
		fmt.Fprintf(t.stdout, "Breakpoint %d at 0x%x%s\n", bp.ID, bp.Addr, loc)
	}
	return nil
}

func stack(t *Term, args string) error {
	frames, err := t.debugger.Stacktrace()
	if err != nil {
		if err == debugger.ErrNotRunning {
			fmt.Fprintln(t.stdout, err)
			return nil
		}
		return err
	}
	for _, frame := range frames {
		fmt.Fprintf(t.stdout, "%s (%s)\n", t.highlight(ansiBlue, frame.Function), frame.Line)
	}
	return nil
}

func kill(t *Term, args string) error {
	pid, err := t.debugger.Kill()
	if err != nil {
		if err == debugger.ErrNotRunning {
			fmt.Fprintln(t.stdout, err)
			return nil
		}
		return err
	}
	fmt.Fprintf(t.stdout, "Killing running inferior (pid %d)\n", pid)
	return nil
}
