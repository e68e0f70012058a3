package terminal

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/go-delve/liner"

	"github.com/go-delve/deet/pkg/config"
	"github.com/go-delve/deet/pkg/proc"
	"github.com/go-delve/deet/service/debugger"
)

const (
	historyFile                 string = ".deet_history"
	terminalHighlightEscapeCode string = "\033[%2dm"
	terminalResetEscapeCode     string = "\033[0m"
)

const (
	ansiGreen = 32
	ansiBlue  = 34
)

// Term represents the terminal running deet.
type Term struct {
	debugger *debugger.Debugger
	conf     *config.Config
	prompt   string
	line     *liner.State
	cmds     *Commands
	colors   bool
	stdout   io.Writer
	InitFile string
}

// New returns a new Term.
func New(d *debugger.Debugger, conf *config.Config) *Term {
	cmds := DebugCommands()
	if conf != nil && conf.Aliases != nil {
		cmds.Merge(conf.Aliases)
	}

	if conf == nil {
		conf = &config.Config{}
	}

	w, colors := getColorableWriter()

	return &Term{
		debugger: d,
		conf:     conf,
		prompt:   "(deet) ",
		line:     liner.NewLiner(),
		cmds:     cmds,
		colors:   colors,
		stdout:   w,
	}
}

// Close returns the terminal to its previous mode.
func (t *Term) Close() {
	t.line.Close()
}

// sigintGuard swallows the SIGINTs sent to the foreground process group.
// The debugged process receives them too and they are reported as a stop.
func (t *Term) sigintGuard(ch <-chan os.Signal) {
	for range ch {
	}
}

// Run begins running deet in the terminal. The returned exit status is
// non-zero if the session ended because of an unrecoverable error.
func (t *Term) Run() (int, error) {
	defer t.Close()

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT)
	defer signal.Stop(ch)
	go t.sigintGuard(ch)

	t.line.SetCtrlCAborts(true)
	t.line.SetCompleter(t.complete)

	fullHistoryFile, err := config.GetConfigFilePath(historyFile)
	if err != nil {
		fmt.Printf("Unable to load history file: %v.", err)
	}

	f, err := os.Open(fullHistoryFile)
	if err != nil {
		f, err = os.Create(fullHistoryFile)
		if err != nil {
			fmt.Printf("Unable to open history file: %v. History will not be saved for this session.", err)
		}
	}

	if f != nil {
		t.line.ReadHistory(f)
		f.Close()
	}
	fmt.Fprintln(t.stdout, "Type 'help' for list of commands.")

	if t.InitFile != "" {
		err := t.cmds.executeFile(t, t.InitFile)
		if err != nil {
			if _, ok := err.(ExitRequestError); ok {
				return t.handleExit()
			}
			if isFatal(err) {
				return t.handleFatal(err)
			}
			fmt.Fprintf(os.Stderr, "Error executing init file: %s\n", err)
		}
	}

	for {
		cmdstr, err := t.promptForInput()
		if err != nil {
			if err == liner.ErrPromptAborted {
				fmt.Fprintln(t.stdout, `Type "quit" to exit`)
				continue
			}
			if err == io.EOF {
				fmt.Fprintln(t.stdout, "quit")
				return t.handleExit()
			}
			return 1, fmt.Errorf("Prompt for input failed.\n")
		}

		if err := t.cmds.Call(cmdstr, t); err != nil {
			if _, ok := err.(ExitRequestError); ok {
				return t.handleExit()
			}
			if isFatal(err) {
				return t.handleFatal(err)
			}
			fmt.Fprintf(os.Stderr, "Command failed: %s\n", err)
		}
	}
}

func (t *Term) promptForInput() (string, error) {
	l, err := t.line.Prompt(t.prompt)
	if err != nil {
		return "", err
	}

	l = strings.TrimSuffix(l, "\n")
	if strings.TrimSpace(l) != "" {
		t.line.AppendHistory(l)
	}

	return l, nil
}

// complete completes command names and, after a break command, function
// names.
func (t *Term) complete(line string) (c []string) {
	if i := strings.Index(line, " "); i >= 0 {
		cmdstr, arg := line[:i], strings.TrimLeft(line[i:], " ")
		if t.cmds.isBreakCommand(cmdstr) && t.debugger != nil {
			for _, fn := range t.debugger.Symbols().FunctionsWithPrefix(arg) {
				c = append(c, cmdstr+" "+fn)
			}
		}
		return
	}
	for _, cmd := range t.cmds.cmds {
		for _, alias := range cmd.aliases {
			if strings.HasPrefix(alias, strings.ToLower(line)) {
				c = append(c, alias)
			}
		}
	}
	return
}

func (t *Term) saveHistory() {
	fullHistoryFile, err := config.GetConfigFilePath(historyFile)
	if err != nil {
		fmt.Println("Error saving history file:", err)
		return
	}
	if f, err := os.OpenFile(fullHistoryFile, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0666); err == nil {
		_, err = t.line.WriteHistory(f)
		if err != nil {
			fmt.Println("readline history error:", err)
		}
		f.Close()
	}
}

func (t *Term) handleExit() (int, error) {
	t.saveHistory()
	if pid := t.debugger.ProcessPid(); pid != 0 {
		fmt.Fprintf(t.stdout, "Killing running inferior (pid %d)\n", pid)
	}
	if err := t.debugger.Detach(); err != nil {
		return 1, err
	}
	return 0, nil
}

// handleFatal ends the session after an error that left the debugger
// unable to trust the state of the process.
func (t *Term) handleFatal(err error) (int, error) {
	t.saveHistory()
	t.debugger.Detach()
	return 1, err
}

func isFatal(err error) bool {
	var werr *proc.UnexpectedWaitStatusError
	return errors.As(err, &werr)
}

func (t *Term) highlight(color int, s string) string {
	if !t.colors {
		return s
	}
	return fmt.Sprintf(terminalHighlightEscapeCode, color) + s + terminalResetEscapeCode
}
