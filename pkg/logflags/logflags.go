// Package logflags controls which layers of deet produce log output
// and where that output goes.
package logflags

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

var debugger = false
var ptrace = false
var stack = false
var symbols = false

var logOut io.WriteCloser

// makeFlaggableLogger returns a logger for a layer; when flag is false
// only errors are reported.
func makeFlaggableLogger(flag bool, fields Fields) Logger {
	level := logrus.ErrorLevel
	if flag {
		level = logrus.DebugLevel
	}
	return makeLogger(level, fields)
}

// Debugger returns true if the debugger package should log.
func Debugger() bool {
	return debugger
}

// DebuggerLogger returns a logger for the debugger package.
func DebuggerLogger() Logger {
	return makeFlaggableLogger(debugger, Fields{"layer": "debugger"})
}

// Ptrace returns true if every ptrace request and wait status should be
// logged.
func Ptrace() bool {
	return ptrace
}

// PtraceLogger returns a logger for the native process layer.
func PtraceLogger() Logger {
	return makeFlaggableLogger(ptrace, Fields{"layer": "proc", "kind": "ptrace"})
}

// Stack returns true if the unwinder should log every frame it walks.
func Stack() bool {
	return stack
}

// StackLogger returns a logger for the unwinder.
func StackLogger() Logger {
	return makeFlaggableLogger(stack, Fields{"layer": "proc", "kind": "stack"})
}

// Symbols returns true if the DWARF loader should log.
func Symbols() bool {
	return symbols
}

// SymbolsLogger returns a logger for the symbol table loader.
func SymbolsLogger() Logger {
	return makeFlaggableLogger(symbols, Fields{"layer": "bininfo"})
}

var errLogstrWithoutLog = errors.New("--log-output specified without --log")

// Setup sets debugger flags based on the contents of logstr.
// If logDest is not empty logs will be redirected to the file descriptor or
// file path specified by logDest.
func Setup(logFlag bool, logstr, logDest string) error {
	if logDest != "" {
		n, err := strconv.Atoi(logDest)
		if err == nil {
			logOut = os.NewFile(uintptr(n), "deet-logs")
		} else {
			fh, err := os.Create(logDest)
			if err != nil {
				return fmt.Errorf("could not create log file: %v", err)
			}
			logOut = fh
		}
	}
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	if !logFlag {
		log.SetOutput(io.Discard)
		if logstr != "" {
			return errLogstrWithoutLog
		}
		return nil
	}
	if logOut != nil {
		log.SetOutput(logOut)
	}
	if logstr == "" {
		logstr = "debugger"
	}
	for _, logcmd := range strings.Split(logstr, ",") {
		switch logcmd {
		case "debugger":
			debugger = true
		case "ptrace":
			ptrace = true
		case "stack":
			stack = true
		case "symbols":
			symbols = true
		}
	}
	return nil
}

// Close closes the logger output.
func Close() {
	if logOut != nil {
		logOut.Close()
	}
}
