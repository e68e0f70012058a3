package locspec

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-delve/deet/pkg/proc"
)

// LocationSpec is an interface that represents a parsed location spec string.
type LocationSpec interface {
	// Find returns the address the location spec refers to.
	Find(syms proc.SymbolTable) (uint64, error)
}

// AddrLocationSpec represents an address when used
// as a location spec.
type AddrLocationSpec struct {
	Addr uint64
}

// LineLocationSpec represents a line number in the file of the entry
// function.
type LineLocationSpec struct {
	Line int
}

// FileLineLocationSpec represents a line of a source file.
type FileLineLocationSpec struct {
	File string
	Line int
}

// FuncLocationSpec represents a function in the target program.
type FuncLocationSpec struct {
	Name string
}

// ErrNoLocation is returned by Parse for an empty location.
var ErrNoLocation = errors.New("No default breakpoint address now.")

// Parse will turn locStr into a parsed LocationSpec.
func Parse(locStr string) (LocationSpec, error) {
	if len(locStr) == 0 {
		return nil, ErrNoLocation
	}

	if locStr[0] == '*' {
		addr, err := parseAddress(locStr[1:])
		if err != nil {
			//lint:ignore ST1005 backwards compatibility
			return nil, fmt.Errorf("Invalid hex number \"%s\"", locStr[1:])
		}
		return &AddrLocationSpec{addr}, nil
	}

	if n, err := strconv.Atoi(locStr); err == nil {
		if n <= 0 {
			return nil, malformed(locStr, "line number must be positive")
		}
		return &LineLocationSpec{n}, nil
	}

	// On Windows, path may contain ":", so split only on last ":"
	if i := strings.LastIndex(locStr, ":"); i >= 0 {
		file, rest := locStr[:i], locStr[i+1:]
		line, err := strconv.Atoi(rest)
		if err != nil || line <= 0 {
			return nil, malformed(locStr, "line number negative or not a number")
		}
		if file == "" {
			return nil, malformed(locStr, "empty file name")
		}
		return &FileLineLocationSpec{File: file, Line: line}, nil
	}

	if strings.ContainsAny(locStr, " \t") {
		return nil, malformed(locStr, "unexpected whitespace")
	}
	return &FuncLocationSpec{Name: locStr}, nil
}

func malformed(locStr, reason string) error {
	//lint:ignore ST1005 backwards compatibility
	return fmt.Errorf("Malformed breakpoint location \"%s\": %s", locStr, reason)
}

func parseAddress(s string) (uint64, error) {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s = s[2:]
	}
	return strconv.ParseUint(s, 16, 64)
}

// Find returns the address itself.
func (loc *AddrLocationSpec) Find(proc.SymbolTable) (uint64, error) {
	return loc.Addr, nil
}

// Find returns the address of the line in the file of the entry function.
func (loc *LineLocationSpec) Find(syms proc.SymbolTable) (uint64, error) {
	addr, ok := syms.LineToPC("", loc.Line)
	if !ok {
		return 0, &NotFoundError{fmt.Sprintf("No line %d in the current file.", loc.Line)}
	}
	return addr, nil
}

// Find returns the address of the line.
func (loc *FileLineLocationSpec) Find(syms proc.SymbolTable) (uint64, error) {
	addr, ok := syms.LineToPC(loc.File, loc.Line)
	if !ok {
		return 0, &NotFoundError{fmt.Sprintf("No line %d in file \"%s\".", loc.Line, loc.File)}
	}
	return addr, nil
}

// Find returns the entry address of the function.
func (loc *FuncLocationSpec) Find(syms proc.SymbolTable) (uint64, error) {
	addr, ok := syms.FuncToPC(loc.Name)
	if !ok {
		return 0, &NotFoundError{fmt.Sprintf("Function \"%s\" not defined.", loc.Name)}
	}
	return addr, nil
}

// NotFoundError is returned when a location spec does not match any
// address of the program.
type NotFoundError struct {
	msg string
}

func (e *NotFoundError) Error() string {
	return e.msg
}
