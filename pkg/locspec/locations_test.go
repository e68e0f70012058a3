package locspec

import (
	"errors"
	"reflect"
	"testing"

	"github.com/go-delve/deet/pkg/proc"
)

func TestParse(t *testing.T) {
	for _, tc := range []struct {
		in  string
		out LocationSpec
	}{
		{"*0x401000", &AddrLocationSpec{0x401000}},
		{"*0X401b2a", &AddrLocationSpec{0x401b2a}},
		{"*deadbeef", &AddrLocationSpec{0xdeadbeef}},
		{"12", &LineLocationSpec{12}},
		{"main.go:7", &FileLineLocationSpec{"main.go", 7}},
		{"/src/app/main.go:42", &FileLineLocationSpec{"/src/app/main.go", 42}},
		{`C:\src\main.go:3`, &FileLineLocationSpec{`C:\src\main.go`, 3}},
		{"main.foo", &FuncLocationSpec{"main.foo"}},
		{"foo", &FuncLocationSpec{"foo"}},
	} {
		spec, err := Parse(tc.in)
		if err != nil {
			t.Fatalf("Error parsing %q: %v", tc.in, err)
		}
		if !reflect.DeepEqual(spec, tc.out) {
			t.Fatalf("Location %q: expected %#v got %#v", tc.in, tc.out, spec)
		}
	}
}

func TestParseErrors(t *testing.T) {
	for _, tc := range []struct {
		in  string
		msg string
	}{
		{"", "No default breakpoint address now."},
		{"*0xzz", `Invalid hex number "0xzz"`},
		{"*", `Invalid hex number ""`},
		{"0", `Malformed breakpoint location "0": line number must be positive`},
		{"main.go:x", `Malformed breakpoint location "main.go:x": line number negative or not a number`},
		{"main.go:-1", `Malformed breakpoint location "main.go:-1": line number negative or not a number`},
		{":3", `Malformed breakpoint location ":3": empty file name`},
		{"foo bar", `Malformed breakpoint location "foo bar": unexpected whitespace`},
	} {
		_, err := Parse(tc.in)
		if err == nil {
			t.Fatalf("Location %q: expected error", tc.in)
		}
		if err.Error() != tc.msg {
			t.Fatalf("Location %q: expected error %q got %q", tc.in, tc.msg, err.Error())
		}
	}
}

type fakeSymbols struct {
	lines map[proc.Line]uint64
	funcs map[string]uint64
}

func (s *fakeSymbols) PCToLine(uint64) (proc.Line, bool) { return proc.Line{}, false }
func (s *fakeSymbols) PCToFunc(uint64) (string, bool)    { return "", false }

func (s *fakeSymbols) FuncToPC(name string) (uint64, bool) {
	pc, ok := s.funcs[name]
	return pc, ok
}

func (s *fakeSymbols) LineToPC(file string, line int) (uint64, bool) {
	if file == "" {
		file = "main.go"
	}
	pc, ok := s.lines[proc.Line{File: file, Line: line}]
	return pc, ok
}

func TestFind(t *testing.T) {
	syms := &fakeSymbols{
		lines: map[proc.Line]uint64{{File: "main.go", Line: 5}: 0x1010, {File: "util.go", Line: 9}: 0x2020},
		funcs: map[string]uint64{"main.foo": 0x1100},
	}
	for _, tc := range []struct {
		in   string
		addr uint64
	}{
		{"*0x1234", 0x1234},
		{"5", 0x1010},
		{"util.go:9", 0x2020},
		{"main.foo", 0x1100},
	} {
		spec, err := Parse(tc.in)
		if err != nil {
			t.Fatal(err)
		}
		addr, err := spec.Find(syms)
		if err != nil {
			t.Fatalf("Location %q: %v", tc.in, err)
		}
		if addr != tc.addr {
			t.Fatalf("Location %q: expected %#x got %#x", tc.in, tc.addr, addr)
		}
	}

	for _, tc := range []struct {
		in  string
		msg string
	}{
		{"6", "No line 6 in the current file."},
		{"util.go:10", `No line 10 in file "util.go".`},
		{"bar", `Function "bar" not defined.`},
	} {
		spec, err := Parse(tc.in)
		if err != nil {
			t.Fatal(err)
		}
		_, err = spec.Find(syms)
		var nferr *NotFoundError
		if !errors.As(err, &nferr) || err.Error() != tc.msg {
			t.Fatalf("Location %q: unexpected error %v", tc.in, err)
		}
	}
}
