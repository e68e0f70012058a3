package bininfo

import (
	"reflect"
	"testing"

	"github.com/go-delve/deet/pkg/proc"
)

func syntheticBinaryInfo(t *testing.T) *BinaryInfo {
	t.Helper()
	bi, err := emptyBinaryInfo("synthetic")
	if err != nil {
		t.Fatal(err)
	}
	bi.Functions = []Function{
		{Name: "main.helper", Entry: 0x1100, End: 0x1140, File: "/src/app/util.go"},
		{Name: "main.main", Entry: 0x1000, End: 0x1080, File: "/src/app/main.go"},
		{Name: "main.handler", Entry: 0x1080, End: 0x10c0, File: "/src/app/main.go"},
	}
	bi.lines = []lineEntry{
		{Address: 0x1100, File: "/src/app/util.go", Line: 3, IsStmt: true},
		{Address: 0x1120, File: "/src/app/util.go", Line: 4, IsStmt: true},
		{Address: 0x1140, EndSequence: true},
		{Address: 0x1000, File: "/src/app/main.go", Line: 10, IsStmt: true},
		{Address: 0x1008, File: "/src/app/main.go", Line: 11},
		{Address: 0x1010, File: "/src/app/main.go", Line: 11, IsStmt: true},
		{Address: 0x1040, File: "/src/app/main.go", Line: 12, IsStmt: true},
		{Address: 0x1080, File: "/src/app/main.go", Line: 20, IsStmt: true},
		{Address: 0x10c0, EndSequence: true},
	}
	bi.index()
	return bi
}

func TestPCToFunc(t *testing.T) {
	bi := syntheticBinaryInfo(t)
	for _, tc := range []struct {
		pc   uint64
		name string
		ok   bool
	}{
		{0x0fff, "", false},
		{0x1000, "main.main", true},
		{0x107f, "main.main", true},
		{0x1080, "main.handler", true},
		{0x10c0, "", false},
		{0x1130, "main.helper", true},
		{0x1140, "", false},
	} {
		// twice, the second lookup is served by the cache
		for i := 0; i < 2; i++ {
			name, ok := bi.PCToFunc(tc.pc)
			if name != tc.name || ok != tc.ok {
				t.Errorf("PCToFunc(%#x) = %q, %v; expected %q, %v", tc.pc, name, ok, tc.name, tc.ok)
			}
		}
	}
}

func TestPCToLine(t *testing.T) {
	bi := syntheticBinaryInfo(t)
	for _, tc := range []struct {
		pc   uint64
		line proc.Line
		ok   bool
	}{
		{0x0fff, proc.Line{}, false},
		{0x1004, proc.Line{File: "/src/app/main.go", Line: 10}, true},
		{0x1010, proc.Line{File: "/src/app/main.go", Line: 11}, true},
		{0x10bf, proc.Line{File: "/src/app/main.go", Line: 20}, true},
		{0x10c0, proc.Line{}, false},
		{0x1124, proc.Line{File: "/src/app/util.go", Line: 4}, true},
		{0x2000, proc.Line{}, false},
	} {
		line, ok := bi.PCToLine(tc.pc)
		if line != tc.line || ok != tc.ok {
			t.Errorf("PCToLine(%#x) = %v, %v; expected %v, %v", tc.pc, line, ok, tc.line, tc.ok)
		}
	}
}

func TestLineToPC(t *testing.T) {
	bi := syntheticBinaryInfo(t)
	for _, tc := range []struct {
		file string
		line int
		pc   uint64
		ok   bool
	}{
		{"", 10, 0x1000, true},
		{"", 11, 0x1010, true},
		{"main.go", 12, 0x1040, true},
		{"app/util.go", 4, 0x1120, true},
		{"/src/app/util.go", 3, 0x1100, true},
		{"til.go", 3, 0, false},
		{"", 99, 0, false},
	} {
		pc, ok := bi.LineToPC(tc.file, tc.line)
		if pc != tc.pc || ok != tc.ok {
			t.Errorf("LineToPC(%q, %d) = %#x, %v; expected %#x, %v", tc.file, tc.line, pc, ok, tc.pc, tc.ok)
		}
	}
}

func TestFuncToPC(t *testing.T) {
	bi := syntheticBinaryInfo(t)
	if pc, ok := bi.FuncToPC("main.handler"); !ok || pc != 0x1080 {
		t.Fatalf("FuncToPC(main.handler) = %#x, %v", pc, ok)
	}
	if pc, ok := bi.FuncToPC("helper"); !ok || pc != 0x1100 {
		t.Fatalf("FuncToPC(helper) = %#x, %v", pc, ok)
	}
	if _, ok := bi.FuncToPC("missing"); ok {
		t.Fatal("FuncToPC(missing) succeeded")
	}
	if fn := bi.EntryFunction(); fn != "main.main" {
		t.Fatalf("unexpected entry function %q", fn)
	}
}

func TestFunctionsWithPrefix(t *testing.T) {
	bi := syntheticBinaryInfo(t)
	got := bi.FunctionsWithPrefix("main.h")
	expected := []string{"main.helper", "main.handler"}
	if !reflect.DeepEqual(got, expected) {
		t.Fatalf("expected %v, got %v", expected, got)
	}
	if got := bi.FunctionsWithPrefix("runtime."); len(got) != 0 {
		t.Fatalf("unexpected completions %v", got)
	}
}

func TestEntryFunctionC(t *testing.T) {
	bi, err := emptyBinaryInfo("c")
	if err != nil {
		t.Fatal(err)
	}
	bi.Functions = []Function{{Name: "main", Entry: 0x400, End: 0x420, File: "/src/prog.c"}}
	bi.index()
	if fn := bi.EntryFunction(); fn != "main" {
		t.Fatalf("unexpected entry function %q", fn)
	}
}
