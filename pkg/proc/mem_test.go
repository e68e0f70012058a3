//go:build unix

package proc_test

import (
	"errors"
	"testing"

	"github.com/go-delve/deet/pkg/proc"
)

func TestWriteMemoryByte(t *testing.T) {
	const word = 0x0807060504030201
	prog := newProgram(0, 0)
	prog.SetWord(stackBase, word)
	tgt, _ := launch(t, prog)

	for off := uint64(0); off < proc.WordSize; off++ {
		old, err := tgt.WriteMemoryByte(stackBase+off, 0xCC)
		if err != nil {
			t.Fatalf("offset %d: %v", off, err)
		}
		if old != byte(off+1) {
			t.Fatalf("offset %d: expected old byte %#x, got %#x", off, off+1, old)
		}
		got, err := tgt.ReadWord(stackBase)
		if err != nil {
			t.Fatal(err)
		}
		mask := uint64(0xff) << (8 * off)
		if expected := (word &^ mask) | 0xCC<<(8*off); got != expected {
			t.Fatalf("offset %d: expected word %#x, got %#x", off, expected, got)
		}
		if _, err := tgt.WriteMemoryByte(stackBase+off, old); err != nil {
			t.Fatal(err)
		}
		if got, _ := tgt.ReadWord(stackBase); got != word {
			t.Fatalf("offset %d: word not restored: %#x", off, got)
		}
	}
}

func TestMemoryAccessError(t *testing.T) {
	tgt, _ := launch(t, newProgram(0, 0))
	const addr = 0x10
	var merr *proc.MemoryAccessError
	if _, err := tgt.ReadWord(addr); !errors.As(err, &merr) || merr.Addr != addr || merr.Write {
		t.Fatalf("ReadWord: unexpected error %v", err)
	}
	if _, err := tgt.WriteMemoryByte(addr+3, 0); !errors.As(err, &merr) || merr.Addr != addr+3 {
		t.Fatalf("WriteMemoryByte: unexpected error %v", err)
	}
}
