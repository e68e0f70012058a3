//go:build amd64

package native

import (
	"encoding/binary"
	"syscall"

	sys "golang.org/x/sys/unix"
)

// ptraceCont executes ptrace PTRACE_CONT
func ptraceCont(tid, sig int) error {
	return sys.PtraceCont(tid, sig)
}

// ptraceSingleStep executes ptrace PTRACE_SINGLESTEP
func ptraceSingleStep(pid, sig int) error {
	_, _, e1 := sys.Syscall6(sys.SYS_PTRACE, uintptr(sys.PTRACE_SINGLESTEP), uintptr(pid), uintptr(0), uintptr(sig), 0, 0)
	if e1 != 0 {
		return e1
	}
	return nil
}

// ptracePeekWord executes ptrace PTRACE_PEEKDATA for a single word.
func ptracePeekWord(pid int, addr uint64) (uint64, error) {
	var buf [8]byte
	n, err := sys.PtracePeekData(pid, uintptr(addr), buf[:])
	if err != nil {
		return 0, err
	}
	if n != len(buf) {
		return 0, syscall.EIO
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

// ptracePokeWord executes ptrace PTRACE_POKEDATA for a single word.
func ptracePokeWord(pid int, addr, word uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], word)
	n, err := sys.PtracePokeData(pid, uintptr(addr), buf[:])
	if err != nil {
		return err
	}
	if n != len(buf) {
		return syscall.EIO
	}
	return nil
}
