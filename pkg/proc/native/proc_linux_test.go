//go:build amd64

package native_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"

	"github.com/creack/pty"

	"github.com/go-delve/deet/pkg/bininfo"
	"github.com/go-delve/deet/pkg/proc"
	"github.com/go-delve/deet/pkg/proc/native"
	protest "github.com/go-delve/deet/pkg/proc/test"
)

func TestMain(m *testing.M) {
	os.Exit(protest.RunTestsWithFixtures(m))
}

func devNull(t *testing.T) *os.File {
	t.Helper()
	f, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { f.Close() })
	return f
}

func launchFixture(t *testing.T, name string, args ...string) (*proc.Target, protest.Fixture) {
	t.Helper()
	protest.MustSupportPtrace(t)
	fixture := protest.BuildFixture(name)
	null := devNull(t)
	tgt, err := proc.Launch(native.Launch, append([]string{fixture.Path}, args...), proc.LaunchOptions{Stdout: null, Stderr: null, Stdin: null})
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}
	t.Cleanup(func() { tgt.Kill() })
	return tgt, fixture
}

func TestLaunchExitStatus(t *testing.T) {
	tgt, _ := launchFixture(t, "exitcode", "3")
	if st := tgt.Status(); !st.Trapped() || st.PC == 0 {
		t.Fatalf("unexpected initial status %s", st)
	}
	status, err := tgt.Resume(proc.NewBreakpointTable())
	if err != nil {
		t.Fatal(err)
	}
	if status != proc.Exited(3) {
		t.Fatalf("unexpected status %s", status)
	}
}

func TestLaunchNonexistent(t *testing.T) {
	protest.MustSupportPtrace(t)
	_, err := proc.Launch(native.Launch, []string{filepath.Join(t.TempDir(), "missing")}, proc.LaunchOptions{})
	var serr *proc.SpawnFailedError
	if !errors.As(err, &serr) {
		t.Fatalf("expected SpawnFailedError, got %v", err)
	}
}

func TestKill(t *testing.T) {
	tgt, _ := launchFixture(t, "exitcode")
	if err := tgt.Kill(); err != nil {
		t.Fatal(err)
	}
	if st := tgt.Status(); st != proc.Signaled(syscall.SIGKILL) {
		t.Fatalf("unexpected status after kill %s", st)
	}
	if err := tgt.Kill(); err != nil {
		t.Fatalf("second kill: %v", err)
	}
}

func TestWriteMemoryByte(t *testing.T) {
	tgt, fixture := launchFixture(t, "callcount")
	bi, err := bininfo.Load(fixture.Path)
	if err != nil {
		t.Fatal(err)
	}
	addr, ok := bi.FuncToPC("main.foo")
	if !ok {
		t.Fatal("main.foo not found")
	}
	before, err := tgt.ReadWord(addr &^ 7)
	if err != nil {
		t.Fatal(err)
	}
	old, err := tgt.WriteMemoryByte(addr, proc.BreakpointInstruction)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tgt.WriteMemoryByte(addr, old); err != nil {
		t.Fatal(err)
	}
	after, err := tgt.ReadWord(addr &^ 7)
	if err != nil {
		t.Fatal(err)
	}
	if before != after {
		t.Fatalf("memory changed: %#x != %#x", before, after)
	}
}

func TestBreakpointBacktrace(t *testing.T) {
	tgt, fixture := launchFixture(t, "callcount")
	bi, err := bininfo.Load(fixture.Path)
	if err != nil {
		t.Fatal(err)
	}
	// Line 15 is past the prologue of foo, the frame pointer already
	// points at the frame of foo and bar shows up in the backtrace.
	addr, ok := bi.LineToPC("callcount.go", 15)
	if !ok {
		t.Fatal("could not find callcount.go:15")
	}
	bps := proc.NewBreakpointTable()
	bps.Register(addr)

	for i := 0; i < 3; i++ {
		status, err := tgt.Resume(bps)
		if err != nil {
			t.Fatal(err)
		}
		if status != proc.Stopped(syscall.SIGTRAP, addr) {
			t.Fatalf("iteration %d: unexpected status %s", i, status)
		}
		frames, err := tgt.Stacktrace(bi, "main.main")
		if err != nil {
			t.Fatalf("iteration %d: %v", i, err)
		}
		var names []string
		for _, frame := range frames {
			names = append(names, frame.Function)
		}
		if strings.Join(names, " ") != "main.foo main.bar main.main" {
			t.Fatalf("iteration %d: unexpected stack %v", i, names)
		}
		// Caller frames report the line of their return address: the
		// instruction after the call to foo belongs to the closing brace
		// of bar.
		if frames[1].Line.Line != 22 || frames[2].Line.Line != 26 {
			t.Fatalf("iteration %d: unexpected lines %s %s", i, frames[1].Line, frames[2].Line)
		}
	}
	status, err := tgt.Resume(bps)
	if err != nil {
		t.Fatal(err)
	}
	if status != proc.Exited(0) {
		t.Fatalf("unexpected status %s", status)
	}
}

func TestSignalDelivery(t *testing.T) {
	tgt, _ := launchFixture(t, "sigsegv")
	bps := proc.NewBreakpointTable()
	sawSegv := false
	for i := 0; i < 10; i++ {
		status, err := tgt.Resume(bps)
		if err != nil {
			t.Fatal(err)
		}
		if status.Terminated() {
			if !sawSegv {
				t.Fatal("terminated without stopping on SIGSEGV")
			}
			// the Go runtime turns the fault into a panic
			if status != proc.Exited(2) {
				t.Fatalf("unexpected status %s", status)
			}
			return
		}
		if status.Signal == syscall.SIGSEGV {
			sawSegv = true
		}
	}
	t.Fatal("process did not terminate")
}

func TestLaunchWithTTY(t *testing.T) {
	protest.MustSupportPtrace(t)
	p, tty, err := pty.Open()
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()
	defer tty.Close()

	fixture := protest.BuildFixture("ttyprog")
	wd := t.TempDir()
	tgt, err := proc.Launch(native.Launch, []string{fixture.Path}, proc.LaunchOptions{TTY: tty.Name(), WorkingDir: wd, DisableASLR: true})
	if err != nil {
		t.Fatal(err)
	}
	defer tgt.Kill()
	status, err := tgt.Resume(proc.NewBreakpointTable())
	if err != nil {
		t.Fatal(err)
	}
	if status != proc.Exited(0) {
		t.Fatalf("unexpected status %s", status)
	}

	buf := make([]byte, 512)
	n, err := p.Read(buf)
	if err != nil {
		t.Fatal(err)
	}
	out := string(buf[:n])
	if !strings.Contains(out, "hello from") || !strings.Contains(out, filepath.Base(wd)) {
		t.Fatalf("unexpected output %q", out)
	}
}
