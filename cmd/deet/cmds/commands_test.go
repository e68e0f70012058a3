package cmds

import (
	"io"
	"reflect"
	"testing"

	"github.com/go-delve/deet/service/debugger"
)

func TestDebuggerConfig(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	root := New()
	conf.TTY = "/dev/pts/7"
	conf.DisableASLR = true
	conf.EntryFunction = "main"
	tty, disableASLR, workingDir = "", false, ""

	execCommand, _, err := root.Find([]string{"exec"})
	if err != nil {
		t.Fatal(err)
	}
	if err := execCommand.ParseFlags([]string{"--tty", "/dev/pts/1", "--wd", "/tmp"}); err != nil {
		t.Fatal(err)
	}
	dconf := debuggerConfig(execCommand.Flags(), []string{"a", "b"})
	expected := &debugger.Config{
		Args:          []string{"a", "b"},
		WorkingDir:    "/tmp",
		TTY:           "/dev/pts/1",
		DisableASLR:   true,
		EntryFunction: "main",
	}
	if !reflect.DeepEqual(dconf, expected) {
		t.Fatalf("expected %#v got %#v", expected, dconf)
	}
}

func TestExecRequiresBinary(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	root := New()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"exec"})
	if err := root.Execute(); err == nil || err.Error() != "you must provide a path to a binary" {
		t.Fatalf("unexpected error %v", err)
	}
}
