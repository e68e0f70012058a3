package logflags

import (
	"bytes"
	"io"
	"reflect"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func resetFlags() {
	debugger, ptrace, stack, symbols = false, false, false, false
}

func TestMakeLogger_usingLoggerFactory(t *testing.T) {
	if loggerFactory != nil {
		t.Fatalf("expected loggerFactory to be nil; but was <%v>", loggerFactory)
	}
	defer func() {
		loggerFactory = nil
	}()
	logOut = &bufferWriter{}
	defer func() {
		logOut = nil
	}()

	expectedLogger := &logrusLogger{}
	SetLoggerFactory(func(level logrus.Level, fields Fields, out io.Writer) Logger {
		if level != logrus.DebugLevel {
			t.Fatalf("expected level to be <%v>; but was <%v>", logrus.DebugLevel, level)
		}
		if len(fields) != 1 || fields["foo"] != "bar" {
			t.Fatalf("expected fields to be {'foo':'bar'}; but was <%v>", fields)
		}
		if out != logOut {
			t.Fatalf("expected out to be <%v>; but was <%v>", logOut, out)
		}
		return expectedLogger
	})

	actual := makeLogger(logrus.DebugLevel, Fields{"foo": "bar"})
	if actual != expectedLogger {
		t.Fatalf("expected actual to <%v>; but was <%v>", expectedLogger, actual)
	}
}

func TestMakeFlaggableLogger(t *testing.T) {
	for _, tc := range []struct {
		flag  bool
		level logrus.Level
	}{
		{false, logrus.ErrorLevel},
		{true, logrus.DebugLevel},
	} {
		actual := makeFlaggableLogger(tc.flag, Fields{"foo": "bar"})
		actualEntry, ok := actual.(*logrusLogger)
		if !ok {
			t.Fatalf("expected actual to be of type <%v>; but was <%v>", reflect.TypeOf((*logrusLogger)(nil)), reflect.TypeOf(actual))
		}
		if actualEntry.Entry.Logger.Level != tc.level {
			t.Fatalf("flag %v: expected level <%v>; but was <%v>", tc.flag, tc.level, actualEntry.Entry.Logger.Level)
		}
		if actualEntry.Entry.Logger.Formatter != textFormatterInstance {
			t.Fatalf("expected formatter to be <%v>; but was <%v>", textFormatterInstance, actualEntry.Entry.Logger.Formatter)
		}
		if len(actualEntry.Entry.Data) != 1 || actualEntry.Data["foo"] != "bar" {
			t.Fatalf("expected data to be {'foo':'bar'}; but was <%v>", actualEntry.Data)
		}
	}
}

func TestLayerLoggerWritesToLogOut(t *testing.T) {
	defer resetFlags()
	buf := &bufferWriter{}
	logOut = buf
	defer func() {
		logOut = nil
	}()

	if err := Setup(true, "ptrace,stack", ""); err != nil {
		t.Fatal(err)
	}
	if !Ptrace() || !Stack() || Debugger() || Symbols() {
		t.Fatalf("unexpected flags: debugger=%v ptrace=%v stack=%v symbols=%v", Debugger(), Ptrace(), Stack(), Symbols())
	}
	PtraceLogger().Debugf("PTRACE_CONT pid=%d", 42)
	if out := buf.String(); !strings.Contains(out, "PTRACE_CONT pid=42") || !strings.Contains(out, "kind=ptrace") {
		t.Fatalf("unexpected log output %q", out)
	}
}

func TestDisabledLayerStillLogsErrors(t *testing.T) {
	defer resetFlags()
	buf := &bufferWriter{}
	logOut = buf
	defer func() {
		logOut = nil
	}()

	SymbolsLogger().Debugf("hidden")
	SymbolsLogger().Errorf("visible")
	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, "visible") {
		t.Fatalf("unexpected log output %q", out)
	}
}

func TestSetupDefaultsToDebugger(t *testing.T) {
	defer resetFlags()
	if err := Setup(true, "", ""); err != nil {
		t.Fatal(err)
	}
	if !Debugger() {
		t.Fatal("expected debugger layer to be enabled")
	}
}

func TestSetupLogOutputWithoutLog(t *testing.T) {
	defer resetFlags()
	if err := Setup(false, "debugger", ""); err != errLogstrWithoutLog {
		t.Fatalf("expected %v, got %v", errLogstrWithoutLog, err)
	}
}

type bufferWriter struct {
	bytes.Buffer
}

func (bw *bufferWriter) Close() error {
	return nil
}
