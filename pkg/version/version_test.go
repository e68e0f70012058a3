package version

import (
	"runtime"
	"strings"
	"testing"
)

func TestVersionString(t *testing.T) {
	for _, tc := range []struct {
		v        Version
		expected string
	}{
		{Version{Major: "1", Minor: "2", Patch: "3", Build: "abc"}, "Version: 1.2.3\nBuild: abc"},
		{Version{Major: "1", Minor: "2", Patch: "3", Metadata: "rc1", Build: "abc"}, "Version: 1.2.3-rc1\nBuild: abc"},
	} {
		if s := tc.v.String(); s != tc.expected {
			t.Fatalf("expected %q got %q", tc.expected, s)
		}
	}
	if s := DeetVersion.String(); !strings.HasPrefix(s, "Version: 0.3.0") {
		t.Fatalf("unexpected version %q", s)
	}
}

func TestBuildInfo(t *testing.T) {
	if s := BuildInfo(); !strings.HasPrefix(s, runtime.Version()) {
		t.Fatalf("unexpected build info %q", s)
	}
}
