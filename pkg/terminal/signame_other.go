//go:build !unix

package terminal

import (
	"fmt"
	"syscall"
)

func signalName(sig syscall.Signal) string {
	return fmt.Sprintf("signal %d", int(sig))
}
