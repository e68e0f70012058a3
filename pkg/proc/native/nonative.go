//go:build !linux || !amd64

package native

import (
	"errors"

	"github.com/go-delve/deet/pkg/proc"
)

var ErrNativeBackendDisabled = errors.New("native backend disabled during compilation")

// Launch returns ErrNativeBackendDisabled.
func Launch(_ []string, _ proc.LaunchOptions) (proc.Tracee, error) {
	return nil, ErrNativeBackendDisabled
}
