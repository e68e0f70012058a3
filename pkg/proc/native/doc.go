// Package native implements proc.Tracee on top of ptrace(2). Only
// linux/amd64 is supported, on every other platform Launch returns
// ErrNativeBackendDisabled.
package native
