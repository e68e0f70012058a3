// Package proc is a low-level package that provides methods to manipulate
// the process we are debugging.
//
// proc implements all core functionality including:
// * launching a process suspended under the tracer
// * process manipulation (continue, single step, kill)
// * software breakpoints and stepping over them
// * methods to explore the memory and the call stack of the process
//
// The operating system tracing facility is reached only through the Tracee
// interface, implemented for real processes by pkg/proc/native and by
// pkg/proc/fake in tests.
package proc
