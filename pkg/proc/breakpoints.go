package proc

import "fmt"

// Breakpoint is a user requested instrumentation point.
// Breakpoints outlive the processes they are installed into.
type Breakpoint struct {
	// ID is the sequential identifier assigned at creation, starting at 0.
	ID int
	// Addr is the address the trap instruction is written to.
	Addr uint64
}

func (bp *Breakpoint) String() string {
	return fmt.Sprintf("Breakpoint %d at %#x", bp.ID, bp.Addr)
}

// BreakpointTable records the requested breakpoints, in request order, and
// the original byte of every address currently patched with
// BreakpointInstruction.
// The table does no I/O of its own: patches are written through the Target
// they are installed into.
type BreakpointTable struct {
	list []*Breakpoint

	// saved maps a patched address to the byte the patch replaced. An
	// address is present only while its patch is physically installed.
	saved map[uint64]byte
	// owner is the process saved refers to.
	owner *Target
}

// NewBreakpointTable returns an empty breakpoint table.
func NewBreakpointTable() *BreakpointTable {
	return &BreakpointTable{saved: make(map[uint64]byte)}
}

// Register appends a breakpoint at addr. Duplicate addresses are allowed,
// each one gets its own ID.
func (bt *BreakpointTable) Register(addr uint64) *Breakpoint {
	bp := &Breakpoint{ID: len(bt.list), Addr: addr}
	bt.list = append(bt.list, bp)
	return bp
}

// Breakpoints returns the registered breakpoints in request order.
func (bt *BreakpointTable) Breakpoints() []*Breakpoint {
	r := make([]*Breakpoint, len(bt.list))
	copy(r, bt.list)
	return r
}

// Find returns the first breakpoint registered at addr.
func (bt *BreakpointTable) Find(addr uint64) (*Breakpoint, bool) {
	for _, bp := range bt.list {
		if bp.Addr == addr {
			return bp, true
		}
	}
	return nil, false
}

// OriginalByte returns the byte saved when the patch at addr was installed.
// The second return value is false if no patch is installed at addr.
func (bt *BreakpointTable) OriginalByte(addr uint64) (byte, bool) {
	b, ok := bt.saved[addr]
	return b, ok
}

// bind makes t the process the saved bytes refer to. A new process starts
// from a pristine image, so the bytes saved from the previous one are
// forgotten.
func (bt *BreakpointTable) bind(t *Target) {
	if bt.owner != t {
		bt.owner = t
		bt.saved = make(map[uint64]byte)
	}
}

// install patches addr unless a patch is already in place there, so the
// saved byte is never overwritten with the trap instruction itself.
func (bt *BreakpointTable) install(t *Target, addr uint64) error {
	bt.bind(t)
	if _, installed := bt.saved[addr]; installed {
		return nil
	}
	orig, err := t.WriteMemoryByte(addr, BreakpointInstruction)
	if err != nil {
		return err
	}
	bt.saved[addr] = orig
	return nil
}

// installAll arms every registered breakpoint. On failure the patches
// installed during this call are left in place and the error identifies
// the breakpoint that failed.
func (bt *BreakpointTable) installAll(t *Target) error {
	for _, bp := range bt.list {
		if err := bt.install(t, bp.Addr); err != nil {
			return &BreakpointInstallError{ID: bp.ID, Addr: bp.Addr, Err: err}
		}
	}
	return nil
}

// restore writes back the original byte at addr, if a patch is installed
// there.
func (bt *BreakpointTable) restore(t *Target, addr uint64) error {
	bt.bind(t)
	orig, installed := bt.saved[addr]
	if !installed {
		return nil
	}
	if _, err := t.WriteMemoryByte(addr, orig); err != nil {
		return err
	}
	delete(bt.saved, addr)
	return nil
}
