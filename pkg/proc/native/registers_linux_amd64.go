package native

import (
	sys "golang.org/x/sys/unix"

	"github.com/go-delve/deet/pkg/proc"
)

// amd64Registers is the general purpose register set of a linux/amd64
// thread, as returned by PTRACE_GETREGS.
type amd64Registers struct {
	regs sys.PtraceRegs
}

func (r *amd64Registers) PC() uint64 { return r.regs.Rip }
func (r *amd64Registers) SP() uint64 { return r.regs.Rsp }
func (r *amd64Registers) BP() uint64 { return r.regs.Rbp }

func (dbp *nativeProcess) Registers() (proc.Registers, error) {
	r := &amd64Registers{}
	var err error
	dbp.execPtraceFunc(func() { err = sys.PtraceGetRegs(dbp.pid, &r.regs) })
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (dbp *nativeProcess) SetPC(pc uint64) error {
	var regs sys.PtraceRegs
	var err error
	dbp.execPtraceFunc(func() {
		if err = sys.PtraceGetRegs(dbp.pid, &regs); err != nil {
			return
		}
		regs.Rip = pc
		err = sys.PtraceSetRegs(dbp.pid, &regs)
	})
	return err
}
