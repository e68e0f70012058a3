package proc

// ReadWord reads the machine word at addr.
func (t *Target) ReadWord(addr uint64) (uint64, error) {
	if err := t.checkValid(); err != nil {
		return 0, err
	}
	word, err := t.tracee.PeekWord(addr)
	if err != nil {
		return 0, &MemoryAccessError{Addr: addr, Err: err}
	}
	return word, nil
}

// WriteMemoryByte replaces the byte at addr with val and returns the byte
// it overwrote.
// The tracing facility only transfers whole words, so the containing
// aligned word is read, the byte is replaced by shift and mask and the word
// is written back; the neighbouring bytes are left untouched.
func (t *Target) WriteMemoryByte(addr uint64, val byte) (byte, error) {
	if err := t.checkValid(); err != nil {
		return 0, err
	}
	aligned := alignAddr(addr)
	shift := 8 * (addr - aligned)

	word, err := t.tracee.PeekWord(aligned)
	if err != nil {
		return 0, &MemoryAccessError{Addr: addr, Err: err}
	}
	old := byte(word >> shift)
	word = word&^(uint64(0xff)<<shift) | uint64(val)<<shift
	if err := t.tracee.PokeWord(aligned, word); err != nil {
		return 0, &MemoryAccessError{Addr: addr, Write: true, Err: err}
	}
	return old, nil
}
