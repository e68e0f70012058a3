// Package bininfo reads the DWARF debug information of an ELF executable
// and answers the address, line and function queries of the debugger.
package bininfo

import (
	"debug/dwarf"
	"debug/elf"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/derekparker/trie"
	lru "github.com/hashicorp/golang-lru"

	"github.com/go-delve/deet/pkg/logflags"
	"github.com/go-delve/deet/pkg/proc"
)

const pcCacheSize = 1024

// ErrNoDebugInfo is returned by Load when the executable was compiled
// without DWARF.
var ErrNoDebugInfo = errors.New("could not find debug information in executable")

// Function describes a function of the executable.
type Function struct {
	Name string
	// Entry and End delimit the code of the function, End excluded.
	Entry, End uint64
	// File is the source file declaring the function.
	File string
}

type lineEntry struct {
	Address uint64
	File    string
	Line    int
	IsStmt  bool
	// EndSequence marks the first address after a contiguous range of code.
	EndSequence bool
}

// BinaryInfo holds the symbol information of an executable. It implements
// proc.SymbolTable.
type BinaryInfo struct {
	Path string

	// Functions sorted by entry address.
	Functions []Function
	lines     []lineEntry

	entryFunction *Function

	lookupFuncCache map[string]*Function
	pcCache         *lru.Cache
	funcNames       *trie.Trie
	log             logflags.Logger
}

// pcInfo is the cached result of resolving an address.
type pcInfo struct {
	fn   *Function
	line *lineEntry
}

// Load reads the symbol information of the executable at path.
func Load(path string) (*BinaryInfo, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open executable %s: %w", path, err)
	}
	defer f.Close()
	d, err := f.DWARF()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoDebugInfo, err)
	}
	return newBinaryInfo(path, d)
}

func newBinaryInfo(path string, d *dwarf.Data) (*BinaryInfo, error) {
	bi, err := emptyBinaryInfo(path)
	if err != nil {
		return nil, err
	}
	if err := bi.loadDebugInfo(d); err != nil {
		return nil, err
	}
	bi.log.Debugf("loaded %d functions, %d line table entries", len(bi.Functions), len(bi.lines))
	return bi, nil
}

func emptyBinaryInfo(path string) (*BinaryInfo, error) {
	pcCache, err := lru.New(pcCacheSize)
	if err != nil {
		return nil, err
	}
	return &BinaryInfo{
		Path:            path,
		lookupFuncCache: make(map[string]*Function),
		pcCache:         pcCache,
		funcNames:       trie.New(),
		log:             logflags.SymbolsLogger().WithField("path", path),
	}, nil
}

func (bi *BinaryInfo) loadDebugInfo(d *dwarf.Data) error {
	rdr := d.Reader()
	for {
		cu, err := rdr.Next()
		if err != nil {
			return fmt.Errorf("could not read debug info: %w", err)
		}
		if cu == nil {
			break
		}
		if cu.Tag != dwarf.TagCompileUnit {
			rdr.SkipChildren()
			continue
		}
		files, err := bi.loadLineTable(d, cu)
		if err != nil {
			return err
		}
		if err := bi.loadFunctions(rdr, cu, files); err != nil {
			return err
		}
	}

	bi.index()
	return nil
}

// index sorts the functions and the line table and builds the lookup
// structures over them.
func (bi *BinaryInfo) index() {
	sort.Slice(bi.Functions, func(i, j int) bool { return bi.Functions[i].Entry < bi.Functions[j].Entry })
	// at equal addresses the end of a sequence sorts before the start of
	// the next one
	sort.SliceStable(bi.lines, func(i, j int) bool {
		a, b := &bi.lines[i], &bi.lines[j]
		if a.Address != b.Address {
			return a.Address < b.Address
		}
		return a.EndSequence && !b.EndSequence
	})
	for i := range bi.Functions {
		fn := &bi.Functions[i]
		if _, dup := bi.lookupFuncCache[fn.Name]; !dup {
			bi.lookupFuncCache[fn.Name] = fn
			bi.funcNames.Add(fn.Name, nil)
		}
	}
	if fn, ok := bi.lookupFuncCache["main.main"]; ok {
		bi.entryFunction = fn
	} else if fn, ok := bi.lookupFuncCache["main"]; ok {
		bi.entryFunction = fn
	}
}

// loadLineTable appends the line table of cu to bi.lines and returns the
// file table of the compile unit.
func (bi *BinaryInfo) loadLineTable(d *dwarf.Data, cu *dwarf.Entry) ([]*dwarf.LineFile, error) {
	lr, err := d.LineReader(cu)
	if err != nil {
		return nil, fmt.Errorf("could not read line table: %w", err)
	}
	if lr == nil {
		return nil, nil
	}
	var le dwarf.LineEntry
	for {
		err := lr.Next(&le)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("could not read line table: %w", err)
		}
		e := lineEntry{Address: le.Address, Line: le.Line, IsStmt: le.IsStmt, EndSequence: le.EndSequence}
		if le.File != nil {
			e.File = filepath.ToSlash(le.File.Name)
		}
		bi.lines = append(bi.lines, e)
	}
	return lr.Files(), nil
}

// loadFunctions reads the subprogram entries that are children of cu.
func (bi *BinaryInfo) loadFunctions(rdr *dwarf.Reader, cu *dwarf.Entry, files []*dwarf.LineFile) error {
	if !cu.Children {
		return nil
	}
	for {
		entry, err := rdr.Next()
		if err != nil {
			return fmt.Errorf("could not read debug info: %w", err)
		}
		if entry == nil || entry.Tag == 0 {
			return nil
		}
		if entry.Tag != dwarf.TagSubprogram {
			if entry.Children {
				rdr.SkipChildren()
			}
			continue
		}
		if entry.Children {
			rdr.SkipChildren()
		}
		name, _ := entry.Val(dwarf.AttrName).(string)
		lowpc, ok := entry.Val(dwarf.AttrLowpc).(uint64)
		if name == "" || !ok {
			// declarations and inlined abstract functions have no code
			continue
		}
		fn := Function{Name: name, Entry: lowpc, End: lowpc}
		switch highpc := entry.Val(dwarf.AttrHighpc).(type) {
		case uint64:
			fn.End = highpc
		case int64:
			fn.End = lowpc + uint64(highpc)
		}
		if i, ok := entry.Val(dwarf.AttrDeclFile).(int64); ok && i >= 0 && int(i) < len(files) && files[i] != nil {
			fn.File = filepath.ToSlash(files[i].Name)
		}
		bi.Functions = append(bi.Functions, fn)
	}
}

// EntryFunction returns the name of the function the program starts in:
// main.main for Go programs, main otherwise. It returns the empty string if
// neither is defined.
func (bi *BinaryInfo) EntryFunction() string {
	if bi.entryFunction == nil {
		return ""
	}
	return bi.entryFunction.Name
}

// LookupFunc returns the function with the given name.
func (bi *BinaryInfo) LookupFunc(name string) (*Function, bool) {
	fn, ok := bi.lookupFuncCache[name]
	return fn, ok
}

// FunctionsWithPrefix returns the names of the functions starting with
// prefix, shortest first.
func (bi *BinaryInfo) FunctionsWithPrefix(prefix string) []string {
	if prefix == "" {
		return nil
	}
	names := bi.funcNames.PrefixSearch(prefix)
	sort.SliceStable(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) < len(names[j])
		}
		return names[i] < names[j]
	})
	return names
}

// PCToFunc returns the name of the function containing pc.
func (bi *BinaryInfo) PCToFunc(pc uint64) (string, bool) {
	info := bi.lookupPC(pc)
	if info.fn == nil {
		return "", false
	}
	return info.fn.Name, true
}

// PCToLine returns the source position of the instruction at pc.
func (bi *BinaryInfo) PCToLine(pc uint64) (proc.Line, bool) {
	info := bi.lookupPC(pc)
	if info.line == nil {
		return proc.Line{}, false
	}
	return proc.Line{File: info.line.File, Line: info.line.Line}, true
}

func (bi *BinaryInfo) lookupPC(pc uint64) pcInfo {
	if v, ok := bi.pcCache.Get(pc); ok {
		return v.(pcInfo)
	}
	info := pcInfo{fn: bi.pcToFunc(pc), line: bi.pcToLine(pc)}
	bi.pcCache.Add(pc, info)
	return info
}

func (bi *BinaryInfo) pcToFunc(pc uint64) *Function {
	i := sort.Search(len(bi.Functions), func(i int) bool { return bi.Functions[i].Entry > pc })
	if i == 0 {
		return nil
	}
	fn := &bi.Functions[i-1]
	if pc >= fn.End {
		return nil
	}
	return fn
}

func (bi *BinaryInfo) pcToLine(pc uint64) *lineEntry {
	i := sort.Search(len(bi.lines), func(i int) bool { return bi.lines[i].Address > pc })
	if i == 0 {
		return nil
	}
	e := &bi.lines[i-1]
	if e.EndSequence {
		return nil
	}
	return e
}

// LineToPC returns the lowest statement address of line in file. File
// names match if they are equal or if one is a path suffix of the other.
// An empty file means the file of the entry function.
func (bi *BinaryInfo) LineToPC(file string, line int) (uint64, bool) {
	if file == "" {
		if file = bi.entryFile(); file == "" {
			return 0, false
		}
	}
	file = filepath.ToSlash(file)
	var (
		pc    uint64
		found bool
	)
	for i := range bi.lines {
		e := &bi.lines[i]
		if e.Line != line || e.EndSequence || !sameFile(e.File, file) {
			continue
		}
		if e.IsStmt {
			return e.Address, true
		}
		if !found {
			pc, found = e.Address, true
		}
	}
	return pc, found
}

func (bi *BinaryInfo) entryFile() string {
	if bi.entryFunction == nil {
		return ""
	}
	if bi.entryFunction.File != "" {
		return bi.entryFunction.File
	}
	if e := bi.pcToLine(bi.entryFunction.Entry); e != nil {
		return e.File
	}
	return ""
}

func sameFile(a, b string) bool {
	if a == b {
		return true
	}
	if len(a) < len(b) {
		a, b = b, a
	}
	return strings.HasSuffix(a, "/"+b)
}

// FuncToPC returns the entry address of the function called name. Go
// functions of the main package can be named without the package prefix.
func (bi *BinaryInfo) FuncToPC(name string) (uint64, bool) {
	if fn, ok := bi.lookupFuncCache[name]; ok {
		return fn.Entry, true
	}
	if fn, ok := bi.lookupFuncCache["main."+name]; ok {
		return fn.Entry, true
	}
	return 0, false
}
