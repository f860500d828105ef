package ast

import "fmt"

// NameID indexes the name table. It is the identity of an identifier across
// the compilation unit.
type NameID int

type NameTable struct {
	names []string
	index map[string]NameID
}

func NewNameTable() *NameTable {
	return &NameTable{index: make(map[string]NameID)}
}

// Intern returns the id of name, adding it on first use.
func (t *NameTable) Intern(name string) NameID {
	if id, ok := t.index[name]; ok {
		return id
	}
	id := NameID(len(t.names))
	t.names = append(t.names, name)
	t.index[name] = id
	return id
}

func (t *NameTable) Lookup(name string) (NameID, bool) {
	id, ok := t.index[name]
	return id, ok
}

func (t *NameTable) Name(id NameID) string {
	if id < 0 || int(id) >= len(t.names) {
		return fmt.Sprintf("#%d", id)
	}
	return t.names[id]
}

func (t *NameTable) Len() int {
	return len(t.names)
}

// LocalTable tracks the stack slots of one function.
type LocalTable struct {
	// Number of 8-byte slots the function needs: one per parameter and one per declaration.
	Slots   int
	offsets map[NameID]int
}

func NewLocalTable() *LocalTable {
	return &LocalTable{offsets: make(map[NameID]int)}
}

// Bind records the stack offset currently holding name.
func (t *LocalTable) Bind(name NameID, offset int) {
	t.offsets[name] = offset
}

func (t *LocalTable) Offset(name NameID) (int, bool) {
	offset, ok := t.offsets[name]
	return offset, ok
}

func (t *LocalTable) Reset() {
	clear(t.offsets)
}

// Context is everything the front-end hands to the back-end.
type Context struct {
	Root   *Node
	Names  *NameTable
	Locals []*LocalTable // indexed by function position in the program spine
}

func NewContext() *Context {
	return &Context{Names: NewNameTable()}
}
