package interp

import "github.com/kestrel-lang/kestrel/mir"

// GlobalKey identifies one memoized constant, static, or promoted
// rvalue. Substitutions participate in the key so each monomorphization
// of a generic constant is evaluated once.
type GlobalKey struct {
	Def      mir.DefId
	Substs   string // mir.Substs.Key()
	Promoted int64  // index into Body.Promoted, -1 for the item itself
}

// NoPromoted marks a key that refers to the item body rather than one
// of its promoted rvalues.
const NoPromoted int64 = -1

// globalEntry is the cache slot for one global. The entry is inserted
// before its frame is pushed; initialized flips when the frame
// completes. Reading an uninitialized entry means the dependency graph
// has a cycle.
type globalEntry struct {
	ptr         Pointer
	initialized bool
	mutable     bool // true only for mutable statics, which stay unfrozen
}
