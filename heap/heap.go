// Package heap implements the reducer's application-node heap and its
// two-space copying garbage collector.
//
// The heap is a pair of equal-sized arenas of fixed-size application
// records ("apps"). One arena is live, the other is scratch space for
// the next collection; Collect copies reachable apps from the live
// arena into the scratch arena, swaps them, and never reallocates
// either one.
package heap

import (
	"fmt"

	"github.com/reduceron-vm/reduceron/atom"
)

// Tag identifies what an App represents.
type Tag uint8

const (
	// AP is an ordinary application.
	AP Tag = iota
	// CASE is a scrutinee whose head alternative is chosen via a LUT.
	CASE
	// PRIM is a speculative primitive redex awaiting evaluation.
	PRIM
	// Collected marks a forwarded node between GC phases; it never
	// appears in a live heap outside of Collect itself.
	Collected
)

func (t Tag) String() string {
	switch t {
	case AP:
		return "AP"
	case CASE:
		return "CASE"
	case PRIM:
		return "PRIM"
	case Collected:
		return "COLLECTED"
	default:
		return "INVALID"
	}
}

// MaxSize is the fixed maximum number of atoms an application can
// hold. The reducer core operates with this fixed arity only; see
// spec Non-goals.
const MaxSize = 4

// App is a heap application record: 1 to MaxSize atoms plus metadata.
type App struct {
	Tag   Tag
	Size  uint8
	NF    bool // normal-form flag; ignored (treated as false) for CASE.
	Info  int  // CASE: LUT id. PRIM: result register id. AP: unused.
	Atoms [MaxSize]atom.Atom
}

// NewAP builds an ordinary application node from atoms (1 to 4 of them).
func NewAP(nf bool, atoms ...atom.Atom) App {
	return newApp(AP, nf, 0, atoms)
}

// NewCase builds a CASE node: a scrutinee guarded by LUT id lut.
func NewCase(lut int, atoms ...atom.Atom) App {
	if len(atoms) >= MaxSize {
		panic(fmt.Sprintf("heap: CASE node size %d must be < %d", len(atoms), MaxSize))
	}
	return newApp(CASE, false, lut, atoms)
}

// NewPrim builds a speculative primitive-redex node [a, p, b] whose
// result will be bound to register reg.
func NewPrim(reg int, a, p, b atom.Atom) App {
	return newApp(PRIM, false, reg, []atom.Atom{a, p, b})
}

func newApp(tag Tag, nf bool, info int, atoms []atom.Atom) App {
	if len(atoms) < 1 || len(atoms) > MaxSize {
		panic(fmt.Sprintf("heap: app size %d out of range [1,%d]", len(atoms), MaxSize))
	}
	var app App
	app.Tag = tag
	app.Size = uint8(len(atoms))
	app.NF = nf
	app.Info = info
	copy(app.Atoms[:], atoms)
	return app
}

// normalForm reports whether app needs no update on unwind. CASE
// nodes are never considered normal form regardless of their NF bit
// (Design Notes, "unwind pushes an update entry...").
func (app App) normalForm() bool {
	if app.Tag == CASE {
		return false
	}
	return app.NF
}

func (app App) simple() bool {
	return app.Size == 1 && app.Tag != CASE && (app.Atoms[0].IsInt() || app.Atoms[0].IsCon())
}

// Update records a pending write-back: once the value stack shrinks to
// size <= SAddr with a head-normal atom on top, that prefix must be
// written into heap cell HAddr.
type Update struct {
	SAddr int
	HAddr int
}

// Heap holds the two application arenas and the bump allocator into
// the live one.
type Heap struct {
	cur, next []App
	hp        int
	gcCount   int
}

// New allocates a heap with room for capacity application nodes in
// each of its two arenas.
func New(capacity int) *Heap {
	return &Heap{
		cur:  make([]App, capacity),
		next: make([]App, capacity),
	}
}

// Len returns the number of occupied slots in the live arena.
func (h *Heap) Len() int { return h.hp }

// Cap returns the capacity of each arena.
func (h *Heap) Cap() int { return len(h.cur) }

// GCCount returns the number of collections run so far.
func (h *Heap) GCCount() int { return h.gcCount }

// Get returns the application stored at addr in the live arena.
func (h *Heap) Get(addr int) App { return h.cur[addr] }

// Set overwrites the application stored at addr in the live arena.
// Used by unwind's sharing propagation (dashApp) and by update, both
// of which mutate an already-allocated cell in place rather than
// allocating a new one.
func (h *Heap) Set(addr int, app App) { h.cur[addr] = app }

// Alloc appends app to the live arena and returns its address. The
// caller (machine.Machine) is responsible for ensuring enough headroom
// remains via the dispatch-loop GC gate; Alloc itself does not trigger
// collection, since it may be called mid-instantiation when running a
// collection would be unsafe (see Collect's doc comment).
func (h *Heap) Alloc(app App) int {
	addr := h.hp
	h.cur[addr] = app
	h.hp++
	return addr
}

// Collect runs a Cheney-style copying collection. Every atom in stack
// is a root and is rewritten in place to refer to the new arena (or
// inlined, if it resolved to a simple already-in-normal-form node).
// updates is the pending update-stack: entries whose heap cell was
// forwarded are rewritten to the new address; entries whose heap cell
// was not forwarded (the shared sink became unreachable) are dropped.
// Collect returns the rewritten update slice.
//
// Collect must never run while an application is mid-construction or
// a template instantiation is partway through; the caller (the
// dispatch loop) enforces this by gating collection on the top-of-
// stack atom between iterations, never inside apply/update/unwind.
func (h *Heap) Collect(stack []atom.Atom, updates []Update) []Update {
	gcLow, gcHigh := 0, 0

	var copyChild func(a atom.Atom) atom.Atom
	copyChild = func(a atom.Atom) atom.Atom {
		if !a.IsPtr() {
			return a
		}
		addr := a.PtrAddr()
		app := h.cur[addr]
		if app.Tag == Collected {
			return app.Atoms[0]
		}
		if app.simple() {
			return app.Atoms[0]
		}
		newAddr := gcHigh
		gcHigh++
		h.next[newAddr] = app
		fwd := atom.Ptr(a.Shared(), newAddr)
		var marker App
		marker.Tag = Collected
		marker.Size = 1
		marker.Atoms[0] = fwd
		h.cur[addr] = marker
		return fwd
	}

	for i := range stack {
		stack[i] = copyChild(stack[i])
	}

	for gcLow < gcHigh {
		app := h.next[gcLow]
		for i := 0; i < int(app.Size); i++ {
			app.Atoms[i] = copyChild(app.Atoms[i])
		}
		h.next[gcLow] = app
		gcLow++
	}

	rewritten := updates[:0]
	for _, u := range updates {
		app := h.cur[u.HAddr]
		if app.Tag == Collected {
			rewritten = append(rewritten, Update{SAddr: u.SAddr, HAddr: app.Atoms[0].PtrAddr()})
		}
	}

	h.cur, h.next = h.next, h.cur
	h.hp = gcHigh
	h.gcCount++
	return rewritten
}
