package machine

import (
	"bytes"
	"strings"
	"testing"

	"github.com/reduceron-vm/reduceron/asm"
	"github.com/reduceron-vm/reduceron/atom"
	"github.com/reduceron-vm/reduceron/device"
	"github.com/reduceron-vm/reduceron/heap"
	"github.com/reduceron-vm/reduceron/profile"
)

func newTestDevice(stdin string) (*device.Local, *bytes.Buffer) {
	out := &bytes.Buffer{}
	return device.NewLocal(16, strings.NewReader(stdin), out, false, nil), out
}

// main = (+) 3 2, the template shape used throughout asm's own tests.
func TestRunPureArithmetic(t *testing.T) {
	code := []asm.Template{
		{
			Name:  "main",
			Arity: 0,
			Pushs: []atom.Atom{atom.Int(3), atom.Pri(2, false, atom.ADD), atom.Int(2)},
		},
	}
	dev, _ := newTestDevice("")
	m, err := New(code, profile.Small, dev)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	out, err := m.Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Halted || out.Value != 5 {
		t.Fatalf("Run() = %+v, want Value=5", out)
	}
	c := m.Counters()
	if c.Prim != 1 {
		t.Fatalf("Prim = %d, want 1", c.Prim)
	}
	if c.GC != 0 {
		t.Fatalf("GC = %d, want 0", c.GC)
	}
}

// main = case (3 <= 3) of { False -> 0; True -> 1 }
func TestRunBooleanCaseSelection(t *testing.T) {
	leq := heap.NewCase(1, atom.Int(3), atom.Pri(2, false, atom.LEQ), atom.Int(3))
	code := []asm.Template{
		{
			Name:  "main",
			Arity: 0,
			Apps:  []heap.App{leq},
			Pushs: []atom.Atom{atom.Ptr(false, 0)},
		},
		{Name: "false", Arity: 0, Pushs: []atom.Atom{atom.Int(0)}},
		{Name: "true", Arity: 0, Pushs: []atom.Atom{atom.Int(1)}},
	}
	dev, _ := newTestDevice("")
	m, err := New(code, profile.Small, dev)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	out, err := m.Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Halted || out.Value != 1 {
		t.Fatalf("Run() = %+v, want Value=1 (True alternative)", out)
	}
	if c := m.Counters(); c.Select != 1 {
		t.Fatalf("Select = %d, want 1", c.Select)
	}
}

// main = let x = (+) 1 2 in (+) x x. x must be computed once and shared
// back through an update, not recomputed for the second occurrence.
func TestRunSharedRedexUpdatedOnce(t *testing.T) {
	xThunk := heap.NewAP(false, atom.Int(1), atom.Pri(2, false, atom.ADD), atom.Int(2))
	code := []asm.Template{
		{
			Name:  "main",
			Arity: 0,
			Apps:  []heap.App{xThunk},
			Pushs: []atom.Atom{atom.Ptr(true, 0), atom.Pri(2, false, atom.ADD), atom.Ptr(true, 0)},
		},
	}
	dev, _ := newTestDevice("")
	m, err := New(code, profile.Small, dev)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	out, err := m.Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Halted || out.Value != 6 {
		t.Fatalf("Run() = %+v, want Value=6 ((1+2)+(1+2) sharing x)", out)
	}
	c := m.Counters()
	if c.Prim != 2 {
		t.Fatalf("Prim = %d, want 2 (x computed once, outer add once)", c.Prim)
	}
	if c.Update != 1 {
		t.Fatalf("Update = %d, want 1 (x's thunk updated exactly once)", c.Update)
	}
}

// main = ld32 0 0, with standard input exhausted: Load(0) reports -1 on
// EOF and the machine must halt cleanly rather than treating -1 as an
// ordinary result.
func TestRunHaltsOnNegativeLD32(t *testing.T) {
	code := []asm.Template{
		{
			Name:  "main",
			Arity: 0,
			Pushs: []atom.Atom{atom.Int(0), atom.Pri(2, false, atom.LD32), atom.Int(0)},
		},
	}
	dev, _ := newTestDevice("")
	m, err := New(code, profile.Small, dev)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	out, err := m.Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !out.Halted {
		t.Fatalf("Run() = %+v, want Halted=true", out)
	}
}

// A chain of templates each allocates one heap cell nothing ever
// references, forcing Collect to run under a deliberately tight heap
// before the final template can still instantiate its own result.
func TestRunCollectsGarbageUnderPressure(t *testing.T) {
	garbageStep := func(next int, garbage int32) asm.Template {
		return asm.Template{
			Name:  "step",
			Arity: 0,
			Apps:  []heap.App{heap.NewAP(true, atom.Int(garbage))},
			Pushs: []atom.Atom{atom.Fun(true, 0, next)},
		}
	}
	code := []asm.Template{
		garbageStep(1, 111),
		garbageStep(2, 222),
		garbageStep(3, 333),
		garbageStep(4, 444),
		garbageStep(5, 555),
		{Name: "final", Arity: 0, Pushs: []atom.Atom{atom.Int(99)}},
	}
	p := profile.Profile{
		Name:         "gc-test",
		MaxHeapApps:  6,
		MaxStack:     64,
		MaxTemplates: 10,
		GCMargin:     2,
		StackMargin:  8,
	}
	dev, _ := newTestDevice("")
	m, err := New(code, p, dev)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	out, err := m.Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Halted || out.Value != 99 {
		t.Fatalf("Run() = %+v, want Value=99", out)
	}
	if c := m.Counters(); c.GC == 0 {
		t.Fatalf("GC = %d, want at least one collection to have run", c.GC)
	}
}

// SEQ splices "(!) e k" to k once e is in normal form; this directly
// drives applyPrim's EMIT and SEQ branches to confirm e's effect (the
// byte written to the device) happens before k is exposed, and that
// the splice leaves k, not e, on top.
func TestApplyPrimSeqForcesEmitBeforeReturningK(t *testing.T) {
	code := []asm.Template{{Name: "main", Arity: 0}}
	dev, out := newTestDevice("")
	m, err := New(code, profile.Small, dev)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// Stack built by hand to represent: k=777, SEQ, e-in-progress =
	// EMIT('A', 999). Bottom to top: [777, SEQ, 999, EMIT, 65].
	m.s.truncate(0)
	m.s.push(atom.Int(777))
	m.s.push(atom.Pri(1, false, atom.SEQ))
	m.s.push(atom.Int(999))
	m.s.push(atom.Pri(2, false, atom.EMIT))
	m.s.push(atom.Int(65))

	if _, err := m.applyPrim(); err != nil {
		t.Fatalf("applyPrim (EMIT): %v", err)
	}
	if out.String() != "A" {
		t.Fatalf("device output = %q, want %q (EMIT must fire before SEQ splices)", out.String(), "A")
	}
	if m.s.len() != 3 || !m.s.top().IsInt() || m.s.top().Int() != 999 {
		t.Fatalf("stack after EMIT = %+v, want top INT(999)", m.s.data)
	}

	if _, err := m.applyPrim(); err != nil {
		t.Fatalf("applyPrim (SEQ): %v", err)
	}
	if m.s.len() != 2 {
		t.Fatalf("stack len after SEQ splice = %d, want 2", m.s.len())
	}
	if !m.s.top().IsInt() || m.s.top().Int() != 777 {
		t.Fatalf("top after SEQ splice = %v, want INT(777) (k)", m.s.top())
	}
}
