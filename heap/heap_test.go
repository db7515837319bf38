package heap

import (
	"testing"

	"github.com/reduceron-vm/reduceron/atom"
)

func TestAllocAndGet(t *testing.T) {
	h := New(8)
	app := NewAP(false, atom.Fun(true, 1, 0), atom.Int(3))
	addr := h.Alloc(app)
	if addr != 0 {
		t.Fatalf("first Alloc address = %d, want 0", addr)
	}
	if got := h.Get(addr); got.Size != 2 || got.Atoms[1].Int() != 3 {
		t.Fatalf("Get(0) = %+v, want the app just allocated", got)
	}
	if h.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", h.Len())
	}
}

func TestNewCaseRejectsFullWidth(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic building a 4-wide CASE node")
		}
	}()
	NewCase(0, atom.Int(1), atom.Int(2), atom.Int(3), atom.Int(4))
}

func TestNormalFormIgnoresNFOnCase(t *testing.T) {
	c := NewCase(1, atom.Int(1))
	c.NF = true
	if c.normalForm() {
		t.Fatal("CASE node must never report normalForm() true")
	}
	ap := NewAP(true, atom.Int(1))
	if !ap.normalForm() {
		t.Fatal("AP node with NF=true must report normalForm() true")
	}
}

// TestCollectCopiesReachableAndDropsGarbage builds a small graph:
//
//	root -> AP[PTR(live), INT(0)]
//	live  -> AP[INT(9), INT(9)]
//	dead  -> AP[INT(1), INT(1)]  (unreferenced, must not survive GC)
//
// and checks that only the reachable chain survives, at compacted
// addresses, and that the root atom on the stack is rewritten in
// place to point at the new address.
func TestCollectCopiesReachableAndDropsGarbage(t *testing.T) {
	h := New(8)

	dead := h.Alloc(NewAP(false, atom.Int(1), atom.Int(1))) // 2-wide: not "simple", survives as garbage if reachable
	live := h.Alloc(NewAP(false, atom.Int(9), atom.Int(9)))
	root := h.Alloc(NewAP(false, atom.Ptr(false, live), atom.Int(0)))
	_ = dead

	stack := []atom.Atom{atom.Ptr(false, root)}

	rewritten := h.Collect(stack, nil)
	if rewritten != nil {
		t.Fatalf("Collect with no updates returned %v, want nil/empty", rewritten)
	}

	if h.Len() != 2 {
		t.Fatalf("Len() after GC = %d, want 2 (root+live only, dead dropped)", h.Len())
	}

	newRootAddr := stack[0].PtrAddr()
	rootApp := h.Get(newRootAddr)
	liveAddr := rootApp.Atoms[0].PtrAddr()
	liveApp := h.Get(liveAddr)
	if liveApp.Atoms[0].Int() != 9 {
		t.Fatalf("live app after GC = %+v, want atom holding INT(9)", liveApp)
	}
}

func TestCollectInlinesSimpleNodes(t *testing.T) {
	h := New(8)
	simple := h.Alloc(NewAP(true, atom.Int(42)))
	stack := []atom.Atom{atom.Ptr(false, simple)}

	h.Collect(stack, nil)

	if !stack[0].IsInt() || stack[0].Int() != 42 {
		t.Fatalf("Collect should inline a 1-wide INT app into the stack root, got %v", stack[0])
	}
	if h.Len() != 0 {
		t.Fatalf("Len() after inlining-only GC = %d, want 0", h.Len())
	}
}

func TestCollectPreservesSharedBitFromFirstForward(t *testing.T) {
	h := New(8)
	target := h.Alloc(NewAP(false, atom.Int(5), atom.Int(5)))
	// Two roots pointing at the same cell, first unshared then shared.
	stack := []atom.Atom{
		atom.Ptr(false, target),
		atom.Ptr(true, target),
	}

	h.Collect(stack, nil)

	if stack[0].Shared() {
		t.Fatalf("first root's forwarded atom should keep its own shared=false, got %v", stack[0])
	}
	if stack[0].PtrAddr() != stack[1].PtrAddr() {
		t.Fatalf("both roots must forward to the same new address")
	}
	if stack[1].Shared() {
		t.Fatalf("second root must receive the forwarding atom recorded by the first visit (shared=false), got %v", stack[1])
	}
}

func TestCollectRewritesAndDropsUpdates(t *testing.T) {
	h := New(8)
	kept := h.Alloc(NewAP(false, atom.Int(1), atom.Int(1)))
	garbage := h.Alloc(NewAP(false, atom.Int(2), atom.Int(2)))

	stack := []atom.Atom{atom.Ptr(false, kept)}
	updates := []Update{
		{SAddr: 3, HAddr: kept},
		{SAddr: 5, HAddr: garbage},
	}

	got := h.Collect(stack, updates)
	if len(got) != 1 {
		t.Fatalf("Collect(updates) returned %d entries, want 1 (garbage entry dropped)", len(got))
	}
	if got[0].SAddr != 3 {
		t.Fatalf("surviving update SAddr = %d, want 3", got[0].SAddr)
	}
	if got[0].HAddr != stack[0].PtrAddr() {
		t.Fatalf("surviving update HAddr = %d, want rewritten addr %d", got[0].HAddr, stack[0].PtrAddr())
	}
}

func TestGCCountIncrements(t *testing.T) {
	h := New(4)
	if h.GCCount() != 0 {
		t.Fatalf("GCCount() on fresh heap = %d, want 0", h.GCCount())
	}
	h.Collect(nil, nil)
	if h.GCCount() != 1 {
		t.Fatalf("GCCount() after one Collect = %d, want 1", h.GCCount())
	}
}
