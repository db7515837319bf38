package machine

import (
	"fmt"

	"github.com/reduceron-vm/reduceron/asm"
	"github.com/reduceron-vm/reduceron/atom"
	"github.com/reduceron-vm/reduceron/heap"
)

// apply instantiates template t against the caller's invocation
// currently on top of S (spec §4.6). argPtr is computed once, before
// any app is allocated or atom is pushed, so every ARG substitution
// throughout this activation addresses the same, stable frame.
func (m *Machine) apply(t asm.Template) error {
	m.applyCount++
	base := m.heap.Len()
	spOld := m.s.len()
	argPtr := spOld - 2

	for i := len(t.Luts) - 1; i >= 0; i-- {
		m.l = append(m.l, t.Luts[i])
	}

	for _, app := range t.Apps {
		if err := m.instApp(base, argPtr, app); err != nil {
			return err
		}
	}

	for i := len(t.Pushs) - 1; i >= 0; i-- {
		m.s.push(m.inst(base, argPtr, t.Pushs[i]))
	}

	// Slide: the newly pushed atoms (the only things above spOld) are
	// the template's result; shift them down over the caller's FUN
	// and its arity arguments and shrink the frame away.
	n := t.Arity + 1
	newTop := m.s.len()
	for i := spOld; i < newTop; i++ {
		m.s.setAbs(i-n, m.s.getAbs(i))
	}
	m.s.truncate(newTop - n)
	return nil
}

// inst substitutes a template-relative atom against the current
// activation: PTR ids are rebased onto this activation's fresh heap
// region, ARG/REG references resolve against the argument frame and
// register bank (propagating the shared bit via dash), and everything
// else passes through unchanged.
func (m *Machine) inst(base, argPtr int, a atom.Atom) atom.Atom {
	switch a.Tag() {
	case atom.PTR:
		return a.Rebase(base)
	case atom.ARG:
		return atom.Dash(a.Shared(), m.s.getAbs(argPtr-a.ArgIndex()))
	case atom.REG:
		return atom.Dash(a.Shared(), m.r[a.RegIndex()])
	default:
		return a
	}
}

// getPrimArg resolves an ARG/REG atom to its referent without
// propagating the shared bit: PRS's operands flow straight into
// strict integer arithmetic when both happen to already be INT, and
// no heap reference is retained in that case, so there is nothing to
// mark shared (spec §4.6).
func (m *Machine) getPrimArg(argPtr int, a atom.Atom) atom.Atom {
	switch a.Tag() {
	case atom.ARG:
		return m.s.getAbs(argPtr - a.ArgIndex())
	case atom.REG:
		return m.r[a.RegIndex()]
	default:
		return a
	}
}

// instApp allocates one of the template's apps, or — for a PRIM app
// whose two operands are already both INT — speculatively fires the
// primitive at instantiation time and binds the result straight into
// the register bank without touching the heap at all (spec §4.6 PRS).
func (m *Machine) instApp(base, argPtr int, app heap.App) error {
	if app.Tag == heap.PRIM {
		m.prsCandidate++
		a := m.getPrimArg(argPtr, app.Atoms[0])
		b := m.getPrimArg(argPtr, app.Atoms[2])
		pid := app.Atoms[1].PriID()

		if a.IsInt() && b.IsInt() {
			result, _, err := evalPrim(m.device, pid, a, b, b)
			if err != nil {
				return err
			}
			m.prsSuccess++
			m.r[app.Info] = result
			return nil
		}

		atoms := make([]atom.Atom, app.Size)
		for i := 0; i < int(app.Size); i++ {
			atoms[i] = m.inst(base, argPtr, app.Atoms[i])
		}
		addr := m.heap.Alloc(heap.NewAP(false, atoms...))
		m.r[app.Info] = atom.Ptr(false, addr)
		return nil
	}

	atoms := make([]atom.Atom, app.Size)
	for i := 0; i < int(app.Size); i++ {
		atoms[i] = m.inst(base, argPtr, app.Atoms[i])
	}

	switch app.Tag {
	case heap.CASE:
		m.heap.Alloc(heap.NewCase(app.Info, atoms...))
	case heap.AP:
		m.heap.Alloc(heap.NewAP(app.NF, atoms...))
	default:
		panic(fmt.Sprintf("machine: instApp: template app has invalid tag %s", app.Tag))
	}
	return nil
}
