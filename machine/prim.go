package machine

import (
	"fmt"

	"github.com/reduceron-vm/reduceron/atom"
	"github.com/reduceron-vm/reduceron/device"
)

// applyPrim fires when S[top] is INT and S[top-1] is PRI (spec §4.4).
// SEQ is spliced directly; any other primitive either fires (if its
// second operand is already INT, or it is EMIT/EMITINT whose second
// operand is the continuation and need not be INT) or triggers a swap-and-descend that
// makes the unevaluated operand the new top so the next dispatch
// iteration can reduce it.
func (m *Machine) applyPrim() (halted bool, err error) {
	top := m.s.top()
	p := m.s.at(1)
	if !p.IsPri() {
		panic(fmt.Sprintf("machine: applyPrim: S[top-1] = %v, want PRI", p))
	}
	pid := p.PriID()

	if pid == atom.SEQ {
		m.seqSplice()
		m.primCount++
		return false, nil
	}

	second := m.s.at(2)
	if second.IsInt() || pid == atom.EMIT || pid == atom.EMITINT {
		var a, b atom.Atom
		if p.PriSwap() {
			a, b = second, top
		} else {
			a, b = top, second
		}
		c := m.s.atOr(3, atom.Int(0))

		result, halt, err := evalPrim(m.device, pid, a, b, c)
		if err != nil {
			return false, err
		}
		m.s.setAt(2, result)
		m.s.truncate(m.s.len() - int(p.PriArity()))
		m.primCount++
		return halt, nil
	}

	m.s.setAt(1, p.WithSwapToggled())
	m.s.setAt(0, second)
	m.s.setAt(2, top)
	m.swapCount++
	return false, nil
}

// seqSplice implements SEQ's "force e, discard it, continue with k"
// protocol: S[top] is e already reduced to INT, S[top-1] is the SEQ
// PRI, S[top-2] is k. The splice promotes k to the new top and drops
// one stack slot, discarding the PRI (e's INT value is left one slot
// below the new top, inert, exactly as the reference emulator leaves
// it: nothing ever reads that slot again).
func (m *Machine) seqSplice() {
	k := m.s.at(2)
	e := m.s.top()
	m.s.setAt(1, k)
	m.s.setAt(2, e)
	m.s.truncate(m.s.len() - 1)
}

func boolCon(b bool) atom.Atom {
	if b {
		return atom.Con(0, 1)
	}
	return atom.Con(0, 0)
}

// evalPrim fires one primitive (spec §4.4's table). c is only read by
// ST32 (the continuation atom returned unevaluated); the PRS
// speculation path passes b again as c, which binary primitives ignore.
func evalPrim(dev device.Device, p atom.Prim, a, b, c atom.Atom) (result atom.Atom, halted bool, err error) {
	switch p {
	case atom.ADD:
		return atom.Int(a.Int() + b.Int()), false, nil
	case atom.SUB:
		return atom.Int(a.Int() - b.Int()), false, nil
	case atom.AND:
		return atom.Int(a.Int() & b.Int()), false, nil
	case atom.EQ:
		return boolCon(a.Int() == b.Int()), false, nil
	case atom.NEQ:
		return boolCon(a.Int() != b.Int()), false, nil
	case atom.LEQ:
		return boolCon(a.Int() <= b.Int()), false, nil
	case atom.EMIT:
		if err := dev.Emit(byte(a.Int())); err != nil {
			return atom.Atom{}, false, err
		}
		return b, false, nil
	case atom.EMITINT:
		if err := dev.EmitInt(a.Int()); err != nil {
			return atom.Atom{}, false, err
		}
		return b, false, nil
	case atom.ST32:
		if err := dev.Store(a.Int(), b.Int()); err != nil {
			return atom.Atom{}, false, err
		}
		return c, false, nil
	case atom.LD32:
		n, err := dev.Load(a.Int())
		if err != nil {
			return atom.Atom{}, false, err
		}
		return atom.Int(n), n < 0, nil
	default:
		panic(fmt.Sprintf("machine: evalPrim: %s cannot fire as a binary redex", p))
	}
}
