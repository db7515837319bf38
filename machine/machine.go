// Package machine implements the reducer core: the dispatch loop that
// unwinds applications, applies function templates (with
// primitive-redex speculation), updates shared redexes, selects case
// alternatives, and fires primitives, until the program reduces to an
// integer normal form.
//
// Everything here runs single-threaded and to completion within one
// dispatch iteration; a Machine is never reentrant (see spec §5) and
// must not be shared across goroutines.
package machine

import (
	"fmt"

	"github.com/reduceron-vm/reduceron/asm"
	"github.com/reduceron-vm/reduceron/atom"
	"github.com/reduceron-vm/reduceron/device"
	"github.com/reduceron-vm/reduceron/heap"
	"github.com/reduceron-vm/reduceron/profile"
)

// numRegisters is the fixed size of the speculation register bank (§2
// System Overview: "a small fixed-size array (8 slots)").
const numRegisters = 8

// Machine holds the four stacks, the two-space heap, and the
// immutable code array of a single reduction run.
type Machine struct {
	code    []asm.Template
	heap    *heap.Heap
	device  device.Device
	profile profile.Profile

	s stack          // value stack
	u []heap.Update  // update stack
	l []int          // LUT stack
	r [numRegisters]atom.Atom

	swapCount, primCount, unwindCount, updateCount, applyCount, selectCount int
	prsSuccess, prsCandidate                                                int
}

// New builds a Machine over code, ready to reduce template 0 (main).
// It fails if code is empty or exceeds the profile's template bound;
// both are load-time errors, not protocol violations (spec §7).
func New(code []asm.Template, p profile.Profile, dev device.Device) (*Machine, error) {
	if len(code) == 0 {
		return nil, fmt.Errorf("machine: numTemplates == 0")
	}
	if len(code) > p.MaxTemplates {
		return nil, fmt.Errorf("machine: %d templates exceeds profile %q's bound of %d", len(code), p.Name, p.MaxTemplates)
	}
	m := &Machine{
		code:    code,
		heap:    heap.New(p.MaxHeapApps),
		device:  dev,
		profile: p,
		u:       make([]heap.Update, 0, p.MaxStack),
		l:       make([]int, 0, p.MaxStack),
	}
	m.s = newStack(p.MaxStack)
	m.s.push(atom.Fun(true, 0, 0))
	return m, nil
}

// Outcome is the result of a completed Run. Halted is set when the
// program terminated early via a negative LD32 result (spec §5); in
// that case Value is meaningless and the caller should treat this as
// a clean exit regardless of the stack's contents at the time.
type Outcome struct {
	Value  int32
	Halted bool
}

// Counters reports the tick counts and PRS statistics a -v report
// wants (spec §6 CLI surface).
type Counters struct {
	Swap, Prim, Unwind, Update, Apply, Select int
	PRSSuccess, PRSCandidate                  int
	GC                                        int
}

// Counters returns the machine's running tallies.
func (m *Machine) Counters() Counters {
	return Counters{
		Swap:         m.swapCount,
		Prim:         m.primCount,
		Unwind:       m.unwindCount,
		Update:       m.updateCount,
		Apply:        m.applyCount,
		Select:       m.selectCount,
		PRSSuccess:   m.prsSuccess,
		PRSCandidate: m.prsCandidate,
		GC:           m.heap.GCCount(),
	}
}

// Run drives the dispatch loop to completion: termination, a halting
// LD32, or a fatal protocol/resource error (spec §4.1, §5).
func (m *Machine) Run() (Outcome, error) {
	for {
		if m.s.len() == 1 && m.s.top().IsInt() {
			return Outcome{Value: m.s.top().Int()}, nil
		}
		if err := m.checkOverflow(); err != nil {
			return Outcome{}, err
		}
		if m.shouldCollect() {
			m.collect()
		}

		a := m.s.top()
		if a.IsPtr() {
			m.unwind(a.Shared(), a.PtrAddr())
			continue
		}
		if len(m.u) > 0 {
			top := m.u[len(m.u)-1]
			if atom.Arity(a) > m.s.len()-top.SAddr {
				m.update(a, top.SAddr, top.HAddr)
				continue
			}
		}

		switch a.Tag() {
		case atom.INT:
			halted, err := m.applyPrim()
			if err != nil {
				return Outcome{}, err
			}
			if halted {
				return Outcome{Halted: true}, nil
			}
		case atom.CON:
			m.caseSelect(int(a.ConAlt()))
		case atom.FUN:
			if err := m.apply(m.code[a.FunID()]); err != nil {
				return Outcome{}, err
			}
		default:
			panic(fmt.Sprintf("machine: dispatch: atom %v has no dispatch rule", a))
		}
	}
}

// checkOverflow is the single gate the Design Notes ask for: it is
// the only place any of the three stacks' bounds are checked, run
// once at the top of every iteration.
func (m *Machine) checkOverflow() error {
	margin := m.profile.StackMargin
	if m.s.len() >= m.profile.MaxStack-margin {
		return fmt.Errorf("machine: value stack overflow (depth %d, bound %d)", m.s.len(), m.profile.MaxStack)
	}
	if len(m.u) >= m.profile.MaxStack-margin {
		return fmt.Errorf("machine: update stack overflow (depth %d, bound %d)", len(m.u), m.profile.MaxStack)
	}
	if len(m.l) >= m.profile.MaxStack-margin {
		return fmt.Errorf("machine: LUT stack overflow (depth %d, bound %d)", len(m.l), m.profile.MaxStack)
	}
	return nil
}

// shouldCollect implements the canCollect gate: GC only runs when
// heap pressure is high AND the current top is safe to collect under
// (a PTR, or a FUN whose original flag is set; the FUN atoms the
// machine builds itself, for main and for case alternatives, are
// always original — see atom.Fun).
func (m *Machine) shouldCollect() bool {
	if m.heap.Cap()-m.heap.Len() >= m.profile.GCMargin {
		return false
	}
	a := m.s.top()
	return a.IsPtr() || (a.IsFun() && a.FunOriginal())
}

func (m *Machine) collect() {
	m.u = m.heap.Collect(m.s.data, m.u)
}
