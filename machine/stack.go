package machine

import (
	"fmt"

	"github.com/reduceron-vm/reduceron/atom"
)

// stack is the fixed-capacity value stack S. It is a thin wrapper
// over a slice preallocated to a profile's bound; every accessor that
// can be driven by corrupted machine state panics rather than letting
// Go's own slice bounds check produce an unattributed panic, matching
// the teacher's preference (Architecture.Uint/Uintptr) for accessors
// that name the invariant they enforce.
type stack struct {
	data []atom.Atom
}

func newStack(capacity int) stack {
	return stack{data: make([]atom.Atom, 0, capacity)}
}

func (s *stack) len() int { return len(s.data) }

func (s *stack) push(a atom.Atom) { s.data = append(s.data, a) }

func (s *stack) pop() atom.Atom {
	n := len(s.data) - 1
	a := s.data[n]
	s.data = s.data[:n]
	return a
}

func (s *stack) top() atom.Atom { return s.at(0) }

// at returns the atom fromTop slots below the top (0 is the top
// itself). Panics if fromTop names a slot outside the current stack.
func (s *stack) at(fromTop int) atom.Atom {
	i := len(s.data) - 1 - fromTop
	if i < 0 || i >= len(s.data) {
		panic(fmt.Sprintf("machine: stack.at(%d): out of range (len=%d)", fromTop, len(s.data)))
	}
	return s.data[i]
}

// atOr is at's defensive counterpart: it returns fallback instead of
// panicking when fromTop names a slot outside the current stack. Used
// only for applyPrim's third-operand peek (see Design Notes' open
// question on the "sp-4 ? sp-4 : 0" boundary read): that read is
// genuinely defensive and must never itself fail a well-formed
// program, so it cannot share at's panic-on-misuse contract.
func (s *stack) atOr(fromTop int, fallback atom.Atom) atom.Atom {
	i := len(s.data) - 1 - fromTop
	if i < 0 || i >= len(s.data) {
		return fallback
	}
	return s.data[i]
}

func (s *stack) setAt(fromTop int, a atom.Atom) {
	i := len(s.data) - 1 - fromTop
	if i < 0 || i >= len(s.data) {
		panic(fmt.Sprintf("machine: stack.setAt(%d): out of range (len=%d)", fromTop, len(s.data)))
	}
	s.data[i] = a
}

func (s *stack) getAbs(i int) atom.Atom  { return s.data[i] }
func (s *stack) setAbs(i int, a atom.Atom) { s.data[i] = a }

func (s *stack) truncate(n int) { s.data = s.data[:n] }
