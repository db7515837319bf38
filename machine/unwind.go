package machine

import (
	"github.com/reduceron-vm/reduceron/atom"
	"github.com/reduceron-vm/reduceron/heap"
)

// unwind pushes the contents of the heap application at addr onto S,
// registering a pending update first if the application was reached
// through a shared pointer and is not already in normal form (spec
// §4.2). CASE applications are never treated as normal form,
// regardless of their NF bit: heap.App.Tag == heap.CASE always forces
// the update-stack push when sh is set.
func (m *Machine) unwind(sh bool, addr int) {
	m.unwindCount++
	app := m.heap.Get(addr)

	normal := app.Tag != heap.CASE && app.NF
	if sh && !normal {
		m.u = append(m.u, heap.Update{SAddr: m.s.len(), HAddr: addr})
	}

	if sh {
		for i := 0; i < int(app.Size); i++ {
			if app.Atoms[i].IsPtr() {
				app.Atoms[i] = app.Atoms[i].WithShared()
			}
		}
		m.heap.Set(addr, app)
	}

	if app.Tag == heap.CASE {
		m.l = append(m.l, app.Info)
	}

	m.s.pop()
	for i := int(app.Size) - 1; i >= 0; i-- {
		m.s.push(app.Atoms[i])
	}
}

// update writes the head-normal-form prefix of S (of length
// 1+|S|-saddr, with top as its head) back into heap cell haddr,
// chaining through fresh indirection cells when that prefix is wider
// than the heap's fixed 4-atom application capacity (spec §4.3).
func (m *Machine) update(top atom.Atom, saddr, haddr int) {
	m.updateCount++
	length := 1 + m.s.len() - saddr
	p := m.s.len() - 2

	for {
		if length < heap.MaxSize {
			if length <= 0 {
				panic("machine: update: zero (or negative) sized app updated")
			}
			m.heap.Set(haddr, m.buildUpdateApp(top, p, length))
			m.u = m.u[:len(m.u)-1]
			return
		}
		app := m.buildUpdateApp(top, p, heap.MaxSize)
		newAddr := m.heap.Alloc(app)
		p -= heap.MaxSize - 1
		length -= heap.MaxSize - 1
		top = atom.Ptr(true, newAddr)
	}
}

// buildUpdateApp assembles one AP[top, S[p], S[p-1], ...] chunk of
// length atoms, marking each stack entry it copies as shared (it is
// now referenced from both the stack and the heap) and writing that
// mark back onto the stack itself.
func (m *Machine) buildUpdateApp(top atom.Atom, p, length int) heap.App {
	atoms := make([]atom.Atom, length)
	atoms[0] = top
	j := p
	for i := 1; i < length; i++ {
		v := atom.Dash(true, m.s.getAbs(j))
		m.s.setAbs(j, v)
		atoms[i] = v
		j--
	}
	return heap.NewAP(true, atoms...)
}

// caseSelect replaces the CON atom on top of S with the FUN atom of
// the alternative it selects, resolved by adding the constructor's
// index into the LUT on top of L (spec §4.5).
func (m *Machine) caseSelect(index int) {
	m.selectCount++
	if len(m.l) == 0 {
		panic("machine: caseSelect: LUT stack is empty")
	}
	lut := m.l[len(m.l)-1]
	m.l = m.l[:len(m.l)-1]
	m.s.setAt(0, atom.Fun(true, 0, lut+index))
}
