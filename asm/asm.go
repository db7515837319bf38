// Package asm parses the textual template-file format into the
// []Template array the machine package consumes. The grammar is small
// and fixed (see SPEC_FULL.md §7), so parsing is a hand-rolled
// recursive-descent reader over text/scanner.Scanner rather than a
// parser-combinator or grammar-generator dependency — the same choice
// the teacher makes when it hand-parses binary structures field by
// field instead of reaching for a framework.
package asm

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/scanner"

	"github.com/reduceron-vm/reduceron/atom"
	"github.com/reduceron-vm/reduceron/heap"
)

const (
	maxNameLen = 128
	maxLuts    = 2
	maxPushs   = 8
	maxApps    = 4
)

// Template is one compiled code unit: how to expand a function
// application of the given Arity into heap Apps and stack Pushs.
type Template struct {
	Name  string
	Arity int
	Luts  []int
	Pushs []atom.Atom
	Apps  []heap.App
}

var primNames = map[string]atom.Prim{
	"emit":    atom.EMIT,
	"emitInt": atom.EMITINT,
	"(!)":     atom.SEQ,
	"(+)":     atom.ADD,
	"(-)":     atom.SUB,
	"(==)":    atom.EQ,
	"(/=)":    atom.NEQ,
	"(<=)":    atom.LEQ,
	"(.&.)":   atom.AND,
	"st32":    atom.ST32,
	"ld32":    atom.LD32,
}

// Parse reads a sequence of templates from r. Template 0 is the
// program's entry point. Parse returns an error — never a panic — on
// any malformed input; this is an operator-facing failure, not a
// protocol violation.
func Parse(r io.Reader) ([]Template, error) {
	p := &parser{}
	p.sc.Init(r)
	p.sc.Mode = scanner.ScanIdents | scanner.ScanInts | scanner.ScanStrings | scanner.ScanComments | scanner.SkipComments
	p.sc.Filename = "template"
	p.advance()

	var templates []Template
	for p.tok != scanner.EOF {
		t, err := p.parseTemplate()
		if err != nil {
			return nil, err
		}
		templates = append(templates, t)
	}
	if len(templates) == 0 {
		return nil, fmt.Errorf("asm: empty template stream (numTemplates == 0)")
	}
	return templates, nil
}

type parser struct {
	sc  scanner.Scanner
	tok rune
}

func (p *parser) advance() { p.tok = p.sc.Scan() }

func (p *parser) pos() scanner.Position { return p.sc.Position }

func (p *parser) errf(format string, args ...interface{}) error {
	return fmt.Errorf("asm: %s: %s", p.pos(), fmt.Sprintf(format, args...))
}

func (p *parser) expect(tok rune, what string) error {
	if p.tok != tok {
		return p.errf("expected %s, got %q", what, p.sc.TokenText())
	}
	p.advance()
	return nil
}

func (p *parser) expectIdent(name string) error {
	if p.tok != scanner.Ident || p.sc.TokenText() != name {
		return p.errf("expected %q, got %q", name, p.sc.TokenText())
	}
	p.advance()
	return nil
}

func (p *parser) parseName() (string, error) {
	if p.tok != scanner.String {
		return "", p.errf("expected quoted template name, got %q", p.sc.TokenText())
	}
	s, err := strconv.Unquote(p.sc.TokenText())
	if err != nil {
		return "", p.errf("malformed string literal %q: %v", p.sc.TokenText(), err)
	}
	if len(s) > maxNameLen {
		return "", p.errf("template name %q exceeds %d bytes", s, maxNameLen)
	}
	p.advance()
	return s, nil
}

func (p *parser) parseInt() (int, error) {
	neg := false
	if p.tok == '-' {
		neg = true
		p.advance()
	}
	if p.tok != scanner.Int {
		return 0, p.errf("expected integer, got %q", p.sc.TokenText())
	}
	n, err := strconv.Atoi(p.sc.TokenText())
	if err != nil {
		return 0, p.errf("malformed integer %q: %v", p.sc.TokenText(), err)
	}
	p.advance()
	if neg {
		n = -n
	}
	return n, nil
}

func (p *parser) parseBool() (bool, error) {
	if p.tok != scanner.Ident {
		return false, p.errf("expected True/False, got %q", p.sc.TokenText())
	}
	switch p.sc.TokenText() {
	case "True":
		p.advance()
		return true, nil
	case "False":
		p.advance()
		return false, nil
	default:
		return false, p.errf("expected True/False, got %q", p.sc.TokenText())
	}
}

// parseParenInt parses "( n )".
func (p *parser) parseParenInt() (int, error) {
	if err := p.expect('(', "("); err != nil {
		return 0, err
	}
	n, err := p.parseInt()
	if err != nil {
		return 0, err
	}
	if err := p.expect(')', ")"); err != nil {
		return 0, err
	}
	return n, nil
}

func (p *parser) parseTemplate() (Template, error) {
	var t Template
	if err := p.expect('(', "("); err != nil {
		return t, err
	}
	name, err := p.parseName()
	if err != nil {
		return t, err
	}
	if err := p.expect(',', ","); err != nil {
		return t, err
	}
	arity, err := p.parseInt()
	if err != nil {
		return t, err
	}
	if err := p.expect(',', ","); err != nil {
		return t, err
	}
	luts, err := p.parseIntList(maxLuts)
	if err != nil {
		return t, err
	}
	if err := p.expect(',', ","); err != nil {
		return t, err
	}
	pushs, err := p.parseAtomList(maxPushs)
	if err != nil {
		return t, err
	}
	if err := p.expect(',', ","); err != nil {
		return t, err
	}
	apps, err := p.parseAppList(maxApps)
	if err != nil {
		return t, err
	}
	if err := p.expect(')', ")"); err != nil {
		return t, err
	}

	t.Name = name
	t.Arity = arity
	t.Luts = luts
	t.Pushs = pushs
	t.Apps = apps
	return t, nil
}

func (p *parser) parseIntList(max int) ([]int, error) {
	if err := p.expect('[', "["); err != nil {
		return nil, err
	}
	var out []int
	if p.tok == ']' {
		p.advance()
		return out, nil
	}
	for {
		n, err := p.parseInt()
		if err != nil {
			return nil, err
		}
		out = append(out, n)
		if len(out) > max {
			return nil, p.errf("lut_list exceeds %d elements", max)
		}
		if p.tok == ',' {
			p.advance()
			continue
		}
		break
	}
	if err := p.expect(']', "]"); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *parser) parseAtomList(max int) ([]atom.Atom, error) {
	if err := p.expect('[', "["); err != nil {
		return nil, err
	}
	var out []atom.Atom
	if p.tok == ']' {
		p.advance()
		return out, nil
	}
	for {
		a, err := p.parseAtom()
		if err != nil {
			return nil, err
		}
		out = append(out, a)
		if len(out) > max {
			return nil, p.errf("atom list exceeds %d elements", max)
		}
		if p.tok == ',' {
			p.advance()
			continue
		}
		break
	}
	if err := p.expect(']', "]"); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *parser) parseAtom() (atom.Atom, error) {
	if p.tok != scanner.Ident {
		return atom.Atom{}, p.errf("expected atom keyword, got %q", p.sc.TokenText())
	}
	kind := p.sc.TokenText()
	p.advance()

	switch kind {
	case "INT":
		n, err := p.parseParenInt()
		if err != nil {
			return atom.Atom{}, err
		}
		return atom.Int(int32(n)), nil

	case "ARG":
		sh, err := p.parseBool()
		if err != nil {
			return atom.Atom{}, err
		}
		i, err := p.parseParenInt()
		if err != nil {
			return atom.Atom{}, err
		}
		return atom.Arg(sh, i), nil

	case "VAR":
		sh, err := p.parseBool()
		if err != nil {
			return atom.Atom{}, err
		}
		i, err := p.parseParenInt()
		if err != nil {
			return atom.Atom{}, err
		}
		return atom.Ptr(sh, i), nil

	case "REG":
		sh, err := p.parseBool()
		if err != nil {
			return atom.Atom{}, err
		}
		i, err := p.parseParenInt()
		if err != nil {
			return atom.Atom{}, err
		}
		return atom.Reg(sh, i), nil

	case "CON":
		a, err := p.parseParenInt()
		if err != nil {
			return atom.Atom{}, err
		}
		i, err := p.parseParenInt()
		if err != nil {
			return atom.Atom{}, err
		}
		return atom.Con(uint8(a), uint8(i)), nil

	case "FUN":
		orig, err := p.parseBool()
		if err != nil {
			return atom.Atom{}, err
		}
		a, err := p.parseParenInt()
		if err != nil {
			return atom.Atom{}, err
		}
		id, err := p.parseParenInt()
		if err != nil {
			return atom.Atom{}, err
		}
		return atom.Fun(orig, uint8(a), id), nil

	case "PRI":
		if err := p.expect('(', "("); err != nil {
			return atom.Atom{}, err
		}
		a, err := p.parseInt()
		if err != nil {
			return atom.Atom{}, err
		}
		if err := p.expect(')', ")"); err != nil {
			return atom.Atom{}, err
		}
		if p.tok != scanner.String {
			return atom.Atom{}, p.errf("expected quoted primitive name, got %q", p.sc.TokenText())
		}
		raw, err := strconv.Unquote(p.sc.TokenText())
		if err != nil {
			return atom.Atom{}, p.errf("malformed primitive name %q: %v", p.sc.TokenText(), err)
		}
		p.advance()
		swap := false
		if strings.HasPrefix(raw, "swap:") {
			swap = true
			raw = strings.TrimPrefix(raw, "swap:")
		}
		prim, ok := primNames[raw]
		if !ok {
			return atom.Atom{}, p.errf("unknown primitive name %q", raw)
		}
		return atom.Pri(uint8(a), swap, prim), nil

	default:
		return atom.Atom{}, p.errf("unknown atom kind %q", kind)
	}
}

func (p *parser) parseApp() (heap.App, error) {
	if p.tok != scanner.Ident {
		return heap.App{}, p.errf("expected app keyword, got %q", p.sc.TokenText())
	}
	kind := p.sc.TokenText()
	p.advance()

	switch kind {
	case "APP":
		nf, err := p.parseBool()
		if err != nil {
			return heap.App{}, err
		}
		atoms, err := p.parseAtomList(heap.MaxSize)
		if err != nil {
			return heap.App{}, err
		}
		if len(atoms) == 0 {
			return heap.App{}, p.errf("APP node must have at least one atom")
		}
		return heap.NewAP(nf, atoms...), nil

	case "CASE":
		lut, err := p.parseInt()
		if err != nil {
			return heap.App{}, err
		}
		atoms, err := p.parseAtomList(heap.MaxSize - 1)
		if err != nil {
			return heap.App{}, err
		}
		if len(atoms) == 0 {
			return heap.App{}, p.errf("CASE node must have at least one atom")
		}
		return heap.NewCase(lut, atoms...), nil

	case "PRIM":
		reg, err := p.parseInt()
		if err != nil {
			return heap.App{}, err
		}
		atoms, err := p.parseAtomList(heap.MaxSize - 1)
		if err != nil {
			return heap.App{}, err
		}
		if len(atoms) != 3 {
			return heap.App{}, p.errf("PRIM node must have exactly 3 atoms, got %d", len(atoms))
		}
		return heap.NewPrim(reg, atoms[0], atoms[1], atoms[2]), nil

	default:
		return heap.App{}, p.errf("unknown app kind %q", kind)
	}
}

func (p *parser) parseAppList(max int) ([]heap.App, error) {
	if err := p.expect('[', "["); err != nil {
		return nil, err
	}
	var out []heap.App
	if p.tok == ']' {
		p.advance()
		return out, nil
	}
	for {
		a, err := p.parseApp()
		if err != nil {
			return nil, err
		}
		out = append(out, a)
		if len(out) > max {
			return nil, p.errf("app_list exceeds %d elements", max)
		}
		if p.tok == ',' {
			p.advance()
			continue
		}
		break
	}
	if err := p.expect(']', "]"); err != nil {
		return nil, err
	}
	return out, nil
}
