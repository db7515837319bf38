package device

import (
	"bytes"
	"strings"
	"testing"
)

func TestEmitWritesLowByte(t *testing.T) {
	var out bytes.Buffer
	d := NewLocal(4, strings.NewReader(""), &out, false, nil)
	if err := d.Emit('A'); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if out.String() != "A" {
		t.Fatalf("out = %q, want %q", out.String(), "A")
	}
}

func TestEmitIntWritesDecimal(t *testing.T) {
	var out bytes.Buffer
	d := NewLocal(4, strings.NewReader(""), &out, false, nil)
	if err := d.EmitInt(-42); err != nil {
		t.Fatalf("EmitInt: %v", err)
	}
	if out.String() != "-42" {
		t.Fatalf("out = %q, want %q", out.String(), "-42")
	}
}

func TestLoadZeroReadsStdinThenEOFReturnsNegativeOne(t *testing.T) {
	d := NewLocal(4, strings.NewReader("hi"), &bytes.Buffer{}, false, nil)
	v, err := d.Load(0)
	if err != nil || v != int32('h') {
		t.Fatalf("Load(0) = %d, %v, want 'h', nil", v, err)
	}
	v, err = d.Load(0)
	if err != nil || v != int32('i') {
		t.Fatalf("Load(0) = %d, %v, want 'i', nil", v, err)
	}
	v, err = d.Load(0)
	if err != nil || v != -1 {
		t.Fatalf("Load(0) at EOF = %d, %v, want -1, nil", v, err)
	}
}

func TestStoreZeroWritesStdout(t *testing.T) {
	var out bytes.Buffer
	d := NewLocal(4, strings.NewReader(""), &out, false, nil)
	if err := d.Store(0, int32('z')); err != nil {
		t.Fatalf("Store(0, ..): %v", err)
	}
	if out.String() != "z" {
		t.Fatalf("out = %q, want %q", out.String(), "z")
	}
}

func TestStoreAndLoadSimulatedMemory(t *testing.T) {
	d := NewLocal(4, strings.NewReader(""), &bytes.Buffer{}, false, nil)
	if err := d.Store(2, 99); err != nil {
		t.Fatalf("Store: %v", err)
	}
	v, err := d.Load(2)
	if err != nil || v != 99 {
		t.Fatalf("Load(2) = %d, %v, want 99, nil", v, err)
	}
}

func TestOutOfRangeAddressIsError(t *testing.T) {
	d := NewLocal(4, strings.NewReader(""), &bytes.Buffer{}, false, nil)
	if _, err := d.Load(5); err == nil {
		t.Fatal("expected error loading out-of-range address")
	}
	if err := d.Store(-1, 0); err == nil {
		t.Fatal("expected error storing to a negative address")
	}
}

func TestTraceLogsNonzeroAddressAccess(t *testing.T) {
	var trace bytes.Buffer
	d := NewLocal(4, strings.NewReader(""), &bytes.Buffer{}, true, &trace)
	if err := d.Store(1, 7); err != nil {
		t.Fatalf("Store: %v", err)
	}
	if !strings.Contains(trace.String(), "st32(1, 7)") {
		t.Fatalf("trace = %q, want it to mention st32(1, 7)", trace.String())
	}
}
