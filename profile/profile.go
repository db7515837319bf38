// Package profile names the machine's fixed-size resource budgets:
// heap capacity, shared stack depth, and template table size. A
// Profile is chosen once at machine construction and never changes
// for the lifetime of the run, the same way an arch.Architecture is
// fixed for the lifetime of a debugging session.
package profile

// Profile bounds the sizes of the machine's preallocated arenas. All
// three stacks (value, update, LUT) share MaxStack as their single
// capacity, matching the original emulator's single MAXSTACKELEMS
// constant; the heap's two arenas are each sized to MaxHeapApps.
type Profile struct {
	Name string

	// MaxHeapApps is the capacity of each of the heap's two arenas.
	MaxHeapApps int

	// MaxStack bounds the value, update, and LUT stacks.
	MaxStack int

	// MaxTemplates bounds the template table loaded from an assembly
	// file; exceeding it is a load-time error, not a runtime one.
	MaxTemplates int

	// GCMargin is the headroom the dispatch loop demands before an
	// instantiation: it triggers Collect whenever fewer than GCMargin
	// free heap slots remain, rather than waiting for exhaustion,
	// since a single instantiation can allocate up to MaxSize cells
	// and the loop only checks between templates, not mid-apply.
	GCMargin int

	// StackMargin is the headroom the dispatch loop demands on S, U,
	// and L before starting another iteration; coming within this
	// margin of MaxStack fails the run with a stack-overflow error
	// rather than letting a single iteration overrun the arena.
	StackMargin int
}

// Default matches the original emulator's published constants
// (MAXHEAPAPPS=32000, MAXSTACKELEMS=8000, MAXTEMPLATES=8000) and is the right choice for
// unattended runs.
var Default = Profile{
	Name:         "default",
	MaxHeapApps:  32000,
	MaxStack:     8000,
	MaxTemplates: 8000,
	GCMargin:     200,
	StackMargin:  100,
}

// Small trades headroom for footprint: useful for unit tests that want
// to force a GC cycle after a handful of reductions instead of after
// thousands.
var Small = Profile{
	Name:         "small",
	MaxHeapApps:  256,
	MaxStack:     256,
	MaxTemplates: 64,
	GCMargin:     16,
	StackMargin:  16,
}

// Large raises every bound for programs whose working set outgrows
// Default; chosen explicitly via the --profile flag, never inferred.
var Large = Profile{
	Name:         "large",
	MaxHeapApps:  1 << 20,
	MaxStack:     1 << 18,
	MaxTemplates: 20000,
	GCMargin:     2000,
	StackMargin:  1000,
}

// ByName resolves a profile by its --profile flag spelling. ok is
// false for any other input; callers should treat that as a usage
// error, not fall back silently to Default.
func ByName(name string) (p Profile, ok bool) {
	switch name {
	case "default", "":
		return Default, true
	case "small":
		return Small, true
	case "large":
		return Large, true
	default:
		return Profile{}, false
	}
}
