package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"

	"github.com/reduceron-vm/reduceron/asm"
	"github.com/reduceron-vm/reduceron/device"
	"github.com/reduceron-vm/reduceron/machine"
	"github.com/reduceron-vm/reduceron/profile"
)

// simMemWords is the size of the simulated ST32/LD32 address space
// outside of address 0 (standard input/output).
const simMemWords = 1 << 16

func newRunCmd() *cobra.Command {
	var flags runFlags
	cmd := &cobra.Command{
		Use:   "run <file|->",
		Short: "reduce a compiled template file to normal form",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReduce(args[0], flags.verbose, flags.trace, flags.profileStr)
		},
	}
	flags.register(cmd)
	return cmd
}

// runFlags is the -v/-t/--profile trio shared by the "run" subcommand
// and root's own default-to-run dispatch (see main.go).
type runFlags struct {
	verbose    bool
	trace      bool
	profileStr string
}

func (f *runFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVarP(&f.verbose, "verbose", "v", false, "print a tick/counter report after the run")
	cmd.Flags().BoolVarP(&f.trace, "trace", "t", false, "log every ld32/st32 call to stderr")
	cmd.Flags().StringVar(&f.profileStr, "profile", "default", "resource profile: default, small, or large")
}

func runReduce(file string, verbose, trace bool, profileName string) error {
	p, ok := profile.ByName(profileName)
	if !ok {
		return fmt.Errorf("reduceron: unknown profile %q", profileName)
	}

	src, err := openSource(file)
	if err != nil {
		return err
	}
	if c, ok := src.(io.Closer); ok {
		defer c.Close()
	}
	code, err := asm.Parse(src)
	if err != nil {
		return fmt.Errorf("reduceron: %w", err)
	}

	restore := enableCbreak(os.Stdin)
	defer restore()

	dev := device.NewLocal(simMemWords, os.Stdin, os.Stdout, trace, os.Stderr)
	m, err := machine.New(code, p, dev)
	if err != nil {
		return fmt.Errorf("reduceron: %w", err)
	}

	out, err := m.Run()
	if err != nil {
		return fmt.Errorf("reduceron: %w", err)
	}

	if verbose {
		printReport(os.Stderr, out, m.Counters())
	} else if !out.Halted {
		fmt.Fprintf(os.Stdout, "%d\n", out.Value)
	}

	if out.Halted {
		// A negative LD32 result is the protocol's own clean-termination
		// signal (see original_source/emulator/emu-32-bit.c's
		// prim_ld32): restore the terminal and exit 0, same as a
		// program that reduced to normal form on its own.
		restore()
		os.Exit(0)
	}
	return nil
}

func openSource(file string) (io.Reader, error) {
	if file == "-" {
		return os.Stdin, nil
	}
	f, err := os.Open(file)
	if err != nil {
		return nil, fmt.Errorf("reduceron: %w", err)
	}
	return f, nil
}

func printReport(w io.Writer, out machine.Outcome, c machine.Counters) {
	t := tabwriter.NewWriter(w, 0, 0, 1, ' ', tabwriter.AlignRight)
	fmt.Fprintf(t, "unwind\t%d\n", c.Unwind)
	fmt.Fprintf(t, "apply\t%d\n", c.Apply)
	fmt.Fprintf(t, "select\t%d\n", c.Select)
	fmt.Fprintf(t, "prim\t%d\n", c.Prim)
	fmt.Fprintf(t, "swap\t%d\n", c.Swap)
	fmt.Fprintf(t, "update\t%d\n", c.Update)
	fmt.Fprintf(t, "gc\t%d\n", c.GC)
	if c.PRSCandidate > 0 {
		fmt.Fprintf(t, "prs\t%d/%d (%.1f%%)\n", c.PRSSuccess, c.PRSCandidate, 100*float64(c.PRSSuccess)/float64(c.PRSCandidate))
	} else {
		fmt.Fprintf(t, "prs\t0/0\n")
	}
	if out.Halted {
		fmt.Fprintf(t, "result\thalted (negative ld32)\n")
	} else {
		fmt.Fprintf(t, "result\t%d\n", out.Value)
	}
	t.Flush()
}

// enableCbreak puts f into cbreak mode (no line buffering, no echo) so
// ld32(0) observes individual keystrokes rather than waiting for a
// newline. It is a no-op, returning a no-op restore, when f isn't a
// terminal.
func enableCbreak(f *os.File) func() {
	fd := int(f.Fd())
	saved, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return func() {}
	}
	raw := *saved
	raw.Lflag &^= unix.ICANON | unix.ECHO
	raw.Cc[unix.VMIN] = 1
	raw.Cc[unix.VTIME] = 0
	if err := unix.IoctlSetTermios(fd, unix.TCSETS, &raw); err != nil {
		return func() {}
	}
	restored := false
	return func() {
		if restored {
			return
		}
		restored = true
		unix.IoctlSetTermios(fd, unix.TCSETS, saved)
	}
}
