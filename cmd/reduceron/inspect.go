package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/reduceron-vm/reduceron/asm"
	"github.com/reduceron-vm/reduceron/heap"
)

func newInspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect <file|->",
		Short: "browse a compiled template file without executing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(args[0])
		},
	}
	return cmd
}

func runInspect(file string) error {
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

	rl, err := readline.New("reduceron> ")
	if err != nil {
		return fmt.Errorf("reduceron: inspect: %w", err)
	}
	defer rl.Close()

	fmt.Fprintf(rl.Stdout(), "%d templates loaded; type \"help\" for commands\n", len(code))
	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reduceron: inspect: %w", err)
		}
		if !runInspectCommand(rl, code, strings.TrimSpace(line)) {
			return nil
		}
	}
}

// runInspectCommand dispatches one REPL line. It returns false when the
// shell should exit (an explicit "quit"/"exit"), true otherwise — this
// read-only shell never mutates code, so a malformed command just
// prints a complaint and loops rather than aborting the session.
func runInspectCommand(rl *readline.Instance, code []asm.Template, line string) bool {
	w := rl.Stdout()
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return true
	}

	switch fields[0] {
	case "quit", "exit":
		return false

	case "help":
		fmt.Fprint(w, `commands:
  list            list every template's id, name, and arity
  show <id>       print the template with the given id in full
  find <name>     list templates whose name contains <name>
  help            show this message
  quit            leave the shell
`)

	case "list":
		for id, t := range code {
			fmt.Fprintf(w, "%4d  %-32s arity=%d\n", id, t.Name, t.Arity)
		}

	case "show":
		if len(fields) != 2 {
			fmt.Fprintln(w, "usage: show <id>")
			break
		}
		id, err := strconv.Atoi(fields[1])
		if err != nil || id < 0 || id >= len(code) {
			fmt.Fprintf(w, "no such template %q\n", fields[1])
			break
		}
		printTemplate(w, id, code[id])

	case "find":
		if len(fields) != 2 {
			fmt.Fprintln(w, "usage: find <name>")
			break
		}
		needle := fields[1]
		found := false
		for id, t := range code {
			if strings.Contains(t.Name, needle) {
				fmt.Fprintf(w, "%4d  %-32s arity=%d\n", id, t.Name, t.Arity)
				found = true
			}
		}
		if !found {
			fmt.Fprintf(w, "no template name contains %q\n", needle)
		}

	default:
		fmt.Fprintf(w, "unrecognized command %q; type \"help\" for a list\n", fields[0])
	}
	return true
}

func printTemplate(w io.Writer, id int, t asm.Template) {
	fmt.Fprintf(w, "%d: %q arity=%d\n", id, t.Name, t.Arity)
	fmt.Fprintf(w, "  luts:  %v\n", t.Luts)
	fmt.Fprintf(w, "  pushs:\n")
	for i, a := range t.Pushs {
		fmt.Fprintf(w, "    [%d] %s\n", i, a)
	}
	fmt.Fprintf(w, "  apps:\n")
	for i, app := range t.Apps {
		fmt.Fprintf(w, "    [%d] %s\n", i, formatApp(app))
	}
}

func formatApp(app heap.App) string {
	var b strings.Builder
	switch app.Tag {
	case heap.CASE:
		fmt.Fprintf(&b, "CASE lut=%d", app.Info)
	case heap.PRIM:
		fmt.Fprintf(&b, "PRIM reg=%d", app.Info)
	default:
		fmt.Fprintf(&b, "APP nf=%v", app.NF)
	}
	b.WriteString(" [")
	for i := 0; i < int(app.Size); i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(app.Atoms[i].String())
	}
	b.WriteString("]")
	return b.String()
}
