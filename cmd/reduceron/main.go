// The reduceron tool loads a compiled template file and either runs it
// to completion on the graph-reduction machine, or inspects its
// templates without executing them. Run "reduceron help" for a list
// of commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func exitf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format, args...)
	os.Exit(1)
}

func main() {
	var flags runFlags
	root := &cobra.Command{
		Use:           "reduceron <file|->",
		Short:         "run and inspect template-instantiation graph-reduction programs",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			return runReduce(args[0], flags.verbose, flags.trace, flags.profileStr)
		},
	}
	flags.register(root)
	root.AddCommand(newRunCmd())
	root.AddCommand(newInspectCmd())

	if err := root.Execute(); err != nil {
		exitf("%v\n", err)
	}
}
