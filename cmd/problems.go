package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cwbudde/iteropt/internal/testfunc"
)

var problemsCmd = &cobra.Command{
	Use:   "problems",
	Short: "List the built-in test problems",
	RunE: func(cmd *cobra.Command, args []string) error {
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tDIM\tBOUNDS\tDESCRIPTION")
		for _, name := range testfunc.Names() {
			p, err := testfunc.Lookup(name)
			if err != nil {
				return err
			}
			dims := fmt.Sprintf("%d", p.FixedDim)
			if p.FixedDim == 0 {
				dims = fmt.Sprintf("any (default %d)", p.DefaultDim)
			}
			fmt.Fprintf(w, "%s\t%s\t[%g, %g]\t%s\n", p.Name, dims, p.Lower, p.Upper, p.Description)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(problemsCmd)
}
