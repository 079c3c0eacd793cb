package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dhamidi/jload/classmgr"
)

func newResolveCmd(flags *globalFlags) *cobra.Command {
	var failFast bool

	cmd := &cobra.Command{
		Use:   "resolve <class>",
		Short: "Resolve every symbolic reference in a class's constant pool",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := newEnv(flags)
			if err != nil {
				return err
			}
			defer r.Close()

			t, err := r.loader.LoadClass(internalName(args[0]))
			if err != nil {
				return fmt.Errorf("load %s: %w", args[0], err)
			}

			out := cmd.OutOrStdout()
			failed := 0
			var firstErr error
			t.CP.Each(func(index int, e classmgr.Const) {
				if !isSymbolic(e) || (failFast && firstErr != nil) {
					return
				}
				v, err := t.CP.Resolve(r.loader, index)
				if err != nil {
					failed++
					if firstErr == nil {
						firstErr = err
					}
					fmt.Fprintf(out, "#%d\t%s\tfailed\t%s\n", index, e.Tag(), err)
					return
				}
				fmt.Fprintf(out, "#%d\t%s\tresolved\t%s\n", index, e.Tag(), v)
			})

			if failed > 0 {
				return fmt.Errorf("%d references failed to resolve, first: %w", failed, firstErr)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&failFast, "fail-fast", false, "stop at the first failed reference")

	return cmd
}

func isSymbolic(e classmgr.Const) bool {
	switch e.(type) {
	case *classmgr.ConstClass, *classmgr.ConstFieldRef, *classmgr.ConstMethodRef, *classmgr.ConstIMethodRef:
		return true
	}
	return false
}
