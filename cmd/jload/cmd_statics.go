package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dhamidi/jload/statics"
)

func newStaticsCmd(flags *globalFlags) *cobra.Command {
	var workers int

	cmd := &cobra.Command{
		Use:   "statics <class>...",
		Short: "Load classes and print statics table totals per slot kind",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := newEnv(flags)
			if err != nil {
				return err
			}
			defer r.Close()

			if workers <= 0 {
				workers = r.cfg.Workers
			}
			if _, err := loadAll(r.loader, args, workers); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			counts := r.statics.Counts()
			for _, k := range []statics.Kind{statics.KindInt, statics.KindLong, statics.KindAddress, statics.KindObject, statics.KindMethod} {
				fmt.Fprintf(out, "%s\t%d\n", k, counts[k])
			}
			fmt.Fprintf(out, "words\t%d\n", r.statics.Len())
			fmt.Fprintf(out, "selectors\t%d\n", r.selectors.Len())
			fmt.Fprintf(out, "types\t%d\n", len(r.loader.Types()))
			return nil
		},
	}

	cmd.Flags().IntVarP(&workers, "jobs", "j", 0, "number of parallel loads (default from jload.toml)")

	return cmd
}
