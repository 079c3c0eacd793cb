package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dhamidi/jload/classfile"
	"github.com/dhamidi/jload/classmgr"
)

func newLoadCmd(flags *globalFlags) *cobra.Command {
	var workers int

	cmd := &cobra.Command{
		Use:   "load <class>...",
		Short: "Load classes from the classpath in parallel",
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
			types, err := loadAll(r.loader, args, workers)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, t := range types {
				fmt.Fprintf(out, "%s\t%s\t%d fields\t%d methods\t%d bytes\n",
					t.Kind, t.Name, len(t.Fields), len(t.Methods), t.ObjectSize)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&workers, "jobs", "j", 0, "number of parallel loads (default from jload.toml)")

	return cmd
}

// loadAll loads names with at most workers loads in flight and returns the
// types in argument order. Names may use dots or slashes.
func loadAll(loader *classmgr.ClassLoader, names []string, workers int) ([]*classmgr.Type, error) {
	types := make([]*classmgr.Type, len(names))
	var g errgroup.Group
	g.SetLimit(workers)
	for i, name := range names {
		i, name := i, name
		g.Go(func() error {
			t, err := loader.LoadClass(internalName(name))
			if err != nil {
				return fmt.Errorf("load %s: %w", name, err)
			}
			types[i] = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return types, nil
}

func internalName(name string) string {
	name = strings.TrimSuffix(name, ".class")
	return classfile.SourceToInternalName(name)
}

func splitList(list string) []string {
	return strings.FieldsFunc(list, func(r rune) bool { return r == ':' || r == ';' })
}
