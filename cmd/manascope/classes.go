package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/exp/slices"

	"github.com/kestrelre/manascope/session"
)

func newClassesCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "classes <assembly>",
		Short: "List every class declared by an assembly's image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := buildConfig(v)
			s, cleanup, err := attachSession(cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			classes, err := s.GetAssemblyClasses(args[0])
			if err != nil {
				return err
			}
			// Deterministic output: the runtime enumerates classes in
			// bucket order, not name order.
			slices.SortFunc(classes, func(a, b session.ClassInfo) int {
				switch {
				case a.Name < b.Name:
					return -1
				case a.Name > b.Name:
					return 1
				default:
					return 0
				}
			})
			color.Cyan("%s classes in %s", humanize.Comma(int64(len(classes))), args[0])
			for _, c := range classes {
				kind := "class"
				if c.IsEnum {
					kind = "enum"
				} else if c.IsValueType {
					kind = "struct"
				}
				fmt.Printf("%-8s %#x  %s.%s\n", kind, c.RuntimeAddress, c.Namespace, c.Name)
			}
			return nil
		},
	}
}
