package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newClassCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "class <assembly> <class>",
		Short: "Show a class's fields and resolved static-instance pointers",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := buildConfig(v)
			s, cleanup, err := attachSession(cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			details, err := s.GetClassDetails(args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Printf("%s.%s @ %#x  size=%d fields=%d\n",
				details.Namespace, details.Name, details.RuntimeAddress, details.InstanceSize, details.FieldCount)
			if details.Opaque {
				color.Yellow("class is opaque (field_count is 0 or >= 1000); fields not enumerated")
			}
			for _, f := range details.Fields {
				scope := "instance"
				if f.IsStatic {
					scope = "static"
				}
				fmt.Printf("  %-8s %-10s %s\n", scope, f.TypeName, f.Name)
			}
			if len(details.StaticInstances) > 0 {
				color.Cyan("static instances:")
				for _, addr := range details.StaticInstances {
					fmt.Printf("  %#x\n", addr)
				}
			}
			return nil
		},
	}
}
