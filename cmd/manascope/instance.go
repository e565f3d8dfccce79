package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newInstanceCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "instance <address>",
		Short: "Decode the instance at address one level deep",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := parseAddr(args[0])
			if err != nil {
				return err
			}
			cfg := buildConfig(v)
			s, cleanup, err := attachSession(cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			inst, err := s.GetInstance(addr)
			if err != nil {
				return err
			}
			fmt.Printf("%s.%s @ %#x\n", inst.Namespace, inst.ClassName, inst.Address)
			for _, f := range inst.Fields {
				scope := "instance"
				if f.IsStatic {
					scope = "static"
				}
				fmt.Printf("  %-8s %-10s %-20s = %s\n", scope, f.Type, f.Name, formatValue(f.Value))
			}
			return nil
		},
	}
}
