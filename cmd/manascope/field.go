package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newFieldCmd(v *viper.Viper) *cobra.Command {
	var static bool
	cmd := &cobra.Command{
		Use:   "field <address> <name>",
		Short: "Decode a single named field of an instance, or of a class's statics with --static",
		Args:  cobra.ExactArgs(2),
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

			if static {
				tv, err := s.GetStaticField(addr, args[1])
				if err != nil {
					return err
				}
				fmt.Println(formatValue(tv))
				return nil
			}
			tv, err := s.GetInstanceField(addr, args[1])
			if err != nil {
				return err
			}
			fmt.Println(formatValue(tv))
			return nil
		},
	}
	cmd.Flags().BoolVar(&static, "static", false, "treat address as a class address and name as a static field")
	return cmd
}
