package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newPathCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "path <root-class> <segment> [segment...]",
		Short: "Resolve a field path starting from a named root class",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := buildConfig(v)
			s, cleanup, err := attachSession(cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			val, err := s.ReadData(args[0], args[1:])
			if err != nil {
				return err
			}
			fmt.Printf("%s.%s = %s\n", args[0], strings.Join(args[1:], "."), formatValue(val))
			return nil
		},
	}
}
