package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newAssembliesCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "assemblies",
		Short: "List every loaded assembly",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := buildConfig(v)
			s, cleanup, err := attachSession(cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			names, err := s.GetAssemblies()
			if err != nil {
				return err
			}
			color.Cyan("%s loaded assemblies", humanize.Comma(int64(len(names))))
			for _, n := range names {
				fmt.Println(n)
			}
			return nil
		},
	}
}
