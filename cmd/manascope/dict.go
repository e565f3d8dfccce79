package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newDictCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "dict <address>",
		Short: "Structurally decode a Dictionary<TKey,TValue>-shaped instance",
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

			d, err := s.GetDictionary(addr)
			if err != nil {
				return err
			}
			color.Cyan("%s: %s entries", d.ClassName, humanize.Comma(int64(len(d.Entries))))
			for _, e := range d.Entries {
				fmt.Printf("  %s -> %s\n", formatValue(e.Key), formatValue(e.Value))
			}
			return nil
		},
	}
}
