package main

import (
	"fmt"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// newAttachCmd just proves attach succeeds and reports the resolved
// backend; every other subcommand attaches and detaches around its own
// single operation instead of holding a session open.
func newAttachCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "attach",
		Short: "Attach to the target process and report the detected backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := buildConfig(v)
			sp := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
			sp.Suffix = fmt.Sprintf(" attaching to %s...", cfg.ProcessName)
			sp.Start()
			_, cleanup, err := attachSession(cfg)
			sp.Stop()
			if err != nil {
				return err
			}
			defer cleanup()
			color.Green("attached to %s", cfg.ProcessName)
			return nil
		},
	}
}
