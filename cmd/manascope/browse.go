package main

import (
	"fmt"

	survey "github.com/AlecAivazis/survey/v2"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// newBrowseCmd is an interactive picker: assembly, then class, then a
// field dump — for operators exploring an unfamiliar target rather
// than scripting a known path.
func newBrowseCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "browse",
		Short: "Interactively pick an assembly and class to inspect",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := buildConfig(v)
			s, cleanup, err := attachSession(cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			asms, err := s.GetAssemblies()
			if err != nil {
				return err
			}
			var asm string
			if err := survey.AskOne(&survey.Select{
				Message: "assembly:",
				Options: asms,
			}, &asm); err != nil {
				return err
			}

			classes, err := s.GetAssemblyClasses(asm)
			if err != nil {
				return err
			}
			names := make([]string, 0, len(classes))
			for _, c := range classes {
				names = append(names, fmt.Sprintf("%s.%s", c.Namespace, c.Name))
			}
			var picked string
			if err := survey.AskOne(&survey.Select{
				Message: "class:",
				Options: names,
			}, &picked, survey.WithPageSize(20)); err != nil {
				return err
			}

			details, err := s.GetClassDetails(asm, picked)
			if err != nil {
				return err
			}
			color.Cyan("%s.%s @ %#x  fields=%d", details.Namespace, details.Name, details.RuntimeAddress, details.FieldCount)
			for _, f := range details.Fields {
				scope := "instance"
				if f.IsStatic {
					scope = "static"
				}
				fmt.Printf("  %-8s %-10s %s\n", scope, f.TypeName, f.Name)
			}
			return nil
		},
	}
}
