/*
PURPOSE:
  Defines the 'list-types' subcommand.
  Helps verify which model types the config's dispatch table knows.

REQUIREMENTS:
  User-specified:
  - List the configured model types.

  Implementation-discovered:
  - Useful validation step before a long training run.

ARCHITECTURE INTEGRATION:
  - Uses: internal/config

ERROR HANDLING:
  - Prints error if the config file is broken.

IMPLEMENTATION RULES:
  - Simple output to stdout.

USAGE:
  olid-runner list-types

SELF-HEALING INSTRUCTIONS:
  - None.

RELATED FILES:
  - internal/config/config.go

MAINTENANCE:
  - None.
*/

package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/daryltucker/olid-runner/internal/config"
)

var listTypesCmd = &cobra.Command{
	Use:   "list-types",
	Short: "List the configured model types and their templates",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}

		names := make([]string, 0, len(cfg.ModelTypes))
		for name := range cfg.ModelTypes {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			mt := cfg.ModelTypes[name]
			if mt.Config != "" {
				fmt.Printf("- %s\ttemplate=%s\tconfig=%s\n", name, mt.Template, mt.Config)
			} else {
				fmt.Printf("- %s\ttemplate=%s\n", name, mt.Template)
			}
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(listTypesCmd)
}
