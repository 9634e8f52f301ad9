package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/daryltucker/olid-runner/internal/config"
	"github.com/daryltucker/olid-runner/internal/registry"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history [model_type]",
	Short: "Show recent runs from the SQLite registry",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		if cfg.RegistryPath == "" {
			return fmt.Errorf("no registry_path configured")
		}

		reg, err := registry.Open(cfg.RegistryPath)
		if err != nil {
			return err
		}
		defer reg.Close()

		modelType := ""
		if len(args) == 1 {
			modelType = args[0]
		}

		runs, err := reg.List(cmd.Context(), modelType, historyLimit)
		if err != nil {
			return err
		}

		if len(runs) == 0 {
			fmt.Println("no recorded runs")
			return nil
		}

		for _, r := range runs {
			line := fmt.Sprintf("%s\t%s\t%s\t%s",
				r.StartedAt.Format("2006-01-02 15:04:05"), r.Name(), r.Split, r.Status)
			if r.Scores != nil {
				line += fmt.Sprintf("\tacc=%.4f f1=%.4f", r.Scores.Accuracy, r.Scores.F1)
			}
			if r.FailedAt != "" {
				line += fmt.Sprintf("\t(failed at %s)", r.FailedAt)
			}
			fmt.Println(line)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Maximum number of runs to show")
}
