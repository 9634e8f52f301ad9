/*
PURPOSE:
  Defines the 'run' subcommand.
  Executes one full experiment: allocate, copy, train, predict, evaluate.

REQUIREMENTS:
  User-specified:
  - `run <model_type> [split]`; a trailing "test" token targets the test
    set, anything else (or nothing) targets dev.
  - Specific flags for directory/interpreter overrides.

  Implementation-discovered:
  - Need to load config first, then apply flag overrides.
  - An unknown model type must read as a usage error, not a crash.

ARCHITECTURE INTEGRATION:
  - Calls: internal/experiment.Dispatcher
  - Uses: internal/config, internal/stage, internal/registry

ERROR HANDLING:
  - Returns error if config load, allocation, or any stage fails.
  - A registry that cannot be opened degrades to a logged warning.

IMPLEMENTATION RULES:
  - Setup flags in init().
  - Logic: Load Config -> Override -> Dispatcher.Run.

USAGE:
  olid-runner run features
  olid-runner run plm test

SELF-HEALING INSTRUCTIONS:
  - Check flag names match Config struct fields generally.

RELATED FILES:
  - internal/cli/root.go
  - internal/experiment/dispatcher.go

MAINTENANCE:
  - Update when adding new CLI overrides.
*/

package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/daryltucker/olid-runner/internal/config"
	"github.com/daryltucker/olid-runner/internal/experiment"
	"github.com/daryltucker/olid-runner/internal/model"
	"github.com/daryltucker/olid-runner/internal/output"
	"github.com/daryltucker/olid-runner/internal/registry"
	"github.com/daryltucker/olid-runner/internal/stage"
)

var (
	experimentsOverride string
	dataOverride        string
	scriptsOverride     string
	resultsOverride     string
	interpreterOverride string
	noRegistry          bool
)

var runCmd = &cobra.Command{
	Use:   "run <model_type> [split]",
	Short: "Run one experiment for a model type",
	Long: `Runs a single experiment end to end:
1. Allocation: creates the next numbered folder <model_type>-<N> under the
   experiments directory (N is one past the highest existing number).
2. Population: copies the model type's training template, its config file
   (if it has one) and the shared support scripts into the folder.
3. Stages: runs train, predict and evaluate as external processes, in
   order, stopping at the first failure. The folder is never cleaned up,
   so a failed run can be inspected in place.

Scores land in results/<model_type>.csv (one appended row per run),
results/runs.jsonl, and the SQLite run registry.`,
	Example: `  # Train and evaluate the feature-based classifier against the dev set
  olid-runner run features

  # Evaluate the pretrained-language-model classifier against the test set
  olid-runner run plm test

  # Point at a different experiment tree
  olid-runner run lstm --experiments-dir /scratch/experiments`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		// 1. Load Config
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}

		// 2. Overrides
		if experimentsOverride != "" {
			cfg.ExperimentsDir = experimentsOverride
		}
		if dataOverride != "" {
			cfg.DataDir = dataOverride
		}
		if scriptsOverride != "" {
			cfg.ScriptsDir = scriptsOverride
		}
		if resultsOverride != "" {
			cfg.ResultsDir = resultsOverride
		}
		if interpreterOverride != "" {
			cfg.Interpreter = interpreterOverride
		}
		if noRegistry {
			cfg.RegistryPath = ""
		}

		split := model.SplitDev
		if len(args) == 2 {
			split = model.ParseSplit(args[1])
		}

		// 3. Execution
		var sinks []experiment.RunSink
		if cfg.RegistryPath != "" {
			reg, err := registry.Open(cfg.RegistryPath)
			if err != nil {
				output.Logger.Warn("Run registry unavailable, continuing without it", "path", cfg.RegistryPath, "error", err)
			} else {
				defer reg.Close()
				sinks = append(sinks, reg)
			}
		}

		runner := stage.NewRunner(cfg.Interpreter, time.Duration(cfg.StageTimeout))
		d := experiment.NewDispatcher(cfg, runner, sinks...)

		_, err = d.Run(cmd.Context(), args[0], split)
		return err
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&experimentsOverride, "experiments-dir", "", "Directory holding the numbered experiment folders")
	runCmd.Flags().StringVar(&dataOverride, "data-dir", "", "Directory holding train.tsv, dev.tsv and test.tsv")
	runCmd.Flags().StringVar(&scriptsOverride, "scripts-dir", "", "Directory holding the training templates and support scripts")
	runCmd.Flags().StringVarP(&resultsOverride, "results-dir", "o", "", "Directory for summary CSVs and the run log")
	runCmd.Flags().StringVar(&interpreterOverride, "interpreter", "", "Interpreter used for the stage scripts (default python3)")
	runCmd.Flags().BoolVar(&noRegistry, "no-registry", false, "Skip recording the run in the SQLite registry")
}
