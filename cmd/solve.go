package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/optiq-ai/optiq/internal/config"
	"github.com/optiq-ai/optiq/internal/events"
	"github.com/optiq-ai/optiq/internal/pipeline"
	"github.com/optiq-ai/optiq/internal/progress"
	"github.com/optiq-ai/optiq/internal/schema"
)

var (
	solveHints []string
	solveJSON  bool
)

var solveCmd = &cobra.Command{
	Use:   "solve [problem text]",
	Short: "Run one problem through the pipeline and print the solution",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}

		hints, err := parseHints(solveHints)
		if err != nil {
			return err
		}

		orch, _, _, bus, err := buildPipeline(cfg)
		if err != nil {
			return err
		}
		service := pipeline.NewService(orch, nil)
		defer service.Close()

		ch, unsubscribe := bus.Subscribe()
		defer unsubscribe()

		id, err := service.Submit(strings.Join(args, " "), hints)
		if err != nil {
			return err
		}

		reporter := progress.NewReporter()
		reporter.Start(len(schema.Stages))
		go func() {
			done := 0
			for e := range ch {
				if e.RunID != id || e.Outcome != events.OutcomeCompleted {
					continue
				}
				done++
				reporter.Update(done, fmt.Sprintf("%s done", e.Stage))
			}
		}()

		run, err := service.Wait(context.Background(), id)
		reporter.Finish()
		if err != nil {
			return err
		}

		if solveJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(run)
		}
		return printRun(run)
	},
}

func parseHints(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	hints := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid hint %q: expected key=value", pair)
		}
		hints[key] = value
	}
	return hints, nil
}

func printRun(run *schema.PipelineRun) error {
	switch run.State {
	case schema.RunFailed:
		return fmt.Errorf("run failed at %s: %s", run.FailedStage, run.Error)
	case schema.RunCancelled:
		return fmt.Errorf("run was cancelled")
	}

	sol := run.Solution
	fmt.Printf("Status: %s (solver: %s, %dms)\n", sol.Status, sol.SolverUsed, sol.SolveTimeMS)
	if run.Intent != nil {
		fmt.Printf("Problem: %s / %s, complexity %s\n", run.Intent.IntentLabel, run.Intent.IndustryLabel, run.Intent.Complexity)
	}
	if sol.Status != schema.StatusOptimal {
		return nil
	}

	fmt.Printf("Objective: %g\n", *sol.ObjectiveValue)
	names := make([]string, 0, len(sol.VariableValues))
	for name := range sol.VariableValues {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("  %s = %g\n", name, sol.VariableValues[name])
	}
	return nil
}

func init() {
	solveCmd.Flags().StringArrayVar(&solveHints, "hint", nil, "problem hint as key=value (repeatable)")
	solveCmd.Flags().BoolVar(&solveJSON, "json", false, "print the full run as JSON")
	rootCmd.AddCommand(solveCmd)
}
