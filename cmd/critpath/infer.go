package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/joshharrison/critpath/internal/claude"
	"github.com/joshharrison/critpath/internal/cpm"
	"github.com/joshharrison/critpath/internal/project"
	"github.com/joshharrison/critpath/internal/reporter"
	"github.com/joshharrison/critpath/internal/state"
	"github.com/joshharrison/critpath/internal/ui"
	"github.com/joshharrison/critpath/internal/validate"
)

func newClaudeClient(model string) (*claude.Client, error) {
	if model == "" {
		model = cfg.Claude.Model
	}
	c, err := claude.NewClient("", model)
	if err != nil {
		return nil, err
	}
	c.SetMaxTokens(cfg.Claude.MaxTokens)
	return c, nil
}

func inferDepsCmd() *cobra.Command {
	var (
		flagApply    bool
		flagModel    string
		flagFromFile string
	)

	cmd := &cobra.Command{
		Use:   "infer-deps <project-file>",
		Short: "Use Claude to infer task dependencies from task names",
		Long: `Sends the active tasks to Claude and infers dependency edges.
Edges naming unknown tasks, self-dependencies, duplicates and edges that
would create a cycle are skipped. By default runs in dry-run mode — use
--apply to write the dependencies into the project file.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			p, _, err := loadProject(path)
			if err != nil {
				return err
			}

			summaries := claude.Summaries(p)
			if len(summaries) == 0 {
				return fmt.Errorf("no active tasks found")
			}

			var result *claude.InferDepsResult
			if flagFromFile != "" {
				data, err := os.ReadFile(flagFromFile)
				if err != nil {
					return fmt.Errorf("read from-file: %w", err)
				}
				result = &claude.InferDepsResult{}
				if err := json.Unmarshal(data, result); err != nil {
					return fmt.Errorf("parse from-file: %w", err)
				}
				fmt.Printf("📂 Loaded %s edges from %s\n", ui.Bold(len(result.Edges)), ui.Dim(flagFromFile))
			} else {
				fmt.Printf("🔍 Sending %s tasks to Claude for dependency inference...\n", ui.Bold(len(summaries)))

				client, err := newClaudeClient(flagModel)
				if err != nil {
					return err
				}
				ctx, cancel := signalContext()
				defer cancel()
				result, err = client.InferDeps(ctx, summaries)
				if err != nil {
					return fmt.Errorf("infer deps: %w", err)
				}
			}

			merged, accepted, rejected := claude.Merge(p, result.Edges)
			for _, r := range rejected {
				fmt.Printf("  %s %s ← %s: %s\n", ui.Yellow("⏭️  SKIP:"), r.Edge.SuccessorID, r.Edge.PredecessorID, r.Reason)
			}

			if flagJSON {
				if err := outputJSON(struct {
					Edges    []claude.DepEdge   `json:"edges"`
					Rejected []claude.Rejection `json:"rejected,omitempty"`
					Summary  string             `json:"summary"`
				}{accepted, rejected, result.Summary}); err != nil {
					return err
				}
			} else {
				fmt.Printf("\n🔗 Inferred %s dependencies (%d from Claude, %d after validation):\n\n",
					ui.Bold(len(accepted)), len(result.Edges), len(accepted))
				for _, e := range accepted {
					typ := e.Type
					if typ == "" {
						typ = "FS"
					}
					fmt.Printf("  %s %s waits on %s %s  — %s\n", ui.Cyan("→"), ui.BoldMagenta(e.SuccessorID),
						ui.BoldMagenta(e.PredecessorID), ui.Dim(fmt.Sprintf("(%s%+dd)", typ, e.LagDays)), ui.Dim(e.Reason))
				}
				if result.Summary != "" {
					fmt.Printf("\n💡 %s %s\n", ui.BoldWhite("Summary:"), result.Summary)
				}
			}

			if !flagApply {
				if !flagJSON {
					fmt.Printf("\n🎯 %s\n", ui.Yellow("Dry run — use --apply to write these dependencies to the project."))
				}
				return nil
			}
			if len(accepted) == 0 {
				return nil
			}

			before := cpm.Compute(p)
			after := cpm.Compute(merged)
			if err := project.Save(path, merged); err != nil {
				return err
			}
			if !flagJSON {
				fmt.Printf("\n🏁 Applied %s dependencies; finish day %d → %d.\n",
					ui.BoldGreen(len(accepted)), before.FinishDays, after.FinishDays)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&flagApply, "apply", false, "Write inferred deps to the project file (default: dry-run)")
	cmd.Flags().StringVar(&flagModel, "model", "", "Claude model to use (default: config or Sonnet)")
	cmd.Flags().StringVar(&flagFromFile, "from-file", "", "Load inferred deps from a JSON file instead of calling Claude")

	return cmd
}

func explainCmd() *cobra.Command {
	var flagModel string

	cmd := &cobra.Command{
		Use:   "explain [project-file]",
		Short: "Ask Claude to explain what drives the schedule",
		Long: `Sends the schedule report (critical path, slack and issues) to Claude and
prints a short narrative. Without a project file the last cached schedule
is used.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				res    *cpm.Result
				issues []validate.Issue
			)
			if len(args) == 1 {
				var err error
				if _, res, issues, err = computeProject(args[0]); err != nil {
					return err
				}
			} else {
				snap, err := state.New(cfg.StateDir).Load()
				if errors.Is(err, state.ErrNoState) {
					return fmt.Errorf("no cached schedule; pass a project file or run `critpath schedule` first")
				}
				if err != nil {
					return err
				}
				res, issues = snap.Result, snap.Issues
			}

			report, err := reporter.New(res, issues).JSON()
			if err != nil {
				return err
			}

			client, err := newClaudeClient(flagModel)
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()

			text, err := client.ExplainSchedule(ctx, string(report))
			if err != nil {
				return fmt.Errorf("explain schedule: %w", err)
			}

			if flagJSON {
				return outputJSON(map[string]string{"explanation": text})
			}
			fmt.Printf("💡 %s\n\n%s\n", ui.BoldCyan("Schedule explanation"), text)
			return nil
		},
	}

	cmd.Flags().StringVar(&flagModel, "model", "", "Claude model to use (default: config or Sonnet)")

	return cmd
}
