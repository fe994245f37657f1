package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joshharrison/critpath/internal/cpm"
	"github.com/joshharrison/critpath/internal/deps"
	"github.com/joshharrison/critpath/internal/project"
	"github.com/joshharrison/critpath/internal/reporter"
	"github.com/joshharrison/critpath/internal/state"
	"github.com/joshharrison/critpath/internal/ui"
	"github.com/joshharrison/critpath/internal/viewer"
)

func scheduleCmd() *cobra.Command {
	var (
		flagNoSave bool
		flagPush   bool
	)

	cmd := &cobra.Command{
		Use:   "schedule <project-file>",
		Short: "Compute the critical path schedule for a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			p, res, issues, err := computeProject(path)
			if err != nil {
				return err
			}

			if !flagNoSave {
				saveState(path, res, issues)
			}
			if flagPush {
				pushToViewer(p)
			}

			view := res
			if flagFilter != "" {
				view, err = applyFilter(res, flagFilter)
				if err != nil {
					return fmt.Errorf("apply filter: %w", err)
				}
			}

			rpt := reporter.New(view, issues)
			rpt.ProjectFile = path

			if flagJSON || flagOutput != "" {
				data, err := rpt.JSON()
				if err != nil {
					return err
				}
				if flagOutput != "" {
					return writeOutput(flagOutput, data)
				}
				fmt.Println(string(data))
				return nil
			}

			rpt.PrintSchedule(os.Stdout)
			fmt.Print(reporter.New(res, issues).Summary())
			return nil
		},
	}

	cmd.Flags().StringVar(&flagFilter, "filter", "", "Show only matching tasks (phase=X, subsystem=X, critical, slack<=N)")
	cmd.Flags().StringVarP(&flagOutput, "output", "o", "", "Save the JSON report to a file")
	cmd.Flags().BoolVar(&flagNoSave, "no-save", false, "Do not cache the result as the last schedule")
	cmd.Flags().BoolVar(&flagPush, "push", false, "Send the project to a running viewer")

	return cmd
}

// pushToViewer posts p to the viewer at the configured address when one is
// listening.
func pushToViewer(p *project.Project) {
	addr := cfg.Server.Addr
	if !viewer.IsPortOpen(addr) {
		log.Warnf("no viewer listening on %s (start one with `critpath serve`)", addr)
		return
	}
	id, err := viewer.PostProject("http://"+addr, p)
	if err != nil {
		log.Warnf("push to viewer: %v", err)
		return
	}
	fmt.Printf("✅ Sent to viewer at %s %s\n", ui.Cyan("http://"+addr), ui.Dim("("+id+")"))
}

func graphCmd() *cobra.Command {
	var flagFormat string

	cmd := &cobra.Command{
		Use:   "graph <project-file>",
		Short: "Print the task dependency graph",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, res, issues, err := computeProject(args[0])
			if err != nil {
				return err
			}
			if flagFilter != "" {
				if res, err = applyFilter(res, flagFilter); err != nil {
					return fmt.Errorf("apply filter: %w", err)
				}
			}

			rpt := reporter.New(res, issues)
			var buf bytes.Buffer
			switch flagFormat {
			case "ascii":
				rpt.PrintGraph(&buf)
			case "dot":
				rpt.WriteDOT(&buf)
			default:
				return fmt.Errorf("unknown format %q (use ascii or dot)", flagFormat)
			}

			if flagOutput != "" {
				return writeOutput(flagOutput, buf.Bytes())
			}
			_, err = os.Stdout.Write(buf.Bytes())
			return err
		},
	}

	cmd.Flags().StringVar(&flagFormat, "format", "ascii", "Output format: ascii or dot")
	cmd.Flags().StringVar(&flagFilter, "filter", "", "Show only matching tasks")
	cmd.Flags().StringVarP(&flagOutput, "output", "o", "", "Write the graph to a file")

	return cmd
}

func statusCmd() *cobra.Command {
	var flagClean bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the last computed schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			store := state.New(cfg.StateDir)

			if flagClean {
				if err := store.Clean(); err != nil {
					return err
				}
				fmt.Printf("🧹 %s\n", ui.Dim("Cleared cached schedule."))
				return nil
			}

			snap, err := store.Load()
			if errors.Is(err, state.ErrNoState) {
				return fmt.Errorf("no cached schedule (no %s found); run `critpath schedule` first", store.Path())
			}
			if err != nil {
				return err
			}

			if flagJSON {
				return outputJSON(snap)
			}

			rpt := reporter.New(snap.Result, snap.Issues)
			rpt.ProjectFile = snap.ProjectFile
			fmt.Printf("🕒 %s %s\n", ui.BoldCyan("Computed:"), snap.ComputedAt.Format("2006-01-02 15:04:05"))
			rpt.PrintSchedule(os.Stdout)
			fmt.Print(rpt.Summary())
			return nil
		},
	}

	cmd.Flags().BoolVar(&flagClean, "clean", false, "Delete the cached schedule")

	return cmd
}

func shiftCmd() *cobra.Command {
	var (
		flagSNET   bool
		flagDryRun bool
	)

	cmd := &cobra.Command{
		Use:   "shift <project-file> <task-id> <days>",
		Short: "Move a task later or earlier by adjusting its incoming lags",
		Long: `Moves a task by the given number of days. By default the lag of every
finish-to-start and start-to-start dependency of the task is adjusted; with
--snet (or when the task has no such dependencies) a start-no-earlier-than
constraint is set instead. The project file is rewritten in place.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, id := args[0], args[1]
			delta, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("days must be an integer: %w", err)
			}

			p, _, err := loadProject(path)
			if err != nil {
				return err
			}
			before := cpm.Compute(p)
			cur, ok := before.Task(id)
			if !ok {
				return fmt.Errorf("task %s is not scheduled", id)
			}

			t, _ := p.Task(id)
			how := shiftTask(t, cur.ES, delta, flagSNET)
			after := cpm.Compute(p)
			moved, _ := after.Task(id)

			fmt.Printf("↔️  %s %s: %s\n", ui.BoldCyan("Shift"), ui.BoldMagenta(id), how)
			fmt.Printf("   start day %d → %d, finish day %d → %d\n", cur.ES, moved.ES, before.FinishDays, after.FinishDays)

			if flagDryRun {
				fmt.Printf("\n🎯 %s\n", ui.Yellow("Dry run — project file not modified."))
				return nil
			}
			if err := project.Save(path, p); err != nil {
				return err
			}
			fmt.Printf("💾 Saved %s\n", ui.Dim(path))
			return nil
		},
	}

	cmd.Flags().BoolVar(&flagSNET, "snet", false, "Set a start-no-earlier-than constraint instead of adjusting lags")
	cmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "Show the effect without saving")

	return cmd
}

// shiftTask moves t by delta days and describes what it changed.
func shiftTask(t *project.Task, es, delta int, snet bool) string {
	if !snet && hasStartLinks(t.Deps) {
		t.Deps = deps.ShiftLags(t.Deps, delta)
		return fmt.Sprintf("adjusted incoming lags by %+dd", delta)
	}
	day := es + delta
	if day < 0 {
		day = 0
	}
	t.StartConstraint = &project.StartConstraint{Type: project.SNET, Day: day}
	t.FixedStart = nil
	return fmt.Sprintf("set SNET constraint at day %d", day)
}

func hasStartLinks(tokens []string) bool {
	for _, e := range deps.Normalize(tokens) {
		if e.Type == deps.FS || e.Type == deps.SS {
			return true
		}
	}
	return false
}

// applyFilter narrows a result for display. Supported formats:
// "phase=X", "subsystem=X", "critical", "slack<=N".
func applyFilter(res *cpm.Result, filter string) (*cpm.Result, error) {
	var keep func(t *cpm.ScheduledTask) bool
	switch {
	case filter == "critical":
		keep = func(t *cpm.ScheduledTask) bool { return t.Critical }
	case strings.HasPrefix(filter, "phase="):
		phase := strings.TrimPrefix(filter, "phase=")
		keep = func(t *cpm.ScheduledTask) bool { return t.Phase == phase }
	case strings.HasPrefix(filter, "subsystem="):
		sub := strings.TrimPrefix(filter, "subsystem=")
		keep = func(t *cpm.ScheduledTask) bool { return t.Subsystem == sub }
	case strings.HasPrefix(filter, "slack<="):
		n, err := strconv.Atoi(strings.TrimPrefix(filter, "slack<="))
		if err != nil {
			return nil, fmt.Errorf("invalid slack filter: %s", filter)
		}
		keep = func(t *cpm.ScheduledTask) bool { return t.Slack <= n }
	default:
		return nil, fmt.Errorf("unsupported filter: %s (use phase=X, subsystem=X, critical or slack<=N)", filter)
	}

	out := *res
	out.Tasks = nil
	ids := make(map[string]bool)
	for i := range res.Tasks {
		if keep(&res.Tasks[i]) {
			out.Tasks = append(out.Tasks, res.Tasks[i])
			ids[res.Tasks[i].ID] = true
		}
	}

	out.CriticalPath = nil
	for _, id := range res.CriticalPath {
		if ids[id] {
			out.CriticalPath = append(out.CriticalPath, id)
		}
	}

	out.Waves = nil
	for _, w := range res.Waves {
		var kept []string
		for _, id := range w.TaskIDs {
			if ids[id] {
				kept = append(kept, id)
			}
		}
		if len(kept) > 0 {
			w.TaskIDs = kept
			out.Waves = append(out.Waves, w)
		}
	}
	return &out, nil
}
