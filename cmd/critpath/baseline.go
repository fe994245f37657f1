package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/joshharrison/critpath/internal/baseline"
	"github.com/joshharrison/critpath/internal/reporter"
	"github.com/joshharrison/critpath/internal/ui"
)

func openBaselines() (*baseline.Store, error) {
	if dir := filepath.Dir(cfg.BaselineDB); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create baseline dir: %w", err)
		}
	}
	return baseline.Open(cfg.BaselineDB)
}

func baselineCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "baseline",
		Short: "Save schedule baselines and compare against them",
	}
	cmd.AddCommand(baselineSaveCmd())
	cmd.AddCommand(baselineListCmd())
	cmd.AddCommand(baselineShowCmd())
	cmd.AddCommand(baselineDiffCmd())
	cmd.AddCommand(baselineRmCmd())
	return cmd
}

func baselineSaveCmd() *cobra.Command {
	var flagName string

	cmd := &cobra.Command{
		Use:   "save <project-file>",
		Short: "Compute a project and store the schedule as a baseline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			_, res, _, err := computeProject(path)
			if err != nil {
				return err
			}

			store, err := openBaselines()
			if err != nil {
				return err
			}
			defer store.Close()

			name := flagName
			if name == "" {
				name = filepath.Base(path)
			}
			b, err := store.Save(context.Background(), name, path, res)
			if err != nil {
				return err
			}

			if flagJSON {
				return outputJSON(b)
			}
			fmt.Printf("📌 Saved baseline %s %s: %d tasks, finish day %d\n",
				ui.Bold(b.Name), ui.Dim("("+b.ID+")"), b.TaskCount, b.FinishDays)
			return nil
		},
	}

	cmd.Flags().StringVar(&flagName, "name", "", "Baseline name (default: project file name)")

	return cmd
}

func baselineListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved baselines, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openBaselines()
			if err != nil {
				return err
			}
			defer store.Close()

			list, err := store.List(context.Background())
			if err != nil {
				return err
			}
			if flagJSON {
				if list == nil {
					list = []baseline.Baseline{}
				}
				return outputJSON(list)
			}
			if len(list) == 0 {
				fmt.Printf("%s No baselines saved.\n", ui.Dim("📌"))
				return nil
			}

			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tTASKS\tFINISH\tCREATED")
			for _, b := range list {
				fmt.Fprintf(tw, "%s\t%s\t%d\tday %d\t%s\n",
					b.ID[:8], b.Name, b.TaskCount, b.FinishDays, b.CreatedAt.Local().Format("2006-01-02 15:04"))
			}
			return tw.Flush()
		},
	}
}

func baselineShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <baseline>",
		Short: "Show a saved baseline (id, id prefix or name)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openBaselines()
			if err != nil {
				return err
			}
			defer store.Close()

			b, err := store.Resolve(context.Background(), args[0])
			if err != nil {
				return err
			}
			if flagJSON {
				return outputJSON(b)
			}

			fmt.Printf("📌 %s %s %s\n", ui.BoldCyan("Baseline"), ui.Bold(b.Name), ui.Dim("("+b.ID+")"))
			fmt.Printf("Saved: %s\n\n", b.CreatedAt.Local().Format("2006-01-02 15:04:05"))
			rpt := reporter.New(b.Result, nil)
			rpt.ProjectFile = b.ProjectFile
			rpt.PrintSchedule(os.Stdout)
			return nil
		},
	}
}

func baselineDiffCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "diff <baseline> <project-file>",
		Short: "Compare a project's current schedule against a baseline",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openBaselines()
			if err != nil {
				return err
			}
			defer store.Close()

			b, err := store.Resolve(context.Background(), args[0])
			if err != nil {
				return err
			}
			_, res, _, err := computeProject(args[1])
			if err != nil {
				return err
			}

			vs := baseline.Compare(b.Result, res)
			slip := baseline.FinishSlip(b.Result, res)
			if flagJSON {
				return outputJSON(struct {
					Baseline   string              `json:"baseline"`
					FinishSlip int                 `json:"finish_slip"`
					Variances  []baseline.Variance `json:"variances"`
				}{b.ID, slip, vs})
			}
			reporter.PrintVariance(os.Stdout, b, vs, slip)
			return nil
		},
	}
}

func baselineRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <baseline>",
		Short: "Delete a saved baseline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openBaselines()
			if err != nil {
				return err
			}
			defer store.Close()

			ctx := context.Background()
			b, err := store.Resolve(ctx, args[0])
			if err != nil {
				return err
			}
			if err := store.Delete(ctx, b.ID); err != nil {
				return err
			}
			fmt.Printf("🗑️  Deleted baseline %s %s\n", ui.Bold(b.Name), ui.Dim("("+b.ID+")"))
			return nil
		},
	}
}
