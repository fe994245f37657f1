package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/joshharrison/critpath/internal/cpm"
	"github.com/joshharrison/critpath/internal/project"
	"github.com/joshharrison/critpath/internal/reporter"
	"github.com/joshharrison/critpath/internal/ui"
	"github.com/joshharrison/critpath/internal/validate"
)

func validateCmd() *cobra.Command {
	var (
		flagFix bool
		flagMin string
	)

	cmd := &cobra.Command{
		Use:   "validate <project-file>",
		Short: "Check a project for errors and scheduling problems",
		Long: `Runs the diagnostics pass over a project and its schedule: duplicate or
missing ids, invalid durations, broken or duplicate dependencies, cycles and
start date problems. With --fix, repairable issues are fixed and the project
file is rewritten. Exits non-zero when a critical or error issue remains.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			p, res, issues, err := computeProject(path)
			if err != nil {
				return err
			}

			if flagFix {
				fixed, n := validate.Apply(p, issues, time.Now())
				if n > 0 {
					if err := project.Save(path, fixed); err != nil {
						return err
					}
					fmt.Printf("🔧 Applied %s fixes to %s\n", ui.BoldGreen(n), ui.Dim(path))
					p = fixed
					res = cpm.Compute(p)
					issues = validate.Run(p, res)
					validate.SortBySeverity(issues)
				} else {
					fmt.Printf("🔧 %s\n", ui.Dim("Nothing to fix."))
				}
			}

			shown := issues
			if flagMin != "" {
				floor, err := validate.ParseSeverity(flagMin)
				if err != nil {
					return err
				}
				shown = validate.FilterMin(issues, floor)
			}

			if flagJSON {
				if err := outputJSON(struct {
					Status cpm.Status                `json:"status"`
					Counts map[validate.Severity]int `json:"counts"`
					Issues []validate.Issue          `json:"issues"`
				}{res.Status, validate.Counts(issues), nonNil(shown)}); err != nil {
					return err
				}
			} else {
				reporter.New(res, shown).PrintIssues(os.Stdout)
			}

			switch validate.Worst(issues) {
			case validate.Critical, validate.Error:
				return fmt.Errorf("%s has blocking issues", path)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&flagFix, "fix", false, "Repair fixable issues and rewrite the project file")
	cmd.Flags().StringVar(&flagMin, "min", "", "Only show issues at or above this severity (critical, error, warn, info)")

	return cmd
}

func nonNil(issues []validate.Issue) []validate.Issue {
	if issues == nil {
		return []validate.Issue{}
	}
	return issues
}
