// Package validate produces user-facing diagnostics for a project and its
// computed schedule. It is deliberately separate from the cpm engine: the
// engine drops bad input silently and this package explains what was
// dropped and why.
package validate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/joshharrison/critpath/internal/cpm"
	"github.com/joshharrison/critpath/internal/deps"
	"github.com/joshharrison/critpath/internal/duration"
	"github.com/joshharrison/critpath/internal/graph"
	"github.com/joshharrison/critpath/internal/project"
)

const cycleMsg = "Circular dependency detected or invalid graph structure. Some tasks are excluded from calculation."

// Run checks p and the result computed from it. result may be nil, in
// which case schedule checks are skipped. Engine warnings are folded in
// and exact duplicates (same severity, message and task) are removed.
func Run(p *project.Project, result *cpm.Result) []Issue {
	if p == nil {
		return []Issue{{Sev: Critical, Msg: "Invalid project file format. Expected a JSON object."}}
	}
	var issues []Issue
	issues = checkTasks(p, issues)
	issues = checkDependencies(p, issues)
	issues = checkCycles(p, result, issues)
	issues = checkSchedule(p, result, issues)

	if result != nil {
		for _, w := range result.Warnings {
			issues = append(issues, Issue{Sev: Severity(w.Sev), Msg: w.Msg, TaskID: w.TaskID,
				Fix: msoFix(p, result, w.TaskID)})
		}
	}
	return dedupe(issues)
}

// msoFix moves a violated MSO day to the start the dependencies force,
// which is the ES the engine scheduled. It returns nil for any other task.
func msoFix(p *project.Project, result *cpm.Result, id string) *Fix {
	if id == "" {
		return nil
	}
	st, ok := result.Task(id)
	if !ok {
		return nil
	}
	for i := range p.Tasks {
		if p.Tasks[i].ID != id {
			continue
		}
		sc := p.Tasks[i].StartConstraint
		if sc == nil || sc.Type != project.MSO || st.ES <= sc.Day {
			return nil
		}
		return &Fix{Kind: FixMSODay, Index: i, Day: st.ES}
	}
	return nil
}

func checkTasks(p *project.Project, issues []Issue) []Issue {
	seen := make(map[string]bool, len(p.Tasks))
	dupSet := make(map[string]bool)
	var dups []string
	for _, t := range p.Tasks {
		if t.ID != "" && seen[t.ID] && !dupSet[t.ID] {
			dupSet[t.ID] = true
			dups = append(dups, t.ID)
		}
		if t.ID != "" {
			seen[t.ID] = true
		}
	}
	if len(dups) > 0 {
		issues = append(issues, Issue{
			Sev: Critical,
			Msg: "Duplicate task ID(s) found: " + strings.Join(dups, ", "),
			Fix: &Fix{Kind: FixDedupeIDs},
		})
	}

	for i, t := range p.Tasks {
		if strings.TrimSpace(t.ID) == "" {
			issues = append(issues, Issue{Sev: Error, Msg: "Task found with missing ID.", TaskID: t.ID,
				Fix: &Fix{Kind: FixAssignID, Index: i}})
		}
		if strings.TrimSpace(t.ID) != "" && !deps.Referable(t.ID) {
			issues = append(issues, Issue{Sev: Warn, TaskID: t.ID,
				Msg: fmt.Sprintf("Task ID %q reads as a dependency with a lag or type; other tasks cannot depend on it reliably.", t.ID)})
		}
		if strings.TrimSpace(t.Name) == "" {
			issues = append(issues, Issue{Sev: Error, Msg: "Task has a missing name.", TaskID: t.ID,
				Fix: &Fix{Kind: FixAssignName, Index: i}})
		}
		if err := t.Duration.Validate(); err != nil {
			issues = append(issues, Issue{Sev: Error, Msg: "Invalid duration: " + err.Error(), TaskID: t.ID,
				Fix: &Fix{Kind: FixSetDuration, Index: i}})
		}
	}
	return issues
}

func checkDependencies(p *project.Project, issues []Issue) []Issue {
	byID := make(map[string]*project.Task, len(p.Tasks))
	for i := range p.Tasks {
		if _, ok := byID[p.Tasks[i].ID]; !ok {
			byID[p.Tasks[i].ID] = &p.Tasks[i]
		}
	}

	for i, t := range p.Tasks {
		seen := make(map[string]bool, len(t.Deps))
		for _, tok := range t.Deps {
			e, ok := deps.Decode(tok)
			if !ok {
				continue
			}
			if e.Pred == t.ID {
				issues = append(issues, Issue{Sev: Critical, Msg: "Self-dependency is not allowed.", TaskID: t.ID,
					Fix: &Fix{Kind: FixRemoveSelfDep, Index: i, Token: tok}})
			}
			pred, exists := byID[e.Pred]
			if !exists {
				issues = append(issues, Issue{Sev: Error, Msg: fmt.Sprintf("Links to missing dependency: %q.", e.Pred), TaskID: t.ID,
					Fix: &Fix{Kind: FixAddMissingTask, Index: i, Pred: e.Pred}})
			}
			if seen[e.Pred] {
				issues = append(issues, Issue{Sev: Warn, Msg: fmt.Sprintf("Duplicate dependency on %q.", e.Pred), TaskID: t.ID,
					Fix: &Fix{Kind: FixRemoveDuplicateDeps, Index: i}})
			}
			seen[e.Pred] = true
			if exists && !pred.IsActive() {
				issues = append(issues, Issue{Sev: Warn, Msg: fmt.Sprintf("Predecessor %q is inactive.", e.Pred), TaskID: t.ID,
					Fix: &Fix{Kind: FixActivatePredecessor, Index: i, Pred: e.Pred}})
			}
		}
	}
	return issues
}

// checkCycles relies on the engine's explicit exclusion list rather than a
// task count comparison, so duplicate ids are not mistaken for a cycle.
func checkCycles(p *project.Project, result *cpm.Result, issues []Issue) []Issue {
	if result == nil || (result.Status != cpm.StatusPartialWithCycle && len(result.Excluded) == 0) {
		return issues
	}
	msg := cycleMsg
	if path := graph.Build(p.Tasks).DetectCycle(); len(path) > 0 {
		msg += " Cycle: " + strings.Join(path, " → ")
	}
	return append(issues, Issue{Sev: Critical, Msg: msg})
}

func checkSchedule(p *project.Project, result *cpm.Result, issues []Issue) []Issue {
	switch {
	case strings.TrimSpace(p.StartDate) == "":
		issues = append(issues, Issue{Sev: Error, Msg: "Project start date is missing.",
			Fix: &Fix{Kind: FixSetStartDate}})
	case !validStartDate(p.StartDate):
		issues = append(issues, Issue{Sev: Error, Msg: fmt.Sprintf("Project start date %q is not a valid DD-MM-YYYY date.", p.StartDate),
			Fix: &Fix{Kind: FixSetStartDate}})
	}

	if result == nil {
		return issues
	}
	index := make(map[string]int, len(p.Tasks))
	for i := range p.Tasks {
		if _, ok := index[p.Tasks[i].ID]; !ok {
			index[p.Tasks[i].ID] = i
		}
	}
	for _, st := range result.Tasks {
		if duration.Days(st.Duration.Raw()) != 0 || isGate(&st.Task) {
			continue
		}
		issues = append(issues, Issue{
			Sev:    Info,
			Msg:    "Zero-duration task. Consider making it a milestone or setting duration to 1d.",
			TaskID: st.ID,
			Fix:    &Fix{Kind: FixSetDuration, Index: index[st.ID]},
		})
	}
	return issues
}

// isGate reports whether a zero-duration task is an intended milestone.
func isGate(t *project.Task) bool {
	return strings.Contains(strings.ToLower(t.Name), "gate") ||
		strings.Contains(strings.ToLower(t.Phase), "gate")
}

func dedupe(issues []Issue) []Issue {
	seen := make(map[string]bool, len(issues))
	out := make([]Issue, 0, len(issues))
	for _, it := range issues {
		k := it.key()
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, it)
	}
	return out
}

// Counts tallies issues per severity.
func Counts(issues []Issue) map[Severity]int {
	counts := make(map[Severity]int, len(Severities))
	for _, it := range issues {
		counts[it.Sev]++
	}
	return counts
}

// FilterMin keeps issues at least as severe as floor.
func FilterMin(issues []Issue, floor Severity) []Issue {
	out := make([]Issue, 0, len(issues))
	for _, it := range issues {
		if it.Sev.Rank() >= floor.Rank() {
			out = append(out, it)
		}
	}
	return out
}

// Worst returns the most severe severity present, or "" for no issues.
func Worst(issues []Issue) Severity {
	var worst Severity
	for _, it := range issues {
		if worst == "" || it.Sev.Rank() > worst.Rank() {
			worst = it.Sev
		}
	}
	return worst
}

// SortBySeverity orders issues most severe first, keeping the original
// order within a severity.
func SortBySeverity(issues []Issue) {
	sort.SliceStable(issues, func(i, j int) bool {
		return issues[i].Sev.Rank() > issues[j].Sev.Rank()
	})
}
