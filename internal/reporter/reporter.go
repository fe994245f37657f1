// Package reporter renders schedules, issues and baseline variances for
// the terminal and as JSON.
package reporter

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/joshharrison/critpath/internal/baseline"
	"github.com/joshharrison/critpath/internal/cpm"
	"github.com/joshharrison/critpath/internal/deps"
	"github.com/joshharrison/critpath/internal/ui"
	"github.com/joshharrison/critpath/internal/validate"
)

// Reporter provides display for one computed schedule.
type Reporter struct {
	Result      *cpm.Result
	Issues      []validate.Issue
	ProjectFile string
}

// New creates a new Reporter.
func New(result *cpm.Result, issues []validate.Issue) *Reporter {
	return &Reporter{Result: result, Issues: issues}
}

// FinishDate returns the calendar date of the project finish, or "" when
// it cannot be derived.
func (r *Reporter) FinishDate() string {
	for _, t := range r.Result.Tasks {
		if t.EF == r.Result.FinishDays && t.Finish != "" {
			return t.Finish
		}
	}
	return ""
}

// PrintSchedule writes a terminal-friendly schedule grouped by start day.
func (r *Reporter) PrintSchedule(w io.Writer) {
	res := r.Result
	critical := 0
	for _, t := range res.Tasks {
		if t.Critical {
			critical++
		}
	}

	title := "📅 Critpath Schedule"
	if r.ProjectFile != "" {
		title += " " + ui.Dim("("+r.ProjectFile+")")
	}
	fmt.Fprintf(w, "%s\n", ui.BoldCyan(title))
	fmt.Fprintln(w, ui.Cyan("═══════════════════════════"))
	fmt.Fprintf(w, "Status:    %s\n", ui.ScheduleStatus(string(res.Status)))
	fmt.Fprintf(w, "Tasks:     %s scheduled, %s critical\n", ui.Bold(len(res.Tasks)), ui.Bold(critical))
	finish := fmt.Sprintf("day %d", res.FinishDays)
	if d := r.FinishDate(); d != "" {
		finish += " (" + d + ")"
	}
	fmt.Fprintf(w, "Finish:    %s\n", ui.Bold(finish))
	if len(res.CriticalPath) > 0 {
		fmt.Fprintf(w, "★ Critical path: %s\n", ui.BoldRed(strings.Join(res.CriticalPath, " → ")))
	}
	if len(res.Excluded) > 0 {
		fmt.Fprintf(w, "%s %s\n", ui.BoldYellow("⚠️  Excluded by cycle:"), strings.Join(res.Excluded, ", "))
	}
	fmt.Fprintln(w)

	for _, wave := range res.Waves {
		fmt.Fprintf(w, "  🌊 %s %d (day %d, %d tasks)\n", ui.BoldWhite("WAVE"), wave.Index+1, wave.Day, len(wave.TaskIDs))
		for _, id := range wave.TaskIDs {
			if t, ok := res.Task(id); ok {
				r.printTask(w, t)
			}
		}
		fmt.Fprintln(w)
	}

	if len(r.Issues) > 0 {
		r.PrintIssues(w)
	}
}

func (r *Reporter) printTask(w io.Writer, t *cpm.ScheduledTask) {
	name := t.Name
	if len(name) > 40 {
		name = name[:37] + "..."
	}
	dates := ""
	if t.Start != "" {
		dates = ui.Dim(fmt.Sprintf("%s → %s", t.Start, t.Finish))
	}
	slack := ui.Dim(fmt.Sprintf("slack %d", t.Slack))
	if t.Critical {
		slack = ui.BoldRed("critical")
	}
	fmt.Fprintf(w, "    %s %-10s %-40s %3dd  [%d-%d]  %s  %s\n",
		ui.CriticalMarker(t.Critical), ui.BoldMagenta(t.ID), name, t.Days(), t.ES, t.EF, dates, slack)
}

// PrintIssues writes issues most severe first with a count footer.
func (r *Reporter) PrintIssues(w io.Writer) {
	issues := append([]validate.Issue(nil), r.Issues...)
	validate.SortBySeverity(issues)

	fmt.Fprintf(w, "🩺 %s\n", ui.BoldCyan("Issues"))
	for _, it := range issues {
		prefix := ""
		if it.TaskID != "" {
			prefix = ui.TaskPrefix(it.TaskID) + " "
		}
		fix := ""
		if it.Fix != nil {
			fix = " " + ui.Dim("(fixable)")
		}
		fmt.Fprintf(w, "  %s %s%s%s\n", ui.SeverityIcon(string(it.Sev)), prefix, it.Msg, fix)
	}

	counts := validate.Counts(issues)
	parts := make([]string, 0, len(validate.Severities))
	for _, sev := range validate.Severities {
		if n := counts[sev]; n > 0 {
			parts = append(parts, ui.Severity(string(sev))+" "+fmt.Sprint(n))
		}
	}
	if len(parts) == 0 {
		fmt.Fprintf(w, "  %s\n", ui.Green("✓ no issues"))
		return
	}
	fmt.Fprintf(w, "%s %s\n", ui.Cyan("──"), strings.Join(parts, ", "))
}

// Summary returns a one-paragraph summary string.
func (r *Reporter) Summary() string {
	var b strings.Builder
	res := r.Result

	statusEmoji := "✅"
	if res.Status == cpm.StatusPartialWithCycle {
		statusEmoji = "⚠️"
	}
	fmt.Fprintf(&b, "%s %s: %d tasks, finish day %d", statusEmoji, ui.BoldCyan("Schedule"), len(res.Tasks), res.FinishDays)
	if d := r.FinishDate(); d != "" {
		fmt.Fprintf(&b, " (%s)", d)
	}
	if n := len(res.Excluded); n > 0 {
		fmt.Fprintf(&b, ", %s", ui.Yellow(fmt.Sprintf("%d excluded by cycle", n)))
	}
	if worst := validate.Worst(r.Issues); worst != "" {
		fmt.Fprintf(&b, ", worst issue %s", ui.Severity(string(worst)))
	}
	b.WriteString("\n")
	return b.String()
}

// JSON returns the machine-readable schedule report.
func (r *Reporter) JSON() ([]byte, error) {
	type output struct {
		ProjectFile  string           `json:"project_file,omitempty"`
		Status       cpm.Status       `json:"status"`
		FinishDays   int              `json:"finish_days"`
		FinishDate   string           `json:"finish_date,omitempty"`
		CriticalPath []string         `json:"critical_path"`
		Excluded     []string         `json:"excluded,omitempty"`
		Schedule     *cpm.Result      `json:"schedule"`
		Issues       []validate.Issue `json:"issues"`
	}

	o := output{
		ProjectFile:  r.ProjectFile,
		Status:       r.Result.Status,
		FinishDays:   r.Result.FinishDays,
		FinishDate:   r.FinishDate(),
		CriticalPath: r.Result.CriticalPath,
		Excluded:     r.Result.Excluded,
		Schedule:     r.Result,
		Issues:       r.Issues,
	}
	if o.CriticalPath == nil {
		o.CriticalPath = []string{}
	}
	if o.Issues == nil {
		o.Issues = []validate.Issue{}
	}
	return json.MarshalIndent(o, "", "  ")
}

// PrintGraph writes the dependency graph as indented text, wave by wave.
func (r *Reporter) PrintGraph(w io.Writer) {
	fmt.Fprintf(w, "🔗 %s\n", ui.BoldCyan("Task Dependency Graph"))
	fmt.Fprintln(w, ui.Cyan("═══════════════════════"))
	fmt.Fprintln(w)

	succs := r.successors()
	for _, wave := range r.Result.Waves {
		fmt.Fprintf(w, "%s 🌊 Wave %d %s\n", ui.Cyan("──"), wave.Index+1, ui.Cyan("──────────────────────────────"))
		for _, id := range wave.TaskIDs {
			t, ok := r.Result.Task(id)
			if !ok {
				continue
			}
			fmt.Fprintf(w, "  %s [%s] %s\n", ui.CriticalMarker(t.Critical), ui.BoldMagenta(t.ID), t.Name)
			for _, s := range succs[id] {
				fmt.Fprintf(w, "      %s %s\n", ui.Dim("└──→"), ui.Magenta(s))
			}
		}
		fmt.Fprintln(w)
	}
}

// WriteDOT writes the dependency graph in Graphviz DOT format. Critical
// tasks and edges between them are drawn in red.
func (r *Reporter) WriteDOT(w io.Writer) {
	fmt.Fprintln(w, "digraph critpath {")
	fmt.Fprintln(w, "  rankdir=LR;")
	fmt.Fprintln(w, "  node [shape=box, style=rounded];")
	fmt.Fprintln(w)

	critical := make(map[string]bool, len(r.Result.Tasks))
	for _, t := range r.Result.Tasks {
		critical[t.ID] = t.Critical
		label := fmt.Sprintf("%s\\n%s\\n%dd", t.ID, escapeDOT(t.Name), t.Days())
		attrs := fmt.Sprintf(`label="%s"`, label)
		if t.Critical {
			attrs += `, style="rounded,bold", color=red`
		}
		fmt.Fprintf(w, "  %q [%s];\n", t.ID, attrs)
	}

	fmt.Fprintln(w)

	for _, t := range r.Result.Tasks {
		for _, e := range deps.Normalize(t.Deps) {
			if _, ok := critical[e.Pred]; !ok || e.Pred == t.ID {
				continue
			}
			attrs := []string{}
			if e.Type != deps.FS || e.Lag != 0 {
				attrs = append(attrs, fmt.Sprintf("label=%q", edgeLabel(e)))
			}
			if critical[e.Pred] && t.Critical {
				attrs = append(attrs, "color=red", "penwidth=2")
			}
			style := ""
			if len(attrs) > 0 {
				style = " [" + strings.Join(attrs, ", ") + "]"
			}
			fmt.Fprintf(w, "  %q -> %q%s;\n", e.Pred, t.ID, style)
		}
	}

	fmt.Fprintln(w, "}")
}

func (r *Reporter) successors() map[string][]string {
	scheduled := make(map[string]bool, len(r.Result.Tasks))
	for _, t := range r.Result.Tasks {
		scheduled[t.ID] = true
	}
	out := make(map[string][]string)
	for _, t := range r.Result.Tasks {
		for _, e := range deps.Normalize(t.Deps) {
			if scheduled[e.Pred] && e.Pred != t.ID {
				out[e.Pred] = append(out[e.Pred], t.ID)
			}
		}
	}
	return out
}

func edgeLabel(e deps.Edge) string {
	if e.Lag == 0 {
		return string(e.Type)
	}
	return fmt.Sprintf("%s%+dd", e.Type, e.Lag)
}

func escapeDOT(s string) string {
	return strings.ReplaceAll(s, `"`, `\"`)
}

// PrintVariance writes a baseline comparison table.
func PrintVariance(w io.Writer, base *baseline.Baseline, vs []baseline.Variance, slip int) {
	fmt.Fprintf(w, "📐 %s %s %s\n", ui.BoldCyan("Variance against"), ui.Bold(base.Name), ui.Dim("("+shortID(base.ID)+")"))
	fmt.Fprintln(w, ui.Cyan("═══════════════════════════"))

	slipText := ui.Green("on time")
	switch {
	case slip > 0:
		slipText = ui.BoldRed(fmt.Sprintf("+%d days late", slip))
	case slip < 0:
		slipText = ui.BoldGreen(fmt.Sprintf("%d days early", -slip))
	}
	fmt.Fprintf(w, "Finish:    %s\n\n", slipText)

	for _, v := range vs {
		var detail string
		switch v.Change {
		case baseline.Added:
			detail = ui.Cyan(fmt.Sprintf("added [%d-%d]", v.Start, v.Finish))
		case baseline.Removed:
			detail = ui.Dim(fmt.Sprintf("removed (was [%d-%d])", v.BaseStart, v.BaseFinish))
		case baseline.Moved:
			detail = fmt.Sprintf("[%d-%d] → [%d-%d]  %s", v.BaseStart, v.BaseFinish, v.Start, v.Finish, delta(v.FinishDelta))
		default:
			detail = ui.Dim(fmt.Sprintf("[%d-%d]", v.Start, v.Finish))
		}
		fmt.Fprintf(w, "    %s %-10s %-40s %s\n", ui.CriticalMarker(v.Critical), ui.BoldMagenta(v.TaskID), v.Name, detail)
	}
}

func delta(d int) string {
	switch {
	case d > 0:
		return ui.Red(fmt.Sprintf("+%dd", d))
	case d < 0:
		return ui.Green(fmt.Sprintf("%dd", d))
	}
	return ui.Dim("±0d")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
