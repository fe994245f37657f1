package reporter

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/fatih/color"

	"github.com/joshharrison/critpath/internal/baseline"
	"github.com/joshharrison/critpath/internal/cpm"
	"github.com/joshharrison/critpath/internal/duration"
	"github.com/joshharrison/critpath/internal/project"
	"github.com/joshharrison/critpath/internal/validate"
)

func init() {
	color.NoColor = true
}

func makeResult() *cpm.Result {
	return cpm.Compute(&project.Project{
		StartDate: "02-01-2023",
		Calendar:  "workdays",
		Tasks: []project.Task{
			{ID: "a", Name: "Task A", Duration: duration.Of(2)},
			{ID: "b", Name: "Task B", Duration: duration.Of(1), Deps: []string{"a"}},
			{ID: "c", Name: `Task "C"`, Duration: duration.Of(3), Deps: []string{"SS:a+1d"}},
		},
	})
}

func makeIssues() []validate.Issue {
	return []validate.Issue{
		{Sev: validate.Info, Msg: "Zero-duration task.", TaskID: "b"},
		{Sev: validate.Critical, Msg: "Self-dependency is not allowed.", TaskID: "a",
			Fix: &validate.Fix{Kind: validate.FixRemoveSelfDep}},
	}
}

func TestPrintSchedule(t *testing.T) {
	rpt := New(makeResult(), makeIssues())
	rpt.ProjectFile = "plan.json"

	var buf bytes.Buffer
	rpt.PrintSchedule(&buf)
	output := buf.String()

	for _, want := range []string{
		"Critpath Schedule",
		"plan.json",
		"WAVE 1",
		"WAVE 2",
		"Task A",
		"★",
		"day 4 (06-01-2023)",
		"a → c",
		"(fixable)",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected output to contain %q", want)
		}
	}
	// Critical issues are listed before info.
	if strings.Index(output, "Self-dependency") > strings.Index(output, "Zero-duration") {
		t.Error("expected critical issue before info issue")
	}
}

func TestPrintSchedule_Cycle(t *testing.T) {
	res := cpm.Compute(&project.Project{
		StartDate: "02-01-2023",
		Tasks: []project.Task{
			{ID: "x", Name: "X", Duration: duration.Of(1), Deps: []string{"y"}},
			{ID: "y", Name: "Y", Duration: duration.Of(1), Deps: []string{"x"}},
		},
	})
	var buf bytes.Buffer
	New(res, nil).PrintSchedule(&buf)

	if !strings.Contains(buf.String(), "Excluded by cycle: x, y") {
		t.Errorf("expected excluded tasks in output, got:\n%s", buf.String())
	}
}

func TestPrintIssues_Empty(t *testing.T) {
	var buf bytes.Buffer
	New(makeResult(), nil).PrintIssues(&buf)
	if !strings.Contains(buf.String(), "no issues") {
		t.Errorf("expected no issues marker, got %q", buf.String())
	}
}

func TestJSON(t *testing.T) {
	rpt := New(makeResult(), nil)

	data, err := rpt.JSON()
	if err != nil {
		t.Fatalf("JSON: %v", err)
	}

	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out["status"] != "scheduled" {
		t.Errorf("expected status scheduled, got %v", out["status"])
	}
	if out["finish_days"] != float64(4) {
		t.Errorf("expected finish_days 4, got %v", out["finish_days"])
	}
	if out["finish_date"] != "06-01-2023" {
		t.Errorf("expected finish_date 06-01-2023, got %v", out["finish_date"])
	}
	if issues, ok := out["issues"].([]any); !ok || len(issues) != 0 {
		t.Errorf("expected empty issues array, got %v", out["issues"])
	}
}

func TestSummary(t *testing.T) {
	summary := New(makeResult(), makeIssues()).Summary()
	if !strings.Contains(summary, "3 tasks, finish day 4") {
		t.Errorf("summary should contain counts, got %q", summary)
	}
	if !strings.Contains(summary, "worst issue critical") {
		t.Errorf("summary should name worst severity, got %q", summary)
	}
}

func TestPrintGraph(t *testing.T) {
	var buf bytes.Buffer
	New(makeResult(), nil).PrintGraph(&buf)
	output := buf.String()

	if !strings.Contains(output, "Wave 1") || !strings.Contains(output, "└──→ b") {
		t.Errorf("expected waves and edges, got:\n%s", output)
	}
}

func TestWriteDOT(t *testing.T) {
	var buf bytes.Buffer
	New(makeResult(), nil).WriteDOT(&buf)
	output := buf.String()

	for _, want := range []string{
		"digraph critpath {",
		`"a" -> "b";`,
		`"a" -> "c" [label="SS+1d", color=red, penwidth=2];`,
		`Task \"C\"`,
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected DOT to contain %q, got:\n%s", want, output)
		}
	}
}

func TestPrintVariance(t *testing.T) {
	base := makeResult()
	cur := cpm.Compute(&project.Project{
		StartDate: "02-01-2023",
		Calendar:  "workdays",
		Tasks: []project.Task{
			{ID: "a", Name: "Task A", Duration: duration.Of(4)},
			{ID: "d", Name: "Task D", Duration: duration.Of(1)},
		},
	})
	vs := baseline.Compare(base, cur)

	var buf bytes.Buffer
	PrintVariance(&buf, &baseline.Baseline{ID: "0123456789abcdef", Name: "kickoff"}, vs, baseline.FinishSlip(base, cur))
	output := buf.String()

	for _, want := range []string{"kickoff", "(01234567)", "on time", "+2d", "added", "removed"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected variance output to contain %q, got:\n%s", want, output)
		}
	}
}
