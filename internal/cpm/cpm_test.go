package cpm

import (
	"reflect"
	"strings"
	"testing"

	"github.com/joshharrison/critpath/internal/calendar"
	"github.com/joshharrison/critpath/internal/deps"
	"github.com/joshharrison/critpath/internal/duration"
	"github.com/joshharrison/critpath/internal/project"
)

func task(id string, dur any, depTokens ...string) project.Task {
	return project.Task{ID: id, Name: strings.ToUpper(id), Duration: duration.Of(dur), Deps: depTokens}
}

func newProject(tasks ...project.Task) *project.Project {
	return &project.Project{
		StartDate: "02-01-2023", // Monday
		Calendar:  calendar.ModeWorkdays,
		Tasks:     tasks,
	}
}

func mustTask(t *testing.T, r *Result, id string) *ScheduledTask {
	t.Helper()
	st, ok := r.Task(id)
	if !ok {
		t.Fatalf("task %q not in result", id)
	}
	return st
}

func assertSchedule(t *testing.T, ts *ScheduledTask, es, ef, ls, lf, slack int, critical bool) {
	t.Helper()
	if ts.ES != es {
		t.Errorf("task %s: expected ES=%d, got %d", ts.ID, es, ts.ES)
	}
	if ts.EF != ef {
		t.Errorf("task %s: expected EF=%d, got %d", ts.ID, ef, ts.EF)
	}
	if ts.LS != ls {
		t.Errorf("task %s: expected LS=%d, got %d", ts.ID, ls, ts.LS)
	}
	if ts.LF != lf {
		t.Errorf("task %s: expected LF=%d, got %d", ts.ID, lf, ts.LF)
	}
	if ts.Slack != slack {
		t.Errorf("task %s: expected Slack=%d, got %d", ts.ID, slack, ts.Slack)
	}
	if ts.Critical != critical {
		t.Errorf("task %s: expected Critical=%v, got %v", ts.ID, critical, ts.Critical)
	}
}

func TestCompute_FinishToStartChain(t *testing.T) {
	r := Compute(newProject(
		task("a", 2),
		task("b", 3, "FS:a"),
	))

	if !reflect.DeepEqual(r.Order, []string{"a", "b"}) {
		t.Errorf("expected order [a b], got %v", r.Order)
	}
	if r.FinishDays != 5 {
		t.Errorf("expected finish 5, got %d", r.FinishDays)
	}
	if r.Status != StatusScheduled {
		t.Errorf("expected status %s, got %s", StatusScheduled, r.Status)
	}
	if len(r.Warnings) != 0 {
		t.Errorf("expected no warnings, got %v", r.Warnings)
	}
	assertSchedule(t, mustTask(t, r, "a"), 0, 2, 0, 2, 0, true)
	assertSchedule(t, mustTask(t, r, "b"), 2, 5, 2, 5, 0, true)

	b := mustTask(t, r, "b")
	if b.Start != "04-01-2023" || b.Finish != "09-01-2023" {
		t.Errorf("expected b to run 04-01-2023..09-01-2023, got %s..%s", b.Start, b.Finish)
	}
	if !reflect.DeepEqual(r.CriticalPath, []string{"a", "b"}) {
		t.Errorf("expected critical path [a b], got %v", r.CriticalPath)
	}
}

func TestCompute_StartToStartWithLag(t *testing.T) {
	r := Compute(newProject(
		task("a", 4),
		task("b", 3, "SS:a+1d"),
	))

	if r.FinishDays != 4 {
		t.Errorf("expected finish 4, got %d", r.FinishDays)
	}
	assertSchedule(t, mustTask(t, r, "a"), 0, 4, 0, 4, 0, true)
	assertSchedule(t, mustTask(t, r, "b"), 1, 4, 1, 4, 0, true)
}

func TestCompute_FinishToFinishAndStartToFinish(t *testing.T) {
	r := Compute(newProject(
		task("a", 5),
		task("b", 2, "FF:a"),
		task("c", 4, "SF:a+6d"),
	))

	// FF: b must finish when a finishes: es = 5 - 2
	assertSchedule(t, mustTask(t, r, "b"), 3, 5, 4, 6, 1, false)
	// SF: es = es(a) + 6 - 4
	assertSchedule(t, mustTask(t, r, "c"), 2, 6, 2, 6, 0, true)
	if r.FinishDays != 6 {
		t.Errorf("expected finish 6, got %d", r.FinishDays)
	}
}

func TestCompute_NegativeLag(t *testing.T) {
	r := Compute(newProject(
		task("a", 5),
		task("b", 2, "a-2d"),
	))

	assertSchedule(t, mustTask(t, r, "b"), 3, 5, 3, 5, 0, true)
}

func TestCompute_MSOViolation(t *testing.T) {
	b := task("b", 2, "FS:a")
	b.StartConstraint = &project.StartConstraint{Type: project.MSO, Day: 3}
	r := Compute(newProject(task("a", 5), b))

	if len(r.Warnings) != 1 {
		t.Fatalf("expected 1 warning, got %v", r.Warnings)
	}
	w := r.Warnings[0]
	if w.Sev != "error" || w.TaskID != "b" {
		t.Errorf("expected error warning for b, got %+v", w)
	}
	if w.Msg != "MSO violated for B: deps force start 5 > 3" {
		t.Errorf("unexpected message %q", w.Msg)
	}
	if got := mustTask(t, r, "b").ES; got != 5 {
		t.Errorf("expected dependency to win with ES=5, got %d", got)
	}
}

func TestCompute_MSOHonoured(t *testing.T) {
	b := task("b", 1, "a")
	b.StartConstraint = &project.StartConstraint{Type: project.MSO, Day: 4}
	r := Compute(newProject(task("a", 2), b))

	if len(r.Warnings) != 0 {
		t.Errorf("expected no warnings, got %v", r.Warnings)
	}
	if got := mustTask(t, r, "b").ES; got != 4 {
		t.Errorf("expected ES=4, got %d", got)
	}
}

func TestCompute_SNETAndFixedStart(t *testing.T) {
	b := task("b", 1, "a")
	b.StartConstraint = &project.StartConstraint{Type: project.SNET, Day: 6}
	c := task("c", 1)
	day := 3
	c.FixedStart = &day
	r := Compute(newProject(task("a", 2), b, c))

	if got := mustTask(t, r, "b").ES; got != 6 {
		t.Errorf("expected SNET to raise ES to 6, got %d", got)
	}
	if got := mustTask(t, r, "c").ES; got != 3 {
		t.Errorf("expected fixedStart to raise ES to 3, got %d", got)
	}
	if len(r.Warnings) != 0 {
		t.Errorf("SNET should never warn, got %v", r.Warnings)
	}
}

func TestCompute_Milestone(t *testing.T) {
	r := Compute(newProject(
		task("a", 3),
		task("m", 0, "FF:a"),
		task("c", 2, "m"),
	))

	m := mustTask(t, r, "m")
	if m.ES != m.EF || m.ES != 3 {
		t.Errorf("expected milestone at day 3, got es=%d ef=%d", m.ES, m.EF)
	}
	assertSchedule(t, mustTask(t, r, "c"), 3, 5, 3, 5, 0, true)
}

func TestCompute_CycleExcluded(t *testing.T) {
	r := Compute(newProject(
		task("a", 1),
		task("b", 1, "c"),
		task("c", 1, "b"),
		task("d", 2, "a"),
	))

	if r.Status != StatusPartialWithCycle {
		t.Errorf("expected status %s, got %s", StatusPartialWithCycle, r.Status)
	}
	if !reflect.DeepEqual(r.Excluded, []string{"b", "c"}) {
		t.Errorf("expected excluded [b c], got %v", r.Excluded)
	}
	if !reflect.DeepEqual(r.Order, []string{"a", "d"}) {
		t.Errorf("expected order [a d], got %v", r.Order)
	}
	if len(r.Tasks) != 2 {
		t.Fatalf("expected 2 scheduled tasks, got %d", len(r.Tasks))
	}
	assertSchedule(t, mustTask(t, r, "d"), 1, 3, 1, 3, 0, true)
}

func TestCompute_InactiveAndDanglingIgnored(t *testing.T) {
	off := false
	b := task("b", 10)
	b.Active = &off
	r := Compute(newProject(
		task("a", 1, "missing"),
		b,
		task("c", 2, "b"),
	))

	if len(r.Tasks) != 2 {
		t.Fatalf("expected 2 scheduled tasks, got %d", len(r.Tasks))
	}
	if _, ok := r.Task("b"); ok {
		t.Error("inactive task should not be scheduled")
	}
	if got := mustTask(t, r, "c").ES; got != 0 {
		t.Errorf("expected c to ignore inactive predecessor, got ES=%d", got)
	}
	if len(r.Warnings) != 0 {
		t.Errorf("dangling deps should not warn in the engine, got %v", r.Warnings)
	}
}

func TestCompute_BadDurationIsZero(t *testing.T) {
	r := Compute(newProject(task("a", "abc"), task("b", "2w", "a")))

	assertSchedule(t, mustTask(t, r, "a"), 0, 0, 0, 0, 0, true)
	assertSchedule(t, mustTask(t, r, "b"), 0, 10, 0, 10, 0, true)
}

func TestCompute_InvalidStartDate(t *testing.T) {
	p := newProject(task("a", 1))
	p.StartDate = "31-02-2023"
	r := Compute(p)

	a := mustTask(t, r, "a")
	if a.Start != "" || a.Finish != "" {
		t.Errorf("expected empty dates for invalid start, got %q %q", a.Start, a.Finish)
	}
	if a.EF != 1 {
		t.Errorf("expected offsets to still be computed, got EF=%d", a.EF)
	}
}

func TestCompute_Empty(t *testing.T) {
	r := Compute(newProject())

	if r.FinishDays != 0 {
		t.Errorf("expected finish 0, got %d", r.FinishDays)
	}
	if r.Order == nil || r.Warnings == nil || r.Tasks == nil {
		t.Error("expected non-nil slices for an empty project")
	}
	if r.Status != StatusScheduled {
		t.Errorf("expected status %s, got %s", StatusScheduled, r.Status)
	}
}

func TestCompute_DoesNotMutateInput(t *testing.T) {
	b := task("b", "1w", "SS:a+2d")
	b.StartConstraint = &project.StartConstraint{Type: project.MSO, Day: 1}
	p := newProject(task("a", 3), b)
	before := p.Clone()

	r := Compute(p)
	r.Tasks[0].Deps = append(r.Tasks[0].Deps, "x")
	r.Tasks[1].StartConstraint.Day = 99

	if !reflect.DeepEqual(p, before) {
		t.Errorf("input project was modified:\n got %+v\nwant %+v", p, before)
	}
}

func TestCompute_Invariants(t *testing.T) {
	r := Compute(newProject(
		task("a", 3),
		task("b", 2, "a"),
		task("c", 4, "SS:a+1d"),
		task("d", 1, "b", "FF:c-1d"),
		task("e", 5, "SF:b+3d"),
		task("f", 0, "d", "e"),
		task("g", 2),
	))

	pos := make(map[string]int, len(r.Order))
	for i, id := range r.Order {
		pos[id] = i
	}
	sawFinish := false
	for _, ts := range r.Tasks {
		dur := ts.Days()
		if ts.EF != ts.ES+dur {
			t.Errorf("task %s: ef %d != es %d + %d", ts.ID, ts.EF, ts.ES, dur)
		}
		if ts.LF != ts.LS+dur {
			t.Errorf("task %s: lf %d != ls %d + %d", ts.ID, ts.LF, ts.LS, dur)
		}
		if ts.Slack != ts.LS-ts.ES || ts.Critical != (ts.Slack == 0) {
			t.Errorf("task %s: inconsistent slack %d / critical %v", ts.ID, ts.Slack, ts.Critical)
		}
		for _, e := range deps.Normalize(ts.Deps) {
			if pos[e.Pred] >= pos[ts.ID] {
				t.Errorf("predecessor %s should come before %s in %v", e.Pred, ts.ID, r.Order)
			}
		}
		if ts.Critical && ts.EF == r.FinishDays {
			sawFinish = true
		}
	}
	if !sawFinish {
		t.Error("expected a critical task finishing on the project finish day")
	}
}

// A chain of tight critical FS links from a task finishing on the finish
// day back to day 0 spans exactly FinishDays.
func TestCompute_CriticalChainSpansFinish(t *testing.T) {
	tests := []struct {
		name  string
		tasks []project.Task
		chain []string
	}{
		{
			name: "durations only",
			tasks: []project.Task{
				task("a", 3), task("b", 2, "a"), task("c", 4, "a"),
				task("d", 1, "b", "c"), task("e", 2),
			},
			chain: []string{"a", "c", "d"},
		},
		{
			name: "with lags",
			tasks: []project.Task{
				task("a", 3), task("b", 2, "a"), task("c", 4, "FS:a+1d"),
				task("d", 1, "b", "FS:c+2d"), task("e", "1w"),
			},
			chain: []string{"a", "c", "d"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Compute(newProject(tt.tasks...))

			var cur *ScheduledTask
			for i := range r.Tasks {
				if r.Tasks[i].Critical && r.Tasks[i].EF == r.FinishDays {
					cur = &r.Tasks[i]
					break
				}
			}
			if cur == nil {
				t.Fatal("no critical task finishes on the finish day")
			}

			chain := []string{cur.ID}
			span := cur.Days()
			for cur.ES > 0 {
				var next *ScheduledTask
				for _, e := range deps.Normalize(cur.Deps) {
					pred, ok := r.Task(e.Pred)
					if ok && e.Type == deps.FS && pred.Critical && pred.EF+e.Lag == cur.ES {
						next = pred
						span += pred.Days() + e.Lag
						break
					}
				}
				if next == nil {
					t.Fatalf("critical chain %v stops at %s (es %d) before day 0", chain, cur.ID, cur.ES)
				}
				cur = next
				chain = append([]string{cur.ID}, chain...)
			}

			if span != r.FinishDays {
				t.Errorf("critical chain %v spans %d days, finish is %d", chain, span, r.FinishDays)
			}
			if !reflect.DeepEqual(chain, tt.chain) {
				t.Errorf("expected critical chain %v, got %v", tt.chain, chain)
			}
			if !reflect.DeepEqual(r.CriticalPath, tt.chain) {
				t.Errorf("expected critical path %v, got %v", tt.chain, r.CriticalPath)
			}
		})
	}
}

func TestCompute_Waves(t *testing.T) {
	// A -> B -> D
	// A -> C -> D, C shorter than B
	r := Compute(newProject(
		task("a", 1),
		task("b", 3, "a"),
		task("c", 1, "a"),
		task("d", 1, "b", "c"),
	))

	if len(r.Waves) != 3 {
		t.Fatalf("expected 3 waves, got %d", len(r.Waves))
	}
	w := r.Waves[1]
	if w.Day != 1 || len(w.TaskIDs) != 2 {
		t.Errorf("expected wave at day 1 with 2 tasks, got %+v", w)
	}
	if w.TaskIDs[0] != "b" {
		t.Errorf("expected critical task b first in wave, got %v", w.TaskIDs)
	}
	if !w.IsCritical {
		t.Error("expected wave 1 to be critical")
	}
	if got := mustTask(t, r, "c").Wave; got != 1 {
		t.Errorf("expected c in wave 1, got %d", got)
	}
	if got := mustTask(t, r, "c").Slack; got != 2 {
		t.Errorf("expected c slack 2, got %d", got)
	}
}
