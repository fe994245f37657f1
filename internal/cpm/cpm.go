// Package cpm computes critical path schedules: forward and backward
// passes over FS, SS, FF and SF dependencies with lags, start constraints,
// slack and calendar dates.
package cpm

import (
	"fmt"
	"sort"

	"github.com/joshharrison/critpath/internal/calendar"
	"github.com/joshharrison/critpath/internal/deps"
	"github.com/joshharrison/critpath/internal/graph"
	"github.com/joshharrison/critpath/internal/project"
)

// Compute schedules a project. It never fails: unparseable durations count
// as zero days, unresolved predecessors are ignored, and tasks caught in a
// cycle are left out of the result and listed in Excluded. The input is
// not modified.
func Compute(p *project.Project) *Result {
	snap := p.Clone()
	if snap == nil {
		snap = &project.Project{}
	}
	cal := snap.BuildCalendar()
	g := graph.Build(snap.Tasks)
	order := g.TopoOrder()

	durations := make(map[string]int, len(g.IDs))
	for _, id := range g.IDs {
		durations[id] = g.Tasks[id].Days()
	}

	result := &Result{
		Order:    order,
		Tasks:    []ScheduledTask{},
		Warnings: []Warning{},
		Status:   StatusScheduled,
		Excluded: g.Excluded(order),
	}
	if len(result.Excluded) > 0 {
		result.Status = StatusPartialWithCycle
	}

	// Forward pass: compute ES and EF
	es := make(map[string]int, len(order))
	ef := make(map[string]int, len(order))
	for _, id := range order {
		t := g.Tasks[id]
		dur := durations[id]
		base := 0
		for _, e := range g.Preds[id] {
			switch e.Type {
			case deps.FS:
				base = max(base, ef[e.Pred]+e.Lag)
			case deps.SS:
				base = max(base, es[e.Pred]+e.Lag)
			case deps.FF:
				base = max(base, ef[e.Pred]+e.Lag-dur)
			case deps.SF:
				base = max(base, es[e.Pred]+e.Lag-dur)
			}
		}

		if sc := t.Constraint(); sc != nil {
			switch sc.Type {
			case project.SNET:
				base = max(base, sc.Day)
			case project.MSO:
				// Dependencies win over MSO; the conflict is only reported.
				if base > sc.Day {
					result.Warnings = append(result.Warnings, Warning{
						Sev:    "error",
						Msg:    fmt.Sprintf("MSO violated for %s: deps force start %d > %d", t.Name, base, sc.Day),
						TaskID: t.ID,
					})
				}
				base = max(base, sc.Day)
			}
		}

		es[id] = base
		ef[id] = base + dur
	}

	// Total project duration
	finish := 0
	for _, id := range order {
		finish = max(finish, ef[id])
	}
	result.FinishDays = finish

	// Backward pass: compute LS and LF in reverse topological order
	ls := make(map[string]int, len(order))
	lf := make(map[string]int, len(order))
	for i := len(order) - 1; i >= 0; i-- {
		id := order[i]
		dur := durations[id]
		base := finish
		for _, arc := range g.Succs[id] {
			lsS, ok := ls[arc.To]
			if !ok {
				continue
			}
			lfS := lf[arc.To]
			switch arc.Type {
			case deps.FS:
				base = min(base, lsS-arc.Lag)
			case deps.SS:
				cand := lsS - arc.Lag + dur
				if cur, ok := lf[id]; ok {
					cand = min(cur, cand)
				}
				base = min(base, cand)
			case deps.FF, deps.SF:
				base = min(base, lfS-arc.Lag)
			}
		}
		lf[id] = base
		ls[id] = base - dur
	}

	start, startErr := snap.Start()
	inOrder := make(map[string]bool, len(order))
	for _, id := range order {
		inOrder[id] = true
	}

	for _, id := range g.IDs {
		if !inOrder[id] {
			continue
		}
		st := ScheduledTask{
			Task: g.Tasks[id].Clone(),
			ES:   es[id],
			EF:   ef[id],
			LS:   ls[id],
			LF:   lf[id],
		}
		st.Slack = st.LS - st.ES
		st.Critical = st.Slack == 0
		if startErr == nil {
			st.Start = calendar.FormatDate(cal.Add(start, st.ES))
			st.Finish = calendar.FormatDate(cal.Add(start, st.EF))
		}
		result.Tasks = append(result.Tasks, st)
	}

	// Build critical path (critical tasks in topological order)
	for _, id := range order {
		if ls[id]-es[id] == 0 {
			result.CriticalPath = append(result.CriticalPath, id)
		}
	}

	result.Waves = computeWaves(result)

	return result
}

// computeWaves groups tasks by their earliest start time.
func computeWaves(result *Result) []Wave {
	byID := make(map[string]*ScheduledTask, len(result.Tasks))
	for i := range result.Tasks {
		byID[result.Tasks[i].ID] = &result.Tasks[i]
	}

	// Group tasks by ES
	esGroups := make(map[int][]string)
	for _, id := range result.Order {
		t := byID[id]
		esGroups[t.ES] = append(esGroups[t.ES], id)
	}

	// Sort ES values
	esValues := make([]int, 0, len(esGroups))
	for es := range esGroups {
		esValues = append(esValues, es)
	}
	sort.Ints(esValues)

	waves := make([]Wave, len(esValues))
	for i, es := range esValues {
		taskIDs := esGroups[es]

		hasCritical := false
		for _, id := range taskIDs {
			byID[id].Wave = i
			if byID[id].Critical {
				hasCritical = true
			}
		}

		// Sort critical tasks first within wave
		sort.SliceStable(taskIDs, func(a, b int) bool {
			aCrit := byID[taskIDs[a]].Critical
			bCrit := byID[taskIDs[b]].Critical
			return aCrit && !bCrit
		})

		waves[i] = Wave{
			Index:      i,
			Day:        es,
			TaskIDs:    taskIDs,
			IsCritical: hasCritical,
		}
	}

	return waves
}
