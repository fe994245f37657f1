package baseline

import "github.com/joshharrison/critpath/internal/cpm"

// Change classifies how a task moved between two schedules.
type Change string

const (
	Unchanged Change = "unchanged"
	Moved     Change = "moved"
	Added     Change = "added"
	Removed   Change = "removed"
)

// Variance is one task's difference between a baseline and the current
// schedule. Day fields are offsets from the project start.
type Variance struct {
	TaskID       string `json:"taskId"`
	Name         string `json:"name"`
	Change       Change `json:"change"`
	BaseStart    int    `json:"baseStart"`
	BaseFinish   int    `json:"baseFinish"`
	Start        int    `json:"start"`
	Finish       int    `json:"finish"`
	StartDelta   int    `json:"startDelta"`
	FinishDelta  int    `json:"finishDelta"`
	BaseCritical bool   `json:"baseCritical"`
	Critical     bool   `json:"critical"`
}

// Compare lists per-task variances: current tasks in their order, then
// tasks only present in the baseline.
func Compare(base, current *cpm.Result) []Variance {
	baseByID := make(map[string]*cpm.ScheduledTask)
	if base != nil {
		for i := range base.Tasks {
			baseByID[base.Tasks[i].ID] = &base.Tasks[i]
		}
	}

	var out []Variance
	seen := make(map[string]bool)
	if current != nil {
		for i := range current.Tasks {
			cur := &current.Tasks[i]
			seen[cur.ID] = true
			v := Variance{
				TaskID:   cur.ID,
				Name:     cur.Name,
				Start:    cur.ES,
				Finish:   cur.EF,
				Critical: cur.Critical,
			}
			b, ok := baseByID[cur.ID]
			if !ok {
				v.Change = Added
				out = append(out, v)
				continue
			}
			v.BaseStart, v.BaseFinish, v.BaseCritical = b.ES, b.EF, b.Critical
			v.StartDelta = cur.ES - b.ES
			v.FinishDelta = cur.EF - b.EF
			v.Change = Unchanged
			if v.StartDelta != 0 || v.FinishDelta != 0 {
				v.Change = Moved
			}
			out = append(out, v)
		}
	}

	if base != nil {
		for _, b := range base.Tasks {
			if seen[b.ID] {
				continue
			}
			out = append(out, Variance{
				TaskID:       b.ID,
				Name:         b.Name,
				Change:       Removed,
				BaseStart:    b.ES,
				BaseFinish:   b.EF,
				BaseCritical: b.Critical,
			})
		}
	}
	return out
}

// FinishSlip is how many days later the current schedule finishes.
func FinishSlip(base, current *cpm.Result) int {
	if base == nil || current == nil {
		return 0
	}
	return current.FinishDays - base.FinishDays
}
