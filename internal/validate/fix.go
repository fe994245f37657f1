package validate

import (
	"time"

	"github.com/joshharrison/critpath/internal/calendar"
	"github.com/joshharrison/critpath/internal/deps"
	"github.com/joshharrison/critpath/internal/duration"
	"github.com/joshharrison/critpath/internal/project"
)

// Apply returns a copy of p with every fixable issue repaired, and the
// number of fixes applied. Issues must come from Run on the same p.
func Apply(p *project.Project, issues []Issue, now time.Time) (*project.Project, int) {
	out := p.Clone()
	if out == nil {
		return nil, 0
	}
	applied := 0
	added := make(map[string]bool)
	for _, it := range issues {
		if it.Fix == nil {
			continue
		}
		f := it.Fix
		if f.Index < 0 || f.Index >= len(p.Tasks) {
			if f.Kind != FixDedupeIDs && f.Kind != FixSetStartDate {
				continue
			}
		}
		switch f.Kind {
		case FixDedupeIDs:
			used := make(map[string]bool, len(out.Tasks))
			for i := range out.Tasks {
				if out.Tasks[i].ID != "" && used[out.Tasks[i].ID] {
					out.Tasks[i].ID = NewTaskID()
				}
				used[out.Tasks[i].ID] = true
			}
		case FixAssignID:
			out.Tasks[f.Index].ID = NewTaskID()
		case FixAssignName:
			out.Tasks[f.Index].Name = "Task " + out.Tasks[f.Index].ID
		case FixSetDuration:
			out.Tasks[f.Index].Duration = duration.Of(1)
		case FixRemoveSelfDep:
			t := &out.Tasks[f.Index]
			t.Deps = removeToken(t.Deps, f.Token)
		case FixRemoveDuplicateDeps:
			t := &out.Tasks[f.Index]
			t.Deps = uniquePreds(t.Deps)
		case FixActivatePredecessor:
			for i := range out.Tasks {
				if out.Tasks[i].ID == f.Pred {
					on := true
					out.Tasks[i].Active = &on
				}
			}
		case FixAddMissingTask:
			if added[f.Pred] {
				continue
			}
			added[f.Pred] = true
			out.Tasks = append(out.Tasks, project.Task{
				ID:       f.Pred,
				Name:     "New: " + f.Pred,
				Duration: duration.Of(1),
				Deps:     []string{},
			})
		case FixSetStartDate:
			out.StartDate = calendar.FormatDate(now)
		case FixMSODay:
			out.Tasks[f.Index].StartConstraint = &project.StartConstraint{Type: project.MSO, Day: f.Day}
		default:
			continue
		}
		applied++
	}
	return out, applied
}

func removeToken(tokens []string, token string) []string {
	out := tokens[:0]
	for _, t := range tokens {
		if t != token {
			out = append(out, t)
		}
	}
	return out
}

// uniquePreds keeps the first token per predecessor and drops tokens that
// do not decode.
func uniquePreds(tokens []string) []string {
	seen := make(map[string]bool, len(tokens))
	out := tokens[:0]
	for _, tok := range tokens {
		e, ok := deps.Decode(tok)
		if !ok || seen[e.Pred] {
			continue
		}
		seen[e.Pred] = true
		out = append(out, tok)
	}
	return out
}
