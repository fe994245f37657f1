package claude

import (
	"fmt"

	"github.com/joshharrison/critpath/internal/deps"
	"github.com/joshharrison/critpath/internal/graph"
	"github.com/joshharrison/critpath/internal/project"
)

// Rejection is an inferred edge that was not merged, with the reason.
type Rejection struct {
	Edge   DepEdge `json:"edge"`
	Reason string  `json:"reason"`
}

// Merge adds inferred edges to a copy of p as dependency tokens. Edges
// naming unknown or identical tasks, with an unknown type, already present,
// or that would close a cycle are rejected. Edges are considered in order,
// so an earlier accepted edge can cause a later one to be rejected.
func Merge(p *project.Project, edges []DepEdge) (*project.Project, []DepEdge, []Rejection) {
	out := p.Clone()
	index := make(map[string]int, len(out.Tasks))
	for i := range out.Tasks {
		if _, ok := index[out.Tasks[i].ID]; !ok {
			index[out.Tasks[i].ID] = i
		}
	}

	var accepted []DepEdge
	var rejected []Rejection
	reject := func(e DepEdge, format string, args ...any) {
		rejected = append(rejected, Rejection{Edge: e, Reason: fmt.Sprintf(format, args...)})
	}

	for _, e := range edges {
		si, okS := index[e.SuccessorID]
		_, okP := index[e.PredecessorID]
		switch {
		case !okS:
			reject(e, "unknown successor %q", e.SuccessorID)
			continue
		case !okP:
			reject(e, "unknown predecessor %q", e.PredecessorID)
			continue
		case e.SuccessorID == e.PredecessorID:
			reject(e, "self-dependency")
			continue
		}

		typ := deps.FS
		if e.Type != "" {
			t, ok := deps.ParseType(e.Type)
			if !ok {
				reject(e, "unknown dependency type %q", e.Type)
				continue
			}
			typ = t
		}

		succ := &out.Tasks[si]
		if hasPred(succ.Deps, e.PredecessorID) {
			reject(e, "already depends on %s", e.PredecessorID)
			continue
		}

		if graph.Build(out.Tasks).Reachable(e.SuccessorID, e.PredecessorID) {
			reject(e, "would create a cycle")
			continue
		}

		succ.Deps = append(succ.Deps, deps.Encode(deps.Edge{Type: typ, Pred: e.PredecessorID, Lag: e.LagDays}))
		accepted = append(accepted, e)
	}
	return out, accepted, rejected
}

func hasPred(tokens []string, pred string) bool {
	for _, e := range deps.Normalize(tokens) {
		if e.Pred == pred {
			return true
		}
	}
	return false
}
