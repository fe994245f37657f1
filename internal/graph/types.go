package graph

import (
	"github.com/joshharrison/critpath/internal/deps"
	"github.com/joshharrison/critpath/internal/project"
)

// Arc is an outgoing dependency edge seen from the predecessor.
type Arc struct {
	To   string
	Type deps.Type
	Lag  int
}

// TaskGraph is the dependency graph over the active tasks of a project.
// It may contain cycles; TopoOrder leaves cyclic tasks out.
type TaskGraph struct {
	IDs   []string                 // active task ids, input order, first occurrence only
	Tasks map[string]*project.Task // id -> task
	Preds map[string][]deps.Edge   // task -> incoming edges
	Succs map[string][]Arc         // task -> outgoing arcs
}
