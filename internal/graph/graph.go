// Package graph builds the typed dependency graph the scheduler walks.
package graph

import (
	"sort"

	"github.com/joshharrison/critpath/internal/deps"
	"github.com/joshharrison/critpath/internal/project"
)

// Build constructs a TaskGraph from the active tasks. Edges whose
// predecessor is unknown or inactive are dropped, and so are self-loops.
// When an id repeats, the first task with that id is the one scheduled.
func Build(tasks []project.Task) *TaskGraph {
	g := &TaskGraph{
		Tasks: make(map[string]*project.Task),
		Preds: make(map[string][]deps.Edge),
		Succs: make(map[string][]Arc),
	}

	for i := range tasks {
		t := &tasks[i]
		if !t.IsActive() {
			continue
		}
		if _, dup := g.Tasks[t.ID]; dup {
			continue
		}
		g.Tasks[t.ID] = t
		g.IDs = append(g.IDs, t.ID)
	}

	for _, id := range g.IDs {
		for _, e := range deps.Normalize(g.Tasks[id].Deps) {
			if _, ok := g.Tasks[e.Pred]; !ok || e.Pred == id {
				continue
			}
			g.Preds[id] = append(g.Preds[id], e)
			g.Succs[e.Pred] = append(g.Succs[e.Pred], Arc{To: id, Type: e.Type, Lag: e.Lag})
		}
	}

	return g
}

// TopoOrder returns task ids in topological order using Kahn's algorithm.
// The queue is seeded and drained first-in first-out in input order, so
// the result is deterministic. Tasks on or downstream of a cycle never
// reach in-degree zero and are absent from the result.
func (g *TaskGraph) TopoOrder() []string {
	inDegree := make(map[string]int, len(g.IDs))
	for _, id := range g.IDs {
		inDegree[id] = len(g.Preds[id])
	}

	var queue []string
	for _, id := range g.IDs {
		if inDegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	order := make([]string, 0, len(g.IDs))
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		order = append(order, node)

		for _, arc := range g.Succs[node] {
			inDegree[arc.To]--
			if inDegree[arc.To] == 0 {
				queue = append(queue, arc.To)
			}
		}
	}
	return order
}

// Excluded returns the active ids missing from order, in input order.
func (g *TaskGraph) Excluded(order []string) []string {
	seen := make(map[string]bool, len(order))
	for _, id := range order {
		seen[id] = true
	}
	var out []string
	for _, id := range g.IDs {
		if !seen[id] {
			out = append(out, id)
		}
	}
	return out
}

// DetectCycle returns the cycle path if one exists, or nil if the graph is acyclic.
// Uses DFS with coloring: white (unvisited), gray (in progress), black (done).
func (g *TaskGraph) DetectCycle() []string {
	const (
		white = 0
		gray  = 1
		black = 2
	)

	color := make(map[string]int)
	parent := make(map[string]string)

	var dfs func(node string) []string
	dfs = func(node string) []string {
		color[node] = gray
		for _, arc := range g.Succs[node] {
			next := arc.To
			if color[next] == gray {
				// Found a cycle, walk parents back to next
				cycle := []string{next, node}
				cur := node
				for cur != next {
					cur = parent[cur]
					cycle = append(cycle, cur)
				}
				for i, j := 0, len(cycle)-1; i < j; i, j = i+1, j-1 {
					cycle[i], cycle[j] = cycle[j], cycle[i]
				}
				return cycle
			}
			if color[next] == white {
				parent[next] = node
				if cycle := dfs(next); cycle != nil {
					return cycle
				}
			}
		}
		color[node] = black
		return nil
	}

	// Sort keys for deterministic detection
	ids := append([]string(nil), g.IDs...)
	sort.Strings(ids)

	for _, id := range ids {
		if color[id] == white {
			if cycle := dfs(id); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}

// TaskCount returns the number of tasks in the graph.
func (g *TaskGraph) TaskCount() int {
	return len(g.IDs)
}

// Reachable reports whether to can be reached from from by following
// successor arcs. A task reaches itself.
func (g *TaskGraph) Reachable(from, to string) bool {
	seen := map[string]bool{from: true}
	queue := []string{from}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if id == to {
			return true
		}
		for _, a := range g.Succs[id] {
			if !seen[a.To] {
				seen[a.To] = true
				queue = append(queue, a.To)
			}
		}
	}
	return false
}
