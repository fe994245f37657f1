package viewer

import (
	"github.com/joshharrison/critpath/internal/cpm"
	"github.com/joshharrison/critpath/internal/deps"
)

// --- Graph types (matches the visualiser's Graph schema) ---

type GraphNode struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Phase      string `json:"phase,omitempty"`
	Start      string `json:"start,omitempty"`
	Finish     string `json:"finish,omitempty"`
	ES         int    `json:"es"`
	EF         int    `json:"ef"`
	Slack      int    `json:"slack"`
	IsCritical bool   `json:"is_critical"`
	WaveIndex  int    `json:"wave_index"`
}

type GraphEdge struct {
	From string    `json:"from"`
	To   string    `json:"to"`
	Type deps.Type `json:"type"`
	Lag  int       `json:"lag,omitempty"`
}

type GraphMetadata struct {
	Status     cpm.Status `json:"status"`
	FinishDays int        `json:"finish_days"`
	TotalTasks int        `json:"total_tasks"`
	TotalWaves int        `json:"total_waves"`
	Excluded   []string   `json:"excluded,omitempty"`
}

type Graph struct {
	Nodes        []GraphNode   `json:"nodes"`
	Edges        []GraphEdge   `json:"edges"`
	CriticalPath []string      `json:"critical_path"`
	Metadata     GraphMetadata `json:"metadata"`
}

// toGraph converts a schedule into the normalised Graph the UI renders.
// Edges to predecessors that were not scheduled are left out.
func toGraph(res *cpm.Result) *Graph {
	scheduled := make(map[string]bool, len(res.Tasks))
	for _, t := range res.Tasks {
		scheduled[t.ID] = true
	}

	nodes := make([]GraphNode, 0, len(res.Tasks))
	edges := []GraphEdge{}
	for _, t := range res.Tasks {
		nodes = append(nodes, GraphNode{
			ID:         t.ID,
			Name:       t.Name,
			Phase:      t.Phase,
			Start:      t.Start,
			Finish:     t.Finish,
			ES:         t.ES,
			EF:         t.EF,
			Slack:      t.Slack,
			IsCritical: t.Critical,
			WaveIndex:  t.Wave,
		})
		for _, e := range deps.Normalize(t.Deps) {
			if !scheduled[e.Pred] || e.Pred == t.ID {
				continue
			}
			edges = append(edges, GraphEdge{From: e.Pred, To: t.ID, Type: e.Type, Lag: e.Lag})
		}
	}

	critical := res.CriticalPath
	if critical == nil {
		critical = []string{}
	}
	return &Graph{
		Nodes:        nodes,
		Edges:        edges,
		CriticalPath: critical,
		Metadata: GraphMetadata{
			Status:     res.Status,
			FinishDays: res.FinishDays,
			TotalTasks: len(res.Tasks),
			TotalWaves: len(res.Waves),
			Excluded:   res.Excluded,
		},
	}
}
