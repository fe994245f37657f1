// Package claude asks the Anthropic API to propose dependencies between
// project tasks and to explain a computed schedule.
package claude

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/joshharrison/critpath/internal/project"
)

// TaskSummary is the minimal task info sent to Claude for dependency inference.
type TaskSummary struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Days      int      `json:"duration_days"`
	Phase     string   `json:"phase,omitempty"`
	Subsystem string   `json:"subsystem,omitempty"`
	Deps      []string `json:"existing_deps,omitempty"`
}

// DepEdge is a single inferred dependency.
type DepEdge struct {
	SuccessorID   string `json:"successor_id"`   // task that waits
	PredecessorID string `json:"predecessor_id"` // task it waits on
	Type          string `json:"type"`           // FS, SS, FF or SF; empty means FS
	LagDays       int    `json:"lag_days"`
	Reason        string `json:"reason"`
}

// InferDepsResult holds the full response from Claude.
type InferDepsResult struct {
	Edges   []DepEdge `json:"edges"`
	Summary string    `json:"summary"`
}

// Client wraps the Anthropic SDK for Claude API calls.
type Client struct {
	inner     anthropic.Client
	model     anthropic.Model
	maxTokens int64
}

// NewClient creates a Claude client. apiKey defaults to ANTHROPIC_API_KEY env.
// model defaults to Claude Sonnet. Extra request options are passed to the SDK.
func NewClient(apiKey, model string, opts ...option.RequestOption) (*Client, error) {
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY not set")
	}

	inner := anthropic.NewClient(
		append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)...,
	)

	m := anthropic.Model("claude-sonnet-4-6") // same value as anthropic.ModelClaudeSonnet4_6 in SDK >= v1.26
	if model != "" {
		m = anthropic.Model(model)
	}

	return &Client{inner: inner, model: m, maxTokens: 4096}, nil
}

// SetMaxTokens overrides the response token limit.
func (c *Client) SetMaxTokens(n int64) {
	if n > 0 {
		c.maxTokens = n
	}
}

// Summaries builds the inference payload for the active tasks of p.
func Summaries(p *project.Project) []TaskSummary {
	out := make([]TaskSummary, 0, len(p.Tasks))
	for _, t := range p.Tasks {
		if !t.IsActive() {
			continue
		}
		out = append(out, TaskSummary{
			ID:        t.ID,
			Name:      t.Name,
			Days:      t.Days(),
			Phase:     t.Phase,
			Subsystem: t.Subsystem,
			Deps:      t.Deps,
		})
	}
	return out
}

const inferDepsPrompt = `You are an expert project scheduler. Given the tasks of a project plan, infer dependency edges between them for a critical path schedule.

Rules:
- Only add a dependency when there is a strong causal reason (the successor cannot proceed until the predecessor has progressed).
- Prefer fewer edges — do not add transitive or speculative dependencies.
- Keep every existing dependency; only propose new ones.
- Use type FS (finish-to-start) unless the work genuinely overlaps: SS (start-to-start), FF (finish-to-finish) or SF (start-to-finish).
- lag_days is a whole number of working days; use 0 unless a wait is inherent.
- Do not create cycles.
- Only use task IDs from the provided list.
- A task cannot depend on itself.

Return your answer as JSON with this exact structure:
{
  "edges": [
    {"successor_id": "<task that waits>", "predecessor_id": "<task it waits on>", "type": "FS", "lag_days": 0, "reason": "<short explanation>"}
  ],
  "summary": "<one paragraph summary of the dependency structure>"
}

Return ONLY the JSON object. No markdown fences, no commentary outside the JSON.

Here are the tasks:
`

// buildPrompt constructs the full prompt for dependency inference.
func buildPrompt(tasks []TaskSummary) (string, error) {
	data, err := json.MarshalIndent(tasks, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal tasks: %w", err)
	}
	return inferDepsPrompt + string(data), nil
}

// InferDeps calls the Claude API to infer task dependencies.
func (c *Client) InferDeps(ctx context.Context, tasks []TaskSummary) (*InferDepsResult, error) {
	prompt, err := buildPrompt(tasks)
	if err != nil {
		return nil, err
	}

	text, err := c.complete(ctx, "", prompt)
	if err != nil {
		return nil, err
	}
	text = stripJSONFences(text)

	var result InferDepsResult
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		return nil, fmt.Errorf("parse claude response: %w\nraw: %s", err, text)
	}

	return &result, nil
}

const explainSchedulePrompt = `You are a project manager reviewing a critical path schedule.

You will receive a schedule report: the critical path, the finish day, each task's earliest start and finish, its slack, and any validation issues.

Produce a concise narrative covering:
- Which chain of tasks drives the finish date and why.
- Tasks with little slack that are at risk of becoming critical.
- Any issues that make the schedule unreliable.

Keep it short — a few sentences per point. Do not repeat the raw numbers verbatim. Focus on the human-readable takeaway.
`

// ExplainSchedule sends a schedule report to Claude and returns a
// human-readable narrative of what drives the finish date.
func (c *Client) ExplainSchedule(ctx context.Context, report string) (string, error) {
	text, err := c.complete(ctx, explainSchedulePrompt, "## Schedule Report\n\n"+report)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func (c *Client) complete(ctx context.Context, system, user string) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	resp, err := c.inner.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("claude API call: %w", err)
	}

	// Extract text from response
	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	return text, nil
}

// stripJSONFences removes markdown code fences that Claude sometimes adds.
func stripJSONFences(s string) string {
	s = strings.TrimSpace(s)
	// Remove ```json ... ``` or ``` ... ```
	if strings.HasPrefix(s, "```") {
		// Strip opening fence line
		if idx := strings.Index(s, "\n"); idx >= 0 {
			s = s[idx+1:]
		}
		// Strip closing fence
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}
	return s
}
