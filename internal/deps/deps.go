// Package deps encodes and decodes dependency tokens of the form
// [TYPE:]predecessor[(+|-)N[d|w]].
package deps

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/joshharrison/critpath/internal/duration"
)

// Type is a dependency relationship type.
type Type string

const (
	FS Type = "FS" // finish-to-start
	SS Type = "SS" // start-to-start
	FF Type = "FF" // finish-to-finish
	SF Type = "SF" // start-to-finish
)

// Types lists every relationship type.
var Types = []Type{FS, SS, FF, SF}

// ParseType returns the type named by s (case-insensitive).
func ParseType(s string) (Type, bool) {
	switch t := Type(strings.ToUpper(strings.TrimSpace(s))); t {
	case FS, SS, FF, SF:
		return t, true
	}
	return "", false
}

// Edge is a decoded dependency on a predecessor task.
type Edge struct {
	Type Type   `json:"type"`
	Pred string `json:"pred"`
	Lag  int    `json:"lag"` // days; negative is a lead
}

var lagRe = regexp.MustCompile(`(?i)^(.*?)([+-])(\d+)([dw])?$`)

// Decode parses a single token. It returns false for an empty token.
// Unknown type prefixes are not an error: the token is read as FS and the
// prefix stays part of the predecessor id.
func Decode(token string) (Edge, bool) {
	s := strings.TrimSpace(token)
	if s == "" {
		return Edge{}, false
	}

	e := Edge{Type: FS}
	rest := s
	if colon := strings.Index(s, ":"); colon > 0 {
		if t, ok := ParseType(s[:colon]); ok {
			e.Type = t
			rest = s[colon+1:]
		}
	}

	e.Pred = rest
	if m := lagRe.FindStringSubmatch(rest); m != nil {
		if n, err := strconv.Atoi(m[3]); err == nil {
			if strings.EqualFold(m[4], "w") {
				n *= duration.DaysPerWeek
			}
			if m[2] == "-" {
				n = -n
			}
			e.Pred = m[1]
			e.Lag = n
		}
	}
	e.Pred = strings.TrimSpace(e.Pred)
	return e, true
}

// Encode renders an edge in canonical minimal form: plain "pred" for a
// zero-lag FS edge, otherwise "TYPE:pred" with a signed day lag when
// non-zero.
func Encode(e Edge) string {
	lag := ""
	if e.Lag != 0 {
		lag = fmt.Sprintf("%+dd", e.Lag)
	}
	if e.Type == FS && lag == "" {
		return e.Pred
	}
	t := e.Type
	if t == "" {
		t = FS
	}
	return string(t) + ":" + e.Pred + lag
}

func (e Edge) String() string { return Encode(e) }

// Referable reports whether a dependency token naming id decodes back to
// id. Ids with a lag-like suffix ("task-1", "x+2d") or a type prefix
// ("SS:x") are read as something else.
func Referable(id string) bool {
	e, ok := Decode(id)
	return ok && e.Type == FS && e.Lag == 0 && e.Pred == id
}

// Normalize decodes a task's dependency list, dropping empty tokens.
func Normalize(tokens []string) []Edge {
	out := make([]Edge, 0, len(tokens))
	for _, tok := range tokens {
		if e, ok := Decode(tok); ok {
			out = append(out, e)
		}
	}
	return out
}

// ShiftLags adds delta days to the lag of every FS and SS token. FF and SF
// tokens, and tokens that do not decode, are returned unchanged.
func ShiftLags(tokens []string, delta int) []string {
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		e, ok := Decode(tok)
		if !ok || (e.Type != FS && e.Type != SS) {
			out = append(out, tok)
			continue
		}
		e.Lag += delta
		out = append(out, Encode(e))
	}
	return out
}
