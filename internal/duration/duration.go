// Package duration parses task durations expressed as whole days.
//
// A duration is either a plain non-negative integer (days) or a string
// token of the form "<N>", "<N>d" or "<N>w", where one week is five
// business days.
package duration

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// DaysPerWeek is the number of business days in one "w" unit.
const DaysPerWeek = 5

var (
	ErrRequired = errors.New("duration is required")
	ErrNegative = errors.New("duration must be a non-negative integer (days)")
	ErrFormat   = errors.New("use number of days or Nd/Nw (e.g., 10 or 3w)")
)

var tokenRe = regexp.MustCompile(`(?i)^(\d+)\s*([dw])?$`)

// Parse validates a raw duration value and returns it in days.
func Parse(v any) (int, error) {
	switch x := v.(type) {
	case nil:
		return 0, ErrRequired
	case Value:
		return Parse(x.raw)
	case *Value:
		if x == nil {
			return 0, ErrRequired
		}
		return Parse(x.raw)
	case int:
		return fromInt(int64(x))
	case int8:
		return fromInt(int64(x))
	case int16:
		return fromInt(int64(x))
	case int32:
		return fromInt(int64(x))
	case int64:
		return fromInt(x)
	case uint:
		return fromInt(int64(x))
	case uint8:
		return fromInt(int64(x))
	case uint16:
		return fromInt(int64(x))
	case uint32:
		return fromInt(int64(x))
	case uint64:
		if x > math.MaxInt32 {
			return 0, ErrNegative
		}
		return int(x), nil
	case float32:
		return fromFloat(float64(x))
	case float64:
		return fromFloat(x)
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return fromInt(n)
		}
		f, err := x.Float64()
		if err != nil {
			return 0, ErrNegative
		}
		return fromFloat(f)
	case string:
		return parseToken(x)
	default:
		return parseToken(fmt.Sprint(x))
	}
}

// Days is the lenient form of Parse: anything unparseable counts as zero.
func Days(v any) int {
	d, err := Parse(v)
	if err != nil {
		return 0
	}
	return d
}

func fromInt(n int64) (int, error) {
	if n < 0 || n > math.MaxInt32 {
		return 0, ErrNegative
	}
	return int(n), nil
}

func fromFloat(f float64) (int, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, ErrNegative
	}
	return fromInt(int64(f))
}

func parseToken(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrRequired
	}
	m := tokenRe.FindStringSubmatch(s)
	if m == nil {
		return 0, ErrFormat
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n > math.MaxInt32/DaysPerWeek {
		return 0, ErrFormat
	}
	if strings.EqualFold(m[2], "w") {
		return n * DaysPerWeek, nil
	}
	return n, nil
}
