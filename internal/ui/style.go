package ui

import (
	"fmt"
	"os"

	"github.com/fatih/color"
)

// Sprint color functions for building styled strings.
var (
	Bold        = color.New(color.Bold).SprintFunc()
	Dim         = color.New(color.Faint).SprintFunc()
	Cyan        = color.New(color.FgCyan).SprintFunc()
	Green       = color.New(color.FgGreen).SprintFunc()
	Red         = color.New(color.FgRed).SprintFunc()
	Yellow      = color.New(color.FgYellow).SprintFunc()
	Magenta     = color.New(color.FgMagenta).SprintFunc()
	BoldCyan    = color.New(color.Bold, color.FgCyan).SprintFunc()
	BoldGreen   = color.New(color.Bold, color.FgGreen).SprintFunc()
	BoldRed     = color.New(color.Bold, color.FgRed).SprintFunc()
	BoldYellow  = color.New(color.Bold, color.FgYellow).SprintFunc()
	BoldMagenta = color.New(color.Bold, color.FgMagenta).SprintFunc()
	BoldWhite   = color.New(color.Bold, color.FgWhite).SprintFunc()
)

// PrintBanner renders the critpath banner to stderr.
func PrintBanner() {
	w := os.Stderr
	bar := color.New(color.FgCyan)
	crit := color.New(color.Bold, color.FgRed)
	brand := color.New(color.Bold, color.FgMagenta)
	tag := color.New(color.Faint)

	fmt.Fprintln(w)
	bar.Fprint(w, "   o──o──")
	crit.Fprint(w, "●══●══●")
	bar.Fprintln(w, "──o")
	brand.Fprintln(w, "   C R I T P A T H")
	tag.Fprintln(w, "   Critical path scheduling")
	fmt.Fprintln(w)
}

// taskColors is a palette of distinct bold colors for differentiating tasks.
var taskColors = []func(a ...interface{}) string{
	BoldMagenta,
	BoldCyan,
	BoldYellow,
	BoldGreen,
	color.New(color.Bold, color.FgHiBlue).SprintFunc(),
	color.New(color.Bold, color.FgHiRed).SprintFunc(),
}

// taskColorIndex hashes a task ID to a palette index.
func taskColorIndex(taskID string) int {
	var h uint32
	for _, c := range taskID {
		h = h*31 + uint32(c)
	}
	return int(h % uint32(len(taskColors)))
}

// TaskPrefix returns a colored [task-id] prefix string.
// Each task ID gets a distinct color from the palette.
func TaskPrefix(taskID string) string {
	c := taskColors[taskColorIndex(taskID)]
	return Dim("[") + c(taskID) + Dim("]")
}

// SeverityIcon returns a colored icon for an issue severity.
func SeverityIcon(sev string) string {
	switch sev {
	case "critical":
		return BoldRed("✗")
	case "error":
		return Red("●")
	case "warn":
		return Yellow("▲")
	case "info":
		return Cyan("i")
	default:
		return Dim("◌")
	}
}

// Severity returns the severity name coloured by how bad it is.
func Severity(sev string) string {
	switch sev {
	case "critical":
		return BoldRed(sev)
	case "error":
		return Red(sev)
	case "warn":
		return Yellow(sev)
	case "info":
		return Cyan(sev)
	default:
		return Dim(sev)
	}
}

// CriticalMarker marks critical tasks in tables.
func CriticalMarker(critical bool) string {
	if critical {
		return BoldRed("★")
	}
	return Dim("·")
}

// ScheduleStatus returns a colored schedule status string.
func ScheduleStatus(status string) string {
	switch status {
	case "scheduled":
		return Green(status)
	case "partial_with_cycle":
		return BoldYellow("partial (cycle)")
	default:
		return Dim(status)
	}
}
