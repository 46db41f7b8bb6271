// Package output formats reporter results for the terminal.
package output

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ANSI color codes
const (
	Reset  = "\033[0m"
	Bold   = "\033[1m"
	Dim    = "\033[2m"
	Red    = "\033[31m"
	Green  = "\033[32m"
	Yellow = "\033[33m"
	Cyan   = "\033[36m"
	White  = "\033[37m"
)

var (
	useColor = true
	isTTY    = stdoutIsTerminal
)

// DisableColor disables colored output.
func DisableColor() {
	useColor = false
}

// EnableColor enables colored output.
func EnableColor() {
	useColor = true
}

// IsColorEnabled returns whether color output is enabled.
func IsColorEnabled() bool {
	return useColor && isTTY()
}

func stdoutIsTerminal() bool {
	info, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

// Color applies a color to text if color is enabled.
func Color(text, color string) string {
	if !IsColorEnabled() {
		return text
	}
	return color + text + Reset
}

// StatusColor returns the color for a TestRail status name.
func StatusColor(status string) string {
	switch strings.ToLower(status) {
	case "passed":
		return Green
	case "failed":
		return Red
	case "retest", "blocked":
		return Yellow
	default:
		return White
	}
}

// StatusIcon returns a colored icon for a TestRail status name.
func StatusIcon(status string) string {
	switch strings.ToLower(status) {
	case "passed":
		return Color("✓", Green)
	case "failed":
		return Color("✗", Red)
	case "retest", "blocked":
		return Color("⚠", Yellow)
	default:
		return "?"
	}
}

// StatusLabel returns a display label such as "Passed" or "Status 6".
func StatusLabel(status string) string {
	return Color(cases.Title(language.English).String(status), StatusColor(status))
}

// Summary formats the step counters of a run on one line.
func Summary(passed, failed, pending int) string {
	parts := []string{
		Color(fmt.Sprintf("%d passed", passed), Green),
		Color(fmt.Sprintf("%d failed", failed), Red),
		Color(fmt.Sprintf("%d pending", pending), Yellow),
	}
	return strings.Join(parts, ", ") + fmt.Sprintf(" (%d steps)", passed+failed+pending)
}

// Header creates a formatted header line of the given width.
func Header(text string, width int) string {
	line := "== " + text + " "
	if n := width - displayWidth(line); n > 0 {
		line += strings.Repeat("=", n)
	}
	return Color(line, Bold)
}

// FirstLine returns the first line of a multi-line comment.
func FirstLine(text string) string {
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		return text[:i]
	}
	return text
}
