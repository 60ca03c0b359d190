package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dshills/autoflow/pkg/domain/execution"
	"github.com/dshills/autoflow/pkg/workflow"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
)

// colorizeStatus returns a colored run status
func colorizeStatus(status execution.Status) string {
	s := string(status)
	switch status {
	case execution.StatusCompleted:
		return colorGreen + s + colorReset
	case execution.StatusFailed:
		return colorRed + s + colorReset
	case execution.StatusRunning:
		return colorYellow + s + colorReset
	case execution.StatusPending, execution.StatusCancelled:
		return colorGray + s + colorReset
	default:
		return s
	}
}

// phaseSymbol returns the marker printed in front of a log entry
func phaseSymbol(phase execution.Phase) string {
	switch phase {
	case execution.PhaseComplete:
		return colorGreen + "✓" + colorReset
	case execution.PhaseError:
		return colorRed + "✗" + colorReset
	case execution.PhaseStart:
		return colorYellow + "●" + colorReset
	default:
		return " "
	}
}

// nodeStatusSymbol returns the marker of a node's last run status
func nodeStatusSymbol(status workflow.Status) string {
	switch status {
	case workflow.StatusSuccess:
		return colorGreen + "✓" + colorReset
	case workflow.StatusError:
		return colorRed + "✗" + colorReset
	case workflow.StatusRunning:
		return colorYellow + "●" + colorReset
	default:
		return colorGray + "○" + colorReset
	}
}

// formatDurationValue formats a duration value
func formatDurationValue(d time.Duration) string {
	if d == 0 {
		return "-"
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%.1fm", d.Minutes())
	}
	return fmt.Sprintf("%.1fh", d.Hours())
}

// truncateString truncates a string to the specified length
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-2] + ".."
}

// formatValue renders a payload value on one line
func formatValue(v any) string {
	if v == nil {
		return "null"
	}
	switch val := v.(type) {
	case string:
		if len(val) > 100 {
			return fmt.Sprintf("%q...", val[:97])
		}
		return fmt.Sprintf("%q", val)
	case bool, int, int64, float64:
		return fmt.Sprintf("%v", val)
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	str := string(data)
	if len(str) > 100 {
		return str[:97] + "..."
	}
	return str
}

// writeJSON writes v indented.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// parseSinceFlag parses the --since flag into a time.Time
// Supports formats: "7d" (7 days), "24h" (24 hours), "2025-01-05" (date)
func parseSinceFlag(since string) (time.Time, error) {
	now := time.Now()

	if strings.HasSuffix(since, "d") {
		var d int
		if _, err := fmt.Sscanf(since[:len(since)-1], "%d", &d); err == nil {
			return now.AddDate(0, 0, -d), nil
		}
	}
	if strings.HasSuffix(since, "h") {
		var h int
		if _, err := fmt.Sscanf(since[:len(since)-1], "%d", &h); err == nil {
			return now.Add(-time.Duration(h) * time.Hour), nil
		}
	}

	layouts := []string{
		"2006-01-02",
		"2006-01-02 15:04:05",
		time.RFC3339,
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, since); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("invalid date format (use: 7d, 24h, or 2025-01-05)")
}
