package render

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"task-observer/src/analysis"
	"task-observer/src/models"
)

// -----------------------------------------------------------------------------
// ConsoleRenderer is the stand-in for the dashboard: one task card per
// line plus a sparkline of the buffered series. It only ever reads
// reconciled tasks and series copies.
// -----------------------------------------------------------------------------

type ConsoleRenderer struct {
	Out io.Writer
	mu  sync.Mutex
}

// -----------------------------------------------------------------------------

func NewConsoleRenderer() *ConsoleRenderer {
	return &ConsoleRenderer{Out: os.Stdout}
}

// -----------------------------------------------------------------------------

var sparkRunes = []rune("▁▂▃▄▅▆▇█")

func (r *ConsoleRenderer) Render(tasks []models.MTask, state models.MConnectionState, series map[int64][]models.MChartPoint) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fmt.Fprintf(r.Out, "--- channel: %s", state.Phase)
	if state.RetryCount > 0 {
		fmt.Fprintf(r.Out, " (retry %d)", state.RetryCount)
	}
	fmt.Fprintf(r.Out, " | %d tasks ---\n", len(tasks))

	for _, task := range tasks {
		line := fmt.Sprintf("#%-4d %-16s %-10s %-8s", task.ID, truncate(task.Name, 16), task.Symbol, task.Status)

		if s, ok := series[task.ID]; ok && len(s) > 0 {
			stats := analysis.Summarize(s)
			line += fmt.Sprintf(" last=%.2f min=%.2f max=%.2f  %s",
				stats.Last, stats.Min, stats.Max, Sparkline(s, 32))
		}

		fmt.Fprintln(r.Out, line)
	}
}

// -----------------------------------------------------------------------------

// Sparkline renders a series as a fixed-width run of block glyphs.
func Sparkline(series []models.MChartPoint, width int) string {
	if len(series) == 0 || width <= 0 {
		return ""
	}

	// Downsample to at most width points, newest kept
	points := series
	if len(points) > width {
		points = points[len(points)-width:]
	}

	min, max := points[0].Price, points[0].Price
	for _, p := range points {
		if p.Price < min {
			min = p.Price
		}
		if p.Price > max {
			max = p.Price
		}
	}

	var sb strings.Builder
	span := max - min
	for _, p := range points {
		idx := 0
		if span > 0 {
			idx = int((p.Price - min) / span * float64(len(sparkRunes)-1))
		}
		sb.WriteRune(sparkRunes[idx])
	}
	return sb.String()
}

// -----------------------------------------------------------------------------

// truncate shortens s to at most n runes. Rune-based so multi-byte task
// names are never cut mid-character.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}
