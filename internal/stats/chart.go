package stats

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"golang.org/x/term"
)

const (
	defaultChartHeight  = 8
	minChartWidth       = 10
	terminalWidthBackup = 80
)

var barStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))

// RenderChart draws values as vertical bars, oldest on the left. Longer
// series are averaged into width buckets. width <= 0 uses the terminal
// width; height <= 0 uses the default height.
func RenderChart(w io.Writer, title string, values []float64, width, height int) error {
	if len(values) == 0 {
		return nil
	}
	if height <= 0 {
		height = defaultChartHeight
	}
	_, maxVal := minMax(values)
	top := fmt.Sprintf("%.0f", maxVal)
	axisWidth := runewidth.StringWidth(top) + 2
	if width <= 0 {
		width = terminalWidth() - axisWidth
	}
	if width < minChartWidth {
		width = minChartWidth
	}
	cols := bucket(values, width)
	useColor := shouldUseColor(w)

	if _, err := fmt.Fprintln(w, title); err != nil {
		return err
	}
	for row := height; row >= 1; row-- {
		label := ""
		switch row {
		case height:
			label = top
		case 1:
			label = "0"
		}
		var b strings.Builder
		for _, v := range cols {
			filled := 0
			if maxVal > 0 {
				filled = int(math.Round(v / maxVal * float64(height)))
			}
			if filled >= row {
				b.WriteRune('█')
			} else {
				b.WriteByte(' ')
			}
		}
		bars := strings.TrimRight(b.String(), " ")
		if useColor && bars != "" {
			bars = barStyle.Render(bars)
		}
		line := runewidth.FillLeft(label, axisWidth-2) + " │" + bars
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, "")
	return err
}

// bucket averages values into at most width columns.
func bucket(values []float64, width int) []float64 {
	if len(values) <= width {
		out := make([]float64, len(values))
		copy(out, values)
		return out
	}
	out := make([]float64, width)
	for i := 0; i < width; i++ {
		start := i * len(values) / width
		end := (i + 1) * len(values) / width
		if end <= start {
			end = start + 1
		}
		var sum float64
		for _, v := range values[start:end] {
			sum += v
		}
		out[i] = sum / float64(end-start)
	}
	return out
}

func terminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return terminalWidthBackup
	}
	return width
}

func shouldUseColor(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(file.Fd()))
}
