package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/matzehuels/grainscale/pkg/batch"
	"github.com/matzehuels/grainscale/pkg/store"
	"github.com/matzehuels/grainscale/pkg/sweep"
)

// =============================================================================
// Color Palette
// =============================================================================

var (
	colorCyan   = lipgloss.Color("36")  // Teal - primary actions
	colorGreen  = lipgloss.Color("35")  // Green - success
	colorYellow = lipgloss.Color("220") // Amber - warnings
	colorRed    = lipgloss.Color("167") // Soft red - errors
	colorWhite  = lipgloss.Color("255") // Bright white - values
	colorGray   = lipgloss.Color("245") // Gray - secondary text
	colorDim    = lipgloss.Color("240") // Dim gray - muted text
)

// =============================================================================
// Styles
// =============================================================================

var (
	StyleTitle   = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	StyleDim     = lipgloss.NewStyle().Foreground(colorDim)
	StyleValue   = lipgloss.NewStyle().Foreground(colorWhite)
	StyleSuccess = lipgloss.NewStyle().Foreground(colorGreen)
	StyleWarning = lipgloss.NewStyle().Foreground(colorYellow)
	StyleError   = lipgloss.NewStyle().Foreground(colorRed)

	styleIconInfo    = lipgloss.NewStyle().Foreground(colorGray)
	styleIconSpinner = lipgloss.NewStyle().Foreground(colorCyan)
	styleHeader      = lipgloss.NewStyle().Foreground(colorGray).Bold(true)
	styleCell        = lipgloss.NewStyle().Padding(0, 1)
)

// =============================================================================
// Icons
// =============================================================================

const (
	iconSuccess = "✓"
	iconError   = "✗"
	iconWarning = "!"
	iconInfo    = "›"
	iconArrow   = "→"
)

// =============================================================================
// Status Output
// =============================================================================

func printSuccess(format string, args ...any) {
	fmt.Println(StyleSuccess.Render(iconSuccess) + " " + fmt.Sprintf(format, args...))
}

func printError(format string, args ...any) {
	fmt.Println(StyleError.Render(iconError) + " " + fmt.Sprintf(format, args...))
}

func printWarning(format string, args ...any) {
	fmt.Println(StyleWarning.Render(iconWarning) + " " + StyleWarning.Render(fmt.Sprintf(format, args...)))
}

func printInfo(format string, args ...any) {
	fmt.Println(styleIconInfo.Render(iconInfo) + " " + fmt.Sprintf(format, args...))
}

// printDetail prints an indented muted line.
func printDetail(format string, args ...any) {
	fmt.Println("  " + StyleDim.Render(fmt.Sprintf(format, args...)))
}

// printFile prints a written output path.
func printFile(path string) {
	fmt.Println("  " + StyleDim.Render(iconArrow) + " " + StyleValue.Render(path))
}

// printKeyValue prints a labeled value.
func printKeyValue(key, value string) {
	keyStyle := lipgloss.NewStyle().Foreground(colorGray).Width(12)
	fmt.Println(keyStyle.Render(key) + " " + StyleValue.Render(value))
}

// =============================================================================
// Summary Tables
// =============================================================================

// statusStyle colors a status cell.
func statusStyle(status string) lipgloss.Style {
	switch status {
	case "ok", "cached":
		return styleCell.Foreground(colorGreen)
	case "skipped":
		return styleCell.Foreground(colorYellow)
	case "failed":
		return styleCell.Foreground(colorRed)
	}
	return styleCell
}

// renderTable draws rows with a header; statusCol is colored by value.
func renderTable(headers []string, rows [][]string, statusCol int) string {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return styleHeader.Padding(0, 1)
			}
			if col == statusCol && row < len(rows) {
				return statusStyle(rows[row][col])
			}
			return styleCell
		}).
		Render()
}

func formatDuration(d time.Duration) string {
	if d == 0 {
		return "—"
	}
	return d.Round(time.Millisecond).String()
}

// batchTable renders one row per requested size.
func batchTable(r *batch.Report) string {
	rows := make([][]string, 0, len(r.Outcomes))
	for _, o := range r.Outcomes {
		detail := o.Label
		if o.Status != batch.StatusOK {
			detail = o.Error
		}
		rows = append(rows, []string{
			strconv.Itoa(o.Size),
			string(o.Status),
			detail,
			formatDuration(o.Duration),
		})
	}
	return renderTable([]string{"Size", "Status", "Noise", "Time"}, rows, 1)
}

// sweepTable renders one row per point.
func sweepTable(s *sweep.Summary) string {
	rows := make([][]string, 0, len(s.Results))
	for _, r := range s.Results {
		exit := "—"
		if r.Status == sweep.StatusOK || r.Status == sweep.StatusFailed {
			exit = strconv.Itoa(r.ExitCode)
		}
		name := r.Point.Name()
		if r.Status == sweep.StatusSkipped {
			name = r.Point.Input
		}
		rows = append(rows, []string{name, string(r.Status), exit, formatDuration(r.Duration)})
	}
	return renderTable([]string{"Point", "Status", "Exit", "Time"}, rows, 1)
}

// datasetTable renders one row per image.
func datasetTable(r *batch.DatasetReport) string {
	rows := make([][]string, 0, len(r.Files))
	for _, f := range r.Files {
		detail := strconv.Itoa(len(f.Outputs)) + " files"
		if f.Status != batch.StatusOK {
			detail = f.Error
		}
		rows = append(rows, []string{f.Name, string(f.Status), detail})
	}
	return renderTable([]string{"Image", "Status", "Output"}, rows, 1)
}

// countsLine formats run totals, e.g. "3 ok · 1 skipped · 0 failed".
func countsLine(c store.Counts) string {
	return fmt.Sprintf("%s · %s · %s",
		StyleSuccess.Render(fmt.Sprintf("%d ok", c.Succeeded)),
		StyleWarning.Render(fmt.Sprintf("%d skipped", c.Skipped)),
		StyleError.Render(fmt.Sprintf("%d failed", c.Failed)))
}
