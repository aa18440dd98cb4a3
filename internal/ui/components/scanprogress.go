package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/x/ansi"

	"github.com/sadopc/godudb/internal/scanner"
	"github.com/sadopc/godudb/internal/ui/style"
	"github.com/sadopc/godudb/internal/util"
)

// RenderScanProgress renders the counters block of a running scan.
func RenderScanProgress(theme style.Theme, progress scanner.Progress, width int) string {
	var lines []string

	lines = append(lines, theme.StatText.Render(fmt.Sprintf("  Entries: %s", util.FormatCount(progress.EntriesScanned))))
	lines = append(lines, theme.StatText.Render(fmt.Sprintf("  Files:   %s", util.FormatCount(progress.FilesScanned))))
	lines = append(lines, theme.StatText.Render(fmt.Sprintf("  Dirs:    %s", util.FormatCount(progress.DirsScanned))))
	lines = append(lines, theme.StatText.Render(fmt.Sprintf("  Size:    %s", util.FormatSize(progress.BytesFound))))
	lines = append(lines, theme.StatText.Render(fmt.Sprintf("  Speed:   %s items/s", util.FormatCount(int64(progress.ItemsPerSecond())))))
	if progress.ActiveWorkers > 0 {
		lines = append(lines, theme.StatText.Render(fmt.Sprintf("  Workers: %d parallel", progress.ActiveWorkers)))
	}
	if progress.Errors > 0 {
		lines = append(lines, theme.ErrorText.Render(fmt.Sprintf("  Errors:  %d unreadable", progress.Errors)))
	}
	lines = append(lines, theme.MutedText.Render(fmt.Sprintf("  Elapsed: %.1fs", progress.Duration.Seconds())))

	for i := range lines {
		lines[i] = fit(lines[i], width)
	}
	return strings.Join(lines, "\n")
}

// RenderActiveDirs renders one gradient bar per in-flight directory, at
// most limit of them.
func RenderActiveDirs(theme style.Theme, dirs []scanner.DirProgress, width, limit int) string {
	if len(dirs) == 0 || width <= 0 || limit <= 0 {
		return ""
	}

	const barW = 20
	var lines []string
	for i, d := range dirs {
		if i == limit {
			more := fmt.Sprintf("  ... and %d more directories", len(dirs)-limit)
			lines = append(lines, fit(theme.MutedText.Render(more), width))
			break
		}
		counts := fmt.Sprintf(" %3.0f%% [%d/%d] ", d.Fraction()*100, d.Done, d.Total)
		pathW := width - barW - len(counts) - 2
		path := ""
		if pathW > 5 {
			path = util.TruncatePath(d.Path, pathW)
		}
		line := "  " + theme.BarGradient(barW, d.Fraction()) + theme.MutedText.Render(counts) + theme.DirName.Render(path)
		lines = append(lines, fit(line, width))
	}
	return strings.Join(lines, "\n")
}

// fit cuts a styled line to width terminal cells.
func fit(line string, width int) string {
	if width <= 0 {
		return ""
	}
	if ansi.StringWidth(line) <= width {
		return line
	}
	return ansi.Truncate(line, width, "…")
}
