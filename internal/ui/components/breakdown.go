package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/godudb/internal/model"
	"github.com/sadopc/godudb/internal/ui/style"
	"github.com/sadopc/godudb/internal/util"
)

// RenderBreakdown renders a per-category size table with distribution bars.
func RenderBreakdown(theme style.Theme, totals []model.CategoryTotal, width int) string {
	var totalSize int64
	for _, s := range totals {
		totalSize += s.Size
	}
	if totalSize == 0 {
		return theme.MutedText.Render("  (no files found)")
	}

	catW := 14
	countW := 10
	sizeW := 12
	barW := width - catW - countW - sizeW - 14
	if barW < 10 {
		barW = 10
	}
	if barW > 30 {
		barW = 30
	}

	var lines []string

	hdrStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.TextPrimary)
	header := fmt.Sprintf("  %-*s %*s %*s  %s",
		catW, "Category",
		countW, "Files",
		sizeW, "Size",
		"Distribution",
	)
	lines = append(lines, hdrStyle.Render(header))

	sep := theme.MutedText.Render("  " + strings.Repeat("-", max(min(width, 80)-4, 0)))
	lines = append(lines, sep)

	for _, s := range totals {
		pct := util.Percent(s.Size, totalSize)

		catColor := lipgloss.Color(s.Category.Color())
		catName := lipgloss.NewStyle().Foreground(catColor).Bold(true).Width(catW).Render(s.Category.String())
		count := lipgloss.NewStyle().Foreground(theme.TextSecondary).Width(countW).Align(lipgloss.Right).Render(util.FormatCount(s.Files))
		size := lipgloss.NewStyle().Foreground(theme.TextSecondary).Width(sizeW).Align(lipgloss.Right).Render(util.FormatSize(s.Size))

		bar := renderCategoryBar(barW, pct/100, catColor, theme.TextMuted)
		pctStr := theme.MutedText.Render(fmt.Sprintf(" %5.1f%%", pct))

		lines = append(lines, fmt.Sprintf("  %s %s %s  %s%s", catName, count, size, bar, pctStr))
	}

	lines = append(lines, sep)

	totalLine := fmt.Sprintf("  %-*s %*s %*s",
		catW, "Total",
		countW, "",
		sizeW, util.FormatSize(totalSize),
	)
	lines = append(lines, hdrStyle.Render(totalLine))

	return strings.Join(lines, "\n")
}

func renderCategoryBar(width int, ratio float64, color, dimColor lipgloss.Color) string {
	filled := int(ratio * float64(width))
	if filled > width {
		filled = width
	}

	filledStyle := lipgloss.NewStyle().Foreground(color)
	dimStyle := lipgloss.NewStyle().Foreground(dimColor)
	return filledStyle.Render(strings.Repeat("=", filled)) + dimStyle.Render(strings.Repeat("-", width-filled))
}
