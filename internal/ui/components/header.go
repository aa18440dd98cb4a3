package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/godudb/internal/ui/style"
	"github.com/sadopc/godudb/internal/util"
)

// RenderHeader renders the top header bar: the program name, the scan root
// truncated to fit, and right-aligned stats.
func RenderHeader(theme style.Theme, title, root, stats string, width int) string {
	if width < 10 {
		return ""
	}

	titleStyled := theme.Title.Render(" " + title)
	statsStyled := theme.MutedText.Render(stats + " ")

	titleW := lipgloss.Width(titleStyled)
	statsW := lipgloss.Width(statsStyled)

	// Path gets whatever space remains
	pathMaxW := width - titleW - statsW - 3 // 3 for "  " separator + safety
	pathStr := root
	if pathMaxW > 5 {
		pathStr = util.TruncatePath(pathStr, pathMaxW)
	} else {
		pathStr = ""
	}

	pathStyled := lipgloss.NewStyle().Foreground(theme.TextPrimary).Render("  " + pathStr)
	pathW := lipgloss.Width(pathStyled)

	gap := width - titleW - pathW - statsW
	if gap < 1 {
		gap = 1
	}

	line := titleStyled + pathStyled + strings.Repeat(" ", gap) + statsStyled
	return theme.HeaderStyle.Width(width).Render(line)
}
