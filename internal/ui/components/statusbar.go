package components

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/godudb/internal/ui/style"
)

// RenderStatusBar renders the bottom bar: a status message on the left and
// the enabled key hints on the right.
func RenderStatusBar(theme style.Theme, status string, hints []key.Binding, width int) string {
	if width <= 0 {
		return ""
	}

	left := " " + status

	var rightParts []string
	for _, h := range hints {
		if !h.Enabled() {
			continue
		}
		help := h.Help()
		rightParts = append(rightParts, theme.HelpKey.Render(help.Key)+theme.HelpDesc.Render(" "+help.Desc))
	}
	right := strings.Join(rightParts, "  ") + " "

	leftW := lipgloss.Width(left)
	rightW := lipgloss.Width(right)
	gap := width - leftW - rightW
	if gap < 1 {
		gap = 1
	}

	line := left + strings.Repeat(" ", gap) + right
	return theme.StatusBarStyle.Width(width).Render(fit(line, width))
}
