package components

import (
	"strings"
	"testing"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/godudb/internal/model"
	"github.com/sadopc/godudb/internal/scanner"
	"github.com/sadopc/godudb/internal/ui/style"
)

func TestRenderScanProgress_SmallWidth(t *testing.T) {
	theme := style.DefaultTheme()
	p := scanner.Progress{Errors: 2, ActiveWorkers: 3}
	for _, w := range []int{0, 1, 2, 5} {
		t.Run("", func(t *testing.T) {
			defer func() {
				if r := recover(); r != nil {
					t.Fatalf("RenderScanProgress panicked at width=%d: %v", w, r)
				}
			}()
			out := RenderScanProgress(theme, p, w)
			for _, line := range strings.Split(out, "\n") {
				if lipgloss.Width(line) > w {
					t.Fatalf("line wider than %d: %q", w, line)
				}
			}
		})
	}
}

func TestRenderActiveDirs_Limit(t *testing.T) {
	theme := style.DefaultTheme()
	dirs := []scanner.DirProgress{
		{Path: "/srv/a", Done: 1, Total: 4},
		{Path: "/srv/b", Done: 2, Total: 4},
		{Path: "/srv/c", Done: 3, Total: 4},
	}

	out := RenderActiveDirs(theme, dirs, 80, 2)
	if !strings.Contains(out, "/srv/a") || !strings.Contains(out, "/srv/b") {
		t.Fatalf("expected first two directories:\n%s", out)
	}
	if strings.Contains(out, "/srv/c") {
		t.Fatalf("third directory should be folded:\n%s", out)
	}
	if !strings.Contains(out, "and 1 more directories") {
		t.Fatalf("expected overflow line:\n%s", out)
	}
	if RenderActiveDirs(theme, nil, 80, 2) != "" {
		t.Fatal("expected empty output without directories")
	}
}

func TestRenderHeader_SmallWidth(t *testing.T) {
	theme := style.DefaultTheme()
	if got := RenderHeader(theme, "godudb", "/data", "1 items", 5); got != "" {
		t.Fatalf("expected empty header, got %q", got)
	}
	out := RenderHeader(theme, "godudb", "/very/long/path/that/will/not/fit/in/the/header", "12 items  3 KiB", 40)
	if lipgloss.Width(out) != 40 {
		t.Fatalf("header width = %d, want 40", lipgloss.Width(out))
	}
}

func TestRenderStatusBar_SkipsDisabledHints(t *testing.T) {
	theme := style.DefaultTheme()
	on := key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "directories"))
	off := key.NewBinding(key.WithKeys("q"), key.WithHelp("q", "pause"))
	off.SetEnabled(false)

	out := RenderStatusBar(theme, "Scanning", []key.Binding{on, off}, 60)
	if !strings.Contains(out, "directories") || strings.Contains(out, "pause") {
		t.Fatalf("unexpected hints:\n%s", out)
	}
	for _, w := range []int{0, 1, 5} {
		_ = RenderStatusBar(theme, "Scanning", []key.Binding{on}, w)
	}
}

func TestRenderBreakdown(t *testing.T) {
	theme := style.DefaultTheme()
	if out := RenderBreakdown(theme, nil, 80); !strings.Contains(out, "no files") {
		t.Fatalf("expected empty message, got %q", out)
	}

	totals := model.BreakdownByCategory([]model.Entry{
		{Name: "a.mp4", Size: 300},
		{Name: "b.go", Size: 100},
	})
	out := RenderBreakdown(theme, totals, 80)
	for _, want := range []string{"Category", "Total", "75.0%", "25.0%"} {
		if !strings.Contains(out, want) {
			t.Fatalf("breakdown missing %q:\n%s", want, out)
		}
	}
	for _, w := range []int{0, 1, 5} {
		_ = RenderBreakdown(theme, totals, w)
	}
}
