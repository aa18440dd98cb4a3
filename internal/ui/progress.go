package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/godudb/internal/scanner"
	"github.com/sadopc/godudb/internal/ui/components"
	"github.com/sadopc/godudb/internal/ui/style"
	"github.com/sadopc/godudb/internal/util"
)

const (
	pollInterval = 100 * time.Millisecond
	maxDirLines  = 8
)

// Scan is the running scan the view observes.
type Scan interface {
	Progress() <-chan scanner.Progress
	Done() <-chan struct{}
	Cancel()
}

type tickMsg time.Time

// ProgressModel is the Bubble Tea model shown while a scan runs. It polls
// the scan on a ticker and never blocks on its channels.
type ProgressModel struct {
	Title string

	scan     Scan
	root     string
	progress scanner.Progress
	updates  <-chan scanner.Progress

	spinner  spinner.Model
	theme    style.Theme
	keys     KeyMap
	width    int
	height   int
	showDirs bool

	pausing  bool
	finished bool
	detached bool
}

// NewProgress creates the progress view for scan, labelled with root.
func NewProgress(scan Scan, root string) *ProgressModel {
	theme := style.DefaultTheme()
	return &ProgressModel{
		Title:    "godudb",
		scan:     scan,
		root:     root,
		updates:  scan.Progress(),
		spinner:  spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(lipgloss.NewStyle().Foreground(theme.Secondary))),
		theme:    theme,
		keys:     DefaultKeyMap(),
		width:    80,
		showDirs: true,
	}
}

// Pausing reports whether the user asked the scan to pause.
func (m *ProgressModel) Pausing() bool { return m.pausing }

// Finished reports whether the scan ended while the view was running.
func (m *ProgressModel) Finished() bool { return m.finished }

// Detached reports whether the user left the view before the scan ended.
func (m *ProgressModel) Detached() bool { return m.detached }

func (m *ProgressModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.tickCmd())
}

func (m *ProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tickMsg:
		m.drain()
		select {
		case <-m.scan.Done():
			m.finished = true
			return m, tea.Quit
		default:
		}
		return m, m.tickCmd()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *ProgressModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.ForceQuit):
		if m.pausing {
			// Second interrupt: stop watching, the caller still waits for
			// pending writes.
			m.detached = true
			return m, tea.Quit
		}
		m.pause()
	case key.Matches(msg, m.keys.Pause):
		m.pause()
	case key.Matches(msg, m.keys.Details):
		m.showDirs = !m.showDirs
	}
	return m, nil
}

func (m *ProgressModel) pause() {
	if m.pausing {
		return
	}
	m.pausing = true
	m.keys.Pause.SetEnabled(false)
	m.scan.Cancel()
}

// drain keeps the newest snapshot available without blocking.
func (m *ProgressModel) drain() {
	for m.updates != nil {
		select {
		case p, ok := <-m.updates:
			if !ok {
				m.updates = nil
				return
			}
			m.progress = p
		default:
			return
		}
	}
}

func (m *ProgressModel) tickCmd() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *ProgressModel) View() string {
	p := m.progress
	stats := fmt.Sprintf("%s items  %s", util.FormatCount(p.EntriesScanned), util.FormatSize(p.BytesFound))

	var b strings.Builder
	b.WriteString(components.RenderHeader(m.theme, m.Title, m.root, stats, m.width))
	b.WriteString("\n\n")
	b.WriteString(components.RenderScanProgress(m.theme, p, m.width))
	b.WriteString("\n")
	if m.showDirs && len(p.ActiveDirs) > 0 {
		b.WriteString("\n")
		b.WriteString(components.RenderActiveDirs(m.theme, p.ActiveDirs, m.width, m.dirLines()))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(components.RenderStatusBar(m.theme, m.status(), m.keys.hints(), m.width))
	return b.String()
}

func (m *ProgressModel) status() string {
	switch {
	case m.finished && m.pausing:
		return m.theme.WarningText.Render("Paused")
	case m.finished:
		return m.theme.SuccessText.Render("Done")
	case m.pausing:
		return m.spinner.View() + m.theme.WarningText.Render(" Pausing, flushing pending entries...")
	default:
		return m.spinner.View() + " Scanning"
	}
}

// dirLines leaves room for the header, counters and status bar.
func (m *ProgressModel) dirLines() int {
	if m.height == 0 {
		return maxDirLines
	}
	return max(min(m.height-16, maxDirLines), 1)
}
