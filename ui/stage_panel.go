package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ConversionStats holds the state shown while a conversion runs
type ConversionStats struct {
	Stage         string
	StagesDone    int
	TotalStages   int
	ZipName       string
	OutputPath    string
	RAMBacked     bool
	DocsScanned   int
	DocsChanged   int
	RefsRewritten int
	RefsSkipped   int
	StartTime     time.Time
}

// StagePanel displays pipeline progress and rewrite statistics
type StagePanel struct {
	stats      ConversionStats
	bar        progress.Model
	width      int
	height     int
	style      lipgloss.Style
	labelStyle lipgloss.Style
	valueStyle lipgloss.Style
}

func NewStagePanel() *StagePanel {
	return &StagePanel{
		bar:   progress.New(progress.WithDefaultGradient()),
		style: borderStyle.BorderForeground(lipgloss.Color("99")),
		labelStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Bold(true),
		valueStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")),
	}
}

func (s *StagePanel) SetSize(width, height int) {
	s.width = width
	s.height = height
	s.bar.Width = width - 6
}

func (s *StagePanel) Update(msg tea.Msg) tea.Cmd {
	return nil
}

func (s *StagePanel) View() string {
	ratio := 0.0
	if s.stats.TotalStages > 0 {
		ratio = float64(s.stats.StagesDone) / float64(s.stats.TotalStages)
	}

	rows := []struct {
		label string
		value string
	}{
		{"Stage", s.stats.Stage},
		{"Input", s.stats.ZipName},
		{"Output", s.stats.OutputPath},
		{"Staging", s.stagingLabel()},
		{"Documents", fmt.Sprintf("%d scanned, %d rewritten", s.stats.DocsScanned, s.stats.DocsChanged)},
		{"References", fmt.Sprintf("%d rewritten, %d kept", s.stats.RefsRewritten, s.stats.RefsSkipped)},
		{"Elapsed", s.formatElapsedTime()},
	}

	var content strings.Builder
	content.WriteString(titleStyle.Render("Conversion Progress") + "\n\n")
	content.WriteString(s.bar.ViewAs(ratio) + "\n\n")

	columnWidth := (s.width - 8) / 3
	for _, row := range rows {
		if row.value == "" {
			continue
		}
		content.WriteString(fmt.Sprintf("%-*s %s\n",
			columnWidth,
			s.labelStyle.Render(row.label+":"),
			s.valueStyle.Render(row.value),
		))
	}

	return s.style.Width(s.width).Height(s.height).Render(content.String())
}

// UpdateStats replaces the displayed statistics
func (s *StagePanel) UpdateStats(stats ConversionStats) {
	s.stats = stats
}

// SetStage advances the displayed stage
func (s *StagePanel) SetStage(stage string, done, total int) {
	s.stats.Stage = stage
	s.stats.StagesDone = done
	s.stats.TotalStages = total
}

// SetRewriteCounts fills in the link-rewrite statistics
func (s *StagePanel) SetRewriteCounts(scanned, changed, rewritten, skipped int) {
	s.stats.DocsScanned = scanned
	s.stats.DocsChanged = changed
	s.stats.RefsRewritten = rewritten
	s.stats.RefsSkipped = skipped
}

func (s *StagePanel) stagingLabel() string {
	if s.stats.RAMBacked {
		return "RAM-backed"
	}
	return ""
}

func (s *StagePanel) formatElapsedTime() string {
	if s.stats.StartTime.IsZero() {
		return "00:00:00"
	}
	elapsed := time.Since(s.stats.StartTime)
	return fmt.Sprintf("%02d:%02d:%02d",
		int(elapsed.Hours()),
		int(elapsed.Minutes())%60,
		int(elapsed.Seconds())%60,
	)
}
