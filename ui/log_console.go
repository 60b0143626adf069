package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// LogLevel represents the severity of a log entry
type LogLevel int

const (
	LevelInfo LogLevel = iota
	LevelOK
	LevelWarning
	LevelError
	LevelSuccess
)

// LogEntry represents a single log message
type LogEntry struct {
	timestamp time.Time
	level     LogLevel
	message   string
}

// LogConsole manages the scrolling conversion log
type LogConsole struct {
	viewport  viewport.Model
	entries   []LogEntry
	width     int
	height    int
	style     lipgloss.Style
	showLevel LogLevel // Filter to show only messages >= this level
}

// Styles for different log levels
var (
	errorLogStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	warningLogStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	infoLogStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("110"))

	okLogStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39"))

	successLogStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("46")).
			Bold(true)

	timestampStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("242")).
			Italic(true)
)

// NewLogConsole creates a new log console
func NewLogConsole() *LogConsole {
	c := &LogConsole{
		entries:   make([]LogEntry, 0),
		style:     borderStyle.BorderForeground(lipgloss.Color("196")),
		showLevel: LevelInfo,
	}
	c.viewport = viewport.New(0, 0)
	return c
}

// SetSize updates the console dimensions
func (c *LogConsole) SetSize(width, height int) {
	c.width = width
	c.height = height
	c.viewport.Width = width - 4
	c.viewport.Height = height - 4
}

// AddEntry adds a new log entry
func (c *LogConsole) AddEntry(level LogLevel, msg string) {
	c.entries = append(c.entries, LogEntry{
		timestamp: time.Now(),
		level:     level,
		message:   msg,
	})
	c.updateContent()
}

// Clear drops all entries, called when a new conversion starts
func (c *LogConsole) Clear() {
	c.entries = c.entries[:0]
	c.updateContent()
}

// Update handles UI updates
func (c *LogConsole) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "up", "k":
			c.viewport.LineUp(1)
		case "down", "j":
			c.viewport.LineDown(1)
		case "pgup":
			c.viewport.HalfViewUp()
		case "pgdown":
			c.viewport.HalfViewDown()
		case "1":
			c.showLevel = LevelInfo
			c.updateContent()
		case "2":
			c.showLevel = LevelWarning
			c.updateContent()
		case "3":
			c.showLevel = LevelError
			c.updateContent()
		}
	}

	var cmd tea.Cmd
	c.viewport, cmd = c.viewport.Update(msg)
	return cmd
}

// View renders the console
func (c *LogConsole) View() string {
	filterInfo := fmt.Sprintf(
		"\nFilter: %s (1:Info 2:Warn 3:Error)",
		c.levelString(c.showLevel),
	)

	stats := fmt.Sprintf(
		"Total: %d | Errors: %d | Warnings: %d",
		len(c.entries),
		c.countByLevel(LevelError),
		c.countByLevel(LevelWarning),
	)

	return c.style.Width(c.width).Render(
		c.viewport.View() +
			infoStyle.Render(filterInfo) + "\n" +
			infoStyle.Render(stats),
	)
}

// updateContent updates the viewport content
func (c *LogConsole) updateContent() {
	var sb strings.Builder

	for _, entry := range c.entries {
		if !c.visible(entry.level) {
			continue
		}
		timestamp := timestampStyle.Render(
			entry.timestamp.Format("15:04:05"),
		)

		var logStyle lipgloss.Style
		switch entry.level {
		case LevelError:
			logStyle = errorLogStyle
		case LevelWarning:
			logStyle = warningLogStyle
		case LevelOK:
			logStyle = okLogStyle
		case LevelSuccess:
			logStyle = successLogStyle
		default:
			logStyle = infoLogStyle
		}

		sb.WriteString(fmt.Sprintf(
			"%s [%s] %s\n",
			timestamp,
			logStyle.Render(c.levelString(entry.level)),
			entry.message,
		))
	}

	c.viewport.SetContent(sb.String())
	if c.viewport.AtBottom() {
		c.viewport.GotoBottom()
	}
}

// visible applies the severity filter. OK and SUCCESS lines track the info
// filter: they are outcomes, not noise.
func (c *LogConsole) visible(level LogLevel) bool {
	switch level {
	case LevelOK, LevelSuccess:
		return true
	default:
		return level >= c.showLevel
	}
}

// Helper functions
func (c *LogConsole) levelString(level LogLevel) string {
	switch level {
	case LevelError:
		return "ERROR"
	case LevelWarning:
		return "WARN"
	case LevelOK:
		return "OK"
	case LevelSuccess:
		return "SUCCESS"
	default:
		return "INFO"
	}
}

func (c *LogConsole) countByLevel(level LogLevel) int {
	count := 0
	for _, entry := range c.entries {
		if entry.level == level {
			count++
		}
	}
	return count
}
