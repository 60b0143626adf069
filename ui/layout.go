// Package ui holds the terminal interface: a metadata form, a pipeline
// progress panel and a scrolling conversion log.
package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Define common styles
var (
	borderStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63"))

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true).
			PaddingLeft(1)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("110"))
)

// Layout composes the panels. Before a conversion starts the form is shown
// on top; once running it is replaced by the stage panel.
type Layout struct {
	form    *Form
	stage   *StagePanel
	log     *LogConsole
	running bool
	width   int
	height  int
}

// NewLayout creates and initializes the layout with all panels
func NewLayout(initial FormValues) *Layout {
	return &Layout{
		form:  NewForm(initial),
		stage: NewStagePanel(),
		log:   NewLogConsole(),
	}
}

// SetSize adjusts the layout and all components to the given dimensions
func (l *Layout) SetSize(width, height int) {
	l.width = width
	l.height = height

	topHeight := height * 2 / 5
	l.form.SetSize(width, topHeight)
	l.stage.SetSize(width, topHeight)
	l.log.SetSize(width, height-topHeight)
}

// Init initializes all panels
func (l *Layout) Init() tea.Cmd {
	return l.form.Init()
}

// Update forwards messages to the visible panels
func (l *Layout) Update(msg tea.Msg) tea.Cmd {
	var cmds []tea.Cmd

	if resize, ok := msg.(tea.WindowSizeMsg); ok {
		l.SetSize(resize.Width, resize.Height)
	}

	if l.running {
		cmds = append(cmds, l.stage.Update(msg))
		cmds = append(cmds, l.log.Update(msg))
	} else {
		cmds = append(cmds, l.form.Update(msg))
	}

	return tea.Batch(cmds...)
}

// View renders the complete layout
func (l *Layout) View() string {
	top := l.form.View()
	if l.running {
		top = l.stage.View()
	}
	return lipgloss.JoinVertical(
		lipgloss.Left,
		top,
		l.log.View(),
	)
}

// Form exposes the metadata form
func (l *Layout) Form() *Form {
	return l.form
}

// Stage exposes the progress panel
func (l *Layout) Stage() *StagePanel {
	return l.stage
}

// SetRunning switches between the form and the progress panel
func (l *Layout) SetRunning(running bool) {
	l.running = running
}

// Running reports whether the progress panel is shown instead of the form
func (l *Layout) Running() bool {
	return l.running
}

// ClearLog empties the log console
func (l *Layout) ClearLog() {
	l.log.Clear()
}

// AddInfo adds an info message to the log console
func (l *Layout) AddInfo(msg string) {
	l.log.AddEntry(LevelInfo, msg)
}

// AddOK adds a confirmation message to the log console
func (l *Layout) AddOK(msg string) {
	l.log.AddEntry(LevelOK, msg)
}

// AddWarning adds a warning message to the log console
func (l *Layout) AddWarning(msg string) {
	l.log.AddEntry(LevelWarning, msg)
}

// AddError adds an error message to the log console
func (l *Layout) AddError(msg string) {
	l.log.AddEntry(LevelError, msg)
}

// AddSuccess adds a success message to the log console
func (l *Layout) AddSuccess(msg string) {
	l.log.AddEntry(LevelSuccess, msg)
}

// Log adds a message with the specified level to the log console
func (l *Layout) Log(level LogLevel, msg string) {
	l.log.AddEntry(level, msg)
}
