package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	tea "github.com/charmbracelet/bubbletea"
	isatty "github.com/mattn/go-isatty"

	"github.com/noosed/InvaderZIM/internal/config"
	"github.com/noosed/InvaderZIM/internal/convert"
	"github.com/noosed/InvaderZIM/internal/rewrite"
	"github.com/noosed/InvaderZIM/ui"
)

const version = "4.0.0"

// CLI flags structure
type CLIFlags struct {
	Zip         string           `help:"Input ZIP archive of the website" type:"path" arg:"" optional:""`
	Out         string           `help:"Output ZIM file path" short:"o" type:"path"`
	Title       string           `help:"ZIM title (defaults to the site <title> or the zip name)" short:"t"`
	Language    string           `help:"ISO 639-3 language code"`
	Description string           `help:"ZIM description"`
	Creator     string           `help:"Creator metadata"`
	Publisher   string           `help:"Publisher metadata"`
	NoRewrite   bool             `help:"Leave HTML links untouched"`
	NoRAM       bool             `help:"Do not stage the extracted site on a RAM-backed filesystem"`
	Plain       bool             `help:"Run without the interactive interface" short:"p"`
	Yes         bool             `help:"Overwrite an existing output file without asking" short:"y"`
	Config      string           `help:"Path to configuration file" type:"path"`
	Version     kong.VersionFlag `help:"Print version and exit"`
}

// Message types
type stageMsg struct {
	stage convert.Stage
}
type logMsg struct {
	level convert.Level
	text  string
}
type rewriteDoneMsg struct {
	summary *rewrite.Summary
}
type finishedMsg struct {
	output string
	err    error
}

// Stats ticker message
type statsTickMsg struct{}

func tickStats() tea.Cmd {
	return tea.Tick(time.Second, func(time.Time) tea.Msg {
		return statsTickMsg{}
	})
}

// channelReporter forwards pipeline progress into the bubbletea event loop.
type channelReporter struct {
	events chan tea.Msg
}

func (r *channelReporter) Stage(s convert.Stage) { r.events <- stageMsg{stage: s} }
func (r *channelReporter) Log(level convert.Level, msg string) {
	r.events <- logMsg{level: level, text: msg}
}
func (r *channelReporter) RewriteDone(sum *rewrite.Summary) {
	r.events <- rewriteDoneMsg{summary: sum}
}

// Base model structure
type Model struct {
	layout  *ui.Layout
	cfg     config.Config
	flags   CLIFlags
	events  chan tea.Msg
	cancel  context.CancelFunc
	running bool
	err     error
	output  string
}

func newModel(flags CLIFlags, cfg config.Config) Model {
	initial := ui.FormValues{
		ZipPath:      flags.Zip,
		OutputPath:   flags.Out,
		Title:        flags.Title,
		Language:     firstNonEmpty(flags.Language, cfg.Language),
		Description:  flags.Description,
		RewriteLinks: cfg.RewriteLinks && !flags.NoRewrite,
	}
	if initial.OutputPath == "" && initial.ZipPath != "" {
		initial.OutputPath = defaultOutputPath(initial.ZipPath)
	}
	return Model{
		layout: ui.NewLayout(initial),
		cfg:    cfg,
		flags:  flags,
		events: make(chan tea.Msg, 64),
	}
}

// Init is the first function called. It returns an optional initial command.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.layout.Init(), tickStats())
}

// waitForEvent pulls the next pipeline event off the reporter channel.
func (m Model) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		return <-m.events
	}
}

// Update handles all the updates and state transitions
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case statsTickMsg:
		cmds = append(cmds, tickStats())

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		case "esc":
			if !m.running {
				return m, tea.Quit
			}
		case "enter":
			if !m.running {
				return m.startConversion()
			}
		}

	case stageMsg:
		m.layout.Stage().SetStage(msg.stage.String(), int(msg.stage), int(convert.StageDone))
		m.layout.AddInfo(msg.stage.String())
		cmds = append(cmds, m.waitForEvent())

	case logMsg:
		m.layout.Log(levelToUI(msg.level), msg.text)
		cmds = append(cmds, m.waitForEvent())

	case rewriteDoneMsg:
		s := msg.summary
		m.layout.Stage().SetRewriteCounts(s.Scanned, s.Changed, s.Rewritten, s.Skipped)
		cmds = append(cmds, m.waitForEvent())

	case finishedMsg:
		m.running = false
		m.cancel = nil
		m.err = msg.err
		m.output = msg.output
		m.layout.SetRunning(false)
		if msg.err != nil {
			m.layout.AddError(msg.err.Error())
		} else {
			m.layout.AddSuccess(fmt.Sprintf("ZIM file created successfully: %s", msg.output))
		}
	}

	cmds = append(cmds, m.layout.Update(msg))
	return m, tea.Batch(cmds...)
}

// startConversion validates the form and launches the pipeline goroutine.
func (m Model) startConversion() (tea.Model, tea.Cmd) {
	form := m.layout.Form()
	if err := form.Validate(); err != nil {
		m.layout.AddError(err.Error())
		return m, nil
	}
	form.SetOutputIfEmpty(defaultOutputPath(form.Values().ZipPath))
	values := form.Values()

	m.layout.ClearLog()
	m.layout.SetRunning(true)
	m.layout.Stage().UpdateStats(ui.ConversionStats{
		Stage:       "Starting",
		TotalStages: int(convert.StageDone),
		ZipName:     filepath.Base(values.ZipPath),
		OutputPath:  values.OutputPath,
		RAMBacked:   m.cfg.RAMStaging && !m.flags.NoRAM,
		StartTime:   time.Now(),
	})
	m.running = true

	opts := convert.Options{
		ZipPath:      values.ZipPath,
		OutputPath:   values.OutputPath,
		Title:        values.Title,
		Description:  values.Description,
		Language:     firstNonEmpty(values.Language, m.cfg.Language),
		Creator:      firstNonEmpty(m.flags.Creator, m.cfg.Creator),
		Publisher:    firstNonEmpty(m.flags.Publisher, m.cfg.Publisher),
		RewriteLinks: values.RewriteLinks,
		RAMStaging:   m.cfg.RAMStaging && !m.flags.NoRAM,
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	conv := convert.New(opts, &channelReporter{events: m.events})
	go func() {
		output, err := conv.Run(ctx)
		m.events <- finishedMsg{output: output, err: err}
	}()

	return m, m.waitForEvent()
}

// View returns a string representation of the UI
func (m Model) View() string {
	return m.layout.View()
}

func levelToUI(level convert.Level) ui.LogLevel {
	switch level {
	case convert.LevelOK:
		return ui.LevelOK
	case convert.LevelWarn:
		return ui.LevelWarning
	case convert.LevelError:
		return ui.LevelError
	case convert.LevelSuccess:
		return ui.LevelSuccess
	default:
		return ui.LevelInfo
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// defaultOutputPath mirrors the zip location and basename.
func defaultOutputPath(zipPath string) string {
	base := strings.TrimSuffix(filepath.Base(zipPath), filepath.Ext(zipPath))
	return filepath.Join(filepath.Dir(zipPath), base+".zim")
}

func main() {
	var flags CLIFlags
	kong.Parse(&flags,
		kong.Name("invaderzim"),
		kong.Description("Convert website ZIPs to ZIM format."),
		kong.Vars{"version": "invaderzim " + version},
	)

	configPath := flags.Config
	if configPath == "" {
		configPath = config.DefaultPath()
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	if flags.Plain || !isatty.IsTerminal(os.Stdout.Fd()) {
		if err := runPlain(flags, cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	p := tea.NewProgram(newModel(flags, cfg), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running program: %v\n", err)
		os.Exit(1)
	}
}
