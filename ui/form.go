package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// FormValues are the metadata the user can edit before converting
type FormValues struct {
	ZipPath      string
	OutputPath   string
	Title        string
	Language     string
	Description  string
	RewriteLinks bool
}

const (
	fieldZip = iota
	fieldOutput
	fieldTitle
	fieldLanguage
	fieldDescription
	fieldCount
)

var fieldLabels = [fieldCount]string{
	"Input ZIP file",
	"Output ZIM file",
	"Title",
	"Language",
	"Description",
}

// Form is the metadata entry panel shown before a conversion starts
type Form struct {
	inputs       [fieldCount]textinput.Model
	focused      int
	rewriteLinks bool
	width        int
	height       int
	style        lipgloss.Style
	checkedStyle lipgloss.Style
}

// NewForm builds the form with the given initial values
func NewForm(initial FormValues) *Form {
	f := &Form{
		rewriteLinks: initial.RewriteLinks,
		style:        borderStyle.BorderForeground(lipgloss.Color("63")),
		checkedStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("86")),
	}
	defaults := [fieldCount]string{
		initial.ZipPath,
		initial.OutputPath,
		initial.Title,
		initial.Language,
		initial.Description,
	}
	for i := 0; i < fieldCount; i++ {
		in := textinput.New()
		in.Prompt = ""
		in.SetValue(defaults[i])
		in.CharLimit = 512
		f.inputs[i] = in
	}
	f.inputs[fieldLanguage].CharLimit = 8
	f.inputs[f.focused].Focus()
	return f
}

func (f *Form) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles focus cycling, the rewrite toggle and text entry
func (f *Form) Update(msg tea.Msg) tea.Cmd {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "tab", "shift+tab":
			f.inputs[f.focused].Blur()
			if key.String() == "tab" {
				f.focused = (f.focused + 1) % fieldCount
			} else {
				f.focused = (f.focused + fieldCount - 1) % fieldCount
			}
			return f.inputs[f.focused].Focus()
		case "ctrl+r":
			f.rewriteLinks = !f.rewriteLinks
			return nil
		}
	}

	var cmd tea.Cmd
	f.inputs[f.focused], cmd = f.inputs[f.focused].Update(msg)
	return cmd
}

func (f *Form) View() string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render("Convert website ZIP to ZIM") + "\n\n")

	labelWidth := 0
	for _, label := range fieldLabels {
		if len(label) > labelWidth {
			labelWidth = len(label)
		}
	}
	for i := 0; i < fieldCount; i++ {
		marker := "  "
		if i == f.focused {
			marker = "> "
		}
		sb.WriteString(fmt.Sprintf("%s%-*s %s\n",
			marker, labelWidth+1, fieldLabels[i]+":", f.inputs[i].View()))
	}

	check := "[ ]"
	if f.rewriteLinks {
		check = f.checkedStyle.Render("[x]")
	}
	sb.WriteString(fmt.Sprintf("\n  %s Rewrite HTML links (ctrl+r to toggle)\n", check))
	sb.WriteString(infoStyle.Render("\n  tab: next field | enter: convert | esc: quit"))

	return f.style.Width(f.width).Height(f.height).Render(sb.String())
}

func (f *Form) SetSize(width, height int) {
	f.width = width
	f.height = height
	for i := range f.inputs {
		f.inputs[i].Width = width - 24
	}
}

// Values snapshots the current form state
func (f *Form) Values() FormValues {
	return FormValues{
		ZipPath:      strings.TrimSpace(f.inputs[fieldZip].Value()),
		OutputPath:   strings.TrimSpace(f.inputs[fieldOutput].Value()),
		Title:        strings.TrimSpace(f.inputs[fieldTitle].Value()),
		Language:     strings.TrimSpace(f.inputs[fieldLanguage].Value()),
		Description:  strings.TrimSpace(f.inputs[fieldDescription].Value()),
		RewriteLinks: f.rewriteLinks,
	}
}

// SetOutputIfEmpty auto-populates the output path, mirroring the zip name
func (f *Form) SetOutputIfEmpty(path string) {
	if strings.TrimSpace(f.inputs[fieldOutput].Value()) == "" {
		f.inputs[fieldOutput].SetValue(path)
	}
}

// Validate reports the first problem preventing a conversion start
func (f *Form) Validate() error {
	v := f.Values()
	switch {
	case v.ZipPath == "":
		return fmt.Errorf("no ZIP file selected")
	case !strings.HasSuffix(strings.ToLower(v.ZipPath), ".zip"):
		return fmt.Errorf("input file must be a ZIP archive")
	case v.OutputPath == "":
		return fmt.Errorf("please specify an output ZIM file")
	}
	return nil
}
