package consent

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

type button struct {
	label    string
	decision Decision
}

var dialogButtons = []button{
	{"Update Now", Approve},
	{"Later", Defer},
	{"Ignore This Version", Ignore},
}

// defaultButton is "Update Now".
const defaultButton = 0

type dialogKeyMap struct {
	Left   key.Binding
	Right  key.Binding
	Select key.Binding
	Update key.Binding
	Later  key.Binding
	Ignore key.Binding
	Cancel key.Binding
}

func defaultDialogKeys() dialogKeyMap {
	return dialogKeyMap{
		Left: key.NewBinding(
			key.WithKeys("left", "shift+tab"),
			key.WithHelp("←/→", "Move"),
		),
		Right: key.NewBinding(
			key.WithKeys("right", "tab"),
			key.WithHelp("←/→", "Move"),
		),
		Select: key.NewBinding(
			key.WithKeys("enter", " "),
			key.WithHelp("enter", "Select"),
		),
		Update: key.NewBinding(
			key.WithKeys("u"),
			key.WithHelp("u", "Update"),
		),
		Later: key.NewBinding(
			key.WithKeys("l"),
			key.WithHelp("l", "Later"),
		),
		Ignore: key.NewBinding(
			key.WithKeys("i"),
			key.WithHelp("i", "Ignore"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("esc", "q", "ctrl+c"),
			key.WithHelp("esc", "Later"),
		),
	}
}

// ShortHelp implements help.KeyMap.
func (k dialogKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Right, k.Select, k.Update, k.Ignore, k.Cancel}
}

// FullHelp implements help.KeyMap.
func (k dialogKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

// dialogModel is the bubbletea model behind DialogPrompter.
type dialogModel struct {
	req      Request
	keys     dialogKeyMap
	help     help.Model
	styles   dialogStyles
	selected int
	decision Decision
	done     bool
}

func newDialogModel(req Request, r *lipgloss.Renderer) dialogModel {
	return dialogModel{
		req:      req,
		keys:     defaultDialogKeys(),
		help:     help.New(),
		styles:   newDialogStyles(r),
		selected: defaultButton,
		decision: Defer,
	}
}

// Init implements tea.Model.
func (m dialogModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m dialogModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch {
	case key.Matches(keyMsg, m.keys.Cancel):
		return m.finish(Defer)
	case key.Matches(keyMsg, m.keys.Update):
		return m.finish(Approve)
	case key.Matches(keyMsg, m.keys.Later):
		return m.finish(Defer)
	case key.Matches(keyMsg, m.keys.Ignore):
		return m.finish(Ignore)
	case key.Matches(keyMsg, m.keys.Select):
		return m.finish(dialogButtons[m.selected].decision)
	case key.Matches(keyMsg, m.keys.Left):
		m.selected = (m.selected + len(dialogButtons) - 1) % len(dialogButtons)
	case key.Matches(keyMsg, m.keys.Right):
		m.selected = (m.selected + 1) % len(dialogButtons)
	}
	return m, nil
}

func (m dialogModel) finish(d Decision) (tea.Model, tea.Cmd) {
	m.decision = d
	m.done = true
	return m, tea.Quit
}

// View implements tea.Model.
func (m dialogModel) View() string {
	if m.done {
		return ""
	}

	lines := []string{m.styles.title.Render(m.req.Headline()), ""}
	for _, d := range m.req.Details() {
		lines = append(lines, m.styles.body.Render(d))
	}
	lines = append(lines, "", m.renderButtons(), "", m.help.View(m.keys))

	return m.styles.frame.Render(strings.Join(lines, "\n")) + "\n"
}

func (m dialogModel) renderButtons() string {
	rendered := make([]string, 0, len(dialogButtons))
	for i, b := range dialogButtons {
		style := m.styles.button
		if i == m.selected {
			style = m.styles.activeButton
		}
		rendered = append(rendered, style.Render(b.label))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, rendered...)
}

type dialogStyles struct {
	frame        lipgloss.Style
	title        lipgloss.Style
	body         lipgloss.Style
	button       lipgloss.Style
	activeButton lipgloss.Style
}

func newDialogStyles(r *lipgloss.Renderer) dialogStyles {
	accent := lipgloss.AdaptiveColor{Light: "#0066CC", Dark: "#5FAFFF"}
	muted := lipgloss.AdaptiveColor{Light: "#666666", Dark: "#A8A8A8"}
	return dialogStyles{
		frame: r.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accent).
			Padding(1, 2),
		title: r.NewStyle().Bold(true).Foreground(accent),
		body:  r.NewStyle().Foreground(muted),
		button: r.NewStyle().
			Padding(0, 2).
			MarginRight(1),
		activeButton: r.NewStyle().
			Padding(0, 2).
			MarginRight(1).
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(accent),
	}
}

// DialogPrompter shows a three-button terminal dialog.
type DialogPrompter struct {
	in  io.Reader
	out io.Writer
}

// NewDialogPrompter creates a dialog on in/out. Nil values use stdin and
// stderr.
func NewDialogPrompter(in io.Reader, out io.Writer) *DialogPrompter {
	if in == nil {
		in = os.Stdin
	}
	if out == nil {
		out = os.Stderr
	}
	return &DialogPrompter{in: in, out: out}
}

// Prompt implements Prompter.
func (p *DialogPrompter) Prompt(ctx context.Context, req Request) (Decision, error) {
	renderer := lipgloss.NewRenderer(p.out)
	if termenv.EnvNoColor() {
		renderer.SetColorProfile(termenv.Ascii)
	}

	program := tea.NewProgram(
		newDialogModel(req, renderer),
		tea.WithContext(ctx),
		tea.WithInput(p.in),
		tea.WithOutput(p.out),
	)
	final, err := program.Run()
	if err != nil {
		return Defer, fmt.Errorf("run dialog: %w", err)
	}
	if m, ok := final.(dialogModel); ok && m.done {
		return m.decision, nil
	}
	return Defer, nil
}
