package prompt

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/castlebay/halcyon/internal/shared"
)

var messageStyle = lipgloss.NewStyle().Bold(true)

// inputModel is the single-field bubbletea program behind interactive asks.
type inputModel struct {
	message  string
	input    textinput.Model
	done     bool
	canceled bool
}

func newInputModel(message string) inputModel {
	ti := textinput.New()
	ti.Placeholder = "paste code here"
	ti.CharLimit = 256
	ti.Focus()
	return inputModel{message: message, input: ti}
}

func (m inputModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m inputModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.Type {
		case tea.KeyEnter:
			m.done = true
			return m, tea.Quit
		case tea.KeyEsc, tea.KeyCtrlC:
			m.canceled = true
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m inputModel) View() string {
	if m.done || m.canceled {
		return ""
	}
	return fmt.Sprintf("%s\n%s\n", messageStyle.Render(m.message), m.input.View())
}

// askInput runs the text-input program on the prompter's streams.
func (p *Prompter) askInput(ctx context.Context, message string) (string, error) {
	prog := tea.NewProgram(newInputModel(message),
		tea.WithContext(ctx),
		tea.WithOutput(p.out),
	)

	final, err := prog.Run()
	if err != nil {
		return "", fmt.Errorf("prompt program: %w", err)
	}

	m, ok := final.(inputModel)
	if !ok || m.canceled {
		return "", fmt.Errorf("%w: prompt canceled", shared.ErrPromptUnavailable)
	}
	return strings.TrimSpace(m.input.Value()), nil
}
