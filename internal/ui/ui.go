package ui

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/castlebay/halcyon/internal/models"
	"github.com/castlebay/halcyon/internal/session"
)

const (
	tickInterval = time.Second
	eventLimit   = 25
)

// Watcher is the slice of the session manager the TUI reads from.
type Watcher interface {
	Snapshot() session.Snapshot
	RequestRefresh()
}

// EventSource supplies recent auth events for the event pane. May be nil
// when no local store is open.
type EventSource interface {
	Recent(subjectID string, limit int) ([]models.AuthEvent, error)
}

// Model represents the watch TUI state.
type Model struct {
	watcher  Watcher
	events   EventSource
	snapshot session.Snapshot

	eventList list.Model
	listReady bool
	eventErr  error

	spin     spinner.Model
	width    int
	height   int
	help     help.Model
	keys     keyMap
	quitting bool
}

// NewModel creates a watch model reading from the given session.
func NewModel(watcher Watcher, events EventSource) *Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.warn

	return &Model{
		watcher:  watcher,
		events:   events,
		snapshot: watcher.Snapshot(),
		spin:     sp,
		help:     help.New(),
		keys:     newKeyMap(),
	}
}

// Err reports the terminal session failure, if any, so the watch command
// can exit non-zero after the program ends.
func (m *Model) Err() error {
	if m.snapshot.State == session.StateFailed {
		return m.snapshot.Err
	}
	return nil
}

// Init starts the tick loop, the spinner, and the first event load.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, m.tick(), m.loadEvents())
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.listReady {
			m.eventList.SetSize(msg.Width-4, m.listHeight())
		}
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, m.keys.refresh):
			m.watcher.RequestRefresh()
			return m, nil
		}
		return m.updateList(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case Msg:
		switch msg.kind {
		case MsgTick:
			m.snapshot = m.watcher.Snapshot()
			return m, tea.Batch(m.tick(), m.loadEvents())

		case MsgEventsLoaded:
			data := msg.data.(struct {
				events []models.AuthEvent
				err    error
			})
			m.eventErr = data.err
			if data.err != nil {
				return m, nil
			}

			items := make([]list.Item, len(data.events))
			for i, e := range data.events {
				items[i] = eventItem{event: e}
			}
			if !m.listReady {
				m.eventList = list.New(items, list.NewDefaultDelegate(), m.width-4, m.listHeight())
				m.eventList.Title = "Recent Auth Events"
				m.eventList.SetShowStatusBar(false)
				m.eventList.SetFilteringEnabled(false)
				m.eventList.SetShowHelp(false)
				m.listReady = true
			} else {
				m.eventList.SetItems(items)
			}
			return m, nil
		}
	}

	return m.updateList(msg)
}

// View renders the session panel and the event pane.
func (m *Model) View() string {
	if m.quitting {
		return ""
	}

	s := m.snapshot
	out := styles.title.Render("halcyon session") + "\n"

	stateLine := styles.state(s.State).Render(s.State.String())
	if s.State == session.StateAuthenticating || s.State == session.StateRefreshing {
		stateLine = fmt.Sprintf("%s %s", m.spin.View(), stateLine)
	}
	out += fmt.Sprintf("%s %s\n", styles.label.Render("State:"), stateLine)

	subject := s.SubjectID
	if subject == "" {
		subject = "-"
	}
	out += fmt.Sprintf("%s %s\n", styles.label.Render("Subject:"), subject)
	out += fmt.Sprintf("%s %s\n", styles.label.Render("Session token:"), countdown(s.SessionExpiry))
	out += fmt.Sprintf("%s %s\n", styles.label.Render("Exchange token:"), countdown(s.ExchangeExpiry))
	out += fmt.Sprintf("%s %d (%d restarts)\n", styles.label.Render("Refreshes:"), s.Refreshes, s.Restarts)

	last := "-"
	if !s.LastRefresh.IsZero() {
		last = ago(s.LastRefresh)
	}
	out += fmt.Sprintf("%s %s\n", styles.label.Render("Last refresh:"), last)

	if s.State == session.StateFailed && s.Err != nil {
		out += "\n" + styles.err.Render(fmt.Sprintf("Session failed: %v", s.Err)) + "\n"
	}
	if m.eventErr != nil {
		out += "\n" + styles.warn.Render(fmt.Sprintf("event log unavailable: %v", m.eventErr)) + "\n"
	}

	if m.listReady {
		out += "\n" + m.eventList.View() + "\n"
	}

	out += "\n" + m.help.ShortHelpView(m.keys.ShortHelp())
	return out
}

func (m *Model) updateList(msg tea.Msg) (tea.Model, tea.Cmd) {
	if !m.listReady {
		return m, nil
	}
	var cmd tea.Cmd
	m.eventList, cmd = m.eventList.Update(msg)
	return m, cmd
}

func (m *Model) listHeight() int {
	h := m.height - 12
	if h < 5 {
		h = 5
	}
	return h
}

func (m *Model) tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *Model) loadEvents() tea.Cmd {
	if m.events == nil {
		return nil
	}
	subject := m.snapshot.SubjectID
	return func() tea.Msg {
		events, err := m.events.Recent(subject, eventLimit)
		return eventsLoadedMsg(events, err)
	}
}

// countdown renders the time remaining until an expiry.
func countdown(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	d := time.Until(t)
	if d <= 0 {
		return "expired"
	}
	d = d.Round(time.Second)
	if d >= time.Hour {
		return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
	}
	if d >= time.Minute {
		return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%ds", int(d.Seconds()))
}

// Run drives the watch program until the operator quits or ctx is canceled.
// Returns the terminal session failure, if one happened, so callers can
// distinguish it from a clean quit.
func Run(ctx context.Context, watcher Watcher, events EventSource) error {
	m := NewModel(watcher, events)
	final, err := tea.NewProgram(m, tea.WithContext(ctx), tea.WithAltScreen()).Run()
	if err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("watch program: %w", err)
	}

	if fm, ok := final.(*Model); ok {
		return fm.Err()
	}
	return nil
}
