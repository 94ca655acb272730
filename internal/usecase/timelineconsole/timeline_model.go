package timelineconsole

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"civicfix/internal/bootstrap/logging"
	"civicfix/internal/domain/timeline"
	"civicfix/internal/errs"
)

const (
	defaultBatchSize = 100
	defaultKeep      = 200
	defaultVisible   = 20
)

// EventSource reads the ledger in append order.
type EventSource interface {
	ListEventsAfter(ctx context.Context, afterEventID uint64, limit int) ([]timeline.Event, error)
}

type Options struct {
	// IssueID limits the feed to one issue; zero follows every issue.
	IssueID         uint64
	RefreshInterval time.Duration
	// FromStart replays the whole ledger instead of only new events.
	FromStart bool
	BatchSize int
	Keep      int
}

type timelineModel struct {
	ctx             context.Context
	source          EventSource
	issueID         uint64
	refreshInterval time.Duration
	batchSize       int
	keep            int

	cursor   uint64
	primed   bool
	events   []timeline.Event
	offset   int
	visible  int
	paused   bool
	status   string
	received int
}

type eventsLoadedMsg struct {
	events []timeline.Event
	err    error
	// initial is set for the first load, which only positions the cursor
	// unless the feed replays from the start.
	initial bool
}

type tickMsg struct{}

func NewTimelineModel(ctx context.Context, source EventSource, options Options) tea.Model {
	interval := options.RefreshInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	batch := options.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	keep := options.Keep
	if keep <= 0 {
		keep = defaultKeep
	}

	return &timelineModel{
		ctx:             logging.WithAttrs(ctx, slog.String("component", "usecase.timelineconsole")),
		source:          source,
		issueID:         options.IssueID,
		refreshInterval: interval,
		batchSize:       batch,
		keep:            keep,
		primed:          options.FromStart,
		visible:         defaultVisible,
		status:          "loading",
	}
}

func (m *timelineModel) Init() tea.Cmd {
	if m.primed {
		return tea.Batch(m.loadCmd(false), m.tickCmd())
	}
	return tea.Batch(m.loadCmd(true), m.tickCmd())
}

func (m *timelineModel) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := message.(type) {
	case tickMsg:
		if m.paused || !m.primed {
			return m, m.tickCmd()
		}
		return m, tea.Batch(m.loadCmd(false), m.tickCmd())
	case eventsLoadedMsg:
		if msg.err != nil {
			m.status = "refresh failed: " + msg.err.Error()
			return m, nil
		}
		return m, m.apply(msg)
	case tea.WindowSizeMsg:
		if msg.Height > 8 {
			m.visible = msg.Height - 6
		}
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "r":
			m.status = "refreshing"
			return m, m.loadCmd(false)
		case "p", " ":
			m.paused = !m.paused
			if m.paused {
				m.status = "paused"
			} else {
				m.status = "resumed"
			}
			return m, nil
		case "up", "k":
			if m.offset < len(m.events)-1 {
				m.offset++
			}
			return m, nil
		case "down", "j":
			if m.offset > 0 {
				m.offset--
			}
			return m, nil
		case "end", "G":
			m.offset = 0
			return m, nil
		}
	}
	return m, nil
}

// apply advances the cursor and keeps the newest events that match the
// issue filter. A full batch means the ledger has more, so it reloads.
func (m *timelineModel) apply(msg eventsLoadedMsg) tea.Cmd {
	for _, event := range msg.events {
		if event.ID > m.cursor {
			m.cursor = event.ID
		}
	}

	if msg.initial {
		m.primed = true
		if len(msg.events) == m.batchSize {
			return m.loadCmd(true)
		}
		m.status = fmt.Sprintf("following from event %d", m.cursor)
		return nil
	}

	added := 0
	for _, event := range msg.events {
		if m.issueID != 0 && event.IssueID != m.issueID {
			continue
		}
		m.events = append(m.events, event)
		added++
	}
	if overflow := len(m.events) - m.keep; overflow > 0 {
		m.events = append([]timeline.Event(nil), m.events[overflow:]...)
	}
	if m.offset > 0 {
		m.offset += added
		if m.offset > len(m.events)-1 {
			m.offset = max(len(m.events)-1, 0)
		}
	}
	m.received += added
	m.status = fmt.Sprintf("%d new, %d shown, cursor %d", added, len(m.events), m.cursor)

	if len(msg.events) == m.batchSize {
		return m.loadCmd(false)
	}
	return nil
}

func (m *timelineModel) View() string {
	titleStyle := lipgloss.NewStyle().Bold(true)
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	actorStyles := map[timeline.ActorType]lipgloss.Style{
		timeline.ActorCitizen:    lipgloss.NewStyle().Foreground(lipgloss.Color("39")),
		timeline.ActorAI:         lipgloss.NewStyle().Foreground(lipgloss.Color("170")),
		timeline.ActorGovernment: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		timeline.ActorSystem:     lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
	}

	scope := "all issues"
	if m.issueID != 0 {
		scope = fmt.Sprintf("issue #%d", m.issueID)
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("civicfix timeline: " + scope))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("q quit  r refresh  p pause  j/k scroll  G latest"))
	b.WriteString("\n\n")

	if len(m.events) == 0 {
		b.WriteString(dimStyle.Render("waiting for events..."))
		b.WriteString("\n")
	}

	end := len(m.events) - m.offset
	start := max(end-m.visible, 0)
	for _, event := range m.events[start:end] {
		style, ok := actorStyles[event.ActorType]
		if !ok {
			style = lipgloss.NewStyle()
		}
		b.WriteString(formatEvent(event, style))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(dimStyle.Render(m.status))
	return b.String()
}

func formatEvent(event timeline.Event, actorStyle lipgloss.Style) string {
	actor := string(event.ActorType)
	if event.ActorID != nil && *event.ActorID != "" {
		actor += ":" + *event.ActorID
	}
	return fmt.Sprintf("%s  #%-5d %-31s %s  %s",
		event.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
		event.IssueID,
		event.Type,
		actorStyle.Render(actor),
		event.Description,
	)
}

func (m *timelineModel) loadCmd(initial bool) tea.Cmd {
	cursor := m.cursor
	return func() tea.Msg {
		events, err := m.source.ListEventsAfter(m.ctx, cursor, m.batchSize)
		if err != nil {
			logging.Warn(m.ctx, "load timeline events failed", slog.Any("err", errs.Loggable(err)))
		}
		return eventsLoadedMsg{events: events, err: err, initial: initial}
	}
}

func (m *timelineModel) tickCmd() tea.Cmd {
	return tea.Tick(m.refreshInterval, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}
