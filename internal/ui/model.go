// Package ui provides the live Bubbletea meter for sonido-pulse
package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/RyanBlaney/sonido-pulse/phase"
)

// refreshInterval is the meter redraw period, about 30 Hz
const refreshInterval = 33 * time.Millisecond

// StreamDoneMsg is sent when the audio source stops
type StreamDoneMsg struct {
	Err error
}

// tickMsg drives redraws
type tickMsg time.Time

// Model is the Bubbletea model for the live meter. It only reads the
// publisher, except for reset requests.
type Model struct {
	pub    *phase.Publisher
	source string
	edges  []float64 // band edges in Hz, bands+1 values

	// Latest snapshot and when its state began
	Current     *phase.Phase
	StateSince  time.Time
	Transitions int
	StartTime   time.Time

	// Reset bookkeeping for the status line
	ResetRequested time.Time

	Err  error
	Done bool

	// Terminal dimensions
	Width  int
	Height int
}

// NewModel creates a meter for pub. edges labels the bands.
func NewModel(pub *phase.Publisher, source string, edges []float64) Model {
	now := time.Now()
	return Model{
		pub:        pub,
		source:     source,
		edges:      edges,
		Current:    pub.Load(),
		StateSince: now,
		StartTime:  now,
	}
}

// Init starts the redraw ticker
func (m Model) Init() tea.Cmd {
	return tickCmd()
}

func tickCmd() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.Done = true
			return m, tea.Quit
		case "r":
			m.pub.RequestReset()
			m.ResetRequested = time.Now()
		}

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height

	case tickMsg:
		m.observe(m.pub.Load(), time.Time(msg))
		if m.Done {
			return m, nil
		}
		return m, tickCmd()

	case StreamDoneMsg:
		m.Err = msg.Err
		m.Done = true
		return m, tea.Quit
	}

	return m, nil
}

// observe takes a newer snapshot into the model
func (m *Model) observe(p *phase.Phase, now time.Time) {
	if p == nil || (m.Current != nil && p.Seq == m.Current.Seq) {
		return
	}
	if m.Current != nil && p.State != m.Current.State {
		m.StateSince = now
		if p.State.Kind != m.Current.State.Kind {
			m.Transitions++
		}
	}
	m.Current = p
}

// View renders the UI
func (m Model) View() string {
	if m.Width == 0 {
		return "Initializing..."
	}
	return renderMeter(m)
}
