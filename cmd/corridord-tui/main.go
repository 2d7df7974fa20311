// corridord-tui is a terminal status view over a running corridord
// daemon: entity rebuild states on top, a log of rebuild outcomes below.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/alignworks/corridord/pkg/client"
	"github.com/alignworks/corridord/pkg/engine"
)

// Config
const (
	pollRate       = time.Second
	maxLogLines    = 50
	viewportHeight = 14
)

// Styles
var (
	subtleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	statusStyle = lipgloss.NewStyle().Bold(true)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			Width(100)

	paneStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1).
			Width(100)

	kindStyle = lipgloss.NewStyle().Width(10)
	nameStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("99")).Width(28)

	cleanStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))  // Green
	dirtyStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("214")) // Orange
	errStateStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")) // Red
	rebuildingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))  // Blue
)

type tickMsg time.Time

type dataMsg struct {
	entities []engine.EntitySummary
	err      error
}

type rebuildMsg struct {
	result *engine.Result
	err    error
}

type model struct {
	api      *client.Client
	spinner  spinner.Model
	viewport viewport.Model
	entities []engine.EntitySummary
	log      []string
	err      error
	ready    bool
	building bool
}

func initialModel(api *client.Client) model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return model{
		api:     api,
		spinner: s,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		fetchEntities(m.api),
		tick(),
	)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		cmd  tea.Cmd
		cmds []tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "r":
			if !m.building {
				m.building = true
				m.appendLog(subtleStyle.Render("rebuild requested..."))
				cmds = append(cmds, triggerRebuild(m.api))
			}
			return m, tea.Batch(cmds...)
		}
		m.viewport, cmd = m.viewport.Update(msg)
		cmds = append(cmds, cmd)
		return m, tea.Batch(cmds...)

	case spinner.TickMsg:
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case tickMsg:
		cmds = append(cmds, fetchEntities(m.api), tick())

	case dataMsg:
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.err = nil
			m.entities = msg.entities
		}
		if !m.ready {
			m.ready = true
		}

	case rebuildMsg:
		m.building = false
		switch {
		case msg.err != nil && msg.result != nil:
			// Aborted pass: the result names the failing entities.
			for _, f := range msg.result.Failures {
				m.appendLog(errStateStyle.Render(fmt.Sprintf("FAILED %s: %s", f.EntityID, f.Message)))
			}
			m.appendLog(errStateStyle.Render("rebuild aborted, nothing persisted"))
		case msg.err != nil:
			m.appendLog(errStateStyle.Render(fmt.Sprintf("rebuild error: %v", msg.err)))
		default:
			m.appendLog(cleanStyle.Render(fmt.Sprintf("rebuild committed %d entities", len(msg.result.Committed))))
		}
		cmds = append(cmds, fetchEntities(m.api))

	case tea.WindowSizeMsg:
		if !m.ready {
			m.viewport = viewport.New(msg.Width, viewportHeight)
			m.viewport.Style = lipgloss.NewStyle().
				BorderStyle(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("62")).
				PaddingRight(2)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = viewportHeight
		}
	}

	return m, tea.Batch(cmds...)
}

func (m *model) appendLog(line string) {
	stamped := fmt.Sprintf("%s %s", subtleStyle.Render(time.Now().Format("15:04:05")), line)
	m.log = append(m.log, stamped)
	if len(m.log) > maxLogLines {
		m.log = m.log[len(m.log)-maxLogLines:]
	}
	m.viewport.SetContent(strings.Join(m.log, "\n"))
	m.viewport.GotoBottom()
}

func renderState(state string) string {
	switch state {
	case "clean":
		return cleanStyle.Render(state)
	case "dirty":
		return dirtyStyle.Render(state)
	case "error":
		return errStateStyle.Render(state)
	case "rebuilding":
		return rebuildingStyle.Render(state)
	default:
		return state
	}
}

func (m model) View() string {
	if !m.ready {
		return fmt.Sprintf("\n%s Initializing...", m.spinner.View())
	}

	// Top Pane: entity states
	var list strings.Builder
	list.WriteString(lipgloss.NewStyle().Bold(true).Underline(true).Render("Project Entities") + "\n\n")

	if len(m.entities) == 0 {
		list.WriteString(subtleStyle.Render("Empty project."))
	} else {
		for _, e := range m.entities {
			name := e.Name
			if name == "" {
				name = e.ID
			}
			line := fmt.Sprintf("%s %s v%-4d %s",
				kindStyle.Render(e.Kind),
				nameStyle.Render(name),
				e.Version,
				renderState(e.State),
			)
			if e.Err != "" {
				line += " " + errStateStyle.Render(e.Err)
			}
			list.WriteString(line + "\n")
		}
	}
	topPane := paneStyle.Render(list.String())

	// Bottom Pane: rebuild log
	header := headerStyle.Render(fmt.Sprintf("%s Rebuild Log", m.spinner.View()))
	bottomPane := m.viewport.View()

	// Status Footer
	var status string
	if m.err != nil {
		status = errorStyle.Render(fmt.Sprintf("Offline: %v", m.err))
	} else {
		dirty := 0
		for _, e := range m.entities {
			if e.State != "clean" {
				dirty++
			}
		}
		status = okStyle.Render(fmt.Sprintf("Online • %d Entities • %d Dirty", len(m.entities), dirty))
	}
	footer := subtleStyle.Render(fmt.Sprintf("\n%s\nPress r to rebuild, q to quit", statusStyle.Render(status)))

	return lipgloss.JoinVertical(lipgloss.Left, topPane, header, bottomPane, footer)
}

// Commands

func fetchEntities(api *client.Client) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
		defer cancel()
		entities, err := api.Entities(ctx)
		return dataMsg{entities: entities, err: err}
	}
}

func triggerRebuild(api *client.Client) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		result, err := api.Rebuild(ctx)
		return rebuildMsg{result: result, err: err}
	}
}

func tick() tea.Cmd {
	return tea.Tick(pollRate, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func main() {
	endpoint := os.Getenv("CORRIDORD_URL")
	p := tea.NewProgram(initialModel(client.NewClient(endpoint)), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Printf("Alas, there's been an error: %v", err)
		os.Exit(1)
	}
}
