package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/cleesmith/writers-toolkit-gemini-sub000/pkg/toolkit"
)

var (
	cursorStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	selectedItemStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true)
	dimStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	errorStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true).Padding(0, 1)
)

type tuiState int

const (
	statePicking tuiState = iota
	stateRunning
	stateDone
	stateConfirmExit
)

// streamEventMsg carries one live delta from the running tool.
type streamEventMsg struct {
	thinking bool
	text     string
}

// runDoneMsg ends a run; err is nil on success.
type runDoneMsg struct {
	result *toolkit.Result
	err    error
}

type tuiErrMsg struct{ err error }

type tuiModel struct {
	ctx   context.Context
	app   *app
	tools []toolkit.Tool

	state      tuiState
	cursor     int
	listOffset int
	width      int
	height     int
	err        error

	// events is drained one message at a time via waitForEvent; the running
	// goroutine closes it when the stream ends.
	events  chan tea.Msg
	running toolkit.Tool
	result  *toolkit.Result

	viewport viewport.Model
	renderer *glamour.TermRenderer

	// transcript is a plain string because the model is copied by value on
	// every Update.
	transcript string
}

func initialTUIModel(ctx context.Context, a *app) tuiModel {
	vp := viewport.New(80, 20)
	vp.SetContent("Pick a tool and press Enter.")

	// Use "light" style to avoid terminal queries that leak into input
	r, _ := glamour.NewTermRenderer(
		glamour.WithStandardStyle("light"),
		glamour.WithWordWrap(80),
	)

	return tuiModel{
		ctx:      ctx,
		app:      a,
		tools:    toolkit.List(),
		state:    statePicking,
		viewport: vp,
		renderer: r,
	}
}

func (m tuiModel) Init() tea.Cmd {
	return nil
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	var vpCmd tea.Cmd
	m.viewport, vpCmd = m.viewport.Update(msg)
	cmds = append(cmds, vpCmd)

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = msg.Width
		m.viewport.Height = msg.Height - 4
		if m.viewport.Height < 0 {
			m.viewport.Height = 0
		}
		m.renderer, _ = glamour.NewTermRenderer(
			glamour.WithStandardStyle("light"),
			glamour.WithWordWrap(m.width-4),
		)
		if m.cursor < m.listOffset {
			m.listOffset = m.cursor
		}

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			if m.state == stateRunning {
				// Let the stream finish; partial flushing happens in the
				// engine, not here.
				return m, nil
			}
			if m.state == stateConfirmExit {
				m.state = statePicking
				return m, nil
			}
			m.state = stateConfirmExit
			return m, nil
		case tea.KeyEnter:
			switch m.state {
			case statePicking:
				m.err = nil
				return m.startRun()
			case stateDone:
				m.state = statePicking
				m.transcript = ""
				m.viewport.SetContent("Pick a tool and press Enter.")
				return m, nil
			}
		case tea.KeyUp:
			if m.state == statePicking && m.cursor > 0 {
				m.cursor--
				if m.cursor < m.listOffset {
					m.listOffset = m.cursor
				}
			}
		case tea.KeyDown:
			if m.state == statePicking && m.cursor < len(m.tools)-1 {
				m.cursor++
				maxViewable := m.height - 7
				if maxViewable < 1 {
					maxViewable = 1
				}
				if m.cursor >= m.listOffset+maxViewable {
					m.listOffset = m.cursor - maxViewable + 1
				}
			}
		default:
			if m.state == stateConfirmExit {
				switch msg.String() {
				case "y", "Y":
					return m, tea.Sequence(m.cleanupCmd(), tea.Quit)
				case "n", "N":
					return m, tea.Quit
				}
			}
		}

	case streamEventMsg:
		if msg.thinking {
			m.transcript += dimStyle.Render(msg.text)
		} else {
			m.transcript += msg.text
		}
		m.viewport.SetContent(m.transcript)
		m.viewport.GotoBottom()
		cmds = append(cmds, waitForEvent(m.events))

	case runDoneMsg:
		m.state = stateDone
		m.result = msg.result
		m.err = msg.err
		if msg.result != nil && msg.result.Success {
			m.viewport.SetContent(m.renderReport())
			m.viewport.GotoBottom()
		}

	case tuiErrMsg:
		m.err = msg.err
		m.state = statePicking
	}

	return m, tea.Batch(cmds...)
}

func (m tuiModel) View() string {
	var errorView string
	if m.err != nil {
		errorView = errorStyle.Width(m.width).Render(fmt.Sprintf("\nError: %v", m.err))
	}

	switch m.state {
	case statePicking:
		header := titleStyle.Render("Writers Toolkit")

		maxViewable := m.height - 7
		if maxViewable < 1 {
			maxViewable = 1
		}
		start := m.listOffset
		end := start + maxViewable
		if end > len(m.tools) {
			end = len(m.tools)
		}

		var optionsView []string
		for i := start; i < end; i++ {
			t := m.tools[i]
			cursor := " "
			line := fmt.Sprintf("%-28s %s", t.ID, dimStyle.Render(t.Description))
			if m.cursor == i {
				cursor = ">"
				line = selectedItemStyle.Render(line)
			}
			optionsView = append(optionsView, fmt.Sprintf("%s %s", cursorStyle.Render(cursor), line))
		}

		list := lipgloss.JoinVertical(lipgloss.Left, optionsView...)
		footer := "Press Enter to run, Esc to quit."

		return lipgloss.JoinVertical(lipgloss.Left, header, "", list, "", footer, errorView)

	case stateConfirmExit:
		header := titleStyle.Render("Confirm Exit")
		prompt := "Delete remote files and caches before exiting? (y/n)"
		subtext := "Keeping them lets the next run reuse the uploaded manuscript."

		return lipgloss.JoinVertical(lipgloss.Left, header, "", prompt, subtext, errorView)

	case stateDone:
		header := titleStyle.Render(m.running.Title)
		var footer string
		if m.result != nil && m.result.Success {
			footer = fmt.Sprintf("Done: %d words, %d prompt tokens, %d response tokens. Enter for menu, Esc to quit.",
				m.result.Stats.WordCount, m.result.Stats.PromptTokens, m.result.Stats.ResponseTokens)
		} else {
			footer = "Run failed. Enter for menu, Esc to quit."
		}
		return lipgloss.JoinVertical(lipgloss.Left, header, "", m.viewport.View(), "", footer, errorView)
	}

	return lipgloss.JoinVertical(
		lipgloss.Left,
		titleStyle.Render(m.running.Title),
		"",
		m.viewport.View(),
		"",
		dimStyle.Render("Streaming..."),
		errorView,
	)
}

func (m tuiModel) startRun() (tuiModel, tea.Cmd) {
	m.running = m.tools[m.cursor]
	m.state = stateRunning
	m.transcript = ""
	m.viewport.SetContent("")
	m.events = make(chan tea.Msg, 64)

	events := m.events
	toolID := m.running.ID
	eng := m.app.engine
	ctx := m.ctx

	go func() {
		res, err := eng.Execute(ctx, toolID, toolkit.RunOptions{
			OnThinking: func(s string) { events <- streamEventMsg{thinking: true, text: s} },
			OnAnswer:   func(s string) { events <- streamEventMsg{text: s} },
			Logf: func(format string, args ...any) {
				events <- streamEventMsg{thinking: true, text: fmt.Sprintf(format+"\n", args...)}
			},
		})
		events <- runDoneMsg{result: res, err: err}
		close(events)
	}()

	return m, waitForEvent(m.events)
}

// renderReport pretty-prints the finished answer; plain text falls back
// unrendered.
func (m tuiModel) renderReport() string {
	body := m.transcript
	if m.renderer == nil {
		return body
	}
	rendered, err := m.renderer.Render(body)
	if err != nil {
		return body
	}
	return rendered
}

func (m tuiModel) cleanupCmd() tea.Cmd {
	return func() tea.Msg {
		report := m.app.registry.ClearAll(m.ctx)
		slog.Info("Remote cleanup on exit",
			"files_deleted", report.FilesDeleted,
			"caches_deleted", report.CachesDeleted,
			"problems", len(report.Problems))
		return nil
	}
}

func waitForEvent(ch chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return nil
		}
		return msg
	}
}

func runTUI(ctx context.Context, a *app) error {
	p := tea.NewProgram(initialTUIModel(ctx, a))
	_, err := p.Run()
	return err
}
