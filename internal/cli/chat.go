package cli

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/0xcro3dile/coopchat-go/internal/domain/entities"
	"github.com/0xcro3dile/coopchat-go/internal/domain/usecases"
)

// chatService is the part of usecases.ChatbotService the terminal chat uses.
type chatService interface {
	StartConversation(ctx context.Context, domain entities.Domain, sessionID string) (usecases.Result, error)
	ProcessMessage(ctx context.Context, domain entities.Domain, sessionID, message string) (usecases.Result, error)
}

type chatLine struct {
	role entities.Role
	text string
}

type chatModel struct {
	ctx    context.Context
	svc    chatService
	domain entities.Domain

	sessionID string
	lines     []chatLine
	input     []rune
	stage     entities.Stage
	progress  string

	waiting bool
	done    bool
	err     error
	width   int
}

// replyMsg carries a chatbot turn back to the model.
type replyMsg struct {
	res usecases.Result
	err error
}

var (
	chatTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("25")).
			Padding(0, 1)

	userStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("69")).Bold(true)
	botStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	stageStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	helpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

func newChatModel(ctx context.Context, svc chatService, domain entities.Domain) chatModel {
	return chatModel{ctx: ctx, svc: svc, domain: domain, waiting: true, width: 80}
}

func (m chatModel) Init() tea.Cmd {
	return m.start
}

func (m chatModel) start() tea.Msg {
	res, err := m.svc.StartConversation(m.ctx, m.domain, "")
	return replyMsg{res: res, err: err}
}

func (m chatModel) send(text string) tea.Cmd {
	return func() tea.Msg {
		res, err := m.svc.ProcessMessage(m.ctx, m.domain, m.sessionID, text)
		return replyMsg{res: res, err: err}
	}
}

func (m chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case replyMsg:
		m.waiting = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.sessionID = msg.res.SessionID
		m.stage = msg.res.Stage
		m.progress = fmt.Sprintf("%d/%d", msg.res.Progress.Collected, msg.res.Progress.Total)
		m.lines = append(m.lines, chatLine{role: entities.RoleAssistant, text: msg.res.Reply})
		m.done = msg.res.Completed
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			if m.done {
				return m, tea.Quit
			}
			text := strings.TrimSpace(string(m.input))
			if text == "" || m.waiting || m.sessionID == "" {
				return m, nil
			}
			m.lines = append(m.lines, chatLine{role: entities.RoleUser, text: text})
			m.input = m.input[:0]
			m.waiting = true
			return m, m.send(text)
		case tea.KeyBackspace:
			if len(m.input) > 0 {
				m.input = m.input[:len(m.input)-1]
			}
			return m, nil
		case tea.KeySpace:
			m.input = append(m.input, ' ')
			return m, nil
		case tea.KeyRunes:
			m.input = append(m.input, msg.Runes...)
			return m, nil
		}
	}
	return m, nil
}

func (m chatModel) View() string {
	var b strings.Builder

	title := "💧 Cooperativa de Agua · Boletas"
	if m.domain == entities.DomainEmergency {
		title = "🚨 Cooperativa de Agua · Emergencias"
	}
	b.WriteString(chatTitleStyle.Render(title))
	if m.stage != "" {
		b.WriteString("  " + stageStyle.Render(fmt.Sprintf("etapa: %s · datos: %s", m.stage, m.progress)))
	}
	b.WriteString("\n\n")

	wrap := lipgloss.NewStyle().Width(max(m.width-4, 20))
	for _, l := range m.lines {
		if l.role == entities.RoleUser {
			b.WriteString(userStyle.Render("Tú: ") + wrap.Render(l.text) + "\n\n")
		} else {
			b.WriteString(botStyle.Render(wrap.Render(l.text)) + "\n\n")
		}
	}

	if m.err != nil {
		b.WriteString(errStyle.Render("Error: "+m.err.Error()) + "\n\n")
	}

	switch {
	case m.done:
		b.WriteString(helpStyle.Render("Conversación finalizada · enter o esc para salir"))
	case m.waiting:
		b.WriteString(helpStyle.Render("…"))
	default:
		b.WriteString("> " + string(m.input) + "█\n")
		b.WriteString(helpStyle.Render("enter: enviar · esc: salir"))
	}
	return b.String()
}

var chatCmd = &cobra.Command{
	Use:   "chat <billing|emergency>",
	Short: "Talk to a chatbot in the terminal",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		domain, err := parseDomainArg(args[0])
		if err != nil {
			return err
		}
		p := tea.NewProgram(newChatModel(cmd.Context(), App.Chatbot, domain), tea.WithAltScreen())
		_, err = p.Run()
		return err
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
}
