package cli

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"charm.land/bubbles/v2/spinner"
	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/raphaelgruber/chatdesk-go/internal/models"
	"github.com/raphaelgruber/chatdesk-go/internal/session"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Open the interactive chat view",
	Long: `Open the interactive chat view.

Keys:
  enter      send the typed message
  tab        switch to the next chat
  ctrl+n     start a new chat
  ctrl+l     clear the current chat
  ctrl+c     quit

Type '/attach <path>' to stage a file for the next message.`,
	RunE: runTUI,
}

const refreshInterval = 100 * time.Millisecond

// Theme holds the color scheme for the chat view.
type Theme struct {
	User      lipgloss.Color
	Assistant lipgloss.Color
	Error     lipgloss.Color
	Hint      lipgloss.Color
}

var defaultTheme = Theme{
	User:      lipgloss.Color("#5FAFD7"), // light blue
	Assistant: lipgloss.Color("#00D787"), // green
	Error:     lipgloss.Color("#FF005F"), // red
	Hint:      lipgloss.Color("#6C6C6C"), // dim gray
}

func (t Theme) userStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.User).Bold(true)
}

func (t Theme) assistantStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Assistant).Bold(true)
}

func (t Theme) errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

// refreshMsg triggers re-reading the controller snapshot.
type refreshMsg time.Time

// opDoneMsg reports a finished controller operation.
type opDoneMsg struct {
	err error
}

// chatModel is the bubbletea model for the chat view.
type chatModel struct {
	controller *session.Controller
	input      textinput.Model
	spin       spinner.Model
	theme      Theme

	snap   session.Snapshot
	staged []session.File
	width  int
	height int
	notice string
	err    error
}

func newChatModel(controller *session.Controller) chatModel {
	input := textinput.New()
	input.Placeholder = "Type a message..."
	input.CharLimit = 4000
	input.Focus()

	spin := spinner.New()
	spin.Spinner = spinner.Dot

	return chatModel{
		controller: controller,
		input:      input,
		spin:       spin,
		theme:      defaultTheme,
		snap:       controller.Snapshot(),
		width:      80,
		height:     24,
	}
}

// Init starts the snapshot refresh loop and the spinner.
func (m chatModel) Init() tea.Cmd {
	return tea.Batch(refreshCmd(), m.spin.Tick)
}

// Update handles messages and returns the updated model.
func (m chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "enter":
			return m.submit()
		case "tab":
			return m, m.cycleChat()
		case "ctrl+n":
			return m, m.runOp(func(ctx context.Context) error {
				return m.controller.CreateChat(ctx)
			})
		case "ctrl+l":
			return m, m.runOp(func(ctx context.Context) error {
				return m.controller.ClearActiveChat(ctx)
			})
		}

	case refreshMsg:
		m.snap = m.controller.Snapshot()
		return m, refreshCmd()

	case opDoneMsg:
		m.err = msg.err
		m.snap = m.controller.Snapshot()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit handles the enter key: either an /attach command or a send.
func (m chatModel) submit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())

	if path, ok := strings.CutPrefix(text, "/attach "); ok {
		m.input.SetValue("")
		return m.stageFile(strings.TrimSpace(path))
	}

	if text == "" && len(m.staged) == 0 {
		return m, nil
	}

	files := m.staged
	m.staged = nil
	m.input.SetValue("")
	m.notice = ""

	return m, m.runOp(func(ctx context.Context) error {
		return m.controller.SendMessage(ctx, text, files)
	})
}

func (m chatModel) stageFile(path string) (tea.Model, tea.Cmd) {
	data, err := os.ReadFile(path)
	if err != nil {
		m.err = fmt.Errorf("stage %s: %w", path, err)
		return m, nil
	}

	fileType := mime.TypeByExtension(filepath.Ext(path))
	if fileType == "" {
		fileType = "application/octet-stream"
	}

	m.staged = append(m.staged, session.File{
		Name: filepath.Base(path),
		Type: fileType,
		Data: data,
	})
	m.err = nil
	m.notice = fmt.Sprintf("Staged %s", filepath.Base(path))
	return m, nil
}

// cycleChat activates the chat after the current one in the list.
func (m chatModel) cycleChat() tea.Cmd {
	if len(m.snap.Chats) < 2 {
		return nil
	}

	next := 0
	for i, chat := range m.snap.Chats {
		if models.MustRecordIDString(chat.ID) == m.snap.ActiveChatID {
			next = (i + 1) % len(m.snap.Chats)
			break
		}
	}
	chatID := models.MustRecordIDString(m.snap.Chats[next].ID)

	return m.runOp(func(ctx context.Context) error {
		return m.controller.SelectChat(ctx, chatID)
	})
}

// runOp runs a controller operation off the update loop.
func (m chatModel) runOp(op func(context.Context) error) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return opDoneMsg{err: op(ctx)}
	}
}

// View renders the chat view.
func (m chatModel) View() tea.View {
	return tea.NewView(m.renderContent())
}

func (m chatModel) renderContent() string {
	var b strings.Builder

	b.WriteString(m.renderHeader())
	b.WriteString("\n\n")
	b.WriteString(m.renderMessages())

	if m.snap.Typing {
		b.WriteString(m.spin.View())
		b.WriteString(m.theme.hintStyle().Render("assistant is typing..."))
		b.WriteString("\n")
	}

	if len(m.staged) > 0 {
		names := make([]string, 0, len(m.staged))
		for _, f := range m.staged {
			names = append(names, f.Name)
		}
		b.WriteString(m.theme.hintStyle().Render("Attachments: "+strings.Join(names, ", ")) + "\n")
	}

	if m.err != nil {
		b.WriteString(m.theme.errorStyle().Render("Error: "+m.err.Error()) + "\n")
	} else if m.notice != "" {
		b.WriteString(m.theme.hintStyle().Render(m.notice) + "\n")
	}

	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n")
	b.WriteString(m.theme.hintStyle().Render("enter send · tab next chat · ctrl+n new · ctrl+l clear · ctrl+c quit"))
	b.WriteString("\n")

	return b.String()
}

func (m chatModel) renderHeader() string {
	title := "Chat"
	for _, chat := range m.snap.Chats {
		if models.MustRecordIDString(chat.ID) == m.snap.ActiveChatID {
			title = chat.Title
			break
		}
	}

	position := ""
	if len(m.snap.Chats) > 1 {
		for i, chat := range m.snap.Chats {
			if models.MustRecordIDString(chat.ID) == m.snap.ActiveChatID {
				position = fmt.Sprintf("  (%d/%d)", i+1, len(m.snap.Chats))
				break
			}
		}
	}

	return lipgloss.NewStyle().Bold(true).Render(title) + m.theme.hintStyle().Render(position)
}

func (m chatModel) renderMessages() string {
	if m.snap.Loading {
		return m.theme.hintStyle().Render("Loading messages...") + "\n\n"
	}
	if len(m.snap.Messages) == 0 {
		return m.theme.hintStyle().Render("No messages yet. Say hello.") + "\n\n"
	}

	// Show only as many messages as fit the window, newest last.
	visible := m.snap.Messages
	maxLines := m.height - 8
	if maxLines > 0 && len(visible) > maxLines/2 {
		visible = visible[len(visible)-maxLines/2:]
	}

	var b strings.Builder
	for _, msg := range visible {
		label := m.theme.userStyle().Render("you")
		if msg.Role == models.RoleAssistant {
			label = m.theme.assistantStyle().Render("assistant")
		}
		b.WriteString(fmt.Sprintf("%s  %s\n", label, msg.Content))

		for _, att := range m.snap.Attachments[models.MustRecordIDString(msg.ID)] {
			b.WriteString(m.theme.hintStyle().Render(fmt.Sprintf("      📎 %s (%s)", att.FileName, att.FileType)))
			b.WriteString("\n")
		}
	}
	b.WriteString("\n")
	return b.String()
}

// refreshCmd schedules the next snapshot refresh. Polling keeps the
// view in sync with the controller's async reply delivery.
func refreshCmd() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return refreshMsg(t)
	})
}

func runTUI(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	controller, err := newController(ctx)
	if err != nil {
		return err
	}
	defer controller.Wait()

	p := tea.NewProgram(newChatModel(controller))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("chat UI error: %w", err)
	}
	return nil
}
