package tui

import (
	"fmt"

	"replydesk/internal/model"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/lipgloss"
)

// messageItem wraps a working-set message for the list display.
type messageItem struct {
	model.Message
}

func (m messageItem) FilterValue() string { return m.Sender + " " + m.Subject }
func (m messageItem) Title() string {
	return fmt.Sprintf("%s  %s", m.SenderName, m.Subject)
}
func (m messageItem) Description() string {
	if m.Summary != "" {
		return m.Summary
	}
	return fmt.Sprintf("From: %s  Date: %s", m.Sender, trimDate(m.CreatedAt))
}

var footerStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("241")).
	PaddingTop(1)

var autoStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("214"))

func inboxTitle(n int, autoSending bool) string {
	title := fmt.Sprintf("Inbox (%d to review)", n)
	if autoSending {
		title += " " + autoStyle.Render("[auto-sending]")
	}
	return title
}

func inboxFooter(autoSending bool) string {
	if autoSending {
		return footerStyle.Render("x: stop auto-send  q: quit")
	}
	return footerStyle.Render("enter: review  s: send draft  a: auto-send all  r: poll now  /: filter  q: quit")
}

func messagesToItems(msgs []model.Message) []list.Item {
	items := make([]list.Item, len(msgs))
	for i, m := range msgs {
		items[i] = messageItem{m}
	}
	return items
}
