package tui

import (
	"fmt"

	"replydesk/internal/model"
	"replydesk/internal/notify"

	"github.com/charmbracelet/lipgloss"
)

var headerStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("39")).
	PaddingBottom(1)

var versionStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("245"))

func reviewHeader(m model.Message) string {
	header := fmt.Sprintf("From: %s <%s>\nSubject: %s\nDate: %s", m.SenderName, m.Sender, m.Subject, trimDate(m.CreatedAt))
	if m.Summary != "" {
		header += "\nSummary: " + m.Summary
	}
	return headerStyle.Render(header)
}

func versionLine(n, total int, tone model.Tone, busy bool) string {
	line := fmt.Sprintf("Draft %d/%d  Tone: %s", n, total, tone)
	if busy {
		line += "  regenerating..."
	}
	return versionStyle.Render(line)
}

func reviewFooter(dictation bool) string {
	keys := "tab: edit/customize  f1: formality  f2: length  f3/f4: prev/next version  f5: regenerate"
	if dictation {
		keys += "  f6: dictate"
	}
	return footerStyle.Render(keys + "  ctrl+s: send  esc: back")
}

func confirmView(n, total int) string {
	return headerStyle.Render(fmt.Sprintf("This reply has %d versions. Send version %d?", total, n)) +
		"\n" + footerStyle.Render("y: send  n: keep editing")
}

var toastStyles = map[notify.Kind]lipgloss.Style{
	notify.KindLoading: lipgloss.NewStyle().Foreground(lipgloss.Color("39")),
	notify.KindSuccess: lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
	notify.KindError:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
}

func toastsView(toasts []notify.Notification) string {
	lines := make([]string, 0, len(toasts))
	for _, t := range toasts {
		lines = append(lines, toastStyles[t.Kind].Render("• "+t.Text))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}
