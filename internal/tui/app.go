package tui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"replydesk/internal/ledger"
	"replydesk/internal/model"
	"replydesk/internal/notify"
	"replydesk/internal/session"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

const textVoiceFailed = "Voice capture failed. Please try again."

type viewState int

const (
	viewLoading viewState = iota
	viewInbox             // working set
	viewReview            // one message with its draft editor
	viewConfirm           // confirm sending a reply with several versions
)

type focusArea int

const (
	focusEditor focusArea = iota
	focusCustom
)

// Dictator captures spoken customization text.
type Dictator interface {
	Enabled() bool
	Capture(ctx context.Context) (string, error)
}

type Options struct {
	PollInterval time.Duration
	Dictation    Dictator
	Logger       *slog.Logger
}

// review is the state of the message being edited.
type review struct {
	ledger    *ledger.Ledger
	msg       model.Message
	formality int
	length    int
	focus     focusArea
	busy      bool
}

type AppModel struct {
	// Core state
	sess      *session.Session
	notes     *notify.Queue
	dictation Dictator
	log       *slog.Logger
	poll      time.Duration
	ctx       context.Context
	cancel    context.CancelFunc
	Err       error
	status    string

	sessionCh <-chan struct{}
	notesCh   <-chan struct{}
	toasts    []notify.Notification

	// View state machine
	view   viewState
	review *review

	// Sub-models
	inbox  list.Model
	body   viewport.Model
	editor textarea.Model
	custom textinput.Model

	// Layout
	width, height int
}

func NewAppModel(sess *session.Session, opts Options) AppModel {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = session.DefaultPollInterval
	}
	ctx, cancel := context.WithCancel(context.Background())

	inbox := list.New([]list.Item{}, list.NewDefaultDelegate(), 0, 0)
	inbox.Title = "Inbox"
	// Remove esc from the list's built-in Quit binding so it doesn't exit on home
	inbox.KeyMap.Quit.SetKeys("q")

	editor := textarea.New()
	editor.Placeholder = "Reply to the customer..."
	editor.ShowLineNumbers = false
	editor.CharLimit = 0

	custom := textinput.New()
	custom.Placeholder = "Extra instructions for the next regeneration"
	custom.Prompt = "Customize: "

	return AppModel{
		sess:      sess,
		notes:     sess.Notifications(),
		dictation: opts.Dictation,
		log:       opts.Logger,
		poll:      opts.PollInterval,
		ctx:       ctx,
		cancel:    cancel,
		status:    "Loading messages...",
		view:      viewLoading,
		sessionCh: sess.Changes(),
		notesCh:   sess.Notifications().Subscribe(),
		inbox:     inbox,
		body:      viewport.New(0, 0),
		editor:    editor,
		custom:    custom,
	}
}

func (m *AppModel) Init() tea.Cmd {
	return tea.Batch(m.loadCmd(), waitFor(m.sessionCh, sessionChangedMsg{}), waitFor(m.notesCh, notesChangedMsg{}))
}

// Shutdown stops the poller and any running batch.
func (m *AppModel) Shutdown() {
	m.sess.StopAutoSend()
	m.cancel()
}

func (m *AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case loadedMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("Could not load messages: %v", msg.err)
		} else {
			m.status = ""
		}
		m.view = viewInbox
		m.syncInbox()
		return m, m.startPollerCmd()

	case sessionChangedMsg:
		m.syncInbox()
		return m, waitFor(m.sessionCh, sessionChangedMsg{})

	case notesChangedMsg:
		m.toasts = m.notes.List()
		return m, waitFor(m.notesCh, notesChangedMsg{})

	case polledMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("Poll failed: %v", msg.err)
		} else {
			m.status = fmt.Sprintf("%d new message(s)", msg.added)
		}
		return m, clearStatusAfter(2 * time.Second)

	case sentMsg:
		// Notifications already report delivery; only surface the unexpected.
		if msg.err != nil && !model.IsDeliveryError(msg.err) && !errors.Is(msg.err, model.ErrNotFound) {
			m.status = fmt.Sprintf("Send failed: %v", msg.err)
			return m, clearStatusAfter(3 * time.Second)
		}
		return m, nil

	case autoSendDoneMsg:
		switch {
		case errors.Is(msg.err, model.ErrNothingToSend):
			return m, nil
		case errors.Is(msg.err, model.ErrAutoSendRunning):
			m.status = "Auto-send is already running"
		case msg.err != nil:
			m.status = fmt.Sprintf("Auto-send stopped after %d: %v", msg.sent, msg.err)
		default:
			m.status = fmt.Sprintf("Auto-send finished: %d sent", msg.sent)
		}
		return m, clearStatusAfter(3 * time.Second)

	case reviewOpenedMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("Cannot open message: %v", msg.err)
			return m, clearStatusAfter(3 * time.Second)
		}
		return m, m.enterReview(msg.ledger)

	case regeneratedMsg:
		if m.review == nil || m.review.ledger.MessageID() != msg.id {
			return m, nil
		}
		m.review.busy = false
		if msg.err == nil {
			m.editor.SetValue(msg.text)
		}
		return m, nil

	case dictatedMsg:
		if msg.err != nil {
			m.notes.Enqueue(notify.KindError, textVoiceFailed)
			m.log.Warn("dictation", "err", msg.err)
			return m, nil
		}
		if m.review != nil {
			m.custom.SetValue(msg.text)
		}
		return m, nil

	case statusMsg:
		if string(msg) == "" {
			m.status = ""
		}
		return m, nil
	}

	// Delegate to active sub-model
	var cmd tea.Cmd
	switch m.view {
	case viewInbox:
		m.inbox, cmd = m.inbox.Update(msg)
	case viewReview:
		if m.review != nil && m.review.focus == focusCustom {
			m.custom, cmd = m.custom.Update(msg)
		} else {
			m.editor, cmd = m.editor.Update(msg)
		}
	}
	return m, cmd
}

func (m *AppModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	// Global keys
	if key == "ctrl+c" {
		m.Shutdown()
		return m, tea.Quit
	}

	switch m.view {
	case viewLoading:
		if key == "q" {
			m.Shutdown()
			return m, tea.Quit
		}
		return m, nil

	case viewInbox:
		// When the list is filtering, let it handle all keys except ctrl+c
		if m.inbox.FilterState() == list.Filtering {
			var cmd tea.Cmd
			m.inbox, cmd = m.inbox.Update(msg)
			return m, cmd
		}
		switch key {
		case "q":
			m.Shutdown()
			return m, tea.Quit
		case "enter":
			if id, ok := m.selectedID(); ok {
				return m, m.openReviewCmd(id)
			}
			return m, nil
		case "s":
			if id, ok := m.selectedID(); ok {
				return m, m.sendCmd(id, "")
			}
			return m, nil
		case "a":
			m.status = "Auto-sending..."
			return m, m.autoSendCmd()
		case "x":
			m.sess.StopAutoSend()
			m.status = "Stopping auto-send..."
			return m, nil
		case "r":
			return m, m.pollCmd()
		}
		var cmd tea.Cmd
		m.inbox, cmd = m.inbox.Update(msg)
		return m, cmd

	case viewReview:
		return m.handleReviewKey(msg)

	case viewConfirm:
		switch key {
		case "y", "enter":
			return m, m.sendReview()
		case "n", "esc":
			m.view = viewReview
			return m, nil
		}
		return m, nil
	}

	return m, nil
}

func (m *AppModel) handleReviewKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	r := m.review
	switch msg.String() {
	case "esc":
		return m, m.leaveReview()
	case "tab":
		if r.focus == focusEditor {
			r.focus = focusCustom
			m.editor.Blur()
			return m, m.custom.Focus()
		}
		r.focus = focusEditor
		m.custom.Blur()
		return m, m.editor.Focus()
	case "f1":
		r.formality = (r.formality + 1) % len(model.Formalities)
		return m, nil
	case "f2":
		r.length = (r.length + 1) % len(model.Lengths)
		return m, nil
	case "f3":
		m.commitEdit()
		m.editor.SetValue(r.ledger.Previous())
		return m, nil
	case "f4":
		m.commitEdit()
		m.editor.SetValue(r.ledger.Next())
		return m, nil
	case "f5":
		if r.busy {
			return m, nil
		}
		m.commitEdit()
		r.busy = true
		return m, m.regenerateCmd()
	case "f6":
		if m.dictation == nil || !m.dictation.Enabled() {
			m.notes.Enqueue(notify.KindError, textVoiceFailed)
			return m, nil
		}
		return m, m.dictateCmd()
	case "ctrl+s":
		m.commitEdit()
		if r.ledger.Len() > 1 {
			m.view = viewConfirm
			return m, nil
		}
		return m, m.sendReview()
	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.body, cmd = m.body.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	if r.focus == focusCustom {
		m.custom, cmd = m.custom.Update(msg)
	} else {
		m.editor, cmd = m.editor.Update(msg)
	}
	return m, cmd
}

func (m *AppModel) selectedID() (string, bool) {
	selected := m.inbox.SelectedItem()
	if selected == nil {
		return "", false
	}
	return selected.(messageItem).ID, true
}

// syncInbox reloads the list from the working set, keeping the cursor near
// where it was.
func (m *AppModel) syncInbox() {
	idx := m.inbox.Index()
	msgs := m.sess.Messages()
	m.inbox.SetItems(messagesToItems(msgs))
	m.inbox.Title = inboxTitle(len(msgs), m.sess.AutoSending())
	if idx >= len(msgs) {
		idx = len(msgs) - 1
	}
	if idx >= 0 {
		m.inbox.Select(idx)
	}
}

func (m *AppModel) enterReview(l *ledger.Ledger) tea.Cmd {
	msg, ok := m.sess.Get(l.MessageID())
	if !ok {
		return nil
	}
	m.review = &review{ledger: l, msg: msg}
	m.editor.SetValue(l.Current())
	m.custom.Reset()
	m.custom.Blur()
	m.body.SetContent(reviewHeader(msg) + "\n\n" + msg.Body)
	m.body.GotoTop()
	m.view = viewReview
	m.layout()
	return m.editor.Focus()
}

// commitEdit stores the editor text as the displayed version.
func (m *AppModel) commitEdit() {
	r := m.review
	if r == nil || m.editor.Value() == r.ledger.Current() {
		return
	}
	if err := r.ledger.Edit(m.ctx, m.editor.Value()); err != nil {
		m.log.Warn("save edit", "id", r.ledger.MessageID(), "err", err)
	}
}

// leaveReview keeps the displayed text as the message's draft and drops
// the version history.
func (m *AppModel) leaveReview() tea.Cmd {
	m.commitEdit()
	r := m.review
	m.review = nil
	m.view = viewInbox
	m.editor.Blur()
	m.custom.Blur()
	m.sess.SetDraft(r.ledger.MessageID(), r.ledger.Current())
	if err := m.sess.CloseReview(m.ctx, r.ledger); err != nil {
		m.log.Warn("close review", "id", r.ledger.MessageID(), "err", err)
	}
	return nil
}

func (m *AppModel) sendReview() tea.Cmd {
	r := m.review
	m.review = nil
	m.view = viewInbox
	m.editor.Blur()
	m.custom.Blur()
	l := r.ledger
	return func() tea.Msg {
		return sentMsg{id: l.MessageID(), err: m.sess.SendReview(m.ctx, l)}
	}
}

func (m *AppModel) tone() model.Tone {
	return model.Tone{
		Formality: model.Formalities[m.review.formality],
		Length:    model.Lengths[m.review.length],
	}
}

func (m *AppModel) layout() {
	if m.width == 0 {
		return
	}
	listH := m.height - 4 // room for footer
	m.inbox.SetSize(m.width, listH)

	bodyH := max(m.height/3, 3)
	m.body.Width = m.width
	m.body.Height = bodyH
	m.editor.SetWidth(m.width)
	m.editor.SetHeight(max(m.height-bodyH-10, 3))
	m.custom.Width = max(m.width-len(m.custom.Prompt)-1, 10)
}

// Commands

func waitFor(ch <-chan struct{}, msg tea.Msg) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return msg
	}
}

func (m *AppModel) loadCmd() tea.Cmd {
	return func() tea.Msg {
		if err := m.sess.Refresh(m.ctx); err != nil {
			return loadedMsg{err: err}
		}
		_, err := m.sess.Poll(m.ctx)
		return loadedMsg{err: err}
	}
}

func (m *AppModel) startPollerCmd() tea.Cmd {
	return func() tea.Msg {
		go m.sess.RunPoller(m.ctx, m.poll)
		return nil
	}
}

func (m *AppModel) pollCmd() tea.Cmd {
	return func() tea.Msg {
		added, err := m.sess.Poll(m.ctx)
		return polledMsg{added: added, err: err}
	}
}

func (m *AppModel) sendCmd(id, override string) tea.Cmd {
	return func() tea.Msg {
		return sentMsg{id: id, err: m.sess.Send(m.ctx, id, override)}
	}
}

func (m *AppModel) autoSendCmd() tea.Cmd {
	return func() tea.Msg {
		sent, err := m.sess.AutoSendAll(m.ctx)
		return autoSendDoneMsg{sent: sent, err: err}
	}
}

func (m *AppModel) openReviewCmd(id string) tea.Cmd {
	return func() tea.Msg {
		l, err := m.sess.OpenReview(m.ctx, id)
		return reviewOpenedMsg{ledger: l, err: err}
	}
}

func (m *AppModel) regenerateCmd() tea.Cmd {
	l := m.review.ledger
	tone := m.tone()
	customization := strings.TrimSpace(m.custom.Value())
	return func() tea.Msg {
		text, err := m.sess.Regenerate(m.ctx, l, tone, customization)
		return regeneratedMsg{id: l.MessageID(), text: text, err: err}
	}
}

func (m *AppModel) dictateCmd() tea.Cmd {
	d := m.dictation
	return func() tea.Msg {
		text, err := d.Capture(m.ctx)
		return dictatedMsg{text: text, err: err}
	}
}

func clearStatusAfter(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg {
		return statusMsg("")
	})
}

// View renders the appropriate view based on current state.
func (m *AppModel) View() string {
	// Error state
	if m.Err != nil {
		return "Error: " + m.Err.Error() + "\n"
	}

	// Loading
	if m.view == viewLoading {
		if m.status != "" {
			return m.status + "\n"
		}
		return "Loading...\n"
	}

	var b strings.Builder

	switch m.view {
	case viewInbox:
		b.WriteString(m.inbox.View())
		b.WriteString("\n")
		b.WriteString(inboxFooter(m.sess.AutoSending()))
	case viewReview:
		b.WriteString(m.reviewView())
	case viewConfirm:
		b.WriteString(confirmView(m.review.ledger.Cursor()+1, m.review.ledger.Len()))
	}

	if len(m.toasts) > 0 {
		b.WriteString("\n")
		b.WriteString(toastsView(m.toasts))
	}
	if m.status != "" {
		b.WriteString("\n")
		b.WriteString(m.status)
	}

	return b.String()
}

func (m *AppModel) reviewView() string {
	r := m.review
	var b strings.Builder
	b.WriteString(m.body.View())
	b.WriteString("\n")
	b.WriteString(versionLine(r.ledger.Cursor()+1, r.ledger.Len(), m.tone(), r.busy))
	b.WriteString("\n")
	b.WriteString(m.editor.View())
	b.WriteString("\n")
	b.WriteString(m.custom.View())
	b.WriteString("\n")
	b.WriteString(reviewFooter(m.dictation != nil && m.dictation.Enabled()))
	return b.String()
}

// trimDate renders a timestamp as a short date string.
func trimDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format("Jan 2, 2006 15:04")
}
