// Package ui is the full-screen terminal front end of a chat session. It
// implements view.Listener and turns key presses into controller calls.
package ui

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"mm/internal/client"
	"mm/internal/markup"
	"mm/internal/view"
)

const helpText = `Enter sends the message. Shift+Enter or Ctrl+Enter starts a new line.
Tab completes a @mention. Ctrl+N and Ctrl+P switch rooms. Ctrl+C leaves.

:join ROOM         switch to ROOM
:notify on|off     toggle mention notifications
:mute USER  :unmute USER  :ban USER  :unban USER
:redact MSGID      remove a message
:invite NAME       create a guest invite link
:proxy ID [ID...]  register as proxy for members
:help              show this help
:quit              leave`

const hint = "Enter to send, Shift+Enter for a new line, :help for commands"

type line struct {
	ref     *view.Line
	text    string
	mention bool
}

func newLine(l *view.Line) line {
	return line{ref: l, text: formatLine(l), mention: mentioned(l)}
}

// model is what the listener leaves for the event loop to draw. Lines are
// formatted when they arrive because view nodes belong to the dispatch
// goroutine.
type model struct {
	topic  string
	lines  []line
	picker []view.PickerEntry
	panel  view.Panel
	status string

	input    string
	setInput bool
	modal    string
	setModal bool
}

type ChatScreen struct {
	App         *tview.Application
	Pages       *tview.Pages
	RoomList    *tview.List
	ChatSection *tview.TextView
	PanelView   *tview.TextView
	statusBar   *tview.TextView
	msgInput    *tview.TextArea

	current atomic.Pointer[client.Controller]

	mu    sync.Mutex
	model model

	dirty   chan struct{}
	started chan struct{}
	stopped chan struct{}
	once    sync.Once
}

// NewChatScreen lays out the chat screen. A nil screen makes tview open the
// controlling terminal when Run is called.
func NewChatScreen(screen tcell.Screen) *ChatScreen {
	s := &ChatScreen{
		App:     tview.NewApplication().EnableMouse(true),
		model:   model{status: hint},
		dirty:   make(chan struct{}, 1),
		started: make(chan struct{}),
		stopped: make(chan struct{}),
	}

	s.RoomList = tview.NewList().
		ShowSecondaryText(false).
		SetHighlightFullLine(true)
	s.RoomList.SetBorder(true).
		SetTitle("[ Rooms ]")

	s.ChatSection = tview.NewTextView().
		SetDynamicColors(true).
		SetWrap(true).
		SetWordWrap(true)
	s.ChatSection.SetBorder(true).
		SetTitle("[ Connecting ]")

	s.PanelView = tview.NewTextView().
		SetWrap(true).
		SetWordWrap(true)
	s.PanelView.SetBorder(true).
		SetTitle("[ Attendees ]")

	s.msgInput = tview.NewTextArea().
		SetPlaceholder("Type your message here...")
	s.msgInput.SetWordWrap(true).SetWrap(true)
	s.msgInput.SetBorder(true)
	s.msgInput.SetInputCapture(s.keyPressed)

	s.statusBar = tview.NewTextView().SetText(hint)

	chatView := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(s.ChatSection, 0, 1, false).
		AddItem(s.msgInput, 5, 0, true).
		AddItem(s.statusBar, 1, 0, false)

	layout := tview.NewFlex().
		AddItem(s.RoomList, 0, 1, false).
		AddItem(chatView, 0, 3, true).
		AddItem(s.PanelView, 0, 2, false)

	s.Pages = tview.NewPages().
		AddPage("chat", layout, true, true)

	s.App.SetRoot(s.Pages, true).
		SetFocus(s.msgInput).
		SetAfterDrawFunc(func(tcell.Screen) {
			s.once.Do(func() { close(s.started) })
		})
	if screen != nil {
		s.App.SetScreen(screen)
	}
	return s
}

// Attach routes input to c and clears what the previous session showed.
// Pass it as client.Runner.OnSession.
func (s *ChatScreen) Attach(c *client.Controller) {
	s.current.Store(c)
	s.update(func(m *model) {
		*m = model{status: m.status}
	})
}

// Run shows the screen until ctx is done or the user leaves.
func (s *ChatScreen) Run(ctx context.Context) error {
	defer close(s.stopped)

	go s.refresh()
	go func() {
		select {
		case <-ctx.Done():
		case <-s.stopped:
			return
		}
		select {
		case <-s.started:
			s.App.Stop()
		case <-s.stopped:
		}
	}()

	return s.App.Run()
}

func (s *ChatScreen) refresh() {
	for {
		select {
		case <-s.dirty:
		case <-s.stopped:
			return
		}
		select {
		case <-s.stopped:
			return
		default:
			s.App.QueueUpdateDraw(s.apply)
		}
	}
}

func (s *ChatScreen) update(f func(m *model)) {
	s.mu.Lock()
	f(&s.model)
	s.mu.Unlock()

	select {
	case s.dirty <- struct{}{}:
	default:
	}
}

// apply copies the model onto the widgets. It runs on the event loop.
func (s *ChatScreen) apply() {
	s.mu.Lock()
	title := s.model.topic
	var chat strings.Builder
	for _, l := range s.model.lines {
		if l.mention {
			chat.WriteString("[yellow::b]" + tview.Escape(l.text) + "[-::-]\n")
		} else {
			chat.WriteString(tview.Escape(l.text) + "\n")
		}
	}
	picker := s.model.picker
	panel := panelText(s.model.panel)
	status := s.model.status
	input, setInput := s.model.input, s.model.setInput
	modal, setModal := s.model.modal, s.model.setModal
	s.model.setInput, s.model.setModal = false, false
	s.mu.Unlock()

	if title == "" {
		title = "Connecting"
	}
	s.ChatSection.SetTitle(fmt.Sprintf("[ %s ]", tview.Escape(title)))
	s.ChatSection.SetText(chat.String()).ScrollToEnd()

	s.RoomList.Clear()
	active := 0
	for i, e := range picker {
		id := e.ID
		s.RoomList.AddItem(tview.Escape(pickerLabel(e)), "", 0, func() { s.join(id) })
		if e.Active {
			active = i
		}
	}
	s.RoomList.SetCurrentItem(active)

	s.PanelView.SetText(panel)
	s.statusBar.SetText(status)

	if setInput {
		s.msgInput.SetText(input, true)
	}
	if setModal {
		s.showModal(modal)
	}
}

func (s *ChatScreen) showModal(text string) {
	modal := tview.NewModal().
		SetText(tview.Escape(text)).
		AddButtons([]string{"OK"}).
		SetDoneFunc(func(int, string) {
			s.Pages.RemovePage("modal")
			s.App.SetFocus(s.msgInput)
		})
	s.Pages.AddPage("modal", modal, true, true)
	s.App.SetFocus(modal)
}

func (s *ChatScreen) setStatus(text string) {
	s.update(func(m *model) { m.status = text })
}

func (s *ChatScreen) keyPressed(event *tcell.EventKey) *tcell.EventKey {
	switch event.Key() {
	case tcell.KeyEnter, tcell.KeyCtrlJ:
		return s.submit(event)
	case tcell.KeyTab:
		s.complete()
		return nil
	case tcell.KeyCtrlN:
		s.cycleRoom(1)
		return nil
	case tcell.KeyCtrlP:
		s.cycleRoom(-1)
		return nil
	}
	return event
}

// withController runs f on the dispatch goroutine of the live session and
// waits for it.
func (s *ChatScreen) withController(f func(c *client.Controller)) bool {
	c := s.current.Load()
	if c == nil || !c.Call(func() { f(c) }) {
		s.setStatus("! not connected yet")
		return false
	}
	return true
}

// submit handles Enter in the composer. Terminals report Ctrl+Enter as a
// line feed.
func (s *ChatScreen) submit(event *tcell.EventKey) *tcell.EventKey {
	text := s.msgInput.GetText()
	ev := client.KeyEvent{
		Key:   client.KeyEnter,
		Shift: event.Modifiers()&tcell.ModShift != 0,
		Ctrl:  event.Modifiers()&tcell.ModCtrl != 0 || event.Key() == tcell.KeyCtrlJ,
	}

	if !ev.Shift && !ev.Ctrl && strings.HasPrefix(text, ":") {
		s.msgInput.SetText("", false)
		s.command(text)
		s.apply()
		return nil
	}

	consumed := false
	ok := s.withController(func(c *client.Controller) {
		c.SetInput(text)
		consumed = c.CheckSend(ev, false)
	})
	s.apply()
	if !ok || consumed {
		return nil
	}
	return event
}

func (s *ChatScreen) complete() {
	text := s.msgInput.GetText()
	start := strings.LastIndexAny(text, " \n") + 1
	word := text[start:]
	if !strings.HasPrefix(word, "@") {
		return
	}

	var candidates []string
	if !s.withController(func(c *client.Controller) {
		candidates = c.State().MentionCandidates(word)
	}) {
		s.apply()
		return
	}

	switch len(candidates) {
	case 0:
	case 1:
		s.msgInput.SetText(text[:start]+candidates[0]+" ", true)
	default:
		s.setStatus(strings.Join(candidates, " "))
		s.apply()
	}
}

func (s *ChatScreen) cycleRoom(step int) {
	s.mu.Lock()
	picker := s.model.picker
	s.mu.Unlock()
	if len(picker) == 0 {
		return
	}

	current := 0
	for i, e := range picker {
		if e.Active {
			current = i
		}
	}
	s.join(picker[(current+step+len(picker))%len(picker)].ID)
	s.apply()
}

func (s *ChatScreen) join(room string) {
	s.withController(func(c *client.Controller) {
		if !c.SelectRoom(room) {
			s.setStatus("! no such room: " + room)
		}
	})
	s.App.SetFocus(s.msgInput)
}

func (s *ChatScreen) command(text string) {
	verb, arg, _ := strings.Cut(strings.TrimPrefix(strings.TrimSpace(text), ":"), " ")
	arg = strings.TrimSpace(arg)

	switch verb {
	case "quit", "q":
		s.App.Stop()
	case "help":
		s.showModal(helpText)
	case "join":
		s.join(strings.TrimPrefix(arg, "#"))
	case "notify":
		s.withController(func(c *client.Controller) {
			c.SetNotify(arg == "on" || arg == "true")
		})
	case "mute":
		s.withController(func(c *client.Controller) { c.Block(arg) })
	case "unmute":
		s.withController(func(c *client.Controller) { c.Unblock(arg) })
	case "ban":
		s.withController(func(c *client.Controller) { c.Ban(arg) })
	case "unban":
		s.withController(func(c *client.Controller) { c.Unban(arg) })
	case "redact":
		s.withController(func(c *client.Controller) { c.Redact(arg) })
	case "invite":
		s.withController(func(c *client.Controller) { c.Invite(arg) })
	case "proxy":
		s.withController(func(c *client.Controller) {
			c.AssignProxies(strings.Join(strings.Fields(arg), "\n"))
		})
	default:
		s.setStatus(fmt.Sprintf("! unknown command :%s (try :help)", verb))
	}
}

func (s *ChatScreen) LineAdded(ch *view.Channel, l *view.Line) {
	if !ch.Visible {
		return
	}
	added := newLine(l)
	s.update(func(m *model) {
		m.lines = append(m.lines, added)
	})
}

func (s *ChatScreen) LineUpdated(l *view.Line) {
	updated := newLine(l)
	s.update(func(m *model) {
		for i := range m.lines {
			if m.lines[i].ref == l {
				m.lines[i] = updated
			}
		}
	})
}

func (s *ChatScreen) LineRemoved(l *view.Line) {
	s.update(func(m *model) {
		m.lines = slices.DeleteFunc(m.lines, func(x line) bool {
			return x.ref == l
		})
	})
}

func (s *ChatScreen) ChannelShown(ch *view.Channel) {
	topic := ch.Topic.Text()
	lines := make([]line, 0, len(ch.Lines))
	for _, l := range ch.Lines {
		lines = append(lines, newLine(l))
	}
	s.update(func(m *model) {
		m.topic = topic
		m.lines = lines
	})
}

func (s *ChatScreen) PickerChanged(entries []view.PickerEntry) {
	picker := slices.Clone(entries)
	s.update(func(m *model) { m.picker = picker })
}

func (s *ChatScreen) PanelChanged(p view.Panel) {
	s.update(func(m *model) { m.panel = p })
}

func (s *ChatScreen) InputChanged(text string) {
	s.update(func(m *model) {
		m.input, m.setInput = text, true
	})
}

func (s *ChatScreen) Alert(msg string) {
	s.setStatus("! " + msg)
}

func (s *ChatScreen) Modal(content markup.Node) {
	text := content.Text()
	s.update(func(m *model) {
		m.modal, m.setModal = text, true
	})
}
