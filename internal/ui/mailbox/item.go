package mailbox

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/mail-client/internal/message"
	"github.com/nhle/mail-client/internal/model"
	"github.com/nhle/mail-client/internal/theme"
	"github.com/nhle/mail-client/internal/ui"
)

// senderWidth is the column reserved for the sender on a row.
const senderWidth = 22

// emailItem wraps a model.Email so it can be used in a bubbles/list.
type emailItem struct {
	email model.Email
}

// FilterValue returns the string used for fuzzy filtering.
func (i emailItem) FilterValue() string { return i.email.Subject }

// emailDelegate renders a two-line row: markers, sender, subject and date,
// then a body preview.
type emailDelegate struct {
	now func() time.Time
}

// Height returns the number of lines each item takes.
func (d emailDelegate) Height() int { return 2 }

// Spacing returns the number of blank lines between items.
func (d emailDelegate) Spacing() int { return 0 }

// Update handles per-item messages (unused).
func (d emailDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd {
	return nil
}

// Render draws a single email row.
func (d emailDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, ok := item.(emailItem)
	if !ok {
		return
	}
	e := it.email
	width := max(m.Width()-3, 20)

	date := ui.ShortDate(e.Received().Time, d.now())
	sender := ui.Truncate(senderName(e), senderWidth)
	markers := message.Markers(e)

	subjectWidth := max(width-lipgloss.Width(markers)-senderWidth-len(date)-3, 5)
	subject := ui.Truncate(e.DisplaySubject(), subjectWidth)

	head := fmt.Sprintf("%s %-*s %-*s %s", markers, senderWidth, sender, subjectWidth, subject, date)
	if e.IsStarred {
		head = theme.StarStyle.Render(markers) + head[len(markers):]
	}
	if !e.IsRead {
		head = theme.UnreadStyle.Render(head)
	}

	preview := message.Preview(e, width-3)
	if preview == "" {
		preview = "(no content)"
	}
	preview = theme.MutedStyle.Render("   " + preview)

	row := head + "\n" + preview
	if index == m.Index() {
		fmt.Fprint(w, theme.SelectedItemStyle.Render(row))
		return
	}
	fmt.Fprint(w, theme.ListItemStyle.Render(row))
}

func senderName(e model.Email) string {
	if e.IsSent && len(e.To) > 0 {
		return "To: " + e.To[0].String()
	}
	if e.SenderName != "" {
		return e.SenderName
	}
	return e.SenderEmail
}
