package mail

import (
	"time"

	"github.com/nhle/mail-client/internal/api"
)

// Level is the severity of a Notice.
type Level int

const (
	LevelSuccess Level = iota
	LevelError
)

// Notice is a short-lived message for the user about a finished mutation.
type Notice struct {
	Level   Level
	Message string
	At      time.Time
}

// Notifier queues notices for the UI. Posting never blocks; when the queue
// is full the notice is dropped.
type Notifier struct {
	ch chan Notice
}

// NewNotifier returns a Notifier holding up to size undelivered notices.
func NewNotifier(size int) *Notifier {
	if size <= 0 {
		size = 16
	}
	return &Notifier{ch: make(chan Notice, size)}
}

// C returns the channel notices are delivered on.
func (n *Notifier) C() <-chan Notice {
	return n.ch
}

func (n *Notifier) post(level Level, msg string) {
	if msg == "" {
		return
	}
	select {
	case n.ch <- Notice{Level: level, Message: msg, At: time.Now()}:
	default:
	}
}

// Success posts a success notice.
func (n *Notifier) Success(msg string) { n.post(LevelSuccess, msg) }

// Error posts an error notice.
func (n *Notifier) Error(msg string) { n.post(LevelError, msg) }

// UserMessage returns the text to show for a failed operation. Auth
// failures return "" since they end the session instead. Otherwise the
// backend's detail wins over fallback.
func UserMessage(err error, fallback string) string {
	if err == nil || api.IsAuthError(err) {
		return ""
	}
	if detail := api.Detail(err); detail != "" {
		return detail
	}
	return fallback
}
