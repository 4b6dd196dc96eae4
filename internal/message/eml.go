package message

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"

	"github.com/nhle/mail-client/internal/model"
)

// WriteEML writes e to w as a MIME message with a text/plain part and,
// when present, a text/html alternative.
func WriteEML(w io.Writer, e model.Email) error {
	var h mail.Header
	h.SetDate(dateOf(e))
	h.SetSubject(e.Subject)
	if id := strings.Trim(e.MessageID, "<> "); id != "" {
		h.SetMessageID(id)
	}
	h.SetAddressList("From", []*mail.Address{{Name: e.SenderName, Address: e.SenderEmail}})
	if len(e.To) > 0 {
		h.SetAddressList("To", toMailAddresses(e.To))
	}
	if len(e.Cc) > 0 {
		h.SetAddressList("Cc", toMailAddresses(e.Cc))
	}
	if e.ReplyTo != "" {
		h.Set("Reply-To", e.ReplyTo)
	}

	mw, err := mail.CreateWriter(w, h)
	if err != nil {
		return fmt.Errorf("creating message writer: %w", err)
	}

	iw, err := mw.CreateInline()
	if err != nil {
		return fmt.Errorf("creating inline part: %w", err)
	}

	if err := writePart(iw, "text/plain", Body(e)); err != nil {
		return err
	}
	if strings.TrimSpace(e.BodyHTML) != "" {
		if err := writePart(iw, "text/html", e.BodyHTML); err != nil {
			return err
		}
	}

	if err := iw.Close(); err != nil {
		return fmt.Errorf("closing inline part: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("closing message: %w", err)
	}
	return nil
}

func writePart(iw *mail.InlineWriter, contentType, body string) error {
	var ph mail.InlineHeader
	ph.SetContentType(contentType, map[string]string{"charset": "utf-8"})

	pw, err := iw.CreatePart(ph)
	if err != nil {
		return fmt.Errorf("creating %s part: %w", contentType, err)
	}
	if _, err := io.WriteString(pw, body); err != nil {
		pw.Close()
		return fmt.Errorf("writing %s part: %w", contentType, err)
	}
	if err := pw.Close(); err != nil {
		return fmt.Errorf("closing %s part: %w", contentType, err)
	}
	return nil
}

// FileName returns a file name for exporting e, derived from its subject.
func FileName(e model.Email) string {
	var b strings.Builder
	for _, r := range e.DisplaySubject() {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			b.WriteRune('-')
		}
		if b.Len() >= 48 {
			break
		}
	}
	name := strings.Trim(b.String(), "-")
	if name == "" {
		name = "email"
	}
	return fmt.Sprintf("%s-%d.eml", name, e.ID)
}

// ParseAddresses parses a comma-separated recipient list such as
// "Ann <ann@example.com>, bob@example.com".
func ParseAddresses(list string) ([]model.Address, error) {
	if strings.TrimSpace(list) == "" {
		return nil, nil
	}
	parsed, err := mail.ParseAddressList(list)
	if err != nil {
		return nil, fmt.Errorf("parsing addresses %q: %w", list, err)
	}
	addrs := make([]model.Address, 0, len(parsed))
	for _, a := range parsed {
		addrs = append(addrs, model.Address{Email: a.Address, Name: a.Name})
	}
	return addrs, nil
}

func toMailAddresses(in []model.Address) []*mail.Address {
	out := make([]*mail.Address, 0, len(in))
	for _, a := range in {
		out = append(out, &mail.Address{Name: a.Name, Address: a.Email})
	}
	return out
}

func dateOf(e model.Email) time.Time {
	t := e.Received().Time
	if t.IsZero() {
		return time.Now()
	}
	return t
}
