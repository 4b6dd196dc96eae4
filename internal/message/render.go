// Package message renders stored emails for the terminal and exports them
// as RFC 5322 files.
package message

import (
	"slices"
	"strings"

	"github.com/emersion/go-imap/v2"
	"github.com/k3a/html2text"

	"github.com/nhle/mail-client/internal/model"
)

// Body returns the email body as plain text. The text part wins; an
// HTML-only email is converted.
func Body(e model.Email) string {
	if strings.TrimSpace(e.BodyText) != "" {
		return cleanupWhitespace(strings.ReplaceAll(e.BodyText, "\r\n", "\n"))
	}
	return HTMLToText(e.BodyHTML)
}

// HTMLToText converts HTML content to plain text.
func HTMLToText(html string) string {
	if strings.TrimSpace(html) == "" {
		return ""
	}
	return cleanupWhitespace(html2text.HTML2Text(html))
}

// Preview returns the first n runes of the body on a single line.
func Preview(e model.Email, n int) string {
	text := strings.Join(strings.Fields(Body(e)), " ")
	runes := []rune(text)
	if n <= 0 || len(runes) <= n {
		return text
	}
	if n == 1 {
		return "…"
	}
	return string(runes[:n-1]) + "…"
}

// cleanupWhitespace removes excessive blank lines while preserving structure.
func cleanupWhitespace(text string) string {
	lines := strings.Split(text, "\n")
	var result []string
	blankCount := 0

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			blankCount++
			// Allow max 2 consecutive blank lines
			if blankCount <= 2 {
				result = append(result, "")
			}
		} else {
			blankCount = 0
			result = append(result, strings.TrimRight(line, " \t"))
		}
	}

	return strings.TrimSpace(strings.Join(result, "\n"))
}

// Flags returns the IMAP system flags matching the email's state.
func Flags(e model.Email) []imap.Flag {
	var flags []imap.Flag
	if e.IsRead {
		flags = append(flags, imap.FlagSeen)
	}
	if e.IsStarred {
		flags = append(flags, imap.FlagFlagged)
	}
	if e.IsDeleted {
		flags = append(flags, imap.FlagDeleted)
	}
	if e.IsDraft {
		flags = append(flags, imap.FlagDraft)
	}
	return flags
}

// Markers returns a two-column status prefix for list rows: unread and
// starred.
func Markers(e model.Email) string {
	flags := Flags(e)
	unread, starred := "●", " "
	if slices.Contains(flags, imap.FlagSeen) {
		unread = " "
	}
	if slices.Contains(flags, imap.FlagFlagged) {
		starred = "★"
	}
	return unread + starred
}
