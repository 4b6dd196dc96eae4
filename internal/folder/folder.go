// Package folder classifies the folder names a mail account reports so the
// dashboard can order and label them.
package folder

import (
	"sort"
	"strings"

	"github.com/emersion/go-imap/v2"

	"github.com/nhle/mail-client/internal/model"
)

// Folder is a named mailbox with its special-use role, if any.
type Folder struct {
	Name string

	// Role is the RFC 6154 special-use attribute the name maps to, or ""
	// for the inbox and user folders.
	Role imap.MailboxAttr
}

// aliases maps lower-cased common folder names to their special use.
var aliases = map[string]imap.MailboxAttr{
	"sent":             imap.MailboxAttrSent,
	"sent items":       imap.MailboxAttrSent,
	"sent mail":        imap.MailboxAttrSent,
	"sent messages":    imap.MailboxAttrSent,
	"drafts":           imap.MailboxAttrDrafts,
	"draft":            imap.MailboxAttrDrafts,
	"archive":          imap.MailboxAttrArchive,
	"archives":         imap.MailboxAttrArchive,
	"all mail":         imap.MailboxAttrAll,
	"starred":          imap.MailboxAttrFlagged,
	"flagged":          imap.MailboxAttrFlagged,
	"junk":             imap.MailboxAttrJunk,
	"spam":             imap.MailboxAttrJunk,
	"bulk mail":        imap.MailboxAttrJunk,
	"trash":            imap.MailboxAttrTrash,
	"deleted items":    imap.MailboxAttrTrash,
	"deleted":          imap.MailboxAttrTrash,
	"bin":              imap.MailboxAttrTrash,
	"deleted messages": imap.MailboxAttrTrash,
}

// order ranks roles for display; the inbox always comes first.
var order = map[imap.MailboxAttr]int{
	imap.MailboxAttrFlagged: 1,
	imap.MailboxAttrDrafts:  2,
	imap.MailboxAttrSent:    3,
	imap.MailboxAttrArchive: 4,
	imap.MailboxAttrAll:     5,
	imap.MailboxAttrJunk:    6,
	imap.MailboxAttrTrash:   7,
}

// Classify returns the folder for name. Hierarchical names such as
// "[Gmail]/Sent Mail" or "INBOX.Trash" are matched on their last segment.
func Classify(name string) Folder {
	f := Folder{Name: name}
	if IsInbox(name) {
		return f
	}
	leaf := name
	if i := strings.LastIndexAny(leaf, "/."); i >= 0 && i < len(leaf)-1 {
		leaf = leaf[i+1:]
	}
	f.Role = aliases[strings.ToLower(strings.TrimSpace(leaf))]
	return f
}

// IsInbox reports whether name is the inbox. The IMAP inbox name is
// case-insensitive.
func IsInbox(name string) bool {
	return strings.EqualFold(name, model.DefaultFolder)
}

// Label returns a display name for the folder.
func (f Folder) Label() string {
	if IsInbox(f.Name) {
		return "Inbox"
	}
	switch f.Role {
	case imap.MailboxAttrSent:
		return "Sent"
	case imap.MailboxAttrDrafts:
		return "Drafts"
	case imap.MailboxAttrArchive:
		return "Archive"
	case imap.MailboxAttrAll:
		return "All Mail"
	case imap.MailboxAttrFlagged:
		return "Starred"
	case imap.MailboxAttrJunk:
		return "Spam"
	case imap.MailboxAttrTrash:
		return "Trash"
	}
	return f.Name
}

func (f Folder) rank() int {
	if IsInbox(f.Name) {
		return 0
	}
	if r, ok := order[f.Role]; ok {
		return r
	}
	return len(order) + 1
}

// List classifies names, adds the inbox and the archive folder when the
// server did not report them, and sorts the result: inbox, special-use
// folders, then user folders alphabetically.
func List(names []string) []Folder {
	seen := make(map[string]bool, len(names))
	folders := make([]Folder, 0, len(names)+2)
	for _, name := range names {
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		folders = append(folders, Classify(name))
	}

	hasInbox, hasArchive := false, false
	for _, f := range folders {
		hasInbox = hasInbox || IsInbox(f.Name)
		hasArchive = hasArchive || f.Role == imap.MailboxAttrArchive
	}
	if !hasInbox {
		folders = append(folders, Classify(model.DefaultFolder))
	}
	if !hasArchive {
		folders = append(folders, Classify(model.ArchiveFolder))
	}

	sort.SliceStable(folders, func(i, j int) bool {
		ri, rj := folders[i].rank(), folders[j].rank()
		if ri != rj {
			return ri < rj
		}
		return strings.ToLower(folders[i].Name) < strings.ToLower(folders[j].Name)
	})
	return folders
}
