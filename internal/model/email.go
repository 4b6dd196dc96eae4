package model

import "strings"

// DefaultFolder is the folder selected before the user picks one.
const DefaultFolder = "INBOX"

// ArchiveFolder is the folder emails are moved to when archived.
const ArchiveFolder = "ARCHIVE"

// Address is a single mail recipient or sender.
type Address struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// String formats the address as "Name <email>" or just the email.
func (a Address) String() string {
	if a.Name == "" {
		return a.Email
	}
	return a.Name + " <" + a.Email + ">"
}

// Attachment holds metadata for an attachment of a stored email.
type Attachment struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type,omitempty"`
	Size        int64  `json:"size,omitempty"`
	ContentID   string `json:"content_id,omitempty"`
}

// Email is a message stored by the backend for one of the user's accounts.
type Email struct {
	ID        int64  `json:"id"`
	AccountID int64  `json:"account_id"`
	MessageID string `json:"message_id"`
	UID       string `json:"uid,omitempty"`
	ThreadID  string `json:"thread_id,omitempty"`

	Subject     string    `json:"subject,omitempty"`
	SenderName  string    `json:"sender_name,omitempty"`
	SenderEmail string    `json:"sender_email"`
	ReplyTo     string    `json:"reply_to,omitempty"`
	To          []Address `json:"to_addresses,omitempty"`
	Cc          []Address `json:"cc_addresses,omitempty"`
	Bcc         []Address `json:"bcc_addresses,omitempty"`

	BodyText    string       `json:"body_text,omitempty"`
	BodyHTML    string       `json:"body_html,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`

	DateSent     *Time `json:"date_sent,omitempty"`
	DateReceived *Time `json:"date_received,omitempty"`
	Size         int64 `json:"size,omitempty"`

	IsRead    bool     `json:"is_read"`
	IsStarred bool     `json:"is_starred"`
	IsDeleted bool     `json:"is_deleted"`
	IsDraft   bool     `json:"is_draft"`
	IsSent    bool     `json:"is_sent"`
	Folder    string   `json:"folder"`
	Labels    []string `json:"labels,omitempty"`

	CreatedAt Time  `json:"created_at"`
	UpdatedAt *Time `json:"updated_at,omitempty"`
}

// Sender returns the sender in display form.
func (e Email) Sender() string {
	return Address{Email: e.SenderEmail, Name: e.SenderName}.String()
}

// DisplaySubject returns the subject or a placeholder when it is empty.
func (e Email) DisplaySubject() string {
	if strings.TrimSpace(e.Subject) == "" {
		return "(No Subject)"
	}
	return e.Subject
}

// Received returns the best known receive time, falling back to the send
// time and then the record creation time.
func (e Email) Received() Time {
	switch {
	case e.DateReceived != nil && !e.DateReceived.IsZero():
		return *e.DateReceived
	case e.DateSent != nil && !e.DateSent.IsZero():
		return *e.DateSent
	default:
		return e.CreatedAt
	}
}

// HasBody reports whether the email has any text or HTML content.
func (e Email) HasBody() bool {
	return strings.TrimSpace(e.BodyText) != "" || strings.TrimSpace(e.BodyHTML) != ""
}

// EmailUpdate is a partial email update. Nil fields are left unchanged.
type EmailUpdate struct {
	IsRead    *bool    `json:"is_read,omitempty"`
	IsStarred *bool    `json:"is_starred,omitempty"`
	IsDeleted *bool    `json:"is_deleted,omitempty"`
	Folder    *string  `json:"folder,omitempty"`
	Labels    []string `json:"labels,omitempty"`
}

// EmailListParams filters an email list read. It is comparable so it can
// form part of a cache key.
type EmailListParams struct {
	AccountID int64
	Folder    string
	Limit     int
	Offset    int
}

// EmailCompose is the request body for sending a new email.
type EmailCompose struct {
	AccountID   int64     `json:"account_id"`
	To          []Address `json:"to_addresses"`
	Cc          []Address `json:"cc_addresses,omitempty"`
	Bcc         []Address `json:"bcc_addresses,omitempty"`
	Subject     string    `json:"subject"`
	BodyText    string    `json:"body_text,omitempty"`
	BodyHTML    string    `json:"body_html,omitempty"`
	Attachments []string  `json:"attachments,omitempty"`
}

// EmailSearch is the request body of a search. Query is required by the
// backend; the remaining filters are optional.
type EmailSearch struct {
	Query          string `json:"query"`
	Folder         string `json:"folder,omitempty"`
	Sender         string `json:"sender,omitempty"`
	Subject        string `json:"subject,omitempty"`
	DateFrom       *Time  `json:"date_from,omitempty"`
	DateTo         *Time  `json:"date_to,omitempty"`
	IsRead         *bool  `json:"is_read,omitempty"`
	IsStarred      *bool  `json:"is_starred,omitempty"`
	HasAttachments *bool  `json:"has_attachments,omitempty"`
}
