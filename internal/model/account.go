package model

// Account is a configured mail account as returned by the backend.
// Passwords are never part of the read representation.
type Account struct {
	ID           int64  `json:"id"`
	UserID       int64  `json:"user_id,omitempty"`
	Name         string `json:"name"`
	EmailAddress string `json:"email_address"`
	DisplayName  string `json:"display_name,omitempty"`
	AvatarURL    string `json:"avatar_url,omitempty"`

	IMAPHost     string `json:"imap_host,omitempty"`
	IMAPPort     int    `json:"imap_port,omitempty"`
	IMAPSSL      bool   `json:"imap_ssl,omitempty"`
	IMAPUsername string `json:"imap_username,omitempty"`

	SMTPHost     string `json:"smtp_host,omitempty"`
	SMTPPort     int    `json:"smtp_port,omitempty"`
	SMTPSSL      bool   `json:"smtp_ssl,omitempty"`
	SMTPUsername string `json:"smtp_username,omitempty"`

	POP3Host     string `json:"pop3_host,omitempty"`
	POP3Port     int    `json:"pop3_port,omitempty"`
	POP3SSL      bool   `json:"pop3_ssl,omitempty"`
	POP3Username string `json:"pop3_username,omitempty"`

	IsActive  bool  `json:"is_active"`
	IsDefault bool  `json:"is_default"`
	LastSync  *Time `json:"last_sync,omitempty"`
	CreatedAt Time  `json:"created_at"`
	UpdatedAt *Time `json:"updated_at,omitempty"`
}

// Label returns the account name, falling back to its address.
func (a Account) Label() string {
	if a.Name != "" {
		return a.Name
	}
	return a.EmailAddress
}

// AccountCreate is the request body for adding an account. POP3 settings
// are optional.
type AccountCreate struct {
	Name         string `json:"name"`
	EmailAddress string `json:"email_address"`
	DisplayName  string `json:"display_name,omitempty"`

	IMAPHost     string `json:"imap_host"`
	IMAPPort     int    `json:"imap_port"`
	IMAPSSL      bool   `json:"imap_ssl"`
	IMAPUsername string `json:"imap_username"`
	IMAPPassword string `json:"imap_password"`

	SMTPHost     string `json:"smtp_host"`
	SMTPPort     int    `json:"smtp_port"`
	SMTPSSL      bool   `json:"smtp_ssl"`
	SMTPUsername string `json:"smtp_username"`
	SMTPPassword string `json:"smtp_password"`

	POP3Host     string `json:"pop3_host,omitempty"`
	POP3Port     int    `json:"pop3_port,omitempty"`
	POP3SSL      *bool  `json:"pop3_ssl,omitempty"`
	POP3Username string `json:"pop3_username,omitempty"`
	POP3Password string `json:"pop3_password,omitempty"`
}

// AccountUpdate is a partial account update. Nil fields are omitted from
// the request and left unchanged by the backend.
type AccountUpdate struct {
	Name         *string `json:"name,omitempty"`
	DisplayName  *string `json:"display_name,omitempty"`
	AvatarURL    *string `json:"avatar_url,omitempty"`
	IMAPPassword *string `json:"imap_password,omitempty"`
	SMTPPassword *string `json:"smtp_password,omitempty"`
	POP3Password *string `json:"pop3_password,omitempty"`
	IsActive     *bool   `json:"is_active,omitempty"`
	IsDefault    *bool   `json:"is_default,omitempty"`
}

// ConnectionTest is the result of testing an account's server settings.
type ConnectionTest struct {
	IMAPSuccess  bool   `json:"imap_success"`
	SMTPSuccess  bool   `json:"smtp_success"`
	POP3Success  *bool  `json:"pop3_success,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// OK reports whether both IMAP and SMTP connections succeeded.
func (t ConnectionTest) OK() bool {
	return t.IMAPSuccess && t.SMTPSuccess
}

// AvatarUpload is the response to an avatar upload.
type AvatarUpload struct {
	AvatarURL string `json:"avatar_url"`
	Message   string `json:"message,omitempty"`
}

// FolderList is the response of the folders endpoint.
type FolderList struct {
	Folders []string `json:"folders"`
}

// Default server settings offered when adding an account.
const (
	DefaultIMAPPort = 993
	DefaultSMTPPort = 465
	DefaultPOP3Port = 995
)
