package mockapi

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/nhle/mail-client/internal/model"
)

type accountRecord struct {
	model.Account
	imapPassword string
	smtpPassword string
	pop3Password string
}

// baseFolders is what the mock IMAP server reports for every account.
var baseFolders = []string{"INBOX", "Sent", "Drafts", "ARCHIVE", "Spam", "Trash"}

var avatarExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp"}

func pathID(c echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, validationError{{
			Loc: []string{"path", name}, Msg: "value is not a valid integer", Type: "type_error.integer",
		}}
	}
	return id, nil
}

// ownedAccount returns the caller's account. Callers hold mu.
func (s *Server) ownedAccount(c echo.Context, id int64) (*accountRecord, error) {
	acc, ok := s.accounts[id]
	if !ok || acc.UserID != currentUser(c).ID {
		return nil, echo.NewHTTPError(http.StatusNotFound, "Email account not found")
	}
	return acc, nil
}

func (s *Server) userAccounts(userID int64) []model.Account {
	var out []model.Account
	for _, acc := range s.accounts {
		if acc.UserID == userID {
			out = append(out, acc.Account)
		}
	}
	slices.SortFunc(out, func(a, b model.Account) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return out
}

// listAccounts handles GET /accounts/
func (s *Server) listAccounts(c echo.Context) error {
	s.mu.Lock()
	accounts := s.userAccounts(currentUser(c).ID)
	s.mu.Unlock()

	if accounts == nil {
		accounts = []model.Account{}
	}
	return c.JSON(http.StatusOK, accounts)
}

// getAccount handles GET /accounts/:id
func (s *Server) getAccount(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	acc, err := s.ownedAccount(c, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, acc.Account)
}

// createAccount handles POST /accounts/. The user's first account becomes
// the default.
func (s *Server) createAccount(c echo.Context) error {
	var req model.AccountCreate
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	var verr validationError
	for field, value := range map[string]string{
		"name":          req.Name,
		"email_address": req.EmailAddress,
		"imap_host":     req.IMAPHost,
		"imap_username": req.IMAPUsername,
		"imap_password": req.IMAPPassword,
		"smtp_host":     req.SMTPHost,
		"smtp_username": req.SMTPUsername,
		"smtp_password": req.SMTPPassword,
	} {
		if strings.TrimSpace(value) == "" {
			verr = append(verr, missing("body", field))
		}
	}
	if len(verr) > 0 {
		slices.SortFunc(verr, func(a, b fieldError) int { return strings.Compare(a.Loc[1], b.Loc[1]) })
		return verr
	}

	user := currentUser(c)

	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.userAccounts(user.ID)
	for _, acc := range existing {
		if strings.EqualFold(acc.EmailAddress, req.EmailAddress) {
			return echo.NewHTTPError(http.StatusBadRequest, "Email account already exists")
		}
	}

	s.nextAccountID++
	acc := &accountRecord{
		Account: model.Account{
			ID:           s.nextAccountID,
			UserID:       user.ID,
			Name:         req.Name,
			EmailAddress: req.EmailAddress,
			DisplayName:  req.DisplayName,
			IMAPHost:     req.IMAPHost,
			IMAPPort:     portOr(req.IMAPPort, model.DefaultIMAPPort),
			IMAPSSL:      req.IMAPSSL,
			IMAPUsername: req.IMAPUsername,
			SMTPHost:     req.SMTPHost,
			SMTPPort:     portOr(req.SMTPPort, model.DefaultSMTPPort),
			SMTPSSL:      req.SMTPSSL,
			SMTPUsername: req.SMTPUsername,
			POP3Host:     req.POP3Host,
			POP3Username: req.POP3Username,
			IsActive:     true,
			IsDefault:    len(existing) == 0,
			CreatedAt:    *s.timestamp(),
		},
		imapPassword: req.IMAPPassword,
		smtpPassword: req.SMTPPassword,
		pop3Password: req.POP3Password,
	}
	if req.POP3Host != "" {
		acc.POP3Port = portOr(req.POP3Port, model.DefaultPOP3Port)
		acc.POP3SSL = req.POP3SSL == nil || *req.POP3SSL
	}
	s.accounts[acc.ID] = acc

	return c.JSON(http.StatusOK, acc.Account)
}

func portOr(port, fallback int) int {
	if port > 0 {
		return port
	}
	return fallback
}

// updateAccount handles PUT /accounts/:id. Setting is_default unsets it on
// the user's other accounts.
func (s *Server) updateAccount(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req model.AccountUpdate
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	acc, err := s.ownedAccount(c, id)
	if err != nil {
		return err
	}

	if req.Name != nil {
		acc.Name = *req.Name
	}
	if req.DisplayName != nil {
		acc.DisplayName = *req.DisplayName
	}
	if req.AvatarURL != nil {
		acc.AvatarURL = *req.AvatarURL
	}
	if req.IMAPPassword != nil {
		acc.imapPassword = *req.IMAPPassword
	}
	if req.SMTPPassword != nil {
		acc.smtpPassword = *req.SMTPPassword
	}
	if req.POP3Password != nil {
		acc.pop3Password = *req.POP3Password
	}
	if req.IsActive != nil {
		acc.IsActive = *req.IsActive
	}
	if req.IsDefault != nil {
		if *req.IsDefault {
			for _, other := range s.accounts {
				if other.UserID == acc.UserID {
					other.IsDefault = false
				}
			}
		}
		acc.IsDefault = *req.IsDefault
	}
	acc.UpdatedAt = s.timestamp()

	return c.JSON(http.StatusOK, acc.Account)
}

// deleteAccount handles DELETE /accounts/:id and drops the account's mail.
func (s *Server) deleteAccount(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.ownedAccount(c, id); err != nil {
		return err
	}
	delete(s.accounts, id)
	for emailID, e := range s.emails {
		if e.AccountID == id {
			delete(s.emails, emailID)
		}
	}
	for key := range s.synced {
		if key.accountID == id {
			delete(s.synced, key)
		}
	}
	return c.JSON(http.StatusOK, model.StatusMessage{Message: "Email account deleted successfully"})
}

// testAccount handles POST /accounts/:id/test. There are no real servers
// behind the mock: a connection fails when its host contains "invalid" or
// its password is empty.
func (s *Server) testAccount(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	s.mu.Lock()
	acc, err := s.ownedAccount(c, id)
	var snapshot accountRecord
	if err == nil {
		snapshot = *acc
	}
	s.mu.Unlock()
	if err != nil {
		return err
	}

	var (
		result model.ConnectionTest
		errs   []string
	)
	result.IMAPSuccess = reachable(snapshot.IMAPHost, snapshot.imapPassword)
	if !result.IMAPSuccess {
		errs = append(errs, fmt.Sprintf("IMAP: cannot connect to %s:%d", snapshot.IMAPHost, snapshot.IMAPPort))
	}
	result.SMTPSuccess = reachable(snapshot.SMTPHost, snapshot.smtpPassword)
	if !result.SMTPSuccess {
		errs = append(errs, fmt.Sprintf("SMTP: cannot connect to %s:%d", snapshot.SMTPHost, snapshot.SMTPPort))
	}
	if snapshot.POP3Host != "" {
		ok := reachable(snapshot.POP3Host, snapshot.pop3Password)
		result.POP3Success = &ok
		if !ok {
			errs = append(errs, fmt.Sprintf("POP3: cannot connect to %s:%d", snapshot.POP3Host, snapshot.POP3Port))
		}
	}
	result.ErrorMessage = strings.Join(errs, "; ")

	return c.JSON(http.StatusOK, result)
}

func reachable(host, password string) bool {
	return host != "" && password != "" && !strings.Contains(strings.ToLower(host), "invalid")
}

// uploadAvatar handles POST /accounts/:id/avatar. The file is validated
// and discarded; only its generated URL is kept.
func (s *Server) uploadAvatar(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	file, err := c.FormFile("file")
	if err != nil {
		return validationError{missing("body", "file")}
	}
	if !strings.HasPrefix(file.Header.Get(echo.HeaderContentType), "image/") {
		return echo.NewHTTPError(http.StatusBadRequest, "File must be an image")
	}
	if file.Size > maxAvatarSize {
		return echo.NewHTTPError(http.StatusBadRequest, "File size must be less than 5MB")
	}
	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !slices.Contains(avatarExtensions, ext) {
		return echo.NewHTTPError(http.StatusBadRequest,
			"Invalid file type. Allowed types: "+strings.Join(avatarExtensions, ", "))
	}

	suffix := make([]byte, 8)
	if _, err := rand.Read(suffix); err != nil {
		return fmt.Errorf("generating avatar name: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	acc, err := s.ownedAccount(c, id)
	if err != nil {
		return err
	}
	acc.AvatarURL = fmt.Sprintf("/uploads/avatar_%d_%s%s", id, hex.EncodeToString(suffix), ext)
	acc.UpdatedAt = s.timestamp()

	return c.JSON(http.StatusOK, model.AvatarUpload{
		AvatarURL: acc.AvatarURL,
		Message:   "Avatar uploaded successfully",
	})
}

// listFolders handles GET /accounts/:id/folders. Folders that hold mail
// but are not in the base list are reported too.
func (s *Server) listFolders(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.ownedAccount(c, id); err != nil {
		return err
	}

	folders := slices.Clone(baseFolders)
	var extra []string
	for _, e := range s.emails {
		if e.AccountID == id && !slices.Contains(folders, e.Folder) && !slices.Contains(extra, e.Folder) {
			extra = append(extra, e.Folder)
		}
	}
	slices.Sort(extra)
	folders = append(folders, extra...)
	return c.JSON(http.StatusOK, model.FolderList{Folders: folders})
}
