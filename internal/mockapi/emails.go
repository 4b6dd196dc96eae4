package mockapi

import (
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/nhle/mail-client/internal/model"
)

const searchLimit = 100

type syncKey struct {
	accountID int64
	folder    string
}

// ownedEmail returns the caller's email. Callers hold mu.
func (s *Server) ownedEmail(c echo.Context, id int64) (*model.Email, error) {
	e, ok := s.emails[id]
	if ok {
		if acc, found := s.accounts[e.AccountID]; found && acc.UserID == currentUser(c).ID {
			return e, nil
		}
	}
	return nil, echo.NewHTTPError(http.StatusNotFound, "Email not found")
}

// sortByReceived orders newest first.
func sortByReceived(emails []model.Email) {
	slices.SortStableFunc(emails, func(a, b model.Email) int {
		ta, tb := a.Received().Time, b.Received().Time
		switch {
		case ta.After(tb):
			return -1
		case ta.Before(tb):
			return 1
		}
		return int(b.ID - a.ID)
	})
}

func queryInt(c echo.Context, name string, fallback, lo, hi int) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, validationError{{
			Loc: []string{"query", name}, Msg: "value is not a valid integer", Type: "type_error.integer",
		}}
	}
	if n < lo || (hi > 0 && n > hi) {
		msg := fmt.Sprintf("ensure this value is greater than or equal to %d", lo)
		if n > hi {
			msg = fmt.Sprintf("ensure this value is less than or equal to %d", hi)
		}
		return 0, validationError{{Loc: []string{"query", name}, Msg: msg, Type: "value_error.number"}}
	}
	return n, nil
}

// listEmails handles GET /emails/. Deleted emails are excluded.
func (s *Server) listEmails(c echo.Context) error {
	limit, err := queryInt(c, "limit", 50, 1, maxListLimit)
	if err != nil {
		return err
	}
	offset, err := queryInt(c, "offset", 0, 0, 0)
	if err != nil {
		return err
	}
	folder := c.QueryParam("folder")
	if folder == "" {
		folder = model.DefaultFolder
	}
	var accountID int64
	if raw := c.QueryParam("account_id"); raw != "" {
		accountID, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return validationError{{
				Loc: []string{"query", "account_id"}, Msg: "value is not a valid integer", Type: "type_error.integer",
			}}
		}
	}

	userID := currentUser(c).ID

	s.mu.Lock()
	if accountID != 0 {
		if _, err := s.ownedAccount(c, accountID); err != nil {
			s.mu.Unlock()
			return err
		}
	}
	var out []model.Email
	for _, e := range s.emails {
		acc := s.accounts[e.AccountID]
		if acc == nil || acc.UserID != userID || e.IsDeleted || e.Folder != folder {
			continue
		}
		if accountID != 0 && e.AccountID != accountID {
			continue
		}
		out = append(out, *e)
	}
	s.mu.Unlock()

	sortByReceived(out)
	if offset >= len(out) {
		return c.JSON(http.StatusOK, []model.Email{})
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return c.JSON(http.StatusOK, out)
}

// getEmail handles GET /emails/:id
func (s *Server) getEmail(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.ownedEmail(c, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, *e)
}

// updateEmail handles PUT /emails/:id
func (s *Server) updateEmail(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req model.EmailUpdate
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.ownedEmail(c, id)
	if err != nil {
		return err
	}
	if req.IsRead != nil {
		e.IsRead = *req.IsRead
	}
	if req.IsStarred != nil {
		e.IsStarred = *req.IsStarred
	}
	if req.IsDeleted != nil {
		e.IsDeleted = *req.IsDeleted
	}
	if req.Folder != nil {
		e.Folder = *req.Folder
	}
	if req.Labels != nil {
		e.Labels = slices.Clone(req.Labels)
	}
	e.UpdatedAt = s.timestamp()

	return c.JSON(http.StatusOK, *e)
}

// deleteEmail handles DELETE /emails/:id. The record is kept with
// is_deleted set.
func (s *Server) deleteEmail(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.ownedEmail(c, id)
	if err != nil {
		return err
	}
	e.IsDeleted = true
	e.UpdatedAt = s.timestamp()

	return c.JSON(http.StatusOK, model.StatusMessage{Message: "Email deleted successfully"})
}

// composeEmail handles POST /emails/compose. The message is "sent" by
// storing a copy in the account's Sent folder.
func (s *Server) composeEmail(c echo.Context) error {
	var req model.EmailCompose
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	var verr validationError
	if req.AccountID == 0 {
		verr = append(verr, missing("body", "account_id"))
	}
	if len(req.To) == 0 {
		verr = append(verr, missing("body", "to_addresses"))
	}
	if len(verr) > 0 {
		return verr
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	acc, err := s.ownedAccount(c, req.AccountID)
	if err != nil {
		return err
	}
	if strings.Contains(strings.ToLower(acc.SMTPHost), "invalid") {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to send email")
	}

	now := s.timestamp()
	s.insertEmail(&model.Email{
		AccountID:    acc.ID,
		Subject:      req.Subject,
		SenderName:   acc.DisplayName,
		SenderEmail:  acc.EmailAddress,
		To:           slices.Clone(req.To),
		Cc:           slices.Clone(req.Cc),
		Bcc:          slices.Clone(req.Bcc),
		BodyText:     req.BodyText,
		BodyHTML:     req.BodyHTML,
		DateSent:     now,
		DateReceived: now,
		IsRead:       true,
		IsSent:       true,
		Folder:       "Sent",
	})

	return c.JSON(http.StatusOK, model.StatusMessage{Message: "Email sent successfully"})
}

// insertEmail assigns ids and stores e. Callers hold mu.
func (s *Server) insertEmail(e *model.Email) {
	s.nextEmailID++
	e.ID = s.nextEmailID
	if e.MessageID == "" {
		e.MessageID = "<" + uuid.NewString() + "@mockapi.local>"
	}
	e.UID = strconv.FormatInt(e.ID, 10)
	e.Size = int64(len(e.BodyText) + len(e.BodyHTML))
	e.CreatedAt = *s.timestamp()
	s.emails[e.ID] = e
}

// syncEmails handles POST /emails/sync/:account_id. The first sync of an
// account folder fabricates a handful of messages; later syncs find none.
func (s *Server) syncEmails(c echo.Context) error {
	id, err := pathID(c, "account_id")
	if err != nil {
		return err
	}
	folder := c.QueryParam("folder")
	if folder == "" {
		folder = model.DefaultFolder
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	acc, err := s.ownedAccount(c, id)
	if err != nil {
		return err
	}
	if !reachable(acc.IMAPHost, acc.imapPassword) {
		return echo.NewHTTPError(http.StatusInternalServerError,
			fmt.Sprintf("Sync failed: cannot connect to %s", acc.IMAPHost))
	}

	count := 0
	key := syncKey{accountID: id, folder: folder}
	if !s.synced[key] {
		s.synced[key] = true
		for _, e := range s.demoEmails(acc, folder) {
			s.insertEmail(e)
			count++
		}
	}
	acc.LastSync = s.timestamp()

	return c.JSON(http.StatusOK, model.StatusMessage{Message: fmt.Sprintf("Successfully synced %d emails", count)})
}

// demoEmails returns the messages a first sync of folder delivers.
func (s *Server) demoEmails(acc *accountRecord, folder string) []*model.Email {
	if folder != model.DefaultFolder {
		return nil
	}

	base := s.now().UTC()
	at := func(ago time.Duration) *model.Time {
		t := model.Time{Time: base.Add(-ago)}
		return &t
	}
	to := []model.Address{{Email: acc.EmailAddress, Name: acc.DisplayName}}

	return []*model.Email{
		{
			AccountID:    acc.ID,
			Subject:      "Welcome to your new mailbox",
			SenderName:   "Mail Team",
			SenderEmail:  "team@mockapi.local",
			To:           to,
			BodyText:     "Hi,\n\nYour account " + acc.EmailAddress + " is connected.\n\nThe Mail Team",
			DateSent:     at(5 * time.Minute),
			DateReceived: at(5 * time.Minute),
			Folder:       folder,
		},
		{
			AccountID:    acc.ID,
			Subject:      "Weekly report",
			SenderName:   "Reports",
			SenderEmail:  "reports@example.com",
			To:           to,
			BodyHTML:     "<h1>Weekly report</h1><p>All systems <b>nominal</b>.</p><ul><li>Uptime 99.9%</li><li>Tickets closed: 42</li></ul>",
			DateSent:     at(3 * time.Hour),
			DateReceived: at(3 * time.Hour),
			IsStarred:    true,
			Folder:       folder,
		},
		{
			AccountID:    acc.ID,
			Subject:      "Lunch on Friday?",
			SenderName:   "Alex Doe",
			SenderEmail:  "alex@example.com",
			To:           to,
			BodyText:     "Are you free for lunch on Friday around noon?",
			BodyHTML:     "<p>Are you free for lunch on <i>Friday</i> around noon?</p>",
			DateSent:     at(26 * time.Hour),
			DateReceived: at(26 * time.Hour),
			IsRead:       true,
			Folder:       folder,
		},
		{
			AccountID:    acc.ID,
			SenderEmail:  "noreply@example.com",
			To:           to,
			DateSent:     at(72 * time.Hour),
			DateReceived: at(72 * time.Hour),
			Folder:       folder,
		},
	}
}

// searchEmails handles POST /emails/search. The query matches subject,
// text body, or sender address, case-insensitively.
func (s *Server) searchEmails(c echo.Context) error {
	var req model.EmailSearch
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Query) == "" {
		return validationError{missing("body", "query")}
	}
	q := strings.ToLower(req.Query)

	userID := currentUser(c).ID

	s.mu.Lock()
	var out []model.Email
	for _, e := range s.emails {
		acc := s.accounts[e.AccountID]
		if acc == nil || acc.UserID != userID || e.IsDeleted {
			continue
		}
		if !matchesSearch(e, q, req) {
			continue
		}
		out = append(out, *e)
	}
	s.mu.Unlock()

	sortByReceived(out)
	if len(out) > searchLimit {
		out = out[:searchLimit]
	}
	if out == nil {
		out = []model.Email{}
	}
	return c.JSON(http.StatusOK, out)
}

func matchesSearch(e *model.Email, q string, req model.EmailSearch) bool {
	if !strings.Contains(strings.ToLower(e.Subject), q) &&
		!strings.Contains(strings.ToLower(e.BodyText), q) &&
		!strings.Contains(strings.ToLower(e.SenderEmail), q) {
		return false
	}
	if req.Folder != "" && e.Folder != req.Folder {
		return false
	}
	if req.Sender != "" && !strings.Contains(strings.ToLower(e.SenderEmail), strings.ToLower(req.Sender)) {
		return false
	}
	if req.Subject != "" && !strings.Contains(strings.ToLower(e.Subject), strings.ToLower(req.Subject)) {
		return false
	}
	if req.IsRead != nil && e.IsRead != *req.IsRead {
		return false
	}
	if req.IsStarred != nil && e.IsStarred != *req.IsStarred {
		return false
	}
	if req.HasAttachments != nil && (len(e.Attachments) > 0) != *req.HasAttachments {
		return false
	}
	received := e.Received().Time
	if req.DateFrom != nil && !req.DateFrom.IsZero() && received.Before(req.DateFrom.Time) {
		return false
	}
	if req.DateTo != nil && !req.DateTo.IsZero() && received.After(req.DateTo.Time) {
		return false
	}
	return true
}
