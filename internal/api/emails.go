package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/nhle/mail-client/internal/model"
)

// ListEmails returns one page of emails, newest first. Zero-valued params
// are left to the backend's defaults.
func (c *Client) ListEmails(ctx context.Context, params model.EmailListParams) ([]model.Email, error) {
	q := url.Values{}
	if params.AccountID != 0 {
		q.Set("account_id", strconv.FormatInt(params.AccountID, 10))
	}
	if params.Folder != "" {
		q.Set("folder", params.Folder)
	}
	if params.Limit > 0 {
		q.Set("limit", strconv.Itoa(params.Limit))
	}
	if params.Offset > 0 {
		q.Set("offset", strconv.Itoa(params.Offset))
	}

	var emails []model.Email
	if err := c.do(ctx, http.MethodGet, "/emails/", q, nil, &emails); err != nil {
		return nil, err
	}
	return emails, nil
}

// GetEmail returns a single email with its body.
func (c *Client) GetEmail(ctx context.Context, id int64) (model.Email, error) {
	var email model.Email
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/emails/%d", id), nil, nil, &email)
	return email, err
}

// UpdateEmail applies a partial update and returns the updated email.
func (c *Client) UpdateEmail(ctx context.Context, id int64, in model.EmailUpdate) (model.Email, error) {
	var email model.Email
	err := c.do(ctx, http.MethodPut, fmt.Sprintf("/emails/%d", id), nil, in, &email)
	return email, err
}

// DeleteEmail moves an email to the backend's trash. The backend keeps the
// record with is_deleted set.
func (c *Client) DeleteEmail(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/emails/%d", id), nil, nil, nil)
}

// ComposeEmail sends a new email through the account's SMTP server.
func (c *Client) ComposeEmail(ctx context.Context, in model.EmailCompose) error {
	return c.do(ctx, http.MethodPost, "/emails/compose", nil, in, nil)
}

// SyncEmails pulls new mail for one folder from the account's IMAP server.
// An empty folder means INBOX.
func (c *Client) SyncEmails(ctx context.Context, accountID int64, folder string) (model.StatusMessage, error) {
	if folder == "" {
		folder = model.DefaultFolder
	}
	q := url.Values{"folder": {folder}}

	var result model.StatusMessage
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/emails/sync/%d", accountID), q, nil, &result)
	return result, err
}

// SearchEmails runs a server-side search. Results are not paged.
func (c *Client) SearchEmails(ctx context.Context, in model.EmailSearch) ([]model.Email, error) {
	var emails []model.Email
	if err := c.do(ctx, http.MethodPost, "/emails/search", nil, in, &emails); err != nil {
		return nil, err
	}
	return emails, nil
}
