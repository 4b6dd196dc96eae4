package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"path/filepath"

	"github.com/nhle/mail-client/internal/model"
)

// ListAccounts returns the user's mail accounts.
func (c *Client) ListAccounts(ctx context.Context) ([]model.Account, error) {
	var accounts []model.Account
	if err := c.do(ctx, http.MethodGet, "/accounts/", nil, nil, &accounts); err != nil {
		return nil, err
	}
	return accounts, nil
}

// GetAccount returns a single account.
func (c *Client) GetAccount(ctx context.Context, id int64) (model.Account, error) {
	var account model.Account
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/accounts/%d", id), nil, nil, &account)
	return account, err
}

// CreateAccount adds a mail account.
func (c *Client) CreateAccount(ctx context.Context, in model.AccountCreate) (model.Account, error) {
	var account model.Account
	err := c.do(ctx, http.MethodPost, "/accounts/", nil, in, &account)
	return account, err
}

// UpdateAccount applies a partial update to an account.
func (c *Client) UpdateAccount(ctx context.Context, id int64, in model.AccountUpdate) (model.Account, error) {
	var account model.Account
	err := c.do(ctx, http.MethodPut, fmt.Sprintf("/accounts/%d", id), nil, in, &account)
	return account, err
}

// DeleteAccount removes an account.
func (c *Client) DeleteAccount(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/accounts/%d", id), nil, nil, nil)
}

// TestAccount asks the backend to connect to the account's servers.
func (c *Client) TestAccount(ctx context.Context, id int64) (model.ConnectionTest, error) {
	var result model.ConnectionTest
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/accounts/%d/test", id), nil, nil, &result)
	return result, err
}

// UploadAvatar uploads an image as the account avatar. The part's content
// type is derived from filename's extension.
func (c *Client) UploadAvatar(
	ctx context.Context,
	id int64,
	filename string,
	image io.Reader,
) (model.AvatarUpload, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	contentType := mime.TypeByExtension(filepath.Ext(filename))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filepath.Base(filename)))
	header.Set("Content-Type", contentType)

	part, err := w.CreatePart(header)
	if err != nil {
		return model.AvatarUpload{}, fmt.Errorf("creating avatar part: %w", err)
	}
	if _, err := io.Copy(part, image); err != nil {
		return model.AvatarUpload{}, fmt.Errorf("reading avatar: %w", err)
	}
	if err := w.Close(); err != nil {
		return model.AvatarUpload{}, fmt.Errorf("closing multipart body: %w", err)
	}

	var result model.AvatarUpload
	err = c.send(ctx, request{
		method:      http.MethodPost,
		path:        fmt.Sprintf("/accounts/%d/avatar", id),
		body:        &buf,
		contentType: w.FormDataContentType(),
	}, &result)
	return result, err
}

// ListFolders returns the folder names the account's IMAP server reports.
func (c *Client) ListFolders(ctx context.Context, accountID int64) ([]string, error) {
	var result model.FolderList
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/accounts/%d/folders", accountID), nil, nil, &result)
	if err != nil {
		return nil, err
	}
	return result.Folders, nil
}
