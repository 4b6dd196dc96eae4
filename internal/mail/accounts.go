package mail

import (
	"context"
	"io"

	"github.com/nhle/mail-client/internal/model"
	"github.com/nhle/mail-client/internal/query"
)

// Accounts reads the account list.
func (s *Service) Accounts(ctx context.Context) query.Result[[]model.Account] {
	return query.Get(ctx, s.cache, query.Query[[]model.Account]{
		Key:       AccountsKey(),
		StaleTime: AccountsStaleTime,
		Enabled:   true,
		Fetch:     s.backend.ListAccounts,
	})
}

// Folders reads an account's folders. It is disabled without an account.
func (s *Service) Folders(ctx context.Context, accountID int64) query.Result[[]string] {
	return query.Get(ctx, s.cache, query.Query[[]string]{
		Key:       FoldersKey(accountID),
		StaleTime: FoldersStaleTime,
		Enabled:   accountID != 0,
		Fetch: func(ctx context.Context) ([]string, error) {
			return s.backend.ListFolders(ctx, accountID)
		},
	})
}

// CreateAccount adds an account.
func (s *Service) CreateAccount(ctx context.Context, in model.AccountCreate) (model.Account, error) {
	account, err := s.backend.CreateAccount(ctx, in)
	if err != nil {
		return model.Account{}, s.fail("create account", err, "Failed to create email account")
	}
	s.cache.Invalidate(EntityAccount, KindList)
	s.notices.Success("Email account created successfully!")
	return account, nil
}

// UpdateAccount applies a partial update. The response seeds the account
// entry unless a later update of the same account was issued meanwhile;
// then, or when the update fails, the entry is invalidated.
func (s *Service) UpdateAccount(ctx context.Context, id int64, in model.AccountUpdate) (model.Account, error) {
	key := AccountKey(id)
	seq := s.cache.IssueMutation(key)

	account, err := s.backend.UpdateAccount(ctx, id, in)
	if err != nil {
		s.cache.InvalidateKey(key)
		return model.Account{}, s.fail("update account", err, "Failed to update account")
	}
	s.cache.Invalidate(EntityAccount, KindList)
	if !query.SetDataIfLatest(s.cache, key, seq, account) {
		s.cache.InvalidateKey(key)
	}
	s.notices.Success("Account updated successfully!")
	return account, nil
}

// DeleteAccount removes an account.
func (s *Service) DeleteAccount(ctx context.Context, id int64) error {
	if err := s.backend.DeleteAccount(ctx, id); err != nil {
		return s.fail("delete account", err, "Failed to delete account")
	}
	s.cache.Invalidate(EntityAccount, KindList)
	s.notices.Success("Account deleted successfully")
	return nil
}

// TestAccount tests an account's server settings. A completed test that
// reports a failed connection is not an error; it posts an error notice.
func (s *Service) TestAccount(ctx context.Context, id int64) (model.ConnectionTest, error) {
	result, err := s.backend.TestAccount(ctx, id)
	if err != nil {
		return model.ConnectionTest{}, s.fail("test account", err, "Connection test failed")
	}
	if result.OK() {
		s.notices.Success("Connection test successful!")
	} else if result.ErrorMessage != "" {
		s.notices.Error(result.ErrorMessage)
	} else {
		s.notices.Error("Connection test failed")
	}
	return result, nil
}

// UploadAvatar uploads an account avatar.
func (s *Service) UploadAvatar(
	ctx context.Context,
	id int64,
	filename string,
	image io.Reader,
) (model.AvatarUpload, error) {
	result, err := s.backend.UploadAvatar(ctx, id, filename, image)
	if err != nil {
		return model.AvatarUpload{}, s.fail("upload avatar", err, "Failed to upload avatar")
	}
	s.cache.Invalidate(EntityAccount, KindList)
	s.notices.Success("Avatar uploaded successfully!")
	return result, nil
}
