package mail

import (
	"context"

	"github.com/nhle/mail-client/internal/model"
	"github.com/nhle/mail-client/internal/query"
)

// Emails reads one email list page. It is disabled without an account.
func (s *Service) Emails(ctx context.Context, params model.EmailListParams) query.Result[[]model.Email] {
	return query.Get(ctx, s.cache, query.Query[[]model.Email]{
		Key:       EmailsKey(params),
		StaleTime: EmailsStaleTime,
		Enabled:   params.AccountID != 0,
		Fetch: func(ctx context.Context) ([]model.Email, error) {
			return s.backend.ListEmails(ctx, params)
		},
	})
}

// Email reads a single email. It is disabled for id 0.
func (s *Service) Email(ctx context.Context, id int64) query.Result[model.Email] {
	return query.Get(ctx, s.cache, query.Query[model.Email]{
		Key:       EmailKey(id),
		StaleTime: EmailStaleTime,
		Enabled:   id != 0,
		Fetch: func(ctx context.Context) (model.Email, error) {
			return s.backend.GetEmail(ctx, id)
		},
	})
}

// UpdateEmail applies a partial update. The response seeds the email
// entry unless a later update of the same email was issued meanwhile, in
// which case the entry is invalidated instead; a failed update also
// invalidates it. Email lists are invalidated on success.
func (s *Service) UpdateEmail(ctx context.Context, id int64, in model.EmailUpdate) (model.Email, error) {
	key := EmailKey(id)
	seq := s.cache.IssueMutation(key)

	email, err := s.backend.UpdateEmail(ctx, id, in)
	if err != nil {
		s.cache.InvalidateKey(key)
		return model.Email{}, s.fail("update email", err, "Failed to update email")
	}
	if !query.SetDataIfLatest(s.cache, key, seq, email) {
		s.cache.InvalidateKey(key)
	}
	s.cache.Invalidate(EntityEmail, KindList)
	return email, nil
}

// DeleteEmail moves an email to trash.
func (s *Service) DeleteEmail(ctx context.Context, id int64) error {
	if err := s.backend.DeleteEmail(ctx, id); err != nil {
		return s.fail("delete email", err, "Failed to delete email")
	}
	s.cache.Invalidate(EntityEmail, KindList)
	s.notices.Success("Email deleted successfully")
	return nil
}

// ComposeEmail sends a new email.
func (s *Service) ComposeEmail(ctx context.Context, in model.EmailCompose) error {
	if err := s.backend.ComposeEmail(ctx, in); err != nil {
		return s.fail("compose email", err, "Failed to send email")
	}
	s.cache.Invalidate(EntityEmail, KindList)
	s.notices.Success("Email sent successfully!")
	return nil
}

// SyncEmails pulls new mail for an account folder; "" means INBOX.
func (s *Service) SyncEmails(ctx context.Context, accountID int64, folder string) (model.StatusMessage, error) {
	return s.sync(ctx, accountID, folder, true)
}

// BackgroundSync is SyncEmails for periodic sync: it posts no notices.
func (s *Service) BackgroundSync(ctx context.Context, accountID int64, folder string) (model.StatusMessage, error) {
	return s.sync(ctx, accountID, folder, false)
}

func (s *Service) sync(ctx context.Context, accountID int64, folder string, notify bool) (model.StatusMessage, error) {
	if folder == "" {
		folder = model.DefaultFolder
	}
	result, err := s.backend.SyncEmails(ctx, accountID, folder)
	if err != nil {
		if !notify {
			s.logger.Warn("background sync failed", "account_id", accountID, "folder", folder, "error", err)
			return model.StatusMessage{}, err
		}
		return model.StatusMessage{}, s.fail("sync emails", err, "Failed to sync emails")
	}
	s.cache.Invalidate(EntityEmail, KindList)
	if !notify {
		return result, nil
	}
	if result.Message != "" {
		s.notices.Success(result.Message)
	} else {
		s.notices.Success("Emails synced successfully!")
	}
	return result, nil
}

// SearchEmails runs an uncached server-side search.
func (s *Service) SearchEmails(ctx context.Context, in model.EmailSearch) ([]model.Email, error) {
	emails, err := s.backend.SearchEmails(ctx, in)
	if err != nil {
		return nil, s.fail("search emails", err, "Search failed")
	}
	return emails, nil
}
