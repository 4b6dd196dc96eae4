package mail

import (
	"time"

	"github.com/nhle/mail-client/internal/model"
	"github.com/nhle/mail-client/internal/query"
)

// Cache entities and kinds.
const (
	EntityAccount = "account"
	EntityFolder  = "folder"
	EntityEmail   = "email"

	KindList   = "list"
	KindDetail = "detail"
)

// Staleness windows per read.
const (
	AccountsStaleTime = 5 * time.Minute
	FoldersStaleTime  = 10 * time.Minute
	EmailsStaleTime   = 2 * time.Minute
	EmailStaleTime    = 5 * time.Minute
)

// AccountsKey is the key of the account list.
func AccountsKey() query.Key {
	return query.Key{Entity: EntityAccount, Kind: KindList}
}

// AccountKey is the key of a single account.
func AccountKey(id int64) query.Key {
	return query.Key{Entity: EntityAccount, Kind: KindDetail, Params: id}
}

// FoldersKey is the key of an account's folder list.
func FoldersKey(accountID int64) query.Key {
	return query.Key{Entity: EntityFolder, Kind: KindList, Params: accountID}
}

// EmailsKey is the key of one email list page.
func EmailsKey(params model.EmailListParams) query.Key {
	return query.Key{Entity: EntityEmail, Kind: KindList, Params: params}
}

// EmailKey is the key of a single email.
func EmailKey(id int64) query.Key {
	return query.Key{Entity: EntityEmail, Kind: KindDetail, Params: id}
}
