package storage

import (
	"time"

	"github.com/OmnisXopowo/delta-helper-bot/internal/delta"
)

// Account is one bound Delta Force account
type Account struct {
	UserID      string // Discord user id, unique key
	ChannelID   string // broadcast channel, "" = no broadcasts
	AccessToken string
	OpenID      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Credentials returns the account's remote API credentials
func (a *Account) Credentials() delta.Credentials {
	return delta.Credentials{AccessToken: a.AccessToken, OpenID: a.OpenID}
}

// WatchState is the per-account cursor of the record watcher
type WatchState struct {
	UserID      string
	LastMatchID string
	UpdatedAt   time.Time
}
