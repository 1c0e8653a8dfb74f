package watch

import (
	"context"
	"log/slog"
	"time"

	"github.com/OmnisXopowo/delta-helper-bot/internal/delta"
	"github.com/OmnisXopowo/delta-helper-bot/internal/storage"
)

// maxBroadcastAge is the freshness window: matches older than this are never
// broadcast, even if never seen before. It prevents backlog floods after the
// bot was down.
const maxBroadcastAge = 7 * time.Minute

// GameClient is the slice of the remote API the watcher needs.
type GameClient interface {
	GetPlayerInfo(ctx context.Context, creds delta.Credentials) (*delta.PlayerInfo, error)
	GetRecords(ctx context.Context, creds delta.Credentials) (*delta.RecordFeed, error)
}

// Store is the slice of the account store the watch engine needs.
type Store interface {
	GetAccount(userID string) (*storage.Account, error)
	ListAccounts() ([]*storage.Account, error)
	GetWatchState(userID string) (*storage.WatchState, error)
	SetWatchState(userID, matchID string) error
}

// Sink delivers broadcast messages to a chat channel.
type Sink interface {
	SendText(channelID, text string) error
}

// TickOutcome classifies the result of one watch cycle.
type TickOutcome int

const (
	TickNoChange TickOutcome = iota
	TickBroadcast
	TickError
)

// TickResult is the outcome of one watch cycle. Message and MatchID are set
// on TickBroadcast; Err is set on TickError.
type TickResult struct {
	Outcome TickOutcome
	Message string
	MatchID string
	Err     error
}

// Watcher evaluates one account's match history for broadcast-worthy
// matches. It mutates nothing itself: the scheduler sends the broadcast and
// persists the new cursor.
type Watcher struct {
	client GameClient
	store  Store
	maxAge time.Duration
	now    func() time.Time
}

// NewWatcher creates a record watcher.
func NewWatcher(client GameClient, store Store) *Watcher {
	return &Watcher{
		client: client,
		store:  store,
		maxAge: maxBroadcastAge,
		now:    time.Now,
	}
}

// Tick runs one watch cycle for the account. A match must pass the
// freshness gate, the novelty gate and a broadcast threshold to produce
// TickBroadcast; sub-threshold matches yield TickNoChange without touching
// the cursor, so they are re-evaluated until they age out of the window.
func (w *Watcher) Tick(ctx context.Context, acct *storage.Account, displayName string) TickResult {
	feed, err := w.client.GetRecords(ctx, acct.Credentials())
	if err != nil {
		return TickResult{Outcome: TickError, Err: err}
	}

	records := feed.Gun
	if len(records) == 0 {
		slog.Debug("no gun mode records", "user", acct.UserID)
		return TickResult{Outcome: TickNoChange}
	}

	// The feed is assumed newest-first; the remote is not re-sorted here.
	latest := &records[0]

	eventTime, err := latest.ParsedEventTime()
	if err != nil {
		slog.Warn("unparseable record timestamp", "user", acct.UserID, "error", err)
		return TickResult{Outcome: TickNoChange}
	}
	if w.now().Sub(eventTime) > w.maxAge {
		slog.Debug("latest record too old to broadcast", "user", acct.UserID, "eventTime", latest.EventTime)
		return TickResult{Outcome: TickNoChange}
	}

	matchID := latest.MatchID()
	state, err := w.store.GetWatchState(acct.UserID)
	if err != nil {
		return TickResult{Outcome: TickError, Err: err}
	}
	if state != nil && state.LastMatchID == matchID {
		slog.Debug("no new record", "user", acct.UserID)
		return TickResult{Outcome: TickNoChange}
	}

	message, ok := formatBroadcast(latest, displayName)
	if !ok {
		// Below both thresholds: the cursor is left alone on purpose, a
		// qualifying later match with any id must still be seen as fresh.
		slog.Debug("record below broadcast thresholds", "user", acct.UserID, "match", matchID)
		return TickResult{Outcome: TickNoChange}
	}

	return TickResult{Outcome: TickBroadcast, Message: message, MatchID: matchID}
}
