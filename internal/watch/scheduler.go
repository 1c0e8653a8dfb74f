package watch

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	// defaultInterval is the spacing between watch cycles per account.
	defaultInterval = 120 * time.Second
	// startDelay is how long after Install the first cycle fires.
	startDelay = 10 * time.Second
)

// Scheduler owns one recurring timer per bound account. Timers fire
// concurrently across accounts; within one account, cycles run on a single
// goroutine, so a cycle still in flight when the next tick is due makes the
// ticker drop that tick rather than queue it.
type Scheduler struct {
	watcher    *Watcher
	client     GameClient
	store      Store
	sink       Sink
	interval   time.Duration
	startDelay time.Duration

	ctx context.Context

	mu     sync.Mutex
	timers map[string]chan struct{}
	wg     sync.WaitGroup
}

// NewScheduler creates the watch scheduler. ctx bounds the remote calls of
// every tick; cancelling it stops in-flight I/O on shutdown.
func NewScheduler(ctx context.Context, watcher *Watcher, client GameClient, store Store, sink Sink, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Scheduler{
		watcher:    watcher,
		client:     client,
		store:      store,
		sink:       sink,
		interval:   interval,
		startDelay: startDelay,
		ctx:        ctx,
		timers:     make(map[string]chan struct{}),
	}
}

// Install starts the recurring watch timer for an account, replacing any
// existing timer for the same user. Replacement cancels pending fires of the
// old timer; an in-flight cycle finishes on its own.
func (s *Scheduler) Install(userID, displayName string) {
	s.mu.Lock()
	if stop, ok := s.timers[userID]; ok {
		close(stop)
	}
	stop := make(chan struct{})
	s.timers[userID] = stop
	s.mu.Unlock()

	slog.Info("watch timer installed", "user", userID, "player", displayName)

	s.wg.Add(1)
	go s.run(userID, displayName, stop)
}

// Remove stops the watch timer for an account, if any.
func (s *Scheduler) Remove(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if stop, ok := s.timers[userID]; ok {
		close(stop)
		delete(s.timers, userID)
	}
}

// Installed reports whether an account currently has a watch timer.
func (s *Scheduler) Installed(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[userID]
	return ok
}

// Stop cancels all timers and waits for in-flight cycles to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	for id, stop := range s.timers {
		close(stop)
		delete(s.timers, id)
	}
	s.mu.Unlock()
	s.wg.Wait()
}

// Bootstrap installs watch timers for every persisted account. Accounts
// whose player lookup fails (expired token, remote outage) are skipped for
// this run; they get picked up again after a re-login.
func (s *Scheduler) Bootstrap(ctx context.Context) error {
	accounts, err := s.store.ListAccounts()
	if err != nil {
		return err
	}
	for _, acct := range accounts {
		info, err := s.client.GetPlayerInfo(ctx, acct.Credentials())
		if err != nil {
			slog.Warn("skipping account at bootstrap", "user", acct.UserID, "error", err)
			continue
		}
		s.Install(acct.UserID, info.CharacterName())
	}
	return nil
}

func (s *Scheduler) run(userID, displayName string, stop chan struct{}) {
	defer s.wg.Done()

	delay := time.NewTimer(s.startDelay)
	defer delay.Stop()
	select {
	case <-stop:
		return
	case <-s.ctx.Done():
		return
	case <-delay.C:
	}
	s.tick(userID, displayName)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.tick(userID, displayName)
		}
	}
}

// tick runs one watch cycle and, on a broadcast, delivers it and advances
// the cursor. The cursor is persisted even when delivery fails, so a
// transient send error cannot re-alert the same match forever.
func (s *Scheduler) tick(userID, displayName string) {
	acct, err := s.store.GetAccount(userID)
	if err != nil {
		slog.Error("failed to load account for watch cycle", "user", userID, "error", err)
		return
	}
	if acct == nil {
		slog.Warn("watched account no longer bound", "user", userID)
		return
	}

	res := s.watcher.Tick(s.ctx, acct, displayName)
	switch res.Outcome {
	case TickError:
		slog.Error("watch cycle failed", "user", userID, "error", res.Err)
	case TickBroadcast:
		if acct.ChannelID != "" {
			if err := s.sink.SendText(acct.ChannelID, res.Message); err != nil {
				slog.Error("failed to send broadcast", "user", userID, "match", res.MatchID, "error", err)
			} else {
				slog.Info("broadcast sent", "user", userID, "match", res.MatchID)
			}
		}
		if err := s.store.SetWatchState(userID, res.MatchID); err != nil {
			slog.Error("failed to update watch state", "user", userID, "match", res.MatchID, "error", err)
		}
	}
}
