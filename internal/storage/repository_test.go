package storage

import (
	"path/filepath"
	"testing"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := NewRepository(filepath.Join(t.TempDir(), "bot.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestAccountLifecycle(t *testing.T) {
	repo := newTestRepo(t)

	if got, err := repo.GetAccount("100001"); err != nil || got != nil {
		t.Fatalf("GetAccount on empty db = %v, %v", got, err)
	}

	acct := &Account{
		UserID:      "100001",
		ChannelID:   "chan-1",
		AccessToken: "tok-1",
		OpenID:      "oid-1",
	}
	if err := repo.UpsertAccount(acct); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := repo.GetAccount("100001")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil || got.AccessToken != "tok-1" || got.ChannelID != "chan-1" {
		t.Fatalf("got %+v", got)
	}

	// Re-login rotates credentials and channel for the same user
	acct.AccessToken = "tok-2"
	acct.ChannelID = "chan-2"
	if err := repo.UpsertAccount(acct); err != nil {
		t.Fatalf("re-upsert: %v", err)
	}
	got, err = repo.GetAccount("100001")
	if err != nil {
		t.Fatalf("get after re-upsert: %v", err)
	}
	if got.AccessToken != "tok-2" || got.ChannelID != "chan-2" {
		t.Errorf("credentials not refreshed: %+v", got)
	}

	accounts, err := repo.ListAccounts()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(accounts) != 1 {
		t.Fatalf("list = %d accounts, want 1", len(accounts))
	}

	if err := repo.DeleteAccount("100001"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got, _ := repo.GetAccount("100001"); got != nil {
		t.Error("account still present after delete")
	}
}

func TestWatchState(t *testing.T) {
	repo := newTestRepo(t)

	if got, err := repo.GetWatchState("100001"); err != nil || got != nil {
		t.Fatalf("GetWatchState on empty db = %v, %v", got, err)
	}

	if err := repo.SetWatchState("100001", "2025-07-20 20:04:29"); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := repo.GetWatchState("100001")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil || got.LastMatchID != "2025-07-20 20:04:29" {
		t.Fatalf("got %+v", got)
	}

	if err := repo.SetWatchState("100001", "2025-07-20 21:00:00"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, _ = repo.GetWatchState("100001")
	if got.LastMatchID != "2025-07-20 21:00:00" {
		t.Errorf("cursor not advanced: %+v", got)
	}
}

func TestDeleteAccountClearsWatchState(t *testing.T) {
	repo := newTestRepo(t)

	acct := &Account{UserID: "100001", AccessToken: "tok", OpenID: "oid"}
	if err := repo.UpsertAccount(acct); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := repo.SetWatchState("100001", "some-match"); err != nil {
		t.Fatalf("set watch state: %v", err)
	}

	if err := repo.DeleteAccount("100001"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got, _ := repo.GetWatchState("100001"); got != nil {
		t.Error("watch state must be removed with the account")
	}
}
