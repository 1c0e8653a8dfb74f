package login

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/OmnisXopowo/delta-helper-bot/internal/delta"
)

// fakeClient implements GameClient with a scripted poll sequence
type fakeClient struct {
	createErr error

	polls   []*delta.LoginPoll
	pollIdx int

	creds           *delta.Credentials
	exchangeErr     error
	exchangedCookie string

	bindErr error

	info    *delta.PlayerInfo
	infoErr error
}

func (f *fakeClient) CreateQRSession(ctx context.Context) (*delta.QRSession, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &delta.QRSession{
		ID:     "test-session",
		Image:  []byte("png"),
		Cookie: "initial",
		QRSig:  "sig",
	}, nil
}

func (f *fakeClient) PollLoginStatus(ctx context.Context, s *delta.QRSession) (*delta.LoginPoll, error) {
	if f.pollIdx >= len(f.polls) {
		return nil, errors.New("poll sequence exhausted")
	}
	p := f.polls[f.pollIdx]
	f.pollIdx++
	return p, nil
}

func (f *fakeClient) ExchangeToken(ctx context.Context, cookie string) (*delta.Credentials, error) {
	f.exchangedCookie = cookie
	if f.exchangeErr != nil {
		return nil, f.exchangeErr
	}
	return f.creds, nil
}

func (f *fakeClient) Bind(ctx context.Context, creds delta.Credentials) error {
	return f.bindErr
}

func (f *fakeClient) GetPlayerInfo(ctx context.Context, creds delta.Credentials) (*delta.PlayerInfo, error) {
	if f.infoErr != nil {
		return nil, f.infoErr
	}
	return f.info, nil
}

func makePlayerInfo(name string, money int64) *delta.PlayerInfo {
	info := &delta.PlayerInfo{Money: delta.Amount(money)}
	info.Player.CharacName = name
	return info
}

func TestStartFailureIsTerminal(t *testing.T) {
	f := New(&fakeClient{createErr: &delta.APIError{Message: "二维码签名获取失败"}})
	if _, err := f.Start(context.Background()); err == nil {
		t.Fatal("expected QR creation failure to surface")
	}
}

func TestPendingCarriesRefreshedSession(t *testing.T) {
	client := &fakeClient{
		polls: []*delta.LoginPoll{
			{Code: 66},
			{Code: 67, Cookie: "rotated"},
			{Code: 67},
		},
	}
	f := New(client)
	session, err := f.Start(context.Background())
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	for n := 0; n < 3; n++ {
		res := f.Poll(context.Background(), "100001", "chan-1", session)
		if res.Outcome != Pending {
			t.Fatalf("poll %d: outcome = %v, want Pending", n, res.Outcome)
		}
	}
	if session.Cookie != "rotated" {
		t.Errorf("session cookie = %q, want the remote-rotated value", session.Cookie)
	}
}

func TestRejectionCodesAreTerminal(t *testing.T) {
	for _, code := range []int{delta.CodeExpired, delta.CodeCancelled, delta.CodeDenied} {
		client := &fakeClient{
			polls: []*delta.LoginPoll{{Code: code, Message: "二维码已失效"}},
		}
		f := New(client)
		session, _ := f.Start(context.Background())

		res := f.Poll(context.Background(), "100001", "chan-1", session)
		if res.Outcome != Failure {
			t.Errorf("code %d: outcome = %v, want Failure", code, res.Outcome)
		}
		if !strings.Contains(res.Reason, "二维码已失效") {
			t.Errorf("code %d: reason %q lacks remote message", code, res.Reason)
		}
	}
}

func TestConfirmedWithFailingExchange(t *testing.T) {
	client := &fakeClient{
		polls:       []*delta.LoginPoll{{Code: delta.CodeConfirmed, Cookie: "confirmed"}},
		exchangeErr: &delta.APIError{Message: "登录态兑换失败"},
	}
	f := New(client)
	session, _ := f.Start(context.Background())

	res := f.Poll(context.Background(), "100001", "chan-1", session)
	if res.Outcome != Failure {
		t.Fatalf("outcome = %v, want Failure", res.Outcome)
	}
	if res.Account != nil {
		t.Error("no account may be produced on a failed exchange")
	}
	if client.exchangedCookie != "confirmed" {
		t.Errorf("exchange used cookie %q, want the confirmed one", client.exchangedCookie)
	}
}

func TestBindFailureIsTerminal(t *testing.T) {
	client := &fakeClient{
		polls:   []*delta.LoginPoll{{Code: delta.CodeConfirmed}},
		creds:   &delta.Credentials{AccessToken: "tok", OpenID: "oid"},
		bindErr: &delta.APIError{Message: "绑定被拒绝"},
	}
	f := New(client)
	session, _ := f.Start(context.Background())

	res := f.Poll(context.Background(), "100001", "chan-1", session)
	if res.Outcome != Failure {
		t.Fatalf("outcome = %v, want Failure", res.Outcome)
	}
	if !strings.Contains(res.Reason, "绑定失败") {
		t.Errorf("reason = %q", res.Reason)
	}
}

func TestSuccessProducesAccount(t *testing.T) {
	client := &fakeClient{
		polls: []*delta.LoginPoll{
			{Code: 66},
			{Code: delta.CodeConfirmed, Cookie: "confirmed"},
		},
		creds: &delta.Credentials{AccessToken: "tok", OpenID: "oid"},
		info:  makePlayerInfo("测试角色", 1234567),
	}
	f := New(client)
	session, _ := f.Start(context.Background())

	res := f.Poll(context.Background(), "100001", "chan-1", session)
	if res.Outcome != Pending {
		t.Fatalf("first poll: outcome = %v, want Pending", res.Outcome)
	}

	res = f.Poll(context.Background(), "100001", "chan-1", session)
	if res.Outcome != Success {
		t.Fatalf("outcome = %v, want Success (%s)", res.Outcome, res.Reason)
	}
	if res.PlayerName != "测试角色" {
		t.Errorf("player name = %q", res.PlayerName)
	}
	if res.Money != 1234567 {
		t.Errorf("money = %d", res.Money)
	}
	acct := res.Account
	if acct == nil {
		t.Fatal("success must carry an account")
	}
	if acct.UserID != "100001" || acct.ChannelID != "chan-1" {
		t.Errorf("account identity = %q/%q", acct.UserID, acct.ChannelID)
	}
	if acct.AccessToken != "tok" || acct.OpenID != "oid" {
		t.Errorf("account credentials = %q/%q", acct.AccessToken, acct.OpenID)
	}
}

func TestAwaitTimesOut(t *testing.T) {
	client := &fakeClient{
		polls: []*delta.LoginPoll{
			{Code: 66}, {Code: 66}, {Code: 66}, {Code: 66},
		},
	}
	f := New(client)
	session, _ := f.Start(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	res := f.Await(ctx, "100001", "chan-1", session)
	if res.Outcome != Failure {
		t.Fatalf("outcome = %v, want Failure on context expiry", res.Outcome)
	}
}
