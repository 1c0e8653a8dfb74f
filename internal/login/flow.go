package login

import (
	"context"
	"log/slog"
	"time"

	"github.com/OmnisXopowo/delta-helper-bot/internal/delta"
	"github.com/OmnisXopowo/delta-helper-bot/internal/storage"
)

// pollInterval is the cadence of QR status checks.
const pollInterval = 500 * time.Millisecond

// GameClient is the slice of the remote API the login flow needs.
type GameClient interface {
	CreateQRSession(ctx context.Context) (*delta.QRSession, error)
	PollLoginStatus(ctx context.Context, s *delta.QRSession) (*delta.LoginPoll, error)
	ExchangeToken(ctx context.Context, cookie string) (*delta.Credentials, error)
	Bind(ctx context.Context, creds delta.Credentials) error
	GetPlayerInfo(ctx context.Context, creds delta.Credentials) (*delta.PlayerInfo, error)
}

// Outcome is the state of a login attempt after a poll.
type Outcome int

const (
	Pending Outcome = iota
	Success
	Failure
)

// Result is the outcome of a single poll. Account, PlayerName and Money are
// set on Success; Reason is set on Failure.
type Result struct {
	Outcome    Outcome
	Reason     string
	Account    *storage.Account
	PlayerName string
	Money      int64
}

func failure(reason string) Result {
	return Result{Outcome: Failure, Reason: reason}
}

// Flow drives the QR-login state machine for one attempt.
type Flow struct {
	client GameClient
}

// New creates a login flow on top of the given client.
func New(client GameClient) *Flow {
	return &Flow{client: client}
}

// Start requests a QR session. A creation failure is terminal: the caller
// should report it and not enter the poll loop.
func (f *Flow) Start(ctx context.Context) (*delta.QRSession, error) {
	session, err := f.client.CreateQRSession(ctx)
	if err != nil {
		return nil, err
	}
	slog.Debug("QR session created", "session", session.ID)
	return session, nil
}

// Poll advances the state machine one step. Confirmed logins run the full
// token exchange, bind and player lookup before reporting Success; any
// sub-step failure is terminal for this attempt. Non-terminal polls may
// rotate the session cookie, which is carried into the next poll.
func (f *Flow) Poll(ctx context.Context, userID, channelID string, session *delta.QRSession) Result {
	poll, err := f.client.PollLoginStatus(ctx, session)
	if err != nil {
		return failure("获取登录状态失败：" + err.Error())
	}

	switch poll.Code {
	case delta.CodeConfirmed:
		if poll.Cookie != "" {
			session.Cookie = poll.Cookie
		}
		return f.complete(ctx, userID, channelID, session)
	case delta.CodeExpired, delta.CodeCancelled, delta.CodeDenied:
		return failure("登录失败：" + poll.Message)
	default:
		if poll.Cookie != "" {
			session.Cookie = poll.Cookie
		}
		return Result{Outcome: Pending}
	}
}

// complete exchanges the confirmed cookie for credentials and resolves the
// character.
func (f *Flow) complete(ctx context.Context, userID, channelID string, session *delta.QRSession) Result {
	creds, err := f.client.ExchangeToken(ctx, session.Cookie)
	if err != nil {
		return failure("登录失败：" + err.Error())
	}
	if err := f.client.Bind(ctx, *creds); err != nil {
		return failure("绑定失败：" + err.Error())
	}
	info, err := f.client.GetPlayerInfo(ctx, *creds)
	if err != nil {
		return failure("查询角色信息失败：" + err.Error())
	}

	slog.Info("login confirmed", "session", session.ID, "user", userID, "character", info.CharacterName())
	return Result{
		Outcome: Success,
		Account: &storage.Account{
			UserID:      userID,
			ChannelID:   channelID,
			AccessToken: creds.AccessToken,
			OpenID:      creds.OpenID,
		},
		PlayerName: info.CharacterName(),
		Money:      int64(info.Money),
	}
}

// Await polls until the attempt reaches a terminal outcome or the context
// expires.
func (f *Flow) Await(ctx context.Context, userID, channelID string, session *delta.QRSession) Result {
	for {
		res := f.Poll(ctx, userID, channelID, session)
		if res.Outcome != Pending {
			return res
		}
		select {
		case <-ctx.Done():
			return failure("登录超时，请重新发起登录")
		case <-time.After(pollInterval):
		}
	}
}
