package delta

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

// Normalized QR poll codes. Anything not listed here means the login is
// still pending and the caller should poll again.
const (
	CodeConfirmed = 0
	CodeExpired   = -2
	CodeCancelled = -3
	CodeDenied    = -4
)

// QRSession holds the state of one QR-login attempt. The cookie may be
// rotated by the remote between polls; callers must keep the session
// they pass to PollLoginStatus up to date.
type QRSession struct {
	ID       string // correlation id for logs
	Image    []byte // QR code PNG
	Cookie   string
	QRSig    string
	QRToken  string
	LoginSig string
}

// LoginPoll is the outcome of a single login status check.
type LoginPoll struct {
	Code    int
	Message string
	Cookie  string // non-empty when the remote rotated the session cookie
}

// Credentials identify a logged-in game account.
type Credentials struct {
	AccessToken string
	OpenID      string
}

// CreateQRSession starts a QR-login attempt: it fetches the login page for
// a login signature, then the QR image itself.
func (c *Client) CreateQRSession(ctx context.Context) (*QRSession, error) {
	pageURL := fmt.Sprintf("%s?appid=%s&daid=%s&pt_3rd_aid=%s&style=33", loginPageURL, appID, daID, thirdAID)
	_, pageCookies, err := c.getRaw(ctx, pageURL, "")
	if err != nil {
		return nil, fmt.Errorf("failed to load login page: %w", err)
	}
	cookie := cookieString(pageCookies)
	loginSig := cookieValue(cookie, "pt_login_sig")
	if loginSig == "" {
		return nil, &APIError{Message: "登录签名获取失败"}
	}

	qrURL := fmt.Sprintf("%s?appid=%s&daid=%s&pt_3rd_aid=%s&e=2&l=M&s=3&d=72&v=4&t=0.1", qrShowURL, appID, daID, thirdAID)
	image, qrCookies, err := c.getRaw(ctx, qrURL, cookie)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch QR code: %w", err)
	}
	qrCookie := cookieString(qrCookies)
	qrSig := cookieValue(qrCookie, "qrsig")
	if qrSig == "" {
		return nil, &APIError{Message: "二维码签名获取失败"}
	}

	return &QRSession{
		ID:       uuid.NewString(),
		Image:    image,
		Cookie:   cookie + "; " + qrCookie,
		QRSig:    qrSig,
		QRToken:  qrToken(qrSig),
		LoginSig: loginSig,
	}, nil
}

// PollLoginStatus checks whether the QR code has been scanned and confirmed.
// Remote states are normalized: 0 confirmed, -2 expired, -3 cancelled,
// -4 denied, anything else pending.
func (c *Client) PollLoginStatus(ctx context.Context, s *QRSession) (*LoginPoll, error) {
	params := url.Values{}
	params.Set("ptqrtoken", s.QRToken)
	params.Set("login_sig", s.LoginSig)
	params.Set("aid", appID)
	params.Set("daid", daID)
	params.Set("pt_3rd_aid", thirdAID)
	params.Set("u1", "https://graph.qq.com/oauth2.0/login_jump")
	params.Set("from_ui", "1")
	params.Set("ptredirect", "0")
	params.Set("h", "1")
	params.Set("t", "1")
	params.Set("g", "1")

	body, cookies, err := c.getRaw(ctx, qrPollURL+"?"+params.Encode(), s.Cookie)
	if err != nil {
		return nil, err
	}

	code, message, err := parsePtuiCB(string(body))
	if err != nil {
		return nil, err
	}

	poll := &LoginPoll{Message: message}
	switch code {
	case "0":
		poll.Code = CodeConfirmed
		poll.Cookie = cookieString(cookies)
	case "65":
		poll.Code = CodeExpired
	case "67":
		// scanned, waiting for cancel/confirm on the phone
		poll.Code = 67
	case "68":
		poll.Code = CodeDenied
	default:
		poll.Code = 66
	}
	return poll, nil
}

// exchangeResult is the token payload of the OAuth exchange.
type exchangeResult struct {
	AccessToken string `json:"access_token"`
	OpenID      string `json:"openid"`
}

// ExchangeToken trades a confirmed login cookie for an access token and
// openid on the game side.
func (c *Client) ExchangeToken(ctx context.Context, cookie string) (*Credentials, error) {
	var res exchangeResult
	extra := url.Values{}
	extra.Set("sCookie", cookie)
	if err := c.ideRequest(ctx, "316964", "QbM9ZK", Credentials{}, extra, &res); err != nil {
		return nil, err
	}
	if res.AccessToken == "" || res.OpenID == "" {
		return nil, &APIError{Message: "登录态兑换失败"}
	}
	return &Credentials{AccessToken: res.AccessToken, OpenID: res.OpenID}, nil
}

// Bind registers the credentials with the helper service.
func (c *Client) Bind(ctx context.Context, creds Credentials) error {
	return c.ideRequest(ctx, "316965", "fZEOuK", creds, nil, nil)
}

// parsePtuiCB parses the remote's ptuiCB('code','','url','0','message','nick')
// callback body into its code and message.
func parsePtuiCB(body string) (code, message string, err error) {
	start := strings.Index(body, "(")
	end := strings.LastIndex(body, ")")
	if start < 0 || end <= start {
		return "", "", fmt.Errorf("malformed login status response: %q", body)
	}
	fields := strings.Split(body[start+1:end], ",")
	if len(fields) < 5 {
		return "", "", fmt.Errorf("malformed login status response: %q", body)
	}
	unquote := func(s string) string {
		return strings.Trim(strings.TrimSpace(s), "'")
	}
	return unquote(fields[0]), unquote(fields[4]), nil
}

// qrToken derives the poll token from the QR signature (the hash the login
// page computes in javascript).
func qrToken(qrSig string) string {
	var h int32
	for _, r := range []byte(qrSig) {
		h += (h << 5) + int32(r)
	}
	return fmt.Sprintf("%d", h&0x7fffffff)
}
