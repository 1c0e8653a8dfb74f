package delta

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const (
	// QQ login endpoints used by the Delta Force web flow
	loginPageURL = "https://xui.ptlogin2.qq.com/cgi-bin/xlogin"
	qrShowURL    = "https://ssl.ptlogin2.qq.com/ptqrshow"
	qrPollURL    = "https://ssl.ptlogin2.qq.com/ptqrlogin"

	// Game data gateway (ide chart endpoints)
	gameAPIURL = "https://comm.ams.game.qq.com/ide/"

	appID    = "716027609"
	daID     = "383"
	thirdAID = "100497308"
)

// APIError is a failure reported by the remote service itself, as opposed
// to a transport error. The message is shown verbatim to interactive users.
type APIError struct {
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

// Client talks to the QQ login endpoints and the Delta Force game gateway.
type Client struct {
	httpClient *http.Client

	// Simple rate limiter
	mu          sync.Mutex
	lastRequest time.Time
	minInterval time.Duration
}

// NewClient creates a new Delta Force API client
func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		minInterval: 50 * time.Millisecond,
	}
}

// doRequest performs an HTTP request with rate limiting
func (c *Client) doRequest(req *http.Request) (*http.Response, error) {
	c.mu.Lock()
	elapsed := time.Since(c.lastRequest)
	if elapsed < c.minInterval {
		time.Sleep(c.minInterval - elapsed)
	}
	c.lastRequest = time.Now()
	c.mu.Unlock()

	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64)")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}

	// Back off once on 429
	if resp.StatusCode == http.StatusTooManyRequests {
		resp.Body.Close()
		time.Sleep(1 * time.Second)
		return c.httpClient.Do(req)
	}

	return resp, nil
}

// getRaw performs a GET request and returns the raw body plus the cookies
// the remote set on the response.
func (c *Client) getRaw(ctx context.Context, rawURL, cookie string) ([]byte, []*http.Cookie, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}
	if cookie != "" {
		req.Header.Set("Cookie", cookie)
	}

	resp, err := c.doRequest(req)
	if err != nil {
		return nil, nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("API error: status %d, body: %s", resp.StatusCode, string(body))
	}

	return body, resp.Cookies(), nil
}

// ideEnvelope is the common response wrapper of the game gateway.
type ideEnvelope struct {
	Ret   int             `json:"ret"`
	Msg   string          `json:"sMsg"`
	JData json.RawMessage `json:"jData"`
}

// ideRequest posts a chart request to the game gateway and decodes jData
// into result. A non-zero ret is returned as an *APIError.
func (c *Client) ideRequest(ctx context.Context, chartID, ideToken string, creds Credentials, extra url.Values, result interface{}) error {
	form := url.Values{}
	form.Set("iChartId", chartID)
	form.Set("iSubChartId", chartID)
	form.Set("sIdeToken", ideToken)
	form.Set("access_token", creds.AccessToken)
	form.Set("openid", creds.OpenID)
	for k, vs := range extra {
		for _, v := range vs {
			form.Add(k, v)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, gameAPIURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.doRequest(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("API error: status %d, body: %s", resp.StatusCode, string(body))
	}

	var env ideEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if env.Ret != 0 {
		msg := env.Msg
		if msg == "" {
			msg = fmt.Sprintf("远程接口错误（ret=%d）", env.Ret)
		}
		return &APIError{Message: msg}
	}
	if result != nil && len(env.JData) > 0 {
		if err := json.Unmarshal(env.JData, result); err != nil {
			return fmt.Errorf("failed to decode response data: %w", err)
		}
	}
	return nil
}

// cookieString flattens response cookies into a request Cookie header value.
func cookieString(cookies []*http.Cookie) string {
	var sb strings.Builder
	for _, ck := range cookies {
		if ck.Value == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("; ")
		}
		sb.WriteString(ck.Name)
		sb.WriteString("=")
		sb.WriteString(ck.Value)
	}
	return sb.String()
}

// cookieValue extracts one cookie by name from a flattened cookie string.
func cookieValue(cookie, name string) string {
	for _, part := range strings.Split(cookie, ";") {
		part = strings.TrimSpace(part)
		if v, ok := strings.CutPrefix(part, name+"="); ok {
			return v
		}
	}
	return ""
}
