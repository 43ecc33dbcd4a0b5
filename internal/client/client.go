package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"pos/internal/pos"
	"pos/internal/session"

	"github.com/labstack/gommon/log"
	"github.com/sony/gobreaker/v2"
)

const (
	maxResponseBytes = 4 << 20
	imagePrefixLen   = len("public/images/")
)

// 5xx はブレーカーの失敗として数える。4xx は呼び出し側の問題なので数えない。
var errServer = errors.New("server error")

type Config struct {
	BaseURL string
	Timeout time.Duration
	// 連続失敗がこの回数に達したらブレーカーを開く
	BreakerFailures uint32
	BreakerTimeout  time.Duration
	HTTPClient      *http.Client
	Logger          *log.Logger
}

type response struct {
	status int
	body   []byte
}

// Client は取引・カタログ API のクライアント。
// pos.TransactionGateway と session.Authenticator を実装する。
type Client struct {
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[response]
	token   string
	logger  *log.Logger
}

func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = 30 * time.Second
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New("client")
	}

	logger := cfg.Logger
	breaker := gobreaker.NewCircuitBreaker[response](gobreaker.Settings{
		Name:        "pos-api",
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warnj(log.JSON{"msg": "circuit breaker state changed", "name": name, "from": from.String(), "to": to.String()})
		},
	})

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    cfg.HTTPClient,
		breaker: breaker,
		logger:  logger,
	}
}

// WithToken は bearer トークン付きのコピーを返す。ブレーカーは共有する。
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.token = token
	return &cp
}

// ImageURL は保存されている画像パス（"public/images/..."）から表示用 URL を作る。
func (c *Client) ImageURL(path string) string {
	if len(path) <= imagePrefixLen {
		return ""
	}
	return c.baseURL + "/images/" + path[imagePrefixLen:]
}

type loginResponse struct {
	ID       string `json:"_id"`
	Username string `json:"username"`
	Token    string `json:"token"`
	Name     string `json:"name"`
	Contact  string `json:"contact"`
	Role     string `json:"role"`
}

func (c *Client) Login(ctx context.Context, cred session.Credentials) (session.Session, error) {
	var out loginResponse
	if err := c.do(ctx, "login", http.MethodPost, "/user/login", cred, &out, nil); err != nil {
		return session.Session{}, err
	}

	return session.Session{
		UserID:   out.ID,
		Username: out.Username,
		Name:     out.Name,
		Token:    out.Token,
		Role:     out.Role,
		Contact:  out.Contact,
	}, nil
}

// Profile は利用者のプロフィール。
type Profile struct {
	ID       string `json:"_id,omitempty"`
	Username string `json:"username"`
	Name     string `json:"name"`
	Contact  string `json:"contact"`
	Role     string `json:"role,omitempty"`
}

func (c *Client) Users(ctx context.Context) ([]Profile, error) {
	var out []Profile
	if err := c.do(ctx, "list users", http.MethodGet, "/user", nil, &out, nil); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) UpdateProfile(ctx context.Context, userID string, p Profile) (Profile, error) {
	var out Profile
	path := "/user/" + url.PathEscape(userID)
	if err := c.do(ctx, "update profile", http.MethodPatch, path, p, &out, nil); err != nil {
		return Profile{}, err
	}
	return out, nil
}

// ChangePassword が成功すると、それまでのトークンはサーバー側で無効になる。
func (c *Client) ChangePassword(ctx context.Context, userID, current, next string) error {
	body := map[string]string{"currentPassword": current, "newPassword": next}
	path := "/user/" + url.PathEscape(userID) + "/change-password"
	return c.do(ctx, "change password", http.MethodPatch, path, body, nil, nil)
}

func (c *Client) Products(ctx context.Context, category, query string) ([]pos.Product, error) {
	q := url.Values{}
	if category != "" {
		q.Set("category", category)
	}
	if query != "" {
		q.Set("q", query)
	}
	path := "/product"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var out []pos.Product
	if err := c.do(ctx, "list products", http.MethodGet, path, nil, &out, nil); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Product(ctx context.Context, id string) (pos.Product, error) {
	var out pos.Product
	if err := c.do(ctx, "get product", http.MethodGet, "/product/"+url.PathEscape(id), nil, &out, nil); err != nil {
		return pos.Product{}, err
	}
	return out, nil
}

func (c *Client) CreateTransaction(ctx context.Context, req pos.TransactionRequest) (pos.TransactionRecord, error) {
	hdr := http.Header{}
	if req.IdempotencyKey != "" {
		hdr.Set("Idempotency-Key", req.IdempotencyKey)
	}

	var out pos.TransactionRecord
	if err := c.do(ctx, "create transaction", http.MethodPost, "/transaction", req, &out, hdr); err != nil {
		return pos.TransactionRecord{}, err
	}
	return out, nil
}

func (c *Client) Transactions(ctx context.Context) ([]pos.TransactionRecord, error) {
	var out []pos.TransactionRecord
	if err := c.do(ctx, "list transactions", http.MethodGet, "/transaction", nil, &out, nil); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Transaction(ctx context.Context, id string) (pos.TransactionRecord, error) {
	var out pos.TransactionRecord
	if err := c.do(ctx, "get transaction", http.MethodGet, "/transaction/"+url.PathEscape(id), nil, &out, nil); err != nil {
		return pos.TransactionRecord{}, err
	}
	return out, nil
}

func (c *Client) ApplyRefund(ctx context.Context, req pos.RefundSubmission) (pos.RefundConfirmation, error) {
	var out pos.RefundConfirmation
	if err := c.do(ctx, "apply refund", http.MethodPost, "/refund", req, &out, nil); err != nil {
		return pos.RefundConfirmation{}, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, body any, out any, hdr http.Header) error {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return &pos.SubmissionError{Op: op, Err: fmt.Errorf("marshal request: %w", err)}
		}
		payload = b
	}

	res, err := c.breaker.Execute(func() (response, error) {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return response{}, err
		}
		for k, vs := range hdr {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return response{}, err
		}
		defer resp.Body.Close()

		b, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if err != nil {
			return response{}, err
		}
		r := response{status: resp.StatusCode, body: b}
		if resp.StatusCode >= http.StatusInternalServerError {
			return r, errServer
		}
		return r, nil
	})

	switch {
	case errors.Is(err, errServer):
		// res はそのまま使う
	case err != nil:
		c.logger.Warnj(log.JSON{"msg": "request failed", "op": op, "path": path, "error": err.Error()})
		return &pos.SubmissionError{Op: op, Err: err}
	}

	if res.status < 200 || res.status >= 300 {
		msg := errorMessage(res.body)
		c.logger.Warnj(log.JSON{"msg": "request rejected", "op": op, "path": path, "status": res.status, "error": msg})
		return &pos.SubmissionError{Op: op, Status: res.status, Message: msg}
	}

	if out == nil || len(bytes.TrimSpace(res.body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(res.body, out); err != nil {
		return &pos.SubmissionError{Op: op, Status: res.status, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// サーバーは {"error": "..."} を返す。
func errorMessage(body []byte) string {
	var e struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &e); err == nil && e.Error != "" {
		return e.Error
	}
	return strings.TrimSpace(string(body))
}
