// Package retro is the session-cookie client for the Retro invoice API.
package retro

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"neon2retro/internal/logger"
	"neon2retro/internal/payload"
)

const (
	authenticatePath = "/Authentication/AuthenticateUser"
	submitPath       = "/InvoiceManager/AddUpdateInvoice"
	pendingPath      = "/InvoiceManager/GetAllInvoicePendingAssignment"

	maxBodyBytes = 4 << 20
)

// Config configures a Client.
type Config struct {
	BaseURL  string // API base, e.g. https://retro.example.com/api
	AuthURL  string // Login base, defaults to BaseURL
	Username string
	Password string
	Timeout  time.Duration

	// HTTPClient overrides the transport. Its Jar is replaced.
	HTTPClient *http.Client
}

// Client talks to the Retro API. It holds one login session for its
// lifetime. Callers that must not swap the session mid-run serialize
// Authenticate against Submit themselves.
type Client struct {
	cfg           Config
	baseURL       *url.URL
	httpClient    *http.Client
	authenticated atomic.Bool
	log           zerolog.Logger
}

// NewClient creates a Client with an empty cookie jar.
func NewClient(cfg Config) (*Client, error) {
	const op = "NewClient"

	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	cfg.AuthURL = strings.TrimRight(cfg.AuthURL, "/")
	if cfg.AuthURL == "" {
		cfg.AuthURL = cfg.BaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, NewRetroError(op, fmt.Errorf("invalid base URL %q", cfg.BaseURL), "")
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, WrapRetroError(op, err, "create cookie jar")
	}

	httpClient := &http.Client{Timeout: cfg.Timeout}
	if cfg.HTTPClient != nil {
		clone := *cfg.HTTPClient
		httpClient = &clone
	}
	httpClient.Jar = jar

	return &Client{
		cfg:        cfg,
		baseURL:    base,
		httpClient: httpClient,
		log:        logger.WithComponent("retro"),
	}, nil
}

// Authenticated reports whether a session has been established.
func (c *Client) Authenticated() bool {
	return c.authenticated.Load()
}

// Authenticate logs in and stores the session cookies for later calls.
func (c *Client) Authenticate(ctx context.Context) error {
	const op = "Authenticate"

	params := url.Values{}
	params.Set("userName", c.cfg.Username)
	params.Set("password", c.cfg.Password)
	endpoint := c.cfg.AuthURL + authenticatePath + "?" + params.Encode()

	c.log.Info().Str("url", c.cfg.AuthURL+authenticatePath).Str("user", c.cfg.Username).Msg("Authenticating with Retro")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, http.NoBody)
	if err != nil {
		return WrapRetroError(op, err, "build request")
	}
	c.setCommonHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return NewRetroError(op, ErrAuthenticationFailed, redact(err.Error(), c.cfg.Password))
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))

	if resp.StatusCode != http.StatusOK {
		return NewRetroError(op, ErrAuthenticationFailed, fmt.Sprintf("status %d: %s", resp.StatusCode, snippet(body)))
	}

	flag, message, err := decodeFlag(body)
	if err != nil || flag == nil || !*flag {
		return NewRetroError(op, ErrAuthenticationFailed, firstNonEmpty(message, snippet(body)))
	}

	cookies := resp.Cookies()
	if len(cookies) == 0 {
		c.log.Warn().Msg("Login succeeded but no session cookies were returned")
	}
	// The login host may differ from the API host; replay its cookies there.
	c.httpClient.Jar.SetCookies(c.baseURL, cookies)

	c.authenticated.Store(true)
	c.log.Info().Int("cookies", len(cookies)).Msg("Authenticated with Retro")
	return nil
}

// Outcome classifies a submission.
type Outcome int

const (
	// Sent means the destination accepted the invoice.
	Sent Outcome = iota
	// Rejected means the destination answered but refused the invoice.
	Rejected
	// TransportError means no usable answer was received.
	TransportError
)

func (o Outcome) String() string {
	switch o {
	case Sent:
		return "sent"
	case Rejected:
		return "rejected"
	case TransportError:
		return "transport_error"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// MarshalText lets outcomes appear by name in JSON and logs.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// Result is the outcome of one submission.
type Result struct {
	Outcome    Outcome
	StatusCode int
	Message    string
	Err        error
}

// OK reports whether the invoice was accepted.
func (r Result) OK() bool {
	return r.Outcome == Sent
}

// Submit posts one invoice. It never retries.
func (c *Client) Submit(ctx context.Context, p *payload.Payload) Result {
	const op = "Submit"

	if !c.authenticated.Load() {
		return Result{Outcome: TransportError, Err: NewRetroError(op, ErrNotAuthenticated, "")}
	}
	if p == nil {
		return Result{Outcome: TransportError, Err: NewRetroError(op, fmt.Errorf("nil payload"), "")}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+submitPath, strings.NewReader(p.Encode()))
	if err != nil {
		return Result{Outcome: TransportError, Err: WrapRetroError(op, err, "build request")}
	}
	c.setCommonHeaders(req)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=UTF-8")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{Outcome: TransportError, Err: WrapRetroError(op, err, p.Reference)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return Result{Outcome: TransportError, StatusCode: resp.StatusCode, Err: WrapRetroError(op, err, "read body")}
	}

	return classify(op, resp.StatusCode, body)
}

func classify(op string, status int, body []byte) Result {
	res := Result{StatusCode: status}

	if status < 200 || status > 299 {
		res.Outcome = TransportError
		res.Message = snippet(body)
		res.Err = NewRetroError(op, ErrUnexpectedStatus, fmt.Sprintf("status %d", status))
		return res
	}

	flag, message, err := decodeFlag(body)
	res.Message = message

	switch {
	case status != http.StatusOK && status != http.StatusCreated:
		res.Outcome = Rejected
		res.Err = NewRetroError(op, ErrUnexpectedStatus, fmt.Sprintf("status %d", status))
	case err != nil:
		res.Outcome = Rejected
		res.Message = snippet(body)
		res.Err = NewRetroError(op, ErrMalformedResponse, err.Error())
	case flag == nil:
		res.Outcome = Rejected
		res.Err = NewRetroError(op, ErrMalformedResponse, "response flag missing")
	case !*flag:
		res.Outcome = Rejected
		res.Err = NewRetroError(op, rejectionReason(message), message)
	default:
		res.Outcome = Sent
	}

	return res
}

func rejectionReason(message string) error {
	lower := strings.ToLower(message)
	switch {
	case strings.Contains(lower, "reference number already exists"):
		return ErrDuplicateReference
	case strings.Contains(lower, "invalid operation"):
		return ErrInvalidOperation
	}
	return ErrRejected
}

// ackItem is the single element of the destination's acknowledgement list.
type ackItem struct {
	Response *bool  `json:"response"`
	Message  string `json:"message"`
}

// decodeFlag extracts the response flag and message from an
// acknowledgement, which may be a list, a bare object, or either one
// encoded a second time as a JSON string.
func decodeFlag(body []byte) (*bool, string, error) {
	raw, err := unwrapJSON(body)
	if err != nil {
		return nil, "", err
	}

	var items []ackItem
	if err := json.Unmarshal(raw, &items); err == nil {
		if len(items) == 0 {
			return nil, "", nil
		}
		return items[0].Response, items[0].Message, nil
	}

	var item ackItem
	if err := json.Unmarshal(raw, &item); err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return item.Response, item.Message, nil
}

// unwrapJSON returns the JSON document in body, decoding one extra layer
// when the body is a JSON string holding JSON.
func unwrapJSON(body []byte) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrMalformedResponse)
	}
	if trimmed[0] != '"' {
		if !json.Valid(trimmed) {
			return nil, fmt.Errorf("%w: invalid JSON", ErrMalformedResponse)
		}
		return trimmed, nil
	}

	var inner string
	if err := json.Unmarshal(trimmed, &inner); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	inner = strings.TrimSpace(inner)
	if !json.Valid([]byte(inner)) {
		return nil, fmt.Errorf("%w: invalid inner JSON", ErrMalformedResponse)
	}
	return json.RawMessage(inner), nil
}

func (c *Client) setCommonHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Origin", c.cfg.AuthURL)
	req.Header.Set("Referer", c.cfg.AuthURL+"/")
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}

func redact(s, secret string) string {
	if secret == "" {
		return s
	}
	return strings.ReplaceAll(s, url.QueryEscape(secret), "***")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
