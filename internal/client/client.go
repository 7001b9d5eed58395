// Package client provides an HTTP client for the turnover REST API.
package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/evcraddock/turnover/internal/subscription"
)

// Client is an HTTP client for the turnover API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// New creates a new API client. token may be empty for the token endpoint.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Error is a non-2xx API response.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Token is the response from POST /api/token.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresAt   string `json:"expires_at"`
}

// Calendar is one apartment's day-to-statuses map.
type Calendar struct {
	Number      int                 `json:"number"`
	Description string              `json:"description,omitempty"`
	Schedule    map[string][]string `json:"schedule"`
}

// Schedule is the response from GET /api/calendars.
type Schedule struct {
	Calendars []Calendar `json:"calendars"`
	StartDate *string    `json:"start_date"`
	EndDate   *string    `json:"end_date"`
}

// ImportResult is the response from the import endpoints. Status is "not
// modified" when a URL import was skipped.
type ImportResult struct {
	Status    string `json:"status,omitempty"`
	Apartment int    `json:"apartment"`
	Created   bool   `json:"created"`
	Bookings  int    `json:"bookings"`
	Replaced  int64  `json:"replaced"`
	Bundled   int    `json:"bundled"`
}

// NotModified reports whether a URL import was skipped.
func (r *ImportResult) NotModified() bool {
	return r.Status == "not modified"
}

// Token exchanges a username and password for a bearer token.
func (c *Client) Token(username, password string) (*Token, error) {
	body := map[string]string{"username": username, "password": password}
	var tok Token
	if err := c.post("/api/token", body, &tok); err != nil {
		return nil, err
	}
	return &tok, nil
}

// Calendars returns the schedule grid. from and to are YYYY-MM-DD or empty.
func (c *Client) Calendars(from, to string) (*Schedule, error) {
	params := url.Values{}
	if from != "" {
		params.Set("from_date", from)
	}
	if to != "" {
		params.Set("to_date", to)
	}
	path := "/api/calendars"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var s Schedule
	if err := c.get(path, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// ImportCalendar uploads a calendar named like apartment_<n>.ics.
func (c *Client) ImportCalendar(filename string, r io.Reader) (*ImportResult, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("creating form file: %w", err)
	}
	if _, err := io.Copy(fw, r); err != nil {
		return nil, fmt.Errorf("reading calendar: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("closing form: %w", err)
	}

	req, err := http.NewRequest("POST", c.baseURL+"/api/import-calendar", &buf)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var res ImportResult
	if err := c.do(req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// ImportURL asks the server to fetch and import a remote calendar.
func (c *Client) ImportURL(calendarURL string) (*ImportResult, error) {
	var res ImportResult
	if err := c.post("/api/import-url", map[string]string{"url": calendarURL}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Export downloads an apartment's calendar.
func (c *Client) Export(number int) ([]byte, error) {
	req, err := http.NewRequest("GET", fmt.Sprintf("%s/api/export/%d", c.baseURL, number), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	var raw bytes.Buffer
	if err := c.do(req, &raw); err != nil {
		return nil, err
	}
	return raw.Bytes(), nil
}

// Subscriptions lists the owner's calendar subscriptions.
func (c *Client) Subscriptions() ([]*subscription.Subscription, error) {
	var subs []*subscription.Subscription
	if err := c.get("/api/subscriptions", &subs); err != nil {
		return nil, err
	}
	return subs, nil
}

// AddSubscription subscribes to a calendar URL.
func (c *Client) AddSubscription(calendarURL string) (*subscription.Subscription, error) {
	var sub subscription.Subscription
	if err := c.post("/api/subscriptions", map[string]string{"url": calendarURL}, &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

// DeleteSubscription removes a subscription.
func (c *Client) DeleteSubscription(id string) error {
	return c.doDelete("/api/subscriptions/" + url.PathEscape(id))
}

// SyncSubscription refreshes a subscription now and returns the outcome.
func (c *Client) SyncSubscription(id string) (subscription.Outcome, error) {
	var resp struct {
		Outcome subscription.Outcome `json:"outcome"`
	}
	if err := c.post("/api/subscriptions/"+url.PathEscape(id)+"/sync", nil, &resp); err != nil {
		return "", err
	}
	return resp.Outcome, nil
}

// DigestRequest asks the server to email the cleaning schedule.
type DigestRequest struct {
	To       []string `json:"to"`
	FromDate string   `json:"from_date,omitempty"`
	ToDate   string   `json:"to_date,omitempty"`
	DryRun   bool     `json:"dry_run"`
}

// Digest is the rendered (and possibly sent) cleaning digest.
type Digest struct {
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Body    string   `json:"body"`
	Sent    bool     `json:"sent"`
}

// SendDigest emails the cleaning schedule, or only renders it on a dry run.
func (c *Client) SendDigest(req DigestRequest) (*Digest, error) {
	var d Digest
	if err := c.post("/api/digest", req, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// get performs a GET request and decodes the response.
func (c *Client) get(path string, result any) error {
	req, err := http.NewRequest("GET", c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	return c.do(req, result)
}

// post performs a POST request with a JSON body and decodes the response.
func (c *Client) post(path string, body any, result any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest("POST", c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.do(req, result)
}

// doDelete performs a DELETE request.
func (c *Client) doDelete(path string) error {
	req, err := http.NewRequest("DELETE", c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	return c.do(req, nil)
}

// do executes an HTTP request with the auth header and handles errors. A
// *bytes.Buffer result receives the raw body.
func (c *Client) do(req *http.Request, result any) error {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		msg := fmt.Sprintf("server error: %s", http.StatusText(resp.StatusCode))
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
			msg = errResp.Error
		}
		return &Error{Status: resp.StatusCode, Message: msg}
	}

	switch r := result.(type) {
	case nil:
	case *bytes.Buffer:
		_, _ = r.Write(respBody)
	default:
		if len(respBody) > 0 {
			if err := json.Unmarshal(respBody, result); err != nil {
				return fmt.Errorf("decoding response: %w", err)
			}
		}
	}

	return nil
}
