// Package marketplace talks to the task marketplace: login, remaining-task
// counts and the project listing.
package marketplace

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"task-monitor/internal/config"

	"golang.org/x/net/publicsuffix"
)

const (
	loginPath          = "/internal/loginNext/expert?redirect_url=marketplace"
	historyPath        = "/internal/experts/project/marketplace/history"
	remainingTasksPath = "/internal/user-projects/bulk-remaining-tasks"
	refererPath        = "/internal/experts/project/marketplace"

	csrfCookie = "_csrf"
)

// browserHeaders mimic a desktop browser; the service rejects bare clients
var browserHeaders = map[string]string{
	"User-Agent":         "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
	"Accept":             "application/json, text/plain, */*",
	"Accept-Language":    "en-US,en;q=0.9",
	"Accept-Encoding":    "gzip, deflate, br",
	"Content-Type":       "application/json",
	"Cache-Control":      "no-cache",
	"Pragma":             "no-cache",
	"DNT":                "1",
	"Sec-Fetch-Site":     "same-origin",
	"Sec-Fetch-Mode":     "cors",
	"Sec-Fetch-Dest":     "empty",
	"sec-ch-ua":          `"Chromium";v="122", "Not(A:Brand";v="24", "Google Chrome";v="122"`,
	"sec-ch-ua-mobile":   "?0",
	"sec-ch-ua-platform": `"Windows"`,
}

// Client represents a marketplace API client
type Client struct {
	BaseURL  string
	Email    string
	Password string
	Timeout  time.Duration
	// LoginDelayMin and LoginDelayMax bound the pause after login,
	// the remote session store needs a moment before it accepts the new session.
	LoginDelayMin time.Duration
	LoginDelayMax time.Duration
	Transport     http.RoundTripper
}

// NewClient creates a new marketplace client
func NewClient(cfg *config.Config) *Client {
	return &Client{
		BaseURL:       strings.TrimRight(cfg.Marketplace.BaseURL, "/"),
		Email:         cfg.Marketplace.Email,
		Password:      cfg.Marketplace.Password,
		Timeout:       cfg.HTTPTimeout(),
		LoginDelayMin: seconds(cfg.Marketplace.LoginDelay.MinSeconds),
		LoginDelayMax: seconds(cfg.Marketplace.LoginDelay.MaxSeconds),
	}
}

// Session is an authenticated marketplace session.
// It is created by Login and only lives for one poll cycle.
type Session struct {
	http    *http.Client
	baseURL string
	csrf    string
}

// CSRFToken returns the token issued at login
func (s *Session) CSRFToken() string {
	return s.csrf
}

// Header returns the headers sent on authenticated calls
func (s *Session) Header() http.Header {
	h := newBrowserHeader()
	h.Set("x-csrf-token", s.csrf)
	h.Set("Referer", s.baseURL+refererPath)
	h.Set("Origin", s.baseURL)
	return h
}

// Login authenticates with the configured credentials and returns a fresh session
func (c *Client) Login(ctx context.Context) (*Session, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("error creating cookie jar: %w", err)
	}
	httpClient := &http.Client{Timeout: c.Timeout, Jar: jar, Transport: c.Transport}

	payload, err := json.Marshal(map[string]string{"email": c.Email, "password": c.Password})
	if err != nil {
		return nil, fmt.Errorf("error encoding login payload: %w", err)
	}

	loginURL := c.BaseURL + loginPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, loginURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("error creating login request: %w", err)
	}
	req.Header = newBrowserHeader()

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, &RequestError{Op: "login", URL: loginURL, Err: err}
	}
	defer resp.Body.Close()

	body, _ := readBody(resp)
	if resp.StatusCode != http.StatusOK {
		return nil, &AuthError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	slog.Info("Login successful!")

	base, err := url.Parse(c.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", c.BaseURL, err)
	}
	session := &Session{
		http:    httpClient,
		baseURL: c.BaseURL,
		csrf:    csrfToken(resp, jar, resp.Request.URL, base),
	}
	if session.csrf == "" {
		slog.Warn("Login response did not set a CSRF token cookie", "cookie", csrfCookie)
	}

	if err := sleepContext(ctx, c.loginDelay()); err != nil {
		return nil, err
	}
	return session, nil
}

// loginDelay picks a uniformly random delay in [LoginDelayMin, LoginDelayMax]
func (c *Client) loginDelay() time.Duration {
	if c.LoginDelayMax <= c.LoginDelayMin {
		return c.LoginDelayMin
	}
	return c.LoginDelayMin + rand.N(c.LoginDelayMax-c.LoginDelayMin+1)
}

// csrfToken finds the CSRF cookie issued at login. The login response is
// checked first since the jar only returns cookies whose path matches the URL
// asked about.
func csrfToken(resp *http.Response, jar http.CookieJar, urls ...*url.URL) string {
	for _, cookie := range resp.Cookies() {
		if cookie.Name == csrfCookie && cookie.Value != "" {
			return cookie.Value
		}
	}
	for _, u := range urls {
		if u == nil {
			continue
		}
		for _, cookie := range jar.Cookies(u) {
			if cookie.Name == csrfCookie && cookie.Value != "" {
				return cookie.Value
			}
		}
	}
	return ""
}

// response is an answer read in full. Raw holds the bytes as received and
// Body the same bytes after content decoding.
type response struct {
	StatusCode int
	Header     http.Header
	Raw        []byte
	Body       []byte
}

func (r *response) decodeError(err error) *DecodeError {
	return &DecodeError{StatusCode: r.StatusCode, Header: r.Header.Clone(), Raw: r.Raw, Err: err}
}

// do sends an authenticated request and reads the whole answer
func (s *Session) do(ctx context.Context, op, method, rawURL string, payload any) (*response, error) {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("error encoding %s payload: %w", op, err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reqBody)
	if err != nil {
		return nil, fmt.Errorf("error creating %s request: %w", op, err)
	}
	req.Header = s.Header()
	req.Header.Set("Accept", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, &RequestError{Op: op, URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	slog.Info("Request URL", "op", op, "url", resp.Request.URL.String())
	slog.Info("Response status", "op", op, "status", resp.StatusCode)

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &RequestError{Op: op, URL: rawURL, Err: err}
	}
	r := &response{StatusCode: resp.StatusCode, Header: resp.Header, Raw: raw}
	if r.Body, err = decodeBody(resp.Header.Get("Content-Encoding"), raw); err != nil {
		return nil, r.decodeError(err)
	}
	return r, nil
}

func readBody(resp *http.Response) ([]byte, error) {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return raw, err
	}
	if body, err := decodeBody(resp.Header.Get("Content-Encoding"), raw); err == nil {
		return body, nil
	}
	return raw, nil
}

func newBrowserHeader() http.Header {
	h := make(http.Header, len(browserHeaders)+3)
	for k, v := range browserHeaders {
		h.Set(k, v)
	}
	return h
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// preview truncates a body for logging
func preview(body []byte, n int) string {
	if len(body) > n {
		body = body[:n]
	}
	return string(body)
}
