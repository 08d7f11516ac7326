// Package client talks to the download service: captcha verification,
// job enqueue, job status and download links. Every failure is an *Error
// carrying one ErrorType.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"
)

const (
	verifyPath   = "/api/v1/captcha/verify"
	enqueuePath  = "/api/v1/ytdlp"
	jobPath      = "/api/v1/ytdlp/jobs/"
	downloadPath = "/api/v1/ytdlp/download/"

	defaultQuality = "best"
	defaultFormat  = "mp4"

	maxErrorBody = 64 << 10
)

// Config describes how to reach the service.
type Config struct {
	// BaseURL is the validated service root without a trailing slash.
	BaseURL   string
	UserAgent string
	// HTTPClient overrides the transport. It should carry a cookie jar: the
	// service ties enqueue to a preceding successful verification by cookie.
	HTTPClient *http.Client
}

// Client implements the download service operations.
type Client struct {
	baseURL   string
	userAgent string
	http      *http.Client
}

// Job is the subset of the backend job object the client reads.
type Job struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type verifyRequest struct {
	Captcha string `json:"captcha"`
}

type verifyResponse struct {
	Success bool `json:"success"`
}

type enqueueRequest struct {
	URL     string `json:"url"`
	Quality string `json:"quality"`
	Format  string `json:"format"`
}

type jobEnvelope struct {
	Job *Job `json:"job"`
}

type errorEnvelope struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// New creates a client. No transport-level timeout is set; requests are
// bounded by the caller's context.
func New(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		jar, _ := cookiejar.New(nil) // never fails without options
		httpClient = &http.Client{Jar: jar}
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = "workbench/1.0"
	}
	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		userAgent: userAgent,
		http:      httpClient,
	}
}

// VerifyCaptcha posts the token. A false result is a legitimate negative
// outcome, not an error.
func (c *Client) VerifyCaptcha(ctx context.Context, token string) (bool, error) {
	var resp verifyResponse
	if err := c.do(ctx, http.MethodPost, verifyPath, verifyRequest{Captcha: token}, &resp); err != nil {
		return false, err
	}
	return resp.Success, nil
}

// Enqueue submits a normalized video URL and returns the job id.
func (c *Client) Enqueue(ctx context.Context, videoURL string) (string, error) {
	var resp jobEnvelope
	body := enqueueRequest{URL: videoURL, Quality: defaultQuality, Format: defaultFormat}
	if err := c.do(ctx, http.MethodPost, enqueuePath, body, &resp); err != nil {
		return "", err
	}
	if resp.Job == nil || strings.TrimSpace(resp.Job.ID) == "" {
		return "", &Error{Type: ErrBadRequest, Err: errors.New("response has no job id")}
	}
	return resp.Job.ID, nil
}

// CheckJobStatus fetches the job and maps its status.
func (c *Client) CheckJobStatus(ctx context.Context, jobID string) (JobStatus, error) {
	var resp jobEnvelope
	if err := c.do(ctx, http.MethodGet, jobPath+url.PathEscape(jobID), nil, &resp); err != nil {
		return "", err
	}
	if resp.Job == nil {
		return StatusPending, nil
	}
	return ParseStatus(resp.Job.Status), nil
}

// DownloadURL builds the absolute link the browser navigates to. No request is made.
func (c *Client) DownloadURL(jobID string) string {
	return c.baseURL + downloadPath + url.PathEscape(jobID)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return &Error{Type: ErrUnknown, Err: fmt.Errorf("encode request: %w", err)}
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return &Error{Type: ErrUnknown, Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return classifyTransport(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if ctx.Err() != nil {
			return &Error{Type: ErrAborted, Err: ctx.Err()}
		}
		return &Error{Type: ErrUnknown, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func classifyTransport(ctx context.Context, err error) error {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return &Error{Type: ErrAborted, Err: err}
	}
	// net/http reports every dial, DNS, TLS and connection failure as *url.Error.
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return &Error{Type: ErrNetworkDown, Err: err}
	}
	return &Error{Type: ErrUnknown, Err: err}
}

func statusError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	clientErr := &Error{
		Type:       typeForStatus(resp.StatusCode),
		StatusCode: resp.StatusCode,
		Err:        fmt.Errorf("http status %d", resp.StatusCode),
	}
	var envelope errorEnvelope
	if json.Unmarshal(raw, &envelope) == nil {
		clientErr.Detail = strings.TrimSpace(envelope.Message)
		if clientErr.Detail == "" {
			clientErr.Detail = strings.TrimSpace(envelope.Error)
		}
	}
	if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" && clientErr.Type == ErrRateLimited {
		if d, err := time.ParseDuration(retryAfter + "s"); err == nil {
			clientErr.Err = fmt.Errorf("http status %d, retry after %v", resp.StatusCode, d)
		}
	}
	return clientErr
}
