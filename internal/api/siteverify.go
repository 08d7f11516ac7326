package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"workbench/internal/retry"
)

const siteverifyTimeout = 10 * time.Second

// Verifier checks a captcha response token with the provider.
type Verifier interface {
	Verify(ctx context.Context, token, remoteIP string) (bool, error)
}

// AllowAll accepts every non-empty token. Only for local development.
type AllowAll struct{}

func (AllowAll) Verify(_ context.Context, token, _ string) (bool, error) {
	return strings.TrimSpace(token) != "", nil
}

// SiteVerifier talks to a Turnstile-compatible siteverify endpoint.
type SiteVerifier struct {
	Endpoint   string
	Secret     string
	HTTPClient *http.Client
	Retry      retry.Config
}

// NewSiteVerifier creates a verifier with the default retry policy.
func NewSiteVerifier(endpoint, secret string) *SiteVerifier {
	return &SiteVerifier{
		Endpoint:   endpoint,
		Secret:     secret,
		HTTPClient: &http.Client{Timeout: siteverifyTimeout},
		Retry:      retry.DefaultConfig(),
	}
}

type siteverifyResponse struct {
	Success    bool     `json:"success"`
	ErrorCodes []string `json:"error-codes"`
}

var errNoSecret = errors.New("captcha secret is not configured")

// Verify posts the token and reports the provider's verdict. Transport
// failures and 5xx answers are retried; a 4xx answer is final.
func (v *SiteVerifier) Verify(ctx context.Context, token, remoteIP string) (bool, error) {
	if v.Secret == "" {
		return false, errNoSecret
	}
	form := url.Values{}
	form.Set("secret", v.Secret)
	form.Set("response", token)
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}

	var verdict siteverifyResponse
	err := retry.Do(ctx, v.Retry, nil, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.Endpoint, strings.NewReader(form.Encode()))
		if err != nil {
			return retry.Permanent(fmt.Errorf("build siteverify request: %w", err))
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err := v.HTTPClient.Do(req)
		if err != nil {
			return fmt.Errorf("siteverify request: %w", err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode >= http.StatusInternalServerError:
			return fmt.Errorf("siteverify status %d", resp.StatusCode)
		case resp.StatusCode >= http.StatusBadRequest:
			return retry.Permanent(fmt.Errorf("siteverify status %d", resp.StatusCode))
		}
		if err := json.NewDecoder(resp.Body).Decode(&verdict); err != nil {
			return retry.Permanent(fmt.Errorf("decode siteverify: %w", err))
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	if !verdict.Success {
		log.Debug().Strs("error_codes", verdict.ErrorCodes).Msg("captcha rejected by provider")
	}
	return verdict.Success, nil
}
