// Package validate normalizes and checks user input before any network call.
// All functions are pure.
package validate

import (
	"errors"
	"net/url"
	"strings"
	"unicode"
)

const (
	// DefaultMaxURLLength caps the raw length of a submitted link.
	DefaultMaxURLLength = 2048

	minSiteKeyLength = 8
	maxSiteKeyLength = 128

	// MinTokenLength and MaxTokenLength bound a captcha response token.
	MinTokenLength = 4
	MaxTokenLength = 4096

	maxVideoIDLength = 64
	canonicalWatch   = "https://www.youtube.com/watch?v="
)

// Validation errors carry the message shown to the user.
//
//nolint:stylecheck,revive // user-facing sentences
var (
	ErrEmptyURL       = errors.New("Please paste a YouTube link first.")
	ErrURLTooLong     = errors.New("That link is too long.")
	ErrMalformedURL   = errors.New("That does not look like a valid link.")
	ErrScheme         = errors.New("Only http and https links are supported.")
	ErrHost           = errors.New("Only YouTube links are supported.")
	ErrPlaylist       = errors.New("Playlists are not allowed.")
	ErrMissingVideoID = errors.New("The link does not contain a video ID.")

	ErrBackendURL = errors.New("The download service is not configured.")
	ErrSiteKey    = errors.New("Verification is not configured.")

	ErrMissingToken = errors.New("Please complete the verification first.")
	ErrTokenLength  = errors.New("The verification response is invalid. Please verify again.")
)

var youtubeHosts = map[string]struct{}{
	"youtube.com":       {},
	"www.youtube.com":   {},
	"m.youtube.com":     {},
	"music.youtube.com": {},
	"youtu.be":          {},
}

// URLInput validates a submitted link and returns its canonical
// https://www.youtube.com/watch?v=<id> form. maxLength <= 0 uses DefaultMaxURLLength.
func URLInput(raw string, maxLength int) (string, error) {
	if maxLength <= 0 {
		maxLength = DefaultMaxURLLength
	}
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", ErrEmptyURL
	}
	if len(trimmed) > maxLength {
		return "", ErrURLTooLong
	}

	parsed, err := url.Parse(trimmed)
	if err != nil || !parsed.IsAbs() || parsed.Host == "" {
		return "", ErrMalformedURL
	}
	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", ErrScheme
	}
	host := strings.ToLower(parsed.Hostname())
	if _, ok := youtubeHosts[host]; !ok {
		return "", ErrHost
	}

	query := parsed.Query()
	if _, hasList := query["list"]; hasList {
		return "", ErrPlaylist
	}
	urlPath := strings.TrimRight(parsed.Path, "/")
	if strings.EqualFold(urlPath, "/playlist") {
		return "", ErrPlaylist
	}

	var videoID string
	switch {
	case host == "youtu.be":
		videoID = firstSegment(urlPath)
	case strings.HasPrefix(strings.ToLower(urlPath), "/shorts/"):
		videoID = firstSegment(urlPath[len("/shorts"):])
	default:
		videoID = query.Get("v")
	}
	if !isVideoID(videoID) {
		return "", ErrMissingVideoID
	}
	return canonicalWatch + videoID, nil
}

// BackendURL checks the configured service base URL and returns it without a trailing slash.
func BackendURL(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", ErrBackendURL
	}
	parsed, err := url.Parse(trimmed)
	if err != nil || parsed.Host == "" {
		return "", ErrBackendURL
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", ErrBackendURL
	}
	if parsed.RawQuery != "" || parsed.Fragment != "" || parsed.User != nil {
		return "", ErrBackendURL
	}
	return strings.TrimRight(trimmed, "/"), nil
}

// SiteKey checks the public captcha site key.
func SiteKey(key string) error {
	key = strings.TrimSpace(key)
	if len(key) < minSiteKeyLength || len(key) > maxSiteKeyLength {
		return ErrSiteKey
	}
	for _, r := range key {
		if !isKeyRune(r) {
			return ErrSiteKey
		}
	}
	return nil
}

// CaptchaToken checks that a token is present and within length bounds.
func CaptchaToken(token string) error {
	if strings.TrimSpace(token) == "" {
		return ErrMissingToken
	}
	if len(token) < MinTokenLength || len(token) > MaxTokenLength {
		return ErrTokenLength
	}
	return nil
}

// MountOptions returns the prefill value for the input field taken from the
// `url` (preferred) or `u` query parameter. Control characters are stripped
// and the result is capped at maxLength runes.
func MountOptions(query url.Values, maxLength int) string {
	if maxLength <= 0 {
		maxLength = DefaultMaxURLLength
	}
	raw := query.Get("url")
	if strings.TrimSpace(raw) == "" {
		raw = query.Get("u")
	}
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, strings.TrimSpace(raw))

	runes := []rune(cleaned)
	if len(runes) > maxLength {
		runes = runes[:maxLength]
	}
	return string(runes)
}

func firstSegment(p string) string {
	p = strings.TrimPrefix(p, "/")
	if i := strings.IndexByte(p, '/'); i >= 0 {
		p = p[:i]
	}
	return p
}

func isVideoID(id string) bool {
	if id == "" || len(id) > maxVideoIDLength {
		return false
	}
	for _, r := range id {
		if !isKeyRune(r) {
			return false
		}
	}
	return true
}

func isKeyRune(r rune) bool {
	return r == '-' || r == '_' || r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r))
}
