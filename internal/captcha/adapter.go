// Package captcha isolates the tool from the third-party challenge widget.
// The Adapter waits for the widget API to become available, renders it once
// into a host element, and relays solved/expired/error callbacks.
package captcha

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

const (
	DefaultLoadTimeout  = 12 * time.Second
	DefaultPollInterval = 180 * time.Millisecond

	ThemeLight = "light"
	ThemeDark  = "dark"
)

var (
	// ErrDisposed is returned once the adapter has been disposed.
	ErrDisposed = errors.New("captcha: adapter disposed")
	// ErrMisconfigured is returned when required options are missing.
	ErrMisconfigured = errors.New("captcha: site key and loader are required")
)

// Widget is the challenge provider's API surface.
type Widget interface {
	// Render draws a challenge into host and returns the provider's widget id.
	Render(host string, params Params) (string, error)
	Reset(widgetID string)
	Remove(widgetID string)
}

// Params are handed to Widget.Render.
type Params struct {
	SiteKey   string
	Theme     string
	OnSolved  func(token string)
	OnExpired func()
	OnError   func(code string)
}

// Loader reports whether the widget API is available yet.
type Loader func() (Widget, bool)

// Callbacks receive widget events after the adapter has updated its token.
type Callbacks struct {
	OnSolved  func(token string)
	OnExpired func()
	OnError   func(err error)
}

// Options configures an Adapter.
type Options struct {
	SiteKey string
	// Host names the element the widget is rendered into.
	Host   string
	Loader Loader
	// Theme is read once, at render time.
	Theme        func() string
	Timeout      time.Duration
	PollInterval time.Duration
	Callbacks    Callbacks
}

// Adapter owns a single widget instance.
type Adapter struct {
	opts Options

	mu       sync.Mutex
	widget   Widget
	widgetID string
	rendered bool
	token    string
	disposed bool
	done     chan struct{}
}

// New creates an adapter; nothing is loaded until EnsureRendered.
func New(opts Options) *Adapter {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultLoadTimeout
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Host == "" {
		opts.Host = "captcha"
	}
	return &Adapter{opts: opts, done: make(chan struct{})}
}

// EnsureRendered makes sure the widget is on screen. The first call waits for
// the widget API and renders; later calls only reset the existing widget.
// It returns false with a nil error when the API did not appear in time.
func (a *Adapter) EnsureRendered(ctx context.Context) (bool, error) {
	if a.opts.SiteKey == "" || a.opts.Loader == nil {
		return false, ErrMisconfigured
	}
	if ok, err := a.resetIfRendered(); ok || err != nil {
		return ok, err
	}

	widget, err := a.waitForWidget(ctx)
	if err != nil || widget == nil {
		return false, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.disposed {
		return false, ErrDisposed
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if a.rendered {
		a.token = ""
		a.widget.Reset(a.widgetID)
		return true, nil
	}

	widgetID, err := widget.Render(a.opts.Host, Params{
		SiteKey:   a.opts.SiteKey,
		Theme:     a.theme(),
		OnSolved:  a.handleSolved,
		OnExpired: a.handleExpired,
		OnError:   a.handleError,
	})
	if err != nil {
		return false, fmt.Errorf("render captcha: %w", err)
	}
	a.widget = widget
	a.widgetID = widgetID
	a.rendered = true
	return true, nil
}

// Token returns the current solved token or "".
func (a *Adapter) Token() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.token
}

// Reset clears the local token and resets the widget if it is rendered.
func (a *Adapter) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.token = ""
	if a.rendered && !a.disposed {
		a.widget.Reset(a.widgetID)
	}
}

// Dispose removes the widget and silences all callbacks. Safe to call twice.
func (a *Adapter) Dispose() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.disposed {
		return
	}
	a.disposed = true
	a.token = ""
	close(a.done)
	if a.rendered {
		a.widget.Remove(a.widgetID)
		a.rendered = false
	}
}

func (a *Adapter) resetIfRendered() (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.disposed {
		return false, ErrDisposed
	}
	if !a.rendered {
		return false, nil
	}
	a.token = ""
	a.widget.Reset(a.widgetID)
	return true, nil
}

func (a *Adapter) waitForWidget(ctx context.Context) (Widget, error) {
	if widget, ok := a.opts.Loader(); ok {
		return widget, nil
	}
	deadline := time.NewTimer(a.opts.Timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(a.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-a.done:
			return nil, ErrDisposed
		case <-deadline.C:
			return nil, nil
		case <-ticker.C:
			if widget, ok := a.opts.Loader(); ok {
				return widget, nil
			}
		}
	}
}

func (a *Adapter) theme() string {
	if a.opts.Theme == nil {
		return ThemeLight
	}
	if strings.EqualFold(strings.TrimSpace(a.opts.Theme()), ThemeDark) {
		return ThemeDark
	}
	return ThemeLight
}

func (a *Adapter) handleSolved(token string) {
	a.mu.Lock()
	if a.disposed {
		a.mu.Unlock()
		return
	}
	a.token = token
	cb := a.opts.Callbacks.OnSolved
	a.mu.Unlock()
	if cb != nil {
		cb(token)
	}
}

func (a *Adapter) handleExpired() {
	a.mu.Lock()
	if a.disposed {
		a.mu.Unlock()
		return
	}
	a.token = ""
	cb := a.opts.Callbacks.OnExpired
	a.mu.Unlock()
	if cb != nil {
		cb()
	}
}

func (a *Adapter) handleError(code string) {
	a.mu.Lock()
	if a.disposed {
		a.mu.Unlock()
		return
	}
	a.token = ""
	cb := a.opts.Callbacks.OnError
	a.mu.Unlock()
	if cb != nil {
		cb(fmt.Errorf("captcha widget error: %s", code))
	}
}
