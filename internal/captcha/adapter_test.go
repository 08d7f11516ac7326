package captcha

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeWidget struct {
	mu      sync.Mutex
	renders int
	resets  int
	removed int
	params  Params
}

func (f *fakeWidget) Render(host string, params Params) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.renders++
	f.params = params
	return "w1", nil
}

func (f *fakeWidget) Reset(string) {
	f.mu.Lock()
	f.resets++
	f.mu.Unlock()
}

func (f *fakeWidget) Remove(string) {
	f.mu.Lock()
	f.removed++
	f.mu.Unlock()
}

func (f *fakeWidget) counts() (int, int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.renders, f.resets, f.removed
}

func readyLoader(w Widget) Loader {
	return func() (Widget, bool) { return w, true }
}

func TestEnsureRenderedRendersOnce(t *testing.T) {
	widget := &fakeWidget{}
	a := New(Options{SiteKey: "site-key-123", Loader: readyLoader(widget)})

	for i := 0; i < 3; i++ {
		ok, err := a.EnsureRendered(context.Background())
		if err != nil || !ok {
			t.Fatalf("call %d: ok=%v err=%v", i, ok, err)
		}
	}
	renders, resets, _ := widget.counts()
	if renders != 1 || resets != 2 {
		t.Fatalf("expected 1 render and 2 resets, got %d renders %d resets", renders, resets)
	}
}

func TestCallbacksUpdateToken(t *testing.T) {
	widget := &fakeWidget{}
	var solved, expired, failed atomic.Int32
	a := New(Options{
		SiteKey: "site-key-123",
		Loader:  readyLoader(widget),
		Callbacks: Callbacks{
			OnSolved:  func(string) { solved.Add(1) },
			OnExpired: func() { expired.Add(1) },
			OnError:   func(error) { failed.Add(1) },
		},
	})
	if _, err := a.EnsureRendered(context.Background()); err != nil {
		t.Fatalf("render: %v", err)
	}

	widget.params.OnSolved("tok1")
	if a.Token() != "tok1" || solved.Load() != 1 {
		t.Fatalf("expected token tok1 after solve, got %q", a.Token())
	}
	widget.params.OnExpired()
	if a.Token() != "" || expired.Load() != 1 {
		t.Fatalf("expected token cleared after expiry")
	}
	widget.params.OnSolved("tok2")
	widget.params.OnError("110200")
	if a.Token() != "" || failed.Load() != 1 {
		t.Fatalf("expected token cleared after error")
	}
}

func TestResetIsIdempotent(t *testing.T) {
	widget := &fakeWidget{}
	a := New(Options{SiteKey: "site-key-123", Loader: readyLoader(widget)})
	a.Reset()
	if a.Token() != "" {
		t.Fatalf("expected empty token")
	}
	if _, err := a.EnsureRendered(context.Background()); err != nil {
		t.Fatalf("render: %v", err)
	}
	widget.params.OnSolved("tok1")
	a.Reset()
	if a.Token() != "" {
		t.Fatalf("expected empty token after first reset")
	}
	a.Reset()
	if a.Token() != "" {
		t.Fatalf("expected empty token after second reset")
	}
}

func TestThemeReadOnceAtRender(t *testing.T) {
	widget := &fakeWidget{}
	var reads atomic.Int32
	a := New(Options{
		SiteKey: "site-key-123",
		Loader:  readyLoader(widget),
		Theme: func() string {
			reads.Add(1)
			return "DARK"
		},
	})
	_, _ = a.EnsureRendered(context.Background())
	_, _ = a.EnsureRendered(context.Background())
	if widget.params.Theme != ThemeDark {
		t.Fatalf("expected dark theme, got %q", widget.params.Theme)
	}
	if reads.Load() != 1 {
		t.Fatalf("expected theme read once, got %d", reads.Load())
	}
}

func TestWaitsForWidgetAPI(t *testing.T) {
	widget := &fakeWidget{}
	var probes atomic.Int32
	a := New(Options{
		SiteKey:      "site-key-123",
		PollInterval: 5 * time.Millisecond,
		Loader: func() (Widget, bool) {
			if probes.Add(1) < 4 {
				return nil, false
			}
			return widget, true
		},
	})
	ok, err := a.EnsureRendered(context.Background())
	if err != nil || !ok {
		t.Fatalf("expected render after API appeared, ok=%v err=%v", ok, err)
	}
	if probes.Load() < 4 {
		t.Fatalf("expected at least 4 probes, got %d", probes.Load())
	}
}

func TestLoadTimeout(t *testing.T) {
	a := New(Options{
		SiteKey:      "site-key-123",
		Timeout:      30 * time.Millisecond,
		PollInterval: 5 * time.Millisecond,
		Loader:       func() (Widget, bool) { return nil, false },
	})
	ok, err := a.EnsureRendered(context.Background())
	if ok || err != nil {
		t.Fatalf("expected false without error on timeout, ok=%v err=%v", ok, err)
	}
}

func TestLoadAbort(t *testing.T) {
	a := New(Options{
		SiteKey:      "site-key-123",
		PollInterval: 5 * time.Millisecond,
		Loader:       func() (Widget, bool) { return nil, false },
	})
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)
	if _, err := a.EnsureRendered(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestDisposeStopsWaitingAndCallbacks(t *testing.T) {
	a := New(Options{
		SiteKey:      "site-key-123",
		PollInterval: 5 * time.Millisecond,
		Loader:       func() (Widget, bool) { return nil, false },
	})
	time.AfterFunc(20*time.Millisecond, a.Dispose)
	if _, err := a.EnsureRendered(context.Background()); !errors.Is(err, ErrDisposed) {
		t.Fatalf("expected ErrDisposed, got %v", err)
	}

	widget := &fakeWidget{}
	var solved atomic.Int32
	b := New(Options{
		SiteKey:   "site-key-123",
		Loader:    readyLoader(widget),
		Callbacks: Callbacks{OnSolved: func(string) { solved.Add(1) }},
	})
	_, _ = b.EnsureRendered(context.Background())
	b.Dispose()
	b.Dispose()
	widget.params.OnSolved("late")
	if solved.Load() != 0 || b.Token() != "" {
		t.Fatalf("callbacks must be ignored after dispose")
	}
	if _, _, removed := widget.counts(); removed != 1 {
		t.Fatalf("expected widget removed once, got %d", removed)
	}
	if _, err := b.EnsureRendered(context.Background()); !errors.Is(err, ErrDisposed) {
		t.Fatalf("expected ErrDisposed after dispose, got %v", err)
	}
}

func TestManualWidgetExpiry(t *testing.T) {
	widget := NewManualWidget(20 * time.Millisecond)
	expired := make(chan struct{}, 1)
	a := New(Options{
		SiteKey: "site-key-123",
		Loader:  widget.Loader(),
		Callbacks: Callbacks{
			OnExpired: func() { expired <- struct{}{} },
		},
	})
	if err := widget.Solve("early-token"); err == nil {
		t.Fatalf("expected error before render")
	}
	if _, err := a.EnsureRendered(context.Background()); err != nil {
		t.Fatalf("render: %v", err)
	}
	if err := widget.Solve("manual-token"); err != nil {
		t.Fatalf("solve: %v", err)
	}
	if a.Token() != "manual-token" {
		t.Fatalf("expected token to be captured, got %q", a.Token())
	}
	select {
	case <-expired:
	case <-time.After(2 * time.Second):
		t.Fatalf("token did not expire")
	}
	if a.Token() != "" {
		t.Fatalf("expected token cleared after expiry")
	}
}
