package captcha

import (
	"fmt"
	"sync"
	"time"
)

// DefaultTokenTTL matches the lifetime providers give a solved token.
const DefaultTokenTTL = 300 * time.Second

// ManualWidget is a Widget for terminals: the challenge is solved by pasting a
// provider response token. Solved tokens expire after the TTL.
type ManualWidget struct {
	ttl time.Duration

	mu        sync.Mutex
	seq       int
	instances map[string]*manualInstance
	latest    string
}

type manualInstance struct {
	host   string
	params Params
	expiry *time.Timer
}

// NewManualWidget creates a widget whose solved tokens live for ttl.
func NewManualWidget(ttl time.Duration) *ManualWidget {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &ManualWidget{ttl: ttl, instances: make(map[string]*manualInstance)}
}

// Loader reports the widget as immediately available.
func (w *ManualWidget) Loader() Loader {
	return func() (Widget, bool) { return w, true }
}

func (w *ManualWidget) Render(host string, params Params) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.seq++
	id := fmt.Sprintf("manual-%d", w.seq)
	w.instances[id] = &manualInstance{host: host, params: params}
	w.latest = id
	return id, nil
}

func (w *ManualWidget) Reset(widgetID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if inst, ok := w.instances[widgetID]; ok {
		inst.stopExpiry()
	}
}

func (w *ManualWidget) Remove(widgetID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if inst, ok := w.instances[widgetID]; ok {
		inst.stopExpiry()
		delete(w.instances, widgetID)
	}
	if w.latest == widgetID {
		w.latest = ""
	}
}

// Theme returns the theme the latest instance was rendered with.
func (w *ManualWidget) Theme() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if inst, ok := w.instances[w.latest]; ok {
		return inst.params.Theme
	}
	return ""
}

// Solve delivers token to the rendered challenge and arms its expiry.
func (w *ManualWidget) Solve(token string) error {
	w.mu.Lock()
	inst, ok := w.instances[w.latest]
	if !ok {
		w.mu.Unlock()
		return fmt.Errorf("no challenge is rendered")
	}
	inst.stopExpiry()
	onExpired := inst.params.OnExpired
	inst.expiry = time.AfterFunc(w.ttl, func() {
		if onExpired != nil {
			onExpired()
		}
	})
	onSolved := inst.params.OnSolved
	w.mu.Unlock()

	if onSolved != nil {
		onSolved(token)
	}
	return nil
}

// Fail reports a provider error code to the rendered challenge.
func (w *ManualWidget) Fail(code string) error {
	w.mu.Lock()
	inst, ok := w.instances[w.latest]
	if !ok {
		w.mu.Unlock()
		return fmt.Errorf("no challenge is rendered")
	}
	inst.stopExpiry()
	onError := inst.params.OnError
	w.mu.Unlock()

	if onError != nil {
		onError(code)
	}
	return nil
}

func (i *manualInstance) stopExpiry() {
	if i.expiry != nil {
		i.expiry.Stop()
		i.expiry = nil
	}
}
