// Package tool implements the download tool's state machine: validation,
// captcha, verify, enqueue, polling and download, with a single cancellable
// operation in flight at any time.
//
// All state lives on one event-loop goroutine. User actions and async
// completions are posted to it as closures, so they never run concurrently.
package tool

import (
	"context"
	"errors"
	"strings"
	"unicode"

	"github.com/rs/zerolog/log"

	"workbench/internal/captcha"
	"workbench/internal/client"
	"workbench/internal/poll"
	"workbench/internal/validate"
)

const (
	msgCaptchaDisabled = "Downloads are turned off right now."
	msgLoadingCaptcha  = "Loading verification..."
	msgAwaitCaptcha    = "Complete the verification to continue."
	msgCaptchaSolved   = "Verified. Click Verify and Continue."
	msgCaptchaLoadFail = "Verification could not be loaded. Please try again."
	msgCaptchaExpired  = "Verification expired. Please verify again."
	msgCaptchaError    = "Verification failed. Please try again."
	msgVerifying       = "Verifying..."
	msgStarting        = "Starting download..."
	msgVerifyRejected  = "Verification was not accepted. Please verify again."
	msgPolling         = "Processing your download..."
	msgJobFailed       = "Download failed. Please try another video."
	msgJobTimeout      = "This is taking longer than expected. Please try again later."
	msgJobReady        = "Your download is ready."
	msgDownloadStarted = "Download started."
	msgOpenFailed      = "Could not open the download link."
	msgCleared         = "Fields cleared."
	msgPasted          = "Link pasted from clipboard."
	msgClipboardNone   = "Clipboard access is not available. Paste the link manually."
	msgClipboardFailed = "Could not read from the clipboard."

	eventBuffer = 64
)

var errPollTimeout = errors.New("job did not finish in time")

// Options configures a Controller.
type Options struct {
	BackendURL     string
	SiteKey        string
	CaptchaEnabled bool
	MaxURLLength   int
	Poll           poll.Options
	// InitialInput prefills the link field (mount options).
	InitialInput string
}

// Deps are the collaborators the controller drives.
type Deps struct {
	// NewAPI is only called when the configuration is valid.
	NewAPI func(baseURL string) API
	// NewCaptcha builds the adapter with callbacks wired to the controller.
	NewCaptcha func(captcha.Callbacks) Captcha
	Clipboard  Clipboard
	Opener     Opener
	Projector  Projector
}

type operation struct {
	id     uint64
	ctx    context.Context
	cancel context.CancelFunc
}

// Controller owns the tool lifecycle.
type Controller struct {
	opts Options
	deps Deps

	api     API
	captcha Captcha

	events  chan func()
	stopped chan struct{}

	baseCtx    context.Context
	baseCancel context.CancelFunc

	// Everything below is owned by the event loop.
	state       State
	stage       Stage
	message     string
	unavailable bool
	input       string
	pendingURL  string
	downloadURL string
	dialogOpen  bool
	op          *operation
	seq         uint64
	tornDown    bool
}

// New mounts the controller. An invalid backend URL or site key, or a
// disabled captcha feature, leaves it permanently DISABLED and no network
// call is ever made.
func New(opts Options, deps Deps) *Controller {
	if opts.Poll.MaxAttempts <= 0 {
		opts.Poll.MaxAttempts = poll.JobMaxAttempts
	}
	if opts.Poll.Interval <= 0 {
		opts.Poll.Interval = poll.JobInterval
	}
	baseCtx, baseCancel := context.WithCancel(context.Background())
	c := &Controller{
		opts:       opts,
		deps:       deps,
		events:     make(chan func(), eventBuffer),
		stopped:    make(chan struct{}),
		baseCtx:    baseCtx,
		baseCancel: baseCancel,
		input:      opts.InitialInput,
	}

	if reason := c.mount(); reason != "" {
		c.state = StateDisabled
		c.message = reason
		log.Warn().Str("reason", reason).Msg("download tool disabled")
	}
	c.project()

	go c.run()
	return c
}

func (c *Controller) mount() string {
	baseURL, err := validate.BackendURL(c.opts.BackendURL)
	if err != nil {
		return err.Error()
	}
	if err := validate.SiteKey(c.opts.SiteKey); err != nil {
		return err.Error()
	}
	if !c.opts.CaptchaEnabled {
		return msgCaptchaDisabled
	}
	c.api = c.deps.NewAPI(baseURL)
	c.captcha = c.deps.NewCaptcha(captcha.Callbacks{
		OnSolved:  func(string) { c.post(c.onCaptchaSolved) },
		OnExpired: func() { c.post(c.onCaptchaExpired) },
		OnError:   func(err error) { c.post(func() { c.onCaptchaError(err) }) },
	})
	return ""
}

func (c *Controller) run() {
	defer close(c.stopped)
	for fn := range c.events {
		fn()
		if c.tornDown {
			return
		}
	}
}

// post queues fn on the event loop. It is dropped after teardown.
func (c *Controller) post(fn func()) {
	select {
	case c.events <- fn:
	case <-c.stopped:
	}
}

// do runs fn on the event loop and waits for it.
func (c *Controller) do(fn func()) {
	done := make(chan struct{})
	c.post(func() {
		defer close(done)
		fn()
	})
	select {
	case <-done:
	case <-c.stopped:
	}
}

// spawn runs work off the loop and delivers its result back onto the loop,
// unless op has been superseded or cancelled in the meantime.
func spawn[T any](c *Controller, op *operation, work func(ctx context.Context) (T, error), then func(T, error)) {
	go func() {
		value, err := work(op.ctx)
		c.post(func() {
			if c.op != op || op.ctx.Err() != nil {
				return
			}
			then(value, err)
		})
	}()
}

// SetInput replaces the link field text.
func (c *Controller) SetInput(text string) {
	c.do(func() {
		if c.state == StateDisabled || c.state.IsBusy() || c.stage == StagePending {
			return
		}
		c.input = text
		c.project()
	})
}

// Submit validates the link and opens the captcha dialog.
func (c *Controller) Submit() { c.do(c.handleSubmit) }

// PrimaryAction submits or, once a download is ready, opens it.
func (c *Controller) PrimaryAction() {
	c.do(func() {
		switch c.stage {
		case StageSubmit:
			c.handleSubmit()
		case StageDownload:
			c.handleDownload()
		}
	})
}

// Verify sends the solved captcha, enqueues the job and starts polling.
func (c *Controller) Verify() { c.do(c.handleVerify) }

// Clear cancels everything and empties the form.
func (c *Controller) Clear() { c.do(c.handleClear) }

// Paste fills the link field from the clipboard.
func (c *Controller) Paste() { c.do(c.handlePaste) }

// CloseDialog dismisses the captcha dialog and abandons the pending submit.
func (c *Controller) CloseDialog() { c.do(c.handleCloseDialog) }

// Teardown cancels the active operation, disposes the captcha and stops the
// event loop. The controller is unusable afterwards.
func (c *Controller) Teardown() {
	c.do(func() {
		if c.tornDown {
			return
		}
		c.cancelOperation()
		if c.captcha != nil {
			c.captcha.Dispose()
		}
		c.dialogOpen = false
		c.pendingURL = ""
		c.downloadURL = ""
		c.deps.Projector.Clear()
		c.baseCancel()
		c.tornDown = true
	})
}

// Snapshot returns the current view. After teardown it returns the zero View.
func (c *Controller) Snapshot() View {
	var v View
	c.do(func() { v = c.view() })
	return v
}

func (c *Controller) handleSubmit() {
	if c.state == StateDisabled || c.state.IsBusy() || c.stage != StageSubmit {
		return
	}
	normalized, err := validate.URLInput(c.input, c.opts.MaxURLLength)
	if err != nil {
		c.transition(StateError, err.Error())
		return
	}

	c.pendingURL = normalized
	c.downloadURL = ""
	c.dialogOpen = true
	op := c.begin()
	c.transition(StateLoadingCaptcha, msgLoadingCaptcha)

	spawn(c, op, c.captcha.EnsureRendered, func(ok bool, err error) {
		c.finish(op)
		if client.IsAborted(err) {
			return
		}
		if err != nil || !ok {
			log.Warn().Err(err).Msg("captcha load failed")
			c.transition(StateError, msgCaptchaLoadFail)
			return
		}
		if c.captcha.Token() != "" {
			c.transition(StateAwaitingCaptcha, msgCaptchaSolved)
			return
		}
		c.transition(StateAwaitingCaptcha, msgAwaitCaptcha)
	})
}

func (c *Controller) handleVerify() {
	if c.state == StateDisabled || c.state.IsBusy() || !c.dialogOpen || c.stage != StageSubmit {
		return
	}
	token := c.captcha.Token()
	if err := validate.CaptchaToken(token); err != nil {
		c.transition(StateError, err.Error())
		return
	}
	videoURL, err := validate.URLInput(c.pendingURL, c.opts.MaxURLLength)
	if err != nil {
		c.transition(StateError, err.Error())
		return
	}

	op := c.begin()
	c.transition(StateSubmitting, msgVerifying)

	spawn(c, op, func(ctx context.Context) (bool, error) {
		return c.api.VerifyCaptcha(ctx, token)
	}, func(verified bool, err error) {
		if err != nil {
			c.fail(op, err)
			return
		}
		if !verified {
			c.finish(op)
			c.stage = StageSubmit
			c.captcha.Reset()
			c.transition(StateError, msgVerifyRejected)
			return
		}
		// the verify call consumed the token
		c.captcha.Reset()
		c.transition(StateSubmitting, msgStarting)
		c.enqueue(op, videoURL)
	})
}

func (c *Controller) enqueue(op *operation, videoURL string) {
	spawn(c, op, func(ctx context.Context) (string, error) {
		return c.api.Enqueue(ctx, videoURL)
	}, func(jobID string, err error) {
		if err != nil {
			c.fail(op, err)
			return
		}
		log.Debug().Str("job_id", jobID).Msg("job enqueued")
		c.captcha.Reset()
		c.dialogOpen = false
		c.pendingURL = ""
		c.stage = StagePending
		c.transition(StatePolling, msgPolling)
		c.awaitJob(op, jobID)
	})
}

func (c *Controller) awaitJob(op *operation, jobID string) {
	spawn(c, op, func(ctx context.Context) (client.JobStatus, error) {
		status, done, err := poll.Do(ctx, c.opts.Poll, func(ctx context.Context, attempt int) (poll.Result[client.JobStatus], error) {
			status, err := c.api.CheckJobStatus(ctx, jobID)
			if err != nil {
				return poll.Result[client.JobStatus]{}, err
			}
			log.Debug().Str("job_id", jobID).Int("attempt", attempt).Str("status", string(status)).Msg("job status")
			return poll.Result[client.JobStatus]{Done: status.IsTerminal(), Value: status}, nil
		})
		if err != nil {
			return "", err
		}
		if !done {
			return "", errPollTimeout
		}
		return status, nil
	}, func(status client.JobStatus, err error) {
		switch {
		case errors.Is(err, errPollTimeout):
			c.finish(op)
			c.stage = StageSubmit
			c.transition(StateError, msgJobTimeout)
		case err != nil:
			c.fail(op, err)
		case status == client.StatusFail:
			c.finish(op)
			c.stage = StageSubmit
			c.transition(StateError, msgJobFailed)
		default:
			c.finish(op)
			c.downloadURL = c.api.DownloadURL(jobID)
			c.stage = StageDownload
			c.transition(StateReady, msgJobReady)
		}
	})
}

func (c *Controller) handleDownload() {
	if c.state == StateDisabled || c.downloadURL == "" {
		return
	}
	if err := c.deps.Opener.Open(c.downloadURL); err != nil {
		log.Warn().Err(err).Str("url", c.downloadURL).Msg("open download failed")
		c.transition(StateError, msgOpenFailed)
		return
	}
	c.transition(StateReady, msgDownloadStarted)
}

func (c *Controller) handleClear() {
	if c.state == StateDisabled {
		return
	}
	c.cancelOperation()
	c.input = ""
	c.pendingURL = ""
	c.downloadURL = ""
	c.stage = StageSubmit
	c.dialogOpen = false
	c.captcha.Reset()
	c.transition(StateReady, msgCleared)
}

func (c *Controller) handlePaste() {
	if c.state == StateDisabled || c.state.IsBusy() {
		return
	}
	op := c.begin()
	spawn(c, op, c.deps.Clipboard.Read, func(text string, err error) {
		c.finish(op)
		switch {
		case errors.Is(err, ErrClipboardUnavailable):
			c.transition(StateError, msgClipboardNone)
		case err != nil:
			log.Debug().Err(err).Msg("clipboard read failed")
			c.transition(StateError, msgClipboardFailed)
		default:
			c.input = sanitizePaste(text, c.opts.MaxURLLength)
			c.transition(StateReady, msgPasted)
		}
	})
}

func (c *Controller) handleCloseDialog() {
	if c.state == StateDisabled || !c.dialogOpen {
		return
	}
	c.cancelOperation()
	c.dialogOpen = false
	c.pendingURL = ""
	c.captcha.Reset()
	c.transition(StateIdle, "")
}

func (c *Controller) onCaptchaSolved() {
	if c.state == StateDisabled || !c.dialogOpen || c.state.IsBusy() {
		c.project()
		return
	}
	c.transition(StateAwaitingCaptcha, msgCaptchaSolved)
}

func (c *Controller) onCaptchaExpired() {
	if c.state == StateDisabled || !c.dialogOpen || c.state.IsBusy() {
		c.project()
		return
	}
	c.transition(StateError, msgCaptchaExpired)
}

func (c *Controller) onCaptchaError(err error) {
	if c.state == StateDisabled || !c.dialogOpen || c.state.IsBusy() {
		c.project()
		return
	}
	log.Debug().Err(err).Msg("captcha widget error")
	c.transition(StateError, msgCaptchaError)
}

// fail applies the error policy to a failed verify, enqueue or status check.
func (c *Controller) fail(op *operation, err error) {
	c.finish(op)
	kind := client.TypeOf(err)
	if kind == client.ErrAborted {
		return
	}
	c.stage = StageSubmit
	log.Debug().Err(err).Str("error_type", string(kind)).Msg("tool request failed")

	message := kind.Message()
	var clientErr *client.Error
	if errors.As(err, &clientErr) {
		message = clientErr.UserMessage()
	}
	switch kind {
	case client.ErrNetworkDown, client.ErrServerError:
		c.setState(StateError, message, true)
	case client.ErrUnauthorized:
		c.captcha.Reset()
		c.transition(StateError, message)
	default:
		c.transition(StateError, message)
	}
}

// begin cancels any running operation and starts a new one.
func (c *Controller) begin() *operation {
	c.cancelOperation()
	c.seq++
	ctx, cancel := context.WithCancel(c.baseCtx)
	c.op = &operation{id: c.seq, ctx: ctx, cancel: cancel}
	return c.op
}

// finish releases op if it is still the current one.
func (c *Controller) finish(op *operation) {
	if c.op == op {
		op.cancel()
		c.op = nil
	}
}

func (c *Controller) cancelOperation() {
	if c.op == nil {
		return
	}
	log.Debug().Uint64("op", c.op.id).Msg("operation cancelled")
	c.op.cancel()
	c.op = nil
	if c.stage == StagePending {
		c.stage = StageSubmit
	}
}

func (c *Controller) transition(state State, message string) {
	c.setState(state, message, false)
}

// setState projects the new state. A failure also drops a finished download.
func (c *Controller) setState(state State, message string, unavailable bool) {
	if c.state == StateDisabled {
		return
	}
	if state == StateError && c.stage == StageDownload {
		c.stage = StageSubmit
		c.downloadURL = ""
	}
	c.state = state
	c.message = message
	c.unavailable = unavailable
	log.Debug().Str("state", state.String()).Str("stage", c.stage.String()).Msg("tool transition")
	c.project()
}

func (c *Controller) project() {
	c.deps.Projector.Project(c.view())
}

func (c *Controller) view() View {
	hasToken := false
	if c.captcha != nil {
		hasToken = c.captcha.Token() != ""
	}
	return View{
		State:       c.state,
		Stage:       c.stage,
		Message:     c.message,
		Unavailable: c.unavailable,
		Input:       c.input,
		DialogOpen:  c.dialogOpen,
		HasToken:    hasToken,
		DownloadURL: c.downloadURL,
	}
}

func sanitizePaste(text string, maxLength int) string {
	if maxLength <= 0 {
		maxLength = validate.DefaultMaxURLLength
	}
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, strings.TrimSpace(text))
	runes := []rune(cleaned)
	if len(runes) > maxLength {
		runes = runes[:maxLength]
	}
	return string(runes)
}
