package tool

import (
	"context"
	"errors"

	"workbench/internal/client"
)

// State is the controller's lifecycle state.
type State int

const (
	StateIdle State = iota
	StateAwaitingCaptcha
	StateLoadingCaptcha
	StateSubmitting
	StatePolling
	StateReady
	StateError
	StateDisabled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateAwaitingCaptcha:
		return "AWAITING_CAPTCHA"
	case StateLoadingCaptcha:
		return "LOADING_CAPTCHA"
	case StateSubmitting:
		return "SUBMITTING"
	case StatePolling:
		return "POLLING"
	case StateReady:
		return "READY"
	case StateError:
		return "ERROR"
	case StateDisabled:
		return "DISABLED"
	default:
		return "UNKNOWN"
	}
}

// IsBusy reports whether a request the user must not interrupt is in flight.
func (s State) IsBusy() bool {
	return s == StateSubmitting || s == StateLoadingCaptcha
}

// Stage is what the primary action button currently does.
type Stage int

const (
	StageSubmit Stage = iota
	StagePending
	StageDownload
)

func (s Stage) String() string {
	switch s {
	case StageSubmit:
		return "submit"
	case StagePending:
		return "pending"
	case StageDownload:
		return "download"
	default:
		return "unknown"
	}
}

// View is everything a projector needs to present the tool.
type View struct {
	State   State
	Stage   Stage
	Message string
	// Unavailable marks errors caused by an unreachable service.
	Unavailable bool
	Input       string
	DialogOpen  bool
	HasToken    bool
	DownloadURL string
}

// API is the download service.
type API interface {
	VerifyCaptcha(ctx context.Context, token string) (bool, error)
	Enqueue(ctx context.Context, videoURL string) (string, error)
	CheckJobStatus(ctx context.Context, jobID string) (client.JobStatus, error)
	DownloadURL(jobID string) string
}

// Captcha is the challenge adapter.
type Captcha interface {
	EnsureRendered(ctx context.Context) (bool, error)
	Token() string
	Reset()
	Dispose()
}

// ErrClipboardUnavailable is returned by a Clipboard that cannot be read at all.
var ErrClipboardUnavailable = errors.New("clipboard unavailable")

// Clipboard reads text the user copied.
type Clipboard interface {
	Read(ctx context.Context) (string, error)
}

// Opener opens a download link outside the tool.
type Opener interface {
	Open(link string) error
}

// Projector presents views. Project is called on every transition.
type Projector interface {
	Project(View)
	Clear()
}
