// Package ui turns controller views into what the user sees: one of five
// display states with a message, plus the enabled state of every control.
package ui

import (
	"sync"
	"time"

	"workbench/internal/tool"
)

// MinDisplay is how long a message stays up before the next one replaces it.
const MinDisplay = 220 * time.Millisecond

// Display is the response dock's visual state.
type Display string

const (
	DisplayIdle     Display = "idle"
	DisplayPending  Display = "pending"
	DisplaySuccess  Display = "success"
	DisplayFail     Display = "fail"
	DisplayDisabled Display = "disabled"
)

// Controls is the enabled state of every interactive element.
type Controls struct {
	InputEnabled   bool
	PasteEnabled   bool
	ClearEnabled   bool
	PrimaryEnabled bool
	PrimaryLabel   string
	DialogOpen     bool
	VerifyEnabled  bool
	Input          string
	DownloadURL    string
}

// Renderer draws on the actual surface.
type Renderer interface {
	ShowMessage(display Display, message string)
	SetControls(Controls)
	Clear()
}

// Timer is the part of *time.Timer the projector uses.
type Timer interface {
	Stop() bool
}

// Clock abstracts time for tests.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// SystemClock is the wall clock.
var SystemClock Clock = systemClock{}

type message struct {
	display Display
	text    string
}

// Projector implements tool.Projector.
type Projector struct {
	renderer Renderer
	clock    Clock
	min      time.Duration

	mu       sync.Mutex
	shown    *message
	shownAt  time.Time
	queued   *message
	timer    Timer
	controls *Controls
}

// New creates a projector. A nil clock means the wall clock.
func New(renderer Renderer, clock Clock) *Projector {
	if clock == nil {
		clock = SystemClock
	}
	return &Projector{renderer: renderer, clock: clock, min: MinDisplay}
}

// SetMinDisplay overrides MinDisplay. Call it before the first Project.
func (p *Projector) SetMinDisplay(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if d >= 0 {
		p.min = d
	}
}

// Project applies controls immediately and rate-limits message changes.
func (p *Projector) Project(v tool.View) {
	controls := ControlsFor(v)
	next := message{display: DisplayFor(v), text: v.Message}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.controls == nil || *p.controls != controls {
		p.controls = &controls
		p.renderer.SetControls(controls)
	}

	if p.queued == nil && p.shown != nil && *p.shown == next {
		return
	}
	now := p.clock.Now()
	if p.shown == nil || now.Sub(p.shownAt) >= p.min {
		p.show(next, now)
		return
	}
	p.queued = &next
	if p.timer == nil {
		p.timer = p.clock.AfterFunc(p.min-now.Sub(p.shownAt), p.flush)
	}
}

// Clear drops any queued message and wipes the surface.
func (p *Projector) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	p.queued = nil
	p.shown = nil
	p.controls = nil
	p.renderer.Clear()
}

func (p *Projector) flush() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.timer = nil
	if p.queued == nil {
		return
	}
	next := *p.queued
	p.queued = nil
	p.show(next, p.clock.Now())
}

func (p *Projector) show(m message, now time.Time) {
	p.shown = &m
	p.shownAt = now
	p.renderer.ShowMessage(m.display, m.text)
}

// DisplayFor maps a controller state onto a display state.
func DisplayFor(v tool.View) Display {
	switch v.State {
	case tool.StateDisabled:
		return DisplayDisabled
	case tool.StateError:
		if v.Unavailable {
			return DisplayDisabled
		}
		return DisplayFail
	case tool.StateReady:
		return DisplaySuccess
	case tool.StateLoadingCaptcha, tool.StateSubmitting, tool.StatePolling:
		return DisplayPending
	default:
		return DisplayIdle
	}
}

// ControlsFor is a pure function of the view.
func ControlsFor(v tool.View) Controls {
	disabled := v.State == tool.StateDisabled
	busy := v.State.IsBusy()
	polling := v.State == tool.StatePolling

	c := Controls{
		InputEnabled:   !disabled && !busy && !polling,
		PasteEnabled:   !disabled && !busy,
		ClearEnabled:   !disabled,
		PrimaryEnabled: !disabled && !busy && v.Stage != tool.StagePending,
		DialogOpen:     v.DialogOpen,
		VerifyEnabled:  !disabled && !busy && v.DialogOpen && v.HasToken,
		Input:          v.Input,
		DownloadURL:    v.DownloadURL,
	}
	switch v.Stage {
	case tool.StagePending:
		c.PrimaryLabel = "Processing..."
	case tool.StageDownload:
		c.PrimaryLabel = "Download"
	default:
		c.PrimaryLabel = "Submit"
	}
	return c
}
