// Package console is the terminal front-end of the workbench.
package console

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"workbench/internal/ui"
)

// Renderer prints the response dock and control state as plain lines.
type Renderer struct {
	mu  sync.Mutex
	out io.Writer
}

// NewRenderer creates a renderer writing to out.
func NewRenderer(out io.Writer) *Renderer {
	return &Renderer{out: out}
}

func (r *Renderer) ShowMessage(display ui.Display, message string) {
	if message == "" {
		return
	}
	r.printf("[%s] %s\n", display, message)
}

func (r *Renderer) SetControls(c ui.Controls) {
	var b strings.Builder
	fmt.Fprintf(&b, "  %s", onOff("input", c.InputEnabled))
	fmt.Fprintf(&b, " %s %s", onOff("paste", c.PasteEnabled), onOff("clear", c.ClearEnabled))
	fmt.Fprintf(&b, " %s", onOff(strings.ToLower(c.PrimaryLabel), c.PrimaryEnabled))
	if c.DialogOpen {
		fmt.Fprintf(&b, " | captcha open, %s", onOff("verify", c.VerifyEnabled))
	}
	if c.DownloadURL != "" {
		fmt.Fprintf(&b, " | %s", c.DownloadURL)
	}
	r.printf("%s\n", b.String())
}

func (r *Renderer) Clear() {
	r.printf("[cleared]\n")
}

func (r *Renderer) printf(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, _ = fmt.Fprintf(r.out, format, args...)
}

func onOff(name string, enabled bool) string {
	if enabled {
		return name + ":on"
	}
	return name + ":off"
}
