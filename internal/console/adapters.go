package console

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/pkg/browser"

	"workbench/internal/captcha"
	"workbench/internal/tool"
)

// EnvTheme selects the captcha theme ("light" or "dark").
const EnvTheme = "WORKBENCH_THEME"

// Clipboard reads the system clipboard.
type Clipboard struct{}

func (Clipboard) Read(ctx context.Context) (string, error) {
	if clipboard.Unsupported {
		return "", tool.ErrClipboardUnavailable
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	text, err := clipboard.ReadAll()
	if err != nil {
		return "", fmt.Errorf("read clipboard: %w", err)
	}
	return text, nil
}

// Opener hands download links to the system browser.
type Opener struct {
	// Out receives the browser launcher's own output; nil discards it.
	Out io.Writer
}

func (o Opener) Open(link string) error {
	out := o.Out
	if out == nil {
		out = io.Discard
	}
	browser.Stdout = out
	browser.Stderr = out
	if err := browser.OpenURL(link); err != nil {
		return fmt.Errorf("open %s: %w", link, err)
	}
	return nil
}

// Theme reads the terminal theme from the environment.
func Theme() string {
	if strings.EqualFold(strings.TrimSpace(os.Getenv(EnvTheme)), captcha.ThemeDark) {
		return captcha.ThemeDark
	}
	return captcha.ThemeLight
}
