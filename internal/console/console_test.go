package console

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"workbench/internal/captcha"
	"workbench/internal/tool"
	"workbench/internal/ui"
)

type fakeController struct {
	calls []string
	input string
	view  tool.View
}

func (f *fakeController) SetInput(text string) { f.calls = append(f.calls, "input"); f.input = text }
func (f *fakeController) Submit()              { f.calls = append(f.calls, "submit") }
func (f *fakeController) PrimaryAction()       { f.calls = append(f.calls, "primary") }
func (f *fakeController) Verify()              { f.calls = append(f.calls, "verify") }
func (f *fakeController) Clear()               { f.calls = append(f.calls, "clear") }
func (f *fakeController) Paste()               { f.calls = append(f.calls, "paste") }
func (f *fakeController) CloseDialog()         { f.calls = append(f.calls, "close") }
func (f *fakeController) Snapshot() tool.View  { return f.view }

type fakeChallenge struct {
	solved string
	failed string
}

func (f *fakeChallenge) Solve(token string) error { f.solved = token; return nil }
func (f *fakeChallenge) Fail(code string) error   { f.failed = code; return nil }

func TestParse(t *testing.T) {
	cases := []struct {
		line    string
		want    Command
		wantErr bool
	}{
		{line: "url https://youtu.be/abc", want: Command{Name: CmdURL, Arg: "https://youtu.be/abc"}},
		{line: "  SUBMIT  ", want: Command{Name: CmdSubmit}},
		{line: "solve tok1", want: Command{Name: CmdSolve, Arg: "tok1"}},
		{line: "exit", want: Command{Name: CmdQuit}},
		{line: "", want: Command{}},
		{line: "solve", wantErr: true},
		{line: "launch", wantErr: true},
	}
	for _, tc := range cases {
		got, err := Parse(tc.line)
		if tc.wantErr {
			if err == nil {
				t.Errorf("Parse(%q): expected error", tc.line)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Errorf("Parse(%q) = %+v, %v; want %+v", tc.line, got, err, tc.want)
		}
	}
	if _, err := Parse("launch"); !errors.Is(err, ErrUnknownCommand) {
		t.Fatalf("expected ErrUnknownCommand, got %v", err)
	}
}

func TestSessionRun(t *testing.T) {
	ctrl := &fakeController{view: tool.View{State: tool.StateReady, Stage: tool.StageDownload, Message: "Your download is ready."}}
	challenge := &fakeChallenge{}
	var out bytes.Buffer
	s := NewSession(ctrl, challenge, &out)

	script := strings.Join([]string{
		"url https://youtu.be/abc123",
		"submit",
		"solve tok1",
		"verify",
		"bogus",
		"status",
		"download",
		"paste",
		"close",
		"clear",
		"quit",
		"submit",
	}, "\n")
	if err := s.Run(context.Background(), strings.NewReader(script)); err != nil {
		t.Fatalf("run: %v", err)
	}

	want := []string{"input", "submit", "verify", "primary", "paste", "close", "clear"}
	if strings.Join(ctrl.calls, ",") != strings.Join(want, ",") {
		t.Fatalf("calls = %v, want %v", ctrl.calls, want)
	}
	if ctrl.input != "https://youtu.be/abc123" || challenge.solved != "tok1" {
		t.Fatalf("unexpected input %q or token %q", ctrl.input, challenge.solved)
	}
	if !strings.Contains(out.String(), "state=READY stage=download") {
		t.Fatalf("missing status line in %q", out.String())
	}
	if !strings.Contains(out.String(), "unknown command") {
		t.Fatalf("missing unknown command notice in %q", out.String())
	}
}

func TestSessionEOF(t *testing.T) {
	s := NewSession(&fakeController{}, &fakeChallenge{}, &bytes.Buffer{})
	if err := s.Run(context.Background(), strings.NewReader("fail network")); err != nil {
		t.Fatalf("expected nil at EOF, got %v", err)
	}
}

func TestRenderer(t *testing.T) {
	var out bytes.Buffer
	r := NewRenderer(&out)
	r.ShowMessage(ui.DisplayPending, "Verifying...")
	r.ShowMessage(ui.DisplayIdle, "")
	r.SetControls(ui.Controls{
		InputEnabled:   true,
		ClearEnabled:   true,
		PrimaryLabel:   "Download",
		PrimaryEnabled: true,
		DownloadURL:    "http://localhost:8080/api/v1/ytdlp/download/42",
	})
	r.Clear()

	got := out.String()
	for _, want := range []string{
		"[pending] Verifying...\n",
		"input:on paste:off clear:on download:on | http://localhost:8080/api/v1/ytdlp/download/42\n",
		"[cleared]\n",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output %q is missing %q", got, want)
		}
	}
	if strings.Count(got, "\n") != 3 {
		t.Errorf("empty messages must not print, got %q", got)
	}
}

func TestTheme(t *testing.T) {
	t.Setenv(EnvTheme, "Dark")
	if Theme() != captcha.ThemeDark {
		t.Fatalf("expected dark theme")
	}
	t.Setenv(EnvTheme, "")
	if Theme() != captcha.ThemeLight {
		t.Fatalf("expected light theme by default")
	}
}

func TestRendererDrivesProjector(t *testing.T) {
	var out bytes.Buffer
	p := ui.New(NewRenderer(&out), nil)
	p.Project(tool.View{State: tool.StateDisabled, Message: "Downloads are turned off right now."})
	if !strings.Contains(out.String(), "[disabled] Downloads are turned off right now.") {
		t.Fatalf("unexpected output %q", out.String())
	}
}
