package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog/log"

	"workbench/internal/tool"
)

// ErrUnknownCommand is returned by Parse for anything not in the command list.
var ErrUnknownCommand = errors.New("unknown command")

// Command names accepted on the prompt.
const (
	CmdURL      = "url"
	CmdSubmit   = "submit"
	CmdSolve    = "solve"
	CmdFail     = "fail"
	CmdVerify   = "verify"
	CmdDownload = "download"
	CmdPaste    = "paste"
	CmdClear    = "clear"
	CmdClose    = "close"
	CmdStatus   = "status"
	CmdHelp     = "help"
	CmdQuit     = "quit"
)

const helpText = `commands:
  url <link>      set the link field
  submit          validate the link and open the verification
  solve <token>   complete the verification with a provider token
  fail <code>     report a verification error
  verify          verify and start the download job
  download        open the finished download
  paste           paste the link from the clipboard
  clear           cancel and empty the form
  close           close the verification dialog
  status          show the current state
  quit            exit
`

// Command is one parsed prompt line.
type Command struct {
	Name string
	Arg  string
}

// Parse splits a prompt line into a command and its argument.
func Parse(line string) (Command, error) {
	line = strings.TrimSpace(line)
	name, arg, _ := strings.Cut(line, " ")
	cmd := Command{Name: strings.ToLower(name), Arg: strings.TrimSpace(arg)}
	switch cmd.Name {
	case CmdURL, CmdSubmit, CmdVerify, CmdDownload, CmdPaste, CmdClear, CmdClose, CmdStatus, CmdHelp, CmdQuit:
		return cmd, nil
	case "exit":
		cmd.Name = CmdQuit
		return cmd, nil
	case CmdSolve, CmdFail:
		if cmd.Arg == "" {
			return cmd, fmt.Errorf("%s needs an argument", cmd.Name)
		}
		return cmd, nil
	case "":
		return cmd, nil
	default:
		return cmd, fmt.Errorf("%w: %q", ErrUnknownCommand, name)
	}
}

// Controller is the part of the tool controller the prompt drives.
type Controller interface {
	SetInput(text string)
	Submit()
	PrimaryAction()
	Verify()
	Clear()
	Paste()
	CloseDialog()
	Snapshot() tool.View
}

// Challenge is the manual captcha widget.
type Challenge interface {
	Solve(token string) error
	Fail(code string) error
}

// Session reads commands and drives the controller until quit or EOF.
type Session struct {
	ctrl      Controller
	challenge Challenge
	out       io.Writer
}

// NewSession creates a prompt session.
func NewSession(ctrl Controller, challenge Challenge, out io.Writer) *Session {
	return &Session{ctrl: ctrl, challenge: challenge, out: out}
}

// Run processes lines from in. It returns nil on quit, EOF or ctx cancellation.
func (s *Session) Run(ctx context.Context, in io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					if err != nil {
						return fmt.Errorf("read input: %w", err)
					}
				default:
				}
				return nil
			}
			cmd, err := Parse(line)
			if err != nil {
				fmt.Fprintf(s.out, "%v (type help)\n", err)
				continue
			}
			if cmd.Name == CmdQuit {
				return nil
			}
			s.Execute(cmd)
		}
	}
}

// Execute applies one command.
func (s *Session) Execute(cmd Command) {
	log.Debug().Str("command", cmd.Name).Msg("console command")
	switch cmd.Name {
	case CmdURL:
		s.ctrl.SetInput(cmd.Arg)
	case CmdSubmit:
		s.ctrl.Submit()
	case CmdDownload:
		s.ctrl.PrimaryAction()
	case CmdVerify:
		s.ctrl.Verify()
	case CmdPaste:
		s.ctrl.Paste()
	case CmdClear:
		s.ctrl.Clear()
	case CmdClose:
		s.ctrl.CloseDialog()
	case CmdSolve:
		if err := s.challenge.Solve(cmd.Arg); err != nil {
			fmt.Fprintf(s.out, "solve: %v\n", err)
		}
	case CmdFail:
		if err := s.challenge.Fail(cmd.Arg); err != nil {
			fmt.Fprintf(s.out, "fail: %v\n", err)
		}
	case CmdStatus:
		v := s.ctrl.Snapshot()
		fmt.Fprintf(s.out, "state=%s stage=%s input=%q\n", v.State, v.Stage, v.Input)
		if v.Message != "" {
			fmt.Fprintf(s.out, "  %s\n", v.Message)
		}
	case CmdHelp:
		fmt.Fprint(s.out, helpText)
	}
}
