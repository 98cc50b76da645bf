package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/srg/classicgap/internal/agent"
	"github.com/srg/classicgap/internal/notify"
)

// answerer resolves authentication prompts: a Lua agent if one is loaded,
// then the --pin/--accept flags, then the terminal.
type answerer struct {
	responder agent.Responder
	agent     *agent.Agent
	pin       *string
	accept    *bool
	prompt    *prompter
	out       io.Writer
}

func (a *answerer) handle(req notify.AuthenticationRequested) error {
	name := req.Device.DisplayName()

	if req.Path == notify.AuthPathPasskey && req.Code != nil {
		promptColor.Fprintf(a.out, "Type %06d on %s\n", *req.Code, name)
		if a.agent != nil {
			a.agent.Publish(req)
		}
		return nil
	}

	if a.agent != nil {
		fmt.Fprintf(a.out, "Agent answering %s prompt from %s\n", req.Path, name)
		a.agent.Publish(req)
		return nil
	}

	switch req.Path {
	case notify.AuthPathNumericComparison:
		if a.accept != nil {
			return a.responder.FinishCodeComparison(*a.accept, req.Device)
		}
	default:
		if a.pin != nil {
			return a.responder.RespondPinCode(*a.pin, req.Device)
		}
	}

	if a.prompt == nil {
		fmt.Fprintf(a.out, "No answer for %s prompt from %s: use --pin, --accept or --agent\n", req.Path, name)
		return nil
	}
	return a.prompt.ask(a.responder, req)
}

// prompter asks the user on a terminal.
type prompter struct {
	in         *bufio.Reader
	out        io.Writer
	readSecret func() (string, error)
}

// newTerminalPrompter returns nil when stdin is not a terminal.
func newTerminalPrompter(out io.Writer) *prompter {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil
	}
	return &prompter{
		in:  bufio.NewReader(os.Stdin),
		out: out,
		readSecret: func() (string, error) {
			b, err := term.ReadPassword(fd)
			fmt.Fprintln(out)
			return string(b), err
		},
	}
}

func (p *prompter) ask(r agent.Responder, req notify.AuthenticationRequested) error {
	name := req.Device.DisplayName()

	switch req.Path {
	case notify.AuthPathNumericComparison:
		code := uint32(0)
		if req.Code != nil {
			code = *req.Code
		}
		promptColor.Fprintf(p.out, "Does %s show %06d? [y/N] ", name, code)
		line, err := p.line()
		if err != nil {
			return err
		}
		answer := strings.ToLower(line)
		return r.FinishCodeComparison(answer == "y" || answer == "yes", req.Device)

	case notify.AuthPathPasskey:
		promptColor.Fprintf(p.out, "Passkey shown on %s: ", name)
	default:
		promptColor.Fprintf(p.out, "PIN for %s: ", name)
	}

	secret, err := p.secret()
	if err != nil {
		return err
	}
	return r.RespondPinCode(secret, req.Device)
}

func (p *prompter) line() (string, error) {
	line, err := p.in.ReadString('\n')
	if err != nil && !(err == io.EOF && line != "") {
		return "", fmt.Errorf("reading answer: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func (p *prompter) secret() (string, error) {
	if p.readSecret == nil {
		return p.line()
	}
	s, err := p.readSecret()
	if err != nil {
		return "", fmt.Errorf("reading answer: %w", err)
	}
	return strings.TrimSpace(s), nil
}
