// Package agent answers pairing prompts from a Lua script.
//
// The script defines
//
//	function on_auth(address, name, path, code) ... end
//	function on_result(address, success) ... end   -- optional
//
// path is "pin", "passkey" or "numeric_comparison"; code is the number to
// show or compare, nil otherwise. on_auth returns the PIN or passkey as a
// string for the pin and passkey paths and a boolean for numeric comparison.
// Returning nil or false leaves the prompt unanswered.
package agent

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/aarzilli/golua/lua"
	"github.com/sirupsen/logrus"

	"github.com/srg/classicgap/internal/device"
	"github.com/srg/classicgap/internal/groutine"
	"github.com/srg/classicgap/internal/notify"
)

const (
	onAuth   = "on_auth"
	onResult = "on_result"

	queueSize = 16
)

// Responder is the part of the GAP controller the agent answers through.
type Responder interface {
	RespondPinCode(pin string, dev device.Device) error
	FinishCodeComparison(accepted bool, dev device.Device) error
}

// Answer is what on_auth decided for one prompt.
type Answer struct {
	// Reply is the PIN or passkey text. Empty means none.
	Reply string
	// Accepted is the numeric comparison verdict.
	Accepted bool
	// Answered is false when the script declined to answer.
	Answered bool
}

// Agent is a notify.Publisher. Prompts are queued and handled on the
// agent's own goroutine so the script never runs under the controller lock.
type Agent struct {
	engine    *engine
	responder Responder
	logger    *logrus.Logger
	queue     *notify.RingChannel[notify.Notification]
	hasResult bool

	mu     sync.Mutex
	cancel context.CancelFunc
	done   <-chan struct{}
}

// New loads script, which must define on_auth.
func New(script, source string, responder Responder, logger *logrus.Logger) (*Agent, error) {
	if logger == nil {
		logger = logrus.New()
	}
	e := newEngine(logger)
	if err := e.load(script, source); err != nil {
		e.close()
		return nil, err
	}
	return newAgent(e, responder, logger)
}

// Load reads the script from path.
func Load(path string, responder Responder, logger *logrus.Logger) (*Agent, error) {
	if logger == nil {
		logger = logrus.New()
	}
	e := newEngine(logger)
	if err := e.loadFile(path); err != nil {
		e.close()
		return nil, err
	}
	return newAgent(e, responder, logger)
}

func newAgent(e *engine, responder Responder, logger *logrus.Logger) (*Agent, error) {
	if responder == nil {
		e.close()
		return nil, fmt.Errorf("responder cannot be nil")
	}
	if !e.hasFunction(onAuth) {
		e.close()
		return nil, &ScriptError{Type: "api", Message: onAuth + " is not defined", Source: e.source}
	}
	return &Agent{
		engine:    e,
		responder: responder,
		logger:    logger,
		queue:     notify.NewRingChannel[notify.Notification](queueSize),
		hasResult: e.hasFunction(onResult),
	}, nil
}

// Publish implements notify.Publisher. Only prompts and pairing results are
// kept.
func (a *Agent) Publish(n notify.Notification) {
	switch n.(type) {
	case notify.AuthenticationRequested, notify.PairingResult:
		if a.queue.Send(n) {
			a.logger.Warn("Agent queue full, oldest prompt dropped")
		}
	}
}

// Start runs the agent loop until ctx is done or Close is called.
func (a *Agent) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.done != nil {
		return fmt.Errorf("agent already started")
	}
	ctx, a.cancel = context.WithCancel(ctx)
	a.done = groutine.Go(ctx, "pairing-agent", func(ctx context.Context) {
		for {
			select {
			case <-ctx.Done():
				return
			case n := <-a.queue.C():
				a.handle(n)
			}
		}
	})
	return nil
}

// Close stops the loop and releases the Lua state.
func (a *Agent) Close() {
	a.mu.Lock()
	cancel, done := a.cancel, a.done
	a.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	a.engine.close()
}

func (a *Agent) handle(n notify.Notification) {
	switch n := n.(type) {
	case notify.AuthenticationRequested:
		a.onPrompt(n)
	case notify.PairingResult:
		if !a.hasResult {
			return
		}
		err := a.engine.call(onResult, []any{n.Device.Address.String(), n.Success}, nil)
		if err != nil {
			a.logger.WithError(err).WithField("address", n.Device.Address).Warn("on_result failed")
		}
	}
}

func (a *Agent) onPrompt(req notify.AuthenticationRequested) {
	fields := logrus.Fields{"address": req.Device.Address, "path": req.Path}

	answer, err := a.Ask(req)
	if err != nil {
		a.logger.WithError(err).WithFields(fields).Error("on_auth failed, prompt left unanswered")
		return
	}
	if !answer.Answered {
		a.logger.WithFields(fields).Info("Script declined the prompt")
		return
	}

	switch {
	case req.Path == notify.AuthPathNumericComparison:
		err = a.responder.FinishCodeComparison(answer.Accepted, req.Device)
	case req.Code != nil:
		// Passkey shown by us; the peer types it, nothing to send.
		return
	default:
		err = a.responder.RespondPinCode(answer.Reply, req.Device)
	}
	if err != nil {
		a.logger.WithError(err).WithFields(fields).Warn("Controller rejected the agent's answer")
		return
	}
	a.logger.WithFields(fields).Info("Prompt answered by script")
}

// Ask runs on_auth for req and interprets its result.
func (a *Agent) Ask(req notify.AuthenticationRequested) (Answer, error) {
	var code any
	if req.Code != nil {
		code = int64(*req.Code)
	}
	args := []any{req.Device.Address.String(), req.Device.DisplayName(), req.Path.String(), code}

	var answer Answer
	err := a.engine.call(onAuth, args, func(L *lua.State) error {
		switch L.Type(-1) {
		case lua.LUA_TNIL:
		case lua.LUA_TBOOLEAN:
			answer.Accepted = L.ToBoolean(-1)
			answer.Answered = answer.Accepted || req.Path == notify.AuthPathNumericComparison
		case lua.LUA_TNUMBER:
			answer.Reply = strconv.FormatInt(int64(L.ToInteger(-1)), 10)
			answer.Accepted = true
			answer.Answered = true
		case lua.LUA_TSTRING:
			answer.Reply = L.ToString(-1)
			answer.Accepted = answer.Reply != ""
			answer.Answered = answer.Reply != ""
		default:
			return &ScriptError{Type: "api", Message: fmt.Sprintf("%s returned %s", onAuth, valueString(L, -1)), Source: a.engine.source}
		}
		return nil
	})
	if err != nil {
		return Answer{}, err
	}

	needsReply := req.Path != notify.AuthPathNumericComparison && req.Code == nil
	if needsReply && answer.Answered && answer.Reply == "" {
		return Answer{}, &ScriptError{Type: "api", Message: fmt.Sprintf("%s must return a string for the %s path", onAuth, req.Path), Source: a.engine.source}
	}
	return answer, nil
}
