package transport

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/srg/classicgap/internal/hci"
)

// Recorder is a radio that accepts every command, remembers it and lets the
// caller inject events. Individual opcodes can be made to fail with a
// given HCI status.
type Recorder struct {
	commander

	mu       sync.Mutex
	handler  func(hci.Event)
	commands []hci.Command
	rejected map[hci.Opcode]hci.Status
	logger   *logrus.Logger
}

// NewRecorder creates an empty Recorder.
func NewRecorder(logger *logrus.Logger) *Recorder {
	if logger == nil {
		logger = logrus.New()
	}
	r := &Recorder{
		rejected: make(map[hci.Opcode]hci.Status),
		logger:   logger,
	}
	r.commander = commander{send: r.record}
	return r
}

func (r *Recorder) record(cmd hci.Command) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if st, ok := r.rejected[cmd.Opcode]; ok {
		r.logger.WithFields(logrus.Fields{"opcode": cmd.Opcode, "status": st}).Debug("Rejecting command")
		return st
	}
	r.commands = append(r.commands, cmd)
	r.logger.WithField("opcode", cmd.Opcode).Debugf("Command % X", cmd.Params)
	return nil
}

// SetEventHandler implements gap.Transport.
func (r *Recorder) SetEventHandler(handler func(hci.Event)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handler = handler
}

// Emit delivers events to the registered handler, in order, on the calling
// goroutine. Events emitted before a handler is registered are dropped.
func (r *Recorder) Emit(events ...hci.Event) {
	r.mu.Lock()
	h := r.handler
	r.mu.Unlock()

	if h == nil {
		r.logger.WithField("count", len(events)).Warn("No event handler registered, dropping events")
		return
	}
	for _, ev := range events {
		h(ev)
	}
}

// Reject makes every later command with op fail with status.
func (r *Recorder) Reject(op hci.Opcode, status hci.Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rejected[op] = status
}

// Accept undoes Reject.
func (r *Recorder) Accept(op hci.Opcode) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rejected, op)
}

// Commands returns a copy of the accepted commands.
func (r *Recorder) Commands() []hci.Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]hci.Command(nil), r.commands...)
}

// Count returns how many accepted commands carried op.
func (r *Recorder) Count(op hci.Opcode) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.commands {
		if c.Opcode == op {
			n++
		}
	}
	return n
}

// Last returns the most recent accepted command with op.
func (r *Recorder) Last(op hci.Opcode) (hci.Command, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.commands) - 1; i >= 0; i-- {
		if r.commands[i].Opcode == op {
			return r.commands[i], true
		}
	}
	return hci.Command{}, false
}

// Reset forgets recorded commands. Rejections stay in place.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands = nil
}
