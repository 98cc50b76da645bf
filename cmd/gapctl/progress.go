package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/term"

	"github.com/srg/classicgap/internal/groutine"
)

const (
	progressUpdateInterval = 100 * time.Millisecond
	clearLineSequence      = "\r\033[K"
)

// progress keeps one status line up to date while the adapter works:
// "Scanning (inquiry 12s)". With a limit it counts down, otherwise up.
//
// A progress is single-use: Start once, Stop any number of times.
type progress struct {
	out    io.Writer
	prefix string
	limit  time.Duration
	phase  atomic.Value // string
	now    func() time.Time

	mu     sync.Mutex
	start  time.Time
	cancel context.CancelFunc
	done   <-chan struct{}
}

func newProgress(out io.Writer, prefix, phase string, limit time.Duration) *progress {
	p := &progress{out: out, prefix: prefix, limit: limit, now: time.Now}
	p.phase.Store(phase)
	return p
}

// progressFor returns nil unless out is a terminal; all methods accept a
// nil receiver so callers need no checks.
func progressFor(out io.Writer, prefix, phase string, limit time.Duration) *progress {
	f, ok := out.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return nil
	}
	return newProgress(out, prefix, phase, limit)
}

func (p *progress) Start(ctx context.Context) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		panic("progress started twice")
	}

	p.start = p.now()
	fmt.Fprint(p.out, p.line(0))

	ctx, p.cancel = context.WithCancel(ctx)
	p.done = groutine.Go(ctx, "progress", func(ctx context.Context) {
		ticker := time.NewTicker(progressUpdateInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.mu.Lock()
				fmt.Fprint(p.out, p.line(p.now().Sub(p.start)))
				p.mu.Unlock()
			}
		}
	})
}

// SetPhase changes the word in parentheses.
func (p *progress) SetPhase(phase string) {
	if p == nil {
		return
	}
	p.phase.Store(phase)
}

// Stop ends the updates and clears the line.
func (p *progress) Stop() {
	if p == nil {
		return
	}
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = func() {}, nil
	p.mu.Unlock()
	if done == nil {
		return
	}

	cancel()
	<-done

	p.mu.Lock()
	fmt.Fprint(p.out, clearLineSequence)
	p.mu.Unlock()
}

func (p *progress) line(elapsed time.Duration) string {
	phase := p.phase.Load().(string)

	seconds := int(elapsed.Seconds())
	if p.limit > 0 {
		remaining := p.limit - elapsed
		seconds = 0
		if remaining > 0 {
			seconds = int(remaining.Seconds() + 0.5)
		}
	}
	if seconds > 0 {
		return fmt.Sprintf("\r%s (%s %ds)   ", p.prefix, phase, seconds)
	}
	return fmt.Sprintf("\r%s (%s...)   ", p.prefix, phase)
}
