package groutine

import (
	"context"
	"runtime/debug"
	"runtime/pprof"

	"github.com/sirupsen/logrus"
)

type ctxKey string

const goroutineNameKey ctxKey = "goroutine_name"

// OnPanic is called with the goroutine name and recovered value when a
// goroutine started by Go panics. The default logs at Error level with the
// stack trace. Tests may override it.
var OnPanic = func(name string, recovered any) {
	logrus.WithFields(logrus.Fields{
		"goroutine": name,
		"panic":     recovered,
	}).Errorf("goroutine panicked\n%s", debug.Stack())
}

// Go starts a named goroutine labelled for pprof and returns a channel that
// is closed when fn returns. A panic in fn is recovered and reported to
// OnPanic instead of killing the process.
//
//	done := groutine.Go(ctx, "hci-reader", func(ctx context.Context) {
//	    // work
//	})
//	<-done
//
// If parentCtx is nil, context.Background() is used.
func Go(parentCtx context.Context, name string, fn func(ctx context.Context)) <-chan struct{} {
	if parentCtx == nil {
		parentCtx = context.Background()
	}

	done := make(chan struct{})
	labels := pprof.Labels("goroutine_name", name)

	go pprof.Do(parentCtx, labels, func(ctx context.Context) {
		defer close(done)
		defer func() {
			if r := recover(); r != nil {
				OnPanic(name, r)
			}
		}()

		ctx = context.WithValue(ctx, goroutineNameKey, name)
		fn(ctx)
	})

	return done
}

// GetName retrieves the goroutine name from the context.
func GetName(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v := ctx.Value(goroutineNameKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
