package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/srg/classicgap/gap"
	"github.com/srg/classicgap/internal/bondstore"
	"github.com/srg/classicgap/internal/notify"
	"github.com/srg/classicgap/internal/transport"
	"github.com/srg/classicgap/pkg/config"
)

const (
	powerUpTimeout = 5 * time.Second
	historySize    = 32
)

// session is one powered-up adapter with a controller on top of it.
type session struct {
	ctrl    *gap.Controller
	events  *notify.ChannelPublisher
	history *notify.Collector
	logger  *logrus.Logger
	closers []func()
}

// openSession opens the adapter, wires the configured notification sinks and
// waits for the stack to reach Working.
func openSession(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*session, error) {
	s := &session{
		events: notify.NewChannelPublisher(cfg.Notifications.BufferSize),
		logger: logger,
	}
	feed := notify.NewChannelPublisher(historySize)
	publishers := notify.Fanout{s.events, feed}

	history, err := notify.NewCollector(feed.C(), historySize, func(err error) {
		logger.WithError(err).Debug("Notification history")
	})
	if err != nil {
		return nil, err
	}
	if err := history.Start(ctx); err != nil {
		return nil, err
	}
	s.history = history
	s.closers = append(s.closers, func() { _ = history.Stop() })

	if opts, ok := cfg.MQTTOptions(); ok {
		mqtt, err := notify.ConnectMQTT(opts, logger)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.closers = append(s.closers, mqtt.Close)
		publishers = append(publishers, mqtt)
	}

	if cfg.BondStore != "" {
		store, err := bondstore.Open(cfg.BondStore)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.closers = append(s.closers, func() { _ = store.Close() })
		publishers = append(publishers, bondstore.NewRecorder(store, logger))
	}

	opts, err := cfg.ControllerOptions()
	if err != nil {
		s.Close()
		return nil, err
	}

	radio, err := transport.Open(cfg.HCIDevice, logger)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.closers = append(s.closers, func() { _ = radio.Close() })

	s.ctrl, err = gap.NewController(radio, publishers, logger, opts)
	if err != nil {
		s.Close()
		return nil, err
	}
	if err := s.ctrl.RegisterScan(); err != nil {
		s.Close()
		return nil, err
	}
	if err := radio.Start(ctx); err != nil {
		s.Close()
		return nil, fmt.Errorf("starting hci%d: %w", cfg.HCIDevice, err)
	}

	select {
	case <-s.ctrl.Ready():
		return s, nil
	case <-time.After(powerUpTimeout):
		s.Close()
		return nil, fmt.Errorf("%w: hci%d still %s after %v", ErrPowerUpTimeout, cfg.HCIDevice, radio.State(), powerUpTimeout)
	case <-ctx.Done():
		s.Close()
		return nil, ctx.Err()
	}
}

// trail returns the notifications published so far, oldest first, and
// forgets them.
func (s *session) trail() []notify.Record {
	records, err := s.history.Drain()
	if err != nil {
		s.logger.WithError(err).Debug("Notification history")
	}
	return records
}

// Close releases resources in reverse order.
func (s *session) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

// interruptible returns a context cancelled by Ctrl+C or SIGTERM.
func interruptible(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
