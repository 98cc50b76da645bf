package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/cornelk/hashmap"
	"github.com/sirupsen/logrus"

	"github.com/srg/classicgap/internal/device"
	"github.com/srg/classicgap/internal/groutine"
	"github.com/srg/classicgap/internal/hci"
)

var (
	ErrClosed         = errors.New("transport closed")
	ErrAlreadyStarted = errors.New("transport already started")
	ErrUnsupported    = errors.New("hci sockets are not supported on this platform")
)

const readBufferSize = 1024

// Protection levels accepted by DedicatedBonding.
const (
	ProtectionNone uint8 = iota
	ProtectionMITM
)

// Socket drives a local adapter over a raw H4 byte stream. It powers the
// radio up, forwards discovery and pairing events, and runs dedicated
// bonding and link key storage itself.
//
// Events are delivered from the reader goroutine, never from inside a
// command method.
type Socket struct {
	commander

	rw     io.ReadWriteCloser
	logger *logrus.Logger
	framer *hci.Framer
	retry  func(error) bool

	writeMu sync.Mutex

	handlerMu sync.RWMutex
	handler   func(hci.Event)

	state       atomic.Int32
	inquiryMode atomic.Uint32
	started     atomic.Bool

	// Keyed by address string; hashmap only takes scalar and string keys.
	linkKeys    *hashmap.Map[string, [16]byte]
	bonding     *hashmap.Map[string, uint8]
	connections *hashmap.Map[uint16, string]

	nameMu      sync.Mutex
	pendingName *device.Address

	cancel context.CancelFunc
	done   <-chan struct{}
}

// NewSocket wraps rw. Nothing is sent until Start.
func NewSocket(rw io.ReadWriteCloser, logger *logrus.Logger) *Socket {
	if logger == nil {
		logger = logrus.New()
	}
	s := &Socket{
		rw:          rw,
		logger:      logger,
		framer:      hci.NewFramer(hci.DefaultFramerCapacity),
		retry:       func(error) bool { return false },
		linkKeys:    hashmap.New[string, [16]byte](),
		bonding:     hashmap.New[string, uint8](),
		connections: hashmap.New[uint16, string](),
	}
	s.commander = commander{send: s.write}
	s.state.Store(int32(hci.StateUninitialized))
	s.inquiryMode.Store(uint32(hci.InquiryModeRSSIAndEIR))
	return s
}

// SetEventHandler implements gap.Transport.
func (s *Socket) SetEventHandler(handler func(hci.Event)) {
	s.handlerMu.Lock()
	defer s.handlerMu.Unlock()
	s.handler = handler
}

// Start launches the reader and runs the power-up sequence: Reset, enable
// Simple Pairing, then the stored inquiry mode. The stack reports
// Initializing at once and Working when the sequence completes.
func (s *Socket) Start(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	ctx, s.cancel = context.WithCancel(ctx)

	s.done = groutine.Go(ctx, "hci-reader", func(ctx context.Context) {
		s.setState(hci.StateInitializing)
		if err := s.write(hci.Reset()); err != nil {
			s.logger.WithError(err).Error("Failed to reset adapter")
			s.setState(hci.StateHalting)
			return
		}
		s.readLoop(ctx)
	})
	return nil
}

// Close stops the reader and closes the underlying stream.
func (s *Socket) Close() error {
	if s.cancel != nil {
		s.cancel()
	}
	err := s.rw.Close()
	if s.done != nil {
		<-s.done
	}
	return err
}

// State returns the stack state as last reported to the handler.
func (s *Socket) State() hci.StackState {
	return hci.StackState(s.state.Load())
}

// SetInquiryMode records the mode for every power-up and applies it now if
// the radio is already working.
func (s *Socket) SetInquiryMode(mode uint8) error {
	s.inquiryMode.Store(uint32(mode))
	if s.State() != hci.StateWorking {
		return nil
	}
	return s.write(hci.WriteInquiryMode(mode))
}

// RemoteNameRequest remembers the address so a rejection reported by the
// radio can be answered with a failed name completion.
func (s *Socket) RemoteNameRequest(addr device.Address, pageScanRepetitionMode uint8, clockOffset uint16) error {
	s.nameMu.Lock()
	s.pendingName = &addr
	s.nameMu.Unlock()
	return s.commander.RemoteNameRequest(addr, pageScanRepetitionMode, clockOffset)
}

// DedicatedBonding connects to addr and authenticates once the link is up.
// The outcome is reported as DedicatedBondingCompleted.
func (s *Socket) DedicatedBonding(addr device.Address, protectionLevel uint8) error {
	s.bonding.Set(addr.String(), protectionLevel)
	if err := s.commander.DedicatedBonding(addr, protectionLevel); err != nil {
		s.bonding.Del(addr.String())
		return err
	}
	return nil
}

// DropLinkKey forgets the key held here and asks the adapter to forget its
// own copy.
func (s *Socket) DropLinkKey(addr device.Address) error {
	s.linkKeys.Del(addr.String())
	return s.commander.DropLinkKey(addr)
}

// LinkKey returns the stored key for addr.
func (s *Socket) LinkKey(addr device.Address) ([16]byte, bool) {
	return s.linkKeys.Get(addr.String())
}

// SetLinkKey preloads a key, typically one restored from a bond store.
func (s *Socket) SetLinkKey(addr device.Address, key [16]byte) {
	s.linkKeys.Set(addr.String(), key)
}

func (s *Socket) write(cmd hci.Command) error {
	if !s.started.Load() {
		return fmt.Errorf("%w: %s before start", ErrClosed, cmd.Opcode)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	pkt := cmd.Marshal()
	for {
		n, err := s.rw.Write(pkt)
		if err != nil {
			if s.retry(err) {
				continue
			}
			return fmt.Errorf("write %s: %w", cmd.Opcode, err)
		}
		if n != len(pkt) {
			return fmt.Errorf("write %s: short write %d of %d bytes", cmd.Opcode, n, len(pkt))
		}
		s.logger.WithField("opcode", cmd.Opcode).Tracef("TX % X", pkt)
		return nil
	}
}

func (s *Socket) readLoop(ctx context.Context) {
	defer s.leaveWorking()

	buf := make([]byte, readBufferSize)
	for {
		if ctx.Err() != nil {
			return
		}
		n, err := s.rw.Read(buf)
		if n > 0 {
			if _, ferr := s.framer.Write(buf[:n]); ferr != nil {
				s.logger.WithError(ferr).Warn("Dropping unframed bytes")
			}
			s.drain()
		}
		if err != nil {
			if s.retry(err) {
				continue
			}
			if ctx.Err() == nil && !errors.Is(err, io.EOF) {
				s.logger.WithError(err).Error("HCI read failed")
			}
			return
		}
	}
}

func (s *Socket) drain() {
	for {
		pkt, ok, err := s.framer.Next()
		if err != nil {
			s.logger.WithError(err).Warn("HCI stream desynchronised")
			continue
		}
		if !ok {
			return
		}
		if pkt[0] != hci.PacketEvent {
			s.logger.WithField("type", pkt[0]).Trace("Ignoring non-event packet")
			continue
		}

		events, err := hci.Decode(pkt)
		if err != nil {
			if errors.Is(err, hci.ErrUnknownEvent) {
				s.logger.WithError(err).Trace("Ignoring event")
			} else {
				s.logger.WithError(err).Warnf("Undecodable event % X", pkt)
			}
			continue
		}
		for _, ev := range events {
			s.handle(ev)
		}
	}
}

func (s *Socket) handle(ev hci.Event) {
	switch e := ev.(type) {
	case hci.CommandComplete:
		s.onCommandComplete(e)
	case hci.CommandStatus:
		s.onCommandStatus(e)
	case hci.ConnectionComplete:
		s.onConnectionComplete(e)
	case hci.AuthenticationComplete:
		s.onAuthenticationComplete(e)
	case hci.DisconnectionComplete:
		s.connections.Del(e.Handle)
	case hci.LinkKeyRequest:
		s.onLinkKeyRequest(e)
	case hci.LinkKeyNotification:
		s.linkKeys.Set(e.Address.String(), e.Key)
		s.logger.WithFields(logrus.Fields{"address": e.Address, "type": e.KeyType}).Info("Link key stored")
	case hci.IOCapabilityRequest:
		s.onIOCapabilityRequest(e)
	case hci.IOCapabilityResponse:
		s.logger.WithFields(logrus.Fields{
			"address": e.Address,
			"io":      e.IOCapability,
			"auth":    e.AuthRequirements,
		}).Debug("Peer IO capabilities")
	case hci.RemoteNameComplete:
		s.clearPendingName(e.Address)
		s.deliver(e)
	case hci.SimplePairingComplete:
		// Bonding we started reports once, through DedicatedBondingCompleted.
		if _, ours := s.bonding.Get(e.Address.String()); ours {
			s.logger.WithFields(logrus.Fields{"address": e.Address, "status": e.Status}).Debug("Simple pairing complete")
			return
		}
		s.deliver(e)
	default:
		s.deliver(ev)
	}
}

func (s *Socket) onCommandComplete(e hci.CommandComplete) {
	status := e.Status()
	fields := logrus.Fields{"opcode": e.Opcode, "status": status}

	if s.State() != hci.StateInitializing {
		if !status.OK() {
			s.logger.WithFields(fields).Warn("Command failed")
		}
		return
	}

	switch e.Opcode {
	case hci.OpReset:
		if !status.OK() {
			s.logger.WithFields(fields).Error("Adapter reset failed")
			s.setState(hci.StateHalting)
			return
		}
		s.powerUpStep(hci.WriteSimplePairingMode(true))
	case hci.OpWriteSimplePairingMode:
		if !status.OK() {
			s.logger.WithFields(fields).Warn("Adapter refused simple pairing")
		}
		s.powerUpStep(hci.WriteInquiryMode(uint8(s.inquiryMode.Load())))
	case hci.OpWriteInquiryMode:
		if !status.OK() {
			s.logger.WithFields(fields).Warn("Adapter refused inquiry mode")
		}
		s.setState(hci.StateWorking)
	}
}

func (s *Socket) powerUpStep(cmd hci.Command) {
	if err := s.write(cmd); err != nil {
		s.logger.WithError(err).Error("Power-up aborted")
		s.setState(hci.StateHalting)
	}
}

func (s *Socket) onCommandStatus(e hci.CommandStatus) {
	if e.Status.OK() {
		return
	}
	s.logger.WithFields(logrus.Fields{"opcode": e.Opcode, "status": e.Status}).Warn("Command rejected by adapter")

	switch e.Opcode {
	case hci.OpRemoteNameRequest:
		s.nameMu.Lock()
		pending := s.pendingName
		s.pendingName = nil
		s.nameMu.Unlock()
		if pending != nil {
			s.deliver(hci.RemoteNameComplete{Address: *pending, Status: e.Status})
		}
	case hci.OpCreateConnection:
		// Only one bonding connects at a time, fail every pending one
		// that has no link yet.
		s.bonding.Range(func(addr string, _ uint8) bool {
			if s.hasConnection(addr) {
				return true
			}
			s.failBonding(addr, e.Status)
			return true
		})
	case hci.OpAuthenticationRequested:
		s.connections.Range(func(handle uint16, addr string) bool {
			if _, ours := s.bonding.Get(addr); ours {
				s.failBonding(addr, e.Status)
				s.disconnect(handle)
			}
			return true
		})
	}
}

func (s *Socket) onConnectionComplete(e hci.ConnectionComplete) {
	key := e.Address.String()
	_, ours := s.bonding.Get(key)

	if !e.Status.OK() {
		if ours {
			s.failBonding(key, e.Status)
		}
		return
	}

	s.connections.Set(e.Handle, key)
	if !ours {
		return
	}
	if err := s.write(hci.AuthenticationRequested(e.Handle)); err != nil {
		s.logger.WithError(err).WithField("address", e.Address).Warn("Cannot authenticate link")
		s.failBonding(key, hci.StatusUnspecifiedError)
		s.disconnect(e.Handle)
	}
}

func (s *Socket) onAuthenticationComplete(e hci.AuthenticationComplete) {
	key, ok := s.connections.Get(e.Handle)
	if !ok {
		return
	}
	if _, ours := s.bonding.Get(key); !ours {
		return
	}

	s.bonding.Del(key)
	addr, err := device.ParseAddress(key)
	if err != nil {
		return
	}
	s.deliver(hci.DedicatedBondingCompleted{Address: addr, Status: e.Status})
	s.disconnect(e.Handle)
}

func (s *Socket) onLinkKeyRequest(e hci.LinkKeyRequest) {
	key, ok := s.linkKeys.Get(e.Address.String())
	cmd := hci.LinkKeyNegativeReply(e.Address)
	if ok {
		cmd = hci.LinkKeyReply(e.Address, key)
	}
	if err := s.write(cmd); err != nil {
		s.logger.WithError(err).WithField("address", e.Address).Warn("Cannot answer link key request")
	}
}

func (s *Socket) onIOCapabilityRequest(e hci.IOCapabilityRequest) {
	auth := hci.AuthGeneralBondingMITM
	if level, ours := s.bonding.Get(e.Address.String()); ours {
		auth = hci.AuthDedicatedBonding
		if level >= ProtectionMITM {
			auth = hci.AuthDedicatedBondingMITM
		}
	}
	if err := s.write(hci.IOCapabilityReply(e.Address, hci.IOCapDisplayYesNo, auth)); err != nil {
		s.logger.WithError(err).WithField("address", e.Address).Warn("Cannot answer IO capability request")
	}
}

func (s *Socket) failBonding(key string, status hci.Status) {
	if !s.bonding.Del(key) {
		return
	}
	addr, err := device.ParseAddress(key)
	if err != nil {
		return
	}
	if status.OK() {
		status = hci.StatusUnspecifiedError
	}
	s.deliver(hci.DedicatedBondingCompleted{Address: addr, Status: status})
}

func (s *Socket) hasConnection(key string) bool {
	found := false
	s.connections.Range(func(_ uint16, addr string) bool {
		found = addr == key
		return !found
	})
	return found
}

func (s *Socket) disconnect(handle uint16) {
	if err := s.write(hci.Disconnect(handle)); err != nil {
		s.logger.WithError(err).WithField("handle", handle).Debug("Disconnect not sent")
	}
}

func (s *Socket) clearPendingName(addr device.Address) {
	s.nameMu.Lock()
	defer s.nameMu.Unlock()
	if s.pendingName != nil && *s.pendingName == addr {
		s.pendingName = nil
	}
}

func (s *Socket) leaveWorking() {
	switch s.State() {
	case hci.StateWorking, hci.StateInitializing:
		s.setState(hci.StateHalting)
	}
}

func (s *Socket) setState(next hci.StackState) {
	s.state.Store(int32(next))
	s.deliver(hci.StackStateChanged{State: next})
}

func (s *Socket) deliver(ev hci.Event) {
	s.handlerMu.RLock()
	h := s.handler
	s.handlerMu.RUnlock()
	if h == nil {
		s.logger.WithField("event", ev.EventName()).Debug("No handler, event dropped")
		return
	}
	h(ev)
}
