package gap

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/srg/classicgap/internal/device"
	"github.com/srg/classicgap/internal/hci"
	"github.com/srg/classicgap/internal/notify"
	"github.com/srg/classicgap/registry"
)

// MaxPasskey is the largest SSP passkey (six decimal digits).
const MaxPasskey = 999999

// Options configures discovery.
type Options struct {
	// InquiryLength is the duration of one inquiry round in 1.28 s units.
	InquiryLength uint8
	// RequiredServices is the Class of Device service mask a discovered
	// device must share at least one bit with to be kept.
	RequiredServices device.ClassOfDevice
	// InquiryMode is requested from the radio at registration.
	InquiryMode uint8
}

// DefaultOptions returns the options used when none are given.
func DefaultOptions() *Options {
	return &Options{
		InquiryLength:    5,
		RequiredServices: device.AudioSinkServices,
		InquiryMode:      hci.InquiryModeRSSIAndEIR,
	}
}

// Validate checks option ranges.
func (o *Options) Validate() error {
	if o.InquiryLength == 0 || o.InquiryLength > hci.MaxInquiryLength {
		return fmt.Errorf("inquiry length %d out of range 1..%d", o.InquiryLength, hci.MaxInquiryLength)
	}
	if o.RequiredServices.Services() == 0 {
		return fmt.Errorf("required services mask %s selects no service class", o.RequiredServices)
	}
	return nil
}

// pairingContext tracks the one handshake in flight.
type pairingContext struct {
	address   device.Address
	path      notify.AuthPath
	prompted  bool
	sessionID uuid.UUID
}

// Controller is the Bluetooth Classic GAP controller: it owns the device
// registry and the stack/scan state, turns API calls into radio commands and
// radio events into registry updates and notifications.
//
// All methods are safe for concurrent use. Events and API calls are
// serialized on one mutex; notifications are published after it is
// released, so a Publisher may call back into the controller.
type Controller struct {
	mu sync.Mutex

	transport Transport
	publisher notify.Publisher
	logger    *logrus.Logger
	opts      Options

	registry      *registry.Registry
	state         machine
	registered    bool
	inquiryActive bool
	pairing       *pairingContext
	outbox        []notify.Notification

	ready     chan struct{}
	readyOnce sync.Once

	newSessionID func() uuid.UUID
}

// NewController creates a controller in (Uninitialized, Off) with an empty
// registry. A nil publisher discards notifications, nil opts means
// DefaultOptions.
func NewController(transport Transport, publisher notify.Publisher, logger *logrus.Logger, opts *Options) (*Controller, error) {
	if transport == nil {
		return nil, fmt.Errorf("transport cannot be nil")
	}
	if publisher == nil {
		publisher = notify.Discard
	}
	if logger == nil {
		logger = logrus.New()
	}
	if opts == nil {
		opts = DefaultOptions()
	}
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid controller options: %w", err)
	}

	return &Controller{
		transport:    transport,
		publisher:    publisher,
		logger:       logger,
		opts:         *opts,
		registry:     registry.New(),
		state:        machine{stack: hci.StateUninitialized, scan: ScanOff},
		ready:        make(chan struct{}),
		newSessionID: uuid.New,
	}, nil
}

// RegisterScan installs the event dispatcher on the transport and asks for
// extended inquiry results. It must be called once, before the radio is
// powered on.
func (c *Controller) RegisterScan() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.registered {
		return ErrAlreadyRegistered
	}
	c.registered = true
	c.transport.SetEventHandler(c.HandleEvent)

	if err := c.transport.SetInquiryMode(c.opts.InquiryMode); err != nil {
		// Names then arrive only through remote name requests.
		c.logger.WithError(err).WithField("mode", c.opts.InquiryMode).Warn("Radio refused inquiry mode")
	}

	if c.state.stack == hci.StateUninitialized {
		c.state.applyStack(hci.StateInitializing)
	}
	c.logger.WithField("state", c.state.stack).Info("Event dispatcher registered")
	return nil
}

// Scan starts a new discovery. A running scan is stopped first and the
// registry is cleared.
func (c *Controller) Scan() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.state.working() {
		return &Error{Kind: KindNotReady, Err: fmt.Errorf("stack is %s", c.state.stack)}
	}
	if c.state.scan == ScanOn {
		c.stopScanLocked()
	}

	c.registry.Clear()

	if err := c.startInquiryLocked(); err != nil {
		return libraryError(device.Address{}, err)
	}
	return nil
}

// StopScan aborts the inquiry and sets Scan State Off. It is idempotent;
// each call issues one abort.
func (c *Controller) StopScan() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopScanLocked()
}

func (c *Controller) stopScanLocked() {
	if err := c.transport.StopInquiry(); err != nil {
		c.logger.WithError(err).Debug("Inquiry cancel rejected")
	}
	c.inquiryActive = false
	c.state.applyScan(scanStopped)
	c.logger.WithField("scan", c.state.scan).Info("Scan stopped")
}

func (c *Controller) startInquiryLocked() error {
	if err := c.transport.StartInquiry(c.opts.InquiryLength); err != nil {
		c.state.applyScan(inquiryRejected)
		c.inquiryActive = false
		c.logger.WithError(err).Error("Inquiry rejected")
		return err
	}
	c.state.applyScan(inquiryIssued)
	c.inquiryActive = true
	c.logger.WithField("length", c.opts.InquiryLength).Info("Inquiry started")
	return nil
}

// SetVisibility makes the local adapter discoverable or hidden. Scan State
// is not affected.
func (c *Controller) SetVisibility(visible bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.transport.SetDiscoverable(visible); err != nil {
		return libraryError(device.Address{}, err)
	}
	c.logger.WithField("visible", visible).Info("Visibility changed")
	return nil
}

// Pair starts dedicated bonding with a device found by discovery.
func (c *Controller) Pair(dev device.Device, protectionLevel uint8) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.registry.Find(dev.Address); !ok {
		return &Error{Kind: KindDeviceNotFound, Address: dev.Address}
	}
	if !c.state.working() {
		return &Error{Kind: KindNotReady, Address: dev.Address, Err: fmt.Errorf("stack is %s", c.state.stack)}
	}

	if err := c.transport.DedicatedBonding(dev.Address, protectionLevel); err != nil {
		return libraryError(dev.Address, err)
	}

	if c.pairing != nil {
		c.logger.WithField("address", c.pairing.address).Warn("Replacing unfinished pairing")
	}
	c.pairing = &pairingContext{address: dev.Address, sessionID: c.newSessionID()}

	c.logger.WithFields(logrus.Fields{
		"address":    dev.Address,
		"protection": protectionLevel,
		"session":    c.pairing.sessionID,
	}).Info("Pairing started")
	return nil
}

// Unpair removes the stored link key. The registry is left untouched and an
// UnpairResult with success is always published; the returned error reports
// a transport rejection.
func (c *Controller) Unpair(dev device.Device) error {
	out, err := c.locked(func() error {
		var err error
		if terr := c.transport.DropLinkKey(dev.Address); terr != nil {
			c.logger.WithError(terr).WithField("address", dev.Address).Warn("Link key removal rejected")
			err = libraryError(dev.Address, terr)
		}
		c.emit(notify.UnpairResult{Device: dev.Clone(), Success: true})
		c.logger.WithField("address", dev.Address).Info("Device unpaired")
		return err
	})
	c.publish(out)
	return err
}

// RespondPinCode answers a PIN or passkey prompt. The registry entry decides
// the path: a legacy handshake gets pin verbatim, an SSP handshake gets pin
// parsed as a passkey. A malformed passkey is logged and nothing is sent,
// leaving the handshake to time out.
func (c *Controller) RespondPinCode(pin string, dev device.Device) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.registry.Find(dev.Address)
	if !ok {
		return &Error{Kind: KindDeviceNotFound, Address: dev.Address}
	}

	fields := logrus.Fields{"address": dev.Address, "ssp": entry.IsPairingSSP}

	if !entry.IsPairingSSP {
		if err := c.transport.PinCodeResponse(dev.Address, pin); err != nil {
			return libraryError(dev.Address, err)
		}
		c.logger.WithFields(fields).Info("PIN sent")
		return nil
	}

	passkey, err := strconv.ParseUint(pin, 10, 32)
	if err != nil || passkey > MaxPasskey {
		c.logger.WithFields(fields).Warn("Dropping malformed passkey")
		return &Error{Kind: KindMalformedPasskey, Address: dev.Address, Err: fmt.Errorf("%q is not a 6-digit passkey", pin)}
	}
	if err := c.transport.PasskeyResponse(dev.Address, uint32(passkey)); err != nil {
		return libraryError(dev.Address, err)
	}
	c.logger.WithFields(fields).Info("Passkey sent")
	return nil
}

// FinishCodeComparison confirms or rejects a numeric comparison.
func (c *Controller) FinishCodeComparison(accepted bool, dev device.Device) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.transport.UserConfirmationResponse(dev.Address, accepted); err != nil {
		return libraryError(dev.Address, err)
	}
	c.logger.WithFields(logrus.Fields{"address": dev.Address, "accepted": accepted}).Info("Numeric comparison answered")
	return nil
}

// GetDevicesList returns a copy of the registry.
func (c *Controller) GetDevicesList() []device.Device {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.registry.Snapshot()
}

// State returns the current stack and scan state.
func (c *Controller) State() (hci.StackState, ScanState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.stack, c.state.scan
}

// Ready is closed the first time the stack reaches Working.
func (c *Controller) Ready() <-chan struct{} {
	return c.ready
}

// locked runs fn under the mutex and returns the notifications it queued.
func (c *Controller) locked(fn func() error) ([]notify.Notification, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	err := fn()
	return c.takeOutbox(), err
}

func (c *Controller) emit(n notify.Notification) {
	c.outbox = append(c.outbox, n)
}

func (c *Controller) takeOutbox() []notify.Notification {
	out := c.outbox
	c.outbox = nil
	return out
}

func (c *Controller) publish(out []notify.Notification) {
	for _, n := range out {
		c.publisher.Publish(n)
	}
}
