package gap

import (
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/srg/classicgap/internal/device"
	"github.com/srg/classicgap/internal/hci"
	"github.com/srg/classicgap/internal/notify"
)

// HandleEvent is the dispatcher installed by RegisterScan. It never panics
// and never returns an error: a bad event is logged and dropped.
func (c *Controller) HandleEvent(ev hci.Event) {
	c.publish(c.dispatch(ev))
}

func (c *Controller) dispatch(ev hci.Event) (out []notify.Notification) {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			c.logger.WithFields(logrus.Fields{
				"event": ev.EventName(),
				"panic": r,
			}).Error("Event handler panicked, event dropped")
		}
		out = c.takeOutbox()
	}()

	if ev == nil {
		c.logger.Warn("Dropping nil event")
		return
	}

	if st, ok := ev.(hci.StackStateChanged); ok {
		c.onStackStateChanged(st.State)
		return
	}

	if !c.state.working() {
		c.logger.WithFields(logrus.Fields{
			"event": ev.EventName(),
			"state": c.state.stack,
		}).Debug("Dropping event, stack not working")
		return
	}

	switch e := ev.(type) {
	case hci.InquiryResult:
		c.onInquiryResult(e)
	case hci.InquiryComplete:
		c.onInquiryComplete(e)
	case hci.RemoteNameComplete:
		c.onRemoteNameComplete(e)
	case hci.PinCodeRequest:
		c.onAuthenticationRequest(e.Address, notify.AuthPathPin, nil)
	case hci.UserConfirmationRequest:
		c.onAuthenticationRequest(e.Address, notify.AuthPathNumericComparison, e.NumericValue)
	case hci.UserPasskeyRequest:
		c.onAuthenticationRequest(e.Address, notify.AuthPathPasskey, nil)
	case hci.UserPasskeyNotification:
		passkey := e.Passkey
		c.onAuthenticationRequest(e.Address, notify.AuthPathPasskey, &passkey)
	case hci.DedicatedBondingCompleted:
		c.onPairingCompleted(e.Address, e.Status)
	case hci.SimplePairingComplete:
		c.onPairingCompleted(e.Address, e.Status)
	default:
		c.logger.WithField("event", ev.EventName()).Debug("Ignoring link-level event")
	}
	return
}

func (c *Controller) onStackStateChanged(next hci.StackState) {
	prev, prevScan := c.state.stack, c.state.scan
	expected := c.state.applyStack(next)

	entry := c.logger.WithFields(logrus.Fields{"from": prev, "state": next})
	if !expected {
		entry.Warn("Unexpected stack state transition")
	} else {
		entry.Info("Stack state changed")
	}

	if next == hci.StateWorking {
		c.readyOnce.Do(func() { close(c.ready) })
		return
	}
	c.inquiryActive = false
	if prevScan == ScanOn {
		c.logger.WithField("state", next).Info("Scan stopped, stack left working state")
	}
}

func (c *Controller) onInquiryResult(e hci.InquiryResult) {
	fields := logrus.Fields{
		"address":  e.Address,
		"cod":      e.ClassOfDevice,
		"services": e.ClassOfDevice.ServiceNames(),
	}

	if _, seen := c.registry.Find(e.Address); seen {
		c.logger.WithFields(fields).Debug("Already discovered in this inquiry")
		return
	}
	if !e.ClassOfDevice.SupportsAny(c.opts.RequiredServices) {
		c.logger.WithFields(fields).Debug("Filtered out, no required service")
		return
	}

	dev := device.Device{
		Address:                e.Address,
		ClassOfDevice:          e.ClassOfDevice,
		PageScanRepetitionMode: e.PageScanRepetitionMode,
		ClockOffset:            e.ClockOffset,
		RSSI:                   e.RSSI,
		NameFetchState:         device.NameRequested,
	}
	if name := device.SanitizeName(e.Name); name != "" {
		dev.Name = name
		dev.NameFetchState = device.NameFetched
	}
	c.registry.Put(dev)

	fields["name"] = dev.DisplayName()
	fields["major"] = e.ClassOfDevice.MajorClass()
	c.logger.WithFields(fields).Info("Device discovered")

	c.emit(notify.DeviceListChanged{Devices: c.registry.Snapshot()})
}

func (c *Controller) onInquiryComplete(e hci.InquiryComplete) {
	if !e.Status.OK() {
		c.logger.WithField("status", e.Status).Warn("Inquiry completed with error")
	}
	c.inquiryActive = false

	// A name request that got no answer, typically because it collided
	// with the inquiry, is retried.
	c.registry.ForEach(func(d *device.Device) {
		if d.NameFetchState == device.NameInquired {
			d.NameFetchState = device.NameRequested
		}
	})

	c.continueDiscovery()
}

// continueDiscovery issues the next remote name request, or starts another
// inquiry round when no name is pending and the scan is still on. At most
// one name request is ever in flight.
func (c *Controller) continueDiscovery() {
	if c.inquiryActive {
		return
	}

	for {
		if _, busy := c.registry.FindByState(device.NameInquired); busy {
			return
		}
		dev, pending := c.registry.FindByState(device.NameRequested)
		if !pending {
			break
		}

		err := c.transport.RemoteNameRequest(dev.Address, dev.PageScanRepetitionMode, dev.ClockOffset)
		if err == nil {
			dev.NameFetchState = device.NameInquired
			c.logger.WithField("address", dev.Address).Debug("Remote name requested")
			return
		}

		c.logger.WithError(err).WithField("address", dev.Address).Warn("Remote name request rejected")
		dev.NameFetchState = device.NameFetchFailed
		c.emit(notify.DeviceListChanged{Devices: c.registry.Snapshot()})
	}

	if c.state.scan == ScanOn {
		// Errors are logged and leave the scan Off.
		_ = c.startInquiryLocked()
	}
}

func (c *Controller) onRemoteNameComplete(e hci.RemoteNameComplete) {
	dev, ok := c.registry.Find(e.Address)
	if !ok {
		c.logger.WithField("address", e.Address).Debug("Remote name for unknown device")
		c.continueDiscovery()
		return
	}

	if e.Status.OK() {
		dev.Name = device.SanitizeName(e.Name)
		dev.NameFetchState = device.NameFetched
		c.logger.WithFields(logrus.Fields{"address": e.Address, "name": dev.Name}).Info("Remote name fetched")
	} else {
		dev.NameFetchState = device.NameFetchFailed
		c.logger.WithFields(logrus.Fields{"address": e.Address, "status": e.Status}).Info("Remote name fetch failed")
	}

	c.emit(notify.DeviceListChanged{Devices: c.registry.Snapshot()})
	c.continueDiscovery()
}

func (c *Controller) onAuthenticationRequest(addr device.Address, path notify.AuthPath, code *uint32) {
	dev, ok := c.registry.Find(addr)
	if !ok {
		// The peer started pairing without ever showing up in an inquiry.
		dev = c.registry.Put(device.New(addr))
	}
	dev.IsPairingSSP = path != notify.AuthPathPin

	ctx := c.pairingFor(addr)
	ctx.path = path
	ctx.prompted = true

	var shown *uint32
	if code != nil {
		v := *code
		shown = &v
	}

	c.logger.WithFields(logrus.Fields{
		"address": addr,
		"path":    path,
		"session": ctx.sessionID,
	}).Info("Authentication requested")

	c.emit(notify.AuthenticationRequested{
		Device:    dev.Clone(),
		Path:      path,
		Code:      shown,
		SessionID: ctx.sessionID,
	})
}

// pairingFor returns the context of the handshake with addr, opening one for
// a handshake the peer started.
func (c *Controller) pairingFor(addr device.Address) *pairingContext {
	if c.pairing != nil && c.pairing.address == addr {
		return c.pairing
	}
	if c.pairing != nil {
		c.logger.WithField("address", c.pairing.address).Warn("Replacing unfinished pairing")
	}
	c.pairing = &pairingContext{address: addr, sessionID: c.newSessionID()}
	return c.pairing
}

func (c *Controller) onPairingCompleted(addr device.Address, status hci.Status) {
	success := status.OK()

	var reported device.Device
	if dev, ok := c.registry.Find(addr); ok {
		reported = dev.Clone()
	} else {
		c.logger.WithField("address", addr).Warn("Pairing completed for unknown device, reporting failure")
		reported = device.New(addr)
		success = false
	}

	fields := logrus.Fields{
		"address": addr,
		"status":  status,
		"success": success,
	}

	session := uuid.Nil
	if c.pairing != nil && c.pairing.address == addr {
		session = c.pairing.sessionID
		if c.pairing.prompted {
			fields["path"] = c.pairing.path
		}
		c.pairing = nil
	}
	fields["session"] = session

	c.logger.WithFields(fields).Info("Pairing completed")

	c.emit(notify.PairingResult{Device: reported, Success: success, SessionID: session})
}
