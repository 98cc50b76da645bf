package notify

import "sync/atomic"

// RingChannel is a bounded queue with channel reads that never blocks the
// sender: when it is full the oldest element is dropped to make room.
type RingChannel[T any] struct {
	ch       chan T
	sent     atomic.Int64
	dropped  atomic.Int64
	received atomic.Int64
}

func NewRingChannel[T any](capacity int) *RingChannel[T] {
	if capacity <= 0 {
		panic("notify: ring capacity must be > 0")
	}
	return &RingChannel[T]{ch: make(chan T, capacity)}
}

// C is the receive side. Reads through it are not counted as received.
func (rc *RingChannel[T]) C() <-chan T {
	return rc.ch
}

// Send queues v and reports whether an older element was dropped for it.
func (rc *RingChannel[T]) Send(v T) bool {
	for {
		select {
		case rc.ch <- v:
			rc.sent.Add(1)
			return false
		default:
		}
		select {
		case <-rc.ch:
			rc.dropped.Add(1)
		default:
		}
		select {
		case rc.ch <- v:
			rc.sent.Add(1)
			return true
		default:
			// another sender took the freed slot
		}
	}
}

// TrySend queues v only if there is room.
func (rc *RingChannel[T]) TrySend(v T) bool {
	select {
	case rc.ch <- v:
		rc.sent.Add(1)
		return true
	default:
		return false
	}
}

// TryReceive takes the oldest element without blocking.
func (rc *RingChannel[T]) TryReceive() (T, bool) {
	select {
	case v := <-rc.ch:
		rc.received.Add(1)
		return v, true
	default:
		var zero T
		return zero, false
	}
}

func (rc *RingChannel[T]) Len() int {
	return len(rc.ch)
}

// RingStats counts what went through a RingChannel.
type RingStats struct {
	Sent     int64
	Dropped  int64
	Received int64
}

func (rc *RingChannel[T]) Stats() RingStats {
	return RingStats{
		Sent:     rc.sent.Load(),
		Dropped:  rc.dropped.Load(),
		Received: rc.received.Load(),
	}
}

// ChannelPublisher delivers notifications into a RingChannel. A slow
// consumer loses the oldest notifications and never blocks the controller.
type ChannelPublisher struct {
	*RingChannel[Notification]
}

func NewChannelPublisher(capacity int) *ChannelPublisher {
	return &ChannelPublisher{RingChannel: NewRingChannel[Notification](capacity)}
}

func (p *ChannelPublisher) Publish(n Notification) {
	p.Send(n)
}
