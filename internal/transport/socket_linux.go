//go:build linux

package transport

import (
	"errors"
	"fmt"

	"github.com/go-ble/ble/linux/hci/socket"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// Open binds the HCI user channel of adapter id (-1 picks the first one
// available) and wraps it in a Socket. The adapter must be down and not
// claimed by bluetoothd.
func Open(id int, logger *logrus.Logger) (*Socket, error) {
	sk, err := socket.NewSocket(id)
	if err != nil {
		return nil, fmt.Errorf("open hci%d: %w", id, err)
	}
	s := NewSocket(sk, logger)
	s.retry = retryable
	return s, nil
}

func retryable(err error) bool {
	return errors.Is(err, unix.EINTR) || errors.Is(err, unix.EAGAIN)
}
