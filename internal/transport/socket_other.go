//go:build !linux

package transport

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Open is only implemented on Linux.
func Open(id int, _ *logrus.Logger) (*Socket, error) {
	return nil, fmt.Errorf("open hci%d: %w", id, ErrUnsupported)
}
