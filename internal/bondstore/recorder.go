package bondstore

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/srg/classicgap/internal/notify"
)

const writeTimeout = 2 * time.Second

// Recorder is a notify.Publisher that keeps the store in step with pairing
// outcomes: a successful PairingResult saves the peer, a successful
// UnpairResult forgets it. Everything else is ignored.
type Recorder struct {
	store  *Store
	logger *logrus.Logger
}

func NewRecorder(store *Store, logger *logrus.Logger) *Recorder {
	if logger == nil {
		logger = logrus.New()
	}
	return &Recorder{store: store, logger: logger}
}

// Publish implements notify.Publisher.
func (r *Recorder) Publish(n notify.Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	switch n := n.(type) {
	case notify.PairingResult:
		if !n.Success {
			return
		}
		session := ""
		if n.SessionID != uuid.Nil {
			session = n.SessionID.String()
		}
		if _, err := r.store.Save(ctx, n.Device, session); err != nil {
			r.logger.WithError(err).WithField("address", n.Device.Address).Error("Failed to record bond")
			return
		}
		r.logger.WithField("address", n.Device.Address).Info("Bond recorded")

	case notify.UnpairResult:
		if !n.Success {
			return
		}
		err := r.store.Delete(ctx, n.Device.Address)
		switch {
		case errors.Is(err, ErrNotFound):
			r.logger.WithField("address", n.Device.Address).Debug("Unpaired device had no bond record")
		case err != nil:
			r.logger.WithError(err).WithField("address", n.Device.Address).Error("Failed to forget bond")
		default:
			r.logger.WithField("address", n.Device.Address).Info("Bond forgotten")
		}
	}
}
