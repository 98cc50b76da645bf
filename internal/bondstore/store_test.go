package bondstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"github.com/srg/classicgap/internal/device"
	"github.com/srg/classicgap/internal/notify"
	"github.com/srg/classicgap/internal/testutils"
)

type StoreTestSuite struct {
	suite.Suite
	store *Store
	clock time.Time
	ctx   context.Context
}

func (s *StoreTestSuite) SetupTest() {
	store, err := Open(filepath.Join(s.T().TempDir(), "state", "bonds.db"))
	s.Require().NoError(err)

	s.clock = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return s.clock }
	s.store = store
	s.ctx = context.Background()
}

func (s *StoreTestSuite) TearDownTest() {
	s.Require().NoError(s.store.Close())
}

func (s *StoreTestSuite) TestSaveAndGet() {
	dev := testutils.CreateDevice("00:1A:7D:DA:71:13").WithName("Headphones").Build()

	saved, err := s.store.Save(s.ctx, dev, "session-1")
	s.Require().NoError(err)

	s.Equal(dev.Address, saved.Address)
	s.Equal("Headphones", saved.Name)
	s.Equal(dev.ClassOfDevice, saved.ClassOfDevice)
	s.Equal("session-1", saved.SessionID)
	s.True(s.clock.Equal(saved.BondedAt), "bond time MUST come from the store clock")

	ok, err := s.store.Exists(s.ctx, dev.Address)
	s.Require().NoError(err)
	s.True(ok)
}

func (s *StoreTestSuite) TestSaveKeepsKnownName() {
	// GOAL: re-bonding a device whose name was never fetched keeps the old name
	//
	// TEST SCENARIO: save with a name, save again without one → name survives, time moves
	addr := "00:1A:7D:DA:71:13"
	_, err := s.store.Save(s.ctx, testutils.CreateDevice(addr).WithName("Speaker").Build(), "")
	s.Require().NoError(err)

	s.clock = s.clock.Add(time.Hour)
	again, err := s.store.Save(s.ctx, testutils.CreateDevice(addr).Build(), "session-2")
	s.Require().NoError(err)

	s.Equal("Speaker", again.Name, "an empty name MUST NOT overwrite a stored one")
	s.Equal("session-2", again.SessionID)
	s.True(s.clock.Equal(again.BondedAt))

	bonds, err := s.store.List(s.ctx)
	s.Require().NoError(err)
	s.Len(bonds, 1, "saving the same address twice MUST NOT duplicate it")
}

func (s *StoreTestSuite) TestListIsMostRecentFirst() {
	for i, addr := range []string{"00:00:00:00:00:01", "00:00:00:00:00:02", "00:00:00:00:00:03"} {
		s.clock = s.clock.Add(time.Duration(i) * time.Minute)
		_, err := s.store.Save(s.ctx, testutils.CreateDevice(addr).Build(), "")
		s.Require().NoError(err)
	}

	bonds, err := s.store.List(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(bonds, 3)
	s.Equal("00:00:00:00:00:03", bonds[0].Address.String())
	s.Equal("00:00:00:00:00:01", bonds[2].Address.String())
}

func (s *StoreTestSuite) TestDeleteAndMissing() {
	dev := testutils.CreateDevice("00:1A:7D:DA:71:13").Build()
	_, err := s.store.Save(s.ctx, dev, "")
	s.Require().NoError(err)

	s.Require().NoError(s.store.Delete(s.ctx, dev.Address))

	s.ErrorIs(s.store.Delete(s.ctx, dev.Address), ErrNotFound, "deleting twice MUST report not found")
	_, err = s.store.Get(s.ctx, dev.Address)
	s.ErrorIs(err, ErrNotFound)

	bonds, err := s.store.List(s.ctx)
	s.Require().NoError(err)
	s.Empty(bonds)
}

func (s *StoreTestSuite) TestReopenKeepsBonds() {
	path := s.store.Path()
	_, err := s.store.Save(s.ctx, testutils.CreateDevice("00:1A:7D:DA:71:13").Build(), "")
	s.Require().NoError(err)
	s.Require().NoError(s.store.Close())

	reopened, err := Open(path)
	s.Require().NoError(err)
	s.store = reopened

	ok, err := s.store.Exists(s.ctx, device.MustParseAddress("00:1A:7D:DA:71:13"))
	s.Require().NoError(err)
	s.True(ok, "bonds MUST survive a reopen")
}

func (s *StoreTestSuite) TestRecorderFollowsNotifications() {
	rec := NewRecorder(s.store, testutils.QuietLogger())
	dev := testutils.CreateDevice("00:1A:7D:DA:71:13").WithName("Headphones").Build()
	session := uuid.New()

	tests := []struct {
		name   string
		n      notify.Notification
		bonded bool
	}{
		{"failed pairing is not recorded", notify.PairingResult{Device: dev, Success: false, SessionID: session}, false},
		{"successful pairing is recorded", notify.PairingResult{Device: dev, Success: true, SessionID: session}, true},
		{"device list is ignored", notify.DeviceListChanged{}, true},
		{"failed unpair keeps the bond", notify.UnpairResult{Device: dev, Success: false}, true},
		{"unpair forgets the bond", notify.UnpairResult{Device: dev, Success: true}, false},
		{"unpair of an unknown bond is harmless", notify.UnpairResult{Device: dev, Success: true}, false},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			rec.Publish(tt.n)

			ok, err := s.store.Exists(s.ctx, dev.Address)
			s.Require().NoError(err)
			s.Equal(tt.bonded, ok)
		})
	}

	rec.Publish(notify.PairingResult{Device: dev, Success: true, SessionID: session})
	b, err := s.store.Get(s.ctx, dev.Address)
	s.Require().NoError(err)
	s.Equal(session.String(), b.SessionID, "the pairing session MUST be kept with the bond")
}

func TestStoreTestSuite(t *testing.T) {
	suite.Run(t, new(StoreTestSuite))
}

func TestOpenRejectsEmptyPath(t *testing.T) {
	_, err := Open("")
	if err == nil {
		t.Fatal("Open MUST reject an empty path")
	}
}
