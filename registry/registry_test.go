package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/srg/classicgap/internal/device"
)

var (
	addrA = device.MustParseAddress("00:00:00:00:00:0A")
	addrB = device.MustParseAddress("00:00:00:00:00:0B")
	addrC = device.MustParseAddress("00:00:00:00:00:0C")
)

type RegistryTestSuite struct {
	suite.Suite
	reg *Registry
}

func (s *RegistryTestSuite) SetupTest() {
	s.reg = New()
}

func (s *RegistryTestSuite) addresses() []device.Address {
	var out []device.Address
	s.reg.ForEach(func(d *device.Device) { out = append(out, d.Address) })
	return out
}

func (s *RegistryTestSuite) TestPutKeepsOneEntryPerAddress() {
	// GOAL: Repeated puts of the same address never produce duplicates and move the entry to the tail
	//
	// TEST SCENARIO: Put A, B, C, then A again with a new name → 3 entries, order B, C, A, A carries the new name

	s.reg.Put(device.Device{Address: addrA, Name: "first"})
	s.reg.Put(device.Device{Address: addrB})
	s.reg.Put(device.Device{Address: addrC})
	s.reg.Put(device.Device{Address: addrA, Name: "second"})

	s.Equal(3, s.reg.Len(), "registry MUST hold one entry per address")
	s.Equal([]device.Address{addrB, addrC, addrA}, s.addresses(), "re-put entry MUST move to the most recent position")

	got, ok := s.reg.Find(addrA)
	s.Require().True(ok)
	s.Equal("second", got.Name, "re-put MUST replace, not merge")
}

func (s *RegistryTestSuite) TestPutReturnsLiveReference() {
	ref := s.reg.Put(device.Device{Address: addrA})
	ref.NameFetchState = device.NameInquired

	got, ok := s.reg.Find(addrA)
	s.Require().True(ok)
	s.Equal(device.NameInquired, got.NameFetchState, "mutation through the returned pointer MUST be visible")
}

func (s *RegistryTestSuite) TestFindByStateReturnsOldestMatch() {
	s.reg.Put(device.Device{Address: addrA, NameFetchState: device.NameFetched})
	s.reg.Put(device.Device{Address: addrB, NameFetchState: device.NameRequested})
	s.reg.Put(device.Device{Address: addrC, NameFetchState: device.NameRequested})

	got, ok := s.reg.FindByState(device.NameRequested)
	s.Require().True(ok)
	s.Equal(addrB, got.Address)

	_, ok = s.reg.FindByState(device.NameInquired)
	s.False(ok)
}

func (s *RegistryTestSuite) TestSnapshotDoesNotAlias() {
	rssi := int8(-50)
	s.reg.Put(device.Device{Address: addrA, Name: "speaker", RSSI: &rssi})

	snap := s.reg.Snapshot()
	s.Require().Len(snap, 1)

	snap[0].Name = "changed"
	*snap[0].RSSI = -10

	live, _ := s.reg.Find(addrA)
	s.Equal("speaker", live.Name, "snapshot MUST be a copy")
	s.Equal(int8(-50), *live.RSSI, "snapshot MUST NOT share pointers with live entries")
}

func (s *RegistryTestSuite) TestClear() {
	s.reg.Put(device.Device{Address: addrA})
	s.reg.Put(device.Device{Address: addrB})

	s.reg.Clear()

	s.Equal(0, s.reg.Len())
	s.Empty(s.reg.Snapshot())
	_, ok := s.reg.Find(addrA)
	s.False(ok)
}

func (s *RegistryTestSuite) TestForEachNilVisitor() {
	s.reg.Put(device.Device{Address: addrA})
	s.NotPanics(func() { s.reg.ForEach(nil) })
}

func TestRegistryTestSuite(t *testing.T) {
	suite.Run(t, new(RegistryTestSuite))
}

func TestRegistry_UniquenessUnderRandomPuts(t *testing.T) {
	reg := New()
	sequence := []device.Address{addrA, addrB, addrA, addrC, addrB, addrB, addrA, addrC}

	for _, a := range sequence {
		reg.Put(device.New(a))
	}

	snap := reg.Snapshot()
	require.Len(t, snap, 3)

	// Order follows the last occurrence of each address in the sequence.
	assert.Equal(t, addrB, snap[0].Address)
	assert.Equal(t, addrA, snap[1].Address)
	assert.Equal(t, addrC, snap[2].Address)
}
