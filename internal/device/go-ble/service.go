package goble

import (
	"github.com/srg/biscuit/internal/bledb"
	"github.com/srg/biscuit/internal/device"
)

// BLEService is a discovered GATT service
type BLEService struct {
	uuid      string
	knownName string
}

func newService(rawUUID string) *BLEService {
	return &BLEService{
		uuid:      device.NormalizeUUID(rawUUID),
		knownName: bledb.LookupService(rawUUID),
	}
}

func (s *BLEService) UUID() string {
	return s.uuid
}

// KnownName returns the human-readable name, or empty if the UUID is not registered.
func (s *BLEService) KnownName() string {
	return s.knownName
}
