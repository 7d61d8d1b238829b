package biscuit

import (
	"sort"

	"github.com/cornelk/hashmap"
	"github.com/srg/biscuit/internal/device"
)

// attributeCache is one discovery pass worth of attributes. A cache is never modified after
// construction; the Session swaps in a new one per pass.
type attributeCache struct {
	services        *hashmap.Map[string, device.Service]
	characteristics *hashmap.Map[string, device.Characteristic]
}

func newAttributeCache(services []device.Service, chars []device.Characteristic) *attributeCache {
	c := &attributeCache{
		services:        hashmap.New[string, device.Service](),
		characteristics: hashmap.New[string, device.Characteristic](),
	}
	for _, s := range services {
		if s != nil {
			c.services.Set(device.NormalizeUUID(s.UUID()), s)
		}
	}
	for _, ch := range chars {
		if ch != nil {
			c.characteristics.Set(device.NormalizeUUID(ch.UUID()), ch)
		}
	}
	return c
}

func (c *attributeCache) characteristic(uuid string) (device.Characteristic, bool) {
	return c.characteristics.Get(uuid)
}

func (c *attributeCache) service(uuid string) (device.Service, bool) {
	return c.services.Get(uuid)
}

func (c *attributeCache) serviceUUIDs() []string {
	out := make([]string, 0, c.services.Len())
	c.services.Range(func(k string, _ device.Service) bool {
		out = append(out, k)
		return true
	})
	sort.Strings(out)
	return out
}

func (c *attributeCache) characteristicUUIDs() []string {
	out := make([]string, 0, c.characteristics.Len())
	c.characteristics.Range(func(k string, _ device.Characteristic) bool {
		out = append(out, k)
		return true
	})
	sort.Strings(out)
	return out
}
