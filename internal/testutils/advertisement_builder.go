package testutils

import (
	"encoding/json"
	"fmt"

	"github.com/srg/biscuit/internal/device"
)

// Advertisement is a static device.Advertisement
type Advertisement struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Rssi    int    `json:"rssi"`
	Conn    bool   `json:"connectable"`
}

func (a *Advertisement) LocalName() string { return a.Name }
func (a *Advertisement) Addr() string      { return a.Address }
func (a *Advertisement) RSSI() int         { return a.Rssi }
func (a *Advertisement) Connectable() bool { return a.Conn }

// AdvertisementBuilder builds advertisements for scan tests.
// The builder starts with connectable=true.
type AdvertisementBuilder struct {
	adv Advertisement
}

// NewAdvertisementBuilder creates a new AdvertisementBuilder with default values.
func NewAdvertisementBuilder() *AdvertisementBuilder {
	return &AdvertisementBuilder{adv: Advertisement{Conn: true}}
}

// WithName sets the local name for the advertisement.
func (b *AdvertisementBuilder) WithName(name string) *AdvertisementBuilder {
	b.adv.Name = name
	return b
}

// WithAddress sets the device address for the advertisement.
func (b *AdvertisementBuilder) WithAddress(addr string) *AdvertisementBuilder {
	b.adv.Address = addr
	return b
}

// WithRSSI sets the signal strength for the advertisement.
func (b *AdvertisementBuilder) WithRSSI(rssi int) *AdvertisementBuilder {
	b.adv.Rssi = rssi
	return b
}

func (b *AdvertisementBuilder) WithConnectable(connectable bool) *AdvertisementBuilder {
	b.adv.Conn = connectable
	return b
}

// FromJSON fills the builder from JSON ({"name": ..., "address": ..., "rssi": ...})
func (b *AdvertisementBuilder) FromJSON(jsonStrFmt string, args ...interface{}) *AdvertisementBuilder {
	jsonStr := fmt.Sprintf(jsonStrFmt, args...)
	adv := Advertisement{Conn: true}
	if err := json.Unmarshal([]byte(jsonStr), &adv); err != nil {
		panic(fmt.Sprintf("AdvertisementBuilder.FromJSON: failed to unmarshal: %v", err))
	}
	b.adv = adv
	return b
}

// Build returns a copy of the configured advertisement
func (b *AdvertisementBuilder) Build() device.Advertisement {
	adv := b.adv
	return &adv
}
