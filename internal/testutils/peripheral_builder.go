package testutils

import (
	"encoding/json"
	"fmt"

	"github.com/srg/biscuit/internal/device"
	"github.com/srg/biscuit/internal/testutils/mocks"
	"github.com/stretchr/testify/mock"
)

// BiscuitProfileJSON is the GATT layout of a Biscuit peripheral as seen after discovery.
const BiscuitProfileJSON = `
{
	"id": "AA:BB:CC:DD:EE:FF",
	"name": "Biscuit",
	"services": [
		{
			"uuid": "1800",
			"characteristics": [
				{ "uuid": "2A00", "value": [66, 105, 115, 99, 117, 105, 116, 0] },
				{ "uuid": "2A01", "value": [0, 0] },
				{ "uuid": "2A02", "value": [0] },
				{ "uuid": "2A03" },
				{ "uuid": "2A04", "value": [6, 0, 12, 0, 0, 0, 100, 0] }
			]
		},
		{ "uuid": "1801" },
		{ "uuid": "180A" },
		{
			"uuid": "713D0000-503E-4C75-BA94-3148F18D941E",
			"characteristics": [
				{ "uuid": "713D0001-503E-4C75-BA94-3148F18D941E", "value": [82, 101, 100, 66, 101, 97, 114, 76, 97, 98] },
				{ "uuid": "713D0002-503E-4C75-BA94-3148F18D941E", "value": [] },
				{ "uuid": "713D0003-503E-4C75-BA94-3148F18D941E" },
				{ "uuid": "713D0004-503E-4C75-BA94-3148F18D941E" },
				{ "uuid": "713D0005-503E-4C75-BA94-3148F18D941E", "value": [1, 2] }
			]
		}
	]
}`

// CharacteristicConfig represents a characteristic of the mocked peripheral
type CharacteristicConfig struct {
	UUID  string `json:"uuid"`
	Value []byte `json:"value,omitempty"`
}

// ServiceConfig represents a service of the mocked peripheral
type ServiceConfig struct {
	UUID            string                 `json:"uuid"`
	Characteristics []CharacteristicConfig `json:"characteristics,omitempty"`
}

// PeripheralProfileConfig is the complete mocked peripheral description
type PeripheralProfileConfig struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Services []ServiceConfig `json:"services"`
}

// PeripheralBuilder builds a mocks.MockPeripheral whose DiscoverAttributes returns the
// configured profile and whose characteristics accept every operation unless told otherwise.
type PeripheralBuilder struct {
	profile       PeripheralProfileConfig
	connectErr    error
	disconnectErr error
	discoverErr   error
	writeErrs     map[string]error
	readErrs      map[string]error
	subscribeErrs map[string]error
}

// NewPeripheralBuilder creates a builder with the default Biscuit identity and no services
func NewPeripheralBuilder() *PeripheralBuilder {
	return &PeripheralBuilder{
		profile: PeripheralProfileConfig{
			ID:   "AA:BB:CC:DD:EE:FF",
			Name: "Biscuit",
		},
		writeErrs:     make(map[string]error),
		readErrs:      make(map[string]error),
		subscribeErrs: make(map[string]error),
	}
}

// WithIdentity sets the peripheral address and advertised name
func (b *PeripheralBuilder) WithIdentity(id, name string) *PeripheralBuilder {
	b.profile.ID = id
	b.profile.Name = name
	return b
}

// WithService adds a service to the profile
func (b *PeripheralBuilder) WithService(uuid string) *PeripheralBuilder {
	b.profile.Services = append(b.profile.Services, ServiceConfig{UUID: uuid})
	return b
}

// WithCharacteristic adds a characteristic to the last added service
func (b *PeripheralBuilder) WithCharacteristic(uuid string, value []byte) *PeripheralBuilder {
	if len(b.profile.Services) == 0 {
		panic("WithCharacteristic: no service added yet, call WithService first")
	}
	last := len(b.profile.Services) - 1
	b.profile.Services[last].Characteristics = append(b.profile.Services[last].Characteristics,
		CharacteristicConfig{UUID: uuid, Value: value})
	return b
}

// FromJSON replaces the profile with the JSON description
func (b *PeripheralBuilder) FromJSON(jsonStrFmt string, args ...interface{}) *PeripheralBuilder {
	jsonStr := fmt.Sprintf(jsonStrFmt, args...)

	var config PeripheralProfileConfig
	if err := json.Unmarshal([]byte(jsonStr), &config); err != nil {
		panic(fmt.Sprintf("PeripheralBuilder.FromJSON: failed to unmarshal: %v", err))
	}
	if config.ID == "" {
		config.ID = b.profile.ID
	}
	if config.Name == "" {
		config.Name = b.profile.Name
	}
	b.profile = config
	return b
}

func (b *PeripheralBuilder) WithConnectError(err error) *PeripheralBuilder {
	b.connectErr = err
	return b
}

func (b *PeripheralBuilder) WithDisconnectError(err error) *PeripheralBuilder {
	b.disconnectErr = err
	return b
}

// WithDiscoverError makes DiscoverAttributes return the full profile together with err
func (b *PeripheralBuilder) WithDiscoverError(err error) *PeripheralBuilder {
	b.discoverErr = err
	return b
}

func (b *PeripheralBuilder) WithWriteError(uuid string, err error) *PeripheralBuilder {
	b.writeErrs[device.NormalizeUUID(uuid)] = err
	return b
}

func (b *PeripheralBuilder) WithReadError(uuid string, err error) *PeripheralBuilder {
	b.readErrs[device.NormalizeUUID(uuid)] = err
	return b
}

func (b *PeripheralBuilder) WithSubscribeError(uuid string, err error) *PeripheralBuilder {
	b.subscribeErrs[device.NormalizeUUID(uuid)] = err
	return b
}

// PeripheralFixture is a built mock peripheral plus direct access to its characteristics
type PeripheralFixture struct {
	Peripheral      *mocks.MockPeripheral
	Services        []device.Service
	Characteristics []device.Characteristic

	chars map[string]*mocks.MockCharacteristic
}

// Char returns the mock characteristic with the given UUID, in any accepted form
func (f *PeripheralFixture) Char(uuid string) *mocks.MockCharacteristic {
	c, ok := f.chars[device.NormalizeUUID(uuid)]
	if !ok {
		panic(fmt.Sprintf("PeripheralFixture.Char: characteristic %s not in profile", uuid))
	}
	return c
}

// Build creates the mock peripheral with its expectations
func (b *PeripheralBuilder) Build() *PeripheralFixture {
	p := mocks.NewMockPeripheral(b.profile.ID, b.profile.Name)
	f := &PeripheralFixture{
		Peripheral: p,
		chars:      make(map[string]*mocks.MockCharacteristic),
	}

	for _, svcCfg := range b.profile.Services {
		f.Services = append(f.Services, mocks.NewMockService(svcCfg.UUID))
		for _, charCfg := range svcCfg.Characteristics {
			c := b.buildCharacteristic(charCfg)
			f.chars[c.UUID()] = c
			f.Characteristics = append(f.Characteristics, c)
		}
	}

	connectCall := p.On("Connect", mock.Anything).Return(b.connectErr).Maybe()
	if b.connectErr == nil {
		connectCall.Run(func(mock.Arguments) {
			p.FireType(device.EventConnected)
		})
	}

	p.On("Disconnect", mock.Anything).Run(func(mock.Arguments) {
		p.FireType(device.EventDisconnected)
	}).Return(b.disconnectErr).Maybe()

	p.On("DiscoverAttributes", mock.Anything).
		Return(f.Services, f.Characteristics, b.discoverErr).Maybe()

	return f
}

func (b *PeripheralBuilder) buildCharacteristic(cfg CharacteristicConfig) *mocks.MockCharacteristic {
	c := mocks.NewMockCharacteristic(cfg.UUID)
	key := c.UUID()

	value := cfg.Value
	if value == nil {
		value = []byte{}
	}

	c.On("Read", mock.Anything).Return(value, b.readErrs[key]).Maybe()
	c.On("Write", mock.Anything, mock.Anything, mock.Anything).Return(b.writeErrs[key]).Maybe()
	c.On("Subscribe", mock.Anything, mock.Anything).Return(b.subscribeErrs[key]).Maybe()
	c.On("Unsubscribe", mock.Anything).Return(nil).Maybe()
	return c
}
