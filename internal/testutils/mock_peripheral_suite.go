package testutils

import (
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/suite"
)

// MockPeripheralSuite provides a reusable test suite with a mocked Biscuit peripheral.
//
// Basic usage (default Biscuit profile):
//
//	type SessionSuite struct {
//	    testutils.MockPeripheralSuite
//	}
//
//	func TestSessionSuite(t *testing.T) {
//	    suite.Run(t, new(SessionSuite))
//	}
//
// Custom profile usage:
//
//	func (s *SessionSuite) SetupTest() {
//	    s.WithPeripheral().
//	        WithService("180F").
//	        WithCharacteristic("2A19", []byte{50})
//
//	    s.MockPeripheralSuite.SetupTest() // Call parent last to apply configuration
//	}
type MockPeripheralSuite struct {
	suite.Suite

	Helper      *TestHelper
	Logger      *logrus.Logger
	TestTimeout time.Duration

	// PeripheralBuilder configures the mock; Fixture is built from it in SetupTest.
	PeripheralBuilder *PeripheralBuilder
	Fixture           *PeripheralFixture
}

// SetupSuite initializes the helper and logger once for all tests in the suite.
func (s *MockPeripheralSuite) SetupSuite() {
	s.Helper = NewTestHelper(s.T())
	s.Logger = s.Helper.Logger
	s.TestTimeout = 2 * time.Second
}

// SetupTest builds the fixture before each test method.
func (s *MockPeripheralSuite) SetupTest() {
	if s.PeripheralBuilder == nil {
		s.PeripheralBuilder = CreateBiscuitPeripheral()
	}
	s.Fixture = s.PeripheralBuilder.Build()
	s.Logger.Debug("Test setup completed - ready for execution")
}

// TearDownTest resets the builder so the next test starts from the default profile.
func (s *MockPeripheralSuite) TearDownTest() {
	s.PeripheralBuilder = nil
	s.Fixture = nil
}

// WithPeripheral returns the peripheral builder for fluent configuration.
// Use this method to configure custom profiles before calling SetupTest.
func (s *MockPeripheralSuite) WithPeripheral() *PeripheralBuilder {
	if s.PeripheralBuilder == nil {
		s.PeripheralBuilder = NewPeripheralBuilder()
	}
	return s.PeripheralBuilder
}
