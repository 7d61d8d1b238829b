package main

import (
	"bytes"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/biscuit/internal/device"
	"github.com/srg/biscuit/internal/testutils"
	"github.com/srg/biscuit/internal/testutils/mocks"
	"github.com/srg/biscuit/pkg/biscuit"
	"github.com/srg/biscuit/pkg/config"
	"github.com/stretchr/testify/mock"
)

// TestDeviceAddress is the address the mock adapter advertises
const TestDeviceAddress = "C0:FF:EE:00:00:01"

// CommandTestSuite extends MockPeripheralSuite with a mock adapter wired into the CLI.
// All cmd/biscuit test suites should embed this instead of MockPeripheralSuite.
type CommandTestSuite struct {
	testutils.MockPeripheralSuite

	Adapter *mocks.MockAdapter

	prevAdapter func(*config.Config, *logrus.Logger) device.Adapter
}

func (s *CommandTestSuite) SetupTest() {
	s.MockPeripheralSuite.SetupTest()

	s.Adapter = mocks.NewMockAdapter()
	s.Adapter.On("State").Return(device.AdapterPoweredOn).Maybe()
	s.Adapter.On("Scan", mock.Anything, mock.Anything).Return(nil).Maybe()
	s.Adapter.On("Peripheral", mock.Anything, mock.Anything).Return(s.Fixture.Peripheral).Maybe()

	s.prevAdapter = newAdapter
	newAdapter = func(*config.Config, *logrus.Logger) device.Adapter { return s.Adapter }
}

func (s *CommandTestSuite) TearDownTest() {
	newAdapter = s.prevAdapter
	s.MockPeripheralSuite.TearDownTest()
}

// AdvertiseWhenScanning advertises one Biscuit as soon as a scan is running
func (s *CommandTestSuite) AdvertiseWhenScanning() {
	adv := testutils.CreateMockAdvertisement(biscuit.AdvertisedName, TestDeviceAddress, -42).Build()
	go func() {
		deadline := time.Now().Add(s.TestTimeout)
		for time.Now().Before(deadline) {
			if s.Adapter.Advertise(adv) {
				return
			}
			time.Sleep(time.Millisecond)
		}
	}()
}

// ExecuteCommand runs the root command with args, returns output and error.
func (s *CommandTestSuite) ExecuteCommand(args ...string) (string, error) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}
