package device

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// NotFoundError represents an error when a GATT attribute is not present in the attribute cache
type NotFoundError struct {
	Resource string   // "service", "characteristic"
	UUIDs    []string // One or more UUIDs
}

func (e *NotFoundError) Error() string {
	if len(e.UUIDs) == 0 {
		return fmt.Sprintf("%s not found", e.Resource)
	}
	if len(e.UUIDs) == 1 {
		return fmt.Sprintf("%s %q not found", e.Resource, e.UUIDs[0])
	}
	return fmt.Sprintf("%s %q not found in service %q", e.Resource, e.UUIDs[len(e.UUIDs)-1], e.UUIDs[0])
}

// Is lets errors.Is match a NotFoundError against ErrUnknownCharacteristic / ErrUnknownService.
func (e *NotFoundError) Is(target error) bool {
	switch target {
	case ErrUnknownCharacteristic:
		return e.Resource == "characteristic"
	case ErrUnknownService:
		return e.Resource == "service"
	}
	return false
}

// ConnectionState represents the specific kind of connection state failure
type ConnectionState string

const (
	NotConnected     ConnectionState = "not_connected"
	AlreadyConnected ConnectionState = "already_connected"
	NotReady         ConnectionState = "not_ready"
)

// ConnectionError represents any connection-related problem
type ConnectionError struct {
	State ConnectionState
	Msg   string
}

// Error implements the error interface
func (e *ConnectionError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Msg == "" {
		return string(e.State)
	}
	return fmt.Sprintf("%s: %s", e.State, e.Msg)
}

// Is allows errors.Is to compare ConnectionError values by State
func (e *ConnectionError) Is(target error) bool {
	if e == nil {
		return false
	}
	t, ok := target.(*ConnectionError)
	if !ok {
		return false
	}
	return e.State == t.State
}

// Predefined sentinel errors for connection states
var (
	ErrNotConnected     = &ConnectionError{State: NotConnected}
	ErrAlreadyConnected = &ConnectionError{State: AlreadyConnected}
	ErrNotReady         = &ConnectionError{State: NotReady}
)

// Operation errors
var (
	ErrAdapterUnavailable    = errors.New("bluetooth adapter unavailable")
	ErrUnknownCharacteristic = errors.New("unknown characteristic")
	ErrUnknownService        = errors.New("unknown service")
)

// IsConnectionState reports whether err is a ConnectionError with the given state
func IsConnectionState(err error, state ConnectionState) bool {
	var cerr *ConnectionError
	if errors.As(err, &cerr) {
		return cerr.State == state
	}
	return false
}

// containsIgnoreCase checks substring case-insensitively
func containsIgnoreCase(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// NormalizeError maps generic stack error strings to structured errors.
// Returns wrapped errors to preserve original context.
func NormalizeError(err error) error {
	if err == nil {
		return nil
	}

	msg := err.Error()
	switch {
	case containsIgnoreCase(msg, "bluetooth is turned off"), containsIgnoreCase(msg, "is Bluetooth turned on"):
		return fmt.Errorf("%w: %v", ErrAdapterUnavailable, err)
	case containsIgnoreCase(msg, "device not connected"):
		return fmt.Errorf("%w: %v", ErrNotConnected, err)
	case containsIgnoreCase(msg, "device already connected"):
		return fmt.Errorf("%w: %v", ErrAlreadyConnected, err)
	default:
		return err
	}
}

// AdapterState is the power/availability state of the local Bluetooth adapter
type AdapterState int

const (
	// AdapterUnknown means the adapter has not reported its state yet.
	AdapterUnknown AdapterState = iota
	AdapterPoweredOn
	AdapterPoweredOff
	AdapterUnsupported
	AdapterUnauthorized
)

func (s AdapterState) String() string {
	switch s {
	case AdapterUnknown:
		return "unknown"
	case AdapterPoweredOn:
		return "poweredOn"
	case AdapterPoweredOff:
		return "poweredOff"
	case AdapterUnsupported:
		return "unsupported"
	case AdapterUnauthorized:
		return "unauthorized"
	default:
		return fmt.Sprintf("AdapterState(%d)", int(s))
	}
}

// Advertisement is a single advertising report seen while scanning
type Advertisement interface {
	LocalName() string
	Addr() string
	RSSI() int
	Connectable() bool
}

// Adapter is the local BLE host stack entry point
type Adapter interface {
	// State returns the last known adapter state without blocking.
	State() AdapterState
	// WaitReady blocks until the adapter leaves AdapterUnknown or ctx ends.
	WaitReady(ctx context.Context) (AdapterState, error)
	// Scan reports advertisements to handler until ctx is cancelled.
	Scan(ctx context.Context, allowDup bool, handler func(Advertisement)) error
	// Peripheral returns the stack handle for the remote device with the given identity.
	Peripheral(id, name string) Peripheral
}

// EventType identifies a peripheral lifecycle event raised by the stack
type EventType int

const (
	// EventConnected follows a successful caller-initiated connect.
	EventConnected EventType = iota
	// EventDisconnected follows a caller-initiated disconnect.
	EventDisconnected
	// EventDropped reports a link loss the caller did not ask for.
	EventDropped
	// EventReconnected reports that the stack re-established a dropped link on its own.
	EventReconnected
)

func (t EventType) String() string {
	switch t {
	case EventConnected:
		return "connected"
	case EventDisconnected:
		return "disconnected"
	case EventDropped:
		return "dropped"
	case EventReconnected:
		return "reconnected"
	default:
		return fmt.Sprintf("EventType(%d)", int(t))
	}
}

// Event is a lifecycle notification for one peripheral
type Event struct {
	Type EventType
	Err  error // cause of a drop, if the stack knows it
}

// Peripheral is the host stack view of one remote device
type Peripheral interface {
	ID() string
	Name() string

	// OnEvent installs the lifecycle handler. A later call replaces the previous handler.
	OnEvent(handler func(Event))

	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error

	// DiscoverAttributes enumerates every service and characteristic.
	// Partial results may accompany a non-nil error.
	DiscoverAttributes(ctx context.Context) ([]Service, []Characteristic, error)
}

// Service represents a discovered GATT service
type Service interface {
	UUID() string
}

// CharacteristicReader provides read operations
type CharacteristicReader interface {
	Read(ctx context.Context) ([]byte, error)
}

// CharacteristicWriter provides write operations
type CharacteristicWriter interface {
	Write(ctx context.Context, data []byte, withResponse bool) error
}

// CharacteristicNotifier toggles peripheral-initiated notifications
type CharacteristicNotifier interface {
	// Subscribe enables notifications and attaches handler to the data-available signal.
	Subscribe(ctx context.Context, handler func([]byte)) error
	// Unsubscribe disables notifications and detaches the handler.
	Unsubscribe(ctx context.Context) error
}

// Characteristic combines info + operations
type Characteristic interface {
	UUID() string
	CharacteristicReader
	CharacteristicWriter
	CharacteristicNotifier
}
