package biscuit

import (
	"bytes"
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/srg/biscuit/internal/device"
)

// WriteData sends up to MaxWritePayload bytes on the TX characteristic
func (s *Session) WriteData(ctx context.Context, data []byte) error {
	if len(data) > MaxWritePayload {
		return fmt.Errorf("%w: %d bytes, max %d", ErrPayloadTooLarge, len(data), MaxWritePayload)
	}
	return s.WriteCharacteristic(ctx, TXCharUUID, data)
}

// ReadData polls the RX characteristic once
func (s *Session) ReadData(ctx context.Context) ([]byte, error) {
	return s.ReadAttribute(ctx, RXCharUUID)
}

// NotifyData enables the RX notification stream. Received chunks are acknowledged and then
// handed to OnData listeners.
func (s *Session) NotifyData(ctx context.Context) error {
	return s.NotifyCharacteristic(ctx, RXCharUUID, true, s.onChunk)
}

// UnnotifyData disables the RX notification stream
func (s *Session) UnnotifyData(ctx context.Context) error {
	return s.NotifyCharacteristic(ctx, RXCharUUID, false, nil)
}

// onChunk acknowledges a chunk so the peripheral sends the next one, then surfaces it.
// The chunk is surfaced even if the acknowledgement fails. Chunks keep arriving while
// attributes are rediscovered, so the ack goes straight to the cached handle.
func (s *Session) onChunk(chunk []byte) {
	key := device.NormalizeUUID(RXNextCharUUID)
	ch, ok := s.cache.Load().characteristic(key)
	var err error
	if ok {
		err = s.write(context.Background(), key, ch, AckPayload)
	} else {
		err = unknownCharacteristic(RXNextCharUUID)
	}
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"bytes": len(chunk),
			"error": err,
		}).Warn("Failed to acknowledge data chunk")
	}
	s.signals.emitData(chunk)
}

// ReadDeviceName reads the GAP device name
func (s *Session) ReadDeviceName(ctx context.Context) (string, error) {
	return s.readString(ctx, DeviceNameCharUUID)
}

// ReadVendorName reads the vendor name characteristic
func (s *Session) ReadVendorName(ctx context.Context) (string, error) {
	return s.readString(ctx, VendorNameCharUUID)
}

// ReadFirmwareVersion reads the shield library version, formatted by FormatVersion
func (s *Session) ReadFirmwareVersion(ctx context.Context) (string, error) {
	data, err := s.ReadAttribute(ctx, LibraryVersionCharUUID)
	if err != nil {
		return "", err
	}
	return FormatVersion(data)
}

func (s *Session) readString(ctx context.Context, uuid string) (string, error) {
	data, err := s.ReadAttribute(ctx, uuid)
	if err != nil {
		return "", err
	}
	return string(bytes.TrimRight(data, "\x00")), nil
}

// FormatVersion renders the two version bytes high byte first: [0x01, 0x02] is "02:01".
func FormatVersion(data []byte) (string, error) {
	if len(data) < 2 {
		return "", fmt.Errorf("%w: got %d bytes, want 2", ErrMalformedVersion, len(data))
	}
	return fmt.Sprintf("%02x:%02x", data[1], data[0]), nil
}
