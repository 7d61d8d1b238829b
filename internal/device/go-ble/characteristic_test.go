package goble

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-ble/ble"
	"github.com/srg/biscuit/internal/device"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func connectedChars(t *testing.T) (*fakeClient, map[string]device.Characteristic) {
	t.Helper()
	client := newFakeClient(testProfile())
	p, _ := newTestPeripheral(&fakeDialer{clients: []*fakeClient{client}})
	require.NoError(t, p.Connect(context.Background()))
	_, chars, err := p.DiscoverAttributes(context.Background())
	require.NoError(t, err)

	byUUID := make(map[string]device.Characteristic)
	for _, c := range chars {
		byUUID[c.UUID()] = c
	}
	return client, byUUID
}

func TestCharacteristic_WriteWithResponse(t *testing.T) {
	client, chars := connectedChars(t)
	tx := chars[device.NormalizeUUID(testTxUUID)]

	require.NoError(t, tx.Write(context.Background(), []byte{0x12, 0x34}, true))
	require.NoError(t, tx.Write(context.Background(), []byte{0x56}, false))

	assert.Equal(t, [][]byte{{0x12, 0x34}, {0x56}}, client.writes)
	assert.Equal(t, []bool{false, true}, client.writeNoRsp)
}

func TestCharacteristic_WriteErrorIsWrapped(t *testing.T) {
	client, chars := connectedChars(t)
	client.writeErr = errors.New("device not connected")

	err := chars[device.NormalizeUUID(testTxUUID)].Write(context.Background(), []byte{1}, true)
	require.Error(t, err)
	assert.ErrorIs(t, err, device.ErrNotConnected)
}

func TestCharacteristic_NotificationsDeliveredInOrder(t *testing.T) {
	client, chars := connectedChars(t)
	rx := chars[device.NormalizeUUID(testRxUUID)]

	var mu sync.Mutex
	var got [][]byte
	require.NoError(t, rx.Subscribe(context.Background(), func(data []byte) {
		mu.Lock()
		got = append(got, data)
		mu.Unlock()
	}))

	key := ble.MustParse(testRxUUID).String()
	buf := []byte{1}
	require.True(t, client.notify(key, buf))
	buf[0] = 9 // stack may reuse its buffer
	require.True(t, client.notify(key, []byte{2}))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 2
	}, time.Second, time.Millisecond)

	mu.Lock()
	assert.Equal(t, [][]byte{{1}, {2}}, got)
	mu.Unlock()
}

func TestCharacteristic_HandlerMayWriteBack(t *testing.T) {
	client, chars := connectedChars(t)
	tx := chars[device.NormalizeUUID(testTxUUID)]
	rx := chars[device.NormalizeUUID(testRxUUID)]

	require.NoError(t, rx.Subscribe(context.Background(), func([]byte) {
		_ = tx.Write(context.Background(), []byte{0x01}, true)
	}))

	client.notify(ble.MustParse(testRxUUID).String(), []byte{0xaa})

	require.Eventually(t, func() bool {
		return client.writeCount() == 1
	}, time.Second, time.Millisecond)
}

func TestCharacteristic_Unsubscribe(t *testing.T) {
	client, chars := connectedChars(t)
	rx := chars[device.NormalizeUUID(testRxUUID)]

	require.NoError(t, rx.Subscribe(context.Background(), func([]byte) {}))
	require.NoError(t, rx.Unsubscribe(context.Background()))

	assert.False(t, client.notify(ble.MustParse(testRxUUID).String(), []byte{1}))
	assert.Equal(t, []string{ble.MustParse(testRxUUID).String()}, client.unsubscribed)
}

func TestCharacteristic_ReadAfterDisconnect(t *testing.T) {
	client := newFakeClient(testProfile())
	p, _ := newTestPeripheral(&fakeDialer{clients: []*fakeClient{client}})
	require.NoError(t, p.Connect(context.Background()))
	_, chars, err := p.DiscoverAttributes(context.Background())
	require.NoError(t, err)
	require.NoError(t, p.Disconnect(context.Background()))

	_, err = chars[0].Read(context.Background())
	assert.ErrorIs(t, err, device.ErrNotConnected)
}
