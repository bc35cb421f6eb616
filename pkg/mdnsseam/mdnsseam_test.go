package mdnsseam

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServiceConfigTXTRecords(t *testing.T) {
	cfg := ServiceConfig{
		DeviceID:      "device-a",
		PublicKeyHash: []byte{0xde, 0xad, 0xbe, 0xef},
		Port:          12345,
	}

	records := cfg.TXTRecords()
	assert.Equal(t, "device-a", records[TXTDeviceID])
	assert.Equal(t, "3q2+7w==", records[TXTPublicKeyHash])
}

func TestNoopAdvertiserTracksState(t *testing.T) {
	a := &NoopAdvertiser{}
	assert.False(t, a.IsAdvertising())

	require.NoError(t, a.Start(context.Background(), ServiceConfig{DeviceID: "device-a", Port: 1}))
	assert.True(t, a.IsAdvertising())

	require.NoError(t, a.Stop())
	assert.False(t, a.IsAdvertising())
}

func TestNoopDiscovererNeverReportsAPeer(t *testing.T) {
	d := &NoopDiscoverer{}
	found := false

	require.NoError(t, d.Start(context.Background(), func(DiscoveredService) { found = true }))
	require.NoError(t, d.Stop())

	assert.False(t, found)
}
