package pairing

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nearclip/pkg/crypto"
	"nearclip/pkg/protocol"
)

func TestFullPairingFlow(t *testing.T) {
	keyA, err := crypto.Generate()
	require.NoError(t, err)
	keyB, err := crypto.Generate()
	require.NoError(t, err)

	sessionA := NewSession(keyA)
	sessionB := NewSession(keyB)

	dataA := sessionA.LocalPairingData("device-a", nil)
	dataB := sessionB.LocalPairingData("device-b", NewConnectionInfo().WithIP("192.168.1.5").WithPort(7777))

	require.NoError(t, sessionA.ProcessPeerData(dataB))
	require.NoError(t, sessionB.ProcessPeerData(dataA))

	secretA, ok := sessionA.SharedSecret()
	require.True(t, ok)
	secretB, ok := sessionB.SharedSecret()
	require.True(t, ok)
	assert.Equal(t, secretA, secretB)

	deviceA, err := sessionA.Complete("Device B", protocol.PlatformAndroid)
	require.NoError(t, err)
	assert.Equal(t, "device-b", deviceA.DeviceID)
	assert.NotEmpty(t, deviceA.ConnectionInfo)

	deviceB, err := sessionB.Complete("Device A", protocol.PlatformMacOS)
	require.NoError(t, err)
	assert.Equal(t, "device-a", deviceB.DeviceID)
}

func TestIncompleteSessionHandling(t *testing.T) {
	key, err := crypto.Generate()
	require.NoError(t, err)

	session := NewSession(key)
	_, err = session.Complete("peer", protocol.PlatformLinux)
	assert.Error(t, err)

	_, ok := session.SharedSecret()
	assert.False(t, ok)
}

func TestProcessPeerDataTwiceFails(t *testing.T) {
	keyA, err := crypto.Generate()
	require.NoError(t, err)
	keyB, err := crypto.Generate()
	require.NoError(t, err)

	sessionA := NewSession(keyA)
	dataB := NewSession(keyB).LocalPairingData("device-b", nil)

	require.NoError(t, sessionA.ProcessPeerData(dataB))
	assert.Error(t, sessionA.ProcessPeerData(dataB))
}

func TestPairingWithCompressedKey(t *testing.T) {
	keyA, err := crypto.Generate()
	require.NoError(t, err)
	keyB, err := crypto.Generate()
	require.NoError(t, err)

	sessionA := NewSession(keyA)
	dataB := New("device-b", keyB.PublicKeyBytesCompressed())

	require.NoError(t, sessionA.ProcessPeerData(dataB))
	secret, ok := sessionA.SharedSecret()
	require.True(t, ok)
	assert.Len(t, secret, 32)
}

func TestInvalidPeerDataRejected(t *testing.T) {
	key, err := crypto.Generate()
	require.NoError(t, err)

	session := NewSession(key)
	bad := &PairingData{Version: 1, DeviceID: "", PublicKey: "garbage"}
	assert.Error(t, session.ProcessPeerData(bad))
}

func TestQrCodeRoundTrip(t *testing.T) {
	key, err := crypto.Generate()
	require.NoError(t, err)

	data := New("device-a", key.PublicKeyBytes()).WithConnectionInfo(
		NewConnectionInfo().WithIP("2001:db8::1").WithPort(9999).WithMdnsName("nearclip-device-a"),
	)

	gen := NewQrCodeGenerator(0)
	png1, err := gen.GeneratePNG(data)
	require.NoError(t, err)
	png2, err := gen.GeneratePNG(data)
	require.NoError(t, err)
	assert.Equal(t, png1, png2, "qr generation must be deterministic")

	parser := NewQrCodeParser()
	parsed, err := parser.ParsePairingData(png1)
	require.NoError(t, err)
	assert.Equal(t, data.DeviceID, parsed.DeviceID)
	assert.Equal(t, data.PublicKey, parsed.PublicKey)
	require.NotNil(t, parsed.ConnectionInfo)
	assert.Equal(t, "2001:db8::1", *parsed.ConnectionInfo.IP)
}

func TestQrCodeParsingInvalidImageFails(t *testing.T) {
	parser := NewQrCodeParser()
	_, err := parser.ParsePairingData([]byte("not a png"))
	assert.Error(t, err)
}

func TestFileDeviceStoreCrud(t *testing.T) {
	dir := t.TempDir()
	store := NewFileDeviceStore(filepath.Join(dir, "devices.json"))

	_, ok, err := store.Get("missing")
	require.NoError(t, err)
	assert.False(t, ok)

	device := &PairedDevice{
		DeviceID:         "device-a",
		DeviceName:       "Pixel",
		Platform:         protocol.PlatformAndroid,
		SharedSecretHash: "aGFzaA==",
	}
	require.NoError(t, store.Save(device))

	got, ok, err := store.Get("device-a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Pixel", got.DeviceName)

	all, err := store.List()
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, store.Delete("device-a"))
	_, ok, err = store.Get("device-a")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Delete("device-a"))
}

func TestFileDeviceStorePersistsAcrossInstances(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "devices.json")

	store1 := NewFileDeviceStore(path)
	require.NoError(t, store1.Save(&PairedDevice{DeviceID: "device-a", DeviceName: "A"}))

	_, err := os.Stat(path)
	require.NoError(t, err)

	store2 := NewFileDeviceStore(path)
	got, ok, err := store2.Get("device-a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "A", got.DeviceName)
}
