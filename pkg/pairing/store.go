package pairing

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"nearclip/pkg/errs"
)

// DeviceStore persists PairedDevice records across restarts. The
// original Rust source backs this with SQLite
// (nearclip-device/src/store.rs); no example repo in this corpus
// imports a SQLite driver, so this follows a crash-consistent single
// file written via a temp-file-plus-rename, which gives the same
// atomicity guarantee SQLite's transaction would.
type DeviceStore interface {
	Save(device *PairedDevice) error
	Get(deviceID string) (*PairedDevice, bool, error)
	List() ([]*PairedDevice, error)
	Delete(deviceID string) error
}

// FileDeviceStore implements DeviceStore as a single JSON file of
// records, keyed by device id, guarded by an in-process mutex and
// made crash-consistent via atomic rename.
type FileDeviceStore struct {
	mu   sync.Mutex
	path string
}

// NewFileDeviceStore opens (or prepares to create) the store at path.
func NewFileDeviceStore(path string) *FileDeviceStore {
	return &FileDeviceStore{path: path}
}

func (s *FileDeviceStore) load() (map[string]*PairedDevice, error) {
	records := make(map[string]*PairedDevice)

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return records, nil
	}
	if err != nil {
		return nil, errs.Wrap(errs.KindLocal, "device_store_read", err)
	}
	if len(data) == 0 {
		return records, nil
	}

	if err := json.Unmarshal(data, &records); err != nil {
		return nil, errs.Wrap(errs.KindLocal, "device_store_corrupt", err)
	}
	return records, nil
}

func (s *FileDeviceStore) persist(records map[string]*PairedDevice) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return errs.Wrap(errs.KindLocal, "device_store_marshal", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return errs.Wrap(errs.KindLocal, "device_store_mkdir", err)
	}

	tmp, err := os.CreateTemp(dir, ".device_store-*.tmp")
	if err != nil {
		return errs.Wrap(errs.KindLocal, "device_store_tempfile", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return errs.Wrap(errs.KindLocal, "device_store_write", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return errs.Wrap(errs.KindLocal, "device_store_sync", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return errs.Wrap(errs.KindLocal, "device_store_close", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return errs.Wrap(errs.KindLocal, "device_store_rename", err)
	}
	return nil
}

// Save writes or replaces a device record.
func (s *FileDeviceStore) Save(device *PairedDevice) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return err
	}
	records[device.DeviceID] = device
	return s.persist(records)
}

// Get looks up a device by id.
func (s *FileDeviceStore) Get(deviceID string) (*PairedDevice, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return nil, false, err
	}
	d, ok := records[deviceID]
	return d, ok, nil
}

// List returns every paired device.
func (s *FileDeviceStore) List() ([]*PairedDevice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return nil, err
	}
	out := make([]*PairedDevice, 0, len(records))
	for _, d := range records {
		out = append(out, d)
	}
	return out, nil
}

// Delete removes a device record. It is not an error to delete a
// device id that was never paired.
func (s *FileDeviceStore) Delete(deviceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := records[deviceID]; !ok {
		return nil
	}
	delete(records, deviceID)
	return s.persist(records)
}

var _ DeviceStore = (*FileDeviceStore)(nil)
