// Package config loads NearClip's runtime configuration, mirroring
// dc4eu-vc/pkg/configuration: an env var names a YAML file, defaults
// are seeded first, then the file overrides them.
package config

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/creasty/defaults"
	"github.com/google/uuid"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	"nearclip/pkg/errs"
)

// envVars are read directly from the process environment.
type envVars struct {
	ConfigYAML string `envconfig:"NEARCLIP_CONFIG_YAML"`
}

// Config holds every tunable NearClip exposes: timeouts, retry
// counts, cache sizes, and the BLE GATT identifiers.
type Config struct {
	DeviceID   string `yaml:"device_id" validate:"omitempty,max=64"`
	DeviceName string `yaml:"device_name"`

	WifiListenAddr string        `yaml:"wifi_listen_addr" default:":0"`
	TcpConnectTimeout time.Duration `yaml:"tcp_connect_timeout" default:"10s" validate:"gt=0"`
	MaxFrameBytes  uint32        `yaml:"max_frame_bytes" default:"16777216" validate:"gt=0"` // 16 MiB

	AckTimeout   time.Duration `yaml:"ack_timeout" default:"5s" validate:"gt=0"`
	RetryCount   int           `yaml:"retry_count" default:"3" validate:"gte=0"`
	RetryBaseDelay time.Duration `yaml:"retry_base_delay" default:"250ms" validate:"gt=0"`
	RetryMaxDelay  time.Duration `yaml:"retry_max_delay" default:"5s" validate:"gt=0"`

	ReassembleTimeout time.Duration `yaml:"reassemble_timeout" default:"30s"`
	MaxConcurrentMessages int       `yaml:"max_concurrent_messages" default:"8"`

	LoopGuardHistorySize int           `yaml:"loop_guard_history_size" default:"100"`
	LoopGuardTTL         time.Duration `yaml:"loop_guard_ttl" default:"60s"`

	MaxClipboardMessageSize int `yaml:"max_clipboard_message_size" default:"1048576"`

	DeviceLostTimeout       time.Duration `yaml:"device_lost_timeout" default:"30s"`
	MaxReconnectAttempts    int           `yaml:"max_reconnect_attempts" default:"5"`
	ReconnectBaseDelay      time.Duration `yaml:"reconnect_base_delay" default:"500ms"`
	HealthCheckInterval     time.Duration `yaml:"health_check_interval" default:"30s"`
	ConnectionTimeout       time.Duration `yaml:"connection_timeout" default:"60s"`

	WifiPriority int `yaml:"wifi_priority" default:"10"`
	BlePriority  int `yaml:"ble_priority" default:"5"`

	GattServiceUUID string `yaml:"gatt_service_uuid" default:"4e454152-434c-4950-0000-000000000001"`

	DeviceStorePath  string `yaml:"device_store_path" default:"./nearclip-devices.json"`
	HistoryStorePath string `yaml:"history_store_path" default:"./nearclip-history.jsonl"`

	Production bool   `yaml:"production" default:"false"`
	LogPath    string `yaml:"log_path"`
}

// Load resolves NEARCLIP_CONFIG_YAML, seeds defaults, then overlays
// the YAML file's contents.
func Load() (*Config, error) {
	env := envVars{}
	if err := envconfig.Process("", &env); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, err
	}

	if env.ConfigYAML == "" {
		ensureDeviceID(cfg)
		if err := errs.Validate(cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	return LoadFile(env.ConfigYAML)
}

// ensureDeviceID assigns a fresh random device id the first time a
// device runs without one configured, the way the original Rust test
// harness seeds device ids via uuid::Uuid::new_v4().
func ensureDeviceID(cfg *Config) {
	if cfg.DeviceID == "" {
		cfg.DeviceID = uuid.NewString()
	}
}

// LoadFile seeds defaults then overlays the given YAML file.
func LoadFile(path string) (*Config, error) {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, errors.New("config path is a directory")
	}

	raw, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, err
	}

	ensureDeviceID(cfg)
	if err := errs.Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
