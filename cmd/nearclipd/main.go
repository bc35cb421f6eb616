// Command nearclipd runs a NearClip sync daemon: it binds a WiFi
// listener, optionally dials a peer given on the command line, and
// relays clipboard text typed on stdin to every paired device —
// replacing an RFCOMM chat demo with the facade this
// module actually implements (pkg/manager).
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"nearclip/pkg/config"
	"nearclip/pkg/crypto"
	"nearclip/pkg/history"
	"nearclip/pkg/logging"
	"nearclip/pkg/manager"
	"nearclip/pkg/pairing"
	"nearclip/pkg/protocol"
	"nearclip/pkg/retry"
	"nearclip/pkg/transport"
)

func main() {
	connectAddr := flag.String("connect", "", "address of a peer to dial on startup (host:port)")
	deviceID := flag.String("device-id", "", "override the configured device id")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if *deviceID != "" {
		cfg.DeviceID = *deviceID
	}

	log, err := logging.New("nearclipd", cfg.LogPath, cfg.Production)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build logger: %v\n", err)
		os.Exit(1)
	}

	hist := history.NewFileHistoryManager(cfg.HistoryStorePath)
	store := pairing.NewFileDeviceStore(cfg.DeviceStorePath)

	keypair, err := crypto.Generate()
	if err != nil {
		log.Error(err, "generate identity keypair")
		os.Exit(1)
	}

	cert, err := crypto.Generate([]string{"localhost"})
	if err != nil {
		log.Error(err, "generate tls certificate")
		os.Exit(1)
	}
	serverTLS, err := crypto.NewTlsServerConfig(cert)
	if err != nil {
		log.Error(err, "build tls server config")
		os.Exit(1)
	}
	clientTLS, err := crypto.NewTlsClientConfig(cert.CertDER())
	if err != nil {
		log.Error(err, "build tls client config")
		os.Exit(1)
	}

	listener, err := transport.NewWifiListener(cfg.WifiListenAddr, serverTLS)
	if err != nil {
		log.Error(err, "bind wifi listener")
		os.Exit(1)
	}
	defer listener.Close()

	callbacks := manager.Callbacks{
		OnDeviceConnected: func(info manager.DeviceInfo) {
			log.Info("device connected", "device_id", info.DeviceID, "device_name", info.DeviceName)
		},
		OnDeviceDisconnected: func(deviceID string) {
			log.Info("device disconnected", "device_id", deviceID)
		},
		OnDeviceUnpaired: func(deviceID string) {
			log.Info("device unpaired", "device_id", deviceID)
		},
		OnPairingRejected: func(deviceID string, reason error) {
			log.Error(reason, "pairing rejected", "device_id", deviceID)
		},
		OnClipboardReceived: func(payload []byte, fromDevice string) {
			fmt.Printf("\n[%s]: %s\nnearclip> ", fromDevice, string(payload))
			recordErr := hist.Record(history.Entry{
				DeviceID:       fromDevice,
				ContentPreview: history.Preview(payload),
				ContentSize:    len(payload),
				Direction:      history.DirectionReceived,
				TimestampMs:    uint64(timeNowMs()),
				Success:        true,
			})
			if recordErr != nil {
				log.Error(recordErr, "record history entry")
			}
		},
		OnSyncError: func(err error) {
			log.Error(err, "sync error")
		},
	}

	m := manager.New(manager.Config{
		LocalDeviceID:   cfg.DeviceID,
		LocalDeviceName: cfg.DeviceName,
		LocalPlatform:   protocol.PlatformLinux,
		Keypair:         keypair,
		Store:           store,
		WifiListener:    listener,
		WifiConnector:   transport.NewWifiConnector(clientTLS),
		BleHardware:     bleHardwareFor(log),
		Callbacks:       callbacks,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("shutting down")
		m.Stop()
		cancel()
	}()

	if err := m.Start(ctx); err != nil {
		log.Error(err, "start manager")
		os.Exit(1)
	}
	defer m.Stop()

	log.Info("nearclipd listening", "addr", listener.Addr().String(), "device_id", cfg.DeviceID)

	if *connectAddr != "" {
		peerDeviceID, err := m.Connect(ctx, *connectAddr)
		if err != nil {
			log.Error(err, "connect to peer", "addr", *connectAddr)
		} else {
			log.Info("connected to peer", "device_id", peerDeviceID)
		}
	}

	inputLoop(ctx, m, store, cfg, log)
}

// inputLoop reads lines from stdin and sends each as a clipboard sync
// to every paired device listed in store; a send to a device with no
// connected transport fails and the error is logged. It is the CLI stand-in for a
// real platform clipboard monitor, which is intentionally out of
// scope here.
func inputLoop(ctx context.Context, m *manager.Manager, store pairing.DeviceStore, cfg *config.Config, log *logging.Log) {
	reader := bufio.NewReader(os.Stdin)
	fmt.Println("nearclipd ready — type a line and press enter to sync it")
	for {
		fmt.Print("nearclip> ")
		text, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}

		strategy := retry.NewExponentialBackoff(cfg.RetryBaseDelay, cfg.RetryCount)
		peers, err := store.List()
		if err != nil {
			log.Error(err, "list paired devices")
			continue
		}
		for _, peer := range peers {
			if err := m.SendClipboard(ctx, peer.DeviceID, []byte(text), strategy); err != nil {
				log.Error(err, "send clipboard", "device_id", peer.DeviceID)
			}
		}
	}
}

func timeNowMs() int64 {
	return time.Now().UnixMilli()
}
