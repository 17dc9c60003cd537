package store

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/calef/uartbridge/internal/logging"
	"github.com/calef/uartbridge/internal/settings"
)

// RecordFile is the well-known name of the persisted record on the medium.
const RecordFile = "bridge.cfg"

// Storage is the raw block-store capability the record lives on.
type Storage interface {
	// Mount makes the medium available. It may fail on virgin or damaged
	// media; Format followed by a second Mount is the only recovery.
	Mount() error
	// Unmount releases the medium. Always safe to call after a successful
	// Mount.
	Unmount()
	// Format re-initializes the medium, destroying all content.
	Format() error
	// ReadFile returns the whole content of a named file.
	ReadFile(name string) ([]byte, error)
	// WriteFile replaces the whole content of a named file.
	WriteFile(name string, data []byte) error
}

// Store loads and saves the device configuration record.
type Store struct {
	storage Storage
}

// New creates a Store over the given medium.
func New(storage Storage) *Store {
	return &Store{storage: storage}
}

// mount brings the medium up, formatting once and retrying if the first
// attempt fails. An error from the second attempt means the medium is
// unusable.
func (s *Store) mount() error {
	err := s.storage.Mount()
	if err == nil {
		return nil
	}
	logging.Warn("Storage mount failed, formatting",
		zap.Error(err),
	)
	if err := s.storage.Format(); err != nil {
		return fmt.Errorf("storage format failed: %w", err)
	}
	if err := s.storage.Mount(); err != nil {
		return fmt.Errorf("storage mount failed after format: %w", err)
	}
	return nil
}

// Probe verifies the medium is usable, applying the same format-and-retry
// policy as Load. The provisioning console calls this on entry before
// collecting any operator input.
func (s *Store) Probe() error {
	if err := s.mount(); err != nil {
		return err
	}
	s.storage.Unmount()
	return nil
}

// Load reads the persisted configuration. A record that is absent, wrongly
// sized, or fails its checksum is replaced with defaults which are saved
// back immediately. The returned error is non-nil only when the medium
// itself is unusable, which the caller must treat as fatal.
func (s *Store) Load() (settings.DeviceConfig, error) {
	if err := s.mount(); err != nil {
		return settings.DeviceConfig{}, err
	}

	raw, err := s.storage.ReadFile(RecordFile)
	s.storage.Unmount()
	if err == nil {
		cfg, decErr := settings.DecodeRecord(raw)
		if decErr == nil {
			logging.Info("Configuration loaded",
				zap.String("ssid", cfg.Wifi.SSID),
				zap.Uint16("listen_port", cfg.Wifi.ListenPort),
				zap.Uint32("dut_baud", cfg.Uart.DutBaud),
				zap.Uint32("log_baud", cfg.Uart.LogBaud),
			)
			return cfg, nil
		}
		logging.Warn("Persisted record rejected, applying defaults",
			zap.Int("length", len(raw)),
			zap.Error(decErr),
		)
	} else {
		logging.Warn("No persisted record, applying defaults",
			zap.Error(err),
		)
	}

	cfg := settings.Default()
	if _, err := s.Save(cfg); err != nil {
		logging.Error("Failed to persist default configuration",
			zap.Error(err),
		)
	}
	return cfg, nil
}

// Save writes the whole record for cfg and returns the checksum byte it was
// stored with. Errors are not fatal to the session: the caller logs them and
// keeps using the in-memory configuration.
func (s *Store) Save(cfg settings.DeviceConfig) (byte, error) {
	rec, err := settings.EncodeRecord(cfg)
	if err != nil {
		return 0, fmt.Errorf("encode record: %w", err)
	}
	sum := rec[len(rec)-1]

	if err := s.storage.Mount(); err != nil {
		logging.Error("Storage mount failed, configuration not persisted",
			zap.Error(err),
		)
		return sum, fmt.Errorf("mount for save: %w", err)
	}
	defer s.storage.Unmount()

	if err := s.storage.WriteFile(RecordFile, rec); err != nil {
		return sum, fmt.Errorf("write record: %w", err)
	}

	logging.Info("Configuration saved",
		zap.Int("bytes", len(rec)),
		zap.String("checksum", fmt.Sprintf("0x%02X", sum)),
	)
	return sum, nil
}
