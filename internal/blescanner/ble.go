package blescanner

import (
	"context"
	"fmt"
	"time"

	"tinygo.org/x/bluetooth"

	"github.com/brewsignal/brewsignal/internal/adapters"
)

// BLEBackend scans live BLE advertisements via the host's Bluetooth radio.
// Grounded on the tinygo.org/x/bluetooth adapter.Scan callback idiom.
type BLEBackend struct {
	adapter *bluetooth.Adapter
}

// NewBLEBackend wraps the platform's default BLE adapter.
func NewBLEBackend() *BLEBackend {
	return &BLEBackend{adapter: bluetooth.DefaultAdapter}
}

func (b *BLEBackend) Run(ctx context.Context, sink Sink) error {
	if err := b.adapter.Enable(); err != nil {
		return fmt.Errorf("enable ble adapter: %w", err)
	}

	scanErr := b.adapter.Scan(func(adapter *bluetooth.Adapter, result bluetooth.ScanResult) {
		select {
		case <-ctx.Done():
			adapter.StopScan()
			return
		default:
		}

		rssi := int(result.RSSI)
		for _, entry := range result.ManufacturerData() {
			sink(adapters.Payload{
				SourceProtocol:   string(ModeBLE),
				ObservedAt:       time.Now().UTC(),
				Address:          result.Address.String(),
				RSSI:             &rssi,
				ManufacturerID:   entry.CompanyID,
				ManufacturerData: entry.Data,
			})
		}
	})
	if scanErr != nil && ctx.Err() == nil {
		return fmt.Errorf("ble scan: %w", scanErr)
	}
	return nil
}
