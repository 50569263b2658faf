package adapters

import (
	"encoding/binary"
	"encoding/hex"
	"math"

	"github.com/brewsignal/brewsignal/internal/model"
)

const (
	raptMetricsManufacturerID = 16722 // "RA"
	raptVersionManufacturerID = 17739 // "KE"
)

// raptHardwareRevisionBeacon is the literal payload that MUST be ignored
// rather than parsed as a metrics frame (spec §4.1, §6).
const raptHardwareRevisionBeacon = "PTdPillG1"

// RAPTAdapter decodes the RAPT Pill's 23-byte big-endian manufacturer
// payload. Firmware-version beacons (manufacturer ID 17739) and the
// hardware-revision sentinel are recognized by Sniff but never produce a
// reading.
type RAPTAdapter struct{}

func (RAPTAdapter) Kind() model.DeviceKind { return model.KindRAPT }

func (RAPTAdapter) Sniff(p Payload) bool {
	switch p.SourceProtocol {
	case "ble", "file", "relay", "mock":
	default:
		return false
	}
	switch p.ManufacturerID {
	case raptMetricsManufacturerID:
		return true
	case raptVersionManufacturerID:
		return true
	default:
		return false
	}
}

func (r RAPTAdapter) Parse(p Payload) (model.NormalizedReading, *AdapterError) {
	if p.ManufacturerID == raptVersionManufacturerID {
		// Firmware-version string, never a reading. Treated as a clean
		// no-op by returning a missing-field error the ingest manager
		// logs and drops, matching spec §4.1's failure taxonomy.
		return model.NormalizedReading{}, &AdapterError{Kind: ErrMissingField, Msg: "rapt version beacon carries no reading"}
	}
	if string(p.ManufacturerData) == raptHardwareRevisionBeacon || hex.EncodeToString(p.ManufacturerData) == hex.EncodeToString([]byte(raptHardwareRevisionBeacon)) {
		return model.NormalizedReading{}, &AdapterError{Kind: ErrMissingField, Msg: "rapt hardware-revision beacon ignored"}
	}
	d := p.ManufacturerData
	if len(d) < 23 {
		return model.NormalizedReading{}, &AdapterError{Kind: ErrMalformed, Msg: "rapt payload too short"}
	}

	version := d[0]
	mac := d[1:7]
	tempRaw := binary.BigEndian.Uint16(d[7:9])
	gravityBits := binary.BigEndian.Uint32(d[9:13])
	gravityRaw := math.Float32frombits(gravityBits)
	batteryRaw := int16(binary.BigEndian.Uint16(d[21:23]))

	if version == 0 {
		return model.NormalizedReading{}, &AdapterError{Kind: ErrUnsupportedVersion, Msg: "rapt version byte is zero"}
	}

	tempC := float64(tempRaw)/128.0 - 273.15
	gravitySG := float64(gravityRaw) / 1000.0
	batteryPct := int(math.Round(float64(batteryRaw) / 256.0))

	deviceID := "rapt-" + hex.EncodeToString(mac)
	return model.NormalizedReading{
		DeviceID:       deviceID,
		Kind:           model.KindRAPT,
		GravitySG:      &gravitySG,
		TemperatureC:   &tempC,
		RSSI:           p.RSSI,
		BatteryPercent: &batteryPct,
		RawBlob:        append([]byte(nil), d...),
		SourceProtocol: p.SourceProtocol,
		ObservedAt:     p.ObservedAt,
	}, nil
}
