package adapters

import (
	"encoding/binary"
	"fmt"

	"github.com/brewsignal/brewsignal/internal/model"
)

// tiltUUIDFamily is the 16-byte iBeacon UUID prefix/suffix shared by every
// Tilt color, differing only in the 4th byte (the color tag).
var tiltUUIDFamily = [16]byte{
	0xa4, 0x95, 0xbb, 0x00, 0xc5, 0xb1, 0x4b, 0x44,
	0xb5, 0x12, 0x13, 0x70, 0xf0, 0x2d, 0x74, 0xde,
}

var tiltColors = map[byte]string{
	0x10: "red", 0x20: "green", 0x30: "black", 0x40: "purple",
	0x50: "orange", 0x60: "blue", 0x70: "yellow", 0x80: "pink",
}

// TiltAdapter decodes Apple iBeacon advertisements repurposed by Tilt
// hydrometers: major=temperature(F), minor=gravity*1000 (or *10000 for HD).
type TiltAdapter struct{}

func (TiltAdapter) Kind() model.DeviceKind { return model.KindTilt }

func (TiltAdapter) Sniff(p Payload) bool {
	if p.SourceProtocol != "ble" && p.SourceProtocol != "file" && p.SourceProtocol != "relay" && p.SourceProtocol != "mock" {
		return false
	}
	if len(p.ManufacturerData) < 25 {
		return false
	}
	// Apple manufacturer prefix 4c 00 02 15 followed by a 16-byte UUID
	// matching the Tilt family in all but the color byte.
	if p.ManufacturerID != 0x004c {
		return false
	}
	d := p.ManufacturerData
	if len(d) < 4 || d[0] != 0x02 || d[1] != 0x15 {
		return false
	}
	uuid := d[2:18]
	for i := 0; i < 16; i++ {
		if i == 3 {
			continue // color byte
		}
		if uuid[i] != tiltUUIDFamily[i] {
			return false
		}
	}
	_, ok := tiltColors[uuid[3]]
	return ok
}

func (t TiltAdapter) Parse(p Payload) (model.NormalizedReading, *AdapterError) {
	d := p.ManufacturerData
	if len(d) < 25 {
		return model.NormalizedReading{}, &AdapterError{Kind: ErrMalformed, Msg: "tilt payload too short"}
	}
	uuid := d[2:18]
	color, ok := tiltColors[uuid[3]]
	if !ok {
		return model.NormalizedReading{}, &AdapterError{Kind: ErrMalformed, Msg: "unrecognized tilt color byte"}
	}
	major := binary.BigEndian.Uint16(d[18:20])
	minor := binary.BigEndian.Uint16(d[20:22])

	var gravitySG, tempC float64
	if minor > 2000 {
		// HD Tilt: tenths resolution.
		gravitySG = float64(minor) / 10000.0
		tempC = (float64(major)/10.0 - 32.0) * 5.0 / 9.0
	} else {
		gravitySG = float64(minor) / 1000.0
		tempC = (float64(major) - 32.0) * 5.0 / 9.0
	}

	deviceID := fmt.Sprintf("tilt-%s", color)
	return model.NormalizedReading{
		DeviceID:       deviceID,
		Kind:           model.KindTilt,
		GravitySG:      &gravitySG,
		TemperatureC:   &tempC,
		RSSI:           p.RSSI,
		RawBlob:        append([]byte(nil), d...),
		SourceProtocol: p.SourceProtocol,
		ObservedAt:     p.ObservedAt,
	}, nil
}

// EncodeTilt is the inverse of the major/minor decode above, asserted in
// adapters_test.go to round-trip through Parse for representable values.
func EncodeTilt(gravitySG, tempF float64) (major, minor uint16) {
	return uint16(tempF), uint16(gravitySG * 1000)
}
