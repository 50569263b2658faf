package adapters

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tiltPayload(major, minor uint16) Payload {
	d := make([]byte, 25)
	d[0] = 0x02
	d[1] = 0x15
	copy(d[2:18], tiltUUIDFamily[:])
	d[2+3] = 0x60 // blue
	d[18] = byte(major >> 8)
	d[19] = byte(major)
	d[20] = byte(minor >> 8)
	d[21] = byte(minor)
	return Payload{
		SourceProtocol:   "ble",
		ManufacturerID:   0x004c,
		ManufacturerData: d,
		ObservedAt:       time.Now(),
	}
}

func TestTiltAdapter_HDDecode(t *testing.T) {
	p := tiltPayload(682, 10452)
	reg := NewRegistry()
	reading, aerr, ok := reg.Route(p)
	require.True(t, ok)
	require.Nil(t, aerr)
	assert.Equal(t, "tilt-blue", reading.DeviceID)
	assert.InDelta(t, 1.0452, *reading.GravitySG, 1e-9)
	assert.InDelta(t, (68.2-32)*5/9, *reading.TemperatureC, 1e-6)
}

func TestTiltAdapter_StandardDecode(t *testing.T) {
	p := tiltPayload(68, 1048)
	reg := NewRegistry()
	reading, aerr, ok := reg.Route(p)
	require.True(t, ok)
	require.Nil(t, aerr)
	assert.InDelta(t, 1.048, *reading.GravitySG, 1e-9)
	assert.InDelta(t, 20.0, *reading.TemperatureC, 1e-6)
}

func TestEncodeTilt_RoundTripsThroughDecode(t *testing.T) {
	major, minor := EncodeTilt(1.048, 68.0)
	p := tiltPayload(major, minor)
	reg := NewRegistry()
	reading, aerr, ok := reg.Route(p)
	require.True(t, ok)
	require.Nil(t, aerr)
	assert.InDelta(t, 1.048, *reading.GravitySG, 1e-9)
	assert.InDelta(t, 20.0, *reading.TemperatureC, 1e-6)
}

func TestTiltAdapter_SniffIdempotent(t *testing.T) {
	p := tiltPayload(68, 1048)
	tilt := TiltAdapter{}
	assert.Equal(t, tilt.Sniff(p), tilt.Sniff(p))
}

func TestRAPTAdapter_IgnoresHardwareRevisionBeacon(t *testing.T) {
	p := Payload{
		SourceProtocol:   "ble",
		ManufacturerID:   raptMetricsManufacturerID,
		ManufacturerData: []byte(raptHardwareRevisionBeacon),
	}
	reg := NewRegistry()
	_, aerr, ok := reg.Route(p)
	assert.True(t, ok)
	assert.NotNil(t, aerr)
}

func TestRAPTAdapter_IgnoresVersionBeacon(t *testing.T) {
	p := Payload{
		SourceProtocol:   "ble",
		ManufacturerID:   raptVersionManufacturerID,
		ManufacturerData: []byte("G1.2.3"),
	}
	reg := NewRegistry()
	_, aerr, ok := reg.Route(p)
	assert.True(t, ok)
	assert.NotNil(t, aerr)
}

func TestISpindelAdapter_Parse(t *testing.T) {
	body := []byte(`{"name":"Spindel1","ID":12345,"angle":45.2,"temperature":20.0,"temp_units":"C","gravity":1.048,"battery":3.98,"RSSI":-62}`)
	p := Payload{SourceProtocol: "http", HTTPBody: body, ObservedAt: time.Now()}
	reg := NewRegistry()
	reading, aerr, ok := reg.Route(p)
	require.True(t, ok)
	require.Nil(t, aerr)
	assert.Equal(t, "ispindel-Spindel1", reading.DeviceID)
	assert.InDelta(t, 1.048, *reading.GravitySG, 1e-9)
	assert.InDelta(t, 20.0, *reading.TemperatureC, 1e-9)
}

func TestGravityMonPreferredOverISpindel(t *testing.T) {
	body := []byte(`{"ID":"abc123","token":"secret","angle":45.2,"temperature":20.0,"temp_units":"C","gravity":1.048,"name":"gm"}`)
	p := Payload{SourceProtocol: "http", HTTPBody: body, ObservedAt: time.Now()}
	reg := NewRegistry()
	reading, aerr, ok := reg.Route(p)
	require.True(t, ok)
	require.Nil(t, aerr)
	assert.Equal(t, "gravitymon-abc123", reading.DeviceID)
}
