package blescanner

import (
	"context"
	"math"
	"time"

	"github.com/brewsignal/brewsignal/internal/adapters"
)

// MockBackend emits synthetic Tilt-shaped advertisements on a fixed period,
// for development without real hardware (spec §4.2).
type MockBackend struct {
	Interval time.Duration
	start    time.Time
}

func NewMockBackend(interval time.Duration) *MockBackend {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &MockBackend{Interval: interval}
}

func (m *MockBackend) Run(ctx context.Context, sink Sink) error {
	if m.start.IsZero() {
		m.start = time.Now()
	}
	ticker := time.NewTicker(m.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			elapsedHours := now.Sub(m.start).Hours()
			gravity := 1.050 - 0.002*elapsedHours // slow synthetic fermentation
			if gravity < 1.008 {
				gravity = 1.008
			}
			temp := 20.0 + 0.3*math.Sin(elapsedHours)

			sink(adapters.Payload{
				SourceProtocol:   string(ModeMock),
				ObservedAt:       now.UTC(),
				ManufacturerID:   0x004c,
				ManufacturerData: encodeSyntheticTilt(gravity, temp),
			})
		}
	}
}

func encodeSyntheticTilt(gravitySG, tempC float64) []byte {
	tempF := tempC*9.0/5.0 + 32.0
	major := uint16(tempF)
	minor := uint16(gravitySG * 1000)

	d := make([]byte, 25)
	d[0] = 0x02
	d[1] = 0x15
	uuid := [16]byte{
		0xa4, 0x95, 0xbb, 0x60, 0xc5, 0xb1, 0x4b, 0x44,
		0xb5, 0x12, 0x13, 0x70, 0xf0, 0x2d, 0x74, 0xde,
	}
	copy(d[2:18], uuid[:])
	d[18] = byte(major >> 8)
	d[19] = byte(major)
	d[20] = byte(minor >> 8)
	d[21] = byte(minor)
	return d
}
