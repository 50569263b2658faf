// Package adapters converts source-specific hydrometer payloads into the
// ingest manager's NormalizedReading shape.
package adapters

import (
	"time"

	"github.com/brewsignal/brewsignal/internal/model"
)

type ErrorKind string

const (
	ErrMalformed          ErrorKind = "malformed"
	ErrUnsupportedVersion ErrorKind = "unsupported_version"
	ErrMissingField       ErrorKind = "missing_required_field"
)

// AdapterError is returned by Parse when a payload cannot be converted.
type AdapterError struct {
	Kind ErrorKind
	Msg  string
}

func (e *AdapterError) Error() string {
	return string(e.Kind) + ": " + e.Msg
}

// Payload is the source-tagged raw input handed to the adapter registry.
// Exactly one of HTTPBody or ManufacturerData is populated depending on
// SourceProtocol.
type Payload struct {
	SourceProtocol   string // "ble" | "file" | "relay" | "mock" | "http"
	ObservedAt       time.Time
	Address          string // BLE device address, when applicable
	RSSI             *int
	ManufacturerID   uint16
	ManufacturerData []byte
	HTTPBody         []byte
	HTTPPath         string // used by GravityMon/iSpindel sniffing disambiguation
}

// Adapter converts one device family's payload shape into a
// NormalizedReading. Adapters are stateless; sniffing is a cheap structural
// test, never a full parse.
type Adapter interface {
	Kind() model.DeviceKind
	Sniff(p Payload) bool
	Parse(p Payload) (model.NormalizedReading, *AdapterError)
}

// Registry holds adapters in the fixed dispatch order required by spec §4.1:
// GravityMon, RAPT, iSpindel, Tilt. The order resolves the
// GravityMon-is-extended-iSpindel ambiguity.
type Registry struct {
	ordered []Adapter
}

// NewRegistry builds the standard, fixed-order adapter registry.
func NewRegistry() *Registry {
	return &Registry{
		ordered: []Adapter{
			&GravityMonAdapter{},
			&RAPTAdapter{},
			&ISpindelAdapter{},
			&TiltAdapter{},
		},
	}
}

// Route finds the first adapter whose Sniff matches and parses with it. It
// returns ok=false when nothing in the registry recognizes the payload.
func (r *Registry) Route(p Payload) (model.NormalizedReading, *AdapterError, bool) {
	for _, a := range r.ordered {
		if a.Sniff(p) {
			reading, aerr := a.Parse(p)
			return reading, aerr, true
		}
	}
	return model.NormalizedReading{}, nil, false
}
