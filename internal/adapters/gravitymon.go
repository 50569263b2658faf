package adapters

import (
	"encoding/json"

	"github.com/brewsignal/brewsignal/internal/model"
)

// gravityMonBody extends the iSpindel schema with a few GravityMon-specific
// keys; its presence is what disambiguates it from a plain iSpindel body
// (spec §4.1 routing policy: GravityMon is tried first, being the more
// specific schema).
type gravityMonBody struct {
	Name        string   `json:"name"`
	ID          string   `json:"ID"`
	Angle       *float64 `json:"angle"`
	Temperature *float64 `json:"temperature"`
	TempUnits   string   `json:"temp_units"`
	Gravity     *float64 `json:"gravity"`
	Battery     *float64 `json:"battery"`
	RSSI        *int     `json:"RSSI"`
	Token       string   `json:"token"`
	Interval    *int     `json:"interval"`
}

// GravityMonAdapter decodes the GravityMon HTTP schema: like iSpindel, but
// with a string "ID" (a device identifier, not a numeric index) and a
// "token" field unique to GravityMon firmware.
type GravityMonAdapter struct{}

func (GravityMonAdapter) Kind() model.DeviceKind { return model.KindGravityMon }

func (GravityMonAdapter) Sniff(p Payload) bool {
	if p.SourceProtocol != "http" {
		return false
	}
	var body gravityMonBody
	if err := json.Unmarshal(p.HTTPBody, &body); err != nil {
		return false
	}
	return body.ID != "" && body.Token != "" && body.Gravity != nil && body.Temperature != nil
}

func (GravityMonAdapter) Parse(p Payload) (model.NormalizedReading, *AdapterError) {
	var body gravityMonBody
	if err := json.Unmarshal(p.HTTPBody, &body); err != nil {
		return model.NormalizedReading{}, &AdapterError{Kind: ErrMalformed, Msg: "invalid GravityMon JSON"}
	}
	if body.ID == "" || body.Gravity == nil || body.Temperature == nil {
		return model.NormalizedReading{}, &AdapterError{Kind: ErrMissingField, Msg: "GravityMon payload missing required field"}
	}

	tempC := *body.Temperature
	if body.TempUnits == "F" {
		tempC = (tempC - 32.0) * 5.0 / 9.0
	}
	gravitySG := *body.Gravity

	var battery *int
	if body.Battery != nil {
		b := int(*body.Battery)
		battery = &b
	}

	return model.NormalizedReading{
		DeviceID:       "gravitymon-" + body.ID,
		Kind:           model.KindGravityMon,
		GravitySG:      &gravitySG,
		TemperatureC:   &tempC,
		RSSI:           body.RSSI,
		BatteryPercent: battery,
		RawBlob:        append([]byte(nil), p.HTTPBody...),
		SourceProtocol: "http",
		ObservedAt:     p.ObservedAt,
		// GravityMon devices can apply their own calibration polynomial
		// on-device before reporting; the ingest manager treats this as
		// a hint, not a bypass of its own calibration step.
		PreFiltered: body.Angle == nil,
	}, nil
}
