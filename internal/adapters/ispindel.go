package adapters

import (
	"encoding/json"

	"github.com/brewsignal/brewsignal/internal/model"
)

// iSpindelBody is the generic iSpindel HTTP schema (spec §4.1, §6).
type iSpindelBody struct {
	Name        string   `json:"name"`
	ID          *int64   `json:"ID"`
	Angle       *float64 `json:"angle"`
	Temperature *float64 `json:"temperature"`
	TempUnits   string   `json:"temp_units"`
	Gravity     *float64 `json:"gravity"`
	Battery     *float64 `json:"battery"`
	RSSI        *int     `json:"RSSI"`
}

// ISpindelAdapter decodes the generic iSpindel JSON schema. It is the
// fallback HTTP adapter: GravityMon's more specific schema is tried first
// by the registry.
type ISpindelAdapter struct{}

func (ISpindelAdapter) Kind() model.DeviceKind { return model.KindISpindel }

func (ISpindelAdapter) Sniff(p Payload) bool {
	if p.SourceProtocol != "http" {
		return false
	}
	var body iSpindelBody
	if err := json.Unmarshal(p.HTTPBody, &body); err != nil {
		return false
	}
	return body.Name != "" && body.ID != nil && body.Gravity != nil && body.Temperature != nil
}

func (ISpindelAdapter) Parse(p Payload) (model.NormalizedReading, *AdapterError) {
	var body iSpindelBody
	if err := json.Unmarshal(p.HTTPBody, &body); err != nil {
		return model.NormalizedReading{}, &AdapterError{Kind: ErrMalformed, Msg: "invalid iSpindel JSON"}
	}
	if body.ID == nil || body.Gravity == nil || body.Temperature == nil {
		return model.NormalizedReading{}, &AdapterError{Kind: ErrMissingField, Msg: "iSpindel payload missing required field"}
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

	deviceID := deviceIDFromName(body.Name)
	return model.NormalizedReading{
		DeviceID:       deviceID,
		Kind:           model.KindISpindel,
		GravitySG:      &gravitySG,
		TemperatureC:   &tempC,
		RSSI:           body.RSSI,
		BatteryPercent: battery,
		RawBlob:        append([]byte(nil), p.HTTPBody...),
		SourceProtocol: "http",
		ObservedAt:     p.ObservedAt,
	}, nil
}

func deviceIDFromName(name string) string {
	if name == "" {
		return "ispindel-unknown"
	}
	return "ispindel-" + name
}
