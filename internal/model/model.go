// Package model holds the data types shared across BrewSignal's ingest,
// processing, persistence, and control components.
package model

import "time"

// DeviceKind identifies which adapter produced a device's readings.
type DeviceKind string

const (
	KindTilt       DeviceKind = "tilt"
	KindISpindel   DeviceKind = "ispindel"
	KindGravityMon DeviceKind = "gravitymon"
	KindRAPT       DeviceKind = "rapt"
)

type GravityUnit string

const (
	GravitySG    GravityUnit = "SG"
	GravityPlato GravityUnit = "Plato"
	GravityBrix  GravityUnit = "Brix"
)

type TemperatureUnit string

const (
	TempCelsius    TemperatureUnit = "C"
	TempFahrenheit TemperatureUnit = "F"
)

// Device is a stable identity for a hydrometer, keyed by its BLE MAC,
// iBeacon color tag, or self-reported HTTP device ID.
type Device struct {
	ID                     string
	Kind                   DeviceKind
	DisplayName            string
	NativeGravityUnit      GravityUnit
	NativeTemperatureUnit  TemperatureUnit
	Paired                 bool
	LastSeen               time.Time
}

// CalibrationPoint is one (raw, actual) pair of a linear calibration curve.
type CalibrationPoint struct {
	Raw    float64
	Actual float64
}

// CalibrationQuantity distinguishes a gravity curve from a temperature curve.
type CalibrationQuantity string

const (
	CalibrateGravity     CalibrationQuantity = "gravity"
	CalibrateTemperature CalibrationQuantity = "temperature"
)

// CalibrationCurve is either an ordered set of linear interpolation points
// (Tilt-class devices) or a polynomial in the angle domain (iSpindel-class
// devices). Exactly one of Points or Coefficients is populated.
type CalibrationCurve struct {
	DeviceID     string
	Quantity     CalibrationQuantity
	Points       []CalibrationPoint // strictly increasing by Raw
	Coefficients []float64          // polynomial, lowest degree first
}

// IsPolynomial reports whether this curve is coefficient-based.
func (c CalibrationCurve) IsPolynomial() bool {
	return len(c.Coefficients) > 0
}

type ReadingStatus string

const (
	StatusValid        ReadingStatus = "valid"
	StatusInvalid      ReadingStatus = "invalid"
	StatusUncalibrated ReadingStatus = "uncalibrated"
	StatusIncomplete   ReadingStatus = "incomplete"
)

// Reading is one persisted, immutable observation. Temperatures are always
// Celsius; gravities are always SG.
type Reading struct {
	ID                     int64
	DeviceID               string
	Timestamp              time.Time
	GravityRaw             float64
	GravityCalibrated      float64
	GravityFiltered        float64
	TemperatureRaw         float64
	TemperatureCalibrated  float64
	TemperatureFiltered    float64
	RSSI                   *int
	BatteryPercent         *int
	Confidence             float64
	GravityRate            float64
	TemperatureRate        float64
	IsAnomaly              bool
	AnomalyScore           float64
	AnomalyReasons         []string
	BatchID                *int64
	Status                 ReadingStatus
}

type BatchStatus string

const (
	BatchPlanning    BatchStatus = "planning"
	BatchFermenting  BatchStatus = "fermenting"
	BatchConditioning BatchStatus = "conditioning"
	BatchCompleted   BatchStatus = "completed"
	BatchArchived    BatchStatus = "archived"
)

// Batch tracks one fermentation run and its optional temperature-control
// configuration.
type Batch struct {
	ID              int64
	DeviceID        *string
	RecipeID        *int64
	BatchNumber     int
	Status          BatchStatus
	StartTime       *time.Time
	EndTime         *time.Time
	MeasuredOG      *float64
	MeasuredFG      *float64
	HeaterEntity    *string
	CoolerEntity    *string
	TempTarget      *float64
	TempHysteresis  *float64
	DeletedAt       *time.Time
}

// HasActuators reports whether the batch has at least one configured
// actuator entity, a precondition for the temperature controller's
// candidate set (spec §4.5).
func (b Batch) HasActuators() bool {
	return b.HeaterEntity != nil || b.CoolerEntity != nil
}

// ControllerEligible reports whether the batch belongs in the controller's
// per-tick candidate set A.
func (b Batch) ControllerEligible() bool {
	return b.Status == BatchFermenting &&
		b.DeletedAt == nil &&
		b.DeviceID != nil &&
		b.HasActuators() &&
		b.TempTarget != nil
}

// NormalizedReading is the common shape every adapter produces regardless
// of source protocol.
type NormalizedReading struct {
	DeviceID        string
	Kind            DeviceKind
	GravitySG       *float64
	TemperatureC    *float64
	RSSI            *int
	BatteryPercent  *int
	RawBlob         []byte
	SourceProtocol  string // "ble" | "file" | "relay" | "mock" | "http"
	ObservedAt      time.Time
	PreFiltered     bool // true when the source device already applied its own calibration
}

// ProcessedReading is the per-device pipeline's output for one observation.
type ProcessedReading struct {
	GravityFiltered     float64
	TemperatureFiltered float64
	GravityRate         float64
	TemperatureRate     float64
	Confidence          float64
	IsAnomaly           bool
	AnomalyReasons      []string
	AnomalyScore        float64
}

type IngestOutcomeKind string

const (
	OutcomeAccepted       IngestOutcomeKind = "accepted"
	OutcomeRejected       IngestOutcomeKind = "rejected"
	OutcomeThrottled      IngestOutcomeKind = "throttled"
	OutcomeDeviceUnpaired IngestOutcomeKind = "device_unpaired"
)

type RejectReason string

const (
	ReasonWeakSignal RejectReason = "weak_signal"
	ReasonMalformed  RejectReason = "malformed"
)

// IngestOutcome reports what the ingest manager did with a normalized
// reading.
type IngestOutcome struct {
	Kind      IngestOutcomeKind
	ReadingID int64
	Reason    RejectReason
}

// ActuatorState mirrors the external switch service's reported state for a
// single actuator entity.
type ActuatorState string

const (
	ActuatorOn      ActuatorState = "on"
	ActuatorOff     ActuatorState = "off"
	ActuatorUnknown ActuatorState = "unknown"
)

type OverrideTarget string

const (
	OverrideHeater OverrideTarget = "heater"
	OverrideCooler OverrideTarget = "cooler"
)

// Override is a manual, time-boxed forcing of one actuator's state.
type Override struct {
	Target    OverrideTarget
	Force     ActuatorState
	ExpiresAt time.Time
}

// ControllerState is the temperature controller's in-memory, checkpointed
// per-batch bookkeeping.
type ControllerState struct {
	BatchID              int64
	LastHeaterCommand    ActuatorState
	LastHeaterCommandAt  time.Time
	LastCoolerCommand    ActuatorState
	LastCoolerCommandAt  time.Time
	Override             *Override
	LastStaleNotifiedAt  time.Time
}

// BothOn reports the invariant-2 violation: both actuators commanded on.
func (c ControllerState) BothOn() bool {
	return c.LastHeaterCommand == ActuatorOn && c.LastCoolerCommand == ActuatorOn
}
