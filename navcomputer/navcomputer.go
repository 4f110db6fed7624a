// Package navcomputer solves the flight-computer wind triangle.
//
// Angles are degrees true in the public API. Wind direction is the
// direction the wind blows from. Results are full precision; rounding
// for display is left to the caller.
package navcomputer

import (
	"fmt"
	"math"
)

// Input is one wind-triangle problem.
type Input struct {
	TrueAirspeedKt        float64 `json:"trueAirspeedKt" yaml:"trueAirspeedKt"`
	FlightPlannedTrackDeg float64 `json:"flightPlannedTrackDeg" yaml:"flightPlannedTrackDeg"`
	WindDirectionDeg      float64 `json:"windDirectionDeg" yaml:"windDirectionDeg"`
	WindSpeedKt           float64 `json:"windSpeedKt" yaml:"windSpeedKt"`
}

// Result of a solved wind triangle.
//
// CrosswindKt is positive for wind from the right of track, HeadTailwindKt
// is positive for a tailwind. GroundSpeedKt == EffectiveTASKt + HeadTailwindKt
// and EffectiveTASKt never exceeds the true airspeed.
type Result struct {
	CrosswindKt     float64 `json:"crosswindKt"`
	DriftAngleDeg   float64 `json:"driftAngleDeg"`
	EffectiveTASKt  float64 `json:"effectiveTasKt"`
	HeadTailwindKt  float64 `json:"headTailwindKt"`
	GroundSpeedKt   float64 `json:"groundSpeedKt"`
	WindComponentKt float64 `json:"windComponentKt"`
}

// InvalidInputError reports an input that violates Solve's preconditions.
type InvalidInputError struct {
	Field  string
	Value  float64
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("navcomputer: invalid %s (%v): %s", e.Field, e.Value, e.Reason)
}

// Validate checks the preconditions of Solve.
func (in Input) Validate() error {
	checks := []struct {
		field string
		v     float64
	}{
		{"trueAirspeedKt", in.TrueAirspeedKt},
		{"flightPlannedTrackDeg", in.FlightPlannedTrackDeg},
		{"windDirectionDeg", in.WindDirectionDeg},
		{"windSpeedKt", in.WindSpeedKt},
	}
	for _, c := range checks {
		if math.IsNaN(c.v) || math.IsInf(c.v, 0) {
			return &InvalidInputError{Field: c.field, Value: c.v, Reason: "must be finite"}
		}
	}
	if in.TrueAirspeedKt <= 0 {
		return &InvalidInputError{Field: "trueAirspeedKt", Value: in.TrueAirspeedKt, Reason: "must be positive"}
	}
	if in.WindSpeedKt < 0 {
		return &InvalidInputError{Field: "windSpeedKt", Value: in.WindSpeedKt, Reason: "must not be negative"}
	}
	return nil
}

// Solve computes crosswind, drift, effective TAS, head/tailwind, ground
// speed and the combined wind component for in.
//
// Effective TAS is computed for every drift angle; whether the loss is
// significant (5° in current practice) is the caller's call.
func Solve(in Input) (Result, error) {
	if err := in.Validate(); err != nil {
		return Result{}, err
	}
	tas := in.TrueAirspeedKt
	windAngle := RelativeBearing(in.WindDirectionDeg - in.FlightPlannedTrackDeg)
	sin, cos := math.Sincos(Radians(windAngle))

	xwind := in.WindSpeedKt * sin
	// wind from ahead is a headwind
	headTail := -in.WindSpeedKt * cos

	drift := Degrees(math.Asin(clamp(xwind/tas, -1, 1)))

	etas := tas * math.Cos(Radians(drift))
	if etas > tas {
		etas = tas
	}

	gs := etas + headTail
	return Result{
		CrosswindKt:     xwind,
		DriftAngleDeg:   drift,
		EffectiveTASKt:  etas,
		HeadTailwindKt:  headTail,
		GroundSpeedKt:   gs,
		WindComponentKt: gs - tas,
	}, nil
}

// NormalizeHeading maps deg into [0, 360).
func NormalizeHeading(deg float64) float64 {
	h := math.Mod(deg, 360)
	if h < 0 {
		h += 360
	}
	// -tiny + 360 rounds to 360
	if h >= 360 {
		h = 0
	}
	return h
}

// RelativeBearing maps deg into (-180, 180].
func RelativeBearing(deg float64) float64 {
	a := NormalizeHeading(deg)
	if a > 180 {
		a -= 360
	}
	return a
}

func Radians(deg float64) float64 { return deg * math.Pi / 180 }

func Degrees(rad float64) float64 { return rad * 180 / math.Pi }

func clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}

// Normalized returns in with both directions mapped into [0, 360).
func (in Input) Normalized() Input {
	in.FlightPlannedTrackDeg = NormalizeHeading(in.FlightPlannedTrackDeg)
	in.WindDirectionDeg = NormalizeHeading(in.WindDirectionDeg)
	return in
}

// Result field names, as used by question banks and the practice table.
const (
	FieldCrosswind     = "crosswind"
	FieldDriftAngle    = "driftAngle"
	FieldEffectiveTAS  = "effectiveTas"
	FieldHeadTailwind  = "headTailwind"
	FieldGroundSpeed   = "groundSpeed"
	FieldWindComponent = "windComponent"
)

// FieldNames lists the result fields in flight-log column order.
var FieldNames = []string{
	FieldCrosswind,
	FieldDriftAngle,
	FieldEffectiveTAS,
	FieldHeadTailwind,
	FieldGroundSpeed,
	FieldWindComponent,
}

// Field returns the named result value.
func (r Result) Field(name string) (float64, bool) {
	switch name {
	case FieldCrosswind:
		return r.CrosswindKt, true
	case FieldDriftAngle:
		return r.DriftAngleDeg, true
	case FieldEffectiveTAS:
		return r.EffectiveTASKt, true
	case FieldHeadTailwind:
		return r.HeadTailwindKt, true
	case FieldGroundSpeed:
		return r.GroundSpeedKt, true
	case FieldWindComponent:
		return r.WindComponentKt, true
	}
	return 0, false
}

// Unit returns "deg" for the drift angle and "kt" for the other fields.
func Unit(field string) string {
	if field == FieldDriftAngle {
		return "deg"
	}
	return "kt"
}
