package navcomputer

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSolveWorkedExample(t *testing.T) {
	// TAS 350 kt, track 225°, W/V 190/90
	res, err := Solve(Input{TrueAirspeedKt: 350, FlightPlannedTrackDeg: 225, WindDirectionDeg: 190, WindSpeedKt: 90})
	require.NoError(t, err)

	assert.InDelta(t, 53, math.Abs(res.CrosswindKt), 2)
	assert.Less(t, res.CrosswindKt, 0.0, "wind from the left of track")
	assert.GreaterOrEqual(t, math.Abs(res.DriftAngleDeg), 8.0)
	assert.LessOrEqual(t, math.Abs(res.DriftAngleDeg), 9.0)
	assert.InDelta(t, 345.5, res.EffectiveTASKt, 1)
	assert.InDelta(t, -72, res.HeadTailwindKt, 2)
	assert.InDelta(t, 273.5, res.GroundSpeedKt, 1.5)
	assert.InDelta(t, res.GroundSpeedKt-350, res.WindComponentKt, 1e-9)
}

func TestSolveSpecialWinds(t *testing.T) {
	tests := []struct {
		name   string
		in     Input
		wantGS float64
		wantXW float64
	}{
		{
			name:   "calm",
			in:     Input{TrueAirspeedKt: 180, FlightPlannedTrackDeg: 45, WindDirectionDeg: 300, WindSpeedKt: 0},
			wantGS: 180,
		},
		{
			name:   "direct tailwind",
			in:     Input{TrueAirspeedKt: 200, FlightPlannedTrackDeg: 90, WindDirectionDeg: 270, WindSpeedKt: 40},
			wantGS: 240,
		},
		{
			name:   "direct headwind",
			in:     Input{TrueAirspeedKt: 200, FlightPlannedTrackDeg: 90, WindDirectionDeg: 90, WindSpeedKt: 40},
			wantGS: 160,
		},
		{
			name:   "headwind across north",
			in:     Input{TrueAirspeedKt: 450, FlightPlannedTrackDeg: 355, WindDirectionDeg: 355, WindSpeedKt: 60},
			wantGS: 390,
		},
		{
			name:   "pure crosswind from the right",
			in:     Input{TrueAirspeedKt: 100, FlightPlannedTrackDeg: 0, WindDirectionDeg: 90, WindSpeedKt: 50},
			wantGS: 100 * math.Cos(math.Asin(0.5)),
			wantXW: 50,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Solve(tt.in)
			require.NoError(t, err)
			assert.InDelta(t, tt.wantGS, res.GroundSpeedKt, 1e-9)
			assert.InDelta(t, tt.wantXW, res.CrosswindKt, 1e-9)
		})
	}
}

func TestSolveCalmIsExact(t *testing.T) {
	res, err := Solve(Input{TrueAirspeedKt: 250, FlightPlannedTrackDeg: 123, WindDirectionDeg: 321, WindSpeedKt: 0})
	require.NoError(t, err)
	assert.Zero(t, res.CrosswindKt)
	assert.Zero(t, res.DriftAngleDeg)
	assert.Equal(t, 250.0, res.EffectiveTASKt)
	assert.Equal(t, 250.0, res.GroundSpeedKt)
}

func TestSolveInvariants(t *testing.T) {
	for _, tas := range []float64{1, 90, 250, 480} {
		for track := 0.0; track < 360; track += 15 {
			for dir := 0.0; dir < 360; dir += 20 {
				for _, ws := range []float64{0, 5, 35, 120, 600} {
					in := Input{TrueAirspeedKt: tas, FlightPlannedTrackDeg: track, WindDirectionDeg: dir, WindSpeedKt: ws}
					res, err := Solve(in)
					require.NoError(t, err)
					if !assert.LessOrEqual(t, res.EffectiveTASKt, tas, "%+v", in) {
						return
					}
					assert.Equal(t, res.EffectiveTASKt+res.HeadTailwindKt, res.GroundSpeedKt, "%+v", in)
					assert.Equal(t, res.GroundSpeedKt-tas, res.WindComponentKt, "%+v", in)
					if res.CrosswindKt != 0 {
						assert.Equal(t, math.Signbit(res.CrosswindKt), math.Signbit(res.DriftAngleDeg), "%+v", in)
					}
				}
			}
		}
	}
}

func TestSolveDeterministic(t *testing.T) {
	in := Input{TrueAirspeedKt: 310, FlightPlannedTrackDeg: 17, WindDirectionDeg: 242, WindSpeedKt: 47}
	a, err := Solve(in)
	require.NoError(t, err)
	b, err := Solve(in)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestSolveNoDriftThreshold(t *testing.T) {
	// 3° of drift still reduces effective TAS
	res, err := Solve(Input{TrueAirspeedKt: 400, FlightPlannedTrackDeg: 0, WindDirectionDeg: 90, WindSpeedKt: 400 * math.Sin(Radians(3))})
	require.NoError(t, err)
	assert.InDelta(t, 3, res.DriftAngleDeg, 1e-9)
	assert.Less(t, res.EffectiveTASKt, 400.0)
}

func TestSolveInvalidInput(t *testing.T) {
	tests := []struct {
		name  string
		in    Input
		field string
	}{
		{"zero tas", Input{TrueAirspeedKt: 0, WindSpeedKt: 10}, "trueAirspeedKt"},
		{"negative tas", Input{TrueAirspeedKt: -120}, "trueAirspeedKt"},
		{"nan track", Input{TrueAirspeedKt: 120, FlightPlannedTrackDeg: math.NaN()}, "flightPlannedTrackDeg"},
		{"infinite wind direction", Input{TrueAirspeedKt: 120, WindDirectionDeg: math.Inf(1)}, "windDirectionDeg"},
		{"nan wind speed", Input{TrueAirspeedKt: 120, WindSpeedKt: math.NaN()}, "windSpeedKt"},
		{"negative wind speed", Input{TrueAirspeedKt: 120, WindSpeedKt: -1}, "windSpeedKt"},
		{"infinite tas", Input{TrueAirspeedKt: math.Inf(1)}, "trueAirspeedKt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Solve(tt.in)
			var invalid *InvalidInputError
			require.True(t, errors.As(err, &invalid), "got %v", err)
			assert.Equal(t, tt.field, invalid.Field)
		})
	}
}

func TestNormalizeHeading(t *testing.T) {
	tests := []struct{ in, want float64 }{
		{0, 0}, {359, 359}, {360, 0}, {-10, 350}, {725, 5}, {-720, 0}, {-1e-15, 0},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, NormalizeHeading(tt.in), 1e-9, "NormalizeHeading(%v)", tt.in)
	}
}

func TestRelativeBearing(t *testing.T) {
	tests := []struct{ in, want float64 }{
		{0, 0}, {180, 180}, {-180, 180}, {190, -170}, {-35, -35}, {540, 180}, {-190, 170},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, RelativeBearing(tt.in), 1e-9, "RelativeBearing(%v)", tt.in)
	}
}

func TestInputNormalized(t *testing.T) {
	in := Input{TrueAirspeedKt: 200, FlightPlannedTrackDeg: -45, WindDirectionDeg: 370, WindSpeedKt: 20}.Normalized()
	assert.InDelta(t, 315, in.FlightPlannedTrackDeg, 1e-9)
	assert.InDelta(t, 10, in.WindDirectionDeg, 1e-9)
}

func TestResultField(t *testing.T) {
	res := Result{CrosswindKt: 1, DriftAngleDeg: 2, EffectiveTASKt: 3, HeadTailwindKt: 4, GroundSpeedKt: 5, WindComponentKt: 6}
	for i, name := range FieldNames {
		v, ok := res.Field(name)
		require.True(t, ok, name)
		assert.Equal(t, float64(i+1), v, name)
	}
	_, ok := res.Field("heading")
	assert.False(t, ok)
	assert.Equal(t, "deg", Unit(FieldDriftAngle))
	assert.Equal(t, "kt", Unit(FieldGroundSpeed))
}
