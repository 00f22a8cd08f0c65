package regression

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "impactcli/internal/errors"
)

var (
	sampleX = []float64{0, 1, 2, 3, 4, 5}
	sampleY = []float64{1, 3, 2, 5, 4, 7}
)

func TestFit_ExactLine(t *testing.T) {
	x := []float64{-2, -1, 0, 1, 2, 3}
	y := make([]float64, len(x))
	for i, v := range x {
		y[i] = 2 + 3*v
	}

	res, err := Fit(y, [][]float64{x}, []string{"OFI"}, DefaultOptions())
	require.NoError(t, err)

	assert.InDelta(t, 2.0, res.Params[InterceptName], 1e-9)
	assert.InDelta(t, 3.0, res.Params["OFI"], 1e-9)
	assert.InDelta(t, 1.0, res.RSquared, 1e-12)
	assert.Equal(t, 6, res.NObs)
	assert.Equal(t, []string{InterceptName, "OFI"}, res.Names)
}

func TestFit_NonRobust(t *testing.T) {
	res, err := Fit(sampleY, [][]float64{sampleX}, []string{"OFI"}, Options{CovType: CovNonRobust})
	require.NoError(t, err)

	assert.InDelta(t, 1.0952380952, res.Params[InterceptName], 1e-8)
	assert.InDelta(t, 1.0285714286, res.Params["OFI"], 1e-8)
	assert.InDelta(t, 0.7934693878, res.RSquared, 1e-8)

	assert.InDelta(t, 0.7943964751, res.StdErrors[InterceptName], 1e-8)
	assert.InDelta(t, 0.2623805203, res.StdErrors["OFI"], 1e-8)
	assert.InDelta(t, 3.9201516467, res.TValues["OFI"], 1e-7)

	// Student's t with 4 degrees of freedom
	assert.InDelta(t, 0.2400684199, res.PValues[InterceptName], 1e-6)
	assert.InDelta(t, 0.0172454811, res.PValues["OFI"], 1e-6)
	assert.Equal(t, 4, res.DfResid)
}

func TestFit_HAC(t *testing.T) {
	res, err := Fit(sampleY, [][]float64{sampleX}, []string{"OFI"}, Options{CovType: CovHAC, MaxLags: 2})
	require.NoError(t, err)

	assert.InDelta(t, 1.0285714286, res.Params["OFI"], 1e-8)
	assert.InDelta(t, 0.2739829641, res.StdErrors[InterceptName], 1e-8)
	assert.InDelta(t, 0.1001685839, res.StdErrors["OFI"], 1e-8)
	assert.InDelta(t, 10.2684034117, res.TValues["OFI"], 1e-6)

	// normal p-values
	assert.InDelta(t, 6.4023678539544e-05, res.PValues[InterceptName], 1e-9)
	assert.Less(t, res.PValues["OFI"], 1e-20)
	assert.Equal(t, CovHAC, res.CovType)
}

func TestFit_HACWithoutLagsMatchesWhite(t *testing.T) {
	white, err := Fit(sampleY, [][]float64{sampleX}, []string{"OFI"}, Options{CovType: CovHAC, MaxLags: 0})
	require.NoError(t, err)
	lagged, err := Fit(sampleY, [][]float64{sampleX}, []string{"OFI"}, Options{CovType: CovHAC, MaxLags: 2})
	require.NoError(t, err)

	assert.Equal(t, white.Params, lagged.Params)
	assert.NotEqual(t, white.StdErrors["OFI"], lagged.StdErrors["OFI"])
}

func TestFit_DropsNaNRows(t *testing.T) {
	y := append([]float64{math.NaN(), 9}, sampleY...)
	x := append([]float64{1, math.NaN()}, sampleX...)

	res, err := Fit(y, [][]float64{x}, []string{"OFI"}, Options{CovType: CovNonRobust})
	require.NoError(t, err)
	assert.Equal(t, 6, res.NObs)
	assert.InDelta(t, 1.0285714286, res.Params["OFI"], 1e-8)
}

func TestFit_TwoRegressors(t *testing.T) {
	ofi := []float64{1, 2, 3, 4, 5, 6, 7}
	tfi := []float64{0, 1, 0, 1, 0, 1, 1}
	y := make([]float64, len(ofi))
	for i := range y {
		y[i] = 0.5 + 2*ofi[i] - tfi[i]
	}

	res, err := Fit(y, [][]float64{ofi, tfi}, []string{"OFI", "TFI"}, DefaultOptions())
	require.NoError(t, err)
	assert.InDelta(t, 0.5, res.Params[InterceptName], 1e-9)
	assert.InDelta(t, 2.0, res.Params["OFI"], 1e-9)
	assert.InDelta(t, -1.0, res.Params["TFI"], 1e-9)

	p, _, _, _, ok := res.Slope("OFI")
	assert.True(t, ok)
	assert.InDelta(t, 2.0, p, 1e-9)

	p, _, _, _, ok = res.Slope("volume")
	assert.False(t, ok)
	assert.True(t, math.IsNaN(p))
}

func TestFit_Errors(t *testing.T) {
	tests := []struct {
		name     string
		y        []float64
		xs       [][]float64
		names    []string
		opts     Options
		wantType apperrors.ErrorType
	}{
		{
			name:     "too few observations",
			y:        []float64{1, 2},
			xs:       [][]float64{{1, 2}},
			names:    []string{"OFI"},
			opts:     DefaultOptions(),
			wantType: apperrors.ErrTypeInsufficientData,
		},
		{
			name:     "all rows NaN",
			y:        []float64{math.NaN(), math.NaN(), math.NaN(), math.NaN()},
			xs:       [][]float64{{1, 2, 3, 4}},
			names:    []string{"OFI"},
			opts:     DefaultOptions(),
			wantType: apperrors.ErrTypeInsufficientData,
		},
		{
			name:     "constant regressor",
			y:        []float64{1, 2, 3, 4},
			xs:       [][]float64{{1, 1, 1, 1}},
			names:    []string{"OFI"},
			opts:     DefaultOptions(),
			wantType: apperrors.ErrTypeComputation,
		},
		{
			name:     "length mismatch",
			y:        []float64{1, 2, 3, 4},
			xs:       [][]float64{{1, 2, 3}},
			names:    []string{"OFI"},
			opts:     DefaultOptions(),
			wantType: apperrors.ErrTypeValidation,
		},
		{
			name:     "names mismatch",
			y:        []float64{1, 2, 3, 4},
			xs:       [][]float64{{1, 2, 3, 4}},
			names:    []string{"OFI", "TFI"},
			opts:     DefaultOptions(),
			wantType: apperrors.ErrTypeValidation,
		},
		{
			name:     "unknown covariance",
			y:        sampleY,
			xs:       [][]float64{sampleX},
			names:    []string{"OFI"},
			opts:     Options{CovType: "HC0"},
			wantType: apperrors.ErrTypeValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Fit(tt.y, tt.xs, tt.names, tt.opts)
			require.Error(t, err)
			assert.Equal(t, tt.wantType, apperrors.TypeOf(err))
		})
	}
}
