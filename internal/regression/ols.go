// Package regression fits ordinary least squares models with an intercept and
// reports classical or heteroskedasticity and autocorrelation consistent errors.
package regression

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	apperrors "impactcli/internal/errors"
)

// InterceptName keys the constant term in Result maps
const InterceptName = "Intercept"

// CovType selects how parameter standard errors are estimated
type CovType string

const (
	CovNonRobust CovType = "nonrobust"
	CovHAC       CovType = "HAC"
)

// maxCondition bounds the condition number of X'X before the design is treated as singular
const maxCondition = 1e14

// Options configures a fit
type Options struct {
	CovType CovType
	MaxLags int
}

// DefaultOptions are Newey-West errors with four lags
func DefaultOptions() Options {
	return Options{CovType: CovHAC, MaxLags: 4}
}

// Result holds the estimates keyed by regressor name, plus InterceptName
type Result struct {
	Names     []string
	Params    map[string]float64
	StdErrors map[string]float64
	TValues   map[string]float64
	PValues   map[string]float64
	RSquared  float64
	NObs      int
	DfResid   int
	CovType   CovType
}

// Fit regresses y on the columns xs with an intercept. xs[j] is the j-th regressor
// and must have the same length as y. Rows with a NaN anywhere are dropped.
func Fit(y []float64, xs [][]float64, names []string, opts Options) (*Result, error) {
	if len(xs) != len(names) {
		return nil, apperrors.NewValidationError(fmt.Sprintf("%d regressors but %d names", len(xs), len(names)))
	}
	for j, col := range xs {
		if len(col) != len(y) {
			return nil, apperrors.NewValidationError(fmt.Sprintf("regressor %s has %d rows, response has %d", names[j], len(col), len(y)))
		}
	}
	if opts.CovType != CovHAC && opts.CovType != CovNonRobust {
		return nil, apperrors.NewValidationError(fmt.Sprintf("unknown covariance type %q", opts.CovType))
	}
	if opts.MaxLags < 0 {
		return nil, apperrors.NewValidationError("maxlags must not be negative")
	}

	k := len(xs) + 1
	var rows []int
	for i := range y {
		if !math.IsNaN(y[i]) && !anyNaN(xs, i) {
			rows = append(rows, i)
		}
	}
	n := len(rows)
	if n < k+1 {
		return nil, apperrors.NewInsufficientDataError(fmt.Sprintf("%d observations for %d parameters", n, k))
	}

	X := mat.NewDense(n, k, nil)
	Y := mat.NewVecDense(n, nil)
	for r, i := range rows {
		X.Set(r, 0, 1)
		for j, col := range xs {
			X.Set(r, j+1, col[i])
		}
		Y.SetVec(r, y[i])
	}

	var xtx mat.SymDense
	xtx.SymOuterK(1, X.T())

	var chol mat.Cholesky
	if ok := chol.Factorize(&xtx); !ok || chol.Cond() > maxCondition {
		return nil, apperrors.NewComputationError("singular design matrix", nil)
	}

	var xty, beta mat.VecDense
	xty.MulVec(X.T(), Y)
	if err := chol.SolveVecTo(&beta, &xty); err != nil {
		return nil, apperrors.NewComputationError("solve normal equations", err)
	}

	var bread mat.SymDense
	if err := chol.InverseTo(&bread); err != nil {
		return nil, apperrors.NewComputationError("invert X'X", err)
	}

	var fitted, resid mat.VecDense
	fitted.MulVec(X, &beta)
	resid.SubVec(Y, &fitted)

	var cov *mat.Dense
	switch opts.CovType {
	case CovNonRobust:
		cov = nonRobustCov(&bread, &resid, n-k)
	case CovHAC:
		cov = hacCov(X, &bread, &resid, opts.MaxLags)
	}

	res := &Result{
		Names:     append([]string{InterceptName}, names...),
		Params:    make(map[string]float64, k),
		StdErrors: make(map[string]float64, k),
		TValues:   make(map[string]float64, k),
		PValues:   make(map[string]float64, k),
		RSquared:  rSquared(Y, &resid),
		NObs:      n,
		DfResid:   n - k,
		CovType:   opts.CovType,
	}

	for j, name := range res.Names {
		b := beta.AtVec(j)
		se := math.Sqrt(cov.At(j, j))
		t := b / se
		res.Params[name] = b
		res.StdErrors[name] = se
		res.TValues[name] = t
		res.PValues[name] = pValue(t, opts.CovType, n-k)
	}

	return res, nil
}

func anyNaN(xs [][]float64, i int) bool {
	for _, col := range xs {
		if math.IsNaN(col[i]) {
			return true
		}
	}
	return false
}

// nonRobustCov is s²(X'X)⁻¹
func nonRobustCov(bread *mat.SymDense, resid *mat.VecDense, dfResid int) *mat.Dense {
	s2 := mat.Dot(resid, resid) / float64(dfResid)
	var cov mat.Dense
	cov.Scale(s2, bread)
	return &cov
}

// hacCov is the Newey-West sandwich (X'X)⁻¹ S (X'X)⁻¹ with Bartlett weights
// 1 - l/(L+1) and the small-sample factor n/(n-k)
func hacCov(X *mat.Dense, bread *mat.SymDense, resid *mat.VecDense, maxLags int) *mat.Dense {
	n, k := X.Dims()

	// scores u_t = x_t · e_t
	U := mat.NewDense(n, k, nil)
	for t := 0; t < n; t++ {
		e := resid.AtVec(t)
		for j := 0; j < k; j++ {
			U.Set(t, j, X.At(t, j)*e)
		}
	}

	var meat mat.Dense
	meat.Mul(U.T(), U)

	for l := 1; l <= maxLags && l < n; l++ {
		w := 1 - float64(l)/float64(maxLags+1)
		cur := U.Slice(l, n, 0, k)
		lag := U.Slice(0, n-l, 0, k)

		var g mat.Dense
		g.Mul(cur.T(), lag)

		var sym mat.Dense
		sym.Add(&g, g.T())
		sym.Scale(w, &sym)
		meat.Add(&meat, &sym)
	}

	var cov mat.Dense
	cov.Product(bread, &meat, bread)
	cov.Scale(float64(n)/float64(n-k), &cov)
	return &cov
}

// rSquared is the centered coefficient of determination
func rSquared(y, resid *mat.VecDense) float64 {
	n := y.Len()
	var mean float64
	for i := 0; i < n; i++ {
		mean += y.AtVec(i)
	}
	mean /= float64(n)

	var sst float64
	for i := 0; i < n; i++ {
		d := y.AtVec(i) - mean
		sst += d * d
	}
	if sst == 0 {
		return math.NaN()
	}
	return 1 - mat.Dot(resid, resid)/sst
}

// pValue is two-sided: Student's t for classical errors, normal for HAC
func pValue(t float64, cov CovType, dfResid int) float64 {
	if math.IsNaN(t) {
		return math.NaN()
	}
	abs := math.Abs(t)
	if cov == CovNonRobust {
		return 2 * distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(dfResid)}.Survival(abs)
	}
	return 2 * distuv.UnitNormal.Survival(abs)
}

// Slope returns the coefficient and its statistics for one regressor
func (r *Result) Slope(name string) (param, stdErr, t, p float64, ok bool) {
	param, ok = r.Params[name]
	if !ok {
		return math.NaN(), math.NaN(), math.NaN(), math.NaN(), false
	}
	return param, r.StdErrors[name], r.TValues[name], r.PValues[name], true
}
