package riskmodel

import (
	"errors"

	"gonum.org/v1/gonum/mat"

	"github.com/wonny/frontier/internal/contracts"
)

// PSDTolerance is the smallest eigenvalue accepted as non-negative
const PSDTolerance = -1e-12

// psdNudge is added on top of |λmin| so the result is strictly usable
const psdNudge = 1e-10

// ErrEigenFailed is returned when the eigendecomposition does not converge
var ErrEigenFailed = errors.New("risk model: eigendecomposition failed")

// EnsurePSD returns m unchanged when it is positive semidefinite, otherwise
// a copy with the diagonal raised by |λmin| (plus a small nudge).
// The second return reports whether a fix was applied.
func EnsurePSD(m *contracts.RiskMatrix) (*contracts.RiskMatrix, bool, error) {
	n := m.Dim()
	sym := toSym(m)

	var eig mat.EigenSym
	if ok := eig.Factorize(sym, false); !ok {
		return nil, false, ErrEigenFailed
	}
	values := eig.Values(nil)
	// ascending
	minEig := values[0]
	if minEig >= PSDTolerance {
		return m, false, nil
	}

	shift := -minEig + psdNudge
	fixed := make([][]float64, n)
	for i := range fixed {
		fixed[i] = make([]float64, n)
		copy(fixed[i], m.Values[i])
		fixed[i][i] += shift
	}
	out, err := contracts.NewRiskMatrix(m.Tickers, fixed)
	if err != nil {
		return nil, false, err
	}
	return out, true, nil
}

// MinEigenvalue returns the smallest eigenvalue of m
func MinEigenvalue(m *contracts.RiskMatrix) (float64, error) {
	sym := toSym(m)
	var eig mat.EigenSym
	if ok := eig.Factorize(sym, false); !ok {
		return 0, ErrEigenFailed
	}
	return eig.Values(nil)[0], nil
}

func toSym(m *contracts.RiskMatrix) *mat.SymDense {
	n := m.Dim()
	sym := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			sym.SetSym(i, j, m.Values[i][j])
		}
	}
	return sym
}
