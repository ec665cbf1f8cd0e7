// Package expense implements the trip-budget arithmetic exposed as
// calculator capabilities. Every function is pure.
package expense

import (
	"fmt"
	"math"
	"sort"

	"tripkit/internal/domain"
)

// Multiply returns a*b, e.g. nightly price times number of nights.
func Multiply(a, b float64) (float64, error) {
	if err := checkFinite(a, b); err != nil {
		return 0, err
	}
	p := a * b
	if math.IsInf(p, 0) {
		return 0, fmt.Errorf("%w: product of %g and %g overflows", domain.ErrInvalidOperand, a, b)
	}
	return p, nil
}

// SumAll returns the sum of costs. An empty list sums to 0.
//
// The inputs are ordered by magnitude and summed with Neumaier compensation,
// so the result does not depend on the order the caller passed them in.
func SumAll(costs ...float64) (float64, error) {
	if len(costs) == 0 {
		return 0, nil
	}
	if err := checkFinite(costs...); err != nil {
		return 0, err
	}

	sorted := make([]float64, len(costs))
	copy(sorted, costs)
	sort.Slice(sorted, func(i, j int) bool {
		ai, aj := math.Abs(sorted[i]), math.Abs(sorted[j])
		if ai != aj {
			return ai < aj
		}
		return sorted[i] < sorted[j]
	})

	var sum, comp float64
	for _, v := range sorted {
		t := sum + v
		if math.Abs(sum) >= math.Abs(v) {
			comp += (sum - t) + v
		} else {
			comp += (v - t) + sum
		}
		sum = t
	}
	total := sum + comp
	if math.IsInf(total, 0) || math.IsNaN(total) {
		return 0, fmt.Errorf("%w: sum overflows", domain.ErrInvalidOperand)
	}
	return total, nil
}

// AveragePerUnit divides total evenly over units, e.g. a budget per day.
func AveragePerUnit(total float64, units int) (float64, error) {
	if err := checkFinite(total); err != nil {
		return 0, err
	}
	if units == 0 {
		return 0, fmt.Errorf("%w: cannot spread %g over 0 units", domain.ErrDivisionByZero, total)
	}
	if units < 0 {
		return 0, fmt.Errorf("%w: units must be positive, got %d", domain.ErrInvalidOperand, units)
	}
	return total / float64(units), nil
}

func checkFinite(vals ...float64) error {
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %g is not a finite number", domain.ErrInvalidOperand, v)
		}
	}
	return nil
}
