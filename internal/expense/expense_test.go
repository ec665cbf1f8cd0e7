package expense

import (
	"errors"
	"math"
	"testing"

	"tripkit/internal/domain"
)

func TestMultiply_HotelCost(t *testing.T) {
	got, err := Multiply(100, 5)
	if err != nil {
		t.Fatalf("multiply: %v", err)
	}
	if got != 500 {
		t.Fatalf("expected 500, got %v", got)
	}
}

func TestMultiply_NonFinite(t *testing.T) {
	for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		if _, err := Multiply(v, 2); !errors.Is(err, domain.ErrInvalidOperand) {
			t.Errorf("Multiply(%v, 2): expected ErrInvalidOperand, got %v", v, err)
		}
	}
}

func TestMultiply_Overflow(t *testing.T) {
	_, err := Multiply(math.MaxFloat64, 10)
	if !errors.Is(err, domain.ErrInvalidOperand) {
		t.Fatalf("expected ErrInvalidOperand, got %v", err)
	}
}

func TestSumAll_TotalExpense(t *testing.T) {
	got, err := SumAll(100, 200, 50.5)
	if err != nil {
		t.Fatalf("sum: %v", err)
	}
	if got != 350.5 {
		t.Fatalf("expected 350.5, got %v", got)
	}
}

func TestSumAll_Empty(t *testing.T) {
	got, err := SumAll()
	if err != nil {
		t.Fatalf("sum: %v", err)
	}
	if got != 0 {
		t.Fatalf("expected 0, got %v", got)
	}
}

func TestSumAll_OrderIndependent(t *testing.T) {
	a, _ := SumAll(0.1, 0.2, 0.3, 1e16, -1e16)
	b, _ := SumAll(1e16, 0.3, -1e16, 0.2, 0.1)
	c, _ := SumAll(-1e16, 0.1, 0.2, 1e16, 0.3)
	if a != b || b != c {
		t.Fatalf("sum depends on order: %v %v %v", a, b, c)
	}
	if math.Abs(a-0.6) > 1e-12 {
		t.Fatalf("expected ~0.6, got %v", a)
	}
}

func TestSumAll_DoesNotMutateInput(t *testing.T) {
	in := []float64{3, 1, 2}
	if _, err := SumAll(in...); err != nil {
		t.Fatal(err)
	}
	if in[0] != 3 || in[1] != 1 || in[2] != 2 {
		t.Fatalf("input reordered: %v", in)
	}
}

func TestSumAll_NonFinite(t *testing.T) {
	if _, err := SumAll(1, math.NaN()); !errors.Is(err, domain.ErrInvalidOperand) {
		t.Fatalf("expected ErrInvalidOperand, got %v", err)
	}
}

func TestAveragePerUnit_DailyBudget(t *testing.T) {
	got, err := AveragePerUnit(1000, 4)
	if err != nil {
		t.Fatalf("average: %v", err)
	}
	if got != 250 {
		t.Fatalf("expected 250, got %v", got)
	}
}

func TestAveragePerUnit_ZeroUnits(t *testing.T) {
	_, err := AveragePerUnit(1000, 0)
	if !errors.Is(err, domain.ErrDivisionByZero) {
		t.Fatalf("expected ErrDivisionByZero, got %v", err)
	}
}

func TestAveragePerUnit_NegativeUnits(t *testing.T) {
	_, err := AveragePerUnit(1000, -2)
	if !errors.Is(err, domain.ErrInvalidOperand) {
		t.Fatalf("expected ErrInvalidOperand, got %v", err)
	}
}

func TestAveragePerUnit_NonFiniteTotal(t *testing.T) {
	_, err := AveragePerUnit(math.Inf(1), 3)
	if !errors.Is(err, domain.ErrInvalidOperand) {
		t.Fatalf("expected ErrInvalidOperand, got %v", err)
	}
}
