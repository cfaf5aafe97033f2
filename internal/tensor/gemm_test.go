package tensor

import (
	"math"
	"testing"
)

// gemmNaive computes dst = a * b^T with the loops ordered differently from
// the production kernel.
func gemmNaive(dst, a, b *Mat) {
	for j := 0; j < b.R; j++ {
		br := b.Row(j)
		for i := 0; i < a.R; i++ {
			var sum float32
			ar := a.Row(i)
			for k := len(ar) - 1; k >= 0; k-- {
				sum += ar[k] * br[k]
			}
			dst.Row(i)[j] = sum
		}
	}
}

func maxAbsDiff(a, b []float32) float64 {
	var maxAbs float64
	for i := range a {
		d := math.Abs(float64(a[i] - b[i]))
		if d > maxAbs {
			maxAbs = d
		}
	}
	return maxAbs
}

func TestGemmMatchesNaive(t *testing.T) {
	a := NewMat(20, 12)
	b := NewMat(28, 12)
	c0 := NewMat(20, 28)
	c1 := NewMat(20, 28)

	FillRandn(&a, 1, 0.5)
	FillRandn(&b, 2, 0.5)

	gemmNaive(&c0, &a, &b)
	Gemm(&c1, &a, &b)

	if maxAbs := maxAbsDiff(c0.Data, c1.Data); maxAbs > 1e-5 {
		t.Fatalf("max abs diff %g", maxAbs)
	}
}

func TestGemmAccAccumulates(t *testing.T) {
	a := NewMat(4, 6)
	b := NewMat(5, 6)
	c := NewMat(4, 5)
	want := NewMat(4, 5)

	FillRandn(&a, 3, 0.5)
	FillRandn(&b, 4, 0.5)
	FillRandn(&c, 5, 0.5)

	copy(want.Data, c.Data)
	tmp := NewMat(4, 5)
	gemmNaive(&tmp, &a, &b)
	Add(want.Data, tmp.Data)

	GemmAcc(&c, &a, &b)
	if maxAbs := maxAbsDiff(c.Data, want.Data); maxAbs > 1e-5 {
		t.Fatalf("max abs diff %g", maxAbs)
	}
}

func TestGemmShapeMismatchPanics(t *testing.T) {
	a := NewMat(2, 3)
	b := NewMat(4, 5) // inner dims 3 vs 5
	c := NewMat(2, 4)
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	Gemm(&c, &a, &b)
}

func TestGemmNoAllocs(t *testing.T) {
	a := NewMat(8, 8)
	b := NewMat(8, 8)
	c := NewMat(8, 8)

	FillRandn(&a, 6, 0.5)
	FillRandn(&b, 7, 0.5)

	allocs := testing.AllocsPerRun(100, func() {
		Gemm(&c, &a, &b)
	})
	if allocs != 0 {
		t.Fatalf("unexpected allocs: %v", allocs)
	}
}
