package tensor

import (
	"math"
)

// Add adds src to dst element-wise.
func Add(dst, src []float32) {
	for i := range dst {
		dst[i] += src[i]
	}
}

// Dot computes the dot product of a and b.
func Dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// AddBias adds the bias vector to every row of m.  The bias length must
// equal the number of columns.
func AddBias(m *Mat, bias []float32) {
	if len(bias) != m.C {
		panic("bias length mismatch")
	}
	for i := 0; i < m.R; i++ {
		Add(m.Row(i), bias)
	}
}

// Sigmoid computes the logistic sigmoid activation.
func Sigmoid(x float32) float32 {
	return float32(1.0 / (1.0 + math.Exp(float64(-x))))
}

// Tanh computes the hyperbolic tangent activation.
func Tanh(x float32) float32 {
	return float32(math.Tanh(float64(x)))
}

// SigmoidTo writes Sigmoid(src[i]) into dst[i].  dst and src may alias.
func SigmoidTo(dst, src []float32) {
	for i := range src {
		dst[i] = Sigmoid(src[i])
	}
}

// TanhTo writes Tanh(src[i]) into dst[i].  dst and src may alias.
func TanhTo(dst, src []float32) {
	for i := range src {
		dst[i] = Tanh(src[i])
	}
}
