package fixture

import (
	"fmt"

	"github.com/samcharles93/rnncheck/internal/tensor"
)

// Weight and input scales for generated scenarios.  Weights stay small so
// repeated steps keep the gates off their asymptotes; inputs use unit scale
// so the nonlinearities are actually exercised.
const (
	weightScale = 0.4
	inputScale  = 1.0
)

// Generate builds a reproducible parity scenario for the given kind and
// dimensions.  Weights, inputs, and initial states are drawn from seeded
// normal distributions; the expected tensors are left empty for the
// reference exporter to fill.  The same seed always yields the same case.
func Generate(name string, kind Kind, batch, steps, inputSize, hiddenSize, projSize int, seed int64) (Case, error) {
	c := Case{
		Name:       name,
		Kind:       kind,
		Batch:      batch,
		Steps:      steps,
		InputSize:  inputSize,
		HiddenSize: hiddenSize,
		Seed:       seed,
		AbsTol:     DefaultAbsTol,
		RelTol:     DefaultRelTol,
	}
	if kind == KindLSTMProj {
		c.ProjSize = projSize
	} else if projSize != 0 {
		return Case{}, fmt.Errorf("generate %q: proj size only applies to kind %q", name, KindLSTMProj)
	}

	gates, out := c.gates(), c.OutSize()
	c.Weights.WIH = randn(gates*hiddenSize, inputSize, seed+11, weightScale)
	c.Weights.WHH = randn(gates*hiddenSize, out, seed+23, weightScale)
	c.Weights.BIH = randn(1, gates*hiddenSize, seed+37, weightScale)
	c.Weights.BHH = randn(1, gates*hiddenSize, seed+41, weightScale)
	if kind == KindLSTMProj {
		c.Weights.WHR = randn(projSize, hiddenSize, seed+53, weightScale)
	}
	c.Input = randn(batch*steps, inputSize, seed+67, inputScale)
	c.H0 = randn(batch, out, seed+71, inputScale)
	if c.HasCell() {
		c.C0 = randn(batch, hiddenSize, seed+83, inputScale)
	}

	if err := c.Validate(); err != nil {
		return Case{}, err
	}
	return c, nil
}

func randn(r, c int, seed int64, scale float32) []float32 {
	m := tensor.NewMat(r, c)
	tensor.FillRandn(&m, seed, scale)
	return m.Data
}
