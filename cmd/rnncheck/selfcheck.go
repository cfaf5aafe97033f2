package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/rnncheck/internal/fixture"
	"github.com/samcharles93/rnncheck/internal/rnn"
	"github.com/samcharles93/rnncheck/internal/tensor"
)

// Standard scenario dimensions used by the built-in checks and the default
// generated fixtures.
const (
	stdBatch  = 2
	stdSteps  = 3
	stdInput  = 4
	stdHidden = 5
	stdProj   = 3
	stdSeed   = 42
)

func selfcheckCmd() *cli.Command {
	return &cli.Command{
		Name:  "selfcheck",
		Usage: "Run the built-in structural property checks",
		Flags: loggingFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			applyCommonConfig(cmd, LoadConfig())
			log := buildLogger()

			checks := []struct {
				name string
				fn   func() error
			}{
				{"output shapes", checkShapes},
				{"single step", checkSingleStep},
				{"projection identity", checkProjectionIdentity},
				{"projection asymmetry", checkProjectionAsymmetry},
				{"zero-weight lstm", checkZeroWeightLSTM},
				{"zero-weight gru halving", checkGRUHalving},
			}

			failed := 0
			for _, c := range checks {
				if err := c.fn(); err != nil {
					failed++
					log.Error("check failed", "name", c.name, "err", err)
					continue
				}
				log.Info("check passed", "name", c.name)
			}
			if failed > 0 {
				return cli.Exit(fmt.Sprintf("%d/%d checks failed", failed, len(checks)), 1)
			}
			log.Info("all checks passed", "count", len(checks))
			return nil
		},
	}
}

func runGenerated(kind fixture.Kind, steps, proj int) (fixture.Case, fixture.Tensors, error) {
	c, err := fixture.Generate(string(kind), kind, stdBatch, steps, stdInput, stdHidden, proj, stdSeed)
	if err != nil {
		return fixture.Case{}, fixture.Tensors{}, err
	}
	got, err := fixture.Run(&c)
	return c, got, err
}

func checkKindShapes(kind fixture.Kind, steps, proj int) error {
	c, got, err := runGenerated(kind, steps, proj)
	if err != nil {
		return err
	}
	out := c.OutSize()
	if len(got.Output) != c.Batch*c.Steps*out {
		return fmt.Errorf("%s: output length %d, want %d", kind, len(got.Output), c.Batch*c.Steps*out)
	}
	if len(got.HN) != c.Batch*out {
		return fmt.Errorf("%s: hn length %d, want %d", kind, len(got.HN), c.Batch*out)
	}
	if c.HasCell() {
		if len(got.CN) != c.Batch*c.HiddenSize {
			return fmt.Errorf("%s: cn length %d, want %d", kind, len(got.CN), c.Batch*c.HiddenSize)
		}
	} else if len(got.CN) != 0 {
		return fmt.Errorf("%s: unexpected cn", kind)
	}
	return nil
}

func checkShapes() error {
	for _, k := range []fixture.Kind{fixture.KindLSTM, fixture.KindGRU} {
		if err := checkKindShapes(k, stdSteps, 0); err != nil {
			return err
		}
	}
	return checkKindShapes(fixture.KindLSTMProj, stdSteps, stdProj)
}

func checkSingleStep() error {
	for _, k := range []fixture.Kind{fixture.KindLSTM, fixture.KindGRU} {
		if err := checkKindShapes(k, 1, 0); err != nil {
			return err
		}
	}
	return checkKindShapes(fixture.KindLSTMProj, 1, stdProj)
}

// checkProjectionIdentity verifies that a projected cell with an identity
// projection matrix reproduces the plain cell, output and cell state both.
func checkProjectionIdentity() error {
	plain, gotPlain, err := runGenerated(fixture.KindLSTM, stdSteps, 0)
	if err != nil {
		return err
	}

	proj := plain
	proj.Kind = fixture.KindLSTMProj
	proj.ProjSize = plain.HiddenSize
	eye := tensor.Identity(plain.HiddenSize)
	proj.Weights.WHR = eye.Data
	gotProj, err := fixture.Run(&proj)
	if err != nil {
		return err
	}

	for _, pair := range []struct {
		name string
		a, b []float32
	}{
		{"output", gotPlain.Output, gotProj.Output},
		{"hn", gotPlain.HN, gotProj.HN},
		{"cn", gotPlain.CN, gotProj.CN},
	} {
		if s := fixture.Compare(pair.a, pair.b, 1e-7, 0); !s.Within {
			return fmt.Errorf("identity projection diverged on %s: max_abs=%g", pair.name, s.MaxAbs)
		}
	}
	return nil
}

// checkProjectionAsymmetry verifies the state-shape contract of the
// projected cell: the hidden state is carried at the projection width while
// the cell state keeps the full hidden width.
func checkProjectionAsymmetry() error {
	c, err := fixture.Generate("proj", fixture.KindLSTMProj, stdBatch, stdSteps, stdInput, stdHidden, stdProj, stdSeed)
	if err != nil {
		return err
	}
	x, err := rnn.SequenceFromData(c.Batch, c.Steps, c.InputSize, c.Input)
	if err != nil {
		return err
	}
	h0, err := rnn.StateFromData(c.Batch, c.ProjSize, c.H0)
	if err != nil {
		return err
	}
	c0, err := rnn.StateFromData(c.Batch, c.HiddenSize, c.C0)
	if err != nil {
		return err
	}
	projMat := tensor.NewMatFromData(c.ProjSize, c.HiddenSize, c.Weights.WHR)
	w := rnn.LSTMWeights{
		WIH:  tensor.NewMatFromData(4*c.HiddenSize, c.InputSize, c.Weights.WIH),
		WHH:  tensor.NewMatFromData(4*c.HiddenSize, c.ProjSize, c.Weights.WHH),
		BIH:  c.Weights.BIH,
		BHH:  c.Weights.BHH,
		Proj: &projMat,
	}
	out, hN, cN, err := rnn.LSTMForward(&x, &w, &h0, &c0)
	if err != nil {
		return err
	}
	if hN.Layers() != 1 || cN.Layers() != 1 {
		return fmt.Errorf("state layer axis %d/%d, want 1/1", hN.Layers(), cN.Layers())
	}
	if hN.Dim() != c.ProjSize {
		return fmt.Errorf("hn width %d, want proj size %d", hN.Dim(), c.ProjSize)
	}
	if cN.Dim() != c.HiddenSize {
		return fmt.Errorf("cn width %d, want hidden size %d", cN.Dim(), c.HiddenSize)
	}
	if out.Features != c.ProjSize {
		return fmt.Errorf("output width %d, want proj size %d", out.Features, c.ProjSize)
	}
	return nil
}

// checkZeroWeightLSTM verifies the degenerate golden scenario: with all
// weights, biases, and initial states zero, every gate sits at sigmoid(0)
// and the hidden and cell states stay exactly zero for all steps.
func checkZeroWeightLSTM() error {
	c := zeroCase(fixture.KindLSTM)
	got, err := fixture.Run(&c)
	if err != nil {
		return err
	}
	for _, vals := range [][]float32{got.Output, got.HN, got.CN} {
		for i, v := range vals {
			if v != 0 {
				return fmt.Errorf("nonzero value %g at %d", v, i)
			}
		}
	}
	return nil
}

// checkGRUHalving verifies the zero-weight GRU closed form: the update gate
// sits at 0.5 and the candidate at 0, so h_t = h_{t-1}/2 exactly.
func checkGRUHalving() error {
	c := zeroCase(fixture.KindGRU)
	for i := range c.H0 {
		c.H0[i] = 1
	}
	got, err := fixture.Run(&c)
	if err != nil {
		return err
	}
	for b := 0; b < c.Batch; b++ {
		want := float32(1)
		for t := 0; t < c.Steps; t++ {
			want /= 2
			for j := 0; j < c.HiddenSize; j++ {
				v := got.Output[(b*c.Steps+t)*c.HiddenSize+j]
				if v != want {
					return fmt.Errorf("h[%d,%d,%d] = %g, want %g", b, t, j, v, want)
				}
			}
		}
		for j := 0; j < c.HiddenSize; j++ {
			if got.HN[b*c.HiddenSize+j] != want {
				return fmt.Errorf("hn[%d,%d] = %g, want %g", b, j, got.HN[b*c.HiddenSize+j], want)
			}
		}
	}
	return nil
}

// zeroCase builds a case with all weights, inputs, and states zero.
func zeroCase(kind fixture.Kind) fixture.Case {
	gates := 4
	if kind == fixture.KindGRU {
		gates = 3
	}
	c := fixture.Case{
		Name:       "zero-" + string(kind),
		Kind:       kind,
		Batch:      stdBatch,
		Steps:      stdSteps,
		InputSize:  stdInput,
		HiddenSize: stdHidden,
		AbsTol:     fixture.DefaultAbsTol,
		RelTol:     fixture.DefaultRelTol,
	}
	c.Weights.WIH = make([]float32, gates*stdHidden*stdInput)
	c.Weights.WHH = make([]float32, gates*stdHidden*stdHidden)
	c.Weights.BIH = make([]float32, gates*stdHidden)
	c.Weights.BHH = make([]float32, gates*stdHidden)
	c.Input = make([]float32, stdBatch*stdSteps*stdInput)
	c.H0 = make([]float32, stdBatch*stdHidden)
	if kind != fixture.KindGRU {
		c.C0 = make([]float32, stdBatch*stdHidden)
	}
	return c
}
