package fixture

import (
	"fmt"

	"github.com/samcharles93/rnncheck/internal/rnn"
	"github.com/samcharles93/rnncheck/internal/tensor"
)

// Run executes the kernel selected by the case kind over the case tensors
// and returns the produced output sequence and final states.
func Run(c *Case) (Tensors, error) {
	if err := c.Validate(); err != nil {
		return Tensors{}, err
	}

	x, err := rnn.SequenceFromData(c.Batch, c.Steps, c.InputSize, c.Input)
	if err != nil {
		return Tensors{}, fmt.Errorf("case %q: %w", c.Name, err)
	}
	out := c.OutSize()
	h0, err := rnn.StateFromData(c.Batch, out, c.H0)
	if err != nil {
		return Tensors{}, fmt.Errorf("case %q: %w", c.Name, err)
	}

	gates := c.gates()
	if c.Kind == KindGRU {
		w := rnn.GRUWeights{
			WIH: tensor.NewMatFromData(gates*c.HiddenSize, c.InputSize, c.Weights.WIH),
			WHH: tensor.NewMatFromData(gates*c.HiddenSize, c.HiddenSize, c.Weights.WHH),
			BIH: c.Weights.BIH,
			BHH: c.Weights.BHH,
		}
		output, hN, err := rnn.GRUForward(&x, &w, &h0)
		if err != nil {
			return Tensors{}, fmt.Errorf("case %q: %w", c.Name, err)
		}
		return Tensors{Output: output.Data, HN: hN.Mat().Data}, nil
	}

	c0, err := rnn.StateFromData(c.Batch, c.HiddenSize, c.C0)
	if err != nil {
		return Tensors{}, fmt.Errorf("case %q: %w", c.Name, err)
	}
	w := rnn.LSTMWeights{
		WIH: tensor.NewMatFromData(gates*c.HiddenSize, c.InputSize, c.Weights.WIH),
		WHH: tensor.NewMatFromData(gates*c.HiddenSize, out, c.Weights.WHH),
		BIH: c.Weights.BIH,
		BHH: c.Weights.BHH,
	}
	if c.Kind == KindLSTMProj {
		proj := tensor.NewMatFromData(c.ProjSize, c.HiddenSize, c.Weights.WHR)
		w.Proj = &proj
	}
	output, hN, cN, err := rnn.LSTMForward(&x, &w, &h0, &c0)
	if err != nil {
		return Tensors{}, fmt.Errorf("case %q: %w", c.Name, err)
	}
	return Tensors{Output: output.Data, HN: hN.Mat().Data, CN: cN.Mat().Data}, nil
}
