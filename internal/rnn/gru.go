package rnn

import (
	"github.com/samcharles93/rnncheck/internal/tensor"
)

// GRUForward runs the GRU recurrence over the input sequence x and returns
// the full output sequence plus the final hidden state.
//
// Per step t the input and hidden pre-activations are kept separate,
// p = WIH*x_t + BIH and q = WHH*h_{t-1} + BHH, each split into three H-wide
// gate blocks (reset, update, candidate):
//
//	r_t = sigmoid(p[0:H] + q[0:H])
//	z_t = sigmoid(p[H:2H] + q[H:2H])
//	n_t = tanh(p[2H:3H] + r_t .* q[2H:3H])
//	h_t = (1 - z_t) .* n_t + z_t .* h_{t-1}
//
// The reset gate scales only the hidden-derived candidate term, inside the
// tanh argument.  Moving that product outside the sum changes the cell; the
// two pre-activations are therefore never merged before the candidate gate.
//
// h0 must have shape (1, B, H); the returned state follows the same
// convention.
func GRUForward(x *Sequence, w *GRUWeights, h0 *State) (Sequence, State, error) {
	if err := w.validate(x.Features); err != nil {
		return Sequence{}, State{}, err
	}
	hidden := w.HiddenSize()
	if err := checkState("gru", "h0", h0, x.Batch, hidden); err != nil {
		return Sequence{}, State{}, err
	}

	batch := x.Batch
	output := NewSequence(batch, x.Steps, hidden)

	prevH := h0.Mat().Clone()
	curH := tensor.NewMat(batch, hidden)

	xt := tensor.NewMat(batch, x.Features)
	p := tensor.NewMat(batch, gruGates*hidden)
	q := tensor.NewMat(batch, gruGates*hidden)

	for t := 0; t < x.Steps; t++ {
		for b := 0; b < batch; b++ {
			copy(xt.Row(b), x.At(b, t))
		}
		tensor.Gemm(&p, &xt, &w.WIH)
		tensor.AddBias(&p, w.BIH)
		tensor.Gemm(&q, &prevH, &w.WHH)
		tensor.AddBias(&q, w.BHH)

		for b := 0; b < batch; b++ {
			pr := p.Row(b)
			qr := q.Row(b)
			ph := prevH.Row(b)
			hc := curH.Row(b)
			for j := 0; j < hidden; j++ {
				r := tensor.Sigmoid(pr[j] + qr[j])
				z := tensor.Sigmoid(pr[hidden+j] + qr[hidden+j])
				n := tensor.Tanh(pr[2*hidden+j] + r*qr[2*hidden+j])
				hc[j] = (1-z)*n + z*ph[j]
			}
		}

		for b := 0; b < batch; b++ {
			copy(output.At(b, t), curH.Row(b))
			copy(prevH.Row(b), curH.Row(b))
		}
	}

	hN := NewState(batch, hidden)
	copy(hN.Mat().Data, prevH.Data)
	return output, hN, nil
}
