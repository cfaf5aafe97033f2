package rnn

import (
	"github.com/samcharles93/rnncheck/internal/tensor"
)

// LSTMForward runs the LSTM recurrence over the input sequence x and returns
// the full output sequence plus the final hidden and cell states.
//
// Per step t the pre-activations z = WIH*x_t + BIH + WHH*h_{t-1} + BHH are
// split into four H-wide gate blocks (input, forget, cell-candidate, output)
// and combined as
//
//	c_t = sigmoid(f) .* c_{t-1} + sigmoid(i) .* tanh(g)
//	h_t = sigmoid(o) .* tanh(c_t)
//
// When w.Proj is set, h_t is further mapped through the projection matrix
// before being stored and carried forward, so the output width and the
// recurrent hidden width are both the projection size.  The cell state
// always keeps the full hidden width.
//
// h0 must have shape (1, B, OutSize) and c0 shape (1, B, H).  The returned
// states follow the same convention.  x is never modified; the previous
// step's state is copied, not aliased, into each update.
func LSTMForward(x *Sequence, w *LSTMWeights, h0, c0 *State) (Sequence, State, State, error) {
	if err := w.validate(x.Features); err != nil {
		return Sequence{}, State{}, State{}, err
	}
	hidden := w.HiddenSize()
	out := w.OutSize()
	if err := checkState("lstm", "h0", h0, x.Batch, out); err != nil {
		return Sequence{}, State{}, State{}, err
	}
	if err := checkState("lstm", "c0", c0, x.Batch, hidden); err != nil {
		return Sequence{}, State{}, State{}, err
	}

	batch := x.Batch
	output := NewSequence(batch, x.Steps, out)

	prevH := h0.Mat().Clone()
	prevC := c0.Mat().Clone()
	curH := tensor.NewMat(batch, hidden)
	curC := tensor.NewMat(batch, hidden)
	projH := tensor.NewMat(batch, out)

	xt := tensor.NewMat(batch, x.Features)
	z := tensor.NewMat(batch, lstmGates*hidden)

	for t := 0; t < x.Steps; t++ {
		for b := 0; b < batch; b++ {
			copy(xt.Row(b), x.At(b, t))
		}
		tensor.Gemm(&z, &xt, &w.WIH)
		tensor.AddBias(&z, w.BIH)
		tensor.GemmAcc(&z, &prevH, &w.WHH)
		tensor.AddBias(&z, w.BHH)

		for b := 0; b < batch; b++ {
			zr := z.Row(b)
			ig := zr[0:hidden]
			fg := zr[hidden : 2*hidden]
			gg := zr[2*hidden : 3*hidden]
			og := zr[3*hidden : 4*hidden]

			pc := prevC.Row(b)
			cc := curC.Row(b)
			hc := curH.Row(b)
			for j := 0; j < hidden; j++ {
				i := tensor.Sigmoid(ig[j])
				f := tensor.Sigmoid(fg[j])
				g := tensor.Tanh(gg[j])
				o := tensor.Sigmoid(og[j])
				cc[j] = f*pc[j] + i*g
				hc[j] = o * tensor.Tanh(cc[j])
			}
		}

		stepH := &curH
		if w.Proj != nil {
			tensor.Gemm(&projH, &curH, w.Proj)
			stepH = &projH
		}
		for b := 0; b < batch; b++ {
			copy(output.At(b, t), stepH.Row(b))
			copy(prevH.Row(b), stepH.Row(b))
			copy(prevC.Row(b), curC.Row(b))
		}
	}

	hN := NewState(batch, out)
	cN := NewState(batch, hidden)
	copy(hN.Mat().Data, prevH.Data)
	copy(cN.Mat().Data, prevC.Data)
	return output, hN, cN, nil
}
