package rnn

import (
	"math"
	"testing"

	"github.com/samcharles93/rnncheck/internal/tensor"
)

func sigmoid64(x float64) float64 { return 1.0 / (1.0 + math.Exp(-x)) }

// naiveLSTM recomputes the recurrence one scalar at a time in float64,
// independent of the batched kernel's evaluation order.
func naiveLSTM(x *Sequence, w *LSTMWeights, h0, c0 *State) (out [][]float64, hN, cN [][]float64) {
	hidden := w.HiddenSize()
	outSize := w.OutSize()

	hN = make([][]float64, x.Batch)
	cN = make([][]float64, x.Batch)
	out = make([][]float64, x.Batch)
	for b := 0; b < x.Batch; b++ {
		h := make([]float64, outSize)
		c := make([]float64, hidden)
		for j := range h {
			h[j] = float64(h0.Row(b)[j])
		}
		for j := range c {
			c[j] = float64(c0.Row(b)[j])
		}
		seq := make([]float64, 0, x.Steps*outSize)
		for t := 0; t < x.Steps; t++ {
			xt := x.At(b, t)
			z := make([]float64, 4*hidden)
			for r := range z {
				sum := float64(w.BIH[r]) + float64(w.BHH[r])
				for k, v := range w.WIH.Row(r) {
					sum += float64(v) * float64(xt[k])
				}
				for k, v := range w.WHH.Row(r) {
					sum += float64(v) * h[k]
				}
				z[r] = sum
			}
			hFull := make([]float64, hidden)
			for j := 0; j < hidden; j++ {
				i := sigmoid64(z[j])
				f := sigmoid64(z[hidden+j])
				g := math.Tanh(z[2*hidden+j])
				o := sigmoid64(z[3*hidden+j])
				c[j] = f*c[j] + i*g
				hFull[j] = o * math.Tanh(c[j])
			}
			if w.Proj != nil {
				h = make([]float64, outSize)
				for p := 0; p < outSize; p++ {
					var sum float64
					for k, v := range w.Proj.Row(p) {
						sum += float64(v) * hFull[k]
					}
					h[p] = sum
				}
			} else {
				h = hFull
			}
			seq = append(seq, h...)
		}
		out[b] = seq
		hN[b] = h
		cN[b] = c
	}
	return out, hN, cN
}

func randnVec(n int, seed int64, scale float32) []float32 {
	m := tensor.NewMat(1, n)
	tensor.FillRandn(&m, seed, scale)
	return m.Data
}

func buildLSTM(t *testing.T, batch, steps, in, hidden, proj int, seed int64) (Sequence, LSTMWeights, State, State) {
	t.Helper()
	outSize := hidden
	w := LSTMWeights{
		WIH: tensor.NewMat(4*hidden, in),
		BIH: randnVec(4*hidden, seed+37, 0.4),
		BHH: randnVec(4*hidden, seed+41, 0.4),
	}
	if proj > 0 {
		outSize = proj
		p := tensor.NewMat(proj, hidden)
		tensor.FillRandn(&p, seed+53, 0.4)
		w.Proj = &p
	}
	w.WHH = tensor.NewMat(4*hidden, outSize)
	tensor.FillRandn(&w.WIH, seed+11, 0.4)
	tensor.FillRandn(&w.WHH, seed+23, 0.4)

	x := NewSequence(batch, steps, in)
	xm := tensor.NewMatFromData(batch*steps, in, x.Data)
	tensor.FillRandn(&xm, seed+67, 1.0)

	h0 := NewState(batch, outSize)
	c0 := NewState(batch, hidden)
	tensor.FillRandn(h0.Mat(), seed+71, 1.0)
	tensor.FillRandn(c0.Mat(), seed+83, 1.0)
	return x, w, h0, c0
}

func checkClose(t *testing.T, name string, got []float32, want []float64, tol float64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("%s: length %d, want %d", name, len(got), len(want))
	}
	for i := range got {
		if d := math.Abs(float64(got[i]) - want[i]); d > tol {
			t.Fatalf("%s[%d] = %g, want %g (diff %g)", name, i, got[i], want[i], d)
		}
	}
}

func TestLSTMForwardMatchesNaive(t *testing.T) {
	for _, steps := range []int{1, 3, 6} {
		x, w, h0, c0 := buildLSTM(t, 2, steps, 4, 5, 0, 42)
		out, hN, cN, err := LSTMForward(&x, &w, &h0, &c0)
		if err != nil {
			t.Fatalf("steps=%d: %v", steps, err)
		}
		wantOut, wantH, wantC := naiveLSTM(&x, &w, &h0, &c0)
		for b := 0; b < x.Batch; b++ {
			gotSeq := out.Data[b*steps*out.Features : (b+1)*steps*out.Features]
			checkClose(t, "output", gotSeq, wantOut[b], 1e-5)
			checkClose(t, "hn", hN.Row(b), wantH[b], 1e-5)
			checkClose(t, "cn", cN.Row(b), wantC[b], 1e-5)
		}
	}
}

func TestLSTMProjForwardMatchesNaive(t *testing.T) {
	for _, steps := range []int{1, 3} {
		x, w, h0, c0 := buildLSTM(t, 2, steps, 4, 5, 3, 99)
		out, hN, cN, err := LSTMForward(&x, &w, &h0, &c0)
		if err != nil {
			t.Fatalf("steps=%d: %v", steps, err)
		}
		if out.Features != 3 || hN.Dim() != 3 || cN.Dim() != 5 {
			t.Fatalf("shapes out=%d hn=%d cn=%d, want 3/3/5", out.Features, hN.Dim(), cN.Dim())
		}
		wantOut, wantH, wantC := naiveLSTM(&x, &w, &h0, &c0)
		for b := 0; b < x.Batch; b++ {
			gotSeq := out.Data[b*steps*out.Features : (b+1)*steps*out.Features]
			checkClose(t, "output", gotSeq, wantOut[b], 1e-5)
			checkClose(t, "hn", hN.Row(b), wantH[b], 1e-5)
			checkClose(t, "cn", cN.Row(b), wantC[b], 1e-5)
		}
	}
}

// TestLSTMIdentityProjection pins the reduction property: a projected cell
// with the identity projection reproduces the plain cell exactly, including
// the cell state.
func TestLSTMIdentityProjection(t *testing.T) {
	x, w, h0, c0 := buildLSTM(t, 2, 3, 4, 5, 0, 7)
	plainOut, plainH, plainC, err := LSTMForward(&x, &w, &h0, &c0)
	if err != nil {
		t.Fatal(err)
	}

	eye := tensor.Identity(5)
	wp := w
	wp.Proj = &eye
	projOut, projH, projC, err := LSTMForward(&x, &wp, &h0, &c0)
	if err != nil {
		t.Fatal(err)
	}

	for i := range plainOut.Data {
		if plainOut.Data[i] != projOut.Data[i] {
			t.Fatalf("output[%d]: plain %g, identity-proj %g", i, plainOut.Data[i], projOut.Data[i])
		}
	}
	for b := 0; b < 2; b++ {
		for j := 0; j < 5; j++ {
			if plainH.Row(b)[j] != projH.Row(b)[j] {
				t.Fatalf("hn[%d][%d] differs", b, j)
			}
			if plainC.Row(b)[j] != projC.Row(b)[j] {
				t.Fatalf("cn[%d][%d] differs", b, j)
			}
		}
	}
}

// TestLSTMZeroWeights pins the degenerate golden scenario: every gate sits
// at sigmoid(0) = 0.5, so c_t halves each step and h_t = tanh(c_t)/2.
func TestLSTMZeroWeights(t *testing.T) {
	const (
		batch  = 2
		steps  = 4
		in     = 3
		hidden = 2
	)
	w := LSTMWeights{
		WIH: tensor.NewMat(4*hidden, in),
		WHH: tensor.NewMat(4*hidden, hidden),
		BIH: make([]float32, 4*hidden),
		BHH: make([]float32, 4*hidden),
	}
	x := NewSequence(batch, steps, in)
	xm := tensor.NewMatFromData(batch*steps, in, x.Data)
	tensor.FillRandn(&xm, 3, 1.0) // inputs must not matter
	h0 := NewState(batch, hidden)
	c0 := NewState(batch, hidden)
	for b := 0; b < batch; b++ {
		for j := 0; j < hidden; j++ {
			c0.Row(b)[j] = float32(b + 1)
		}
	}

	out, hN, cN, err := LSTMForward(&x, &w, &h0, &c0)
	if err != nil {
		t.Fatal(err)
	}
	for b := 0; b < batch; b++ {
		c := float32(b + 1)
		for tt := 0; tt < steps; tt++ {
			c /= 2
			h := 0.5 * tensor.Tanh(c)
			for j := 0; j < hidden; j++ {
				if got := out.At(b, tt)[j]; got != h {
					t.Fatalf("h[%d,%d,%d] = %g, want %g", b, tt, j, got, h)
				}
			}
		}
		for j := 0; j < hidden; j++ {
			if cN.Row(b)[j] != c {
				t.Fatalf("cn[%d][%d] = %g, want %g", b, j, cN.Row(b)[j], c)
			}
			if hN.Row(b)[j] != 0.5*tensor.Tanh(c) {
				t.Fatalf("hn[%d][%d] = %g", b, j, hN.Row(b)[j])
			}
		}
	}
}

func TestLSTMStateConvention(t *testing.T) {
	x, w, h0, c0 := buildLSTM(t, 2, 3, 4, 5, 3, 1)
	_, hN, cN, err := LSTMForward(&x, &w, &h0, &c0)
	if err != nil {
		t.Fatal(err)
	}
	if hN.Layers() != 1 || cN.Layers() != 1 {
		t.Fatalf("layer axis %d/%d, want 1/1", hN.Layers(), cN.Layers())
	}
	if hN.Batch() != 2 || cN.Batch() != 2 {
		t.Fatalf("batch axis %d/%d, want 2/2", hN.Batch(), cN.Batch())
	}
}

// TestLSTMInputStateUntouched guards against in-place mutation of the
// caller's tensors across the time loop.
func TestLSTMInputStateUntouched(t *testing.T) {
	x, w, h0, c0 := buildLSTM(t, 2, 3, 4, 5, 0, 13)
	xCopy := append([]float32(nil), x.Data...)
	hCopy := append([]float32(nil), h0.Mat().Data...)
	cCopy := append([]float32(nil), c0.Mat().Data...)

	if _, _, _, err := LSTMForward(&x, &w, &h0, &c0); err != nil {
		t.Fatal(err)
	}
	for i := range xCopy {
		if x.Data[i] != xCopy[i] {
			t.Fatalf("input mutated at %d", i)
		}
	}
	for i := range hCopy {
		if h0.Mat().Data[i] != hCopy[i] {
			t.Fatalf("h0 mutated at %d", i)
		}
	}
	for i := range cCopy {
		if c0.Mat().Data[i] != cCopy[i] {
			t.Fatalf("c0 mutated at %d", i)
		}
	}
}

func TestLSTMValidation(t *testing.T) {
	x, w, h0, c0 := buildLSTM(t, 2, 3, 4, 5, 0, 21)

	bad := w
	bad.WIH = tensor.NewMat(4*5+1, 4) // rows not divisible by gate count
	if _, _, _, err := LSTMForward(&x, &bad, &h0, &c0); err == nil {
		t.Fatal("expected gate-divisibility error")
	}

	bad = w
	bad.BIH = bad.BIH[:len(bad.BIH)-1]
	if _, _, _, err := LSTMForward(&x, &bad, &h0, &c0); err == nil {
		t.Fatal("expected bias length error")
	}

	shortH := NewState(2, 4)
	if _, _, _, err := LSTMForward(&x, &w, &shortH, &c0); err == nil {
		t.Fatal("expected h0 shape error")
	}

	wrongBatch := NewState(3, 5)
	if _, _, _, err := LSTMForward(&x, &w, &h0, &wrongBatch); err == nil {
		t.Fatal("expected c0 batch error")
	}

	bad = w
	proj := tensor.NewMat(3, 4) // projection columns must equal hidden size
	bad.Proj = &proj
	if _, _, _, err := LSTMForward(&x, &bad, &h0, &c0); err == nil {
		t.Fatal("expected projection shape error")
	}
}
