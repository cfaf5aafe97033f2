// Package rnn implements the forward-pass recurrences of single-layer,
// unidirectional LSTM, projected-output LSTM, and GRU cells.
//
// Parameter layout follows the reference framework's convention: per-gate
// weight matrices are stacked row-wise into one matrix per input, with gate k
// occupying rows [k*H, (k+1)*H).  The LSTM gate order is input, forget,
// cell-candidate, output; the GRU gate order is reset, update, candidate.
// Deviating from either order produces numerically wrong (not crashing)
// results, so the layout is validated only by shape, never reordered.
package rnn

import (
	"fmt"

	"github.com/samcharles93/rnncheck/internal/tensor"
)

const (
	lstmGates = 4
	gruGates  = 3
)

// Sequence is a batch-major (batch, steps, features) tensor backed by a flat
// row-major float32 slice.
type Sequence struct {
	Batch    int
	Steps    int
	Features int
	Data     []float32
}

// NewSequence allocates a zero-filled sequence.
func NewSequence(batch, steps, features int) Sequence {
	if batch < 0 || steps < 0 || features < 0 {
		panic("negative dimension for sequence")
	}
	return Sequence{
		Batch:    batch,
		Steps:    steps,
		Features: features,
		Data:     make([]float32, batch*steps*features),
	}
}

// SequenceFromData wraps an existing flat slice as a sequence.
func SequenceFromData(batch, steps, features int, data []float32) (Sequence, error) {
	if want := batch * steps * features; len(data) != want {
		return Sequence{}, fmt.Errorf("sequence data length %d, want %d (%dx%dx%d)", len(data), want, batch, steps, features)
	}
	return Sequence{Batch: batch, Steps: steps, Features: features, Data: data}, nil
}

// At returns a view of the feature vector for batch element b at step t.
// Modifications to the returned slice update the sequence.
func (s *Sequence) At(b, t int) []float32 {
	if b < 0 || b >= s.Batch || t < 0 || t >= s.Steps {
		panic("sequence index out of range")
	}
	start := (b*s.Steps + t) * s.Features
	return s.Data[start : start+s.Features]
}

// State is a recurrent state stack with the logical layout
// (layers, batch, dim).  Single-layer unidirectional cells always carry
// exactly one layer; the leading axis is kept so returned states line up
// with the reference framework's (1, B, dim) convention.
type State struct {
	layers int
	m      tensor.Mat
}

// NewState allocates a zero-filled single-layer state of shape (1, batch, dim).
func NewState(batch, dim int) State {
	return State{layers: 1, m: tensor.NewMat(batch, dim)}
}

// StateFromData wraps a flat (1, batch, dim) slice as a state.
func StateFromData(batch, dim int, data []float32) (State, error) {
	if want := batch * dim; len(data) != want {
		return State{}, fmt.Errorf("state data length %d, want %d (1x%dx%d)", len(data), want, batch, dim)
	}
	return State{layers: 1, m: tensor.NewMatFromData(batch, dim, data)}, nil
}

// Layers reports the size of the leading state axis.  Always 1 here.
func (s *State) Layers() int { return s.layers }

// Batch reports the batch dimension of the state.
func (s *State) Batch() int { return s.m.R }

// Dim reports the per-element state width.
func (s *State) Dim() int { return s.m.C }

// Mat returns the (batch, dim) matrix for layer 0.
func (s *State) Mat() *tensor.Mat { return &s.m }

// Row returns the state vector of batch element b.
func (s *State) Row(b int) []float32 { return s.m.Row(b) }

// LSTMWeights holds the stacked parameters of one LSTM cell.
//
// With hidden size H, input size I, and optional projection size P, the
// shapes are WIH (4H, I), WHH (4H, P or H), BIH and BHH (4H), and
// Proj (P, H).  When Proj is nil the cell is a plain LSTM and the hidden
// state keeps dimensionality H.
type LSTMWeights struct {
	WIH tensor.Mat
	WHH tensor.Mat
	BIH []float32
	BHH []float32

	// Proj, when non-nil, maps the full hidden state down to the projected
	// state carried between steps and written to the output.  The cell
	// state is never projected.
	Proj *tensor.Mat
}

// HiddenSize derives H from the stacked input-to-hidden weight rows.
func (w *LSTMWeights) HiddenSize() int { return w.WIH.R / lstmGates }

// OutSize reports the dimensionality of the hidden state carried between
// steps: the projection size when a projection is present, H otherwise.
func (w *LSTMWeights) OutSize() int {
	if w.Proj != nil {
		return w.Proj.R
	}
	return w.HiddenSize()
}

func (w *LSTMWeights) validate(inputSize int) error {
	if w.WIH.R == 0 || w.WIH.R%lstmGates != 0 {
		return fmt.Errorf("lstm: input weight rows %d not divisible by %d gates", w.WIH.R, lstmGates)
	}
	hidden := w.HiddenSize()
	if w.WIH.C != inputSize {
		return fmt.Errorf("lstm: input weight columns %d, want input size %d", w.WIH.C, inputSize)
	}
	if w.WHH.R != lstmGates*hidden {
		return fmt.Errorf("lstm: hidden weight rows %d, want %d", w.WHH.R, lstmGates*hidden)
	}
	out := hidden
	if w.Proj != nil {
		if w.Proj.C != hidden {
			return fmt.Errorf("lstm: projection columns %d, want hidden size %d", w.Proj.C, hidden)
		}
		if w.Proj.R <= 0 || w.Proj.R > hidden {
			return fmt.Errorf("lstm: projection size %d outside [1, %d]", w.Proj.R, hidden)
		}
		out = w.Proj.R
	}
	if w.WHH.C != out {
		return fmt.Errorf("lstm: hidden weight columns %d, want %d", w.WHH.C, out)
	}
	if len(w.BIH) != lstmGates*hidden || len(w.BHH) != lstmGates*hidden {
		return fmt.Errorf("lstm: bias lengths %d/%d, want %d", len(w.BIH), len(w.BHH), lstmGates*hidden)
	}
	return nil
}

// GRUWeights holds the stacked parameters of one GRU cell.
//
// With hidden size H and input size I the shapes are WIH (3H, I),
// WHH (3H, H), and BIH and BHH (3H).
type GRUWeights struct {
	WIH tensor.Mat
	WHH tensor.Mat
	BIH []float32
	BHH []float32
}

// HiddenSize derives H from the stacked input-to-hidden weight rows.
func (w *GRUWeights) HiddenSize() int { return w.WIH.R / gruGates }

func (w *GRUWeights) validate(inputSize int) error {
	if w.WIH.R == 0 || w.WIH.R%gruGates != 0 {
		return fmt.Errorf("gru: input weight rows %d not divisible by %d gates", w.WIH.R, gruGates)
	}
	hidden := w.HiddenSize()
	if w.WIH.C != inputSize {
		return fmt.Errorf("gru: input weight columns %d, want input size %d", w.WIH.C, inputSize)
	}
	if w.WHH.R != gruGates*hidden || w.WHH.C != hidden {
		return fmt.Errorf("gru: hidden weight shape %dx%d, want %dx%d", w.WHH.R, w.WHH.C, gruGates*hidden, hidden)
	}
	if len(w.BIH) != gruGates*hidden || len(w.BHH) != gruGates*hidden {
		return fmt.Errorf("gru: bias lengths %d/%d, want %d", len(w.BIH), len(w.BHH), gruGates*hidden)
	}
	return nil
}

func checkState(kind, name string, s *State, batch, dim int) error {
	if s.Layers() != 1 {
		return fmt.Errorf("%s: %s has %d layers, want 1", kind, name, s.Layers())
	}
	if s.Batch() != batch || s.Dim() != dim {
		return fmt.Errorf("%s: %s shape (1,%d,%d), want (1,%d,%d)", kind, name, s.Batch(), s.Dim(), batch, dim)
	}
	return nil
}
