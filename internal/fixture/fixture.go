// Package fixture defines the JSON parity-fixture format used to verify the
// hand-written recurrence kernels against outputs exported from a reference
// deep-learning framework, and the comparison machinery that scores a run
// against a fixture's expected tensors.
//
// All tensors travel as flat row-major float32 arrays; shapes are carried by
// the case dimensions.  Weight field names mirror the reference framework's
// parameter names (weight_ih, weight_hh, bias_ih, bias_hh, weight_hr) so an
// exporter can fill a fixture without any index juggling.
package fixture

import (
	"fmt"
	"os"

	json "github.com/goccy/go-json"
)

// Kind selects which recurrence a case exercises.
type Kind string

const (
	KindLSTM     Kind = "lstm"
	KindLSTMProj Kind = "lstm_proj"
	KindGRU      Kind = "gru"
)

// Default comparison tolerances.  Divergence is scored element-wise as
// |got-want| <= abs + rel*|want|.
const (
	DefaultAbsTol = 1e-5
	DefaultRelTol = 1e-4
)

// Weights holds the stacked cell parameters of one case.
type Weights struct {
	WIH []float32 `json:"weight_ih"`
	WHH []float32 `json:"weight_hh"`
	BIH []float32 `json:"bias_ih"`
	BHH []float32 `json:"bias_hh"`
	WHR []float32 `json:"weight_hr,omitempty"`
}

// Tensors is the output triple of a forward pass.  CN is empty for GRU
// cases.  A fixture freshly emitted by Generate carries empty Expected
// tensors until the exporter fills them.
type Tensors struct {
	Output []float32 `json:"output,omitempty"`
	HN     []float32 `json:"hn,omitempty"`
	CN     []float32 `json:"cn,omitempty"`
}

// Case is one parity scenario: fixed weights, inputs, and initial states,
// plus the reference framework's outputs for them.
type Case struct {
	Name       string  `json:"name"`
	Kind       Kind    `json:"kind"`
	Batch      int     `json:"batch"`
	Steps      int     `json:"steps"`
	InputSize  int     `json:"input_size"`
	HiddenSize int     `json:"hidden_size"`
	ProjSize   int     `json:"proj_size,omitempty"`
	Seed       int64   `json:"seed"`
	AbsTol     float64 `json:"abs_tol"`
	RelTol     float64 `json:"rel_tol"`

	Weights  Weights   `json:"weights"`
	Input    []float32 `json:"input"`
	H0       []float32 `json:"h0"`
	C0       []float32 `json:"c0,omitempty"`
	Expected Tensors   `json:"expected"`
}

// File is a fixture document holding one or more cases.
type File struct {
	Cases []Case `json:"cases"`
}

// OutSize reports the width of the output features and final hidden state:
// the projection size for projected cases, the hidden size otherwise.
func (c *Case) OutSize() int {
	if c.Kind == KindLSTMProj {
		return c.ProjSize
	}
	return c.HiddenSize
}

func (c *Case) gates() int {
	if c.Kind == KindGRU {
		return 3
	}
	return 4
}

// HasCell reports whether the case's cell type carries a cell state.
func (c *Case) HasCell() bool { return c.Kind != KindGRU }

// Validate checks that every tensor in the case has the length its declared
// dimensions require.  Expected tensors are checked only when present, so a
// template awaiting export still validates.
func (c *Case) Validate() error {
	switch c.Kind {
	case KindLSTM, KindLSTMProj, KindGRU:
	default:
		return fmt.Errorf("case %q: unknown kind %q", c.Name, c.Kind)
	}
	if c.Batch <= 0 || c.Steps <= 0 || c.InputSize <= 0 || c.HiddenSize <= 0 {
		return fmt.Errorf("case %q: non-positive dimensions", c.Name)
	}
	if c.Kind == KindLSTMProj {
		if c.ProjSize <= 0 || c.ProjSize > c.HiddenSize {
			return fmt.Errorf("case %q: proj_size %d outside [1, %d]", c.Name, c.ProjSize, c.HiddenSize)
		}
		if want := c.ProjSize * c.HiddenSize; len(c.Weights.WHR) != want {
			return fmt.Errorf("case %q: weight_hr length %d, want %d", c.Name, len(c.Weights.WHR), want)
		}
	} else if len(c.Weights.WHR) != 0 {
		return fmt.Errorf("case %q: weight_hr set on non-projected kind %q", c.Name, c.Kind)
	}

	g, out := c.gates(), c.OutSize()
	checks := []struct {
		name string
		got  int
		want int
	}{
		{"weight_ih", len(c.Weights.WIH), g * c.HiddenSize * c.InputSize},
		{"weight_hh", len(c.Weights.WHH), g * c.HiddenSize * out},
		{"bias_ih", len(c.Weights.BIH), g * c.HiddenSize},
		{"bias_hh", len(c.Weights.BHH), g * c.HiddenSize},
		{"input", len(c.Input), c.Batch * c.Steps * c.InputSize},
		{"h0", len(c.H0), c.Batch * out},
	}
	if c.HasCell() {
		checks = append(checks, struct {
			name string
			got  int
			want int
		}{"c0", len(c.C0), c.Batch * c.HiddenSize})
	} else if len(c.C0) != 0 {
		return fmt.Errorf("case %q: c0 set on gru case", c.Name)
	}
	for _, ck := range checks {
		if ck.got != ck.want {
			return fmt.Errorf("case %q: %s length %d, want %d", c.Name, ck.name, ck.got, ck.want)
		}
	}

	if len(c.Expected.Output) != 0 && len(c.Expected.Output) != c.Batch*c.Steps*out {
		return fmt.Errorf("case %q: expected output length %d, want %d", c.Name, len(c.Expected.Output), c.Batch*c.Steps*out)
	}
	if len(c.Expected.HN) != 0 && len(c.Expected.HN) != c.Batch*out {
		return fmt.Errorf("case %q: expected hn length %d, want %d", c.Name, len(c.Expected.HN), c.Batch*out)
	}
	if len(c.Expected.CN) != 0 {
		if !c.HasCell() {
			return fmt.Errorf("case %q: expected cn set on gru case", c.Name)
		}
		if len(c.Expected.CN) != c.Batch*c.HiddenSize {
			return fmt.Errorf("case %q: expected cn length %d, want %d", c.Name, len(c.Expected.CN), c.Batch*c.HiddenSize)
		}
	}
	return nil
}

// HasExpected reports whether the exporter has filled the expected tensors.
func (c *Case) HasExpected() bool {
	return len(c.Expected.Output) != 0 && len(c.Expected.HN) != 0 && (!c.HasCell() || len(c.Expected.CN) != 0)
}

// Load reads and validates a fixture file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture: %w", err)
	}
	if len(f.Cases) == 0 {
		return nil, fmt.Errorf("fixture %s: no cases", path)
	}
	for i := range f.Cases {
		if err := f.Cases[i].Validate(); err != nil {
			return nil, err
		}
	}
	return &f, nil
}

// Save writes the fixture file with indentation stable enough to diff.
func Save(path string, f *File) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("encode fixture: %w", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write fixture: %w", err)
	}
	return nil
}
