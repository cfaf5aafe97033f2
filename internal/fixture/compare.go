package fixture

import (
	"fmt"
	"math"

	"github.com/google/uuid"
)

// Stats summarises the element-wise divergence between a produced tensor and
// its expected counterpart.
type Stats struct {
	N       int     `json:"n"`
	MaxAbs  float64 `json:"max_abs"`
	MeanAbs float64 `json:"mean_abs"`
	RMSE    float64 `json:"rmse"`
	Within  bool    `json:"within"`
}

// Compare scores got against want using the mixed tolerance
// |got-want| <= abs + rel*|want| per element.  A length mismatch is scored
// as a failure with zero stats rather than a partial comparison.
func Compare(got, want []float32, absTol, relTol float64) Stats {
	if len(got) != len(want) || len(got) == 0 {
		return Stats{N: len(got)}
	}
	var (
		sumAbs float64
		sumSq  float64
		maxAbs float64
	)
	within := true
	for i := range got {
		g := float64(got[i])
		w := float64(want[i])
		diff := math.Abs(g - w)
		sumAbs += diff
		sumSq += diff * diff
		if diff > maxAbs {
			maxAbs = diff
		}
		if diff > absTol+relTol*math.Abs(w) {
			within = false
		}
	}
	n := float64(len(got))
	return Stats{
		N:       len(got),
		MaxAbs:  maxAbs,
		MeanAbs: sumAbs / n,
		RMSE:    math.Sqrt(sumSq / n),
		Within:  within,
	}
}

// CaseResult is the verdict for one fixture case.
type CaseResult struct {
	Name   string `json:"name"`
	Kind   Kind   `json:"kind"`
	Output Stats  `json:"output"`
	HN     Stats  `json:"hn"`
	CN     Stats  `json:"cn,omitempty"`
	Pass   bool   `json:"pass"`
}

// Report aggregates the results of one verification run.  RunID identifies
// the run in logs and exported reports.
type Report struct {
	RunID   string       `json:"run_id"`
	Results []CaseResult `json:"results"`
}

// NewReport creates an empty report with a fresh run id.
func NewReport() *Report {
	return &Report{RunID: uuid.NewString()}
}

// Add scores one executed case against its expected tensors and records the
// verdict.  The case must have expected tensors; callers check HasExpected
// before running.
func (r *Report) Add(c *Case, got Tensors) CaseResult {
	res := CaseResult{
		Name:   c.Name,
		Kind:   c.Kind,
		Output: Compare(got.Output, c.Expected.Output, c.AbsTol, c.RelTol),
		HN:     Compare(got.HN, c.Expected.HN, c.AbsTol, c.RelTol),
	}
	res.Pass = res.Output.Within && res.HN.Within
	if c.HasCell() {
		res.CN = Compare(got.CN, c.Expected.CN, c.AbsTol, c.RelTol)
		res.Pass = res.Pass && res.CN.Within
	}
	r.Results = append(r.Results, res)
	return res
}

// Passed reports whether every recorded case passed.
func (r *Report) Passed() bool {
	for _, res := range r.Results {
		if !res.Pass {
			return false
		}
	}
	return true
}

// Summary renders a one-line digest in the style of the per-step diff lines.
func (r *Report) Summary() string {
	passed := 0
	var maxAbs float64
	for _, res := range r.Results {
		if res.Pass {
			passed++
		}
		for _, s := range []Stats{res.Output, res.HN, res.CN} {
			if s.MaxAbs > maxAbs {
				maxAbs = s.MaxAbs
			}
		}
	}
	return fmt.Sprintf("cases=%d passed=%d max_abs=%.6g", len(r.Results), passed, maxAbs)
}
