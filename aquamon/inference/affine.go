package inference

import (
	"context"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Affine is a linear calibration y = W·x + b exported from a fitted model.
type Affine struct {
	Weights [][]float64 `yaml:"weights"`
	Bias    []float64   `yaml:"bias"`
}

func LoadAffine(path string) (*Affine, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read calibration")
	}
	var a Affine
	if err := yaml.Unmarshal(raw, &a); err != nil {
		return nil, errors.Wrapf(err, "failed to parse calibration %s", path)
	}
	if err := a.validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid calibration %s", path)
	}
	return &a, nil
}

func (a *Affine) validate() error {
	if len(a.Weights) == 0 {
		return errors.New("no weight rows")
	}
	if len(a.Bias) != len(a.Weights) {
		return errors.Errorf("bias has %d entries for %d weight rows", len(a.Bias), len(a.Weights))
	}
	for i, row := range a.Weights {
		if len(row) != len(a.Weights[0]) {
			return errors.Errorf("weight row %d has %d columns, want %d", i, len(row), len(a.Weights[0]))
		}
	}
	return nil
}

// Inputs is the signal width the calibration expects.
func (a *Affine) Inputs() int {
	if len(a.Weights) == 0 {
		return 0
	}
	return len(a.Weights[0])
}

func (a *Affine) Predict(_ context.Context, input []float64) ([]float64, error) {
	if len(input) != a.Inputs() {
		return nil, errors.Errorf("calibration expects %d inputs, got %d", a.Inputs(), len(input))
	}
	out := make([]float64, len(a.Weights))
	for i, row := range a.Weights {
		y := a.Bias[i]
		for j, w := range row {
			y += w * input[j]
		}
		out[i] = y
	}
	return out, nil
}
