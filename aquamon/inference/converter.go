package inference

import (
	"context"

	"github.com/pkg/errors"

	"github.com/alepar/aquamon/aquamon"
)

// Converter turns raw FET signal frames into calibrated concentrations.
type Converter struct {
	Model aquamon.RegressionModel
}

// Convert runs the regression model on a single sample. Any model failure is an
// *aquamon.InferenceError; no default value is ever substituted.
func (c *Converter) Convert(ctx context.Context, raw aquamon.RawSample) (aquamon.ConcentrationSample, error) {
	if len(raw) == 0 {
		return aquamon.ConcentrationSample{}, aquamon.NewInferenceError("regression", errors.New("empty sample"))
	}

	// the model gets its own copy so it can't alias the caller's frame
	input := make([]float64, len(raw))
	copy(input, raw)

	out, err := c.Model.Predict(ctx, input)
	if err != nil {
		return aquamon.ConcentrationSample{}, aquamon.NewInferenceError("regression", err)
	}
	if len(out) != 3 {
		return aquamon.ConcentrationSample{}, aquamon.NewInferenceError("regression", errors.Errorf("want 3 outputs, got %d", len(out)))
	}
	return aquamon.ConcentrationSample{PH: out[0], Ammonia: out[1], Nitrate: out[2]}, nil
}
