package inference

import (
	"context"

	"github.com/pkg/errors"

	"github.com/alepar/aquamon/aquamon"
)

// Predictor forecasts the next reading from a full window.
type Predictor struct {
	Model aquamon.SequenceModel
	// Size is the temporal span the sequence model was built for.
	Size int

	rows [][]float64
}

func NewPredictor(model aquamon.SequenceModel, size int) *Predictor {
	return &Predictor{Model: model, Size: size, rows: newRows(size)}
}

func newRows(n int) [][]float64 {
	rows := make([][]float64, n)
	backing := make([]float64, n*3)
	for i := range rows {
		rows[i] = backing[i*3 : i*3+3 : i*3+3]
	}
	return rows
}

// Predict requires exactly Size samples, oldest first. The model is not called
// for any other length.
func (p *Predictor) Predict(ctx context.Context, window []aquamon.ConcentrationSample) (aquamon.TrendEstimate, error) {
	if len(window) != p.Size {
		return aquamon.TrendEstimate{}, aquamon.NewInferenceError("sequence", errors.Errorf("want %d samples, got %d", p.Size, len(window)))
	}
	if len(p.rows) != p.Size {
		p.rows = newRows(p.Size)
	}

	for i, s := range window {
		v := s.Vector()
		copy(p.rows[i], v[:])
	}

	out, err := p.Model.Predict(ctx, p.rows)
	if err != nil {
		return aquamon.TrendEstimate{}, aquamon.NewInferenceError("sequence", err)
	}
	if len(out) != 3 {
		return aquamon.TrendEstimate{}, aquamon.NewInferenceError("sequence", errors.Errorf("want 3 outputs, got %d", len(out)))
	}
	return aquamon.TrendEstimate{PH: out[0], Ammonia: out[1], Nitrate: out[2]}, nil
}
