package inference

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alepar/aquamon/aquamon"
)

func windowOf(n int) []aquamon.ConcentrationSample {
	w := make([]aquamon.ConcentrationSample, n)
	for i := range w {
		w[i] = aquamon.ConcentrationSample{PH: 7.0 + float64(i)*0.01, Ammonia: 0.1, Nitrate: 5.0}
	}
	return w
}

func TestPredictPassesRowsOldestFirst(t *testing.T) {
	var seen [][]float64
	p := NewPredictor(sequenceFunc(func(_ context.Context, history [][]float64) ([]float64, error) {
		for _, row := range history {
			seen = append(seen, append([]float64(nil), row...))
		}
		return []float64{7.3, 0.2, 5.1}, nil
	}), 24)

	got, err := p.Predict(context.Background(), windowOf(24))
	require.NoError(t, err)
	assert.Equal(t, aquamon.TrendEstimate{PH: 7.3, Ammonia: 0.2, Nitrate: 5.1}, got)

	require.Len(t, seen, 24)
	assert.Equal(t, []float64{7.0, 0.1, 5.0}, seen[0])
	assert.InDelta(t, 7.23, seen[23][0], 1e-9)
}

func TestPredictRejectsWrongLength(t *testing.T) {
	for _, n := range []int{0, 1, 23, 25} {
		p := NewPredictor(sequenceFunc(func(context.Context, [][]float64) ([]float64, error) {
			t.Fatal("model must not be called")
			return nil, nil
		}), 24)

		_, err := p.Predict(context.Background(), windowOf(n))
		assert.True(t, aquamon.IsInference(err), "length %d", n)
	}
}

func TestPredictFailures(t *testing.T) {
	tests := []struct {
		name  string
		model sequenceFunc
	}{
		{
			name: "Should wrap model error",
			model: func(context.Context, [][]float64) ([]float64, error) {
				return nil, errors.New("oom")
			},
		},
		{
			name: "Should reject wrong arity",
			model: func(context.Context, [][]float64) ([]float64, error) {
				return []float64{1, 2, 3, 4}, nil
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPredictor(tt.model, 3)
			_, err := p.Predict(context.Background(), windowOf(3))
			assert.True(t, aquamon.IsInference(err))
		})
	}
}

func TestPredictZeroValue(t *testing.T) {
	p := &Predictor{Model: LinearTrend{}, Size: 4}
	got, err := p.Predict(context.Background(), windowOf(4))
	require.NoError(t, err)
	assert.InDelta(t, 7.04, got.PH, 1e-9)
}
