package inference

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alepar/aquamon/aquamon"
)

type regressionFunc func(ctx context.Context, input []float64) ([]float64, error)

func (f regressionFunc) Predict(ctx context.Context, input []float64) ([]float64, error) {
	return f(ctx, input)
}

type sequenceFunc func(ctx context.Context, history [][]float64) ([]float64, error)

func (f sequenceFunc) Predict(ctx context.Context, history [][]float64) ([]float64, error) {
	return f(ctx, history)
}

func TestConvert(t *testing.T) {
	var calls int
	c := &Converter{Model: regressionFunc(func(_ context.Context, input []float64) ([]float64, error) {
		calls++
		return []float64{input[0] * 2, input[1], 5.0}, nil
	})}

	got, err := c.Convert(context.Background(), aquamon.RawSample{3.5, 0.1})
	require.NoError(t, err)
	assert.Equal(t, aquamon.ConcentrationSample{PH: 7.0, Ammonia: 0.1, Nitrate: 5.0}, got)
	assert.Equal(t, 1, calls)
}

func TestConvertIsIdempotent(t *testing.T) {
	affine := &Affine{
		Weights: [][]float64{{1, 0}, {0, 1}, {0.5, 0.5}},
		Bias:    []float64{7, 0, 1},
	}
	c := &Converter{Model: affine}
	raw := aquamon.RawSample{0.25, 0.75}

	first, err := c.Convert(context.Background(), raw)
	require.NoError(t, err)
	second, err := c.Convert(context.Background(), raw)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, aquamon.RawSample{0.25, 0.75}, raw, "input must not be mutated")
}

func TestConvertDoesNotShareInput(t *testing.T) {
	c := &Converter{Model: regressionFunc(func(_ context.Context, input []float64) ([]float64, error) {
		input[0] = -1
		return []float64{1, 2, 3}, nil
	})}
	raw := aquamon.RawSample{4, 5}

	_, err := c.Convert(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, 4.0, raw[0])
}

func TestConvertFailures(t *testing.T) {
	tests := []struct {
		name  string
		raw   aquamon.RawSample
		model regressionFunc
	}{
		{
			name: "Should fail when model fails",
			raw:  aquamon.RawSample{1},
			model: func(context.Context, []float64) ([]float64, error) {
				return nil, errors.New("model not loaded")
			},
		},
		{
			name: "Should fail on wrong output arity",
			raw:  aquamon.RawSample{1},
			model: func(context.Context, []float64) ([]float64, error) {
				return []float64{1, 2}, nil
			},
		},
		{
			name: "Should fail on empty sample",
			raw:  aquamon.RawSample{},
			model: func(context.Context, []float64) ([]float64, error) {
				t.Fatal("model must not be called")
				return nil, nil
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Converter{Model: tt.model}
			got, err := c.Convert(context.Background(), tt.raw)
			assert.True(t, aquamon.IsInference(err))
			assert.Equal(t, aquamon.ConcentrationSample{}, got)
		})
	}
}
