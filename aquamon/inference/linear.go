package inference

import (
	"context"

	"github.com/pkg/errors"
)

// LinearTrend fits an ordinary least squares line per column of the history and
// extrapolates it one step past the last row.
type LinearTrend struct{}

func (LinearTrend) Predict(_ context.Context, history [][]float64) ([]float64, error) {
	n := len(history)
	if n == 0 {
		return nil, errors.New("empty history")
	}
	width := len(history[0])
	for i, row := range history {
		if len(row) != width {
			return nil, errors.Errorf("row %d has %d columns, want %d", i, len(row), width)
		}
	}
	if n == 1 {
		out := make([]float64, width)
		copy(out, history[0])
		return out, nil
	}

	// x runs 0..n-1, so its mean and spread are closed-form
	meanX := float64(n-1) / 2
	var sxx float64
	for i := 0; i < n; i++ {
		d := float64(i) - meanX
		sxx += d * d
	}

	out := make([]float64, width)
	for c := 0; c < width; c++ {
		var meanY float64
		for _, row := range history {
			meanY += row[c]
		}
		meanY /= float64(n)

		var sxy float64
		for i, row := range history {
			sxy += (float64(i) - meanX) * (row[c] - meanY)
		}
		slope := sxy / sxx
		out[c] = meanY + slope*(float64(n)-meanX)
	}
	return out, nil
}
