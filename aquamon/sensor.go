package aquamon

import (
	"context"
	"fmt"
	"time"
)

// Transport opens the channel to the sensor. Address and line rate belong to the
// concrete transport.
type Transport interface {
	Open(ctx context.Context) (Channel, error)
}

// Channel delivers newline-terminated frames from the sensor.
type Channel interface {
	// ReadLine waits at most timeout for a complete line. ok is false when no
	// complete line arrived in time.
	ReadLine(timeout time.Duration) (line string, ok bool, err error)
	Close() error
}

// RawSample is one parsed frame, fields in wire order.
type RawSample []float64

// ConcentrationSample is one calibrated reading.
type ConcentrationSample struct {
	// units: pH
	PH float64 `json:"ph"`

	// units: mg/L
	Ammonia float64 `json:"ammonia"`

	// units: ppm
	Nitrate float64 `json:"nitrate"`
}

func (s ConcentrationSample) Vector() [3]float64 {
	return [3]float64{s.PH, s.Ammonia, s.Nitrate}
}

func (s ConcentrationSample) String() string {
	return fmt.Sprintf("pH=%.2f NH3=%.2f NO3=%.2f", s.PH, s.Ammonia, s.Nitrate)
}

// TrendEstimate is the forecast one sampling interval past the window.
type TrendEstimate struct {
	PH      float64 `json:"ph"`
	Ammonia float64 `json:"ammonia"`
	Nitrate float64 `json:"nitrate"`
}

func (e TrendEstimate) Vector() [3]float64 {
	return [3]float64{e.PH, e.Ammonia, e.Nitrate}
}

func (e TrendEstimate) String() string {
	return fmt.Sprintf("pH=%.2f NH3=%.2f NO3=%.2f", e.PH, e.Ammonia, e.Nitrate)
}

// Report is the generated analysis for one (current, predicted) pair.
type Report struct {
	ID        string              `json:"id"`
	Generated time.Time           `json:"generated"`
	Current   ConcentrationSample `json:"current"`
	Predicted TrendEstimate       `json:"predicted"`
	Text      string              `json:"text"`
}

// RegressionModel maps one raw signal vector to pH, ammonia and nitrate.
type RegressionModel interface {
	Predict(ctx context.Context, input []float64) ([]float64, error)
}

// SequenceModel maps an N×3 history, oldest row first, to the next three values.
type SequenceModel interface {
	Predict(ctx context.Context, history [][]float64) ([]float64, error)
}

type TextGenerator interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Sink receives every report the monitor produces.
type Sink interface {
	Emit(ctx context.Context, report Report) error
}
