package monitor

import (
	"time"

	"github.com/alepar/aquamon/aquamon"
)

type State int

const (
	// StateWaiting: no sample yet this tick.
	StateWaiting State = iota
	// StateSampled: a sample was converted and pushed.
	StateSampled
	// StatePredicting: window full, forecast and report in progress.
	StatePredicting
	// StateStopped is terminal.
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateWaiting:
		return "waiting"
	case StateSampled:
		return "sampled"
	case StatePredicting:
		return "predicting"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Outcome is how a tick ended.
type Outcome string

const (
	OutcomeIdle            Outcome = "idle"
	OutcomeDiscarded       Outcome = "discarded"
	OutcomeConvertFailed   Outcome = "convert_failed"
	OutcomeSampled         Outcome = "sampled"
	OutcomePredictFailed   Outcome = "predict_failed"
	OutcomeGenerateFailed  Outcome = "generate_failed"
	OutcomeReported        Outcome = "reported"
	OutcomeTransportFailed Outcome = "transport_failed"
	OutcomePanicked        Outcome = "panicked"
)

// Snapshot is a point-in-time copy of the monitor's observable state.
type Snapshot struct {
	State         State                        `json:"state"`
	WindowSize    int                          `json:"window_size"`
	WindowLen     int                          `json:"window_len"`
	Ticks         uint64                       `json:"ticks"`
	LastOutcome   Outcome                      `json:"last_outcome,omitempty"`
	LastReading   *aquamon.ConcentrationSample `json:"last_reading,omitempty"`
	LastReadingAt *time.Time                   `json:"last_reading_at,omitempty"`
	LastForecast  *aquamon.TrendEstimate       `json:"last_forecast,omitempty"`
	LastReport    *aquamon.Report              `json:"last_report,omitempty"`
	LastError     string                       `json:"last_error,omitempty"`
	LastErrorAt   *time.Time                   `json:"last_error_at,omitempty"`
}
