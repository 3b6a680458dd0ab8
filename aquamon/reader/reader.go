package reader

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/alepar/aquamon/aquamon"
)

// Reader pulls one frame at a time off a channel and parses it.
type Reader struct {
	Channel aquamon.Channel
	Timeout time.Duration
	// Fields is the expected number of values per frame; 0 accepts any count.
	Fields int
}

// Read returns the next sample. ok is false when no complete frame arrived
// within Timeout.
func (r *Reader) Read() (aquamon.RawSample, bool, error) {
	line, ok, err := r.Channel.ReadLine(r.Timeout)
	if err != nil {
		if aquamon.IsTransport(err) {
			return nil, false, err
		}
		return nil, false, aquamon.NewTransportError("read", err)
	}
	if !ok {
		return nil, false, nil
	}

	line = strings.TrimSpace(line)
	if line == "" {
		return nil, false, nil
	}
	log.Debugf("received frame %q", line)

	sample, err := Parse(line)
	if err != nil {
		return nil, false, err
	}
	if r.Fields > 0 && len(sample) != r.Fields {
		return nil, false, &aquamon.MalformedFrameError{
			Frame: line,
			Field: -1,
			Err:   errors.Errorf("want %d fields, got %d", r.Fields, len(sample)),
		}
	}
	return sample, true, nil
}

// Parse splits a comma-separated line into floats.
func Parse(line string) (aquamon.RawSample, error) {
	fields := strings.Split(line, ",")
	sample := make(aquamon.RawSample, 0, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return nil, &aquamon.MalformedFrameError{Frame: line, Field: i, Err: err}
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, &aquamon.MalformedFrameError{Frame: line, Field: i, Err: errors.New("value is not finite")}
		}
		sample = append(sample, v)
	}
	return sample, nil
}
