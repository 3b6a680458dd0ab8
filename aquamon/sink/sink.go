package sink

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/alepar/aquamon/aquamon"
)

const banner = "=============================="

// Log writes each report to the logger framed by a banner.
type Log struct {
	Logger log.FieldLogger
}

func (s *Log) Emit(_ context.Context, r aquamon.Report) error {
	logger := s.Logger
	if logger == nil {
		logger = log.StandardLogger()
	}
	var b strings.Builder
	b.WriteString("\n" + banner + "\n")
	b.WriteString("Water quality analysis report\n")
	b.WriteString(banner + "\n")
	b.WriteString(r.Text)
	b.WriteString("\n" + banner)

	logger.WithFields(log.Fields{
		"report":    r.ID,
		"current":   r.Current.String(),
		"predicted": r.Predicted.String(),
	}).Info(b.String())
	return nil
}

// Multi fans a report out to every sink. All sinks are tried; the first
// error is returned.
type Multi []aquamon.Sink

func (m Multi) Emit(ctx context.Context, r aquamon.Report) error {
	var first error
	for _, s := range m {
		if err := s.Emit(ctx, r); err != nil {
			log.Errorf("sink %T failed: %s", s, err)
			if first == nil {
				first = errors.Wrapf(err, "sink %T", s)
			}
		}
	}
	return first
}
