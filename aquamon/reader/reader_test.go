package reader

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alepar/aquamon/aquamon"
)

type scriptedLine struct {
	line string
	ok   bool
	err  error
}

type scriptedChannel struct {
	lines    []scriptedLine
	timeouts []time.Duration
}

func (c *scriptedChannel) ReadLine(timeout time.Duration) (string, bool, error) {
	c.timeouts = append(c.timeouts, timeout)
	if len(c.lines) == 0 {
		return "", false, nil
	}
	l := c.lines[0]
	c.lines = c.lines[1:]
	return l.line, l.ok, l.err
}

func (c *scriptedChannel) Close() error { return nil }

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		expected aquamon.RawSample
		badField int
	}{
		{name: "Should parse plain floats", line: "1.5,2,-3e-2", expected: aquamon.RawSample{1.5, 2, -0.03}},
		{name: "Should tolerate spaces", line: " 0.1 , 0.2,0.3 ", expected: aquamon.RawSample{0.1, 0.2, 0.3}},
		{name: "Should parse a single field", line: "42", expected: aquamon.RawSample{42}},
		{name: "Should reject text field", line: "1.0,abc,3", badField: 1},
		{name: "Should reject empty field", line: "1.0,,3", badField: 1},
		{name: "Should reject nan from a failed probe", line: "1.0,nan,3", badField: 1},
		{name: "Should reject trailing comma", line: "1.0,2.0,", badField: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.line)
			if tt.expected != nil {
				require.NoError(t, err)
				assert.InDeltaSlice(t, tt.expected, got, 1e-12)
				return
			}
			var malformed *aquamon.MalformedFrameError
			require.True(t, errors.As(err, &malformed))
			assert.Equal(t, tt.badField, malformed.Field)
			assert.Equal(t, tt.line, malformed.Frame)
		})
	}
}

func TestReadEmpty(t *testing.T) {
	ch := &scriptedChannel{lines: []scriptedLine{
		{ok: false},
		{line: "   \r", ok: true},
	}}
	r := &Reader{Channel: ch, Timeout: time.Second}

	for i := 0; i < 2; i++ {
		sample, ok, err := r.Read()
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Nil(t, sample)
	}
	assert.Equal(t, []time.Duration{time.Second, time.Second}, ch.timeouts)
}

func TestReadValidatesFieldCount(t *testing.T) {
	ch := &scriptedChannel{lines: []scriptedLine{
		{line: "1,2,3\r\n", ok: true},
		{line: "1,2", ok: true},
	}}
	r := &Reader{Channel: ch, Fields: 3}

	sample, ok, err := r.Read()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, aquamon.RawSample{1, 2, 3}, sample)

	_, ok, err = r.Read()
	assert.False(t, ok)
	assert.True(t, aquamon.IsMalformed(err))
}

func TestReadMalformed(t *testing.T) {
	ch := &scriptedChannel{lines: []scriptedLine{{line: "0.4,NaN?,1", ok: true}}}
	r := &Reader{Channel: ch}

	_, ok, err := r.Read()
	assert.False(t, ok)
	assert.True(t, aquamon.IsMalformed(err))
	assert.False(t, aquamon.IsTransport(err))
}

func TestReadTransportFault(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "Should wrap a bare channel error", err: errors.New("device unplugged")},
		{name: "Should pass through a transport error", err: aquamon.NewTransportError("read", errors.New("eof"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &Reader{Channel: &scriptedChannel{lines: []scriptedLine{{err: tt.err}}}}
			_, ok, err := r.Read()
			assert.False(t, ok)
			assert.True(t, aquamon.IsTransport(err))
			assert.Equal(t, errors.Cause(tt.err), errors.Cause(err))
		})
	}
}
