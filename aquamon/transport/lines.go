package transport

import (
	"bytes"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/alepar/aquamon/aquamon"
)

// maxPending bounds the bytes kept while waiting for a newline.
const maxPending = 4096

// lineAssembler turns an arbitrary byte stream into newline-terminated lines.
type lineAssembler struct {
	pending []byte
}

func (a *lineAssembler) feed(b []byte) {
	a.pending = append(a.pending, b...)
	if len(a.pending) > maxPending && bytes.IndexByte(a.pending, '\n') < 0 {
		log.Warnf("dropping %d bytes without line terminator", len(a.pending))
		a.pending = a.pending[:0]
	}
}

func (a *lineAssembler) next() (string, bool) {
	i := bytes.IndexByte(a.pending, '\n')
	if i < 0 {
		return "", false
	}
	line := string(bytes.TrimRight(a.pending[:i], "\r"))
	a.pending = a.pending[:copy(a.pending, a.pending[i+1:])]
	return line, true
}

// chunkChannel serves lines out of chunks pushed by a callback-driven client
// (BLE notifications, MQTT messages).
type chunkChannel struct {
	chunks  chan []byte
	done    <-chan struct{}
	lines   lineAssembler
	closeFn func() error
}

func newChunkChannel(done <-chan struct{}, closeFn func() error) *chunkChannel {
	return &chunkChannel{
		chunks:  make(chan []byte, 64),
		done:    done,
		closeFn: closeFn,
	}
}

// push copies b into the queue. It never blocks the client callback.
func (c *chunkChannel) push(b []byte) {
	chunk := make([]byte, len(b))
	copy(chunk, b)
	select {
	case c.chunks <- chunk:
	default:
		log.Warnf("sensor queue full, dropping %d bytes", len(b))
	}
}

func (c *chunkChannel) ReadLine(timeout time.Duration) (string, bool, error) {
	if line, ok := c.lines.next(); ok {
		return line, true, nil
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case chunk := <-c.chunks:
			c.lines.feed(chunk)
			if line, ok := c.lines.next(); ok {
				return line, true, nil
			}
		case <-c.done:
			return c.drain()
		case <-timer.C:
			return "", false, nil
		}
	}
}

// drain serves frames queued before the peer went away. The disconnect is
// reported once the queue is empty.
func (c *chunkChannel) drain() (string, bool, error) {
	for {
		select {
		case chunk := <-c.chunks:
			c.lines.feed(chunk)
			if line, ok := c.lines.next(); ok {
				return line, true, nil
			}
		default:
			return "", false, aquamon.NewTransportError("read", errors.New("peer disconnected"))
		}
	}
}

func (c *chunkChannel) Close() error {
	if c.closeFn == nil {
		return nil
	}
	return c.closeFn()
}
