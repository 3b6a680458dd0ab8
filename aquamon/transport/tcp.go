package transport

import (
	"context"
	"net"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/alepar/aquamon/aquamon"
)

// TCP reads frames from a raw socket, e.g. a ser2net or ESP32 WiFi bridge.
type TCP struct {
	Addr        string
	DialTimeout time.Duration
}

func (t *TCP) Open(ctx context.Context) (aquamon.Channel, error) {
	d := net.Dialer{Timeout: t.DialTimeout}
	conn, err := d.DialContext(ctx, "tcp", t.Addr)
	if err != nil {
		return nil, aquamon.NewTransportError("dial "+t.Addr, err)
	}
	log.Infof("connected to %s", t.Addr)
	return &tcpChannel{conn: conn}, nil
}

type tcpChannel struct {
	conn  net.Conn
	lines lineAssembler
	buf   [256]byte
}

func (c *tcpChannel) ReadLine(timeout time.Duration) (string, bool, error) {
	if line, ok := c.lines.next(); ok {
		return line, true, nil
	}

	if err := c.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return "", false, aquamon.NewTransportError("set deadline", err)
	}
	for {
		n, err := c.conn.Read(c.buf[:])
		if n > 0 {
			c.lines.feed(c.buf[:n])
			if line, ok := c.lines.next(); ok {
				return line, true, nil
			}
		}
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				return "", false, nil
			}
			return "", false, aquamon.NewTransportError("read", err)
		}
	}
}

func (c *tcpChannel) Close() error {
	return c.conn.Close()
}
