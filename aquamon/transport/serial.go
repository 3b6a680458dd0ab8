package transport

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"go.bug.st/serial"

	"github.com/alepar/aquamon/aquamon"
)

// Serial reads frames from a UART, e.g. an Arduino or ESP32 on /dev/ttyUSB0.
type Serial struct {
	Port     string
	BaudRate int
}

func (t *Serial) Open(_ context.Context) (aquamon.Channel, error) {
	port, err := serial.Open(t.Port, &serial.Mode{BaudRate: t.BaudRate})
	if err != nil {
		return nil, aquamon.NewTransportError("open "+t.Port, err)
	}
	log.Infof("connected to %s at %d baud", t.Port, t.BaudRate)
	return &serialChannel{port: port}, nil
}

// ListSerialPorts returns the serial ports present on this host.
func ListSerialPorts() ([]string, error) {
	return serial.GetPortsList()
}

type serialPort interface {
	Read(p []byte) (int, error)
	SetReadTimeout(t time.Duration) error
	Close() error
}

type serialChannel struct {
	port  serialPort
	lines lineAssembler
	buf   [256]byte
}

func (c *serialChannel) ReadLine(timeout time.Duration) (string, bool, error) {
	if line, ok := c.lines.next(); ok {
		return line, true, nil
	}

	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return "", false, nil
		}
		if err := c.port.SetReadTimeout(remaining); err != nil {
			return "", false, aquamon.NewTransportError("set timeout", err)
		}
		n, err := c.port.Read(c.buf[:])
		if err != nil {
			return "", false, aquamon.NewTransportError("read", err)
		}
		if n == 0 {
			// read timed out
			return "", false, nil
		}
		c.lines.feed(c.buf[:n])
		if line, ok := c.lines.next(); ok {
			return line, true, nil
		}
	}
}

func (c *serialChannel) Close() error {
	return c.port.Close()
}
