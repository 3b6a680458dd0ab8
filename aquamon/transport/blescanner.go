package transport

import (
	"context"
	"strings"
	"time"

	"github.com/go-ble/ble"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/alepar/aquamon/aquamon"
)

// BleScanner finds sensor boards advertising the UART service.
type BleScanner struct {
	ScanDuration time.Duration
	Retries      int
	// NamePrefix also accepts devices whose local name starts with it.
	NamePrefix string
}

func (scanner *BleScanner) Scan() (map[string]aquamon.Device, error) {
	var lastErr error
	var devices map[string]aquamon.Device
	for i := 0; i < scanner.Retries; i++ {
		devices, lastErr = scanner.scan()
		if lastErr == nil {
			return devices, nil
		}
		if i < scanner.Retries-1 {
			log.Errorf("retrying error in scan: %s", lastErr)
		}
	}

	return map[string]aquamon.Device{}, errors.Wrap(lastErr, "all retries to scan failed")
}

func (scanner *BleScanner) scan() (map[string]aquamon.Device, error) {
	d, err := newDevice()
	if err != nil {
		return nil, errors.Wrap(err, "failed to open ble")
	}
	ble.SetDefaultDevice(d)
	defer ble.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), scanner.ScanDuration)
	defer cancel()
	ads, err := ble.Find(ctx, false, scanner.filter)
	if err != nil {
		switch errors.Cause(err) {
		case nil:
		case context.DeadlineExceeded:
		case context.Canceled:
			return map[string]aquamon.Device{}, errors.Wrap(err, "scan for devices cancelled")
		default:
			return map[string]aquamon.Device{}, errors.Wrap(err, "failed to scan for devices")
		}
	}

	devices := map[string]aquamon.Device{}
	for _, a := range ads {
		addr := a.Addr().String()
		devices[addr] = aquamon.Device{
			Addr: addr,
			Name: a.LocalName(),
			RSSI: a.RSSI(),
		}
	}

	return devices, nil
}

func (scanner *BleScanner) filter(a ble.Advertisement) bool {
	if !a.Connectable() {
		return false
	}
	if scanner.NamePrefix != "" && strings.HasPrefix(a.LocalName(), scanner.NamePrefix) {
		return true
	}
	return advertisesUart(a.Services())
}

func advertisesUart(services []ble.UUID) bool {
	for _, u := range services {
		if u.Equal(uartServiceUuid) {
			return true
		}
	}
	return false
}
