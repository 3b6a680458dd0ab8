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

// Nordic UART Service, the usual serial-over-BLE profile on ESP32/nRF sensor boards.
const (
	uartServiceUuidStr = "6e400001b5a3f393e0a9e50e24dcca9e"
	uartTxCharUuidStr  = "6e400003b5a3f393e0a9e50e24dcca9e"
)

var (
	uartServiceUuid = ble.MustParse(uartServiceUuidStr)
	uartTxCharUuid  = ble.MustParse(uartTxCharUuidStr)
)

// BLE subscribes to the UART TX characteristic of a sensor peripheral.
type BLE struct {
	Addr         string
	ScanDuration time.Duration
	Retries      int
}

func (t *BLE) Open(ctx context.Context) (aquamon.Channel, error) {
	retries := t.Retries
	if retries < 1 {
		retries = 1
	}

	var lastErr error
	for i := 0; i < retries; i++ {
		ch, err := t.open(ctx)
		if err == nil {
			return ch, nil
		}
		lastErr = err
		if i < retries-1 {
			log.Errorf("retrying error in connect: %s", lastErr)
			time.Sleep(t.ScanDuration) // self-pacing interval in an attempt to fix freezes
		}
	}

	return nil, aquamon.NewTransportError("connect "+t.Addr, errors.Wrap(lastErr, "all retries to connect failed"))
}

func (t *BLE) open(ctx context.Context) (aquamon.Channel, error) {
	d, err := newDevice()
	if err != nil {
		return nil, errors.Wrap(err, "failed to open ble")
	}
	ble.SetDefaultDevice(d)

	filter := func(a ble.Advertisement) bool {
		return strings.ToUpper(a.Addr().String()) == strings.ToUpper(t.Addr)
	}

	log.Debugf("connecting to device")
	connectCtx, cancel := context.WithTimeout(ctx, t.ScanDuration)
	defer cancel()
	cln, err := ble.Connect(connectCtx, filter)
	if err != nil {
		_ = ble.Stop()
		return nil, errors.Wrap(err, "couldn't connect to ble")
	}

	// The peripheral may drop the link on its own; the channel reports that as a
	// transport fault once done is closed.
	done := make(chan struct{})
	go func() {
		<-cln.Disconnected()
		log.Debugf("device disconnected")
		close(done)
	}()

	var c *ble.Characteristic
	closeFn := func() error {
		log.Debugf("closing connection")
		if c != nil {
			_ = cln.Unsubscribe(c, false)
		}
		_ = cln.CancelConnection()
		<-done
		return ble.Stop()
	}

	c, err = discoverUartTx(cln)
	if err != nil {
		_ = closeFn()
		return nil, err
	}

	ch := newChunkChannel(done, closeFn)
	if err := cln.Subscribe(c, false, ch.push); err != nil {
		_ = closeFn()
		return nil, errors.Wrap(err, "failed to subscribe to uart tx")
	}
	log.Infof("subscribed to uart on %s", t.Addr)
	return ch, nil
}

func discoverUartTx(cln ble.Client) (*ble.Characteristic, error) {
	log.Debugf("discovering services")
	services, err := cln.DiscoverServices([]ble.UUID{uartServiceUuid})
	if err != nil {
		return nil, errors.Wrap(err, "couldn't discover services")
	}
	if len(services) == 0 {
		return nil, errors.New("did not find uart service")
	}

	log.Debugf("discovering characteristics")
	characteristics, err := cln.DiscoverCharacteristics([]ble.UUID{uartTxCharUuid}, services[0])
	if err != nil {
		return nil, errors.Wrap(err, "couldn't discover characteristic")
	}
	if len(characteristics) == 0 {
		return nil, errors.New("did not find uart tx characteristic")
	}
	c := characteristics[0]

	// Subscribe writes the CCCD, which only descriptor discovery fills in.
	if _, err := cln.DiscoverDescriptors(nil, c); err != nil {
		return nil, errors.Wrap(err, "couldn't discover descriptors")
	}
	return c, nil
}
