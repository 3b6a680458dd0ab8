//go:build !linux

package transport

import (
	"github.com/go-ble/ble"
	"github.com/pkg/errors"
)

func newDevice() (ble.Device, error) {
	return nil, errors.New("ble is only supported on linux")
}
