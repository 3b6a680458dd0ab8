package aquamon

// Device is a sensor peripheral found by a Scanner.
type Device struct {
	Addr string
	Name string
	RSSI int
}

type Scanner interface {

	// returns map from address to device
	Scan() (map[string]Device, error)
}
