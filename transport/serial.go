package transport

import (
	"io"

	"github.com/pkg/errors"
	"github.com/tarm/serial"
)

// DefaultBaud is used by OpenSerial when no baud rate is given.
const DefaultBaud = 115200

// OpenSerial opens a serial device that speaks the link helper's line
// protocol, e.g. a controller board running the helper firmware.
func OpenSerial(dev string, baud int) (io.ReadWriteCloser, error) {
	if baud == 0 {
		baud = DefaultBaud
	}
	p, err := serial.OpenPort(&serial.Config{Name: dev, Baud: baud})
	if err != nil {
		return nil, errors.Wrapf(err, "can't open %s", dev)
	}
	if err := p.Flush(); err != nil {
		p.Close()
		return nil, errors.Wrapf(err, "can't flush %s", dev)
	}
	logger.Info("serial opened", "dev", dev, "baud", baud)
	return p, nil
}
