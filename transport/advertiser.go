package transport

import (
	"encoding/hex"
	"io"
	"sync"

	"github.com/pkg/errors"

	ble "github.com/halseth/bleno-fork"
)

// Advertiser drives the advertising helper. Each update is a single line
// holding the advertising and scan response payloads in hex; an empty line
// stops advertising.
type Advertiser struct {
	mu sync.Mutex
	w  io.WriteCloser
}

var _ ble.Advertiser = (*Advertiser)(nil)

// NewAdvertiser returns an Advertiser writing to w.
func NewAdvertiser(w io.WriteCloser) *Advertiser {
	return &Advertiser{w: w}
}

// Advertise replaces the advertised payloads.
func (a *Advertiser) Advertise(adv, scanRsp []byte) error {
	if len(adv) > 31 || len(scanRsp) > 31 {
		return ble.ErrEIRPacketTooLong
	}
	line := hex.EncodeToString(adv) + " " + hex.EncodeToString(scanRsp) + "\n"
	return a.write(line)
}

// StopAdvertising stops advertising.
func (a *Advertiser) StopAdvertising() error {
	return a.write("\n")
}

func (a *Advertiser) write(line string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, err := io.WriteString(a.w, line); err != nil {
		return errors.Wrap(err, "can't update advertising")
	}
	return nil
}

// Close closes the underlying stream.
func (a *Advertiser) Close() error {
	return a.w.Close()
}
