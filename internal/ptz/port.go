package ptz

import (
	"io"
	"time"

	"go.bug.st/serial"
)

// Port is the subset of a serial port the controller needs.
type Port interface {
	io.ReadWriteCloser
	ResetInputBuffer() error
	SetReadTimeout(timeout time.Duration) error
}

// Opener opens the device at path with 8N1 framing at baud.
type Opener func(path string, baud int) (Port, error)

func openSerial(path string, baud int) (Port, error) {
	port, err := serial.Open(path, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, err
	}
	return port, nil
}

// Candidates returns the ports from paths that the serial layer currently
// enumerates, preserving the configured order. Unknown paths are kept last so
// that statically configured devices still get tried.
func Candidates(paths []string) []string {
	present, err := serial.GetPortsList()
	if err != nil || len(present) == 0 {
		return append([]string(nil), paths...)
	}
	set := make(map[string]struct{}, len(present))
	for _, p := range present {
		set[p] = struct{}{}
	}
	var found, missing []string
	for _, p := range paths {
		if _, ok := set[p]; ok {
			found = append(found, p)
		} else {
			missing = append(missing, p)
		}
	}
	return append(found, missing...)
}

// Present reports which of paths the serial layer currently enumerates.
func Present(paths []string) map[string]bool {
	out := make(map[string]bool, len(paths))
	present, err := serial.GetPortsList()
	if err != nil {
		return out
	}
	set := make(map[string]struct{}, len(present))
	for _, p := range present {
		set[p] = struct{}{}
	}
	for _, p := range paths {
		_, ok := set[p]
		out[p] = ok
	}
	return out
}
