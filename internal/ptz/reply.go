package ptz

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"
)

const replyHeader byte = 0x90

// Reply classes carried in the high nibble of the second byte.
const (
	replyAck      byte = 0x40
	replyComplete byte = 0x50
	replyError    byte = 0x60
)

// readReplies drains reply frames until the port stays silent for timeout.
// Acknowledgement and completion frames are discarded. Error frames are
// returned so the caller can surface them.
func readReplies(port Port, timeout time.Duration) ([][]byte, error) {
	if err := port.SetReadTimeout(timeout); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	chunk := make([]byte, 16)
	for {
		n, err := port.Read(chunk)
		if n > 0 {
			buf.Write(chunk[:n])
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if n == 0 {
			break
		}
	}
	return errorReplies(buf.Bytes()), nil
}

func errorReplies(data []byte) [][]byte {
	var errs [][]byte
	for len(data) > 0 {
		idx := bytes.IndexByte(data, terminatorByte)
		if idx < 0 {
			break
		}
		frame := data[:idx+1]
		data = data[idx+1:]
		if len(frame) < 3 || frame[0] != replyHeader {
			continue
		}
		switch frame[1] & 0xF0 {
		case replyAck, replyComplete:
			continue
		case replyError:
			errs = append(errs, append([]byte(nil), frame...))
		}
	}
	return errs
}

func describeReply(frame []byte) string {
	return fmt.Sprintf("% X", frame)
}
