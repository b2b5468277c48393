package client

import (
	"bufio"
	"io"
	"strings"
)

const (
	initialScanBuf = 64 * 1024

	// maxRecordBytes bounds one SSE line. Base64 audio for a long sentence
	// runs to megabytes; 16 MiB leaves generous headroom.
	maxRecordBytes = 16 << 20
)

// ReadRecords reads line-delimited SSE input from r and invokes handle once
// per data payload (the bytes after "data: "). Blank separator lines and
// lines without the data prefix are skipped. Reading stops when handle
// reports the [DONE] sentinel or the reader is exhausted.
//
// Record reassembly across transport chunks is handled here: a payload is
// only delivered once its full line has been read, so the dispatcher never
// sees a partially received frame from an intact connection.
func ReadRecords(r io.Reader, handle func(payload string) (done bool)) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, initialScanBuf), maxRecordBytes)

	for sc.Scan() {
		payload, ok := strings.CutPrefix(sc.Text(), "data: ")
		if !ok {
			continue
		}
		if handle(payload) {
			return nil
		}
	}
	return sc.Err()
}

// Stream associates r with a new message and dispatches every record until
// the [DONE] sentinel or EOF. It is the standard way to consume one chat
// response body.
func (d *Dispatcher) Stream(r io.Reader, messageID string) error {
	gen := d.StartMessage(messageID)
	return ReadRecords(r, func(payload string) bool {
		return d.HandleFrameData(gen, payload)
	})
}
