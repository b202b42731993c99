package cytomat

import "time"

// Transport is the byte channel to the instrument. It is not owned by the
// engine beyond Close.
//
// ReadUntil blocks until delim has been received or timeout elapses and
// returns everything up to and including delim. A timeout must be reported
// as an error matching os.ErrDeadlineExceeded or implementing
// Timeout() bool; any other error is treated as a hard transport failure.
type Transport interface {
	Write(p []byte) (int, error)
	ReadUntil(delim byte, timeout time.Duration) ([]byte, error)
	Close() error
}

// InputFlusher is implemented by transports that can discard received but
// unread input. The engine flushes before sending when an earlier request
// was abandoned after a timeout.
type InputFlusher interface {
	FlushInput() error
}
