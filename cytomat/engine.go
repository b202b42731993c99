package cytomat

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/moffa90/go-cytomat/protocol"
)

// ErrClosed is returned by calls on an engine whose transport was closed.
var ErrClosed = errors.New("cytomat: engine closed")

// Engine runs request/response exchanges with a Cytomat over a Transport.
// It encodes a command, writes it, reads one frame, decodes it against the
// command's signature and classifies the device error register.
//
// Engine is safe for concurrent use; exchanges are serialized so a response
// is always read by the caller that sent the matching request.
type Engine struct {
	transport Transport
	config    Config

	mu        sync.Mutex
	state State
	closed bool

	// abandoned holds the names of timed-out requests, oldest first, whose
	// replies may still arrive
	abandoned []string
}

// New creates an Engine over the given transport.
//
// Example:
//
//	port, _ := serial.Open(serial.DefaultConfig("/dev/ttyUSB0"))
//	engine := cytomat.New(port,
//	    cytomat.WithTimeout(2*time.Second),
//	    cytomat.WithLogger(myLogger),
//	)
func New(transport Transport, opts ...Option) *Engine {
	if transport == nil {
		panic("transport cannot be nil")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Engine{
		transport: transport,
		config:    cfg,
		state:     StateIdle,
	}
}

// State returns the state of the current or last exchange.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Abandoned returns the number of timed-out requests whose late responses
// have not been seen yet.
func (e *Engine) Abandoned() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.abandoned)
}

// Invoke sends one command and returns its decoded response.
//
// Errors:
//   - *protocol.EncodingError: unknown command or invalid arguments, nothing sent
//   - *protocol.TimeoutError: no response in time; the engine stays usable
//   - *protocol.TransportError: the transport failed
//   - *protocol.FramingError, *protocol.MalformedFieldError,
//     *protocol.UnknownCodeError: the response could not be decoded
//   - *protocol.DeviceError: the device reported a fault
//   - ErrClosed, or the context error when ctx is done before sending
//
// A context deadline shorter than the configured timeout shortens the wait.
//
// Example:
//
//	resp, err := engine.Invoke(ctx, protocol.CmdPlatePresent, 5)
//	present, _ := protocol.Value[bool](resp, 0)
func (e *Engine) Invoke(ctx context.Context, name string, args ...any) (*protocol.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	sig, ok := protocol.Lookup(name)
	if !ok {
		return nil, &protocol.EncodingError{Command: name, Reason: "unknown command"}
	}

	frame, err := e.config.Framing.Encode(name, args...)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, ErrClosed
	}

	ev := CallEvent{Command: name, State: StateIdle}
	start := time.Now()

	resp, err := e.call(ctx, sig, frame, &ev)

	ev.Duration = time.Since(start)
	ev.Response = resp
	ev.Err = err
	if ev.State != StateIdle {
		ev.State = e.state
	}

	if err != nil {
		e.logDebug("exchange failed",
			"command", name,
			"state", string(ev.State),
			"duration", ev.Duration.String(),
			"error", err.Error(),
		)
	} else {
		e.logDebug("exchange complete",
			"command", name,
			"duration", ev.Duration.String(),
		)
	}

	if e.config.CallHook != nil {
		e.config.CallHook(ev)
	}

	return resp, err
}

// call performs one exchange with the lock held.
func (e *Engine) call(ctx context.Context, sig protocol.Signature, frame []byte, ev *CallEvent) (*protocol.Response, error) {
	// The caller may have waited for the lock
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", sig.Name, err)
	}

	timeout := e.config.timeoutFor(sig.Name)
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	if timeout <= 0 {
		return nil, fmt.Errorf("%s: %w", sig.Name, context.DeadlineExceeded)
	}

	if len(e.abandoned) > 0 {
		if f, ok := e.transport.(InputFlusher); ok {
			if err := f.FlushInput(); err != nil {
				return nil, &protocol.TransportError{Command: sig.Name, Op: "flush", Err: err}
			}
			e.logDebug("flushed input",
				"command", sig.Name,
				"abandoned", len(e.abandoned),
			)
		}
	}

	e.transition(EventSend)
	ev.State = e.state

	if _, err := e.transport.Write(frame); err != nil {
		e.transition(EventFail)
		e.logError("write failed", "command", sig.Name, "error", err.Error())
		return nil, &protocol.TransportError{Command: sig.Name, Op: "write", Err: err}
	}

	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, e.timedOut(sig.Name, timeout)
		}

		raw, err := e.transport.ReadUntil(e.config.Framing.End, remaining)
		if err != nil {
			if isTimeout(err) {
				return nil, e.timedOut(sig.Name, timeout)
			}
			var fe *protocol.FramingError
			if errors.As(err, &fe) {
				e.transition(EventFrame)
				e.logError("framing error", "command", sig.Name, "error", err.Error())
				return nil, err
			}
			e.transition(EventFail)
			e.logError("read failed", "command", sig.Name, "error", err.Error())
			return nil, &protocol.TransportError{Command: sig.Name, Op: "read", Err: err}
		}

		// Line noise before the start marker is dropped
		if i := bytes.LastIndexByte(raw, e.config.Framing.Start); i > 0 {
			e.logDebug("dropped bytes before start marker",
				"command", sig.Name,
				"bytes", fmt.Sprintf("% X", raw[:i]),
			)
			raw = raw[i:]
		}

		fields, err := e.config.Framing.Tokenize(raw)
		if err == nil && fields[0] == sig.Name {
			e.transition(EventFrame)
			ev.PossiblyStale = e.settle(sig.Name)
			if ev.PossiblyStale {
				e.logInfo("response may answer an abandoned request",
					"command", sig.Name,
					"abandoned", len(e.abandoned),
				)
			}
			return e.decode(sig, fields, ev)
		}

		// A late reply to an abandoned request. The device answers in
		// order, so requests abandoned before it will never be answered.
		if err == nil {
			if i := indexOf(e.abandoned, fields[0]); i >= 0 {
				e.abandoned = e.abandoned[i+1:]
				ev.Discarded++
				e.logDebug("discarded stale frame",
					"command", sig.Name,
					"frame", fmt.Sprintf("%q", raw),
					"abandoned", len(e.abandoned),
				)
				continue
			}
		}

		e.transition(EventFrame)
		if err != nil {
			e.logError("framing error", "command", sig.Name, "error", err.Error())
			return nil, err
		}
		e.logError("response for another command",
			"command", sig.Name,
			"received", fields[0],
		)
		return nil, &protocol.FramingError{
			Reason: fmt.Sprintf("response for %q while expecting %q", fields[0], sig.Name),
			Frame:  raw,
		}
	}
}

// settle updates the abandoned requests after a reply to name matched. When
// name was not abandoned, every earlier request is resolved. Otherwise the
// reply may be the late one, so requests from the first abandoned name on
// stay pending and settle reports true.
func (e *Engine) settle(name string) bool {
	i := indexOf(e.abandoned, name)
	if i < 0 {
		e.abandoned = nil
		return false
	}
	e.abandoned = e.abandoned[i:]
	return true
}

func indexOf(names []string, name string) int {
	for i, n := range names {
		if n == name {
			return i
		}
	}
	return -1
}

// timedOut records an abandoned request and builds the timeout error.
func (e *Engine) timedOut(name string, timeout time.Duration) error {
	e.abandoned = append(e.abandoned, name)
	e.transition(EventTimeout)
	e.logError("response timeout",
		"command", name,
		"timeout", timeout.String(),
		"abandoned", len(e.abandoned),
	)
	return &protocol.TimeoutError{Command: name, After: timeout}
}

// decode applies the command's response shape and classifies the error register.
func (e *Engine) decode(sig protocol.Signature, fields []string, ev *CallEvent) (*protocol.Response, error) {
	resp, err := protocol.DecodeResponse(sig, fields)
	if err != nil {
		e.logError("decode failed", "command", sig.Name, "error", err.Error())
		return nil, err
	}

	ev.Warnings = resp.Warnings

	for kind, mask := range resp.Unrecognized() {
		e.logDebug("unrecognized status bits",
			"command", sig.Name,
			"kind", kind,
			"mask", fmt.Sprintf("0x%X", mask),
		)
	}

	if resp.Warnings != 0 && sig.Classified() {
		e.logInfo("device warning",
			"command", sig.Name,
			"warnings", resp.Warnings.String(),
		)
	}

	if sig.Classified() {
		if err := protocol.Classify(sig.Name, resp.Errors, resp.Warnings); err != nil {
			e.logError("device fault",
				"command", sig.Name,
				"errors", resp.Errors.String(),
				"code", fmt.Sprintf("0x%04X", uint32(resp.Errors)),
			)
			return nil, err
		}
	}

	return resp, nil
}

// Close closes the transport. Calls after Close fail with ErrClosed.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}
	e.closed = true
	e.transition(EventReset)
	return e.transport.Close()
}

func (e *Engine) transition(event Event) {
	next, err := Transition(e.state, event)
	if err != nil {
		e.logError("state transition", "error", err.Error())
	}
	e.state = next
}

// isTimeout reports whether a transport error is a read timeout.
func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}

// logDebug logs a debug message if a logger is configured.
func (e *Engine) logDebug(msg string, keysAndValues ...interface{}) {
	if e.config.Logger != nil {
		e.config.Logger.Debug(msg, keysAndValues...)
	}
}

// logInfo logs an info message if a logger is configured.
func (e *Engine) logInfo(msg string, keysAndValues ...interface{}) {
	if e.config.Logger != nil {
		e.config.Logger.Info(msg, keysAndValues...)
	}
}

// logError logs an error message if a logger is configured.
func (e *Engine) logError(msg string, keysAndValues ...interface{}) {
	if e.config.Logger != nil {
		e.config.Logger.Error(msg, keysAndValues...)
	}
}
