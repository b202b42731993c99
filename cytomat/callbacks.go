package cytomat

import (
	"time"

	"github.com/moffa90/go-cytomat/protocol"
)

// CallEvent describes one finished exchange. Passed to CallHook after every
// Invoke, including failed ones.
type CallEvent struct {
	// Command is the two-letter command name
	Command string

	// State is the terminal state of the exchange:
	//   decoded          - a matching response was received
	//   timed_out        - no response within the timeout
	//   transport_failed - write or read failed
	//   idle             - the call failed before anything was sent
	State State

	// Duration is the time from write to the end of the exchange
	Duration time.Duration

	// Response is the decoded response, nil when the call failed before
	// decoding or the device reported a fault
	Response *protocol.Response

	// Warnings is the warning register from the response, if it had one
	Warnings protocol.WarningStatus

	// Err is the error returned to the caller, nil on success
	Err error

	// Discarded counts stale frames dropped while waiting for this response
	Discarded int

	// PossiblyStale is set when the command had timed out earlier and its
	// late reply has not been seen, so Response may answer that request
	PossiblyStale bool
}

// CallHook is called after every exchange. Implementations should return
// quickly; the engine lock is held while it runs.
//
// Example:
//
//	engine := cytomat.New(port,
//	    cytomat.WithCallHook(func(ev cytomat.CallEvent) {
//	        fmt.Printf("%s %s in %s\n", ev.Command, ev.State, ev.Duration)
//	    }),
//	)
type CallHook func(CallEvent)

// Logger is an optional logging interface that can be provided to the engine.
// This allows integration with any logging framework; the logging package
// ships a logrus adapter.
//
// Example with standard log package:
//
//	type StdLogger struct{}
//	func (l *StdLogger) Debug(msg string, kv ...interface{}) { log.Println(msg, kv) }
//	func (l *StdLogger) Info(msg string, kv ...interface{})  { log.Println(msg, kv) }
//	func (l *StdLogger) Error(msg string, kv ...interface{}) { log.Println(msg, kv) }
//
//	engine := cytomat.New(port, cytomat.WithLogger(&StdLogger{}))
type Logger interface {
	// Debug logs a debug message with optional key-value pairs
	Debug(msg string, keysAndValues ...interface{})

	// Info logs an info message with optional key-value pairs
	Info(msg string, keysAndValues ...interface{})

	// Error logs an error message with optional key-value pairs
	Error(msg string, keysAndValues ...interface{})
}
