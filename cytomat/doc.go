// Package cytomat provides a high-level API for driving Thermo Cytomat
// automated incubators over their serial command protocol.
//
// # Overview
//
// The package is built around an Engine that runs one request/response
// exchange at a time:
//   - Encoding and validating the command against its signature
//   - Writing the frame and reading the reply with a per-call timeout
//   - Decoding the reply's positional fields and status registers
//   - Turning a set error register into a typed error
//
// Sub-controllers (PlateHandler, Climate, Shaker, Maintenance,
// BarcodeScanner, SwapStation) wrap the engine with one method per device
// operation. A Session bundles them.
//
// # Basic Usage
//
//	port, err := serial.Open(serial.DefaultConfig("/dev/ttyUSB0"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	s := cytomat.NewSession(port)
//	defer s.Close()
//
//	present, err := s.Plates.PlatePresent(ctx, 5)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !present {
//	    _, err = s.Plates.TransferToStorage(ctx, 5)
//	}
//
// # Configuration Options
//
//	s := cytomat.NewSession(port,
//	    cytomat.WithTimeout(2*time.Second),
//	    cytomat.WithCommandTimeout(protocol.CmdTransferToStorage, time.Minute),
//	    cytomat.WithLogger(logging.NewLogrus(logrus.StandardLogger())),
//	    cytomat.WithCallHook(collector.Observe),
//	)
//
// # Timeouts and Late Responses
//
// A call that times out leaves the session open. The engine remembers the
// abandoned request; before the next send it flushes unread input when the
// transport implements InputFlusher. A later frame answering an abandoned
// request is discarded instead of being returned to the wrong caller; any
// other mismatched frame is a *protocol.FramingError. A reply to a command
// that itself timed out earlier cannot be told apart from the late one and
// is flagged with CallEvent.PossiblyStale.
//
// # Error Handling
//
// Device faults are *protocol.DeviceError values that keep the complete
// error register. Every named fault is a sentinel:
//
//	_, err := s.Climate.Temperature(ctx)
//	if errors.Is(err, protocol.ErrorDoorOpen) {
//	    // close the door and retry
//	}
//
// Other failures are *protocol.TimeoutError, *protocol.TransportError,
// *protocol.EncodingError and the decoding errors of the protocol package.
// Warnings never fail a call; they are returned on every result type.
//
// # Hardware Independence
//
// The engine talks to a Transport. The serial package implements it for
// RS-232 ports; cytomattest implements it with a simulated device.
package cytomat
