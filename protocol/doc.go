// Package protocol implements the Cytomat serial command protocol.
//
// This package builds command frames, splits response frames into fields,
// decodes the fixed-position status registers embedded in responses, and
// classifies instrument-reported faults into typed errors.
//
// # Protocol Overview
//
// Commands and responses are short ASCII frames:
//
//	Command:  [STX][NAME][;ARG1]...[;ARGN][ETX]
//	Response: [STX][NAME][;FIELD1]...[;FIELDN][ETX]
//
// Where:
//   - STX = Start of Text (0x02)
//   - ETX = End of Text (0x03)
//   - NAME = two-letter command identifier, echoed in the response
//   - fields are positional; their meaning is fixed per command
//
// # Command Encoding
//
// Every command has a static Signature. Encode validates arguments against it:
//
//	frame, err := protocol.Encode(protocol.CmdPlatePresent, 5) // "\x02gp;5\x03"
//	frame, err := protocol.Encode(protocol.CmdInitialize, protocol.TargetHandler)
//
// # Response Decoding
//
// Tokenize strips the markers; DecodeResponse applies the command's shape:
//
//	fields, err := protocol.Tokenize(frame)
//	sig, _ := protocol.Lookup(fields[0])
//	resp, err := protocol.DecodeResponse(sig, fields)
//	temp, err := protocol.Value[float64](resp, 0)
//
// Status registers are hexadecimal bit-fields (OverviewStatus, ActionStatus,
// SwapStationStatus, WarningStatus, ErrorStatus). Bits without a name are
// kept and reported by Unrecognized rather than dropped.
//
// # Error Handling
//
// A non-zero error register is turned into a *DeviceError by Classify.
// Each named fault is an ErrorStatus value usable with errors.Is:
//
//	if errors.Is(err, protocol.ErrorDoorOpen) {
//	    // close the door and retry
//	}
//
// Structural problems are reported as *FramingError, *MalformedFieldError
// or *UnknownCodeError; none of them is retried automatically.
package protocol
