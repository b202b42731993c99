package protocol

import (
	"fmt"
	"math"
	"sort"
	"strconv"
)

// ArgKind is the wire type of a command argument.
type ArgKind int

const (
	ArgInt ArgKind = iota
	ArgFloat
	ArgEnum
)

func (k ArgKind) String() string {
	switch k {
	case ArgInt:
		return "int"
	case ArgFloat:
		return "float"
	case ArgEnum:
		return "enum"
	default:
		return fmt.Sprintf("arg kind %d", int(k))
	}
}

// ArgSpec describes one positional argument of a command.
type ArgSpec struct {
	Name string
	Kind ArgKind

	// Min and Max bound int and float arguments (inclusive)
	Min, Max float64

	// Table is the code table for enum arguments
	Table *CodeTable
}

// FieldKind is the meaning of one response field.
type FieldKind int

const (
	FieldInt FieldKind = iota
	FieldFloat
	FieldBool
	FieldText
	FieldOverview
	FieldAction
	FieldSwapStation
	FieldTarget
	FieldType

	// FieldWarning holds the warning register. Decoded into Response.Warnings.
	FieldWarning

	// FieldError holds the error register. Decoded into Response.Errors
	// and passed to Classify.
	FieldError
)

func (k FieldKind) String() string {
	switch k {
	case FieldInt:
		return "int"
	case FieldFloat:
		return "float"
	case FieldBool:
		return "bool"
	case FieldText:
		return "text"
	case FieldOverview:
		return "overview"
	case FieldAction:
		return "action"
	case FieldSwapStation:
		return "swap_station"
	case FieldTarget:
		return "target"
	case FieldType:
		return "type"
	case FieldWarning:
		return "warning"
	case FieldError:
		return "error"
	default:
		return fmt.Sprintf("field kind %d", int(k))
	}
}

// Signature is the static contract of one command: its argument list and
// the fixed order of fields in its response.
type Signature struct {
	Name     string
	Summary  string
	Args     []ArgSpec
	Response []FieldKind
}

// HasErrorField reports whether responses carry an error register.
func (s Signature) HasErrorField() bool {
	for _, k := range s.Response {
		if k == FieldError {
			return true
		}
	}
	return false
}

// HasWarningField reports whether responses carry a warning register.
func (s Signature) HasWarningField() bool {
	for _, k := range s.Response {
		if k == FieldWarning {
			return true
		}
	}
	return false
}

// Classified reports whether a set error register in the response fails the
// call. The error register query (be) returns the register as its payload
// and is never classified.
func (s Signature) Classified() bool {
	return s.HasErrorField() && len(s.Response) > 1
}

var (
	slotArg    = ArgSpec{Name: "slot", Kind: ArgInt, Min: MinSlot, Max: MaxSlot}
	shakerArg  = ArgSpec{Name: "shaker", Kind: ArgInt, Min: 1, Max: ShakerCount}
	percentArg = ArgSpec{Name: "percent", Kind: ArgFloat, Min: 0, Max: 100}

	// actionReply is the reply to every command that starts an action.
	actionReply = []FieldKind{FieldOverview, FieldWarning, FieldError}

	// climateReading is actual value, setpoint, warnings, errors.
	climateReading = []FieldKind{FieldFloat, FieldFloat, FieldWarning, FieldError}
)

var signatures = map[string]Signature{}

func register(sigs ...Signature) {
	for _, s := range sigs {
		if len(s.Name) != NameLength {
			panic(fmt.Sprintf("protocol: command name %q must be %d characters", s.Name, NameLength))
		}
		if _, dup := signatures[s.Name]; dup {
			panic(fmt.Sprintf("protocol: command %q registered twice", s.Name))
		}
		signatures[s.Name] = s
	}
}

func init() {
	register(
		Signature{Name: CmdTransferToStorage, Summary: "move plate from transfer station to slot", Args: []ArgSpec{slotArg}, Response: actionReply},
		Signature{Name: CmdStorageToTransfer, Summary: "move plate from slot to transfer station", Args: []ArgSpec{slotArg}, Response: actionReply},
		Signature{Name: CmdStorageToWait, Summary: "move plate from slot to wait position", Args: []ArgSpec{slotArg}, Response: actionReply},
		Signature{Name: CmdWaitToStorage, Summary: "move plate from wait position to slot", Args: []ArgSpec{slotArg}, Response: actionReply},
		Signature{Name: CmdTransferToWait, Summary: "move plate from transfer station to wait position", Response: actionReply},
		Signature{Name: CmdWaitToTransfer, Summary: "move plate from wait position to transfer station", Response: actionReply},
		Signature{Name: CmdMoveHandler, Summary: "move handler to slot", Args: []ArgSpec{slotArg}, Response: actionReply},
		Signature{Name: CmdPlatePresent, Summary: "plate presence at slot", Args: []ArgSpec{slotArg}, Response: []FieldKind{FieldBool}},
		Signature{Name: CmdOpenGate, Summary: "open automatic gate", Response: actionReply},
		Signature{Name: CmdCloseGate, Summary: "close automatic gate", Response: actionReply},

		Signature{Name: CmdReadTemperature, Summary: "read temperature and setpoint (°C)", Response: climateReading},
		Signature{Name: CmdSetTemperature, Summary: "set temperature (°C)", Args: []ArgSpec{{Name: "celsius", Kind: ArgFloat, Min: 0, Max: MaxTemperature}}, Response: actionReply},
		Signature{Name: CmdReadCO2, Summary: "read CO2 and setpoint (%)", Response: climateReading},
		Signature{Name: CmdSetCO2, Summary: "set CO2 (%)", Args: []ArgSpec{{Name: "percent", Kind: ArgFloat, Min: 0, Max: MaxCO2}}, Response: actionReply},
		Signature{Name: CmdReadHumidity, Summary: "read relative humidity and setpoint (%)", Response: climateReading},
		Signature{Name: CmdSetHumidity, Summary: "set relative humidity (%)", Args: []ArgSpec{percentArg}, Response: actionReply},
		Signature{Name: CmdReadN2, Summary: "read N2 and setpoint (%)", Response: climateReading},
		Signature{Name: CmdSetN2, Summary: "set N2 (%)", Args: []ArgSpec{percentArg}, Response: actionReply},

		Signature{Name: CmdStartShaker, Summary: "start shakers", Response: actionReply},
		Signature{Name: CmdStopShaker, Summary: "stop shakers", Response: actionReply},
		Signature{Name: CmdSetShakerFreq, Summary: "set shaker frequency (rpm)", Args: []ArgSpec{shakerArg, {Name: "rpm", Kind: ArgInt, Min: 0, Max: MaxShakerFrequency}}, Response: actionReply},
		Signature{Name: CmdReadShakerFreq, Summary: "read shaker frequency (rpm)", Args: []ArgSpec{shakerArg}, Response: []FieldKind{FieldInt, FieldWarning, FieldError}},

		Signature{Name: CmdOverviewStatus, Summary: "overview status register", Response: []FieldKind{FieldOverview}},
		Signature{Name: CmdActionStatus, Summary: "current action register, target and type", Response: []FieldKind{FieldAction, FieldTarget, FieldType}},
		Signature{Name: CmdWarningStatus, Summary: "warning register", Response: []FieldKind{FieldWarning}},
		Signature{Name: CmdErrorStatus, Summary: "error register", Response: []FieldKind{FieldError}},
		Signature{Name: CmdClearErrors, Summary: "clear error register", Response: actionReply},
		Signature{Name: CmdInitialize, Summary: "initialize subsystem", Args: []ArgSpec{{Name: "target", Kind: ArgEnum, Table: ActionTargets}}, Response: actionReply},
		Signature{Name: CmdReset, Summary: "soft reset", Response: actionReply},
		Signature{Name: CmdFirmwareVersion, Summary: "firmware version", Response: []FieldKind{FieldText}},
		Signature{Name: CmdSerialNumber, Summary: "serial number", Response: []FieldKind{FieldText}},

		Signature{Name: CmdReadBarcodeSlot, Summary: "read barcode of plate in slot", Args: []ArgSpec{slotArg}, Response: []FieldKind{FieldText, FieldWarning, FieldError}},
		Signature{Name: CmdReadBarcodeTransfer, Summary: "read barcode of plate on transfer station", Response: []FieldKind{FieldText, FieldWarning, FieldError}},

		Signature{Name: CmdSwapStationStatus, Summary: "swap station register", Response: []FieldKind{FieldSwapStation}},
		Signature{Name: CmdRotateSwapStation, Summary: "rotate swap station to position", Args: []ArgSpec{{Name: "position", Kind: ArgInt, Min: 1, Max: SwapPositions}}, Response: actionReply},
		Signature{Name: CmdHomeSwapStation, Summary: "home swap station", Response: actionReply},
	)
}

// Lookup returns the signature of a known command.
func Lookup(name string) (Signature, bool) {
	s, ok := signatures[name]
	return s, ok
}

// Signatures returns every known command sorted by name.
func Signatures() []Signature {
	out := make([]Signature, 0, len(signatures))
	for _, s := range signatures {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Command is a command name with its ordered arguments.
// Arguments are int, float64, or an Enum such as ActionTarget.
type Command struct {
	Name string
	Args []any
}

// Framing holds the frame markers and field delimiter.
type Framing struct {
	Start     byte
	End       byte
	Delimiter byte
}

// DefaultFraming is STX ... ETX with ';' between fields.
var DefaultFraming = Framing{Start: StartOfText, End: EndOfText, Delimiter: FieldDelimiter}

// Validate checks that the three framing bytes are distinct.
func (f Framing) Validate() error {
	if f.Start == f.End || f.Start == f.Delimiter || f.End == f.Delimiter {
		return fmt.Errorf("framing bytes must be distinct: start=0x%02X end=0x%02X delimiter=0x%02X", f.Start, f.End, f.Delimiter)
	}
	return nil
}

// Encode builds a command frame with the default framing.
//
// Frame structure:
//
//	[STX][NAME][;ARG1]...[;ARGN][ETX]
func Encode(name string, args ...any) ([]byte, error) {
	return DefaultFraming.Encode(name, args...)
}

// Encode builds a command frame. The name must be in the signature table and
// the arguments must match its arity, types and ranges.
func (f Framing) Encode(name string, args ...any) ([]byte, error) {
	sig, ok := Lookup(name)
	if !ok {
		return nil, &EncodingError{Command: name, Reason: "unknown command"}
	}
	if len(args) != len(sig.Args) {
		return nil, &EncodingError{Command: name, Reason: fmt.Sprintf("expects %d arguments, got %d", len(sig.Args), len(args))}
	}

	frame := make([]byte, 0, MinFrameSize+8*len(args))
	frame = append(frame, f.Start)
	frame = append(frame, name...)

	for i, arg := range args {
		tok, reason := formatArg(sig.Args[i], arg)
		if reason != "" {
			return nil, &EncodingError{Command: name, Reason: fmt.Sprintf("argument %d (%s): %s", i+1, sig.Args[i].Name, reason)}
		}
		frame = append(frame, f.Delimiter)
		frame = append(frame, tok...)
	}

	frame = append(frame, f.End)
	return frame, nil
}

// formatArg renders one argument, or returns a non-empty reason.
func formatArg(spec ArgSpec, v any) (string, string) {
	switch spec.Kind {
	case ArgInt:
		n, ok := v.(int)
		if !ok {
			return "", fmt.Sprintf("want int, got %T", v)
		}
		if float64(n) < spec.Min || float64(n) > spec.Max {
			return "", fmt.Sprintf("%d outside %g..%g", n, spec.Min, spec.Max)
		}
		return strconv.Itoa(n), ""
	case ArgFloat:
		x, ok := v.(float64)
		if !ok {
			return "", fmt.Sprintf("want float64, got %T", v)
		}
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return "", fmt.Sprintf("%v is not finite", x)
		}
		if x < spec.Min || x > spec.Max {
			return "", fmt.Sprintf("%g outside %g..%g", x, spec.Min, spec.Max)
		}
		return strconv.FormatFloat(x, 'f', -1, 64), ""
	case ArgEnum:
		e, ok := v.(Enum)
		if !ok || e.CodeTable() != spec.Table {
			return "", fmt.Sprintf("want %s, got %T", spec.Table.Kind, v)
		}
		if _, known := spec.Table.Name(e.Code()); !known {
			return "", fmt.Sprintf("unknown %s code %d", spec.Table.Kind, e.Code())
		}
		return strconv.Itoa(e.Code()), ""
	default:
		return "", fmt.Sprintf("unsupported argument kind %s", spec.Kind)
	}
}

// ParseArgs parses textual argument tokens against a signature, producing
// values that Encode accepts.
func ParseArgs(sig Signature, tokens []string) ([]any, error) {
	if len(tokens) != len(sig.Args) {
		return nil, &EncodingError{Command: sig.Name, Reason: fmt.Sprintf("expects %d arguments, got %d", len(sig.Args), len(tokens))}
	}

	args := make([]any, len(tokens))
	for i, tok := range tokens {
		spec := sig.Args[i]
		var v any
		switch spec.Kind {
		case ArgInt:
			n, err := strconv.Atoi(tok)
			if err != nil {
				return nil, &EncodingError{Command: sig.Name, Reason: fmt.Sprintf("argument %d (%s): %q is not an integer", i+1, spec.Name, tok)}
			}
			v = n
		case ArgFloat:
			x, err := strconv.ParseFloat(tok, 64)
			if err != nil {
				return nil, &EncodingError{Command: sig.Name, Reason: fmt.Sprintf("argument %d (%s): %q is not a number", i+1, spec.Name, tok)}
			}
			v = x
		case ArgEnum:
			code, err := DecodeEnum(tok, spec.Table)
			if err != nil {
				return nil, &EncodingError{Command: sig.Name, Reason: fmt.Sprintf("argument %d (%s): %v", i+1, spec.Name, err)}
			}
			v = enumValue(spec.Table, code)
		}
		if _, reason := formatArg(spec, v); reason != "" {
			return nil, &EncodingError{Command: sig.Name, Reason: fmt.Sprintf("argument %d (%s): %s", i+1, spec.Name, reason)}
		}
		args[i] = v
	}
	return args, nil
}

// DecodeCommand rebuilds a Command from the fields of a command frame.
func DecodeCommand(fields []string) (Command, error) {
	if len(fields) == 0 {
		return Command{}, &EncodingError{Reason: "empty command frame"}
	}
	sig, ok := Lookup(fields[0])
	if !ok {
		return Command{}, &EncodingError{Command: fields[0], Reason: "unknown command"}
	}
	args, err := ParseArgs(sig, fields[1:])
	if err != nil {
		return Command{}, err
	}
	return Command{Name: sig.Name, Args: args}, nil
}

// enumValue converts a code into the typed enum of its table.
func enumValue(table *CodeTable, code int) Enum {
	switch table {
	case ActionTargets:
		return ActionTarget(code)
	case ActionTypes:
		return ActionType(code)
	default:
		panic(fmt.Sprintf("protocol: no enum type for %s table", table.Kind))
	}
}
