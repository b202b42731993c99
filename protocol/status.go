package protocol

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Flag names one bit of a status register.
type Flag struct {
	Bit  uint
	Name string
}

// FlagTable maps bit positions of one status kind to flag names.
// Each kind has its own table so positions never collide across kinds.
type FlagTable struct {
	// Kind identifies the register, e.g. "overview" or "error"
	Kind string

	// Version is the protocol version the positions were taken from
	Version string

	flags []Flag
	names map[uint]string
	mask  uint32
}

// NewFlagTable builds a table from bit/name pairs. Bits must be below 32.
func NewFlagTable(kind string, flags ...Flag) *FlagTable {
	t := &FlagTable{
		Kind:    kind,
		Version: ProtocolVersion,
		names:   make(map[uint]string, len(flags)),
	}
	for _, f := range flags {
		if f.Bit >= 32 {
			panic(fmt.Sprintf("protocol: %s flag %q at bit %d exceeds 32 bits", kind, f.Name, f.Bit))
		}
		if _, dup := t.names[f.Bit]; dup {
			panic(fmt.Sprintf("protocol: %s bit %d named twice", kind, f.Bit))
		}
		t.names[f.Bit] = f.Name
		t.mask |= 1 << f.Bit
		t.flags = append(t.flags, f)
	}
	sort.Slice(t.flags, func(i, j int) bool { return t.flags[i].Bit < t.flags[j].Bit })
	return t
}

// Name returns the flag name at bit, if the table defines one.
func (t *FlagTable) Name(bit uint) (string, bool) {
	name, ok := t.names[bit]
	return name, ok
}

// Mask returns the union of all named bits.
func (t *FlagTable) Mask() uint32 { return t.mask }

// Flags returns the table entries in bit order.
func (t *FlagTable) Flags() []Flag {
	out := make([]Flag, len(t.flags))
	copy(out, t.flags)
	return out
}

// Bits is a bit-field value together with the table that names its bits.
type Bits struct {
	Raw   uint32
	Table *FlagTable
}

// Has reports whether the given bit position is set.
func (b Bits) Has(bit uint) bool { return bit < 32 && b.Raw&(1<<bit) != 0 }

// Set returns the names of all named bits that are set, in bit order.
func (b Bits) Set() []string {
	var out []string
	for _, f := range b.Table.flags {
		if b.Raw&(1<<f.Bit) != 0 {
			out = append(out, f.Name)
		}
	}
	return out
}

// Unrecognized returns the set bits that the table does not name.
func (b Bits) Unrecognized() uint32 { return b.Raw &^ b.Table.mask }

// Encode rebuilds the integer from named flags and unrecognized bits.
func (b Bits) Encode() uint32 {
	var v uint32
	for _, f := range b.Table.flags {
		if b.Has(f.Bit) {
			v |= 1 << f.Bit
		}
	}
	return v | b.Unrecognized()
}

func (b Bits) String() string {
	names := b.Set()
	if u := b.Unrecognized(); u != 0 {
		names = append(names, fmt.Sprintf("0x%X", u))
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, "|")
}

// DecodeBitfield parses a hexadecimal token into a bit-field named by table.
// Set bits that the table does not name are kept in Raw and reported by
// Unrecognized; they never fail decoding.
func DecodeBitfield(token string, table *FlagTable) (Bits, error) {
	if token == "" {
		return Bits{}, &MalformedFieldError{Token: token, Reason: fmt.Sprintf("empty %s bit-field", table.Kind)}
	}
	v, err := strconv.ParseUint(token, 16, 32)
	if err != nil {
		return Bits{}, &MalformedFieldError{Token: token, Reason: fmt.Sprintf("%s bit-field is not hexadecimal", table.Kind)}
	}
	return Bits{Raw: uint32(v), Table: table}, nil
}

// FormatBitfield renders raw as an uppercase hexadecimal token padded to width.
func FormatBitfield(raw uint32, width int) string {
	return fmt.Sprintf("%0*X", width, raw)
}

// BitfieldWidth is the token width used when encoding status registers.
const BitfieldWidth = 2

// OverviewStatus is the overview status register.
type OverviewStatus uint32

// Overview flags.
const (
	OverviewTransferOccupied OverviewStatus = 1 << iota
	OverviewDoorOpen
	OverviewGateOpen
	OverviewHandlerOccupied
	OverviewErrorPending
	OverviewWarningPending
	OverviewReady
	OverviewBusy
)

// OverviewFlags names the overview status bits.
var OverviewFlags = NewFlagTable("overview",
	Flag{0, "transfer_occupied"},
	Flag{1, "door_open"},
	Flag{2, "gate_open"},
	Flag{3, "handler_occupied"},
	Flag{4, "error_pending"},
	Flag{5, "warning_pending"},
	Flag{6, "ready"},
	Flag{7, "busy"},
)

func (s OverviewStatus) Has(flag OverviewStatus) bool { return s&flag != 0 }
func (s OverviewStatus) Bits() Bits                   { return Bits{Raw: uint32(s), Table: OverviewFlags} }
func (s OverviewStatus) Known() OverviewStatus        { return s & OverviewStatus(OverviewFlags.mask) }
func (s OverviewStatus) Unrecognized() uint32         { return s.Bits().Unrecognized() }
func (s OverviewStatus) String() string               { return s.Bits().String() }

// ActionStatus is the action register flags reported with the current action.
type ActionStatus uint32

// Action flags.
const (
	ActionRunning ActionStatus = 1 << iota
	ActionCompleted
	ActionAborted
	ActionPaused
	ActionWaitingForUser
)

// ActionFlags names the action status bits.
var ActionFlags = NewFlagTable("action",
	Flag{0, "running"},
	Flag{1, "completed"},
	Flag{2, "aborted"},
	Flag{3, "paused"},
	Flag{4, "waiting_for_user"},
)

func (s ActionStatus) Has(flag ActionStatus) bool { return s&flag != 0 }
func (s ActionStatus) Bits() Bits                 { return Bits{Raw: uint32(s), Table: ActionFlags} }
func (s ActionStatus) Known() ActionStatus        { return s & ActionStatus(ActionFlags.mask) }
func (s ActionStatus) Unrecognized() uint32       { return s.Bits().Unrecognized() }
func (s ActionStatus) String() string             { return s.Bits().String() }

// SwapStationStatus is the swap station register.
type SwapStationStatus uint32

// Swap station flags.
const (
	SwapAtPosition1 SwapStationStatus = 1 << iota
	SwapAtPosition2
	SwapRotating
	SwapPlateOnSide1
	SwapPlateOnSide2
	SwapHomed
)

// SwapStationFlags names the swap station status bits.
var SwapStationFlags = NewFlagTable("swap_station",
	Flag{0, "at_position_1"},
	Flag{1, "at_position_2"},
	Flag{2, "rotating"},
	Flag{3, "plate_on_side_1"},
	Flag{4, "plate_on_side_2"},
	Flag{5, "homed"},
)

func (s SwapStationStatus) Has(flag SwapStationStatus) bool { return s&flag != 0 }
func (s SwapStationStatus) Bits() Bits                      { return Bits{Raw: uint32(s), Table: SwapStationFlags} }
func (s SwapStationStatus) Known() SwapStationStatus        { return s & SwapStationStatus(SwapStationFlags.mask) }
func (s SwapStationStatus) Unrecognized() uint32            { return s.Bits().Unrecognized() }
func (s SwapStationStatus) String() string                  { return s.Bits().String() }

// Position returns the swap station position (1 or 2), or 0 while rotating or unknown.
func (s SwapStationStatus) Position() int {
	switch {
	case s.Has(SwapRotating):
		return 0
	case s.Has(SwapAtPosition1):
		return 1
	case s.Has(SwapAtPosition2):
		return 2
	default:
		return 0
	}
}

// WarningStatus is the warning register. Warnings are advisory and never
// fail a call.
type WarningStatus uint32

// Warning flags.
const (
	WarningTemperature WarningStatus = 1 << iota
	WarningCO2
	WarningHumidity
	WarningN2
	WarningWaterLow
	WarningMaintenanceDue
	WarningShaker
	WarningDoorOpened
)

// WarningFlags names the warning register bits.
var WarningFlags = NewFlagTable("warning",
	Flag{0, "temperature_deviation"},
	Flag{1, "co2_deviation"},
	Flag{2, "humidity_deviation"},
	Flag{3, "n2_deviation"},
	Flag{4, "water_low"},
	Flag{5, "maintenance_due"},
	Flag{6, "shaker_deviation"},
	Flag{7, "door_opened"},
)

func (s WarningStatus) Has(flag WarningStatus) bool { return s&flag != 0 }
func (s WarningStatus) Bits() Bits                  { return Bits{Raw: uint32(s), Table: WarningFlags} }
func (s WarningStatus) Known() WarningStatus        { return s & WarningStatus(WarningFlags.mask) }
func (s WarningStatus) Unrecognized() uint32        { return s.Bits().Unrecognized() }
func (s WarningStatus) String() string              { return s.Bits().String() }

// ErrorStatus is the error register. Every named fault is itself an error
// value, so callers can match faults with errors.Is.
type ErrorStatus uint32

// Error flags.
const (
	ErrorMotor ErrorStatus = 1 << iota
	ErrorCommunication
	ErrorDoorOpen
	ErrorNoPlate
	ErrorPositionOccupied
	ErrorTransferBlocked
	ErrorShaker
	ErrorClimate
	ErrorBarcode
	ErrorSwapStation
	ErrorNotInitialized
	ErrorGate
)

// ErrorFlags names the error register bits.
var ErrorFlags = NewFlagTable("error",
	Flag{0, "motor_fault"},
	Flag{1, "communication_fault"},
	Flag{2, "door_open"},
	Flag{3, "no_plate"},
	Flag{4, "position_occupied"},
	Flag{5, "transfer_blocked"},
	Flag{6, "shaker_fault"},
	Flag{7, "climate_fault"},
	Flag{8, "barcode_failed"},
	Flag{9, "swap_station_fault"},
	Flag{10, "not_initialized"},
	Flag{11, "gate_fault"},
)

func (s ErrorStatus) Has(flag ErrorStatus) bool { return s&flag != 0 }
func (s ErrorStatus) Bits() Bits                { return Bits{Raw: uint32(s), Table: ErrorFlags} }
func (s ErrorStatus) Known() ErrorStatus        { return s & ErrorStatus(ErrorFlags.mask) }
func (s ErrorStatus) Unrecognized() uint32      { return s.Bits().Unrecognized() }
func (s ErrorStatus) String() string            { return s.Bits().String() }

func (s ErrorStatus) Error() string {
	return fmt.Sprintf("cytomat fault: %s (0x%04X)", s.String(), uint32(s))
}

// Faults splits the register into one value per set bit, in bit order.
// Unrecognized bits are included.
func (s ErrorStatus) Faults() []ErrorStatus {
	var out []ErrorStatus
	for bit := uint(0); bit < 32; bit++ {
		if f := ErrorStatus(1) << bit; s&f != 0 {
			out = append(out, f)
		}
	}
	return out
}
