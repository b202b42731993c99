package protocol

import (
	"fmt"
	"sort"
	"strconv"
)

// CodeTable is a closed enumeration of integer codes the device can emit.
type CodeTable struct {
	Kind  string
	names map[int]string
	codes []int
}

// NewCodeTable builds a closed code table.
func NewCodeTable(kind string, names map[int]string) *CodeTable {
	t := &CodeTable{Kind: kind, names: make(map[int]string, len(names))}
	for code, name := range names {
		t.names[code] = name
		t.codes = append(t.codes, code)
	}
	sort.Ints(t.codes)
	return t
}

// Name returns the variant name for code.
func (t *CodeTable) Name(code int) (string, bool) {
	name, ok := t.names[code]
	return name, ok
}

// Codes returns every known code in ascending order.
func (t *CodeTable) Codes() []int {
	out := make([]int, len(t.codes))
	copy(out, t.codes)
	return out
}

// Enum is implemented by enumerated argument and field values.
type Enum interface {
	Code() int
	CodeTable() *CodeTable
}

// DecodeEnum parses a decimal token and maps it onto table.
// An unmapped code is an *UnknownCodeError; it is never coerced to a default.
func DecodeEnum(token string, table *CodeTable) (int, error) {
	code, err := strconv.Atoi(token)
	if err != nil {
		return 0, &MalformedFieldError{Token: token, Reason: fmt.Sprintf("%s code is not an integer", table.Kind)}
	}
	if _, ok := table.names[code]; !ok {
		return 0, &UnknownCodeError{Kind: table.Kind, Code: code}
	}
	return code, nil
}

// ActionTarget identifies the subsystem an action refers to.
type ActionTarget int

const (
	TargetSystem ActionTarget = iota
	TargetHandler
	TargetShaker
	TargetTransferStation
	TargetSwapStation
	TargetGate
	TargetStorage
	TargetBarcodeReader
	TargetClimate
)

// ActionTargets is the action target code table.
var ActionTargets = NewCodeTable("action target", map[int]string{
	int(TargetSystem):          "system",
	int(TargetHandler):         "handler",
	int(TargetShaker):          "shaker",
	int(TargetTransferStation): "transfer_station",
	int(TargetSwapStation):     "swap_station",
	int(TargetGate):            "gate",
	int(TargetStorage):         "storage",
	int(TargetBarcodeReader):   "barcode_reader",
	int(TargetClimate):         "climate",
})

func (t ActionTarget) Code() int             { return int(t) }
func (t ActionTarget) CodeTable() *CodeTable { return ActionTargets }

func (t ActionTarget) String() string {
	if name, ok := ActionTargets.Name(int(t)); ok {
		return name
	}
	return fmt.Sprintf("action target %d", int(t))
}

// DecodeActionTarget decodes an action target code token.
func DecodeActionTarget(token string) (ActionTarget, error) {
	code, err := DecodeEnum(token, ActionTargets)
	return ActionTarget(code), err
}

// ActionType identifies the operation an action performs.
type ActionType int

const (
	TypeIdle ActionType = iota
	TypeMove
	TypeGet
	TypePut
	TypeInitialize
	TypeScan
	TypeRotate
	TypeShake
	TypeOpen
	TypeClose
	TypeReset
)

// ActionTypes is the action type code table.
var ActionTypes = NewCodeTable("action type", map[int]string{
	int(TypeIdle):       "idle",
	int(TypeMove):       "move",
	int(TypeGet):        "get",
	int(TypePut):        "put",
	int(TypeInitialize): "initialize",
	int(TypeScan):       "scan",
	int(TypeRotate):     "rotate",
	int(TypeShake):      "shake",
	int(TypeOpen):       "open",
	int(TypeClose):      "close",
	int(TypeReset):      "reset",
})

func (t ActionType) Code() int             { return int(t) }
func (t ActionType) CodeTable() *CodeTable { return ActionTypes }

func (t ActionType) String() string {
	if name, ok := ActionTypes.Name(int(t)); ok {
		return name
	}
	return fmt.Sprintf("action type %d", int(t))
}

// DecodeActionType decodes an action type code token.
func DecodeActionType(token string) (ActionType, error) {
	code, err := DecodeEnum(token, ActionTypes)
	return ActionType(code), err
}
