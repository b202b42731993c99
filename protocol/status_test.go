package protocol

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestDecodeBitfield(t *testing.T) {
	tests := []struct {
		name             string
		token            string
		table            *FlagTable
		wantRaw          uint32
		wantSet          []string
		wantUnrecognized uint32
		wantErr          bool
	}{
		{
			name:  "all clear",
			token: "00",
			table: ErrorFlags,
		},
		{
			name:    "door open",
			token:   "04",
			table:   ErrorFlags,
			wantRaw: 0x04,
			wantSet: []string{"door_open"},
		},
		{
			name:    "lowercase accepted",
			token:   "c0",
			table:   OverviewFlags,
			wantRaw: 0xC0,
			wantSet: []string{"ready", "busy"},
		},
		{
			name:             "unnamed bits kept",
			token:            "0481",
			table:            ErrorFlags,
			wantRaw:          0x0481,
			wantSet:          []string{"motor_fault", "climate_fault", "not_initialized"},
			wantUnrecognized: 0,
		},
		{
			name:             "bits beyond table",
			token:            "F001",
			table:            ErrorFlags,
			wantRaw:          0xF001,
			wantSet:          []string{"motor_fault"},
			wantUnrecognized: 0xF000,
		},
		{
			name:    "not hexadecimal",
			token:   "0x04",
			table:   ErrorFlags,
			wantErr: true,
		},
		{
			name:    "empty token",
			token:   "",
			table:   WarningFlags,
			wantErr: true,
		},
		{
			name:    "wider than 32 bits",
			token:   "1FFFFFFFF",
			table:   WarningFlags,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bits, err := DecodeBitfield(tt.token, tt.table)

			if tt.wantErr {
				var mf *MalformedFieldError
				if !errors.As(err, &mf) {
					t.Fatalf("error = %v, want *MalformedFieldError", err)
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if bits.Raw != tt.wantRaw {
				t.Errorf("raw = 0x%X, want 0x%X", bits.Raw, tt.wantRaw)
			}
			if !reflect.DeepEqual(bits.Set(), tt.wantSet) {
				t.Errorf("set = %v, want %v", bits.Set(), tt.wantSet)
			}
			if bits.Unrecognized() != tt.wantUnrecognized {
				t.Errorf("unrecognized = 0x%X, want 0x%X", bits.Unrecognized(), tt.wantUnrecognized)
			}
		})
	}
}

// Decoding a token and re-encoding its flags must reproduce the token.
func TestBitfieldRoundTrip(t *testing.T) {
	tables := []*FlagTable{OverviewFlags, ActionFlags, SwapStationFlags, WarningFlags, ErrorFlags}

	for _, table := range tables {
		for _, width := range []int{2, 4} {
			limit := uint32(1) << (4 * uint(width))
			for raw := uint32(0); raw < limit; raw += 37 {
				token := FormatBitfield(raw, width)

				bits, err := DecodeBitfield(token, table)
				if err != nil {
					t.Fatalf("%s %q: %v", table.Kind, token, err)
				}

				if got := FormatBitfield(bits.Encode(), len(token)); got != token {
					t.Fatalf("%s: %q round-tripped to %q", table.Kind, token, got)
				}
			}
		}
	}
}

func TestFlagTable(t *testing.T) {
	name, ok := ErrorFlags.Name(2)
	if !ok || name != "door_open" {
		t.Errorf("bit 2 = %q, %v; want door_open", name, ok)
	}
	if _, ok := ErrorFlags.Name(31); ok {
		t.Error("bit 31 should be unnamed")
	}
	if ErrorFlags.Mask() != 0x0FFF {
		t.Errorf("mask = 0x%X, want 0x0FFF", ErrorFlags.Mask())
	}
	if OverviewFlags.Version != ProtocolVersion {
		t.Errorf("version = %q, want %q", OverviewFlags.Version, ProtocolVersion)
	}

	flags := WarningFlags.Flags()
	for i := 1; i < len(flags); i++ {
		if flags[i-1].Bit >= flags[i].Bit {
			t.Fatalf("flags not in bit order: %v", flags)
		}
	}
}

func TestNewFlagTablePanicsOnDuplicateBit(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for duplicate bit")
		}
	}()
	NewFlagTable("test", Flag{1, "a"}, Flag{1, "b"})
}

func TestTypedFlagConstantsMatchTables(t *testing.T) {
	checks := []struct {
		bits Bits
		name string
	}{
		{OverviewBusy.Bits(), "busy"},
		{OverviewDoorOpen.Bits(), "door_open"},
		{ActionWaitingForUser.Bits(), "waiting_for_user"},
		{SwapHomed.Bits(), "homed"},
		{WarningDoorOpened.Bits(), "door_opened"},
		{ErrorDoorOpen.Bits(), "door_open"},
		{ErrorGate.Bits(), "gate_fault"},
	}
	for _, c := range checks {
		set := c.bits.Set()
		if len(set) != 1 || set[0] != c.name {
			t.Errorf("%s 0x%X names %v, want [%s]", c.bits.Table.Kind, c.bits.Raw, set, c.name)
		}
	}
}

func TestStatusEquality(t *testing.T) {
	a := OverviewReady | OverviewGateOpen
	b := OverviewGateOpen | OverviewReady
	if a != b {
		t.Error("same flags should compare equal")
	}

	withUnknown := a | OverviewStatus(0x100)
	if withUnknown == a {
		t.Error("unrecognized bits should make values differ")
	}
	if withUnknown.Known() != a {
		t.Error("Known should drop unrecognized bits")
	}
	if withUnknown.Unrecognized() != 0x100 {
		t.Errorf("unrecognized = 0x%X, want 0x100", withUnknown.Unrecognized())
	}
}

func TestStatusString(t *testing.T) {
	if got := OverviewStatus(0).String(); got != "none" {
		t.Errorf("zero = %q, want none", got)
	}
	got := (WarningWaterLow | WarningStatus(0x200)).String()
	if got != "water_low|0x200" {
		t.Errorf("string = %q", got)
	}
}

func TestSwapStationPosition(t *testing.T) {
	tests := []struct {
		status SwapStationStatus
		want   int
	}{
		{SwapAtPosition1 | SwapHomed, 1},
		{SwapAtPosition2, 2},
		{SwapAtPosition1 | SwapRotating, 0},
		{0, 0},
	}
	for _, tt := range tests {
		if got := tt.status.Position(); got != tt.want {
			t.Errorf("%v position = %d, want %d", tt.status, got, tt.want)
		}
	}
}

func TestDecodeEnum(t *testing.T) {
	target, err := DecodeActionTarget("3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if target != TargetTransferStation {
		t.Errorf("target = %v, want transfer_station", target)
	}

	_, err = DecodeActionTarget("99")
	var uc *UnknownCodeError
	if !errors.As(err, &uc) {
		t.Fatalf("error = %v, want *UnknownCodeError", err)
	}

	_, err = DecodeActionType("move")
	var mf *MalformedFieldError
	if !errors.As(err, &mf) {
		t.Fatalf("error = %v, want *MalformedFieldError", err)
	}

	if got := ActionType(77).String(); !strings.Contains(got, "77") {
		t.Errorf("unknown type string = %q", got)
	}
	if got := TypeRotate.String(); got != "rotate" {
		t.Errorf("rotate string = %q", got)
	}
}
