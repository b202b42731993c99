package protocol

import (
	"bytes"
	"errors"
	"reflect"
	"testing"
)

func TestEncode(t *testing.T) {
	tests := []struct {
		name    string
		command string
		args    []any
		want    []byte
		wantErr bool
		errMsg  string
	}{
		{
			name:    "plate presence at slot 5",
			command: CmdPlatePresent,
			args:    []any{5},
			want:    []byte("\x02gp;5\x03"),
		},
		{
			name:    "no arguments",
			command: CmdOverviewStatus,
			want:    []byte("\x02bs\x03"),
		},
		{
			name:    "float setpoint",
			command: CmdSetTemperature,
			args:    []any{37.5},
			want:    []byte("\x02tt;37.5\x03"),
		},
		{
			name:    "whole float setpoint",
			command: CmdSetCO2,
			args:    []any{5.0},
			want:    []byte("\x02tc;5\x03"),
		},
		{
			name:    "two arguments",
			command: CmdSetShakerFreq,
			args:    []any{2, 1200},
			want:    []byte("\x02sf;2;1200\x03"),
		},
		{
			name:    "enum argument",
			command: CmdInitialize,
			args:    []any{TargetSwapStation},
			want:    []byte("\x02in;4\x03"),
		},
		{
			name:    "unknown command",
			command: "zz",
			wantErr: true,
			errMsg:  "unknown command",
		},
		{
			name:    "missing argument",
			command: CmdStorageToTransfer,
			wantErr: true,
			errMsg:  "expects 1 arguments, got 0",
		},
		{
			name:    "extra argument",
			command: CmdOverviewStatus,
			args:    []any{1},
			wantErr: true,
			errMsg:  "expects 0 arguments, got 1",
		},
		{
			name:    "float for int",
			command: CmdPlatePresent,
			args:    []any{5.0},
			wantErr: true,
			errMsg:  "want int, got float64",
		},
		{
			name:    "int for float",
			command: CmdSetTemperature,
			args:    []any{37},
			wantErr: true,
			errMsg:  "want float64, got int",
		},
		{
			name:    "slot below range",
			command: CmdTransferToStorage,
			args:    []any{0},
			wantErr: true,
			errMsg:  "0 outside 1..999",
		},
		{
			name:    "setpoint above range",
			command: CmdSetTemperature,
			args:    []any{80.0},
			wantErr: true,
			errMsg:  "80 outside 0..50",
		},
		{
			name:    "wrong enum table",
			command: CmdInitialize,
			args:    []any{TypeMove},
			wantErr: true,
			errMsg:  "want action target",
		},
		{
			name:    "unknown enum code",
			command: CmdInitialize,
			args:    []any{ActionTarget(99)},
			wantErr: true,
			errMsg:  "unknown action target code 99",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := Encode(tt.command, tt.args...)

			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error containing %q, got nil", tt.errMsg)
				}
				var ee *EncodingError
				if !errors.As(err, &ee) {
					t.Fatalf("error type = %T, want *EncodingError", err)
				}
				if !bytes.Contains([]byte(err.Error()), []byte(tt.errMsg)) {
					t.Errorf("error = %v, want substring %q", err, tt.errMsg)
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if !bytes.Equal(frame, tt.want) {
				t.Errorf("frame = %q, want %q", frame, tt.want)
			}
		})
	}
}

func TestFramingEncodeCustomMarkers(t *testing.T) {
	f := Framing{Start: '<', End: '>', Delimiter: ','}

	frame, err := f.Encode(CmdSetShakerFreq, 1, 300)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(frame) != "<sf,1,300>" {
		t.Errorf("frame = %q, want %q", frame, "<sf,1,300>")
	}
}

func TestFramingValidate(t *testing.T) {
	if err := DefaultFraming.Validate(); err != nil {
		t.Errorf("default framing invalid: %v", err)
	}
	if err := (Framing{Start: 0x02, End: 0x02, Delimiter: ';'}).Validate(); err == nil {
		t.Error("expected error for identical start and end markers")
	}
}

// Every command in the table must survive encode, tokenize and decode with
// the same name and argument values.
func TestEncodeDecodeCommandRoundTrip(t *testing.T) {
	for _, sig := range Signatures() {
		t.Run(sig.Name, func(t *testing.T) {
			args := make([]any, len(sig.Args))
			for i, spec := range sig.Args {
				switch spec.Kind {
				case ArgInt:
					args[i] = int(spec.Max)
				case ArgFloat:
					args[i] = spec.Max / 3
				case ArgEnum:
					codes := spec.Table.Codes()
					args[i] = enumValue(spec.Table, codes[len(codes)-1])
				}
			}

			frame, err := Encode(sig.Name, args...)
			if err != nil {
				t.Fatalf("encode: %v", err)
			}

			fields, err := Tokenize(frame)
			if err != nil {
				t.Fatalf("tokenize: %v", err)
			}

			cmd, err := DecodeCommand(fields)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}

			if cmd.Name != sig.Name {
				t.Errorf("name = %q, want %q", cmd.Name, sig.Name)
			}
			if len(cmd.Args) != len(args) {
				t.Fatalf("got %d args, want %d", len(cmd.Args), len(args))
			}
			for i := range args {
				if !reflect.DeepEqual(cmd.Args[i], args[i]) {
					t.Errorf("arg %d = %#v, want %#v", i, cmd.Args[i], args[i])
				}
			}
		})
	}
}

func TestParseArgs(t *testing.T) {
	sig, _ := Lookup(CmdSetShakerFreq)

	args, err := ParseArgs(sig, []string{"1", "450"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if args[0] != 1 || args[1] != 450 {
		t.Errorf("args = %v, want [1 450]", args)
	}

	if _, err := ParseArgs(sig, []string{"1", "fast"}); err == nil {
		t.Error("expected error for non-numeric argument")
	}
	if _, err := ParseArgs(sig, []string{"3", "450"}); err == nil {
		t.Error("expected error for shaker out of range")
	}

	sig, _ = Lookup(CmdInitialize)
	args, err = ParseArgs(sig, []string{"1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if args[0] != TargetHandler {
		t.Errorf("target = %v, want %v", args[0], TargetHandler)
	}
	if _, err := ParseArgs(sig, []string{"99"}); err == nil {
		t.Error("expected error for unknown target code")
	}
}

func TestDecodeCommandErrors(t *testing.T) {
	if _, err := DecodeCommand(nil); err == nil {
		t.Error("expected error for empty frame")
	}
	if _, err := DecodeCommand([]string{"zz"}); err == nil {
		t.Error("expected error for unknown command")
	}
	if _, err := DecodeCommand([]string{CmdPlatePresent}); err == nil {
		t.Error("expected error for missing argument")
	}
}

func TestSignatureTable(t *testing.T) {
	for _, sig := range Signatures() {
		if len(sig.Name) != NameLength {
			t.Errorf("%q: name length %d", sig.Name, len(sig.Name))
		}
		if len(sig.Response) == 0 {
			t.Errorf("%q: empty response shape", sig.Name)
		}
		if sig.Summary == "" {
			t.Errorf("%q: missing summary", sig.Name)
		}
		for _, a := range sig.Args {
			if a.Kind == ArgEnum && a.Table == nil {
				t.Errorf("%q: enum argument %q without table", sig.Name, a.Name)
			}
		}
	}

	sig, ok := Lookup(CmdReadTemperature)
	if !ok {
		t.Fatal("rt not registered")
	}
	if !sig.HasErrorField() {
		t.Error("rt should carry an error field")
	}
	if !sig.Classified() || !sig.HasWarningField() {
		t.Error("rt errors should be classified and warnings attached")
	}
	sig, _ = Lookup(CmdPlatePresent)
	if sig.HasErrorField() {
		t.Error("gp should not carry an error field")
	}
	sig, _ = Lookup(CmdErrorStatus)
	if sig.Classified() {
		t.Error("be reports the register as data")
	}
}
