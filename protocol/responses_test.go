package protocol

import (
	"bytes"
	"errors"
	"reflect"
	"testing"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name       string
		frame      []byte
		wantFields []string
		wantErr    bool
		errMsg     string
	}{
		{
			name:       "name only",
			frame:      []byte("\x02bs\x03"),
			wantFields: []string{"bs"},
		},
		{
			name:       "name and fields",
			frame:      []byte("\x02rt;37.0;37.5;00;00\x03"),
			wantFields: []string{"rt", "37.0", "37.5", "00", "00"},
		},
		{
			name:       "empty field kept",
			frame:      []byte("\x02bc;;00;00\x03"),
			wantFields: []string{"bc", "", "00", "00"},
		},
		{
			name:    "frame too short",
			frame:   []byte{0x02, 0x03},
			wantErr: true,
			errMsg:  "frame too short",
		},
		{
			name:    "missing start marker",
			frame:   []byte("gp;1\x03"),
			wantErr: true,
			errMsg:  "invalid start marker",
		},
		{
			name:    "missing end marker",
			frame:   []byte("\x02gp;1"),
			wantErr: true,
			errMsg:  "invalid end marker",
		},
		{
			name:    "markers out of order",
			frame:   []byte("\x02gp\x03;1\x02\x03"),
			wantErr: true,
			errMsg:  "start marker inside frame",
		},
		{
			name:    "two frames concatenated",
			frame:   []byte("\x02gp;1\x03\x02gp;0\x03"),
			wantErr: true,
			errMsg:  "marker inside frame",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields, err := Tokenize(tt.frame)

			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error containing %q, got nil", tt.errMsg)
				}
				var fe *FramingError
				if !errors.As(err, &fe) {
					t.Fatalf("error type = %T, want *FramingError", err)
				}
				if !bytes.Contains([]byte(err.Error()), []byte(tt.errMsg)) {
					t.Errorf("error = %v, want substring %q", err, tt.errMsg)
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if !reflect.DeepEqual(fields, tt.wantFields) {
				t.Errorf("fields = %q, want %q", fields, tt.wantFields)
			}
		})
	}
}

func TestEncodeFields(t *testing.T) {
	frame := DefaultFraming.EncodeFields("rt", "36.9", "37", "00", "00")
	want := []byte("\x02rt;36.9;37;00;00\x03")
	if !bytes.Equal(frame, want) {
		t.Errorf("frame = %q, want %q", frame, want)
	}
}

func decodeFrame(t *testing.T, frame []byte) (*Response, error) {
	t.Helper()
	fields, err := Tokenize(frame)
	if err != nil {
		return nil, err
	}
	sig, ok := Lookup(fields[0])
	if !ok {
		t.Fatalf("unknown command %q", fields[0])
	}
	return DecodeResponse(sig, fields)
}

func TestDecodeResponse(t *testing.T) {
	tests := []struct {
		name         string
		frame        []byte
		wantValues   []any
		wantWarnings WarningStatus
		wantErrors   ErrorStatus
		wantErr      bool
		errMsg       string
	}{
		{
			name:       "plate present",
			frame:      []byte("\x02gp;1\x03"),
			wantValues: []any{true},
		},
		{
			name:       "plate absent",
			frame:      []byte("\x02gp;0\x03"),
			wantValues: []any{false},
		},
		{
			name:         "temperature with warning",
			frame:        []byte("\x02rt;36.2;37;01;00\x03"),
			wantValues:   []any{36.2, 37.0},
			wantWarnings: WarningTemperature,
		},
		{
			name:       "error register decoded but not classified",
			frame:      []byte("\x02rt;36.2;37;00;04\x03"),
			wantValues: []any{36.2, 37.0},
			wantErrors: ErrorDoorOpen,
		},
		{
			name:       "action reply",
			frame:      []byte("\x02ts;C1;00;00\x03"),
			wantValues: []any{OverviewBusy | OverviewReady | OverviewTransferOccupied},
		},
		{
			name:       "action status with target and type",
			frame:      []byte("\x02ba;01;1;2\x03"),
			wantValues: []any{ActionRunning, TargetHandler, TypeGet},
		},
		{
			name:       "swap station",
			frame:      []byte("\x02xs;21\x03"),
			wantValues: []any{SwapHomed | SwapAtPosition1},
		},
		{
			name:       "firmware version text",
			frame:      []byte("\x02vn;C2-4.17\x03"),
			wantValues: []any{"C2-4.17"},
		},
		{
			name:       "shaker frequency",
			frame:      []byte("\x02rf;1200;00;00\x03"),
			wantValues: []any{1200},
		},
		{
			name:    "presence not a flag",
			frame:   []byte("\x02gp;yes\x03"),
			wantErr: true,
			errMsg:  "not a 0/1 flag",
		},
		{
			name:    "non-numeric temperature",
			frame:   []byte("\x02rt;hot;37;00;00\x03"),
			wantErr: true,
			errMsg:  "malformed field 1",
		},
		{
			name:    "non-hex error register",
			frame:   []byte("\x02rt;36;37;00;ZZ\x03"),
			wantErr: true,
			errMsg:  "error bit-field is not hexadecimal",
		},
		{
			name:    "missing field",
			frame:   []byte("\x02rt;36;37;00\x03"),
			wantErr: true,
			errMsg:  "expected 4 fields, got 3",
		},
		{
			name:    "unknown action target",
			frame:   []byte("\x02ba;01;99;1\x03"),
			wantErr: true,
			errMsg:  "unknown action target code 99",
		},
		{
			name:    "unknown action type",
			frame:   []byte("\x02ba;01;1;42\x03"),
			wantErr: true,
			errMsg:  "unknown action type code 42",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := decodeFrame(t, tt.frame)

			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error containing %q, got nil", tt.errMsg)
				}
				if !bytes.Contains([]byte(err.Error()), []byte(tt.errMsg)) {
					t.Errorf("error = %v, want substring %q", err, tt.errMsg)
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if !reflect.DeepEqual(resp.Values, tt.wantValues) {
				t.Errorf("values = %#v, want %#v", resp.Values, tt.wantValues)
			}
			if resp.Warnings != tt.wantWarnings {
				t.Errorf("warnings = %v, want %v", resp.Warnings, tt.wantWarnings)
			}
			if resp.Errors != tt.wantErrors {
				t.Errorf("errors = %v, want %v", resp.Errors, tt.wantErrors)
			}
		})
	}
}

func TestDecodeResponseUnknownCodeIsTyped(t *testing.T) {
	_, err := decodeFrame(t, []byte("\x02ba;00;99;0\x03"))

	var uc *UnknownCodeError
	if !errors.As(err, &uc) {
		t.Fatalf("error type = %T, want *UnknownCodeError", err)
	}
	if uc.Code != 99 || uc.Kind != "action target" {
		t.Errorf("got code %d kind %q", uc.Code, uc.Kind)
	}
	if uc.Command != CmdActionStatus || uc.Index != 2 {
		t.Errorf("got command %q index %d", uc.Command, uc.Index)
	}
}

func TestDecodeResponseNameMismatch(t *testing.T) {
	sig, _ := Lookup(CmdReadTemperature)
	_, err := DecodeResponse(sig, []string{"gp", "1"})

	var fe *FramingError
	if !errors.As(err, &fe) {
		t.Fatalf("error type = %T, want *FramingError", err)
	}
}

func TestValue(t *testing.T) {
	resp := &Response{Command: "rt", Values: []any{36.5, 37.0}}

	v, err := Value[float64](resp, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 37.0 {
		t.Errorf("value = %v, want 37", v)
	}

	if _, err := Value[int](resp, 0); err == nil {
		t.Error("expected type mismatch error")
	}
	if _, err := Value[float64](resp, 2); err == nil {
		t.Error("expected out of range error")
	}
}

func TestResponseUnrecognized(t *testing.T) {
	resp, err := decodeFrame(t, []byte("\x02ts;100;8000;00\x03"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := resp.Unrecognized()
	want := map[string]uint32{"overview": 0x100, "warning": 0x8000}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("unrecognized = %v, want %v", got, want)
	}
}
