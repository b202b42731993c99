package protocol

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Tokenize splits a frame into fields using the default framing.
func Tokenize(frame []byte) ([]string, error) {
	return DefaultFraming.Tokenize(frame)
}

// Tokenize strips the start and end markers and splits the content on the
// field delimiter. Field 0 is the command name. It does not interpret fields.
//
// Frame structure:
//
//	[STX][NAME][;FIELD1]...[;FIELDN][ETX]
func (f Framing) Tokenize(frame []byte) ([]string, error) {
	if len(frame) < MinFrameSize {
		return nil, &FramingError{Reason: fmt.Sprintf("frame too short: got %d bytes, minimum is %d", len(frame), MinFrameSize), Frame: frame}
	}

	if frame[0] != f.Start {
		return nil, &FramingError{Reason: fmt.Sprintf("invalid start marker: got 0x%02X, expected 0x%02X", frame[0], f.Start), Frame: frame}
	}

	if frame[len(frame)-1] != f.End {
		return nil, &FramingError{Reason: fmt.Sprintf("invalid end marker: got 0x%02X, expected 0x%02X", frame[len(frame)-1], f.End), Frame: frame}
	}

	body := frame[1 : len(frame)-1]
	if i := bytes.IndexByte(body, f.Start); i >= 0 {
		return nil, &FramingError{Reason: fmt.Sprintf("start marker inside frame at byte %d", i+1), Frame: frame}
	}
	if i := bytes.IndexByte(body, f.End); i >= 0 {
		return nil, &FramingError{Reason: fmt.Sprintf("end marker inside frame at byte %d", i+1), Frame: frame}
	}

	return strings.Split(string(body), string(f.Delimiter)), nil
}

// EncodeFields builds a frame from a command name and raw field tokens.
// Devices and test doubles use it to produce responses.
func (f Framing) EncodeFields(name string, fields ...string) []byte {
	n := len(name) + 2
	for _, field := range fields {
		n += len(field) + 1
	}
	frame := make([]byte, 0, n)
	frame = append(frame, f.Start)
	frame = append(frame, name...)
	for _, field := range fields {
		frame = append(frame, f.Delimiter)
		frame = append(frame, field...)
	}
	return append(frame, f.End)
}

// Response is a decoded response: payload values in wire order plus the
// warning and error registers when the command's shape carries them.
type Response struct {
	Command string

	// Fields are the raw tokens after the command name
	Fields []string

	// Values holds one typed value per payload field: int, float64, bool,
	// string, OverviewStatus, ActionStatus, SwapStationStatus,
	// ActionTarget or ActionType. Warning and error fields are not included.
	Values []any

	Warnings WarningStatus
	Errors   ErrorStatus
}

// Value returns payload value i as T.
func Value[T any](r *Response, i int) (T, error) {
	var zero T
	if i < 0 || i >= len(r.Values) {
		return zero, fmt.Errorf("%s response has %d values, no value %d", r.Command, len(r.Values), i)
	}
	v, ok := r.Values[i].(T)
	if !ok {
		return zero, fmt.Errorf("%s response value %d is %T, not %T", r.Command, i, r.Values[i], zero)
	}
	return v, nil
}

// Unrecognized reports, per status kind, the set bits with no flag name.
// Kinds without such bits are omitted.
func (r *Response) Unrecognized() map[string]uint32 {
	out := map[string]uint32{}
	add := func(b Bits) {
		if u := b.Unrecognized(); u != 0 {
			out[b.Table.Kind] |= u
		}
	}
	for _, v := range r.Values {
		switch s := v.(type) {
		case OverviewStatus:
			add(s.Bits())
		case ActionStatus:
			add(s.Bits())
		case SwapStationStatus:
			add(s.Bits())
		}
	}
	add(r.Warnings.Bits())
	add(r.Errors.Bits())
	return out
}

// DecodeResponse interprets tokenized fields according to the signature's
// response shape. Field 0 must be the signature's name.
func DecodeResponse(sig Signature, fields []string) (*Response, error) {
	if len(fields) == 0 || fields[0] != sig.Name {
		got := ""
		if len(fields) > 0 {
			got = fields[0]
		}
		return nil, &FramingError{Reason: fmt.Sprintf("response for %q while expecting %q", got, sig.Name)}
	}

	payload := fields[1:]
	if len(payload) != len(sig.Response) {
		return nil, &MalformedFieldError{
			Command: sig.Name,
			Index:   len(payload),
			Reason:  fmt.Sprintf("expected %d fields, got %d", len(sig.Response), len(payload)),
		}
	}

	resp := &Response{Command: sig.Name, Fields: payload}
	for i, kind := range sig.Response {
		tok := payload[i]
		v, err := decodeField(kind, tok)
		if err != nil {
			return nil, annotate(err, sig.Name, i+1)
		}
		switch kind {
		case FieldWarning:
			resp.Warnings = v.(WarningStatus)
		case FieldError:
			resp.Errors = v.(ErrorStatus)
		default:
			resp.Values = append(resp.Values, v)
		}
	}
	return resp, nil
}

func decodeField(kind FieldKind, tok string) (any, error) {
	switch kind {
	case FieldInt:
		n, err := strconv.Atoi(tok)
		if err != nil {
			return nil, &MalformedFieldError{Token: tok, Reason: "not an integer"}
		}
		return n, nil
	case FieldFloat:
		x, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return nil, &MalformedFieldError{Token: tok, Reason: "not a number"}
		}
		return x, nil
	case FieldBool:
		switch tok {
		case "0":
			return false, nil
		case "1":
			return true, nil
		}
		return nil, &MalformedFieldError{Token: tok, Reason: "not a 0/1 flag"}
	case FieldText:
		return tok, nil
	case FieldOverview:
		b, err := DecodeBitfield(tok, OverviewFlags)
		return OverviewStatus(b.Raw), err
	case FieldAction:
		b, err := DecodeBitfield(tok, ActionFlags)
		return ActionStatus(b.Raw), err
	case FieldSwapStation:
		b, err := DecodeBitfield(tok, SwapStationFlags)
		return SwapStationStatus(b.Raw), err
	case FieldWarning:
		b, err := DecodeBitfield(tok, WarningFlags)
		return WarningStatus(b.Raw), err
	case FieldError:
		b, err := DecodeBitfield(tok, ErrorFlags)
		return ErrorStatus(b.Raw), err
	case FieldTarget:
		return DecodeActionTarget(tok)
	case FieldType:
		return DecodeActionType(tok)
	default:
		return nil, &MalformedFieldError{Token: tok, Reason: fmt.Sprintf("unsupported field kind %s", kind)}
	}
}

// annotate attaches command and position to field-level decode errors.
func annotate(err error, command string, index int) error {
	var mf *MalformedFieldError
	if errors.As(err, &mf) {
		mf.Command, mf.Index = command, index
		return mf
	}
	var uc *UnknownCodeError
	if errors.As(err, &uc) {
		uc.Command, uc.Index = command, index
		return uc
	}
	return err
}
