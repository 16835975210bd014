// Package wire turns intents and events into frames and back.
//
// A frame holds exactly one message encoded in the protobuf wire format:
// a single length-delimited field whose number selects the variant and whose
// payload carries the variant's own fields. Unknown fields inside a variant are
// skipped; anything else that does not fit this shape is a DecodeError.
package wire

import (
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"fmt"
	"unicode/utf8"

	"google.golang.org/protobuf/encoding/protowire"
)

// Variant field numbers, client to server.
const (
	intentJoin  protowire.Number = 1
	intentSay   protowire.Number = 2
	intentLeave protowire.Number = 3
)

// Variant field numbers, server to client.
const (
	eventJoined  protowire.Number = 1
	eventSaid    protowire.Number = 2
	eventLeft    protowire.Number = 3
	eventFailure protowire.Number = 4
)

// Fields inside a variant.
const (
	fieldName  protowire.Number = 1
	fieldText  protowire.Number = 2
	fieldCode  protowire.Number = 1
	fieldCount protowire.Number = 2
)

// DecodeError reports a frame that arrived intact but could not be decoded.
// It concerns a single message: the stream itself is still usable.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode frame: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

func malformed(format string, args ...any) error {
	return &DecodeError{Err: fmt.Errorf("%w: %s", errors.ErrMalformedFrame, fmt.Sprintf(format, args...))}
}

func MarshalIntent(intent domain.Intent) ([]byte, error) {
	switch i := intent.(type) {
	case domain.Join:
		return appendVariant(nil, intentJoin, appendString(nil, fieldName, i.Name)), nil
	case domain.Say:
		return appendVariant(nil, intentSay, appendString(nil, fieldText, i.Text)), nil
	case domain.Leave:
		return appendVariant(nil, intentLeave, nil), nil
	default:
		return nil, fmt.Errorf("%w: %T", errors.ErrUnknownVariant, intent)
	}
}

func UnmarshalIntent(frame []byte) (domain.Intent, error) {
	num, payload, err := consumeVariant(frame)
	if err != nil {
		return nil, err
	}
	f, err := parseFields(payload)
	if err != nil {
		return nil, err
	}
	switch num {
	case intentJoin:
		return domain.Join{Name: f.text[fieldName]}, nil
	case intentSay:
		return domain.Say{Text: f.text[fieldText]}, nil
	case intentLeave:
		return domain.Leave{}, nil
	default:
		return nil, &DecodeError{Err: fmt.Errorf("%w: intent field %d", errors.ErrUnknownVariant, num)}
	}
}

func MarshalEvent(evt event.Event) ([]byte, error) {
	switch e := evt.(type) {
	case event.Joined:
		return appendVariant(nil, eventJoined, appendString(nil, fieldName, string(e.Name))), nil
	case event.Said:
		body := appendString(nil, fieldName, string(e.Name))
		body = appendString(body, fieldText, e.Text)
		return appendVariant(nil, eventSaid, body), nil
	case event.Left:
		return appendVariant(nil, eventLeft, appendString(nil, fieldName, string(e.Name))), nil
	case event.Failure:
		body := appendVarint(nil, fieldCode, uint64(e.Kind.Code))
		body = appendVarint(body, fieldCount, e.Kind.Count)
		return appendVariant(nil, eventFailure, body), nil
	default:
		return nil, fmt.Errorf("%w: %T", errors.ErrUnknownVariant, evt)
	}
}

func UnmarshalEvent(frame []byte) (event.Event, error) {
	num, payload, err := consumeVariant(frame)
	if err != nil {
		return nil, err
	}
	f, err := parseFields(payload)
	if err != nil {
		return nil, err
	}
	switch num {
	case eventJoined:
		return event.Joined{Name: domain.Username(f.text[fieldName])}, nil
	case eventSaid:
		return event.Said{Name: domain.Username(f.text[fieldName]), Text: f.text[fieldText]}, nil
	case eventLeft:
		return event.Left{Name: domain.Username(f.text[fieldName])}, nil
	case eventFailure:
		code := f.varint[fieldCode]
		if code == 0 || code > uint64(event.CodeLost) {
			return nil, malformed("unknown error code %d", code)
		}
		return event.Failure{Kind: event.ErrorKind{Code: event.ErrorCode(code), Count: f.varint[fieldCount]}}, nil
	default:
		return nil, &DecodeError{Err: fmt.Errorf("%w: event field %d", errors.ErrUnknownVariant, num)}
	}
}

func appendVariant(b []byte, num protowire.Number, payload []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, payload)
}

// appendString follows proto3 rules: empty strings are not written.
func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

// consumeVariant reads the single top-level field of a frame.
func consumeVariant(frame []byte) (protowire.Number, []byte, error) {
	if len(frame) == 0 {
		return 0, nil, malformed("empty frame")
	}
	num, typ, n := protowire.ConsumeTag(frame)
	if n < 0 {
		return 0, nil, malformed("tag: %v", protowire.ParseError(n))
	}
	if typ != protowire.BytesType {
		return 0, nil, malformed("variant %d has wire type %d", num, typ)
	}
	frame = frame[n:]
	payload, n := protowire.ConsumeBytes(frame)
	if n < 0 {
		return 0, nil, malformed("variant %d: %v", num, protowire.ParseError(n))
	}
	if len(frame) != n {
		return 0, nil, malformed("%d trailing byte(s) after variant %d", len(frame)-n, num)
	}
	return num, payload, nil
}

type fields struct {
	text   map[protowire.Number]string
	varint map[protowire.Number]uint64
}

func parseFields(b []byte) (fields, error) {
	f := fields{
		text:   make(map[protowire.Number]string),
		varint: make(map[protowire.Number]uint64),
	}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return f, malformed("field tag: %v", protowire.ParseError(n))
		}
		b = b[n:]
		switch typ {
		case protowire.BytesType:
			v, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return f, malformed("field %d: %v", num, protowire.ParseError(m))
			}
			if !utf8.Valid(v) {
				return f, malformed("field %d is not valid UTF-8", num)
			}
			f.text[num] = string(v)
			n = m
		case protowire.VarintType:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return f, malformed("field %d: %v", num, protowire.ParseError(m))
			}
			f.varint[num] = v
			n = m
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return f, malformed("field %d: %v", num, protowire.ParseError(n))
			}
		}
		b = b[n:]
	}
	return f, nil
}
