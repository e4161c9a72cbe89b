// Package results defines the structured shapes the agent fills in for each
// email type and the tagged Result that carries one of them through a flow.
package results

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// Kind discriminates the shape held by a Result.
type Kind string

const (
	KindRf1350           Kind = "Rf1350"
	KindLoyvegaranti     Kind = "Loyvegaranti"
	KindPengetransporten Kind = "Pengetransporten"
	KindInnsyn           Kind = "Innsyn"
	KindGeneral          Kind = "General"
	KindFunFact          Kind = "FunFact"
)

// Kinds lists every known kind in a stable order.
var Kinds = []Kind{KindRf1350, KindLoyvegaranti, KindPengetransporten, KindInnsyn, KindGeneral, KindFunFact}

var (
	ErrUnknownKind = errors.New("unknown result kind")
	ErrEmptyResult = errors.New("result has no payload")
)

// ParseKind resolves name to a Kind, ignoring case.
func ParseKind(name string) (Kind, error) {
	for _, k := range Kinds {
		if strings.EqualFold(string(k), strings.TrimSpace(name)) {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, name)
}

// Shape is implemented by every agent result type.
type Shape interface {
	Kind() Kind
	// Schema describes the expected JSON object to the agent.
	Schema() string
}

// Result is a tagged union over the known shapes.
type Result struct {
	shape Shape
}

// New wraps s in a Result.
func New(s Shape) Result {
	return Result{shape: s}
}

func (r Result) Kind() Kind {
	if r.shape == nil {
		return ""
	}
	return r.shape.Kind()
}

func (r Result) Shape() Shape { return r.shape }

func (r Result) IsZero() bool { return r.shape == nil }

// As returns the payload of r when it holds a T.
func As[T Shape](r Result) (T, bool) {
	v, ok := r.shape.(T)
	return v, ok
}

type envelope struct {
	Kind    Kind            `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

func (r Result) MarshalJSON() ([]byte, error) {
	if r.shape == nil {
		return []byte("null"), nil
	}
	payload, err := json.Marshal(r.shape)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{Kind: r.shape.Kind(), Payload: payload})
}

func (r *Result) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		r.shape = nil
		return nil
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}

	s, err := Decode(env.Kind, env.Payload)
	if err != nil {
		return err
	}
	r.shape = s
	return nil
}

// Decode unmarshals data into the shape named by kind.
func Decode(kind Kind, data []byte) (Shape, error) {
	switch kind {
	case KindRf1350:
		return decode[Rf1350](data)
	case KindLoyvegaranti:
		return decode[Loyvegaranti](data)
	case KindPengetransporten:
		return decode[Pengetransporten](data)
	case KindInnsyn:
		return decode[Innsyn](data)
	case KindGeneral:
		return decode[General](data)
	case KindFunFact:
		return decode[FunFact](data)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

func decode[T Shape](data []byte) (Shape, error) {
	var v T
	if len(data) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// Digits holds a number the agent may return as a JSON number or as a string
// with separators. Only the digits are kept.
type Digits string

func (d *Digits) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*d = ""
		return nil
	}

	raw := string(data)
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
	}

	var sb strings.Builder
	for _, r := range raw {
		if unicode.IsDigit(r) {
			sb.WriteRune(r)
		}
	}
	*d = Digits(sb.String())
	return nil
}

func (d Digits) String() string { return string(d) }

// Valid9 reports whether d is a nine digit organization number.
func (d Digits) Valid9() bool { return len(d) == 9 }
