package parser

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies why a record was rejected.
type Kind int

const (
	KindUnknown Kind = iota
	// KindParse is a missing or malformed field.
	KindParse
	// KindValidation is a well-formed field outside its domain.
	KindValidation
	// KindSerialization is a payload that is not the expected JSON object.
	KindSerialization
)

func (k Kind) String() string {
	switch k {
	case KindParse:
		return "parse error"
	case KindValidation:
		return "validation error"
	case KindSerialization:
		return "serialization error"
	default:
		return "unknown error"
	}
}

// ErrInvalidTariff is wrapped by validation errors on the legacy log path.
var ErrInvalidTariff = errors.New("invalid tariff")

// Error carries the raw input that could not be turned into a reading.
type Error struct {
	Kind  Kind
	Input string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s in %q: %v", e.Kind, e.Input, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindUnknown
}

func parseErr(input string, err error) error {
	return &Error{Kind: KindParse, Input: input, Err: err}
}

func serializationErr(input []byte, err error) error {
	return &Error{Kind: KindSerialization, Input: string(input), Err: err}
}
