package insts

import (
	"errors"
	"strconv"

	"github.com/sarchlab/cputester/translate"
)

var f = translate.From

// ErrMalformedWord is returned when a word is not 32 binary digits.
var ErrMalformedWord = errors.New(f("malformed instruction word"))

// EncodingRangeError reports an operand that does not fit its bit field.
type EncodingRangeError struct {
	Op    Op
	Field string
	Value int64
	Min   int64
	Max   int64
}

func (err *EncodingRangeError) Error() string {
	return f("%v: %v operand %s outside [%s, %s]", err.Op, err.Field,
		strconv.FormatInt(err.Value, 10), strconv.FormatInt(err.Min, 10), strconv.FormatInt(err.Max, 10))
}

// UnknownOpcodeError reports an opcode or function code with no instruction.
type UnknownOpcodeError struct {
	Op     Op     // set when encoding an unsupported Op
	Opcode string // set when decoding
	Funct  string // set when decoding an R-type word
}

func (err *UnknownOpcodeError) Error() string {
	switch {
	case err.Funct != "":
		return f("unknown function code %v for opcode %v", err.Funct, err.Opcode)
	case err.Opcode != "":
		return f("unknown opcode %v", err.Opcode)
	default:
		return f("unknown op %s", strconv.Itoa(int(err.Op)))
	}
}

// DecodeLineError locates a decode failure inside a multi-line program.
type DecodeLineError struct {
	LineNo int
	Err    error
}

func (err *DecodeLineError) Error() string {
	return f("line %s %v", strconv.Itoa(err.LineNo), err.Err)
}

func (err *DecodeLineError) Unwrap() error {
	return err.Err
}
