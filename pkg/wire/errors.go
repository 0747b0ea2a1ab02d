package wire

import (
	"errors"
	"fmt"
)

var (
	// ErrIndexRange indicates an index which can't be encoded.
	ErrIndexRange = errors.New("buffer index out of wire range")
	// ErrEmptyCommand indicates an empty control message.
	ErrEmptyCommand = errors.New("empty command")

	// ErrBufferTag indicates the first byte is not the buffer tag.
	ErrBufferTag = errors.New("wrong buffer tag")
	// ErrIndex indicates the index byte is not a digit.
	ErrIndex = errors.New("wrong buffer index")
	// ErrUnexpectedIndex indicates a valid index other than the awaited one.
	ErrUnexpectedIndex = errors.New("unexpected buffer index")
	// ErrAddressTag indicates the address tag is missing.
	ErrAddressTag = errors.New("wrong buffer address tag")
	// ErrAddressDigit indicates a non-hex digit in the address.
	ErrAddressDigit = errors.New("wrong address digit")
	// ErrLengthTag indicates the length tag is missing.
	ErrLengthTag = errors.New("wrong buffer length tag")
	// ErrLengthDigit indicates a non-hex digit in the length.
	ErrLengthDigit = errors.New("wrong length digit")
	// ErrTruncated indicates the message is shorter than a descriptor.
	ErrTruncated = errors.New("truncated descriptor")
	// ErrTrailing indicates unexpected bytes after a descriptor.
	ErrTrailing = errors.New("trailing bytes after descriptor")
)

// Step identifies which validation of a descriptor message failed.
type Step int

// Validation steps, in the order they are applied.
const (
	StepBufferTag Step = iota
	StepIndex
	StepUnexpectedIndex
	StepAddressTag
	StepAddressDigit
	StepLengthTag
	StepLengthDigit
	StepTruncated
	StepTrailing
)

var stepErrors = [...]error{
	StepBufferTag:       ErrBufferTag,
	StepIndex:           ErrIndex,
	StepUnexpectedIndex: ErrUnexpectedIndex,
	StepAddressTag:      ErrAddressTag,
	StepAddressDigit:    ErrAddressDigit,
	StepLengthTag:       ErrLengthTag,
	StepLengthDigit:     ErrLengthDigit,
	StepTruncated:       ErrTruncated,
	StepTrailing:        ErrTrailing,
}

// DecodeError is the diagnostic of a rejected descriptor message.
type DecodeError struct {
	Step   Step
	Offset int
	Byte   byte
	// Expect is the awaited index, meaningful for index steps.
	Expect int
}

// Error implements error.
func (e *DecodeError) Error() string {
	switch e.Step {
	case StepBufferTag:
		return fmt.Sprintf("%v:%q", ErrBufferTag, e.Byte)
	case StepIndex:
		return fmt.Sprintf("%v:%q", ErrIndex, e.Byte)
	case StepUnexpectedIndex:
		return fmt.Sprintf("%v:%q awaited index:%d", ErrUnexpectedIndex, e.Byte, e.Expect)
	case StepAddressTag:
		return fmt.Sprintf("%v:%q instead of:%q", ErrAddressTag, e.Byte, TagAddress)
	case StepLengthTag:
		return fmt.Sprintf("%v:%q instead of:%q", ErrLengthTag, e.Byte, TagLength)
	case StepAddressDigit, StepLengthDigit, StepTrailing:
		return fmt.Sprintf("%v:%q at offset:%d", e.Unwrap(), e.Byte, e.Offset)
	case StepTruncated:
		return fmt.Sprintf("%v at offset:%d", ErrTruncated, e.Offset)
	}
	return fmt.Sprintf("descriptor decode step %d failed", e.Step)
}

// Unwrap returns the sentinel error of the failed step.
func (e *DecodeError) Unwrap() error {
	if e.Step >= 0 && int(e.Step) < len(stepErrors) {
		return stepErrors[e.Step]
	}
	return nil
}

// UnknownOpcodeError reports an unrecognized control byte.
type UnknownOpcodeError struct {
	Byte byte
}

// Error implements error.
func (e *UnknownOpcodeError) Error() string {
	return fmt.Sprintf("unknown command:%q", e.Byte)
}
