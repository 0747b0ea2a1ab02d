package wire

import (
	"fmt"
	"io"
)

// DescriptorLen is the size of an encoded descriptor message.
const DescriptorLen = 20

// Tag bytes of a descriptor message.
const (
	TagBuffer  byte = 'B'
	TagAddress byte = 'A'
	TagLength  byte = 'L'
)

const (
	offIndex   = 1
	offAddrTag = 2
	offAddr    = 3
	offLenTag  = 11
	offLen     = 12
	hexDigits  = 8
)

// MaxIndex is the largest index representable on the wire.
const MaxIndex = 9

// Descriptor is the decoded form of a descriptor message.
type Descriptor struct {
	Index  int
	Addr   uint32
	Length uint32
}

// String implements fmt.Stringer with the wire form.
func (d Descriptor) String() string {
	return fmt.Sprintf("B%dA%08xL%08x", d.Index, d.Addr, d.Length)
}

// Encode returns the wire bytes.
func (d Descriptor) Encode() ([]byte, error) {
	if d.Index < 0 || d.Index > MaxIndex {
		return nil, ErrIndexRange
	}
	b := make([]byte, DescriptorLen)
	b[0], b[offIndex] = TagBuffer, '0'+byte(d.Index)
	b[offAddrTag] = TagAddress
	putHex(b[offAddr:offAddr+hexDigits], d.Addr)
	b[offLenTag] = TagLength
	putHex(b[offLen:offLen+hexDigits], d.Length)
	return b, nil
}

// WriteTo writes encoded bytes as a single message.
func (d Descriptor) WriteTo(w io.Writer) (int64, error) {
	b, err := d.Encode()
	if err != nil {
		return 0, err
	}
	n, err := w.Write(b)
	return int64(n), err
}

// DecodeDescriptor validates and decodes a descriptor message. expect is
// the round-robin index the receiver is waiting for; any other index is
// rejected even if the message is otherwise well formed. Trailing NUL
// bytes are ignored. On failure the returned error is a *DecodeError and
// the Descriptor is zero.
func DecodeDescriptor(msg []byte, expect int) (Descriptor, error) {
	d, err := decodeDescriptor(msg, expect)
	if err != nil {
		return Descriptor{}, err
	}
	return d, nil
}

func decodeDescriptor(msg []byte, expect int) (d Descriptor, err error) {
	msg = trimNUL(msg)
	at := func(off int) (byte, error) {
		if off >= len(msg) {
			return 0, &DecodeError{Step: StepTruncated, Offset: off, Expect: expect}
		}
		return msg[off], nil
	}

	var b byte
	if b, err = at(0); err != nil {
		return
	}
	if b != TagBuffer {
		return d, &DecodeError{Step: StepBufferTag, Offset: 0, Byte: b}
	}
	if b, err = at(offIndex); err != nil {
		return
	}
	if b < '0' || b > '9' {
		return d, &DecodeError{Step: StepIndex, Offset: offIndex, Byte: b, Expect: expect}
	}
	if int(b-'0') != expect {
		return d, &DecodeError{Step: StepUnexpectedIndex, Offset: offIndex, Byte: b, Expect: expect}
	}
	d.Index = int(b - '0')
	if b, err = at(offAddrTag); err != nil {
		return
	}
	if b != TagAddress {
		return d, &DecodeError{Step: StepAddressTag, Offset: offAddrTag, Byte: b}
	}
	if d.Addr, err = decodeHex(msg, offAddr, StepAddressDigit); err != nil {
		return
	}
	if b, err = at(offLenTag); err != nil {
		return
	}
	if b != TagLength {
		return d, &DecodeError{Step: StepLengthTag, Offset: offLenTag, Byte: b}
	}
	if d.Length, err = decodeHex(msg, offLen, StepLengthDigit); err != nil {
		return
	}
	if len(msg) > DescriptorLen {
		return d, &DecodeError{Step: StepTrailing, Offset: DescriptorLen, Byte: msg[DescriptorLen]}
	}
	return d, nil
}

func decodeHex(msg []byte, off int, step Step) (v uint32, err error) {
	for i := off; i < off+hexDigits; i++ {
		if i >= len(msg) {
			return 0, &DecodeError{Step: StepTruncated, Offset: i}
		}
		n, ok := hexValue(msg[i])
		if !ok {
			return 0, &DecodeError{Step: step, Offset: i, Byte: msg[i]}
		}
		v = v<<4 | uint32(n)
	}
	return v, nil
}

// hexValue accepts lower-case digits only.
func hexValue(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	}
	return 0, false
}

const hexChars = "0123456789abcdef"

func putHex(dst []byte, v uint32) {
	for i := len(dst) - 1; i >= 0; i-- {
		dst[i] = hexChars[v&0xf]
		v >>= 4
	}
}

func trimNUL(msg []byte) []byte {
	for len(msg) > 0 && msg[len(msg)-1] == 0 {
		msg = msg[:len(msg)-1]
	}
	return msg
}
