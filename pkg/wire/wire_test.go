package wire

import (
	"bytes"
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDescriptorEncode(t *testing.T) {
	testCases := []struct {
		name   string
		desc   Descriptor
		expect string
	}{
		{"reserved region", Descriptor{Index: 0, Addr: 0xdb000000, Length: 0x1000000}, "B0Adb000000L01000000"},
		{"last index", Descriptor{Index: 9, Addr: 0xffffffff, Length: 0}, "B9AffffffffL00000000"},
		{"small", Descriptor{Index: 3, Addr: 0x1000, Length: 0xabc}, "B3A00001000L00000abc"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			b, err := tc.desc.Encode()
			require.NoError(t, err)
			require.Equal(t, tc.expect, string(b))
			require.Equal(t, tc.expect, tc.desc.String())

			var buf bytes.Buffer
			n, err := tc.desc.WriteTo(&buf)
			require.NoError(t, err)
			require.Equal(t, int64(DescriptorLen), n)

			decoded, err := DecodeDescriptor(buf.Bytes(), tc.desc.Index)
			require.NoError(t, err)
			require.Equal(t, tc.desc, decoded)
		})
	}

	_, err := Descriptor{Index: 10}.Encode()
	require.Equal(t, ErrIndexRange, err)
}

func TestDescriptorRoundTrip(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	for i := 0; i < 1000; i++ {
		d := Descriptor{Index: rnd.Intn(MaxIndex + 1), Addr: rnd.Uint32(), Length: rnd.Uint32()}
		b, err := d.Encode()
		require.NoError(t, err)
		require.Len(t, b, DescriptorLen)
		decoded, err := DecodeDescriptor(b, d.Index)
		require.NoError(t, err, "%s", b)
		require.Equal(t, d, decoded)
	}
}

func TestDecodeDescriptorScenario(t *testing.T) {
	d, err := DecodeDescriptor([]byte("B0Adb000000L01000000"), 0)
	require.NoError(t, err)
	require.Equal(t, Descriptor{Index: 0, Addr: 0xdb000000, Length: 0x1000000}, d)

	d, err = DecodeDescriptor([]byte("B0Adb000000L01000000\x00\x00"), 0)
	require.NoError(t, err)
	require.Equal(t, uint32(0x1000000), d.Length)
}

func TestDecodeDescriptorErrors(t *testing.T) {
	testCases := []struct {
		name   string
		msg    string
		expect int
		step   Step
		offset int
		sentry error
	}{
		{"empty", "", 0, StepTruncated, 0, ErrTruncated},
		{"buffer tag", "X0Adb000000L01000000", 0, StepBufferTag, 0, ErrBufferTag},
		{"index not digit", "BxAdb000000L01000000", 0, StepIndex, 1, ErrIndex},
		{"index not awaited", "B1Adb000000L01000000", 0, StepUnexpectedIndex, 1, ErrUnexpectedIndex},
		{"address tag", "B0Xdb000000L01000000", 0, StepAddressTag, 2, ErrAddressTag},
		{"address digit", "B0Adb00g000L01000000", 0, StepAddressDigit, 7, ErrAddressDigit},
		{"address upper case", "B0ADB000000L01000000", 0, StepAddressDigit, 3, ErrAddressDigit},
		{"length tag", "B0Adb000000X01000000", 0, StepLengthTag, 11, ErrLengthTag},
		{"length digit", "B0Adb000000L0100000z", 0, StepLengthDigit, 19, ErrLengthDigit},
		{"truncated length", "B0Adb000000L0100", 0, StepTruncated, 16, ErrTruncated},
		{"trailing", "B0Adb000000L01000000Z", 0, StepTrailing, 20, ErrTrailing},
		{"completion short form", "B0L00001000", 0, StepAddressTag, 2, ErrAddressTag},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			d, err := DecodeDescriptor([]byte(tc.msg), tc.expect)
			require.Error(t, err)
			require.Equal(t, Descriptor{}, d)
			var derr *DecodeError
			require.True(t, errors.As(err, &derr))
			require.Equal(t, tc.step, derr.Step)
			require.Equal(t, tc.offset, derr.Offset)
			require.ErrorIs(t, err, tc.sentry)
			require.NotEmpty(t, err.Error())
		})
	}
}

func TestDecodeRejectsEveryWrongIndex(t *testing.T) {
	for expect := 0; expect <= MaxIndex; expect++ {
		for idx := 0; idx <= MaxIndex; idx++ {
			msg, err := Descriptor{Index: idx, Addr: 1, Length: 2}.Encode()
			require.NoError(t, err)
			_, err = DecodeDescriptor(msg, expect)
			if idx == expect {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, ErrUnexpectedIndex)
			}
		}
	}
}

func TestParseCommand(t *testing.T) {
	for _, tc := range []struct {
		in string
		op Opcode
	}{
		{"S", OpStart},
		{"Start", OpStart},
		{"E", OpExit},
		{"Exit", OpExit},
		{"R", OpReset},
	} {
		op, err := ParseCommand([]byte(tc.in))
		require.NoError(t, err, tc.in)
		require.Equal(t, tc.op, op)
	}

	_, err := ParseCommand(nil)
	require.Equal(t, ErrEmptyCommand, err)

	_, err = ParseCommand([]byte("x"))
	var unknown *UnknownOpcodeError
	require.ErrorAs(t, err, &unknown)
	require.Equal(t, byte('x'), unknown.Byte)
}

func TestReplies(t *testing.T) {
	require.Equal(t, "Error command:x instead of: S\n", string(ReplyUnknown('x').Bytes()))
	require.Equal(t, Reply("START command"), ParseReply(ReplyStart().Bytes()))
	require.Equal(t, Reply("boot successful with firmware version: v1.2.3"), ReplyReset("1.2.3"))
	require.Equal(t, "START", OpStart.String())

	state, ok := ParseReply([]byte("START with error status:WAIT\r\n")).RejectedState()
	require.True(t, ok)
	require.Equal(t, "WAIT", state)
	_, ok = ReplyStart().RejectedState()
	require.False(t, ok)
	require.True(t, ReplyTransferError(ErrTruncated).IsTransferAbort())
	require.True(t, ReplyDMAStartError(ErrTruncated).IsTransferAbort())
	require.False(t, ReplyExit().IsTransferAbort())
	require.True(t, Reply("CM4 : DMA transfer error: bus").IsTransferAbort())

	for reply, expect := range map[string]string{
		"CM4 : START with error status:0 !!!": "INIT",
		"CM4 : START with error status:5 !!!": "ABORT",
		"START with error status:9":           "9",
		"CM4 : START with error status:WAIT":  "WAIT",
	} {
		state, ok := ParseReply([]byte(reply + "\n")).RejectedState()
		require.True(t, ok, reply)
		require.Equal(t, expect, state, reply)
	}
}
