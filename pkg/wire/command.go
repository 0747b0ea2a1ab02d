package wire

import (
	"fmt"
	"strconv"
	"strings"
)

// Opcode is a control channel command byte.
type Opcode byte

// Control opcodes.
const (
	OpStart Opcode = 'S'
	OpExit  Opcode = 'E'
	OpReset Opcode = 'R'
)

func (o Opcode) String() string {
	switch o {
	case OpStart:
		return "START"
	case OpExit:
		return "EXIT"
	case OpReset:
		return "RESET"
	}
	return fmt.Sprintf("Opcode(%q)", byte(o))
}

// Bytes returns the wire form of the command.
func (o Opcode) Bytes() []byte {
	return []byte{byte(o)}
}

// ParseCommand extracts the opcode of a control message. Only the first
// byte is significant, so "Start" and "S" are the same command.
func ParseCommand(msg []byte) (Opcode, error) {
	if len(msg) == 0 {
		return 0, ErrEmptyCommand
	}
	switch op := Opcode(msg[0]); op {
	case OpStart, OpExit, OpReset:
		return op, nil
	}
	return 0, &UnknownOpcodeError{Byte: msg[0]}
}

// Reply is a free-text line sent back on the control channel.
type Reply string

// Bytes returns the wire form, terminated by a new line.
func (r Reply) Bytes() []byte {
	return []byte(string(r) + "\n")
}

// ParseReply strips the line terminator from a received reply.
func ParseReply(msg []byte) Reply {
	return Reply(strings.TrimRight(string(msg), "\r\n\x00"))
}

// ReplyStart acknowledges a start request.
func ReplyStart() Reply { return "START command" }

const (
	startRejectedPrefix = "START with error status:"
	transferErrorPrefix = "DMA transfer error: "
	dmaStartErrorPrefix = "DMA start error: "
)

// ReplyStartRejected rejects a start request in the given state.
func ReplyStartRejected(state fmt.Stringer) Reply {
	return Reply(startRejectedPrefix + state.String())
}

// numbered states, as reported by firmware printing the state value
var numberedStates = [...]string{"INIT", "IDLE", "START", "WAIT", "DONE", "ABORT"}

// RejectedState returns the state named by a start rejection. The
// rejection may be embedded in a longer line, as in
// "CM4 : START with error status:0 !!!", and a numbered state is
// translated to its name.
func (r Reply) RejectedState() (string, bool) {
	_, rest, ok := strings.Cut(string(r), startRejectedPrefix)
	if !ok {
		return "", false
	}
	state := rest
	if end := strings.IndexAny(rest, " !"); end >= 0 {
		state = rest[:end]
	}
	if n, err := strconv.Atoi(state); err == nil && n >= 0 && n < len(numberedStates) {
		state = numberedStates[n]
	}
	return state, true
}

// IsTransferAbort determines if r reports a transfer the coprocessor
// gave up on.
func (r Reply) IsTransferAbort() bool {
	return strings.Contains(string(r), transferErrorPrefix) ||
		strings.Contains(string(r), dmaStartErrorPrefix)
}

// ReplyExit acknowledges an exit request.
func ReplyExit() Reply { return "EXIT command" }

// ReplyReset answers the handshake with the firmware identity.
func ReplyReset(version string) Reply {
	return Reply("boot successful with firmware version: v" + version)
}

// ReplyUnknown echoes an unrecognized command byte.
func ReplyUnknown(b byte) Reply {
	return Reply(fmt.Sprintf("Error command:%c instead of: %c", b, OpStart))
}

// ReplyRegistered acknowledges a buffer registration.
func ReplyRegistered(d Descriptor, registered int) Reply {
	return Reply(fmt.Sprintf("registration OK physAddr=0x%x physSize=%d count=%d",
		d.Addr, d.Length, registered))
}

// ReplyRegistrationError reports a dropped registration message.
func ReplyRegistrationError(err error) Reply {
	return Reply("registration ERROR " + err.Error())
}

// ReplyTransferError reports a DMA failure.
func ReplyTransferError(err error) Reply {
	return Reply(transferErrorPrefix + err.Error())
}

// ReplyDMAStartError reports a transfer which could not be issued.
func ReplyDMAStartError(err error) Reply {
	return Reply(dmaStartErrorPrefix + err.Error())
}
