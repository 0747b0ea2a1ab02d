// Package wire provides the text protocol spoken between the host and
// the coprocessor.
//
// Two byte-oriented channels are used:
//
// The control channel carries single-byte opcodes from the host
// (S: start, E: exit, R: reset/handshake) and free-text replies from
// the coprocessor, one line per reply.
//
// The notification channel carries fixed-width descriptor messages:
//
//	'B' <digit index> 'A' <8 hex address> 'L' <8 hex length>
//
// e.g. B0Adb000000L01000000. The host side uses it to register a buffer
// (address and capacity), the coprocessor uses it to announce a filled
// buffer (address and valid length). Both directions expect indexes in
// strict round-robin order and drop anything else.
//
// There is no version byte, the message length identifies the format.
package wire
