// Package link provides message-oriented byte links used as control and
// notification channels between the host and the coprocessor.
package link
