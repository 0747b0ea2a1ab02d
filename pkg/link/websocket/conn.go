// Package websocket provides a link over websocket, one frame per message.
package websocket

import (
	"time"

	"golang.org/x/net/websocket"
)

// Conn implements link.Conn.
type Conn websocket.Conn

// New wraps websocket.Conn.
func New(conn *websocket.Conn) *Conn {
	return (*Conn)(conn)
}

// Dial connects to a websocket link endpoint.
func Dial(url string) (*Conn, error) {
	conn, err := websocket.Dial(url, "", "http://localhost/")
	if err != nil {
		return nil, err
	}
	return New(conn), nil
}

// ReadMessage implements link.Conn.
func (c *Conn) ReadMessage() (msg []byte, err error) {
	err = websocket.Message.Receive((*websocket.Conn)(c), &msg)
	return
}

// WriteMessage implements link.Conn.
func (c *Conn) WriteMessage(msg []byte) error {
	return websocket.Message.Send((*websocket.Conn)(c), msg)
}

// SetReadDeadline implements link.Conn.
func (c *Conn) SetReadDeadline(t time.Time) error {
	return (*websocket.Conn)(c).SetReadDeadline(t)
}

// Close implements link.Conn.
func (c *Conn) Close() error {
	return (*websocket.Conn)(c).Close()
}

// Handler serves websocket connections as links. The connection is
// closed when fn returns.
func Handler(fn func(*Conn)) websocket.Handler {
	return func(ws *websocket.Conn) {
		fn(New(ws))
	}
}
