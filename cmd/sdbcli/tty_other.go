//go:build !linux

package main

import (
	"errors"

	"github.com/robotalks/sdb.go/pkg/link"
)

func openTTY(string) (link.Conn, error) {
	return nil, errors.New("tty control channel is only supported on linux, use -ws")
}
