package main

import "github.com/robotalks/sdb.go/pkg/link"

func openTTY(path string) (link.Conn, error) {
	return link.OpenTTY(path)
}
