package main

//go-build: CGO_ENABLED=0

import (
	"flag"
	"os"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/sdb.go/pkg/cli/sh"
	"github.com/robotalks/sdb.go/pkg/link"
	"github.com/robotalks/sdb.go/pkg/link/websocket"
)

var (
	consoleURL string
	ttyPath    = "/dev/ttyRPMSG0"
)

func init() {
	if val := os.Getenv("SDB_CONTROL_DEVICE"); val != "" {
		ttyPath = val
	}
	flag.StringVar(&consoleURL, "ws", consoleURL, "Status console URL, e.g. ws://localhost:8080/console.")
	flag.StringVar(&ttyPath, "tty", ttyPath, "Control channel tty device.")

	sh.AddCmds(&ishell.Cmd{
		Name: "stats",
		Help: "session counters (status console only)",
		Func: func(c *ishell.Context) {
			sh.DoCommand(c, []byte("stats"))
		},
	}, &ishell.Cmd{
		Name: "mode",
		Help: "session mode (status console only)",
		Func: func(c *ishell.Context) {
			sh.DoCommand(c, []byte("mode"))
		},
	})
}

func open() (link.Conn, error) {
	if consoleURL != "" {
		return websocket.Dial(consoleURL)
	}
	return openTTY(ttyPath)
}

func main() {
	sh.Main(open)
}
