package main

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang/glog"

	"github.com/robotalks/sdb.go/pkg/host"
	"github.com/robotalks/sdb.go/pkg/link"
	"github.com/robotalks/sdb.go/pkg/link/websocket"
)

// Console answers status requests of a session over websocket.
type Console struct {
	Addr    string
	Session *host.Session
}

// Run implements Runnable.
func (c *Console) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/console", websocket.Handler(func(conn *websocket.Conn) {
		glog.Infof("console connected")
		err := link.NewReader("console", conn, link.HandleMessageFunc(func(ctx context.Context, msg []byte) {
			if err := conn.WriteMessage([]byte(c.Reply(string(msg)) + "\n")); err != nil {
				glog.Errorf("console reply: %v", err)
			}
		})).Run(ctx)
		glog.Infof("console disconnected: %v", err)
	}))
	srv := &http.Server{Addr: c.Addr, Handler: mux}
	go func() {
		<-ctx.Done()
		srv.Close()
	}()
	glog.Infof("console on %s/console", c.Addr)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return ctx.Err()
}

// Reply answers one request.
func (c *Console) Reply(req string) string {
	switch strings.TrimSpace(req) {
	case "stats":
		return c.Session.Stats().String()
	case "mode":
		return c.Session.Mode().String()
	}
	return "unknown request: " + strings.TrimSpace(req)
}
