package sh

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/sdb.go/pkg/link"
	"github.com/robotalks/sdb.go/pkg/wire"
)

func TestShellDo(t *testing.T) {
	local, remote := link.Pipe()
	s := New(local)
	s.Timeout = time.Second
	s.Start()
	defer s.Close()

	go func() {
		msg, err := remote.ReadMessage()
		if err == nil && string(msg) == "R" {
			remote.WriteMessage(wire.ReplyReset("1.0.0").Bytes())
		}
	}()
	r, err := s.Do(wire.OpReset.Bytes())
	require.NoError(t, err)
	require.Equal(t, wire.Reply("boot successful with firmware version: v1.0.0"), r)
}

func TestShellTimeout(t *testing.T) {
	local, _ := link.Pipe()
	s := New(local)
	s.Timeout = 10 * time.Millisecond
	_, err := s.Do([]byte("S"))
	require.Error(t, err)
}

func TestShellPendingDropsOldest(t *testing.T) {
	local, _ := link.Pipe()
	s := New(local)
	for i := 0; i < cap(s.replies)+2; i++ {
		s.HandleMessage(context.Background(), []byte("START command\n"))
	}
	s.HandleMessage(context.Background(), []byte("EXIT command\r\n"))
	pending := s.Pending()
	require.Len(t, pending, cap(s.replies))
	require.Equal(t, wire.ReplyExit(), pending[len(pending)-1])
	require.Empty(t, s.Pending())
}
