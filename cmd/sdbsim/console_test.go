package main

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/sdb.go/pkg/host"
)

func TestConsoleReply(t *testing.T) {
	c := &Console{Session: host.NewSession(host.NewConfig(), nil, nil, nil, nil)}
	require.Equal(t, "idle", c.Reply("mode\n"))
	require.Contains(t, c.Reply("stats"), "buffers=0")
	require.Equal(t, "unknown request: x", c.Reply("x"))
}
